package manager_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"applyq/internal/queue"
	"applyq/internal/services/resumegen"
	"applyq/internal/testsupport"
)

func TestGenerateSelectedBatchIsolatesFailures(t *testing.T) {
	fx := testsupport.NewManager(t)
	jobA := testsupport.SeedJob(t, fx.Store, queue.StatusSelected, func(job *queue.JobRecord) {
		job.FitScore = 95
	})
	jobB := testsupport.SeedJob(t, fx.Store, queue.StatusSelected, func(job *queue.JobRecord) {
		job.FitScore = 60
	})

	fx.Generator.Results = map[string]resumegen.Result{
		jobA: {OutputFolder: "/out/job-a", ResumeScore: 88},
	}
	fx.Generator.Errs = map[string]error{
		jobB: errors.New("model refused the request"),
	}

	batch, err := fx.Manager.GenerateSelected(context.Background())
	if err != nil {
		t.Fatalf("GenerateSelected returned error: %v", err)
	}
	if batch != 2 {
		t.Fatalf("expected batch of 2, got %d", batch)
	}
	fx.Manager.Wait()

	doc := testsupport.MustLoad(t, fx.Store)
	a := doc.Jobs[jobA]
	if a.Status != queue.StatusReady || a.OutputFolder != "/out/job-a" || a.ResumeScore != 88 {
		t.Fatalf("unexpected succeeded job: %+v", a)
	}
	b := doc.Jobs[jobB]
	if b.Status != queue.StatusFailed {
		t.Fatalf("expected failed job, got %s", b.Status)
	}
	if !strings.Contains(b.Error, "model refused") {
		t.Fatalf("expected recorded error, got %q", b.Error)
	}

	// Higher fit score generates first.
	order := fx.Generator.Order()
	if len(order) != 2 || order[0] != jobA || order[1] != jobB {
		t.Fatalf("unexpected generation order: %v", order)
	}
}

func TestGenerateSelectedTruncatesLongErrors(t *testing.T) {
	fx := testsupport.NewManager(t, testsupport.WithErrorMessageLimit(60))
	jobID := testsupport.SeedJob(t, fx.Store, queue.StatusSelected)
	fx.Generator.Errs = map[string]error{
		jobID: errors.New(strings.Repeat("x", 2000)),
	}

	if _, err := fx.Manager.GenerateSelected(context.Background()); err != nil {
		t.Fatalf("GenerateSelected returned error: %v", err)
	}
	fx.Manager.Wait()

	doc := testsupport.MustLoad(t, fx.Store)
	stored := doc.Jobs[jobID].Error
	if len(stored) > 63 {
		t.Fatalf("expected truncated error, got %d bytes", len(stored))
	}
	if !strings.HasSuffix(stored, "...") {
		t.Fatalf("expected truncation marker, got %q", stored)
	}
}

func TestGenerateSelectedSnapshotFixesBatchMembership(t *testing.T) {
	fx := testsupport.NewManager(t)
	inBatch := testsupport.SeedJob(t, fx.Store, queue.StatusSelected)
	fx.Generator.Release = make(chan struct{})

	if _, err := fx.Manager.GenerateSelected(context.Background()); err != nil {
		t.Fatalf("GenerateSelected returned error: %v", err)
	}

	// Selected after the snapshot: must wait for the next batch.
	late := testsupport.SeedJob(t, fx.Store, queue.StatusSelected)

	close(fx.Generator.Release)
	fx.Manager.Wait()

	doc := testsupport.MustLoad(t, fx.Store)
	if doc.Jobs[inBatch].Status != queue.StatusReady {
		t.Fatalf("expected batch member ready, got %s", doc.Jobs[inBatch].Status)
	}
	if doc.Jobs[late].Status != queue.StatusSelected {
		t.Fatalf("expected late job untouched, got %s", doc.Jobs[late].Status)
	}
}

func TestGenerateSelectedEmptyPoolReleasesGate(t *testing.T) {
	fx := testsupport.NewManager(t)

	batch, err := fx.Manager.GenerateSelected(context.Background())
	if err != nil {
		t.Fatalf("GenerateSelected returned error: %v", err)
	}
	if batch != 0 {
		t.Fatalf("expected empty batch, got %d", batch)
	}
	if _, busy := fx.Manager.ActiveTask(); busy {
		t.Fatal("expected gate released after empty batch")
	}
}

func TestGenerateOneGuardsStatusAndDescription(t *testing.T) {
	fx := testsupport.NewManager(t)
	ready := testsupport.SeedJob(t, fx.Store, queue.StatusReady)
	if err := fx.Manager.GenerateOne(context.Background(), ready); err == nil {
		t.Fatal("expected rejection for ready job")
	}

	bare := testsupport.SeedJob(t, fx.Store, queue.StatusDiscovered, func(job *queue.JobRecord) {
		job.Description = ""
	})
	if err := fx.Manager.GenerateOne(context.Background(), bare); err == nil {
		t.Fatal("expected rejection for job without description")
	}
	if _, busy := fx.Manager.ActiveTask(); busy {
		t.Fatal("expected gate released after rejected admission")
	}

	discovered := testsupport.SeedJob(t, fx.Store, queue.StatusDiscovered)
	if err := fx.Manager.GenerateOne(context.Background(), discovered); err != nil {
		t.Fatalf("GenerateOne returned error: %v", err)
	}
	fx.Manager.Wait()

	doc := testsupport.MustLoad(t, fx.Store)
	if got := doc.Jobs[discovered].Status; got != queue.StatusReady {
		t.Fatalf("expected ready after direct generation, got %s", got)
	}
}

func TestGenerateOneRetriesFailedJob(t *testing.T) {
	fx := testsupport.NewManager(t)
	failed := testsupport.SeedJob(t, fx.Store, queue.StatusFailed, func(job *queue.JobRecord) {
		job.Error = "previous failure"
	})

	if err := fx.Manager.GenerateOne(context.Background(), failed); err != nil {
		t.Fatalf("GenerateOne returned error: %v", err)
	}
	fx.Manager.Wait()

	doc := testsupport.MustLoad(t, fx.Store)
	job := doc.Jobs[failed]
	if job.Status != queue.StatusReady || job.Error != "" {
		t.Fatalf("expected ready with cleared error, got %s %q", job.Status, job.Error)
	}
}

func TestCoverLetterWritesArtifactAndFlipsFlag(t *testing.T) {
	fx := testsupport.NewManager(t)
	folder := t.TempDir()
	jobID := testsupport.SeedJob(t, fx.Store, queue.StatusReady, func(job *queue.JobRecord) {
		job.OutputFolder = folder
		job.Company = "Acme"
	})

	path, err := fx.Manager.CoverLetter(context.Background(), jobID)
	if err != nil {
		t.Fatalf("CoverLetter returned error: %v", err)
	}
	if filepath.Dir(path) != folder {
		t.Fatalf("expected artifact in output folder, got %s", path)
	}
	if filepath.Base(path) != resumegen.CoverLetterFileName {
		t.Fatalf("expected %s, got %s", resumegen.CoverLetterFileName, filepath.Base(path))
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if !strings.Contains(string(content), "Acme") {
		t.Fatalf("unexpected artifact content: %s", content)
	}

	doc := testsupport.MustLoad(t, fx.Store)
	if !doc.Jobs[jobID].HasCoverLetter {
		t.Fatal("expected has_cover_letter flag set")
	}
}

func TestOutreachMessageRequiresReadyOrApplied(t *testing.T) {
	fx := testsupport.NewManager(t)
	jobID := testsupport.SeedJob(t, fx.Store, queue.StatusSelected)

	if _, err := fx.Manager.OutreachMessage(context.Background(), jobID); err == nil {
		t.Fatal("expected rejection for selected job")
	}

	applied := testsupport.SeedJob(t, fx.Store, queue.StatusApplied, func(job *queue.JobRecord) {
		job.OutputFolder = t.TempDir()
		job.Title = "Staff Engineer"
	})
	path, err := fx.Manager.OutreachMessage(context.Background(), applied)
	if err != nil {
		t.Fatalf("OutreachMessage returned error: %v", err)
	}
	doc := testsupport.MustLoad(t, fx.Store)
	if !doc.Jobs[applied].HasLinkedInMessage {
		t.Fatal("expected has_linkedin_message flag set")
	}
	if filepath.Base(path) != resumegen.OutreachFileName {
		t.Fatalf("expected %s, got %s", resumegen.OutreachFileName, filepath.Base(path))
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected artifact on disk: %v", err)
	}
}
