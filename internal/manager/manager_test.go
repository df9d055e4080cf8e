package manager_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"applyq/internal/jdcache"
	"applyq/internal/manager"
	"applyq/internal/queue"
	"applyq/internal/services/jobsearch"
	"applyq/internal/testsupport"
)

func TestSelectJobsRejectsBatchOnIllegalTransition(t *testing.T) {
	fx := testsupport.NewManager(t)
	discovered := testsupport.SeedJob(t, fx.Store, queue.StatusDiscovered)
	ready := testsupport.SeedJob(t, fx.Store, queue.StatusReady)

	err := fx.Manager.SelectJobs([]string{discovered, ready})
	var transitionErr *manager.TransitionError
	if !errors.As(err, &transitionErr) {
		t.Fatalf("expected TransitionError, got %v", err)
	}

	doc := testsupport.MustLoad(t, fx.Store)
	if got := doc.Jobs[discovered].Status; got != queue.StatusDiscovered {
		t.Fatalf("expected rejected batch to leave job untouched, got %s", got)
	}
}

func TestSelectJobsClearsSkipReason(t *testing.T) {
	fx := testsupport.NewManager(t)
	jobID := testsupport.SeedJob(t, fx.Store, queue.StatusSkipped, func(job *queue.JobRecord) {
		job.SkipReason = "not interested"
	})

	if err := fx.Manager.SelectJobs([]string{jobID}); err != nil {
		t.Fatalf("SelectJobs returned error: %v", err)
	}

	doc := testsupport.MustLoad(t, fx.Store)
	job := doc.Jobs[jobID]
	if job.Status != queue.StatusSelected {
		t.Fatalf("expected selected, got %s", job.Status)
	}
	if job.SkipReason != "" {
		t.Fatalf("expected cleared skip reason, got %q", job.SkipReason)
	}
}

func TestMarkAppliedRequiresReady(t *testing.T) {
	fx := testsupport.NewManager(t)
	jobID := testsupport.SeedJob(t, fx.Store, queue.StatusDiscovered)

	if err := fx.Manager.MarkApplied(jobID); err == nil {
		t.Fatal("expected illegal transition error")
	}
	doc := testsupport.MustLoad(t, fx.Store)
	if got := doc.Jobs[jobID].Status; got != queue.StatusDiscovered {
		t.Fatalf("expected unchanged status, got %s", got)
	}
}

func TestRetryClearsErrorAndRequiresDescription(t *testing.T) {
	fx := testsupport.NewManager(t)
	failed := testsupport.SeedJob(t, fx.Store, queue.StatusFailed, func(job *queue.JobRecord) {
		job.Error = "generator exploded"
	})
	bare := testsupport.SeedJob(t, fx.Store, queue.StatusFailed, func(job *queue.JobRecord) {
		job.Description = ""
	})

	if err := fx.Manager.Retry(failed); err != nil {
		t.Fatalf("Retry returned error: %v", err)
	}
	doc := testsupport.MustLoad(t, fx.Store)
	job := doc.Jobs[failed]
	if job.Status != queue.StatusSelected || job.Error != "" {
		t.Fatalf("expected selected with cleared error, got %s %q", job.Status, job.Error)
	}

	if err := fx.Manager.Retry(bare); err == nil {
		t.Fatal("expected error retrying job without description")
	}
}

func TestCancelReturnsQueuedJobToDiscovered(t *testing.T) {
	fx := testsupport.NewManager(t)
	jobID := testsupport.SeedJob(t, fx.Store, queue.StatusQueued)

	if err := fx.Manager.Cancel(jobID); err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}
	doc := testsupport.MustLoad(t, fx.Store)
	if got := doc.Jobs[jobID].Status; got != queue.StatusDiscovered {
		t.Fatalf("expected discovered, got %s", got)
	}

	generating := testsupport.SeedJob(t, fx.Store, queue.StatusGenerating)
	if err := fx.Manager.Cancel(generating); err == nil {
		t.Fatal("expected cancel of generating job to be rejected")
	}
}

func TestJobReturnsCopy(t *testing.T) {
	fx := testsupport.NewManager(t)
	jobID := testsupport.SeedJob(t, fx.Store, queue.StatusDiscovered)

	job, err := fx.Manager.Job(jobID)
	if err != nil {
		t.Fatalf("Job returned error: %v", err)
	}
	if job.JobID != jobID {
		t.Fatalf("unexpected job: %+v", job)
	}
	if _, err := fx.Manager.Job("missing"); !errors.Is(err, manager.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestRegisterExternalJobIsIdempotent(t *testing.T) {
	fx := testsupport.NewManager(t)
	ext := manager.ExternalJob{
		Title:        "Platform Engineer",
		Company:      "Beta Corp",
		OutputFolder: "/out/beta-platform",
		ResumeScore:  91,
		Source:       "manual",
	}

	first, err := fx.Manager.RegisterExternalJob(ext)
	if err != nil {
		t.Fatalf("RegisterExternalJob returned error: %v", err)
	}
	second, err := fx.Manager.RegisterExternalJob(ext)
	if err != nil {
		t.Fatalf("repeat RegisterExternalJob returned error: %v", err)
	}
	if first != second {
		t.Fatalf("expected idempotent registration, got %s and %s", first, second)
	}

	doc := testsupport.MustLoad(t, fx.Store)
	if len(doc.Jobs) != 1 {
		t.Fatalf("expected a single job, got %d", len(doc.Jobs))
	}
	job := doc.Jobs[first]
	if job.Status != queue.StatusReady || job.OutputFolder != ext.OutputFolder {
		t.Fatalf("unexpected registered job: %+v", job)
	}
}

func TestRecoverInterruptedResetsGeneratingAndRunningRuns(t *testing.T) {
	fx := testsupport.NewManager(t)
	stuck := testsupport.SeedJob(t, fx.Store, queue.StatusGenerating, func(job *queue.JobRecord) {
		job.Error = "interrupted mid-flight"
	})
	untouched := testsupport.SeedJob(t, fx.Store, queue.StatusReady)

	doc := testsupport.MustLoad(t, fx.Store)
	doc.Runs = append(doc.Runs, queue.RunRecord{
		RunID:  "run_crash",
		Type:   "search",
		Status: queue.RunRunning,
	})
	if err := fx.Store.Save(doc); err != nil {
		t.Fatalf("save store: %v", err)
	}

	jobs, runs, err := fx.Manager.RecoverInterrupted()
	if err != nil {
		t.Fatalf("RecoverInterrupted returned error: %v", err)
	}
	if jobs != 1 || runs != 1 {
		t.Fatalf("expected 1 job and 1 run repaired, got %d and %d", jobs, runs)
	}

	doc = testsupport.MustLoad(t, fx.Store)
	repaired := doc.Jobs[stuck]
	if repaired.Status != queue.StatusSelected || repaired.Error != "" {
		t.Fatalf("expected selected with cleared error, got %s %q", repaired.Status, repaired.Error)
	}
	if doc.Jobs[untouched].Status != queue.StatusReady {
		t.Fatalf("expected ready job untouched")
	}
	run := doc.Run("run_crash")
	if run.Status != queue.RunInterrupted || run.CompletedAt == nil {
		t.Fatalf("expected interrupted run with completion time, got %+v", run)
	}
}

func TestRecoverInterruptedNoopOnCleanState(t *testing.T) {
	fx := testsupport.NewManager(t)
	testsupport.SeedJob(t, fx.Store, queue.StatusReady)

	jobs, runs, err := fx.Manager.RecoverInterrupted()
	if err != nil {
		t.Fatalf("RecoverInterrupted returned error: %v", err)
	}
	if jobs != 0 || runs != 0 {
		t.Fatalf("expected nothing repaired, got %d jobs %d runs", jobs, runs)
	}
}

func TestOperationGateRefusesConcurrentWork(t *testing.T) {
	fx := testsupport.NewManager(t)
	fx.Searcher.Release = make(chan struct{})
	fx.Searcher.Candidates = nil

	if _, err := fx.Manager.StartSearch(context.Background(), jobsearch.Filters{}); err != nil {
		t.Fatalf("StartSearch returned error: %v", err)
	}

	if _, err := fx.Manager.StartSearch(context.Background(), jobsearch.Filters{}); !errors.Is(err, manager.ErrBusy) {
		t.Fatalf("expected ErrBusy for second search, got %v", err)
	}
	if _, err := fx.Manager.GenerateSelected(context.Background()); !errors.Is(err, manager.ErrBusy) {
		t.Fatalf("expected ErrBusy for generation while searching, got %v", err)
	}
	if name, busy := fx.Manager.ActiveTask(); !busy || name != "search" {
		t.Fatalf("expected active search task, got %q busy=%v", name, busy)
	}

	close(fx.Searcher.Release)
	fx.Manager.Wait()

	if _, busy := fx.Manager.ActiveTask(); busy {
		t.Fatal("expected gate to free after task exit")
	}
	if _, err := fx.Manager.StartSearch(context.Background(), jobsearch.Filters{}); err != nil {
		t.Fatalf("expected search to be admitted after gate freed, got %v", err)
	}
	fx.Manager.Wait()
}

func TestStartSearchAppliesDedupAndThinFilter(t *testing.T) {
	fx := testsupport.NewManager(t, testsupport.WithMinJDLines(3))

	thick := strings.Repeat("requirement line\n", 5)
	existing := testsupport.SeedJob(t, fx.Store, queue.StatusDiscovered)
	doc := testsupport.MustLoad(t, fx.Store)
	existingHash := doc.Jobs[existing].DescriptionHash

	fx.Searcher.Candidates = []jobsearch.Candidate{
		{Title: "A", Company: "CoA", Description: thick, FitScore: 92, DescriptionHash: "hash-a"},
		{Title: "B", Company: "CoB", Description: thick, FitScore: 70, DescriptionHash: "hash-b"},
		{Title: "C", Company: "CoC", Description: thick, FitScore: 55, DescriptionHash: "hash-c"},
		{Title: "Thin", Company: "CoT", Description: "one line only", FitScore: 99, DescriptionHash: "hash-thin"},
		{Title: "Dup", Company: "CoD", Description: thick, FitScore: 88, DescriptionHash: existingHash},
	}

	runID, err := fx.Manager.StartSearch(context.Background(), jobsearch.Filters{DatePosted: "week"})
	if err != nil {
		t.Fatalf("StartSearch returned error: %v", err)
	}
	fx.Manager.Wait()

	doc = testsupport.MustLoad(t, fx.Store)
	run := doc.Run(runID)
	if run == nil || run.Status != queue.RunCompleted {
		t.Fatalf("expected completed run, got %+v", run)
	}
	// 5 raw candidates, 1 duplicate, 1 thin: jobs_new counts only the 3
	// discovered admissions; the thin job is admitted but not new.
	if run.JobsFound != 5 || run.JobsNew != 3 {
		t.Fatalf("expected 5 found / 3 new, got %d / %d", run.JobsFound, run.JobsNew)
	}

	discovered := doc.JobsByStatus(queue.StatusDiscovered)
	// 3 admitted plus the pre-existing seed.
	if len(discovered) != 4 {
		t.Fatalf("expected 4 discovered jobs, got %d", len(discovered))
	}
	thin := doc.JobsByStatus(queue.StatusThinJD)
	if len(thin) != 1 {
		t.Fatalf("expected 1 thin job, got %d", len(thin))
	}
	if thin[0].SkipReason == "" {
		t.Fatal("expected thin job to carry a skip reason")
	}
	if thin[0].Tier != "" {
		t.Fatalf("expected thin job to have no tier, got %s", thin[0].Tier)
	}

	var full, fast int
	for _, job := range discovered {
		switch job.Tier {
		case queue.TierFull:
			full++
		case queue.TierFast:
			fast++
		}
	}
	if full != 1 || fast != 2 {
		t.Fatalf("expected 1 full / 2 fast among admitted, got %d / %d", full, fast)
	}
}

func TestStartSearchHydratesUnscoredCandidatesFromCache(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	cache, err := jdcache.Open(filepath.Join(t.TempDir(), "jd_cache.db"))
	if err != nil {
		t.Fatalf("open jd cache: %v", err)
	}
	t.Cleanup(func() { cache.Close() })

	if err := cache.Put(context.Background(), jdcache.Entry{
		Hash:           "hash-cached",
		Title:          "Platform Engineer",
		Company:        "Acme",
		FitScore:       90,
		Recommendation: "strong match",
		CachedAt:       time.Now(),
	}); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	searcher := &testsupport.StubSearcher{
		Candidates: []jobsearch.Candidate{
			// The search service returned this posting unscored; the cached
			// analysis should fill it in.
			{
				Title:           "Platform Engineer",
				Company:         "Acme",
				Description:     strings.Repeat("requirement line\n", 12),
				DescriptionHash: "hash-cached",
			},
		},
	}
	mgr, err := manager.New(manager.Options{
		Config:    cfg,
		Store:     store,
		Searcher:  searcher,
		Generator: &testsupport.StubGenerator{},
		Cache:     cache,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	if _, err := mgr.StartSearch(context.Background(), jobsearch.Filters{}); err != nil {
		t.Fatalf("StartSearch returned error: %v", err)
	}
	mgr.Wait()

	doc := testsupport.MustLoad(t, store)
	jobs := doc.JobsByStatus(queue.StatusDiscovered)
	if len(jobs) != 1 {
		t.Fatalf("expected 1 discovered job, got %d", len(jobs))
	}
	if jobs[0].FitScore != 90 || jobs[0].Recommendation != "strong match" {
		t.Fatalf("expected cached analysis on job, got score %v recommendation %q",
			jobs[0].FitScore, jobs[0].Recommendation)
	}
	if jobs[0].Tier != queue.TierFull {
		t.Fatalf("expected full tier from cached score, got %s", jobs[0].Tier)
	}
}

func TestStartSearchFailureMarksRunFailed(t *testing.T) {
	fx := testsupport.NewManager(t)
	fx.Searcher.Err = errors.New("search service unavailable")

	runID, err := fx.Manager.StartSearch(context.Background(), jobsearch.Filters{})
	if err != nil {
		t.Fatalf("StartSearch returned error: %v", err)
	}
	fx.Manager.Wait()

	doc := testsupport.MustLoad(t, fx.Store)
	run := doc.Run(runID)
	if run.Status != queue.RunFailed {
		t.Fatalf("expected failed run, got %s", run.Status)
	}
	if !strings.Contains(run.Error, "search service unavailable") {
		t.Fatalf("expected run error recorded, got %q", run.Error)
	}
	if len(doc.Jobs) != 0 {
		t.Fatalf("expected no jobs admitted from failed run, got %d", len(doc.Jobs))
	}
}
