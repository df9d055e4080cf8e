package daemon_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"applyq/internal/daemon"
	"applyq/internal/logging"
	"applyq/internal/queue"
	"applyq/internal/services/jobsearch"
	"applyq/internal/testsupport"
)

func startDaemon(t *testing.T, fx *testsupport.ManagerFixture) *daemon.Daemon {
	t.Helper()

	d, err := daemon.New(fx.Config, fx.Store, fx.Manager, logging.NewNop())
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start daemon: %v", err)
	}
	t.Cleanup(d.Stop)
	return d
}

func apiURL(t *testing.T, d *daemon.Daemon, path string) string {
	t.Helper()
	addr := d.Status().APIAddress
	if addr == "" {
		t.Fatal("expected api server address")
	}
	return "http://" + addr + path
}

func TestDaemonEnforcesSingleInstance(t *testing.T) {
	fx := testsupport.NewManager(t)
	startDaemon(t, fx)

	second, err := daemon.New(fx.Config, fx.Store, fx.Manager, logging.NewNop())
	if err != nil {
		t.Fatalf("new second daemon: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("expected second instance to be refused")
	}
}

func TestDaemonRecoversInterruptedStateAtBoot(t *testing.T) {
	fx := testsupport.NewManager(t)
	stuck := testsupport.SeedJob(t, fx.Store, queue.StatusGenerating)

	startDaemon(t, fx)

	doc := testsupport.MustLoad(t, fx.Store)
	if got := doc.Jobs[stuck].Status; got != queue.StatusSelected {
		t.Fatalf("expected boot recovery to reset job, got %s", got)
	}
}

func TestAPIStatusAndDashboard(t *testing.T) {
	fx := testsupport.NewManager(t)
	testsupport.SeedJob(t, fx.Store, queue.StatusDiscovered)
	d := startDaemon(t, fx)

	resp, err := http.Get(apiURL(t, d, "/api/status"))
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	defer resp.Body.Close()
	var status daemon.Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Running {
		t.Fatal("expected running daemon")
	}

	resp, err = http.Get(apiURL(t, d, "/api/dashboard"))
	if err != nil {
		t.Fatalf("get dashboard: %v", err)
	}
	defer resp.Body.Close()
	var snapshot struct {
		Total int `json:"total"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		t.Fatalf("decode dashboard: %v", err)
	}
	if snapshot.Total != 1 {
		t.Fatalf("expected 1 job in dashboard, got %d", snapshot.Total)
	}

	resp, err = http.Get(apiURL(t, d, "/api/dashboard/bogus"))
	if err != nil {
		t.Fatalf("get bogus view: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown view, got %d", resp.StatusCode)
	}
}

func TestAPISearchConflictWhileBusy(t *testing.T) {
	fx := testsupport.NewManager(t)
	fx.Searcher.Release = make(chan struct{})
	d := startDaemon(t, fx)

	resp, err := http.Post(apiURL(t, d, "/api/search"), "application/json", nil)
	if err != nil {
		t.Fatalf("post search: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	resp, err = http.Post(apiURL(t, d, "/api/search"), "application/json", nil)
	if err != nil {
		t.Fatalf("post second search: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 while busy, got %d", resp.StatusCode)
	}

	close(fx.Searcher.Release)
	fx.Manager.Wait()
}

// A search started over the API must outlive the HTTP request that started
// it: the request context dies when the handler returns.
func TestAPISearchOutlivesRequest(t *testing.T) {
	fx := testsupport.NewManager(t)
	fx.Searcher.Release = make(chan struct{})
	fx.Searcher.Candidates = []jobsearch.Candidate{
		{
			Title:           "Platform Engineer",
			Company:         "Acme",
			Description:     strings.Repeat("requirement line\n", 12),
			FitScore:        85,
			DescriptionHash: "hash-outlive",
		},
	}
	d := startDaemon(t, fx)

	resp, err := http.Post(apiURL(t, d, "/api/search"), "application/json", nil)
	if err != nil {
		t.Fatalf("post search: %v", err)
	}
	var accepted map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	resp.Body.Close()
	runID := accepted["run_id"]
	if runID == "" {
		t.Fatal("expected run_id in response")
	}

	// The request is finished; the search must still hold the gate.
	if name, busy := fx.Manager.ActiveTask(); !busy || name != "search" {
		t.Fatalf("expected live search task after request returned, got %q busy=%v", name, busy)
	}

	close(fx.Searcher.Release)
	fx.Manager.Wait()

	doc := testsupport.MustLoad(t, fx.Store)
	run := doc.Run(runID)
	if run == nil {
		t.Fatalf("run %s missing from document", runID)
	}
	if run.Status != queue.RunCompleted {
		t.Fatalf("expected completed run, got %s (error %q)", run.Status, run.Error)
	}
	if run.JobsNew != 1 {
		t.Fatalf("expected 1 new job, got %d", run.JobsNew)
	}
}

func TestAPIJobActions(t *testing.T) {
	fx := testsupport.NewManager(t)
	jobID := testsupport.SeedJob(t, fx.Store, queue.StatusDiscovered)
	d := startDaemon(t, fx)

	body, _ := json.Marshal(map[string][]string{"job_ids": {jobID}})
	resp, err := http.Post(apiURL(t, d, "/api/jobs/select"), "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post select: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for select, got %d", resp.StatusCode)
	}

	resp, err = http.Get(apiURL(t, d, fmt.Sprintf("/api/jobs/%s", jobID)))
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	defer resp.Body.Close()
	var job queue.JobRecord
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if job.Status != queue.StatusSelected {
		t.Fatalf("expected selected job, got %s", job.Status)
	}

	// Applying a selected job is illegal and must report a conflict.
	resp, err = http.Post(apiURL(t, d, fmt.Sprintf("/api/jobs/%s/applied", jobID)), "application/json", nil)
	if err != nil {
		t.Fatalf("post applied: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for illegal transition, got %d", resp.StatusCode)
	}

	resp, err = http.Post(apiURL(t, d, "/api/jobs/missing/retry"), "application/json", nil)
	if err != nil {
		t.Fatalf("post retry: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown job, got %d", resp.StatusCode)
	}
}

func TestAPIRegisterExternalJob(t *testing.T) {
	fx := testsupport.NewManager(t)
	d := startDaemon(t, fx)

	payload, _ := json.Marshal(map[string]any{
		"title":         "Platform Engineer",
		"company":       "Beta",
		"output_folder": "/out/beta",
		"resume_score":  90,
		"source":        "manual",
	})
	resp, err := http.Post(apiURL(t, d, "/api/jobs/external"), "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("post external: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var result map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result["job_id"] == "" {
		t.Fatal("expected job_id in response")
	}

	doc := testsupport.MustLoad(t, fx.Store)
	if doc.Jobs[result["job_id"]].Status != queue.StatusReady {
		t.Fatal("expected external job registered as ready")
	}
}
