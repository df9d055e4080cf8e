package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"applyq/internal/daemon"
	"applyq/internal/dashboard"
	"applyq/internal/queue"
)

func newTestDaemonServer(t *testing.T, mux *http.ServeMux) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func respondJSON(t *testing.T, w http.ResponseWriter, status int, payload any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func TestStatusCommand(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(t, w, http.StatusOK, daemon.Status{
			Running:    true,
			ActiveTask: "search",
			QueuePath:  "/var/lib/applyq/apply_queue.json",
		})
	})
	mux.HandleFunc("/api/dashboard", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(t, w, http.StatusOK, dashboard.Snapshot{
			Counts: map[queue.Status]int{
				queue.StatusDiscovered: 3,
				queue.StatusReady:      1,
			},
			Total: 4,
			LatestRun: &queue.RunRecord{
				RunID:     "run_20260831_abcd1234",
				Type:      "search",
				Status:    queue.RunCompleted,
				JobsFound: 5,
				JobsNew:   3,
			},
		})
	})
	srv := newTestDaemonServer(t, mux)

	out, err := runCLI(t, writeCLIConfig(t), srv.URL, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Daemon running: true")
	requireContains(t, out, "Active task: search")
	requireContains(t, out, "discovered")
	requireContains(t, out, "run_20260831_abcd1234")
	requireContains(t, out, "5 found, 3 new")
}

func TestSearchCommandSendsFilters(t *testing.T) {
	var received map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/api/search", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode body: %v", err)
		}
		respondJSON(t, w, http.StatusAccepted, map[string]string{"run_id": "run_x"})
	})
	srv := newTestDaemonServer(t, mux)

	out, err := runCLI(t, writeCLIConfig(t), srv.URL, "search", "--date-posted", "month", "--pages", "2")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	requireContains(t, out, "run_x")

	if received["date_posted"] != "month" {
		t.Fatalf("expected date_posted month, got %v", received["date_posted"])
	}
	if received["num_pages"] != float64(2) {
		t.Fatalf("expected num_pages 2, got %v", received["num_pages"])
	}
	if _, ok := received["min_score"]; ok {
		t.Fatalf("unset flag should not be sent, got %v", received)
	}
}

func TestSelectCommand(t *testing.T) {
	var received struct {
		JobIDs []string `json:"job_ids"`
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/jobs/select", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode body: %v", err)
		}
		respondJSON(t, w, http.StatusOK, map[string]int{"selected": len(received.JobIDs)})
	})
	srv := newTestDaemonServer(t, mux)

	out, err := runCLI(t, writeCLIConfig(t), srv.URL, "select", "job_a", "job_b")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	requireContains(t, out, "Selected 2 job(s)")
	if len(received.JobIDs) != 2 || received.JobIDs[0] != "job_a" {
		t.Fatalf("unexpected job ids: %v", received.JobIDs)
	}
}

func TestJobSkipSendsReason(t *testing.T) {
	var received struct {
		Reason string `json:"reason"`
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/jobs/job_a/skip", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode body: %v", err)
		}
		respondJSON(t, w, http.StatusOK, map[string]string{"job_id": "job_a"})
	})
	srv := newTestDaemonServer(t, mux)

	out, err := runCLI(t, writeCLIConfig(t), srv.URL, "job", "skip", "job_a", "--reason", "not remote")
	if err != nil {
		t.Fatalf("job skip: %v", err)
	}
	requireContains(t, out, "Job job_a skipped")
	if received.Reason != "not remote" {
		t.Fatalf("expected reason to reach daemon, got %q", received.Reason)
	}
}

func TestJobShowCommand(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/jobs/job_a", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(t, w, http.StatusOK, queue.JobRecord{
			JobID:          "job_a",
			Title:          "Platform Engineer",
			Company:        "Acme",
			Status:         queue.StatusReady,
			FitScore:       88,
			Tier:           queue.TierFull,
			OutputFolder:   "/out/acme_platform",
			ResumeScore:    91,
			HasCoverLetter: true,
			UpdatedAt:      time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		})
	})
	srv := newTestDaemonServer(t, mux)

	out, err := runCLI(t, writeCLIConfig(t), srv.URL, "job", "show", "job_a")
	if err != nil {
		t.Fatalf("job show: %v", err)
	}
	requireContains(t, out, "Platform Engineer")
	requireContains(t, out, "full tier")
	requireContains(t, out, "/out/acme_platform")
	requireContains(t, out, "cover letter")
}

func TestDashboardSingleView(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/dashboard/ready", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(t, w, http.StatusOK, dashboard.View{
			Name: dashboard.ViewReady,
			Cards: []dashboard.Card{
				{
					JobID:    "job_a",
					Title:    "Backend Engineer",
					Company:  "Initech",
					FitScore: 72,
					Status:   queue.StatusFailed,
					Error:    "generator unavailable",
				},
			},
		})
	})
	srv := newTestDaemonServer(t, mux)

	out, err := runCLI(t, writeCLIConfig(t), srv.URL, "dashboard", "ready")
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	requireContains(t, out, "READY (1)")
	requireContains(t, out, "Backend Engineer")
	requireContains(t, out, "generator unavailable")
}

func TestDaemonErrorSurfaced(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(t, w, http.StatusConflict, map[string]string{"error": "another operation is already running"})
	})
	srv := newTestDaemonServer(t, mux)

	_, err := runCLI(t, writeCLIConfig(t), srv.URL, "generate")
	if err == nil {
		t.Fatal("expected error from conflicting operation")
	}
	requireContains(t, err.Error(), "another operation is already running")
}

func TestDaemonUnreachable(t *testing.T) {
	_, err := runCLI(t, writeCLIConfig(t), "127.0.0.1:1", "status")
	if err == nil {
		t.Fatal("expected error when daemon is down")
	}
	requireContains(t, err.Error(), "daemon unreachable")
}
