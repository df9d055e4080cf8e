package dashboard_test

import (
	"testing"
	"time"

	"applyq/internal/dashboard"
	"applyq/internal/queue"
)

func seedDoc() *queue.Document {
	doc := queue.NewDocument()
	completedOld := time.Now().Add(-2 * time.Hour)
	completedNew := time.Now().Add(-time.Minute)
	doc.Runs = []queue.RunRecord{
		{RunID: "run_old", Type: "search", Status: queue.RunCompleted, CompletedAt: &completedOld},
		{RunID: "run_new", Type: "search", Status: queue.RunCompleted, CompletedAt: &completedNew},
		{RunID: "run_failed", Type: "search", Status: queue.RunFailed},
	}

	add := func(id string, status queue.Status, score float64, runID string) {
		doc.Jobs[id] = &queue.JobRecord{
			JobID:    id,
			Title:    "Role " + id,
			Company:  "Co",
			FitScore: score,
			Status:   status,
			RunID:    runID,
			Seq:      doc.NextSeq(),
		}
	}
	add("j1", queue.StatusDiscovered, 90, "run_new")
	add("j2", queue.StatusDiscovered, 70, "run_old")
	add("j3", queue.StatusSelected, 85, "run_old")
	add("j4", queue.StatusReady, 95, "run_old")
	add("j5", queue.StatusFailed, 50, "run_old")
	add("j6", queue.StatusApplied, 88, "run_old")
	add("j7", queue.StatusSkipped, 40, "run_old")
	add("j8", queue.StatusThinJD, 99, "run_new")
	return doc
}

func TestProjectCountsAndViews(t *testing.T) {
	doc := seedDoc()
	snapshot := dashboard.Project(doc)

	if snapshot.Total != 8 {
		t.Fatalf("expected total 8, got %d", snapshot.Total)
	}
	if snapshot.Counts[queue.StatusDiscovered] != 2 {
		t.Fatalf("expected 2 discovered, got %d", snapshot.Counts[queue.StatusDiscovered])
	}
	if snapshot.Counts[queue.StatusGenerating] != 0 {
		t.Fatalf("expected zero count present for empty status")
	}
	if snapshot.LatestRun == nil || snapshot.LatestRun.RunID != "run_new" {
		t.Fatalf("expected latest completed run run_new, got %+v", snapshot.LatestRun)
	}
	if len(snapshot.Views) != 4 {
		t.Fatalf("expected 4 views, got %d", len(snapshot.Views))
	}
}

func TestProjectViewBuckets(t *testing.T) {
	doc := seedDoc()

	discover, err := dashboard.ProjectView(doc, dashboard.ViewDiscover)
	if err != nil {
		t.Fatalf("ProjectView returned error: %v", err)
	}
	if len(discover.Cards) != 3 {
		t.Fatalf("expected 3 discover cards, got %d", len(discover.Cards))
	}

	ready, _ := dashboard.ProjectView(doc, dashboard.ViewReady)
	if len(ready.Cards) != 2 {
		t.Fatalf("expected 2 ready cards (ready + failed), got %d", len(ready.Cards))
	}

	skipped, _ := dashboard.ProjectView(doc, dashboard.ViewSkipped)
	if len(skipped.Cards) != 2 {
		t.Fatalf("expected 2 skipped cards, got %d", len(skipped.Cards))
	}
}

func TestProjectSortsByFitScoreThenInsertion(t *testing.T) {
	doc := seedDoc()
	discover, _ := dashboard.ProjectView(doc, dashboard.ViewDiscover)

	if discover.Cards[0].JobID != "j1" || discover.Cards[1].JobID != "j3" || discover.Cards[2].JobID != "j2" {
		t.Fatalf("unexpected order: %s %s %s",
			discover.Cards[0].JobID, discover.Cards[1].JobID, discover.Cards[2].JobID)
	}
}

func TestProjectFlagsNewJobsAgainstLatestCompletedRun(t *testing.T) {
	doc := seedDoc()
	discover, _ := dashboard.ProjectView(doc, dashboard.ViewDiscover)

	for _, card := range discover.Cards {
		wantNew := card.JobID == "j1"
		if card.IsNew != wantNew {
			t.Fatalf("job %s: expected is_new=%v", card.JobID, wantNew)
		}
	}
}

func TestProjectViewRejectsUnknownName(t *testing.T) {
	if _, err := dashboard.ProjectView(queue.NewDocument(), dashboard.ViewName("bogus")); err == nil {
		t.Fatal("expected error for unknown view")
	}
	if _, err := dashboard.ParseViewName("applied"); err != nil {
		t.Fatalf("ParseViewName returned error: %v", err)
	}
}

func TestProjectEmptyDocument(t *testing.T) {
	snapshot := dashboard.Project(queue.NewDocument())
	if snapshot.Total != 0 || snapshot.LatestRun != nil {
		t.Fatalf("unexpected snapshot for empty doc: %+v", snapshot)
	}
}
