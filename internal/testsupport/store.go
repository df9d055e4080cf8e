package testsupport

import (
	"testing"
	"time"

	"applyq/internal/config"
	"applyq/internal/logging"
	"applyq/internal/queue"
	"applyq/internal/textutil"
)

// MustOpenStore builds a queue store rooted in the test config's data dir.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()
	return queue.NewStore(cfg.QueuePath(), logging.NewNop())
}

// SeedJob writes a job with the given status directly into the store,
// bypassing the workflow, and returns its ID.
func SeedJob(t testing.TB, store *queue.Store, status queue.Status, mutators ...func(*queue.JobRecord)) string {
	t.Helper()

	doc, err := store.Load()
	if err != nil {
		t.Fatalf("load store: %v", err)
	}
	now := time.Now().UTC()
	jobID := queue.NewJobID(now)
	job := &queue.JobRecord{
		JobID:           jobID,
		Title:           "Test Role",
		Company:         "Test Co",
		FitScore:        75,
		Status:          status,
		Description:     "line one\nline two\nline three",
		DescriptionHash: textutil.DescriptionHash(jobID),
		Source:          "search",
		Seq:             doc.NextSeq(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for _, mutate := range mutators {
		mutate(job)
	}
	doc.Jobs[job.JobID] = job
	if err := store.Save(doc); err != nil {
		t.Fatalf("save store: %v", err)
	}
	return job.JobID
}

// MustLoad reads the current document, failing the test on error.
func MustLoad(t testing.TB, store *queue.Store) *queue.Document {
	t.Helper()
	doc, err := store.Load()
	if err != nil {
		t.Fatalf("load store: %v", err)
	}
	return doc
}
