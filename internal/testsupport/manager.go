package testsupport

import (
	"context"
	"sync"
	"testing"

	"applyq/internal/config"
	"applyq/internal/manager"
	"applyq/internal/queue"
	"applyq/internal/services/jobsearch"
	"applyq/internal/services/resumegen"
)

// StubSearcher returns canned candidates or a canned error. The Release
// channel, when set, blocks Search until closed so tests can hold the
// operation gate open.
type StubSearcher struct {
	mu         sync.Mutex
	Candidates []jobsearch.Candidate
	Err        error
	Release    chan struct{}
	calls      int
}

// Search implements jobsearch.Searcher.
func (s *StubSearcher) Search(ctx context.Context, filters jobsearch.Filters) ([]jobsearch.Candidate, error) {
	s.mu.Lock()
	s.calls++
	release := s.Release
	s.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Candidates, nil
}

// Calls reports how many times Search ran.
func (s *StubSearcher) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// StubGenerator returns per-job canned results keyed by job ID. Jobs without
// an entry succeed with a default result.
type StubGenerator struct {
	mu      sync.Mutex
	Results map[string]resumegen.Result
	Errs    map[string]error
	Release chan struct{}
	order   []string
}

// Generate implements resumegen.Generator.
func (g *StubGenerator) Generate(ctx context.Context, req resumegen.Request) (resumegen.Result, error) {
	g.mu.Lock()
	g.order = append(g.order, req.JobID)
	release := g.Release
	g.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return resumegen.Result{}, ctx.Err()
		}
	}
	if err, found := g.Errs[req.JobID]; found {
		return resumegen.Result{}, err
	}
	if result, found := g.Results[req.JobID]; found {
		return result, nil
	}
	return resumegen.Result{OutputFolder: "/tmp/" + req.JobID, ResumeScore: 80}, nil
}

// CoverLetter implements resumegen.Generator.
func (g *StubGenerator) CoverLetter(ctx context.Context, req resumegen.Request) (string, error) {
	return "Dear hiring team at " + req.Company + ",", nil
}

// OutreachMessage implements resumegen.Generator.
func (g *StubGenerator) OutreachMessage(ctx context.Context, req resumegen.Request) (string, error) {
	return "Hello, I noticed the " + req.Title + " opening.", nil
}

// Order reports the job IDs in the order Generate was invoked.
func (g *StubGenerator) Order() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// ManagerFixture bundles a manager with its collaborator stubs and store.
type ManagerFixture struct {
	Config    *config.Config
	Store     *queue.Store
	Manager   *manager.Manager
	Searcher  *StubSearcher
	Generator *StubGenerator
}

// NewManager builds a manager wired to stub collaborators over a temp store.
func NewManager(t testing.TB, opts ...ConfigOption) *ManagerFixture {
	t.Helper()

	cfg := NewConfig(t, opts...)
	store := MustOpenStore(t, cfg)
	searcher := &StubSearcher{}
	generator := &StubGenerator{}

	mgr, err := manager.New(manager.Options{
		Config:    cfg,
		Store:     store,
		Searcher:  searcher,
		Generator: generator,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	return &ManagerFixture{
		Config:    cfg,
		Store:     store,
		Manager:   mgr,
		Searcher:  searcher,
		Generator: generator,
	}
}
