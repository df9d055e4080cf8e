package manager

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"applyq/internal/config"
	"applyq/internal/jdcache"
	"applyq/internal/logging"
	"applyq/internal/notifications"
	"applyq/internal/queue"
	"applyq/internal/services/jobsearch"
	"applyq/internal/services/resumegen"
	"applyq/internal/textutil"
)

// ErrBusy is returned when a search or generation task is already running.
// The single active operation gate exists because both collaborators are
// expensive and share rate-limited upstream credentials.
var ErrBusy = errors.New("another operation is already running")

// ErrJobNotFound is returned for operations targeting an unknown job ID.
var ErrJobNotFound = errors.New("job not found")

// TransitionError reports an illegal job transition. The document is never
// mutated when one is returned.
type TransitionError struct {
	JobID  string
	From   queue.Status
	Action queue.Action
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("job %s: illegal transition %s from %s", e.JobID, e.Action, e.From)
}

// errNoChange signals a mutation callback that decided not to modify the
// document; mutate treats it as success without rewriting the store.
var errNoChange = errors.New("no change")

// Manager owns the apply queue document and serializes every state change
// through a single mutex. Collaborator calls always happen outside the lock.
type Manager struct {
	cfg       *config.Config
	store     *queue.Store
	searcher  jobsearch.Searcher
	generator resumegen.Generator
	cache     *jdcache.Cache
	notifier  notifications.Service
	logger    *slog.Logger
	progress  *Broadcaster

	mu sync.Mutex

	taskMu sync.Mutex
	active *taskSlot

	now func() time.Time
}

// Options carries the collaborators a Manager needs. Searcher and Generator
// are interfaces so tests substitute stubs; Cache and Notifier may be nil.
type Options struct {
	Config    *config.Config
	Store     *queue.Store
	Searcher  jobsearch.Searcher
	Generator resumegen.Generator
	Cache     *jdcache.Cache
	Notifier  notifications.Service
	Logger    *slog.Logger
}

// New constructs a Manager from its collaborators.
func New(opts Options) (*Manager, error) {
	if opts.Config == nil {
		return nil, errors.New("manager: config required")
	}
	if opts.Store == nil {
		return nil, errors.New("manager: store required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifications.NewService(opts.Config)
	}
	bufferSize := opts.Config.Workflow.ProgressBufferSize
	return &Manager{
		cfg:       opts.Config,
		store:     opts.Store,
		searcher:  opts.Searcher,
		generator: opts.Generator,
		cache:     opts.Cache,
		notifier:  notifier,
		logger:    logging.NewComponentLogger(logger, "manager"),
		progress:  NewBroadcaster(bufferSize),
		now:       time.Now,
	}, nil
}

// Progress exposes the in-memory progress broadcaster.
func (m *Manager) Progress() *Broadcaster {
	return m.progress
}

// mutate runs fn against the freshly loaded document and persists the result.
// The load-mutate-save triplet holds the mutex for its entire duration, so a
// callback observes no concurrent writes and its changes land atomically.
func (m *Manager) mutate(fn func(doc *queue.Document) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.store.Load()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		if errors.Is(err, errNoChange) {
			return nil
		}
		return err
	}
	return m.store.Save(doc)
}

// view runs fn against a freshly loaded document without persisting anything.
func (m *Manager) view(fn func(doc *queue.Document) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.store.Load()
	if err != nil {
		return err
	}
	return fn(doc)
}

// Snapshot returns the current document for read-only projection. The caller
// owns the returned value; it is never shared with the manager.
func (m *Manager) Snapshot() (*queue.Document, error) {
	var snapshot *queue.Document
	err := m.view(func(doc *queue.Document) error {
		snapshot = doc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// Job returns a copy of the job with the given ID.
func (m *Manager) Job(jobID string) (queue.JobRecord, error) {
	var record queue.JobRecord
	err := m.view(func(doc *queue.Document) error {
		job, ok := doc.Jobs[jobID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
		}
		record = *job
		return nil
	})
	return record, err
}

// applyAction performs a single legal transition on the job, updating its
// timestamp. It must run inside a mutate callback.
func (m *Manager) applyAction(doc *queue.Document, jobID string, action queue.Action) (*queue.JobRecord, error) {
	job, ok := doc.Jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	next, ok := queue.NextStatus(job.Status, action)
	if !ok {
		return nil, &TransitionError{JobID: jobID, From: job.Status, Action: action}
	}
	job.Status = next
	job.UpdatedAt = m.now().UTC()
	return job, nil
}

// SelectJobs marks the given jobs selected for generation. The whole batch is
// rejected without mutation when any transition is illegal.
func (m *Manager) SelectJobs(jobIDs []string) error {
	if len(jobIDs) == 0 {
		return nil
	}
	return m.mutate(func(doc *queue.Document) error {
		for _, jobID := range jobIDs {
			job, err := m.applyAction(doc, jobID, queue.ActionSelect)
			if err != nil {
				return err
			}
			job.SkipReason = ""
		}
		return nil
	})
}

// Skip removes a job from consideration, recording an optional reason.
func (m *Manager) Skip(jobID, reason string) error {
	return m.mutate(func(doc *queue.Document) error {
		job, err := m.applyAction(doc, jobID, queue.ActionSkip)
		if err != nil {
			return err
		}
		job.SkipReason = strings.TrimSpace(reason)
		return nil
	})
}

// MarkApplied records that the user submitted the application for a ready job.
func (m *Manager) MarkApplied(jobID string) error {
	return m.mutate(func(doc *queue.Document) error {
		_, err := m.applyAction(doc, jobID, queue.ActionApply)
		return err
	})
}

// Cancel pulls a queued job back out of the pending batch before its
// generation starts. Jobs already generating cannot be canceled.
func (m *Manager) Cancel(jobID string) error {
	return m.mutate(func(doc *queue.Document) error {
		_, err := m.applyAction(doc, jobID, queue.ActionCancel)
		return err
	})
}

// Retry returns a failed job to the selected pool, clearing its error so the
// next batch picks it up.
func (m *Manager) Retry(jobID string) error {
	return m.mutate(func(doc *queue.Document) error {
		job, err := m.applyAction(doc, jobID, queue.ActionRetry)
		if err != nil {
			return err
		}
		if strings.TrimSpace(job.Description) == "" {
			// Generation cannot run without the posting text.
			return fmt.Errorf("job %s: cannot retry without a description", jobID)
		}
		job.Error = ""
		return nil
	})
}

// ExternalJob describes an application package produced outside the engine.
type ExternalJob struct {
	Title        string
	Company      string
	JobURL       string
	OutputFolder string
	ResumeScore  float64
	Source       string
}

// RegisterExternalJob admits an externally produced application package as a
// ready job. Registration is idempotent on (output folder, source): repeats
// return the existing job ID without touching the document.
func (m *Manager) RegisterExternalJob(ext ExternalJob) (string, error) {
	folder := strings.TrimSpace(ext.OutputFolder)
	if folder == "" {
		return "", errors.New("register external job: output folder required")
	}
	source := strings.TrimSpace(ext.Source)
	if source == "" {
		source = "external"
	}

	var jobID string
	err := m.mutate(func(doc *queue.Document) error {
		for _, job := range doc.Jobs {
			if job.OutputFolder == folder && job.Source == source {
				jobID = job.JobID
				return errNoChange
			}
		}
		now := m.now().UTC()
		jobID = queue.NewJobID(now)
		doc.Jobs[jobID] = &queue.JobRecord{
			JobID:        jobID,
			Title:        textutil.CleanTitle(ext.Title),
			Company:      textutil.CleanTitle(ext.Company),
			JobURL:       ext.JobURL,
			Status:       queue.StatusReady,
			OutputFolder: folder,
			ResumeScore:  ext.ResumeScore,
			Source:       source,
			Seq:          doc.NextSeq(),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return jobID, nil
}

// truncateError bounds stored collaborator error text so a pathological
// upstream response cannot bloat the document.
func (m *Manager) truncateError(err error) string {
	if err == nil {
		return ""
	}
	limit := m.cfg.Workflow.ErrorMessageLimit
	if limit <= 0 {
		limit = 500
	}
	return textutil.Truncate(err.Error(), limit)
}
