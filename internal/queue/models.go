package queue

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle of a job posting in the apply queue.
type Status string

const (
	StatusDiscovered Status = "discovered"
	StatusSelected   Status = "selected"
	StatusQueued     Status = "queued"
	StatusGenerating Status = "generating"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
	StatusApplied    Status = "applied"
	StatusSkipped    Status = "skipped"
	StatusThinJD     Status = "skipped_thin_jd"
)

var allStatuses = []Status{
	StatusDiscovered,
	StatusSelected,
	StatusQueued,
	StatusGenerating,
	StatusReady,
	StatusFailed,
	StatusApplied,
	StatusSkipped,
	StatusThinJD,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Action names a requested job transition.
type Action string

const (
	ActionSelect  Action = "select"
	ActionSkip    Action = "skip"
	ActionEnqueue Action = "enqueue"
	ActionBegin   Action = "begin"
	ActionCancel  Action = "cancel"
	ActionSucceed Action = "succeed"
	ActionFail    Action = "fail"
	ActionRetry   Action = "retry"
	ActionApply   Action = "apply"
	ActionRecover Action = "recover"
)

// transitions is the legal-transition table: for each action, the set of valid
// source statuses and the status each maps to. Any (status, action) pair not
// listed here is illegal and must be rejected without mutation.
var transitions = map[Action]map[Status]Status{
	ActionSelect: {
		StatusDiscovered: StatusSelected,
		StatusSkipped:    StatusSelected,
	},
	ActionSkip: {
		StatusDiscovered: StatusSkipped,
		StatusSelected:   StatusSkipped,
	},
	ActionEnqueue: {
		StatusSelected: StatusQueued,
	},
	ActionBegin: {
		StatusQueued: StatusGenerating,
	},
	ActionCancel: {
		StatusQueued: StatusDiscovered,
	},
	ActionSucceed: {
		StatusGenerating: StatusReady,
	},
	ActionFail: {
		StatusGenerating: StatusFailed,
	},
	ActionRetry: {
		StatusFailed: StatusSelected,
	},
	ActionApply: {
		StatusReady: StatusApplied,
	},
	// Recover is reserved for startup repair of jobs orphaned mid-generation.
	ActionRecover: {
		StatusGenerating: StatusSelected,
	},
}

// CanTransition reports whether action is legal from the given status.
func CanTransition(status Status, action Action) bool {
	_, ok := transitions[action][status]
	return ok
}

// NextStatus returns the destination status for (status, action) when legal.
func NextStatus(status Status, action Action) (Status, bool) {
	next, ok := transitions[action][status]
	return next, ok
}

// directGenerateSources are the statuses from which a single ad hoc generation
// may start, bypassing the batch enqueue step.
var directGenerateSources = map[Status]struct{}{
	StatusDiscovered: {},
	StatusSelected:   {},
	StatusFailed:     {},
	StatusQueued:     {},
}

// CanGenerateDirect reports whether a single-job generation may start from status.
func CanGenerateDirect(status Status) bool {
	_, ok := directGenerateSources[status]
	return ok
}

// Tier selects generation depth: full runs the research-enabled pipeline, fast
// the cheap one.
type Tier string

const (
	TierFull Tier = "full"
	TierFast Tier = "fast"
)

// TierForScore derives the generation tier from a fit score and the
// configured full-tier threshold.
func TierForScore(fitScore float64, fullThreshold int) Tier {
	if fitScore >= float64(fullThreshold) {
		return TierFull
	}
	return TierFast
}

// RunStatus represents the lifecycle of a search run.
type RunStatus string

const (
	RunRunning     RunStatus = "running"
	RunCompleted   RunStatus = "completed"
	RunFailed      RunStatus = "failed"
	RunInterrupted RunStatus = "interrupted"
)

// RunRecord captures one invocation of the search pipeline. Once a run reaches
// a terminal status it is never mutated again.
type RunRecord struct {
	RunID       string         `json:"run_id"`
	Type        string         `json:"type"`
	Status      RunStatus      `json:"status"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	JobsFound   int            `json:"jobs_found"`
	JobsNew     int            `json:"jobs_new"`
	Error       string         `json:"error,omitempty"`
	Filters     map[string]any `json:"filters,omitempty"`
}

// JobRecord captures one discovered posting and its progress toward an
// application artifact. Description is never cleared once set; a failed job
// without a description can never be retried.
type JobRecord struct {
	JobID           string  `json:"job_id"`
	RunID           string  `json:"run_id,omitempty"`
	Title           string  `json:"title"`
	Company         string  `json:"company"`
	Location        string  `json:"location,omitempty"`
	JobURL          string  `json:"job_url,omitempty"`
	FitScore        float64 `json:"fit_score"`
	Recommendation  string  `json:"recommendation,omitempty"`
	Tier            Tier    `json:"tier,omitempty"`
	Status          Status  `json:"status"`
	SkipReason      string  `json:"skip_reason,omitempty"`
	Description     string  `json:"description,omitempty"`
	DescriptionHash string  `json:"description_hash,omitempty"`
	Publisher       string  `json:"job_publisher,omitempty"`
	PostedDaysAgo   *int    `json:"posted_days_ago,omitempty"`
	Source          string  `json:"source,omitempty"`

	OutputFolder       string  `json:"output_folder,omitempty"`
	ResumeScore        float64 `json:"resume_score,omitempty"`
	Error              string  `json:"error,omitempty"`
	HasCoverLetter     bool    `json:"has_cover_letter,omitempty"`
	HasLinkedInMessage bool    `json:"has_linkedin_message,omitempty"`

	Seq       int64     `json:"seq"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Document is the full persisted apply queue state.
type Document struct {
	Runs    []RunRecord           `json:"runs"`
	Jobs    map[string]*JobRecord `json:"jobs"`
	LastSeq int64                 `json:"last_seq,omitempty"`
}

// NewDocument returns an empty queue document.
func NewDocument() *Document {
	return &Document{Runs: []RunRecord{}, Jobs: map[string]*JobRecord{}}
}

// Run returns the run with the given ID, or nil.
func (d *Document) Run(runID string) *RunRecord {
	for i := range d.Runs {
		if d.Runs[i].RunID == runID {
			return &d.Runs[i]
		}
	}
	return nil
}

// LatestCompletedSearchRun returns the most recently appended completed search
// run, or nil when none exists.
func (d *Document) LatestCompletedSearchRun() *RunRecord {
	for i := len(d.Runs) - 1; i >= 0; i-- {
		if d.Runs[i].Type == "search" && d.Runs[i].Status == RunCompleted {
			return &d.Runs[i]
		}
	}
	return nil
}

// NextSeq allocates the next insertion-order sequence number.
func (d *Document) NextSeq() int64 {
	d.LastSeq++
	return d.LastSeq
}

// JobsByStatus returns jobs matching any of the given statuses, sorted by the
// dashboard key.
func (d *Document) JobsByStatus(statuses ...Status) []*JobRecord {
	want := make(map[Status]struct{}, len(statuses))
	for _, status := range statuses {
		want[status] = struct{}{}
	}
	var jobs []*JobRecord
	for _, job := range d.Jobs {
		if _, ok := want[job.Status]; ok {
			jobs = append(jobs, job)
		}
	}
	SortJobs(jobs)
	return jobs
}

// NonSkippedHashes returns the description hashes of all jobs whose status is
// not skipped. A skipped job's hash intentionally does not block re-discovery.
func (d *Document) NonSkippedHashes() map[string]struct{} {
	hashes := make(map[string]struct{}, len(d.Jobs))
	for _, job := range d.Jobs {
		if job.Status == StatusSkipped {
			continue
		}
		if job.DescriptionHash != "" {
			hashes[job.DescriptionHash] = struct{}{}
		}
	}
	return hashes
}

// SortJobs orders jobs by the deterministic dashboard key: fit score
// descending, ties broken by insertion order.
func SortJobs(jobs []*JobRecord) {
	sort.SliceStable(jobs, func(i, j int) bool {
		if jobs[i].FitScore != jobs[j].FitScore {
			return jobs[i].FitScore > jobs[j].FitScore
		}
		return jobs[i].Seq < jobs[j].Seq
	})
}

// NewRunID generates a search run identifier: a timestamp for operator
// readability plus a random suffix for uniqueness.
func NewRunID(now time.Time) string {
	return "run_" + now.Format("20060102_150405") + "_" + uuid.NewString()[:6]
}

// NewJobID generates a job identifier with a date prefix and random suffix.
func NewJobID(now time.Time) string {
	return "apply_" + now.Format("20060102") + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
