package dashboard

import (
	"fmt"
	"time"

	"applyq/internal/queue"
)

// ViewName identifies one of the dashboard's job lists.
type ViewName string

const (
	ViewDiscover ViewName = "discover"
	ViewReady    ViewName = "ready"
	ViewApplied  ViewName = "applied"
	ViewSkipped  ViewName = "skipped"
)

// viewStatuses maps each view to the statuses it shows. The ready view folds
// in-flight work in so the user watches a batch progress on one screen.
var viewStatuses = map[ViewName][]queue.Status{
	ViewDiscover: {queue.StatusDiscovered, queue.StatusSelected},
	ViewReady:    {queue.StatusQueued, queue.StatusGenerating, queue.StatusReady, queue.StatusFailed},
	ViewApplied:  {queue.StatusApplied},
	ViewSkipped:  {queue.StatusSkipped, queue.StatusThinJD},
}

// ViewNames returns the dashboard views in display order.
func ViewNames() []ViewName {
	return []ViewName{ViewDiscover, ViewReady, ViewApplied, ViewSkipped}
}

// ParseViewName converts a string into a known view name.
func ParseViewName(value string) (ViewName, error) {
	name := ViewName(value)
	if _, ok := viewStatuses[name]; !ok {
		return "", fmt.Errorf("unknown dashboard view %q", value)
	}
	return name, nil
}

// Card is one job row projected for display.
type Card struct {
	JobID              string       `json:"job_id"`
	Title              string       `json:"title"`
	Company            string       `json:"company"`
	Location           string       `json:"location,omitempty"`
	JobURL             string       `json:"job_url,omitempty"`
	FitScore           float64      `json:"fit_score"`
	Recommendation     string       `json:"recommendation,omitempty"`
	Tier               queue.Tier   `json:"tier,omitempty"`
	Status             queue.Status `json:"status"`
	SkipReason         string       `json:"skip_reason,omitempty"`
	OutputFolder       string       `json:"output_folder,omitempty"`
	ResumeScore        float64      `json:"resume_score,omitempty"`
	Error              string       `json:"error,omitempty"`
	HasCoverLetter     bool         `json:"has_cover_letter,omitempty"`
	HasLinkedInMessage bool         `json:"has_linkedin_message,omitempty"`
	IsNew              bool         `json:"is_new,omitempty"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// View is one projected job list.
type View struct {
	Name  ViewName `json:"name"`
	Cards []Card   `json:"cards"`
}

// Snapshot is the full dashboard projection: per-status counts, the most
// recent completed search run, and every view.
type Snapshot struct {
	Counts    map[queue.Status]int `json:"counts"`
	Total     int                  `json:"total"`
	LatestRun *queue.RunRecord     `json:"latest_run,omitempty"`
	Views     []View               `json:"views"`
}

// Project builds the dashboard snapshot from the document. It never mutates
// its input.
func Project(doc *queue.Document) Snapshot {
	latest := doc.LatestCompletedSearchRun()

	counts := make(map[queue.Status]int, len(queue.AllStatuses()))
	for _, status := range queue.AllStatuses() {
		counts[status] = 0
	}
	for _, job := range doc.Jobs {
		counts[job.Status]++
	}

	snapshot := Snapshot{
		Counts: counts,
		Total:  len(doc.Jobs),
	}
	if latest != nil {
		run := *latest
		snapshot.LatestRun = &run
	}
	for _, name := range ViewNames() {
		snapshot.Views = append(snapshot.Views, projectView(doc, name, latest))
	}
	return snapshot
}

// ProjectView builds a single named view.
func ProjectView(doc *queue.Document, name ViewName) (View, error) {
	if _, ok := viewStatuses[name]; !ok {
		return View{}, fmt.Errorf("unknown dashboard view %q", name)
	}
	return projectView(doc, name, doc.LatestCompletedSearchRun()), nil
}

func projectView(doc *queue.Document, name ViewName, latest *queue.RunRecord) View {
	jobs := doc.JobsByStatus(viewStatuses[name]...)
	view := View{Name: name, Cards: make([]Card, 0, len(jobs))}
	for _, job := range jobs {
		view.Cards = append(view.Cards, projectCard(job, latest))
	}
	return view
}

func projectCard(job *queue.JobRecord, latest *queue.RunRecord) Card {
	return Card{
		JobID:              job.JobID,
		Title:              job.Title,
		Company:            job.Company,
		Location:           job.Location,
		JobURL:             job.JobURL,
		FitScore:           job.FitScore,
		Recommendation:     job.Recommendation,
		Tier:               job.Tier,
		Status:             job.Status,
		SkipReason:         job.SkipReason,
		OutputFolder:       job.OutputFolder,
		ResumeScore:        job.ResumeScore,
		Error:              job.Error,
		HasCoverLetter:     job.HasCoverLetter,
		HasLinkedInMessage: job.HasLinkedInMessage,
		IsNew:              latest != nil && job.RunID == latest.RunID,
		UpdatedAt:          job.UpdatedAt,
	}
}
