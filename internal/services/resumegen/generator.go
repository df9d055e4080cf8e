package resumegen

import (
	"context"

	"applyq/internal/queue"
)

// Auxiliary artifact file names, written into a job's output folder.
const (
	CoverLetterFileName = "cover_letter.txt"
	OutreachFileName    = "linkedin_message.txt"
)

// Request describes one tailoring job handed to the generator.
type Request struct {
	JobID       string
	Title       string
	Company     string
	Description string
	Tier        queue.Tier
}

// Result reports where the tailored artifacts landed and how the draft scored.
type Result struct {
	OutputFolder string
	ResumeScore  float64
}

// Generator produces a tailored resume package for one job. Implementations
// must be safe to call from the single generation worker; they are never
// invoked concurrently for the same job.
type Generator interface {
	Generate(ctx context.Context, req Request) (Result, error)
	CoverLetter(ctx context.Context, req Request) (string, error)
	OutreachMessage(ctx context.Context, req Request) (string, error)
}
