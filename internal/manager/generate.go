package manager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"applyq/internal/logging"
	"applyq/internal/queue"
	"applyq/internal/services/resumegen"
)

// GenerateSelected snapshots every selected job into the pending batch and
// launches generation in the background. The snapshot is atomic: batch
// membership is fixed the moment this returns, and jobs selected afterwards
// wait for the next batch. Returns the batch size, or ErrBusy while another
// task is alive.
func (m *Manager) GenerateSelected(ctx context.Context) (int, error) {
	if m.generator == nil {
		return 0, errors.New("manager: no generator configured")
	}

	slot, ok := m.tryAcquire("generate")
	if !ok {
		return 0, ErrBusy
	}

	var batch []string
	err := m.mutate(func(doc *queue.Document) error {
		selected := doc.JobsByStatus(queue.StatusSelected)
		if len(selected) == 0 {
			return errNoChange
		}
		for _, job := range selected {
			if _, err := m.applyAction(doc, job.JobID, queue.ActionEnqueue); err != nil {
				return err
			}
			if job.Tier == "" {
				job.Tier = queue.TierForScore(job.FitScore, m.cfg.Search.FullTierScore)
			}
			batch = append(batch, job.JobID)
		}
		return nil
	})
	if err != nil {
		m.release(slot)
		return 0, fmt.Errorf("start generation: %w", err)
	}
	if len(batch) == 0 {
		m.release(slot)
		return 0, nil
	}

	m.logger.Info("generation batch started", logging.Int("batch_size", len(batch)))
	m.progress.Publish(Event{
		Type:    "batch_started",
		Message: fmt.Sprintf("generating resumes for %d jobs", len(batch)),
	})

	go m.runGeneration(ctx, slot, batch)
	return len(batch), nil
}

// GenerateOne admits a single job for immediate generation, bypassing the
// selection step. The job must hold a description and sit in a status from
// which ad hoc generation is allowed.
func (m *Manager) GenerateOne(ctx context.Context, jobID string) error {
	if m.generator == nil {
		return errors.New("manager: no generator configured")
	}

	slot, ok := m.tryAcquire("generate")
	if !ok {
		return ErrBusy
	}

	err := m.mutate(func(doc *queue.Document) error {
		job, found := doc.Jobs[jobID]
		if !found {
			return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
		}
		if !queue.CanGenerateDirect(job.Status) {
			return fmt.Errorf("job %s: cannot generate from status %s", jobID, job.Status)
		}
		if strings.TrimSpace(job.Description) == "" {
			return fmt.Errorf("job %s: cannot generate without a description", jobID)
		}
		job.Status = queue.StatusQueued
		job.Error = ""
		if job.Tier == "" {
			job.Tier = queue.TierForScore(job.FitScore, m.cfg.Search.FullTierScore)
		}
		job.UpdatedAt = m.now().UTC()
		return nil
	})
	if err != nil {
		m.release(slot)
		return err
	}

	go m.runGeneration(ctx, slot, []string{jobID})
	return nil
}

// runGeneration processes the batch strictly in order, one job at a time.
// Each job's outcome is persisted before the next job starts, so a crash
// leaves at most one job in generating.
func (m *Manager) runGeneration(ctx context.Context, slot *taskSlot, batch []string) {
	defer m.release(slot)
	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithContext(m.logger, "generation batch crashed", "generate_panic",
				logging.Any("panic", r))
		}
	}()

	start := m.now()
	var ready, failed int

	for _, jobID := range batch {
		req, ok := m.beginGeneration(jobID)
		if !ok {
			continue
		}

		m.progress.Publish(Event{
			Type:    "job_generating",
			JobID:   jobID,
			Message: fmt.Sprintf("generating %s resume for %s at %s", req.Tier, req.Title, req.Company),
		})

		result, err := m.generateJob(ctx, req)
		if err != nil {
			failed++
			m.finishGenerationFailure(jobID, err)
			continue
		}
		ready++
		m.finishGenerationSuccess(ctx, jobID, result)
	}

	duration := m.now().Sub(start)
	m.logger.Info("generation batch finished",
		logging.Int("ready", ready),
		logging.Int("failed", failed),
		logging.Duration("duration", duration))
	m.progress.Publish(Event{
		Type:    "batch_completed",
		Message: fmt.Sprintf("batch finished: %d ready, %d failed", ready, failed),
	})
	_ = m.notifier.NotifyGenerationCompleted(ctx, ready, failed, duration)
}

// beginGeneration moves one queued job to generating and captures the
// request the collaborator needs. Jobs no longer queued (canceled between
// snapshot and pickup) are skipped.
func (m *Manager) beginGeneration(jobID string) (resumegen.Request, bool) {
	var req resumegen.Request
	skipped := false
	err := m.mutate(func(doc *queue.Document) error {
		job, found := doc.Jobs[jobID]
		if !found || !queue.CanTransition(job.Status, queue.ActionBegin) {
			skipped = true
			return errNoChange
		}
		if _, err := m.applyAction(doc, jobID, queue.ActionBegin); err != nil {
			return err
		}
		job.Error = ""
		req = resumegen.Request{
			JobID:       job.JobID,
			Title:       job.Title,
			Company:     job.Company,
			Description: job.Description,
			Tier:        job.Tier,
		}
		return nil
	})
	if err != nil {
		logging.ErrorWithContext(m.logger, "failed to start job generation", "generate_begin",
			logging.String(logging.FieldJobID, jobID), logging.Error(err))
		return resumegen.Request{}, false
	}
	if skipped {
		m.logger.Info("skipping job no longer queued", logging.String(logging.FieldJobID, jobID))
		return resumegen.Request{}, false
	}
	return req, true
}

// generateJob invokes the collaborator outside the document lock, converting
// panics into errors so one bad job never takes down the batch.
func (m *Manager) generateJob(ctx context.Context, req resumegen.Request) (result resumegen.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("generation panicked: %v", r)
		}
	}()
	return m.generator.Generate(ctx, req)
}

func (m *Manager) finishGenerationSuccess(ctx context.Context, jobID string, result resumegen.Result) {
	var title, company string
	err := m.mutate(func(doc *queue.Document) error {
		job, aerr := m.applyAction(doc, jobID, queue.ActionSucceed)
		if aerr != nil {
			return aerr
		}
		job.OutputFolder = result.OutputFolder
		job.ResumeScore = result.ResumeScore
		job.Error = ""
		title, company = job.Title, job.Company
		return nil
	})
	if err != nil {
		logging.ErrorWithContext(m.logger, "failed to record generation success", "generate_finalize",
			logging.String(logging.FieldJobID, jobID), logging.Error(err))
		return
	}

	m.logger.Info("job ready",
		logging.String(logging.FieldJobID, jobID),
		logging.String("output_folder", result.OutputFolder),
		logging.Float64("resume_score", result.ResumeScore))
	m.progress.Publish(Event{Type: "job_ready", JobID: jobID, Message: "resume ready"})
	_ = m.notifier.NotifyJobReady(ctx, title, company)
}

func (m *Manager) finishGenerationFailure(jobID string, cause error) {
	message := m.truncateError(cause)
	err := m.mutate(func(doc *queue.Document) error {
		job, aerr := m.applyAction(doc, jobID, queue.ActionFail)
		if aerr != nil {
			return aerr
		}
		job.Error = message
		return nil
	})
	if err != nil {
		logging.ErrorWithContext(m.logger, "failed to record generation failure", "generate_finalize",
			logging.String(logging.FieldJobID, jobID), logging.Error(err))
		return
	}

	logging.WarnWithContext(m.logger, "job generation failed", "generate_failed",
		logging.String(logging.FieldJobID, jobID),
		logging.String("reason", message))
	m.progress.Publish(Event{Type: "job_failed", JobID: jobID, Message: message})
}

// CoverLetter drafts a cover letter for a ready or applied job and writes it
// into the job's output folder.
func (m *Manager) CoverLetter(ctx context.Context, jobID string) (string, error) {
	req, folder, err := m.artifactRequest(jobID)
	if err != nil {
		return "", err
	}

	letter, err := m.generator.CoverLetter(ctx, req)
	if err != nil {
		return "", fmt.Errorf("cover letter for %s: %w", jobID, err)
	}

	path := filepath.Join(folder, resumegen.CoverLetterFileName)
	if err := os.WriteFile(path, []byte(letter+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("write cover letter: %w", err)
	}

	err = m.mutate(func(doc *queue.Document) error {
		job, found := doc.Jobs[jobID]
		if !found {
			return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
		}
		job.HasCoverLetter = true
		job.UpdatedAt = m.now().UTC()
		return nil
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

// OutreachMessage drafts a recruiter outreach message for a ready or applied
// job and writes it into the job's output folder.
func (m *Manager) OutreachMessage(ctx context.Context, jobID string) (string, error) {
	req, folder, err := m.artifactRequest(jobID)
	if err != nil {
		return "", err
	}

	message, err := m.generator.OutreachMessage(ctx, req)
	if err != nil {
		return "", fmt.Errorf("outreach message for %s: %w", jobID, err)
	}

	path := filepath.Join(folder, resumegen.OutreachFileName)
	if err := os.WriteFile(path, []byte(message+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("write outreach message: %w", err)
	}

	err = m.mutate(func(doc *queue.Document) error {
		job, found := doc.Jobs[jobID]
		if !found {
			return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
		}
		job.HasLinkedInMessage = true
		job.UpdatedAt = m.now().UTC()
		return nil
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

// artifactRequest validates that auxiliary artifacts may be generated for the
// job and returns the collaborator request plus the target folder.
func (m *Manager) artifactRequest(jobID string) (resumegen.Request, string, error) {
	if m.generator == nil {
		return resumegen.Request{}, "", errors.New("manager: no generator configured")
	}
	var req resumegen.Request
	var folder string
	err := m.view(func(doc *queue.Document) error {
		job, found := doc.Jobs[jobID]
		if !found {
			return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
		}
		if job.Status != queue.StatusReady && job.Status != queue.StatusApplied {
			return fmt.Errorf("job %s: artifacts require a ready or applied job, status is %s", jobID, job.Status)
		}
		if strings.TrimSpace(job.OutputFolder) == "" {
			return fmt.Errorf("job %s: no output folder recorded", jobID)
		}
		req = resumegen.Request{
			JobID:       job.JobID,
			Title:       job.Title,
			Company:     job.Company,
			Description: job.Description,
			Tier:        job.Tier,
		}
		folder = job.OutputFolder
		return nil
	})
	if err != nil {
		return resumegen.Request{}, "", err
	}
	return req, folder, nil
}
