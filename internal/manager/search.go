package manager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"applyq/internal/jdcache"
	"applyq/internal/logging"
	"applyq/internal/queue"
	"applyq/internal/services/jobsearch"
	"applyq/internal/textutil"
)

// StartSearch admits a search run and launches it in the background. The run
// record is persisted as running before the collaborator is called, so a
// crash mid-search leaves a record recovery can mark interrupted. Returns
// ErrBusy while another search or generation task is alive.
func (m *Manager) StartSearch(ctx context.Context, filters jobsearch.Filters) (string, error) {
	if m.searcher == nil {
		return "", errors.New("manager: no search client configured")
	}

	slot, ok := m.tryAcquire("search")
	if !ok {
		return "", ErrBusy
	}

	runID := queue.NewRunID(m.now())
	err := m.mutate(func(doc *queue.Document) error {
		doc.Runs = append(doc.Runs, queue.RunRecord{
			RunID:     runID,
			Type:      "search",
			Status:    queue.RunRunning,
			StartedAt: m.now().UTC(),
			Filters:   filters.Map(),
		})
		return nil
	})
	if err != nil {
		m.release(slot)
		return "", fmt.Errorf("start search: %w", err)
	}

	m.logger.Info("search run started", logging.String(logging.FieldRunID, runID))
	m.progress.Publish(Event{Type: "search_started", RunID: runID, Message: "search started"})
	_ = m.notifier.NotifySearchStarted(ctx, runID)

	go m.runSearch(ctx, slot, runID, filters)
	return runID, nil
}

func (m *Manager) runSearch(ctx context.Context, slot *taskSlot, runID string, filters jobsearch.Filters) {
	defer m.release(slot)
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("search task panicked: %v", r)
			logging.ErrorWithContext(m.logger, "search run crashed", "search_panic",
				logging.String(logging.FieldRunID, runID), logging.Error(err))
			m.finalizeSearchFailure(ctx, runID, err)
		}
	}()

	candidates, err := m.searcher.Search(ctx, filters)
	if err != nil {
		m.finalizeSearchFailure(ctx, runID, err)
		return
	}

	m.hydrateFromCache(ctx, candidates)

	found := len(candidates)
	var discovered, thin int
	err = m.mutate(func(doc *queue.Document) error {
		seen := doc.NonSkippedHashes()
		now := m.now().UTC()
		for _, candidate := range candidates {
			hash := candidate.DescriptionHash
			if hash == "" {
				hash = textutil.DescriptionHash(candidate.Description)
			}
			if _, dup := seen[hash]; dup {
				continue
			}
			seen[hash] = struct{}{}

			job := &queue.JobRecord{
				JobID:           queue.NewJobID(now),
				RunID:           runID,
				Title:           candidate.Title,
				Company:         candidate.Company,
				Location:        candidate.Location,
				JobURL:          candidate.JobURL,
				FitScore:        candidate.FitScore,
				Recommendation:  candidate.Recommendation,
				Description:     candidate.Description,
				DescriptionHash: hash,
				Publisher:       candidate.Publisher,
				PostedDaysAgo:   candidate.PostedDaysAgo,
				Source:          "search",
				Seq:             doc.NextSeq(),
				CreatedAt:       now,
				UpdatedAt:       now,
			}

			if lines := textutil.CountNonBlankLines(candidate.Description); lines < m.cfg.Search.MinJDLines {
				job.Status = queue.StatusThinJD
				job.SkipReason = fmt.Sprintf("job description too short (%d non-blank lines, minimum %d)",
					lines, m.cfg.Search.MinJDLines)
				thin++
			} else {
				job.Status = queue.StatusDiscovered
				job.Tier = queue.TierForScore(candidate.FitScore, m.cfg.Search.FullTierScore)
				discovered++
			}

			doc.Jobs[job.JobID] = job
		}

		run := doc.Run(runID)
		if run == nil {
			return fmt.Errorf("search run %s missing from document", runID)
		}
		completed := m.now().UTC()
		run.Status = queue.RunCompleted
		run.CompletedAt = &completed
		run.JobsFound = found
		// Thin-JD quarantined admissions are visible as jobs but do not count
		// as new discoveries.
		run.JobsNew = discovered
		return nil
	})
	if err != nil {
		logging.ErrorWithContext(m.logger, "search ingestion failed", "search_ingest",
			logging.String(logging.FieldRunID, runID), logging.Error(err))
		m.finalizeSearchFailure(ctx, runID, err)
		return
	}

	m.cacheCandidates(ctx, candidates)

	m.logger.Info("search run completed",
		logging.String(logging.FieldRunID, runID),
		logging.Int("jobs_found", found),
		logging.Int("jobs_new", discovered),
		logging.Int("jobs_thin", thin))
	m.progress.Publish(Event{
		Type:    "search_completed",
		RunID:   runID,
		Message: fmt.Sprintf("search finished: %d found, %d new", found, discovered),
	})
	_ = m.notifier.NotifySearchCompleted(ctx, runID, found, discovered)
}

// finalizeSearchFailure marks the run failed with a bounded error message.
// Nothing is admitted from a failed run.
func (m *Manager) finalizeSearchFailure(ctx context.Context, runID string, cause error) {
	message := m.truncateError(cause)
	err := m.mutate(func(doc *queue.Document) error {
		run := doc.Run(runID)
		if run == nil {
			return errNoChange
		}
		completed := m.now().UTC()
		run.Status = queue.RunFailed
		run.CompletedAt = &completed
		run.Error = message
		return nil
	})
	if err != nil {
		logging.ErrorWithContext(m.logger, "failed to record search failure", "search_finalize",
			logging.String(logging.FieldRunID, runID), logging.Error(err))
	}

	logging.ErrorWithContext(m.logger, "search run failed", "search_failed",
		logging.String(logging.FieldRunID, runID),
		logging.String("reason", message))
	m.progress.Publish(Event{Type: "search_failed", RunID: runID, Message: message})
	_ = m.notifier.NotifySearchFailed(ctx, runID, message)
}

// hydrateFromCache backfills candidates the search service returned without
// an analysis from earlier cached runs. Cache errors and misses are silent;
// an unscored candidate is simply admitted as-is.
func (m *Manager) hydrateFromCache(ctx context.Context, candidates []jobsearch.Candidate) {
	if m.cache == nil {
		return
	}
	for i := range candidates {
		candidate := &candidates[i]
		if candidate.FitScore > 0 || candidate.Recommendation != "" {
			continue
		}
		if candidate.DescriptionHash == "" {
			candidate.DescriptionHash = textutil.DescriptionHash(candidate.Description)
		}
		entry, found, err := m.cache.Get(ctx, candidate.DescriptionHash)
		if err != nil || !found {
			continue
		}
		candidate.FitScore = entry.FitScore
		candidate.Recommendation = entry.Recommendation
	}
}

// cacheCandidates records every fetched description analysis in the JD cache.
// Cache failures are logged and otherwise ignored.
func (m *Manager) cacheCandidates(ctx context.Context, candidates []jobsearch.Candidate) {
	if m.cache == nil {
		return
	}
	for _, candidate := range candidates {
		hash := candidate.DescriptionHash
		if hash == "" {
			continue
		}
		entry := jdcache.Entry{
			Hash:           hash,
			Title:          candidate.Title,
			Company:        candidate.Company,
			LineCount:      textutil.CountNonBlankLines(candidate.Description),
			FitScore:       candidate.FitScore,
			Recommendation: candidate.Recommendation,
			CachedAt:       time.Now(),
		}
		if err := m.cache.Put(ctx, entry); err != nil {
			logging.WarnWithContext(m.logger, "jd cache write failed", "jdcache_put",
				logging.String("hash", hash), logging.Error(err))
		}
	}
}
