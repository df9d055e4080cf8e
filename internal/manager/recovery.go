package manager

import (
	"applyq/internal/logging"
	"applyq/internal/queue"
)

// RecoverInterrupted repairs state left behind by a crash. Jobs stuck in
// generating return to selected with their error cleared so the next batch
// picks them up; runs still marked running are closed as interrupted. Must be
// called once at boot, before any operation is admitted. The document is only
// rewritten when something needed repair.
func (m *Manager) RecoverInterrupted() (jobs, runs int, err error) {
	err = m.mutate(func(doc *queue.Document) error {
		now := m.now().UTC()

		for _, job := range doc.Jobs {
			if !queue.CanTransition(job.Status, queue.ActionRecover) {
				continue
			}
			next, _ := queue.NextStatus(job.Status, queue.ActionRecover)
			job.Status = next
			job.Error = ""
			job.UpdatedAt = now
			jobs++
		}

		for i := range doc.Runs {
			if doc.Runs[i].Status != queue.RunRunning {
				continue
			}
			completed := now
			doc.Runs[i].Status = queue.RunInterrupted
			doc.Runs[i].CompletedAt = &completed
			runs++
		}

		if jobs == 0 && runs == 0 {
			return errNoChange
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	if jobs > 0 || runs > 0 {
		m.logger.Info("recovered interrupted work",
			logging.Int("jobs_reset", jobs),
			logging.Int("runs_interrupted", runs))
	}
	return jobs, runs, nil
}
