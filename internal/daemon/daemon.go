package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"

	"applyq/internal/config"
	"applyq/internal/logging"
	"applyq/internal/manager"
	"applyq/internal/notifications"
	"applyq/internal/queue"
	"applyq/internal/services/jobsearch"
)

// Daemon hosts the apply queue engine: it enforces single-instance execution,
// repairs interrupted state at boot, serves the HTTP API, and runs the
// optional search schedule.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *queue.Store
	manager *manager.Manager

	lockPath string
	lock     *flock.Flock

	api  *apiServer
	cron *cron.Cron

	running atomic.Bool
	runCtx  context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool   `json:"running"`
	ActiveTask   string `json:"active_task,omitempty"`
	QueuePath    string `json:"queue_path"`
	LockFilePath string `json:"lock_file_path"`
	APIAddress   string `json:"api_address,omitempty"`
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, mgr *manager.Manager, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || mgr == nil {
		return nil, errors.New("daemon requires config, store, and manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "applyqd.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		manager:  mgr,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}

	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the instance lock, repairs interrupted state, and brings up
// the API server and search schedule.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another applyq daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.runCtx = runCtx
	d.cancel = cancel

	jobs, runs, err := d.manager.RecoverInterrupted()
	if err != nil {
		_ = d.lock.Unlock()
		cancel()
		d.cancel = nil
		return fmt.Errorf("recover interrupted state: %w", err)
	}
	if jobs > 0 || runs > 0 {
		d.logger.Info("boot recovery complete",
			logging.Int("jobs_reset", jobs),
			logging.Int("runs_interrupted", runs))
	}

	if err := d.api.start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		d.cancel = nil
		return err
	}

	if err := d.startSchedule(runCtx); err != nil {
		d.api.stop()
		_ = d.lock.Unlock()
		cancel()
		d.cancel = nil
		return err
	}

	d.running.Store(true)
	d.logger.Info("applyq daemon started", logging.String("lock", d.lockPath))
	return nil
}

// startSchedule arms the cron-driven search when one is configured. A tick
// that fires while another operation runs is skipped, not queued.
func (d *Daemon) startSchedule(ctx context.Context) error {
	schedule := strings.TrimSpace(d.cfg.Search.Schedule)
	if schedule == "" {
		return nil
	}

	d.cron = cron.New()
	_, err := d.cron.AddFunc(schedule, func() {
		runID, err := d.manager.StartSearch(ctx, d.defaultFilters())
		if errors.Is(err, manager.ErrBusy) {
			d.logger.Info("scheduled search skipped, engine busy")
			return
		}
		if err != nil {
			logging.ErrorWithContext(d.logger, "scheduled search failed to start", "schedule",
				logging.Error(err))
			return
		}
		d.logger.Info("scheduled search started", logging.String(logging.FieldRunID, runID))
	})
	if err != nil {
		return fmt.Errorf("arm search schedule: %w", err)
	}
	d.cron.Start()
	d.logger.Info("search schedule armed", logging.String("schedule", schedule))
	return nil
}

// backgroundContext returns the daemon's long-lived run context for detached
// operations. Request contexts must never reach background work: net/http
// cancels them the moment the handler returns.
func (d *Daemon) backgroundContext() context.Context {
	if d.runCtx != nil {
		return d.runCtx
	}
	return context.Background()
}

func (d *Daemon) defaultFilters() jobsearch.Filters {
	return jobsearch.Filters{
		DatePosted: d.cfg.Search.DatePosted,
		NumPages:   d.cfg.Search.NumPages,
		MinScore:   d.cfg.Search.MinScore,
		SortBy:     d.cfg.Search.SortBy,
	}
}

// Stop halts the schedule and API server, waits for the in-flight task, and
// releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cron != nil {
		<-d.cron.Stop().Done()
		d.cron = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.manager.Wait()

	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "shutdown",
			logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("applyq daemon stopped")
}

// Close stops the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// TestNotification triggers a test push using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(d.cfg)
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	status := Status{
		Running:      d.running.Load(),
		QueuePath:    d.cfg.QueuePath(),
		LockFilePath: d.lockPath,
		APIAddress:   d.api.address(),
	}
	if task, busy := d.manager.ActiveTask(); busy {
		status.ActiveTask = task
	}
	return status
}
