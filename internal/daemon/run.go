package daemon

import (
	"context"
	"fmt"
	"time"

	"applyq/internal/config"
	"applyq/internal/jdcache"
	"applyq/internal/logging"
	"applyq/internal/manager"
	"applyq/internal/notifications"
	"applyq/internal/queue"
	"applyq/internal/services/jobsearch"
	"applyq/internal/services/resumegen"
)

// Cached JD analyses older than this are dropped at startup.
const jdCacheRetention = 90 * 24 * time.Hour

// Run wires the full engine from configuration and blocks until the context
// is cancelled. Both the daemon binary and the CLI's foreground mode use it.
func Run(ctx context.Context, cfg *config.Config) error {
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}

	store := queue.NewStore(cfg.QueuePath(), logger)

	var cache *jdcache.Cache
	if cfg.JDCache.Enabled {
		cache, err = jdcache.Open(cfg.JDCache.Path)
		if err != nil {
			return fmt.Errorf("open jd cache: %w", err)
		}
		defer cache.Close()

		if pruned, err := cache.Prune(ctx, time.Now().Add(-jdCacheRetention)); err != nil {
			logging.WarnWithContext(logger, "jd cache prune failed", "jdcache_prune",
				logging.Error(err))
		} else if pruned > 0 {
			logger.Info("jd cache pruned", logging.Int("entries_removed", int(pruned)))
		}
		if count, err := cache.Count(ctx); err == nil {
			logger.Info("jd cache ready", logging.Int("entries", int(count)))
		}
	}

	searcher := jobsearch.NewClient(jobsearch.Config{
		APIKey:         cfg.Search.APIKey,
		BaseURL:        cfg.Search.BaseURL,
		TimeoutSeconds: cfg.Search.TimeoutSeconds,
	})
	generator := resumegen.NewClient(resumegen.Config{
		APIKey:         cfg.Generator.APIKey,
		BaseURL:        cfg.Generator.BaseURL,
		Model:          cfg.Generator.Model,
		TimeoutSeconds: cfg.Generator.TimeoutSeconds,
		OutputDir:      cfg.Paths.OutputDir,
	})

	mgr, err := manager.New(manager.Options{
		Config:    cfg,
		Store:     store,
		Searcher:  searcher,
		Generator: generator,
		Cache:     cache,
		Notifier:  notifications.NewService(cfg),
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("build manager: %w", err)
	}

	d, err := New(cfg, store, mgr, logger)
	if err != nil {
		return err
	}
	if err := d.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	d.Stop()
	return nil
}
