package testsupport

import (
	"path/filepath"
	"testing"

	"applyq/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.OutputDir = filepath.Join(base, "output")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Search.APIKey = "test"
	cfg.Generator.APIKey = "test"
	cfg.JDCache.Enabled = false
	cfg.JDCache.Path = filepath.Join(base, "data", "jd_cache.db")

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithMinJDLines overrides the thin-description threshold on the test config.
func WithMinJDLines(lines int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Search.MinJDLines = lines
	}
}

// WithErrorMessageLimit overrides the stored error truncation limit.
func WithErrorMessageLimit(limit int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Workflow.ErrorMessageLimit = limit
	}
}
