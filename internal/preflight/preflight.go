package preflight

import (
	"context"

	"applyq/internal/config"
)

// Result reports the outcome of a single preflight check. Failed checks are
// advisory: the engine still starts, degraded.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))
	results = append(results, CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir))
	results = append(results, CheckDiskSpace("Output disk space", cfg.Paths.OutputDir))

	if cfg.Search.APIKey != "" {
		results = append(results, CheckEndpoint(ctx, "Search API", cfg.Search.BaseURL, cfg.Search.APIKey))
	} else {
		results = append(results, Result{Name: "Search API", Detail: "API key missing"})
	}
	if cfg.Generator.APIKey != "" {
		results = append(results, CheckEndpoint(ctx, "Generator API", cfg.Generator.BaseURL, cfg.Generator.APIKey))
	} else {
		results = append(results, Result{Name: "Generator API", Detail: "API key missing"})
	}

	return results
}
