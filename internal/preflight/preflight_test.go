package preflight_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"applyq/internal/preflight"
	"applyq/internal/testsupport"
)

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()
	result := preflight.CheckDirectoryAccess("Output directory", dir)
	if !result.Passed {
		t.Fatalf("expected pass for writable dir, got %+v", result)
	}

	missing := preflight.CheckDirectoryAccess("Output directory", filepath.Join(dir, "absent"))
	if missing.Passed {
		t.Fatalf("expected failure for missing dir, got %+v", missing)
	}
}

func TestCheckDiskSpace(t *testing.T) {
	result := preflight.CheckDiskSpace("Output disk space", t.TempDir())
	if result.Detail == "" {
		t.Fatal("expected detail to report free space")
	}
}

func TestCheckEndpoint(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ok.Close()
	if result := preflight.CheckEndpoint(context.Background(), "Search API", ok.URL, "key"); !result.Passed {
		t.Fatalf("expected pass, got %+v", result)
	}

	denied := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer denied.Close()
	if result := preflight.CheckEndpoint(context.Background(), "Search API", denied.URL, "bad"); result.Passed {
		t.Fatalf("expected auth failure, got %+v", result)
	}

	if result := preflight.CheckEndpoint(context.Background(), "Search API", "", "key"); result.Passed {
		t.Fatalf("expected failure for missing url, got %+v", result)
	}
}

func TestRunAllCoversConfiguredChecks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Search.BaseURL = "http://127.0.0.1:0"
	cfg.Generator.APIKey = ""

	results := preflight.RunAll(context.Background(), cfg)
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}

	byName := make(map[string]preflight.Result, len(results))
	for _, result := range results {
		byName[result.Name] = result
	}
	if !byName["Data directory"].Passed {
		t.Fatalf("expected data directory check to pass: %+v", byName["Data directory"])
	}
	if byName["Generator API"].Passed {
		t.Fatalf("expected generator check to fail without key: %+v", byName["Generator API"])
	}
}
