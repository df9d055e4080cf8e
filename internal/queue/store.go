package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"applyq/internal/logging"
)

// Store persists the apply queue document as a single JSON file. Writes go
// through a temp file followed by an atomic rename so a crash at any point
// leaves either the old document or the new one, never a torn write.
//
// Store performs no locking of its own; callers serialize Load/Save through
// the manager mutex.
type Store struct {
	path   string
	logger *slog.Logger
}

// NewStore creates a store rooted at path.
func NewStore(path string, logger *slog.Logger) *Store {
	return &Store{
		path:   path,
		logger: logging.NewComponentLogger(logger, "store"),
	}
}

// Path returns the canonical document path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the persisted document. A missing file yields an empty document.
// An unparseable file is preserved under a timestamped quarantine name for
// forensic recovery, then an empty document is returned; history is not
// silently destroyed but the live queue starts fresh.
func (s *Store) Load() (*Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewDocument(), nil
		}
		return nil, fmt.Errorf("read queue document: %w", err)
	}

	if len(data) == 0 {
		return NewDocument(), nil
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		quarantine := s.quarantineCorrupt()
		logging.WarnWithContext(s.logger, "queue document is corrupt; starting fresh", "store_corrupt",
			logging.Error(err),
			logging.String("path", s.path),
			logging.String("quarantine", quarantine),
			logging.String(logging.FieldErrorHint, "inspect the quarantined file to recover job history"),
			logging.String(logging.FieldImpact, "previous runs and jobs are no longer visible"),
		)
		return NewDocument(), nil
	}

	if doc.Jobs == nil {
		doc.Jobs = map[string]*JobRecord{}
	}
	if doc.Runs == nil {
		doc.Runs = []RunRecord{}
	}
	return &doc, nil
}

// Save writes the document atomically: marshal, write to a temp file in the
// same directory, then rename over the canonical path.
func (s *Store) Save(doc *Document) error {
	if doc == nil {
		return errors.New("document is nil")
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal queue document: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// quarantineCorrupt moves the unreadable document aside, returning the
// quarantine path or empty when the move failed.
func (s *Store) quarantineCorrupt() string {
	quarantine := fmt.Sprintf("%s.corrupt.%s", s.path, time.Now().UTC().Format("20060102T150405Z"))
	if err := os.Rename(s.path, quarantine); err != nil {
		s.logger.Warn("failed to quarantine corrupt queue document",
			logging.Error(err),
			logging.String("path", s.path),
		)
		return ""
	}
	return quarantine
}
