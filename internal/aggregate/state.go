package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrWindowMismatch is returned when saved progress was produced with a
// different window size than the current run.
var ErrWindowMismatch = errors.New("saved progress uses a different window size")

// Progress is the resume point of an aggregation run: every event with a
// timestamp at or before Timestamp is already folded into stored windows.
type Progress struct {
	Timestamp     uint64
	WindowSeconds uint64
}

// StateStore persists aggregation progress between runs.
type StateStore interface {
	Load(ctx context.Context) (Progress, bool, error)
	Save(ctx context.Context, p Progress) error
}

// FileStateStore keeps progress in a local JSON file, replaced atomically.
type FileStateStore struct {
	Path string
}

type progressFile struct {
	Timestamp     uint64 `json:"timestamp"`
	WindowSeconds uint64 `json:"window_seconds"`
	SavedAt       string `json:"saved_at"`
}

func (s *FileStateStore) Load(_ context.Context) (Progress, bool, error) {
	if s == nil || s.Path == "" {
		return Progress{}, false, nil
	}
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return Progress{}, false, nil
	}
	if err != nil {
		return Progress{}, false, fmt.Errorf("read progress: %w", err)
	}

	var rec progressFile
	if err := json.Unmarshal(data, &rec); err != nil {
		return Progress{}, false, fmt.Errorf("parse progress %s: %w", s.Path, err)
	}
	return Progress{Timestamp: rec.Timestamp, WindowSeconds: rec.WindowSeconds}, true, nil
}

func (s *FileStateStore) Save(_ context.Context, p Progress) error {
	if s == nil || s.Path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("create progress dir: %w", err)
	}

	data, err := json.MarshalIndent(progressFile{
		Timestamp:     p.Timestamp,
		WindowSeconds: p.WindowSeconds,
		SavedAt:       time.Now().UTC().Format(time.RFC3339),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write progress: %w", err)
	}
	return os.Rename(tmp, s.Path)
}
