package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/qagraph/qagraph/pkg/state"
)

// safeSessionID allows only alphanumeric, hyphen, and underscore, to
// rule out path traversal through a session ID that ends up in a
// filename.
var safeSessionID = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

func validateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("checkpoint: session id cannot be empty")
	}
	if len(id) > 256 {
		return fmt.Errorf("checkpoint: session id too long")
	}
	if !safeSessionID.MatchString(id) {
		return fmt.Errorf("checkpoint: session id contains invalid characters")
	}
	return nil
}

// FileStore implements Store on the local filesystem, one JSON document
// per session. Useful for single-node deployments and local development
// without a Redis dependency.
type FileStore struct {
	baseDir string
	mu      sync.RWMutex
}

// NewFileStore creates a file-based checkpoint store rooted at baseDir.
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("checkpoint: create store dir: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

func (f *FileStore) path(sessionID string) string {
	return filepath.Join(f.baseDir, sessionID+".json")
}

type fileRecord struct {
	SessionID string            `json:"session_id"`
	Sequence  int64             `json:"sequence"`
	State     *state.AgentState `json:"state"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Save implements Store.
func (f *FileStore) Save(_ context.Context, sessionID string, s *state.AgentState) (int64, error) {
	if err := validateSessionID(sessionID); err != nil {
		return 0, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	next := int64(1)
	if existing, err := f.readLocked(sessionID); err == nil {
		next = existing.Sequence + 1
	}

	rec := fileRecord{SessionID: sessionID, Sequence: next, State: s, UpdatedAt: time.Now().UTC()}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("checkpoint: marshal: %w", err)
	}
	if err := os.WriteFile(f.path(sessionID), data, 0600); err != nil {
		return 0, fmt.Errorf("checkpoint: write: %w", err)
	}
	return next, nil
}

func (f *FileStore) readLocked(sessionID string) (*fileRecord, error) {
	// G304: path built from a validated session ID and a trusted base directory.
	data, err := os.ReadFile(f.path(sessionID)) //nolint:gosec
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("checkpoint: read: %w", err)
	}
	var rec fileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("checkpoint: decode: %w", err)
	}
	return &rec, nil
}

// LoadLatest implements Store.
func (f *FileStore) LoadLatest(_ context.Context, sessionID string) (*Record, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	rec, err := f.readLocked(sessionID)
	if err != nil {
		return nil, err
	}
	return &Record{SessionID: rec.SessionID, Sequence: rec.Sequence, State: rec.State, UpdatedAt: rec.UpdatedAt}, nil
}

// ListSessions implements Store.
func (f *FileStore) ListSessions(_ context.Context, since time.Time, limit int) ([]SessionSummary, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	entries, err := os.ReadDir(f.baseDir)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: list dir: %w", err)
	}

	var out []SessionSummary
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		sessionID := entry.Name()[:len(entry.Name())-len(".json")]
		rec, err := f.readLocked(sessionID)
		if err != nil {
			continue
		}
		if rec.UpdatedAt.Before(since) {
			continue
		}
		summary := ""
		if rec.State != nil {
			summary = rec.State.Summary
		}
		out = append(out, SessionSummary{
			SessionID:   sessionID,
			Summary:     truncate(summary, summaryTruncateLen),
			LastUpdated: rec.UpdatedAt,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].LastUpdated.After(out[j].LastUpdated) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DeleteSession implements Store.
func (f *FileStore) DeleteSession(_ context.Context, sessionID string) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path(sessionID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("checkpoint: delete: %w", err)
	}
	return nil
}

// Close implements Store.
func (f *FileStore) Close() error { return nil }
