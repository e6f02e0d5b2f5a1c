package checkpoint

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/qagraph/qagraph/pkg/state"
)

func TestFileStore_SaveAndLoadLatest(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "checkpoints"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if _, err := store.Save(ctx, "s1", &state.AgentState{Query: "first"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	seq2, err := store.Save(ctx, "s1", &state.AgentState{Query: "second"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	rec, err := store.LoadLatest(ctx, "s1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if rec.State.Query != "second" || rec.Sequence != seq2 {
		t.Fatalf("expected latest checkpoint, got %+v", rec)
	}
}

func TestFileStore_RejectsUnsafeSessionID(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if _, err := store.Save(ctx, "../escape", &state.AgentState{}); err == nil {
		t.Fatal("expected error for path-traversal session id")
	}
}

func TestFileStore_DeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if _, err := store.Save(ctx, "s1", &state.AgentState{Query: "q"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.DeleteSession(ctx, "s1"); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := store.DeleteSession(ctx, "s1"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if _, err := store.LoadLatest(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
