package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "settings.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_Metadata(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, ok, err := store.GetMetadata(ctx, "missing"); err != nil || ok {
		t.Fatalf("missing key: ok=%v err=%v", ok, err)
	}

	if err := store.UpsertMetadata(ctx, "k", "v1", 1); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.UpsertMetadata(ctx, "k", "v2", 2); err != nil {
		t.Fatalf("upsert overwrite: %v", err)
	}

	entry, ok, err := store.GetMetadata(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if entry.Value != "v2" || entry.UpdatedAtUnixM != 2 {
		t.Errorf("unexpected entry %+v", entry)
	}
}

func TestStore_TokenSelection(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	tokens, err := store.LoadTokenSelection(ctx, "doge,tron")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(tokens) != 2 || tokens[0].ID != "doge" {
		t.Errorf("expected fallback selection, got %v", tokens)
	}

	if _, err := store.SaveTokenSelection(ctx, "bogus"); err == nil {
		t.Error("saving an empty selection should fail")
	}

	if _, err := store.SaveTokenSelection(ctx, "SOLANA, usdt ,solana"); err != nil {
		t.Fatalf("save: %v", err)
	}
	entry, _, _ := store.GetMetadata(ctx, KeyTokenSelection)
	if entry.Value != "solana,usdt" {
		t.Errorf("selection should be stored normalized, got %q", entry.Value)
	}

	tokens, err = store.LoadTokenSelection(ctx, "doge")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(tokens) != 2 || tokens[1].ID != "usdt" {
		t.Errorf("persisted selection should win, got %v", tokens)
	}
}

func TestStore_LoadFallsBackToDefault(t *testing.T) {
	store := openTestStore(t)

	tokens, err := store.LoadTokenSelection(context.Background(), "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(tokens) != 5 || tokens[0].ID != "bitcoin" {
		t.Errorf("expected built-in default, got %v", tokens)
	}
}
