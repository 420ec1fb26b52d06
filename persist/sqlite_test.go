package persist

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func newTestSQLite(t *testing.T, path string) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), path)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	testBackend(t, newTestSQLite(t, filepath.Join(t.TempDir(), "cache.db")))
}

func TestSQLiteStore_Memory(t *testing.T) {
	testBackend(t, newTestSQLite(t, ":memory:"))
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	first, err := NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Save(ctx, sampleState()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}

	second := newTestSQLite(t, path)
	got, err := second.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	assertStateEqual(t, got, sampleState())
}

func TestNewSQLiteStore_NotADatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	if err := os.WriteFile(path, []byte("this is not a sqlite database file, just text padding it out"), 0o600); err != nil {
		t.Fatal(err)
	}

	s, err := NewSQLiteStore(context.Background(), path)
	if err == nil {
		_ = s.Close()
		t.Fatal("NewSQLiteStore() error = nil, want error")
	}
}
