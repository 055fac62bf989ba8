// Package testutil provides shared test helpers for stores and catalogs.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/starford/playtrace/internal/catalog"
	"github.com/starford/playtrace/internal/store"
)

// MemStore returns a Store backed by memory.
func MemStore() *store.Store {
	return store.New(store.NewMemory(), nil)
}

// FSStore creates a file-backed Store in a temporary directory.
func FSStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(store.DriverFS, t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// SQLiteStore creates a temporary SQLite-backed Store that is closed on
// cleanup.
func SQLiteStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(store.DriverSQLite, filepath.Join(t.TempDir(), "playtrace-test.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// Games returns a small fixed catalog.
func Games() *catalog.Catalog {
	return catalog.FromItems([]catalog.Item{
		{ID: "asteroids", Title: "Asteroids", Src: "/games/asteroids/index.html"},
		{ID: "pong", Title: "Pong", Src: "/games/pong/index.html"},
	})
}
