// Package testutil provides shared test helpers for stores and services.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/starford/notesjson/internal/exchange"
	"github.com/starford/notesjson/internal/noteservice"
	"github.com/starford/notesjson/internal/store"
)

// TestSQLite opens a SQLite store in a temp dir that is closed on cleanup.
func TestSQLite(t *testing.T) *store.SQLite {
	t.Helper()
	s, err := store.OpenSQLite(filepath.Join(t.TempDir(), "notes.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestService wires a note service over a fresh SQLite store.
func TestService(t *testing.T, notify noteservice.Notifier) (*noteservice.Service, store.Store) {
	t.Helper()
	s := TestSQLite(t)
	return noteservice.NewService(s, exchange.NewEngine(s, nil), notify), s
}

// TestFiles returns exchange files rooted in a temp dir.
func TestFiles(t *testing.T) *exchange.Files {
	t.Helper()
	f, err := exchange.NewFiles(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return f
}
