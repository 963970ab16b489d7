package inbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/notesjson/internal/apperr"
	"github.com/starford/notesjson/internal/exchange"
	"github.com/starford/notesjson/internal/store"
	"github.com/starford/notesjson/internal/testutil"
)

const validExport = `[{"title":"dropped","content":"in","timestamp":"2025-09-13T10:15:30Z"}]`

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func count(t *testing.T, s store.Store) int {
	t.Helper()
	n, err := s.Count(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func startInbox(t *testing.T, dir, pattern string) store.Store {
	t.Helper()
	svc, st := testutil.TestService(t, nil)
	w, err := New(Config{Dir: dir, Pattern: pattern, Debounce: 50 * time.Millisecond}, svc, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run: %v", err)
		}
	})
	return st
}

func TestInboxImportsDroppedFile(t *testing.T) {
	dir := t.TempDir()
	st := startInbox(t, dir, "")
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "drop.json"), []byte(validExport), 0o644); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return exists(filepath.Join(dir, ImportedDir, "drop.json"))
	}, "dropped file not moved to imported/")
	if n := count(t, st); n != 1 {
		t.Errorf("notes = %d, want 1", n)
	}
	if exists(filepath.Join(dir, "drop.json")) {
		t.Error("file still in inbox")
	}
}

func TestInboxProcessesExistingFiles(t *testing.T) {
	dir := t.TempDir()
	_ = os.WriteFile(filepath.Join(dir, "early.json"), []byte(validExport), 0o644)

	st := startInbox(t, dir, "")

	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return exists(filepath.Join(dir, ImportedDir, "early.json"))
	}, "existing file not processed at start")
	if n := count(t, st); n != 1 {
		t.Errorf("notes = %d, want 1", n)
	}
}

func TestInboxMovesBrokenFileToFailed(t *testing.T) {
	dir := t.TempDir()
	st := startInbox(t, dir, "")
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(dir, "broken.json"), []byte(`{"not":"an array"}`), 0o644)

	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return exists(filepath.Join(dir, FailedDir, "broken.json"))
	}, "broken file not moved to failed/")
	if n := count(t, st); n != 0 {
		t.Errorf("notes = %d, want 0", n)
	}
}

func TestInboxIgnoresNonMatchingFiles(t *testing.T) {
	dir := t.TempDir()
	st := startInbox(t, dir, "export-*.json")
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(dir, "other.json"), []byte(validExport), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "export-1.json"), []byte(validExport), 0o644)

	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return exists(filepath.Join(dir, ImportedDir, "export-1.json"))
	}, "matching file not imported")
	time.Sleep(150 * time.Millisecond)
	if !exists(filepath.Join(dir, "other.json")) {
		t.Error("non-matching file was touched")
	}
	if n := count(t, st); n != 1 {
		t.Errorf("notes = %d, want 1", n)
	}
}

func TestMatches(t *testing.T) {
	w, err := New(Config{Dir: t.TempDir(), Pattern: "{notes,export}-*.json"}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	tests := map[string]bool{
		"notes-2025-09-13T10-15-30Z.json": true,
		"export-a.json":                   true,
		"other.json":                      false,
		"notes-a.txt":                     false,
		".notes-hidden.json":              false,
		"":                                false,
	}
	for name, want := range tests {
		if got := w.Matches(name); got != want {
			t.Errorf("Matches(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestNewRejectsBadPattern(t *testing.T) {
	_, err := New(Config{Dir: t.TempDir(), Pattern: "[unclosed"}, nil, nil)
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestNewCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "in", "box")
	w, err := New(Config{Dir: dir, Mode: exchange.ModeReplace}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !exists(dir) || w.Dir() != dir {
		t.Errorf("dir = %q, exists = %v", w.Dir(), exists(dir))
	}
}
