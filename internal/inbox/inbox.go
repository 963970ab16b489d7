// Package inbox imports export files dropped into a watched directory.
//
// Matching files are imported once their writes settle. Afterwards the file
// is moved to imported/ or, when the import fails, to failed/. Both
// subdirectories live inside the inbox and are not watched.
package inbox

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/starford/notesjson/internal/apperr"
	"github.com/starford/notesjson/internal/exchange"
)

// Subdirectories processed files are moved into.
const (
	ImportedDir = "imported"
	FailedDir   = "failed"
)

// Importer is the subset of the note service the inbox needs.
type Importer interface {
	ImportFrom(ctx context.Context, r exchange.FileReader, name string, mode exchange.Mode) (exchange.Summary, error)
}

// Config controls a Watcher.
type Config struct {
	Dir      string
	Pattern  string // doublestar pattern matched against the base name
	Mode     exchange.Mode
	Debounce time.Duration
}

// Watcher watches one inbox directory.
type Watcher struct {
	cfg    Config
	files  *exchange.Files
	imp    Importer
	logger *slog.Logger
}

// New validates cfg and creates the inbox directory if needed.
func New(cfg Config, imp Importer, logger *slog.Logger) (*Watcher, error) {
	if cfg.Pattern == "" {
		cfg.Pattern = "*.json"
	}
	if !doublestar.ValidatePattern(cfg.Pattern) {
		return nil, fmt.Errorf("%w: inbox pattern %q", apperr.ErrValidation, cfg.Pattern)
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 300 * time.Millisecond
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	files, err := exchange.NewFiles(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("inbox: %w", err)
	}
	return &Watcher{cfg: cfg, files: files, imp: imp, logger: logger}, nil
}

// Dir returns the absolute inbox directory.
func (w *Watcher) Dir() string { return w.files.Root() }

// Matches reports whether a base file name is picked up by the inbox.
// Hidden files never match.
func (w *Watcher) Matches(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") {
		return false
	}
	ok, err := doublestar.Match(w.cfg.Pattern, name)
	return err == nil && ok
}

// Run processes files already in the inbox, then watches it until ctx is
// cancelled. It only returns an error when the watch cannot be set up.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("inbox: %w", err)
	}
	defer fw.Close()

	root := w.files.Root()
	if err := fw.Add(root); err != nil {
		return fmt.Errorf("inbox: watch %s: %w", root, err)
	}
	w.logger.Info("inbox: started",
		slog.String("dir", root),
		slog.String("pattern", w.cfg.Pattern),
		slog.String("mode", w.cfg.Mode.String()))

	w.processExisting(ctx)

	due := make(chan string)
	done := make(chan struct{})
	pending := make(map[string]*time.Timer)
	defer func() {
		close(done)
		for _, t := range pending {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("inbox: stopped")
			return nil

		case name := <-due:
			delete(pending, name)
			w.process(ctx, name)

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			name := filepath.Base(ev.Name)
			if filepath.Dir(ev.Name) != root || !w.Matches(name) {
				continue
			}
			if t, ok := pending[name]; ok {
				t.Reset(w.cfg.Debounce)
				continue
			}
			pending[name] = time.AfterFunc(w.cfg.Debounce, func() {
				select {
				case due <- name:
				case <-done:
				}
			})

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("inbox: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

func (w *Watcher) processExisting(ctx context.Context) {
	entries, err := os.ReadDir(w.files.Root())
	if err != nil {
		w.logger.Warn("inbox: list failed", slog.String("error", err.Error()))
		return
	}
	for _, e := range entries {
		if e.Type().IsRegular() && w.Matches(e.Name()) {
			w.process(ctx, e.Name())
		}
	}
}

// process imports one file and moves it out of the inbox.
func (w *Watcher) process(ctx context.Context, name string) {
	info, err := os.Stat(filepath.Join(w.files.Root(), name))
	if err != nil || !info.Mode().IsRegular() {
		return
	}

	sum, err := w.imp.ImportFrom(ctx, w.files, name, w.cfg.Mode)
	dest := filepath.Join(ImportedDir, name)
	if err != nil {
		dest = filepath.Join(FailedDir, name)
		w.logger.Warn("inbox: import failed",
			slog.String("file", name),
			slog.Int("imported", sum.Imported),
			slog.String("error", err.Error()))
	} else {
		w.logger.Info("inbox: imported",
			slog.String("file", name),
			slog.Int("imported", sum.Imported),
			slog.Int("total", sum.Total),
			slog.Int("replaced", sum.Replaced))
	}

	if mvErr := w.files.Move(name, dest); mvErr != nil {
		w.logger.Error("inbox: move failed",
			slog.String("file", name),
			slog.String("dest", dest),
			slog.String("error", mvErr.Error()))
	}
}
