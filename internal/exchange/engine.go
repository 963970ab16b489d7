// Package exchange implements JSON export and import of the note collection.
package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/notesjson/internal/apperr"
	"github.com/starford/notesjson/internal/codec"
	"github.com/starford/notesjson/internal/models"
	"github.com/starford/notesjson/internal/store"
)

// Mode selects how an import treats existing notes.
type Mode int

const (
	// ModeMerge keeps existing notes and skips imported notes whose
	// title and timestamp already exist.
	ModeMerge Mode = iota
	// ModeReplace deletes every existing note before inserting.
	ModeReplace
)

func (m Mode) String() string {
	if m == ModeReplace {
		return "replace"
	}
	return "merge"
}

// ParseMode maps "merge" or "replace" (case-insensitive) to a Mode.
// An empty string means merge.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "merge":
		return ModeMerge, nil
	case "replace":
		return ModeReplace, nil
	}
	return ModeMerge, fmt.Errorf("%w: unknown import mode %q", apperr.ErrValidation, s)
}

// Summary reports the outcome of an import.
type Summary struct {
	Imported int `json:"imported"`
	Total    int `json:"total"`
	// Replaced is the number of notes removed by a replace-mode import.
	Replaced int `json:"replaced,omitempty"`
}

// Skipped returns how many decoded notes were not inserted.
func (s Summary) Skipped() int {
	return s.Total - s.Imported
}

// Engine runs export and import against a Store.
type Engine struct {
	store  store.Store
	logger *slog.Logger
}

// NewEngine creates an Engine. A nil logger discards output.
func NewEngine(s store.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{store: s, logger: logger}
}

// Export encodes every stored note, newest first.
// It fails with apperr.ErrNoNotes when the store is empty.
func (e *Engine) Export(ctx context.Context) ([]byte, error) {
	notes, err := e.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	if len(notes) == 0 {
		return nil, fmt.Errorf("export: %w to export", apperr.ErrNoNotes)
	}
	data, err := codec.Encode(models.ToDTOs(notes))
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	e.logger.Info("export complete", slog.Int("notes", len(notes)))
	return data, nil
}

// Import decodes data and inserts the notes according to mode.
//
// Replace mode deletes every existing note first. Merge mode skips a note
// when an existing note has the same title and timestamp (to the second);
// content is not compared, and notes inserted earlier in the same import
// are not considered.
//
// Import is not transactional: when an insert fails, notes inserted before
// it stay committed (and a replace has already cleared the store).
func (e *Engine) Import(ctx context.Context, data []byte, mode Mode) (Summary, error) {
	dtos, err := codec.Decode(data)
	if err != nil {
		return Summary{}, fmt.Errorf("import: %w", err)
	}
	if len(dtos) == 0 {
		return Summary{}, fmt.Errorf("import: %w found in data", apperr.ErrNoNotes)
	}

	sum := Summary{Total: len(dtos)}

	var existing map[string]struct{}
	if mode == ModeReplace {
		removed, err := e.store.DeleteAll(ctx)
		if err != nil {
			return sum, fmt.Errorf("import: clear store: %w", err)
		}
		sum.Replaced = removed
	} else {
		existing, err = e.existingKeys(ctx)
		if err != nil {
			return sum, fmt.Errorf("import: %w", err)
		}
	}

	for i, d := range dtos {
		if mode == ModeMerge {
			if _, dup := existing[DedupKey(d.Title, d.Timestamp)]; dup {
				e.logger.Debug("import: skipped duplicate", slog.String("title", d.Title))
				continue
			}
		}
		if _, err := e.store.Create(ctx, models.FromDTO(d)); err != nil {
			return sum, fmt.Errorf("import: note %d: %w", i, err)
		}
		sum.Imported++
	}

	e.logger.Info("import complete",
		slog.String("mode", mode.String()),
		slog.Int("imported", sum.Imported),
		slog.Int("total", sum.Total))
	return sum, nil
}

// ExportTo exports into a new file named after now and returns its location.
func (e *Engine) ExportTo(ctx context.Context, w FileWriter, now time.Time) (string, error) {
	data, err := e.Export(ctx)
	if err != nil {
		return "", err
	}
	loc, err := w.WriteFile(ExportFileName(now), data)
	if err != nil {
		return "", fmt.Errorf("export: %w", err)
	}
	return loc, nil
}

// ImportFrom reads name through r and imports it.
func (e *Engine) ImportFrom(ctx context.Context, r FileReader, name string, mode Mode) (Summary, error) {
	data, err := r.ReadFile(name)
	if err != nil {
		return Summary{}, fmt.Errorf("import: %w", err)
	}
	return e.Import(ctx, data, mode)
}

func (e *Engine) existingKeys(ctx context.Context) (map[string]struct{}, error) {
	notes, err := e.store.List(ctx)
	if err != nil {
		return nil, err
	}
	keys := make(map[string]struct{}, len(notes))
	for _, n := range notes {
		keys[DedupKey(n.Title, n.Timestamp)] = struct{}{}
	}
	return keys, nil
}

// DedupKey identifies a note for merge imports: title and the timestamp in
// UTC RFC 3339 at second precision.
func DedupKey(title string, ts time.Time) string {
	return title + "|" + ts.UTC().Format(time.RFC3339)
}

// ExportFileName returns the file name used for an export taken at now,
// e.g. notes-2025-09-13T10-15-30Z.json.
func ExportFileName(now time.Time) string {
	stamp := strings.ReplaceAll(now.UTC().Format(time.RFC3339), ":", "-")
	return "notes-" + stamp + ".json"
}
