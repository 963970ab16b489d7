package noteservice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/starford/notesjson/internal/apperr"
	"github.com/starford/notesjson/internal/exchange"
	"github.com/starford/notesjson/internal/models"
	"github.com/starford/notesjson/internal/store"
)

// Event kinds passed to a Notifier.
const (
	EventCreated  = "created"
	EventUpdated  = "updated"
	EventDeleted  = "deleted"
	EventImported = "imported"
	EventCleared  = "cleared"
)

// Notifier is called after every successful mutation. id is empty for
// bulk events (imported, cleared).
type Notifier func(kind, id string)

// Service is the entry point every surface (HTTP, MCP, CLI, inbox) uses.
// It normalises user input before it reaches the store.
type Service struct {
	store  store.Store
	engine *exchange.Engine
	notify Notifier
}

// NewService creates a new note service. notify may be nil.
func NewService(s store.Store, e *exchange.Engine, notify Notifier) *Service {
	if notify == nil {
		notify = func(string, string) {}
	}
	return &Service{store: s, engine: e, notify: notify}
}

// CreateNote trims the title, drops whitespace-only content and stores a new note.
func (s *Service) CreateNote(ctx context.Context, title, content string) (models.Note, error) {
	n, err := s.store.Create(ctx, models.NewNote{
		Title:     strings.TrimSpace(title),
		Content:   normaliseContent(content),
		Timestamp: time.Now(),
	})
	if err != nil {
		return models.Note{}, err
	}
	s.notify(EventCreated, n.ID)
	return n, nil
}

// UpdateNote edits the title and/or content of a note. Nil arguments are left unchanged.
func (s *Service) UpdateNote(ctx context.Context, id string, title, content *string) (models.Note, error) {
	var p models.Patch
	if title != nil {
		t := strings.TrimSpace(*title)
		p.Title = &t
	}
	if content != nil {
		c := normaliseContent(*content)
		p.Content = &c
	}
	n, err := s.store.Update(ctx, id, p)
	if err != nil {
		return models.Note{}, err
	}
	s.notify(EventUpdated, n.ID)
	return n, nil
}

// DeleteNote removes a note.
func (s *Service) DeleteNote(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.notify(EventDeleted, id)
	return nil
}

// DeleteAll removes every note.
func (s *Service) DeleteAll(ctx context.Context) (int, error) {
	n, err := s.store.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.notify(EventCleared, "")
	}
	return n, nil
}

// GetNote returns a single note.
func (s *Service) GetNote(ctx context.Context, id string) (models.Note, error) {
	return s.store.Get(ctx, id)
}

// ListNotes returns every note, newest first.
func (s *Service) ListNotes(ctx context.Context) ([]models.Note, error) {
	return s.store.List(ctx)
}

// Export returns the JSON export of all notes.
func (s *Service) Export(ctx context.Context) ([]byte, error) {
	return s.engine.Export(ctx)
}

// ExportTo writes a timestamped export file through w.
func (s *Service) ExportTo(ctx context.Context, w exchange.FileWriter) (string, error) {
	return s.engine.ExportTo(ctx, w, time.Now())
}

// Import imports JSON data. Listeners are notified whenever the store
// changed, including when the import failed partway.
func (s *Service) Import(ctx context.Context, data []byte, mode exchange.Mode) (exchange.Summary, error) {
	sum, err := s.engine.Import(ctx, data, mode)
	s.afterImport(sum)
	return sum, err
}

// ImportFrom imports the file name read through r.
func (s *Service) ImportFrom(ctx context.Context, r exchange.FileReader, name string, mode exchange.Mode) (exchange.Summary, error) {
	sum, err := s.engine.ImportFrom(ctx, r, name, mode)
	s.afterImport(sum)
	return sum, err
}

func (s *Service) afterImport(sum exchange.Summary) {
	if sum.Imported > 0 || sum.Replaced > 0 {
		s.notify(EventImported, "")
	}
}

type sample struct {
	title   string
	content string
	age     time.Duration
}

var samples = []sample{
	{"Meeting Notes", "Discussed project timeline, budget allocation, and team responsibilities.", 0},
	{"Shopping List", "Milk, Bread, Eggs, Butter, Cheese", 2 * time.Hour},
	{"Important Reminder", "Call the dentist to schedule appointment", 24 * time.Hour},
	{"Vacation Ideas", "Research flights to Japan, check hotel availability", 48 * time.Hour},
	{"Book Notes", "Short note content", 72 * time.Hour},
}

// Seed fills an empty store with sample notes dated relative to now.
func (s *Service) Seed(ctx context.Context, now time.Time) ([]models.Note, error) {
	count, err := s.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, fmt.Errorf("seed: store already holds %d notes: %w", count, apperr.ErrConflict)
	}
	out := make([]models.Note, 0, len(samples))
	for _, smp := range samples {
		n, err := s.store.Create(ctx, models.NewNote{
			Title:     smp.title,
			Content:   smp.content,
			Timestamp: now.Add(-smp.age),
		})
		if err != nil {
			return out, fmt.Errorf("seed: %w", err)
		}
		out = append(out, n)
	}
	s.notify(EventImported, "")
	return out, nil
}

func normaliseContent(c string) string {
	if strings.TrimSpace(c) == "" {
		return ""
	}
	return c
}
