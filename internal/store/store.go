// Package store owns the persisted note collection.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/starford/notesjson/internal/apperr"
	"github.com/starford/notesjson/internal/models"
)

// Store is the exclusive writer of notes.
//
// Every mutation is atomic with respect to concurrent readers. List always
// returns notes newest first; notes sharing a timestamp keep insertion order.
type Store interface {
	// Create persists a new note with a freshly minted ID. The timestamp is
	// stored as given; callers creating a note "now" must set it.
	Create(ctx context.Context, n models.NewNote) (models.Note, error)
	// Update applies p to the note with the given ID and bumps its timestamp.
	Update(ctx context.Context, id string, p models.Patch) (models.Note, error)
	// Delete removes a single note.
	Delete(ctx context.Context, id string) error
	// DeleteAll removes every note and reports how many were removed.
	DeleteAll(ctx context.Context) (int, error)
	// List returns all notes ordered by timestamp descending.
	List(ctx context.Context) ([]models.Note, error)
	// Get returns the note with the given ID.
	Get(ctx context.Context, id string) (models.Note, error)
	// Count returns the number of stored notes.
	Count(ctx context.Context) (int, error)
	Close() error
}

var (
	_ Store = (*SQLite)(nil)
	_ Store = (*Memory)(nil)
)

// ValidateTitle rejects titles that are empty after trimming.
func ValidateTitle(title string) error {
	if err := validation.Validate(strings.TrimSpace(title), validation.Required); err != nil {
		return fmt.Errorf("%w: title %v", apperr.ErrValidation, err)
	}
	return nil
}

// mint turns a creation payload into a note with a new ID.
func mint(n models.NewNote) models.Note {
	return models.Note{
		ID:        uuid.NewString(),
		Title:     n.Title,
		Content:   n.Content,
		Timestamp: n.Timestamp.UTC(),
	}
}

// apply returns a copy of n with p applied and the timestamp set to now.
func apply(n models.Note, p models.Patch, now time.Time) (models.Note, error) {
	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.Content != nil {
		n.Content = *p.Content
	}
	if err := ValidateTitle(n.Title); err != nil {
		return models.Note{}, err
	}
	n.Timestamp = now.UTC()
	return n, nil
}

func notFound(id string) error {
	return fmt.Errorf("note %s: %w", id, apperr.ErrNotFound)
}
