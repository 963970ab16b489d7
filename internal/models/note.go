// Package models defines the domain types for notesjson.
package models

import "time"

// Note is a persisted note. ID is assigned by the store and never changes.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// DisplayTitle returns the title, or "Untitled" when it is empty.
func (n Note) DisplayTitle() string {
	if n.Title == "" {
		return "Untitled"
	}
	return n.Title
}

// HasContent reports whether the note carries any content.
func (n Note) HasContent() bool {
	return n.Content != ""
}

// NoteDTO is the portable form of a Note used by export and import.
// It has no identity of its own.
type NoteDTO struct {
	Title     string
	Content   string
	Timestamp time.Time
}

// NewNote is the payload for creating a note.
type NewNote struct {
	Title     string
	Content   string
	Timestamp time.Time
}

// Patch describes a partial update. Nil fields are left unchanged.
type Patch struct {
	Title   *string
	Content *string
}

// ToDTO converts a note to its portable form, dropping the ID.
func ToDTO(n Note) NoteDTO {
	return NoteDTO{
		Title:     n.Title,
		Content:   n.Content,
		Timestamp: n.Timestamp,
	}
}

// ToDTOs converts notes in order.
func ToDTOs(notes []Note) []NoteDTO {
	out := make([]NoteDTO, len(notes))
	for i, n := range notes {
		out[i] = ToDTO(n)
	}
	return out
}

// FromDTO returns the payload for a brand-new note carrying the DTO's values.
func FromDTO(d NoteDTO) NewNote {
	return NewNote{
		Title:     d.Title,
		Content:   d.Content,
		Timestamp: d.Timestamp,
	}
}
