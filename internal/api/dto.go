package api

import "github.com/starford/notesjson/internal/models"

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Title   string `json:"title" example:"Shopping List" validate:"required"`
	Content string `json:"content" example:"Milk, Bread, Eggs"`
}

// UpdateNoteRequest is the request body for editing a note.
// Omitted fields are left unchanged.
type UpdateNoteRequest struct {
	Title   *string `json:"title,omitempty" example:"Groceries"`
	Content *string `json:"content,omitempty" example:"Milk, Bread"`
}

// NoteListResponse wraps the note listing.
type NoteListResponse struct {
	Notes []models.Note `json:"notes" validate:"required"`
	Total int           `json:"total" example:"5" validate:"required"`
}

// ImportResponse reports the outcome of POST /import.
type ImportResponse struct {
	Imported int    `json:"imported" example:"3"`
	Total    int    `json:"total" example:"5"`
	Replaced int    `json:"replaced,omitempty" example:"0"`
	Mode     string `json:"mode" example:"merge"`
}
