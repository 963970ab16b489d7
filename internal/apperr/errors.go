// Package apperr defines the error kinds shared by every layer.
package apperr

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation failed")
	ErrDecode     = errors.New("invalid notes data")
	ErrNoNotes    = errors.New("no notes")
	ErrFileAccess = errors.New("file access failed")
)
