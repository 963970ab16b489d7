// Package codec converts note DTOs to and from the JSON export format.
//
// The format is a bare JSON array:
//
//	[
//	  { "title": "Shopping List", "content": "Milk", "timestamp": "2025-09-13T10:15:30Z" }
//	]
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/starford/notesjson/internal/apperr"
	"github.com/starford/notesjson/internal/models"
)

// wireNote fixes the field order of encoded notes.
type wireNote struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// inNote uses pointers so missing and null fields can be told apart.
type inNote struct {
	Title     *string `json:"title"`
	Content   *string `json:"content"`
	Timestamp *string `json:"timestamp"`
}

// Encode renders dtos as an indented JSON array. Timestamps are written in
// UTC RFC 3339, with fractional seconds only when present.
func Encode(dtos []models.NoteDTO) ([]byte, error) {
	out := make([]wireNote, len(dtos))
	for i, d := range dtos {
		out[i] = wireNote{
			Title:     d.Title,
			Content:   d.Content,
			Timestamp: FormatTimestamp(d.Timestamp),
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return nil, fmt.Errorf("codec: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a JSON array of notes. Every failure wraps apperr.ErrDecode.
func Decode(data []byte) ([]models.NoteDTO, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrDecode, err)
	}
	if raws == nil {
		return nil, fmt.Errorf("%w: expected a JSON array", apperr.ErrDecode)
	}

	out := make([]models.NoteDTO, 0, len(raws))
	for i, raw := range raws {
		d, err := decodeNote(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: note %d: %v", apperr.ErrDecode, i, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func decodeNote(raw json.RawMessage) (models.NoteDTO, error) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return models.NoteDTO{}, fmt.Errorf("expected an object")
	}
	var in inNote
	if err := json.Unmarshal(raw, &in); err != nil {
		return models.NoteDTO{}, err
	}
	if in.Title == nil {
		return models.NoteDTO{}, fmt.Errorf("missing title")
	}
	if in.Timestamp == nil {
		return models.NoteDTO{}, fmt.Errorf("missing timestamp")
	}
	ts, err := ParseTimestamp(*in.Timestamp)
	if err != nil {
		return models.NoteDTO{}, err
	}

	d := models.NoteDTO{Title: *in.Title, Timestamp: ts}
	if in.Content != nil {
		d.Content = *in.Content
	}
	return d, nil
}

// FormatTimestamp renders t the way exports do.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTimestamp accepts an RFC 3339 / ISO-8601 date-time and returns it in UTC.
// The UTC year must lie in 0000-9999 so the value can be written back out.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
	}
	t = t.UTC()
	if y := t.Year(); y < 0 || y > 9999 {
		return time.Time{}, fmt.Errorf("timestamp %q out of range", s)
	}
	return t, nil
}
