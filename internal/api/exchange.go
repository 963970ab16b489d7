package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/starford/notesjson/internal/apperr"
	"github.com/starford/notesjson/internal/checksum"
	"github.com/starford/notesjson/internal/exchange"
)

const maxImportBody = 32 << 20

// Export handles GET /api/export.
//
//	@Summary		Download all notes as a JSON array
//	@Tags			exchange
//	@Produce		json
//	@Param			If-None-Match	header	string	false	"ETag of a previous export"
//	@Success		200	{array}		object
//	@Success		304	"Unchanged"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/export [get]
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	data, err := h.svc.Export(r.Context())
	if err != nil {
		if errors.Is(err, apperr.ErrNoNotes) {
			writeJSON(w, http.StatusNotFound, errorBody("no notes to export"))
			return
		}
		writeError(w, "export", err)
		return
	}

	etag := checksum.ETag(data)
	w.Header().Set("ETag", etag)
	if checksum.Matches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", exchange.ExportFileName(time.Now())))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.Warn("export write failed", slog.String("error", err.Error()))
	}
}

// Import handles POST /api/import.
//
//	@Summary		Import a JSON array of notes
//	@Tags			exchange
//	@Accept			json
//	@Produce		json
//	@Param			mode	query		string	false	"Import mode"	Enums(merge, replace)
//	@Success		200		{object}	ImportResponse
//	@Failure		400		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/import [post]
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	mode, err := exchange.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImportBody)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}

	sum, err := h.svc.Import(r.Context(), data, mode)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrDecode), errors.Is(err, apperr.ErrNoNotes):
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		case errors.Is(err, apperr.ErrValidation):
			// notes before the failing one stay imported
			writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
		default:
			writeError(w, "import", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, ImportResponse{
		Imported: sum.Imported,
		Total:    sum.Total,
		Replaced: sum.Replaced,
		Mode:     mode.String(),
	})
}
