package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"
	"github.com/snarg/transcript-editor/internal/metrics"
	"github.com/snarg/transcript-editor/internal/transcript"
)

// TranscriptStore is the subset of transcript.Store the handlers need.
type TranscriptStore interface {
	FetchAll() []transcript.Word
	Get(id int) (transcript.Word, error)
	UpdateWord(id int, text string) (transcript.Word, error)
	UpdateAll(match, text string) []transcript.Word
}

// MsgWordNotFound is the message returned with every NotFound response.
const MsgWordNotFound = "Word not found"

// UpdateRequest is the body of POST /transcript/update.
type UpdateRequest struct {
	ID      *int    `json:"id"`
	NewWord *string `json:"newWord"`
}

// UpdateResponse is returned by POST /transcript/update and GET /transcript/{id}.
type UpdateResponse struct {
	Success     bool             `json:"success"`
	UpdatedWord *transcript.Word `json:"updatedWord,omitempty"`
	Message     string           `json:"message,omitempty"`
}

// UpdateAllRequest is the body of POST /transcript/update-all.
type UpdateAllRequest struct {
	Word    *string `json:"word"`
	NewWord *string `json:"newWord"`
}

// UpdateAllResponse is returned by POST /transcript/update-all.
type UpdateAllResponse struct {
	Success      bool              `json:"success"`
	UpdatedWords []transcript.Word `json:"updatedWords"`
	Count        int               `json:"count"`
}

type TranscriptHandler struct {
	store TranscriptStore
}

func NewTranscriptHandler(store TranscriptStore) *TranscriptHandler {
	return &TranscriptHandler{store: store}
}

// Routes registers read-only routes.
func (h *TranscriptHandler) Routes(r chi.Router) {
	r.Get("/transcript", h.FetchAll)
	r.Get("/transcript/export", h.Export)
	r.Get("/transcript/{id}", h.GetWord)
}

// WriteRoutes registers mutating routes.
func (h *TranscriptHandler) WriteRoutes(r chi.Router) {
	r.Post("/transcript/update", h.UpdateWord)
	r.Post("/transcript/update-all", h.UpdateAll)
}

// FetchAll returns the whole sequence in stored order.
func (h *TranscriptHandler) FetchAll(w http.ResponseWriter, r *http.Request) {
	words := h.store.FetchAll()
	if words == nil {
		words = []transcript.Word{}
	}
	WriteJSON(w, http.StatusOK, words)
}

// GetWord returns a single word by id.
func (h *TranscriptHandler) GetWord(w http.ResponseWriter, r *http.Request) {
	id, err := PathInt(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid word ID")
		return
	}
	word, err := h.store.Get(id)
	if err != nil {
		WriteJSON(w, http.StatusNotFound, UpdateResponse{Success: false, Message: MsgWordNotFound})
		return
	}
	WriteJSON(w, http.StatusOK, word)
}

// UpdateWord replaces the text of one word.
func (h *TranscriptHandler) UpdateWord(w http.ResponseWriter, r *http.Request) {
	var body UpdateRequest
	if err := DecodeJSON(w, r, &body); err != nil {
		WriteErrorDetail(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if body.ID == nil {
		WriteError(w, http.StatusBadRequest, "id is required")
		return
	}
	if body.NewWord == nil {
		WriteError(w, http.StatusBadRequest, "newWord is required")
		return
	}

	updated, err := h.store.UpdateWord(*body.ID, *body.NewWord)
	if errors.Is(err, transcript.ErrNotFound) {
		metrics.WordUpdatesTotal.WithLabelValues("not_found").Inc()
		hlog.FromRequest(r).Info().Int("word_id", *body.ID).Msg("update target not found")
		WriteJSON(w, http.StatusNotFound, UpdateResponse{Success: false, Message: MsgWordNotFound})
		return
	}
	if err != nil {
		metrics.WordUpdatesTotal.WithLabelValues("error").Inc()
		WriteError(w, http.StatusInternalServerError, "failed to update word")
		return
	}

	metrics.WordUpdatesTotal.WithLabelValues("ok").Inc()
	hlog.FromRequest(r).Debug().Int("word_id", updated.ID).Str("word", updated.Text).Msg("word updated")
	WriteJSON(w, http.StatusOK, UpdateResponse{Success: true, UpdatedWord: &updated})
}

// UpdateAll replaces the text of every word whose current text equals the
// requested word.
func (h *TranscriptHandler) UpdateAll(w http.ResponseWriter, r *http.Request) {
	var body UpdateAllRequest
	if err := DecodeJSON(w, r, &body); err != nil {
		WriteErrorDetail(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if body.Word == nil || body.NewWord == nil {
		WriteError(w, http.StatusBadRequest, "word and newWord are required")
		return
	}

	updated := h.store.UpdateAll(*body.Word, *body.NewWord)
	if updated == nil {
		updated = []transcript.Word{}
	}
	metrics.BulkUpdatesTotal.Inc()
	hlog.FromRequest(r).Debug().
		Str("word", *body.Word).
		Str("new_word", *body.NewWord).
		Int("count", len(updated)).
		Msg("bulk update")
	WriteJSON(w, http.StatusOK, UpdateAllResponse{Success: true, UpdatedWords: updated, Count: len(updated)})
}

// Export returns the sequence as an indented JSON attachment.
func (h *TranscriptHandler) Export(w http.ResponseWriter, r *http.Request) {
	data, err := transcript.MarshalExport(h.store.FetchAll())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to encode transcript")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", transcript.ExportFilename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
