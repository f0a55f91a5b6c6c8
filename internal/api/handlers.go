package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/halvard/jera/internal/apperr"
	"github.com/halvard/jera/internal/noteservice"
	"github.com/halvard/jera/internal/recurrence"
)

// Handler holds note CRUD and trigger route handlers.
type Handler struct {
	svc     *noteservice.Service
	orch    *recurrence.Orchestrator
	tracker *recurrence.Tracker

	// triggerCtx bounds the lifetime of prompts started by fire-and-forget
	// triggers (focus, content edit); it outlives individual requests and is
	// cancelled at shutdown.
	triggerCtx context.Context
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service, orch *recurrence.Orchestrator, tracker *recurrence.Tracker, triggerCtx context.Context) *Handler {
	if triggerCtx == nil {
		triggerCtx = context.Background()
	}
	return &Handler{svc: svc, orch: orch, tracker: tracker, triggerCtx: triggerCtx}
}

// notePath extracts the note path from the URL (everything after /notes/).
// Supports encoded slashes from API clients (e.g. topics%2Fnote.md).
func notePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListNotes handles GET /notes.
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.svc.ListNotes(r.Context(), limit, offset, q.Get("tag"), q.Get("status"), q.Get("sort"))
	if err != nil {
		slog.Error("list notes failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: items, Total: total})
}

// GetNote handles GET /notes/*.
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	note, err := h.svc.GetNote(r.Context(), path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get note failed", slog.String("path", path), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// CreateNote handles POST /notes.
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return
	}
	if req.Path == "" || !strings.HasSuffix(req.Path, ".md") {
		writeJSON(w, http.StatusBadRequest, errorBody("path must end with .md"))
		return
	}

	note, err := h.svc.CreateNote(r.Context(), req.Path, []byte(req.Content))
	if err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			writeJSON(w, http.StatusConflict, errorBody("already exists"))
		} else {
			slog.Error("create note failed", slog.String("path", req.Path), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	h.tracker.MarkInteracted(req.Path)
	writeJSON(w, http.StatusCreated, note)
}

// UpdateNote handles PUT /notes/*. A successful raw content update is a
// content-modification trigger: the recurrence evaluation runs in the
// background so the editor is never blocked on the prompt.
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return
	}

	note, err := h.svc.UpdateNote(r.Context(), path, []byte(req.Content), r.Header.Get("If-Match"))
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		case errors.Is(err, apperr.ErrConflict):
			writeJSON(w, http.StatusConflict, errorBody("checksum mismatch"))
		default:
			slog.Error("update note failed", slog.String("path", path), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}

	go h.orch.HandleContentEdit(h.triggerCtx, path)

	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /notes/*.
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.svc.DeleteNote(r.Context(), path); err != nil {
		slog.Error("delete note failed", slog.String("path", path), slog.String("error", err.Error()))
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Focus handles POST /focus: the editor reports the user opened a note. The
// recurrence evaluation runs in the background; the request returns at once.
func (h *Handler) Focus(w http.ResponseWriter, r *http.Request) {
	var req PathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}

	go h.orch.HandleFocus(h.triggerCtx, req.Path)

	w.WriteHeader(http.StatusAccepted)
}

// SetWindow handles PUT /recurrence/window: live reconfiguration of the
// suppression window without a restart. Bounds match the config validation.
func (h *Handler) SetWindow(w http.ResponseWriter, r *http.Request) {
	var req WindowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Minutes < 1 || req.Minutes > 30 {
		writeJSON(w, http.StatusBadRequest, errorBody("minutes must be between 1 and 30"))
		return
	}
	h.tracker.SetWindow(time.Duration(req.Minutes) * time.Minute)
	w.WriteHeader(http.StatusNoContent)
}

// Modified handles POST /modified: non-recurrence mutation paths report a
// change they already handled, suppressing redundant prompts for the note.
func (h *Handler) Modified(w http.ResponseWriter, r *http.Request) {
	var req PathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	h.tracker.MarkInteracted(req.Path)
	w.WriteHeader(http.StatusNoContent)
}
