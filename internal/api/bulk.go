package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/halvard/jera/internal/bulkedit"
	"github.com/halvard/jera/internal/decision"
	"github.com/halvard/jera/internal/recurrence"
)

// BulkHandler holds the bulk mutation, decision, and healing route handlers.
type BulkHandler struct {
	bulk      *bulkedit.Coordinator
	decisions *decision.Registry
	scanner   *recurrence.Scanner

	// triggerCtx bounds prompts raised by bulk mutations so a client
	// disconnect does not silently cancel a decision another client is
	// about to answer.
	triggerCtx context.Context
}

// NewBulkHandler creates a new BulkHandler.
func NewBulkHandler(bulk *bulkedit.Coordinator, decisions *decision.Registry, scanner *recurrence.Scanner, triggerCtx context.Context) *BulkHandler {
	if triggerCtx == nil {
		triggerCtx = context.Background()
	}
	return &BulkHandler{bulk: bulk, decisions: decisions, scanner: scanner, triggerCtx: triggerCtx}
}

// SetStatus handles POST /bulk/status.
func (h *BulkHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req BulkStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Paths) == 0 || req.Status == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("paths and status are required"))
		return
	}
	n := h.bulk.SetStatus(h.triggerCtx, req.Paths, req.Status)
	writeJSON(w, http.StatusOK, BulkResponse{Affected: n})
}

// SetRule handles POST /bulk/rule. An empty rule clears the rule fields.
func (h *BulkHandler) SetRule(w http.ResponseWriter, r *http.Request) {
	var req BulkRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Paths) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("paths are required"))
		return
	}
	var n int
	if req.Rule == "" {
		n = h.bulk.ClearRule(h.triggerCtx, req.Paths)
	} else {
		n = h.bulk.SetRule(h.triggerCtx, req.Paths, req.Rule)
	}
	writeJSON(w, http.StatusOK, BulkResponse{Affected: n})
}

// AddTag handles POST /bulk/tags/add.
func (h *BulkHandler) AddTag(w http.ResponseWriter, r *http.Request) {
	var req BulkTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Paths) == 0 || req.Tag == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("paths and tag are required"))
		return
	}
	n := h.bulk.AddTag(h.triggerCtx, req.Paths, req.Tag)
	writeJSON(w, http.StatusOK, BulkResponse{Affected: n})
}

// RemoveTag handles POST /bulk/tags/remove.
func (h *BulkHandler) RemoveTag(w http.ResponseWriter, r *http.Request) {
	var req BulkTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Paths) == 0 || req.Tag == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("paths and tag are required"))
		return
	}
	n := h.bulk.RemoveTag(h.triggerCtx, req.Paths, req.Tag)
	writeJSON(w, http.StatusOK, BulkResponse{Affected: n})
}

// SetField handles POST /bulk/field.
func (h *BulkHandler) SetField(w http.ResponseWriter, r *http.Request) {
	var req BulkFieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Paths) == 0 || req.Key == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("paths and key are required"))
		return
	}
	n := h.bulk.SetField(h.triggerCtx, req.Paths, req.Key, req.Value)
	writeJSON(w, http.StatusOK, BulkResponse{Affected: n})
}

// ListDecisions handles GET /decisions, for clients reconnecting to the
// event stream.
func (h *BulkHandler) ListDecisions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"decisions": h.decisions.List()})
}

// ResolveDecision handles POST /decisions/{id}.
func (h *BulkHandler) ResolveDecision(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return
	}
	choice := recurrence.Choice(req.Choice)
	if !choice.Valid() {
		writeJSON(w, http.StatusBadRequest, errorBody("choice must be update-all, split, or cancel"))
		return
	}
	if !h.decisions.Resolve(id, choice) {
		writeJSON(w, http.StatusNotFound, errorBody("unknown decision"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Scan handles POST /recurrence/scan: an on-demand healing pass.
func (h *BulkHandler) Scan(w http.ResponseWriter, r *http.Request) {
	healed, err := h.scanner.ScanAndHeal(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("scan failed"))
		return
	}
	writeJSON(w, http.StatusOK, ScanResponse{Healed: healed})
}
