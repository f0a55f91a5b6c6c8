package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/halvard/jera/internal/bulkedit"
	"github.com/halvard/jera/internal/decision"
	"github.com/halvard/jera/internal/noteservice"
	"github.com/halvard/jera/internal/recurrence"
)

// Deps bundles the collaborators the API routes need.
type Deps struct {
	Service   *noteservice.Service
	Bulk      *bulkedit.Coordinator
	Orch      *recurrence.Orchestrator
	Tracker   *recurrence.Tracker
	Scanner   *recurrence.Scanner
	Decisions *decision.Registry

	// TriggerCtx bounds background recurrence prompts; cancelled at shutdown.
	TriggerCtx context.Context

	AuthEnabled bool
	Token       string

	// SSE, if non-nil, is mounted at GET /events inside the auth group.
	SSE http.Handler
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(d Deps) chi.Router {
	h := NewHandler(d.Service, d.Orch, d.Tracker, d.TriggerCtx)
	bh := NewBulkHandler(d.Bulk, d.Decisions, d.Scanner, d.TriggerCtx)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(d.AuthEnabled, d.Token))

	// Notes CRUD.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Get("/notes/*", h.GetNote)
	r.Put("/notes/*", h.UpdateNote)
	r.Delete("/notes/*", h.DeleteNote)

	// Recurrence triggers from the editing surface.
	r.Post("/focus", h.Focus)
	r.Post("/modified", h.Modified)

	// Bulk metadata mutations.
	r.Post("/bulk/status", bh.SetStatus)
	r.Post("/bulk/rule", bh.SetRule)
	r.Post("/bulk/field", bh.SetField)
	r.Post("/bulk/tags/add", bh.AddTag)
	r.Post("/bulk/tags/remove", bh.RemoveTag)

	// Decision prompts.
	r.Get("/decisions", bh.ListDecisions)
	r.Post("/decisions/{id}", bh.ResolveDecision)

	// On-demand healing pass.
	r.Post("/recurrence/scan", bh.Scan)

	// Live suppression window reconfiguration.
	r.Put("/recurrence/window", h.SetWindow)

	// SSE endpoint (protected by the same auth middleware).
	if d.SSE != nil {
		r.Get("/events", d.SSE.ServeHTTP)
	}

	return r
}
