// Package api exposes the local JSON API a UI layer drives the workout log
// through.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"example.com/liftlog/internal/core"
	"example.com/liftlog/internal/domain"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Option configures a Handler.
type Option func(*Handler)

// WithLogger overrides the handler logger.
func WithLogger(logger *zap.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// Handler coordinates HTTP requests with the engine.
type Handler struct {
	engine *core.Engine
	logger *zap.Logger
}

// NewHandler builds a Handler.
func NewHandler(engine *core.Engine, opts ...Option) *Handler {
	h := &Handler{engine: engine, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", healthz)

	mux.HandleFunc("GET /v1/account", h.getAccount)
	mux.HandleFunc("POST /v1/account", h.createAccount)
	mux.HandleFunc("PUT /v1/account", h.updateAccount)
	mux.HandleFunc("DELETE /v1/account", h.deleteAccount)

	mux.HandleFunc("GET /v1/exercises", h.listExercises)
	mux.HandleFunc("POST /v1/exercises", h.createExercise)
	mux.HandleFunc("GET /v1/exercises/{id}", h.getExercise)
	mux.HandleFunc("PUT /v1/exercises/{id}", h.updateExercise)
	mux.HandleFunc("DELETE /v1/exercises/{id}", h.deleteExercise)
	mux.HandleFunc("GET /v1/exercises/{id}/last-performance", h.lastPerformance)

	mux.HandleFunc("GET /v1/folders", h.listFolders)
	mux.HandleFunc("POST /v1/folders", h.createFolder)
	mux.HandleFunc("PUT /v1/folders/{id}", h.renameFolder)
	mux.HandleFunc("DELETE /v1/folders/{id}", h.deleteFolder)
	mux.HandleFunc("PUT /v1/folders/{id}/templates/{templateID}", h.assignTemplate)

	mux.HandleFunc("GET /v1/templates", h.listTemplates)
	mux.HandleFunc("POST /v1/templates", h.createTemplate)
	mux.HandleFunc("GET /v1/templates/{id}", h.getTemplate)
	mux.HandleFunc("PUT /v1/templates/{id}", h.updateTemplate)
	mux.HandleFunc("DELETE /v1/templates/{id}", h.deleteTemplate)
	mux.HandleFunc("DELETE /v1/templates/{id}/folder", h.unassignTemplate)

	mux.HandleFunc("GET /v1/sessions", h.listSessions)
	mux.HandleFunc("POST /v1/sessions", h.logSession)
	mux.HandleFunc("GET /v1/sessions/{id}", h.getSession)
	mux.HandleFunc("PUT /v1/sessions/{id}", h.updateSession)
	mux.HandleFunc("DELETE /v1/sessions/{id}", h.deleteSession)

	mux.HandleFunc("GET /v1/draft", h.getDraft)
	mux.HandleFunc("POST /v1/draft", h.startDraft)
	mux.HandleFunc("PATCH /v1/draft", h.patchDraft)
	mux.HandleFunc("DELETE /v1/draft", h.discardDraft)
	mux.HandleFunc("POST /v1/draft/exercises", h.addExercise)
	mux.HandleFunc("POST /v1/draft/sets", h.addSet)
	mux.HandleFunc("PUT /v1/draft/sets/{id}", h.editSet)
	mux.HandleFunc("DELETE /v1/draft/sets/{id}", h.removeSet)
	mux.HandleFunc("POST /v1/draft/run", h.addRun)
	mux.HandleFunc("POST /v1/draft/run/gps", h.startGPSRun)
	mux.HandleFunc("POST /v1/draft/run/points", h.offerPoints)
	mux.HandleFunc("POST /v1/draft/run/finish", h.finishRun)
	mux.HandleFunc("POST /v1/draft/complete", h.completeDraft)

	mux.HandleFunc("POST /v1/resume", h.resume)
	mux.HandleFunc("GET /v1/pending", h.pending)
	mux.HandleFunc("GET /v1/outbox", h.outboxStats)
	mux.HandleFunc("POST /v1/outbox/requeue", h.requeueOutbox)
}

// healthz reports a simple OK status for health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) resume(w http.ResponseWriter, r *http.Request) {
	persisted, err := h.engine.Resume(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if persisted == nil {
		persisted = []string{}
	}
	writeJSON(w, http.StatusOK, ResumeResponse{Persisted: persisted})
}

func (h *Handler) pending(w http.ResponseWriter, r *http.Request) {
	ids, err := h.engine.PendingPersist(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ResumeResponse{Pending: ids})
}

func (h *Handler) outboxStats(w http.ResponseWriter, r *http.Request) {
	pending, quarantined, err := h.engine.OutboxStats(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OutboxStatsResponse{Pending: pending, Quarantined: quarantined})
}

func (h *Handler) requeueOutbox(w http.ResponseWriter, r *http.Request) {
	n, err := h.engine.RequeueQuarantined(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"requeued": n})
}

// ResumeResponse lists sessions whose save was confirmed, or still pending.
type ResumeResponse struct {
	Persisted []string `json:"persisted,omitempty"`
	Pending   []string `json:"pending,omitempty"`
}

// OutboxStatsResponse reports the export backlog.
type OutboxStatsResponse struct {
	Pending     int `json:"pending"`
	Quarantined int `json:"quarantined"`
}

// statusFor maps the domain error taxonomy onto HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrReferentialIntegrity):
		return http.StatusConflict, "referential_integrity"
	case errors.Is(err, domain.ErrAlreadyActive):
		return http.StatusConflict, "already_active"
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, domain.ErrCorruption):
		return http.StatusInternalServerError, "corruption"
	case errors.Is(err, domain.ErrPersistenceFailure):
		return http.StatusServiceUnavailable, "persistence_failure"
	case errors.Is(err, core.ErrStopped):
		return http.StatusServiceUnavailable, "stopped"
	default:
		return http.StatusInternalServerError, "server_error"
	}
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("type", code), zap.Error(err))
	}
	writeError(w, status, code, err.Error())
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return false
	}
	return true
}

func pageSize(r *http.Request) int {
	limit := defaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = min(parsed, maxPageSize)
		}
	}
	return limit
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
