package api

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"example.com/liftlog/internal/domain"
	"example.com/liftlog/internal/persistence"
	"example.com/liftlog/internal/session"
)

// ListSessionsResponse packages one page of history.
type ListSessionsResponse struct {
	Items      []domain.WorkoutSession `json:"items"`
	NextCursor string                  `json:"next_cursor,omitempty"`
}

// SessionEditRequest carries the fields of a completed session that may change.
type SessionEditRequest struct {
	Name  string    `json:"name"`
	Date  time.Time `json:"date"`
	Notes string    `json:"notes"`
}

// StartDraftRequest opens a draft, optionally from a template.
type StartDraftRequest struct {
	Name       string    `json:"name"`
	Date       time.Time `json:"date"`
	TemplateID string    `json:"template_id"`
}

// PatchDraftRequest renames the draft or replaces its notes. Absent fields
// are left alone.
type PatchDraftRequest struct {
	Name  *string `json:"name"`
	Notes *string `json:"notes"`
}

// AddExerciseRequest adds an empty entry to the draft.
type AddExerciseRequest struct {
	ExerciseID string `json:"exercise_id"`
}

// SetRequest is the payload for adding or editing a set.
type SetRequest struct {
	ExerciseID string         `json:"exercise_id"`
	Reps       int            `json:"reps"`
	Weight     float64        `json:"weight"`
	Type       domain.SetType `json:"type"`
	Notes      string         `json:"notes"`
}

func (req SetRequest) input() session.SetInput {
	return session.SetInput{
		ExerciseID: req.ExerciseID,
		Reps:       req.Reps,
		Weight:     req.Weight,
		Type:       req.Type,
		Notes:      req.Notes,
	}
}

// RunRequest attaches a manually entered run.
type RunRequest struct {
	DistanceMeters  float64 `json:"distance_m"`
	DurationSeconds float64 `json:"duration_s"`
}

// RoutePointsRequest carries GPS samples for the recording run.
type RoutePointsRequest struct {
	Points []domain.RoutePoint `json:"points"`
}

// RoutePointsResponse reports how many samples were queued.
type RoutePointsResponse struct {
	Accepted int `json:"accepted"`
	Dropped  int `json:"dropped"`
}

// CompleteResponse returns the completed session. PendingPersist is true
// when the session is in history but its save has not been confirmed.
type CompleteResponse struct {
	Session        domain.WorkoutSession `json:"session"`
	PendingPersist bool                  `json:"pending_persist"`
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}
	page, err := h.engine.ListSessions(r.Context(), cursor, pageSize(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	items := page.Sessions
	if items == nil {
		items = []domain.WorkoutSession{}
	}
	writeJSON(w, http.StatusOK, ListSessionsResponse{
		Items:      items,
		NextCursor: persistence.EncodeCursor(page.Next),
	})
}

func (h *Handler) logSession(w http.ResponseWriter, r *http.Request) {
	var req domain.WorkoutSession
	if !decode(w, r, &req) {
		return
	}
	stored, err := h.engine.LogSession(r.Context(), req)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.engine.Session(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) updateSession(w http.ResponseWriter, r *http.Request) {
	var req SessionEditRequest
	if !decode(w, r, &req) {
		return
	}
	updated, err := h.engine.UpdateSession(r.Context(), r.PathValue("id"), domain.SessionInput{
		Name:  req.Name,
		Date:  req.Date,
		Notes: req.Notes,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.DeleteSession(r.Context(), r.PathValue("id")); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getDraft(w http.ResponseWriter, r *http.Request) {
	draft, ok, err := h.engine.Draft(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "no active session")
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (h *Handler) startDraft(w http.ResponseWriter, r *http.Request) {
	var req StartDraftRequest
	if !decode(w, r, &req) {
		return
	}
	var (
		draft domain.WorkoutSession
		err   error
	)
	if req.TemplateID != "" {
		draft, err = h.engine.StartFromTemplate(r.Context(), req.TemplateID, req.Date)
	} else {
		draft, err = h.engine.StartSession(r.Context(), req.Name, req.Date)
	}
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, draft)
}

func (h *Handler) patchDraft(w http.ResponseWriter, r *http.Request) {
	var req PatchDraftRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Name == nil && req.Notes == nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "name or notes required")
		return
	}
	var (
		draft domain.WorkoutSession
		err   error
	)
	if req.Name != nil {
		if draft, err = h.engine.Rename(r.Context(), *req.Name); err != nil {
			h.writeDomainError(w, err)
			return
		}
	}
	if req.Notes != nil {
		if draft, err = h.engine.SetNotes(r.Context(), *req.Notes); err != nil {
			h.writeDomainError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, draft)
}

func (h *Handler) discardDraft(w http.ResponseWriter, r *http.Request) {
	if _, err := h.engine.Discard(r.Context()); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addExercise(w http.ResponseWriter, r *http.Request) {
	var req AddExerciseRequest
	if !decode(w, r, &req) {
		return
	}
	draft, err := h.engine.AddExercise(r.Context(), req.ExerciseID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (h *Handler) addSet(w http.ResponseWriter, r *http.Request) {
	var req SetRequest
	if !decode(w, r, &req) {
		return
	}
	set, err := h.engine.AddSet(r.Context(), req.input())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, set)
}

func (h *Handler) editSet(w http.ResponseWriter, r *http.Request) {
	var req SetRequest
	if !decode(w, r, &req) {
		return
	}
	set, err := h.engine.EditSet(r.Context(), r.PathValue("id"), req.input())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

func (h *Handler) removeSet(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.RemoveSet(r.Context(), r.PathValue("id")); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if !decode(w, r, &req) {
		return
	}
	duration := time.Duration(req.DurationSeconds * float64(time.Second))
	run, err := h.engine.AddRun(r.Context(), req.DistanceMeters, duration)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, run)
}

func (h *Handler) startGPSRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.engine.StartGPSRun(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, run)
}

func (h *Handler) offerPoints(w http.ResponseWriter, r *http.Request) {
	var req RoutePointsRequest
	if !decode(w, r, &req) {
		return
	}
	var resp RoutePointsResponse
	for _, point := range req.Points {
		if h.engine.OfferLocation(point) {
			resp.Accepted++
		} else {
			resp.Dropped++
		}
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (h *Handler) finishRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.engine.FinishRun(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (h *Handler) completeDraft(w http.ResponseWriter, r *http.Request) {
	completed, err := h.engine.Complete(r.Context())
	if err != nil && errors.Is(err, domain.ErrPersistenceFailure) && completed.ID != "" {
		h.logger.Warn("session completed but not yet durable", zap.String("session_id", completed.ID), zap.Error(err))
		writeJSON(w, http.StatusAccepted, CompleteResponse{Session: completed, PendingPersist: true})
		return
	}
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CompleteResponse{Session: completed})
}
