package api

import (
	"net/http"

	"example.com/liftlog/internal/domain"
)

// AccountRequest is the payload for creating or renaming the account.
type AccountRequest struct {
	DisplayName string `json:"display_name"`
}

// ExerciseRequest is the payload for creating or updating an exercise.
type ExerciseRequest struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

// FolderRequest is the payload for creating or renaming a folder.
type FolderRequest struct {
	Name string `json:"name"`
}

// TemplateRequest is the payload for creating or updating a template.
type TemplateRequest struct {
	Name  string                `json:"name"`
	Items []domain.TemplateItem `json:"items"`
}

func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	account, ok, err := h.engine.Account(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "no account")
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	var req AccountRequest
	if !decode(w, r, &req) {
		return
	}
	account, err := h.engine.CreateAccount(r.Context(), req.DisplayName)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

func (h *Handler) updateAccount(w http.ResponseWriter, r *http.Request) {
	var req AccountRequest
	if !decode(w, r, &req) {
		return
	}
	account, err := h.engine.UpdateAccount(r.Context(), req.DisplayName)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (h *Handler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.DeleteAccount(r.Context()); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listExercises(w http.ResponseWriter, r *http.Request) {
	exercises, err := h.engine.Exercises(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]domain.Exercise{"items": exercises})
}

func (h *Handler) createExercise(w http.ResponseWriter, r *http.Request) {
	var req ExerciseRequest
	if !decode(w, r, &req) {
		return
	}
	exercise, err := h.engine.CreateExercise(r.Context(), domain.ExerciseInput{
		Name:     req.Name,
		Category: req.Category,
		Custom:   true,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, exercise)
}

func (h *Handler) getExercise(w http.ResponseWriter, r *http.Request) {
	exercise, err := h.engine.Exercise(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exercise)
}

func (h *Handler) updateExercise(w http.ResponseWriter, r *http.Request) {
	var req ExerciseRequest
	if !decode(w, r, &req) {
		return
	}
	exercise, err := h.engine.UpdateExercise(r.Context(), r.PathValue("id"), domain.ExerciseInput{
		Name:     req.Name,
		Category: req.Category,
		Custom:   true,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exercise)
}

func (h *Handler) deleteExercise(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.DeleteExercise(r.Context(), r.PathValue("id")); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) lastPerformance(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.engine.Exercise(r.Context(), id); err != nil {
		h.writeDomainError(w, err)
		return
	}
	entry, err := h.engine.LastPerformance(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	entry.ExerciseID = id
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) listFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := h.engine.Folders(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]domain.Folder{"items": folders})
}

func (h *Handler) createFolder(w http.ResponseWriter, r *http.Request) {
	var req FolderRequest
	if !decode(w, r, &req) {
		return
	}
	folder, err := h.engine.CreateFolder(r.Context(), req.Name)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, folder)
}

func (h *Handler) renameFolder(w http.ResponseWriter, r *http.Request) {
	var req FolderRequest
	if !decode(w, r, &req) {
		return
	}
	folder, err := h.engine.RenameFolder(r.Context(), r.PathValue("id"), req.Name)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, folder)
}

func (h *Handler) deleteFolder(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.DeleteFolder(r.Context(), r.PathValue("id")); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) assignTemplate(w http.ResponseWriter, r *http.Request) {
	folder, err := h.engine.AssignTemplate(r.Context(), r.PathValue("id"), r.PathValue("templateID"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, folder)
}

func (h *Handler) unassignTemplate(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.UnassignTemplate(r.Context(), r.PathValue("id")); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.engine.Templates(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]domain.Template{"items": templates})
}

func (h *Handler) createTemplate(w http.ResponseWriter, r *http.Request) {
	var req TemplateRequest
	if !decode(w, r, &req) {
		return
	}
	tmpl, err := h.engine.CreateTemplate(r.Context(), domain.TemplateInput{Name: req.Name, Items: req.Items})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tmpl)
}

func (h *Handler) getTemplate(w http.ResponseWriter, r *http.Request) {
	tmpl, err := h.engine.Template(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tmpl)
}

func (h *Handler) updateTemplate(w http.ResponseWriter, r *http.Request) {
	var req TemplateRequest
	if !decode(w, r, &req) {
		return
	}
	tmpl, err := h.engine.UpdateTemplate(r.Context(), r.PathValue("id"), domain.TemplateInput{Name: req.Name, Items: req.Items})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tmpl)
}

func (h *Handler) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.DeleteTemplate(r.Context(), r.PathValue("id")); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
