package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ent0n29/tasklist/internal/export"
	"github.com/ent0n29/tasklist/internal/policy"
	"github.com/ent0n29/tasklist/internal/tasks"
)

type taskTextRequest struct {
	Text *string `json:"text"`
}

type listTasksResponse struct {
	Filter    tasks.Filter `json:"filter"`
	Tasks     []tasks.Task `json:"tasks"`
	Remaining int          `json:"remaining"`
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	filter, err := tasks.ParseFilter(r.URL.Query().Get("filter"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_filter", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, listTasksResponse{
		Filter:    filter,
		Tasks:     s.store.List(filter),
		Remaining: s.store.RemainingCount(),
	})
}

func (s *Server) handleRemaining(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]int{"remaining": s.store.RemainingCount()})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.store.Get(strings.TrimSpace(chi.URLParam(r, "id")))
	if err != nil {
		respondTaskError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, task)
}

func (s *Server) handleAddTask(w http.ResponseWriter, r *http.Request) {
	var req taskTextRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	text := ""
	if req.Text != nil {
		text = *req.Text
	}

	task, err := s.store.Add(r.Context(), text)
	s.metrics.ObserveMutation(string(tasks.OpAdd), mutationOutcome(err))
	if err != nil {
		respondTaskError(w, err)
		return
	}
	s.log.WithField("task_id", task.ID).WithField("text", policy.LogText(task.Text)).Info("task added")
	respondJSON(w, http.StatusCreated, task)
}

func (s *Server) handleToggleTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.store.Toggle(r.Context(), strings.TrimSpace(chi.URLParam(r, "id")))
	s.metrics.ObserveMutation(string(tasks.OpToggle), mutationOutcome(err))
	if err != nil {
		respondTaskError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, task)
}

func (s *Server) handleEditTask(w http.ResponseWriter, r *http.Request) {
	var req taskTextRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Text == nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "text is required")
		return
	}

	task, err := s.store.Edit(r.Context(), strings.TrimSpace(chi.URLParam(r, "id")), *req.Text)
	s.metrics.ObserveMutation(string(tasks.OpEdit), mutationOutcome(err))
	if err != nil {
		respondTaskError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, task)
}

// handleDeleteTask is idempotent: an unknown id still answers 204.
func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	removed := s.store.Delete(r.Context(), strings.TrimSpace(chi.URLParam(r, "id")))
	s.metrics.ObserveMutation(string(tasks.OpDelete), deleteOutcome(removed))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearCompleted(w http.ResponseWriter, r *http.Request) {
	removed := s.store.ClearCompleted(r.Context())
	s.metrics.ObserveMutation(string(tasks.OpClearCompleted), "ok")
	respondJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := tasks.ParseFilter(q.Get("filter"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_filter", err.Error())
		return
	}
	format, err := export.ParseFormat(q.Get("format"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "unknown_format", err.Error())
		return
	}

	body, err := s.exporter.Export(filter, format)
	if err != nil {
		s.log.WithError(err).WithField("format", format).Error("export failed")
		respondError(w, http.StatusInternalServerError, "export_failed", err.Error())
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "todos."+string(format)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func respondTaskError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tasks.ErrEmptyText):
		respondError(w, http.StatusUnprocessableEntity, "empty_text", err.Error())
	case errors.Is(err, tasks.ErrTaskNotFound):
		respondError(w, http.StatusNotFound, "task_not_found", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

func deleteOutcome(removed bool) string {
	if removed {
		return "ok"
	}
	return "noop"
}

func mutationOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, tasks.ErrEmptyText):
		return "empty_text"
	case errors.Is(err, tasks.ErrTaskNotFound):
		return "not_found"
	default:
		return "error"
	}
}
