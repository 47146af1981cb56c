package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"sitescout/internal/auth"
	"sitescout/internal/explore"
	"sitescout/internal/task"
)

// Runner executes a stored task. task.Service satisfies it.
type Runner interface {
	Run(ctx context.Context, id string) (explore.Payload, error)
}

type Handler struct {
	tasks        task.Store
	runner       Runner
	verifier     auth.Verifier
	authRequired bool
	logger       *zap.Logger
}

func NewHandler(tasks task.Store, runner Runner, verifier auth.Verifier, authRequired bool, logger *zap.Logger) Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Handler{tasks: tasks, runner: runner, verifier: verifier, authRequired: authRequired, logger: logger}
}

type contextKey string

const identityContextKey contextKey = "identity"

var (
	expectTaskID     = map[string]any{"task_id": "str (existing task id)"}
	expectCreateBody = map[string]any{"url": "str", "goal": "str"}
	expectUpdateBody = map[string]any{"body": map[string]string{"url": "str (optional)", "goal": "str (optional)"}}
)

func (h Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createTaskRequest struct {
	URL  string `json:"url"`
	Goal string `json:"goal"`
}

func (h Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorExpecting(w, http.StatusBadRequest, "invalid_request", err.Error(), expectCreateBody)
		return
	}
	if strings.TrimSpace(req.URL) == "" || strings.TrimSpace(req.Goal) == "" {
		writeErrorExpecting(w, http.StatusBadRequest, "invalid_request", "Missing required fields.", expectCreateBody)
		return
	}

	created, err := h.tasks.Create(r.Context(), req.URL, req.Goal, callerEmail(r.Context()))
	if err != nil {
		h.logger.Error("Create task failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "db_error", "failed to create task")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"task_id":  created.ID,
		"endpoint": "/run-task/" + created.ID,
	})
}

func (h Handler) RunTask(w http.ResponseWriter, r *http.Request) {
	current, ok := h.loadTask(w, r)
	if !ok {
		return
	}

	payload, err := h.runner.Run(r.Context(), current.ID)
	switch {
	case errors.Is(err, task.ErrAlreadyRunning):
		writeError(w, http.StatusConflict, "task_running", "Task is already running.")
		return
	case errors.Is(err, task.ErrNotFound):
		writeErrorExpecting(w, http.StatusNotFound, "not_found", "Task not found.", expectTaskID)
		return
	case err != nil:
		h.logger.Error("Run task failed", zap.String("task_id", current.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "run_failed", "failed to record task result")
		return
	}

	writeJSON(w, http.StatusOK, payload)
}

func (h Handler) TaskStatus(w http.ResponseWriter, r *http.Request) {
	current, ok := h.loadTask(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, current)
}

type updateTaskRequest struct {
	URL  *string `json:"url"`
	Goal *string `json:"goal"`
}

func (h Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	current, ok := h.loadTask(w, r)
	if !ok {
		return
	}

	var req updateTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorExpecting(w, http.StatusBadRequest, "invalid_request", err.Error(), expectUpdateBody)
		return
	}

	updated, err := h.tasks.Update(r.Context(), current.ID, task.Patch{URL: req.URL, Goal: req.Goal})
	switch {
	case errors.Is(err, task.ErrNothingToUpdate):
		writeErrorExpecting(w, http.StatusBadRequest, "invalid_request", "No fields to update provided.", expectUpdateBody)
		return
	case errors.Is(err, task.ErrNotFound):
		writeErrorExpecting(w, http.StatusNotFound, "not_found", "Task not found.", expectTaskID)
		return
	case errors.Is(err, task.ErrAlreadyRunning):
		writeError(w, http.StatusConflict, "task_running", "Task is running and cannot be updated.")
		return
	case err != nil:
		h.logger.Error("Update task failed", zap.String("task_id", current.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "db_error", "failed to update task")
		return
	}

	message := "Task updated."
	if updated.Status == task.StatusModified {
		message = "Task updated. Status set to 'modified'. Result cleared."
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": message, "task": updated})
}

func (h Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	current, ok := h.loadTask(w, r)
	if !ok {
		return
	}

	if err := h.tasks.Delete(r.Context(), current.ID); err != nil {
		if errors.Is(err, task.ErrNotFound) {
			writeErrorExpecting(w, http.StatusNotFound, "not_found", "Task not found.", expectTaskID)
			return
		}
		h.logger.Error("Delete task failed", zap.String("task_id", current.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "db_error", "failed to delete task")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Task deleted."})
}

// loadTask resolves the {taskID} path parameter. Tasks owned by another
// caller are reported as missing.
func (h Handler) loadTask(w http.ResponseWriter, r *http.Request) (task.Task, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "taskID"))
	current, err := h.tasks.Get(r.Context(), id)
	if errors.Is(err, task.ErrNotFound) || (err == nil && !h.ownedByCaller(r.Context(), current)) {
		writeErrorExpecting(w, http.StatusNotFound, "not_found", "Task not found.", expectTaskID)
		return task.Task{}, false
	}
	if err != nil {
		h.logger.Error("Load task failed", zap.String("task_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "db_error", "failed to read task")
		return task.Task{}, false
	}
	return current, true
}

func (h Handler) ownedByCaller(ctx context.Context, t task.Task) bool {
	if !h.authRequired || t.Owner == "" {
		return true
	}
	return t.Owner == callerEmail(ctx)
}

// RequireIdentity verifies the bearer token when auth is enabled.
func (h Handler) RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.authRequired {
			next.ServeHTTP(w, r)
			return
		}

		header := strings.TrimSpace(r.Header.Get("Authorization"))
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "bearer token required")
			return
		}

		identity, err := h.verifier.Verify(r.Context(), strings.TrimSpace(token))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_google_token", err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityContextKey, identity)))
	})
}

func callerEmail(ctx context.Context) string {
	identity, ok := ctx.Value(identityContextKey).(auth.Identity)
	if !ok {
		return ""
	}
	return identity.Email
}
