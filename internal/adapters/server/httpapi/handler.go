// Package httpapi provides the REST HTTP adapter for the server surfaces.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/evanschultz/tally/internal/adapters/server/common"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// HeaderUserID carries the already-authenticated caller identifier.
const HeaderUserID = "X-Tally-User-ID"

// HeaderUserRole carries the caller role.
const HeaderUserRole = "X-Tally-User-Role"

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	tracker common.TrackerService
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hint    string         `json:"hint,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewHandler constructs one HTTP API adapter over the tracker service.
func NewHandler(tracker common.TrackerService) *Handler {
	return &Handler{tracker: tracker}
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.tracker == nil {
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: "tracker service is not configured",
		})
		return
	}
	parts := splitPath(r.URL.Path)
	if len(parts) == 0 {
		writeNotFound(w)
		return
	}
	switch parts[0] {
	case "users":
		h.routeUsers(w, r, parts[1:])
	case "projects":
		h.routeProjects(w, r, parts[1:])
	case "tasks":
		h.routeTasks(w, r, parts[1:])
	default:
		writeNotFound(w)
	}
}

// routeUsers dispatches `/users/...` requests.
func (h *Handler) routeUsers(w http.ResponseWriter, r *http.Request, rest []string) {
	switch len(rest) {
	case 0:
		switch r.Method {
		case http.MethodGet:
			users, err := h.tracker.ListUsers(r.Context())
			respond(w, http.StatusOK, map[string]any{"users": users}, err)
		case http.MethodPost:
			var req common.CreateUserRequest
			if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
				writeErrorFrom(w, err)
				return
			}
			user, err := h.tracker.CreateUser(r.Context(), actorFromRequest(r), req)
			respond(w, http.StatusCreated, user, err)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	case 1:
		userID := rest[0]
		switch r.Method {
		case http.MethodGet:
			user, err := h.tracker.GetUser(r.Context(), userID)
			respond(w, http.StatusOK, user, err)
		case http.MethodPatch:
			var req common.UpdateUserRequest
			if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
				writeErrorFrom(w, err)
				return
			}
			req.UserID = userID
			user, err := h.tracker.UpdateUser(r.Context(), actorFromRequest(r), req)
			respond(w, http.StatusOK, user, err)
		case http.MethodDelete:
			err := h.tracker.DeleteUser(r.Context(), actorFromRequest(r), userID)
			respond(w, http.StatusNoContent, nil, err)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPatch, http.MethodDelete)
		}
	case 2:
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		userID := rest[0]
		switch rest[1] {
		case "tasks":
			tasks, err := h.tracker.TasksAssignedToUser(r.Context(), userID)
			respond(w, http.StatusOK, map[string]any{"tasks": tasks}, err)
		case "projects":
			projects, err := h.tracker.ProjectsForUser(r.Context(), userID)
			respond(w, http.StatusOK, map[string]any{"projects": projects}, err)
		case "stats":
			stats, err := h.tracker.UserTaskStats(r.Context(), userID)
			respond(w, http.StatusOK, stats, err)
		default:
			writeNotFound(w)
		}
	default:
		writeNotFound(w)
	}
}

// routeProjects dispatches `/projects/...` requests.
func (h *Handler) routeProjects(w http.ResponseWriter, r *http.Request, rest []string) {
	switch {
	case len(rest) == 0:
		switch r.Method {
		case http.MethodGet:
			projects, err := h.tracker.ListProjects(r.Context())
			respond(w, http.StatusOK, map[string]any{"projects": projects}, err)
		case http.MethodPost:
			var req common.CreateProjectRequest
			if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
				writeErrorFrom(w, err)
				return
			}
			project, err := h.tracker.CreateProject(r.Context(), actorFromRequest(r), req)
			respond(w, http.StatusCreated, project, err)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	case len(rest) == 1:
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		project, err := h.tracker.GetProject(r.Context(), rest[0])
		respond(w, http.StatusOK, project, err)
	case len(rest) == 2 && rest[1] == "tree":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		tree, err := h.tracker.ProjectTree(r.Context(), rest[0])
		respond(w, http.StatusOK, tree, err)
	case len(rest) == 2 && rest[1] == "members":
		switch r.Method {
		case http.MethodGet:
			members, err := h.tracker.ListProjectMembers(r.Context(), rest[0])
			respond(w, http.StatusOK, map[string]any{"members": members}, err)
		case http.MethodPost:
			var req common.AddProjectMemberRequest
			if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
				writeErrorFrom(w, err)
				return
			}
			req.ProjectID = rest[0]
			member, err := h.tracker.AddProjectMember(r.Context(), actorFromRequest(r), req)
			respond(w, http.StatusCreated, member, err)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	case len(rest) == 3 && rest[1] == "members":
		if r.Method != http.MethodDelete {
			writeMethodNotAllowed(w, http.MethodDelete)
			return
		}
		err := h.tracker.RemoveProjectMember(r.Context(), actorFromRequest(r), rest[0], rest[2])
		respond(w, http.StatusNoContent, nil, err)
	case len(rest) == 2 && rest[1] == "milestones":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		var req common.CreateMilestoneRequest
		if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
			writeErrorFrom(w, err)
			return
		}
		req.ProjectID = rest[0]
		milestone, err := h.tracker.CreateMilestone(r.Context(), actorFromRequest(r), req)
		respond(w, http.StatusCreated, milestone, err)
	default:
		writeNotFound(w)
	}
}

// routeTasks dispatches `/tasks/...` requests.
func (h *Handler) routeTasks(w http.ResponseWriter, r *http.Request, rest []string) {
	switch {
	case len(rest) == 0:
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		var req common.CreateTaskRequest
		if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
			writeErrorFrom(w, err)
			return
		}
		task, err := h.tracker.CreateTask(r.Context(), actorFromRequest(r), req)
		respond(w, http.StatusCreated, task, err)
	case len(rest) == 1:
		taskID := rest[0]
		switch r.Method {
		case http.MethodGet:
			task, err := h.tracker.GetTask(r.Context(), taskID)
			respond(w, http.StatusOK, task, err)
		case http.MethodPatch:
			var req common.UpdateTaskRequest
			if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
				writeErrorFrom(w, err)
				return
			}
			req.TaskID = taskID
			task, err := h.tracker.UpdateTask(r.Context(), actorFromRequest(r), req)
			respond(w, http.StatusOK, task, err)
		case http.MethodDelete:
			err := h.tracker.DeleteTask(r.Context(), actorFromRequest(r), taskID)
			respond(w, http.StatusNoContent, nil, err)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPatch, http.MethodDelete)
		}
	case len(rest) == 2 && rest[1] == "summary":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		summary, err := h.tracker.TaskCompletionSummary(r.Context(), rest[0])
		respond(w, http.StatusOK, summary, err)
	case len(rest) == 4 && rest[1] == "assignees" && rest[3] == "status":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		var payload struct {
			Status string `json:"status"`
		}
		if err := decodeJSONBody(r.Context(), w, r, &payload); err != nil {
			writeErrorFrom(w, err)
			return
		}
		task, err := h.tracker.SetUserTaskStatus(r.Context(), actorFromRequest(r), common.SetUserTaskStatusRequest{
			TaskID: rest[0],
			UserID: rest[2],
			Status: payload.Status,
		})
		respond(w, http.StatusOK, task, err)
	case len(rest) == 4 && rest[1] == "assignees" && rest[3] == "completion":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		var payload struct {
			Completed bool `json:"completed"`
		}
		if err := decodeJSONBody(r.Context(), w, r, &payload); err != nil {
			writeErrorFrom(w, err)
			return
		}
		task, err := h.tracker.SetUserTaskCompletion(r.Context(), actorFromRequest(r), common.SetUserTaskCompletionRequest{
			TaskID:    rest[0],
			UserID:    rest[2],
			Completed: payload.Completed,
		})
		respond(w, http.StatusOK, task, err)
	default:
		writeNotFound(w)
	}
}

// actorFromRequest resolves the caller from identity headers.
func actorFromRequest(r *http.Request) common.Actor {
	return common.Actor{
		ID:   strings.TrimSpace(r.Header.Get(HeaderUserID)),
		Role: strings.TrimSpace(r.Header.Get(HeaderUserRole)),
	}
}

// splitPath canonicalizes one request path into non-empty segments.
func splitPath(path string) []string {
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == "" {
		return nil
	}
	parts := strings.Split(path, "/")
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			return nil
		}
	}
	return parts
}

// respond writes payload on success or the mapped error otherwise.
func respond(w http.ResponseWriter, statusCode int, payload any, err error) {
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	if statusCode == http.StatusNoContent {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, statusCode, payload)
}

// writeErrorFrom maps adapter errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "unknown error",
		})
	case errors.Is(err, common.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrInvalidRequest):
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrForbidden):
		writeJSONError(w, http.StatusForbidden, APIError{
			Code:    "forbidden",
			Message: err.Error(),
			Hint:    "Send " + HeaderUserID + " and " + HeaderUserRole + " for a role allowed to perform this action.",
		})
	case errors.Is(err, common.ErrConflict):
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    "conflict",
			Message: err.Error(),
		})
	default:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: err.Error(),
		})
	}
}

// writeNotFound writes the structured unknown-endpoint response.
func writeNotFound(w http.ResponseWriter) {
	writeJSONError(w, http.StatusNotFound, APIError{
		Code:    "not_found",
		Message: "endpoint not found",
	})
}

// writeMethodNotAllowed writes a structured 405 response with `Allow` headers.
func writeMethodNotAllowed(w http.ResponseWriter, methods ...string) {
	if len(methods) > 0 {
		w.Header().Set("Allow", strings.Join(methods, ", "))
	}
	writeJSONError(w, http.StatusMethodNotAllowed, APIError{
		Code:    "method_not_allowed",
		Message: "method not allowed",
	})
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape checks.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
	}
	// Reject trailing payloads so malformed JSON bodies fail closed.
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: trailing content: %w", common.ErrInvalidRequest)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return nil
	}
}
