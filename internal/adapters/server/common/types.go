// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/evanschultz/tally/internal/app"
	"github.com/evanschultz/tally/internal/domain"
)

// ErrInvalidRequest reports malformed transport input or domain validation failures.
var ErrInvalidRequest = errors.New("invalid request")

// ErrNotFound reports missing transport-visible resources.
var ErrNotFound = errors.New("not found")

// ErrConflict reports requests that are well formed but refused in the current state.
var ErrConflict = errors.New("conflict")

// Actor identifies the caller a transport resolved for one request.
type Actor struct {
	ID   string `json:"actor_id"`
	Role string `json:"actor_role"`
}

// SetUserTaskStatusRequest changes one assignee's own status on a task.
type SetUserTaskStatusRequest struct {
	TaskID string `json:"task_id"`
	UserID string `json:"user_id"`
	Status string `json:"status"`
}

// SetUserTaskCompletionRequest toggles one assignee's completion flag on a task.
type SetUserTaskCompletionRequest struct {
	TaskID    string `json:"task_id"`
	UserID    string `json:"user_id"`
	Completed bool   `json:"completed"`
}

// CreateTaskRequest creates one task inside a milestone.
type CreateTaskRequest struct {
	MilestoneID string   `json:"milestone_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      string   `json:"status,omitempty"`
	Priority    string   `json:"priority,omitempty"`
	AssignedTo  []string `json:"assigned_to,omitempty"`
	StartDate   string   `json:"start_date,omitempty"`
	EndDate     string   `json:"end_date,omitempty"`
}

// UpdateTaskRequest patches one task. Nil fields are left unchanged.
type UpdateTaskRequest struct {
	TaskID      string    `json:"task_id,omitempty"`
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Status      *string   `json:"status,omitempty"`
	Priority    *string   `json:"priority,omitempty"`
	AssignedTo  *[]string `json:"assigned_to,omitempty"`
	StartDate   *string   `json:"start_date,omitempty"`
	EndDate     *string   `json:"end_date,omitempty"`
}

// CreateUserRequest creates one user.
type CreateUserRequest struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar,omitempty"`
	Role   string `json:"role,omitempty"`
}

// UpdateUserRequest patches one user. Empty fields keep their current value.
type UpdateUserRequest struct {
	UserID string `json:"user_id,omitempty"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	Avatar string `json:"avatar,omitempty"`
	Role   string `json:"role,omitempty"`
}

// CreateProjectRequest creates one project.
type CreateProjectRequest struct {
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	StartDate      string `json:"start_date,omitempty"`
	EndDate        string `json:"end_date,omitempty"`
	EstimatedHours int    `json:"estimated_hours,omitempty"`
	Status         string `json:"status,omitempty"`
}

// AddProjectMemberRequest adds or replaces one project membership.
type AddProjectMemberRequest struct {
	ProjectID      string `json:"project_id,omitempty"`
	UserID         string `json:"user_id"`
	Role           string `json:"role,omitempty"`
	CanEdit        bool   `json:"can_edit"`
	CanDelete      bool   `json:"can_delete"`
	CanAssignTasks bool   `json:"can_assign_tasks"`
}

// CreateMilestoneRequest appends one milestone to a project.
type CreateMilestoneRequest struct {
	ProjectID   string `json:"project_id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	StartDate   string `json:"start_date,omitempty"`
	EndDate     string `json:"end_date,omitempty"`
	Status      string `json:"status,omitempty"`
}

// TaskService exposes task mutations and reads.
type TaskService interface {
	SetUserTaskStatus(context.Context, Actor, SetUserTaskStatusRequest) (domain.Task, error)
	SetUserTaskCompletion(context.Context, Actor, SetUserTaskCompletionRequest) (domain.Task, error)
	CreateTask(context.Context, Actor, CreateTaskRequest) (domain.Task, error)
	UpdateTask(context.Context, Actor, UpdateTaskRequest) (domain.Task, error)
	DeleteTask(context.Context, Actor, string) error
	GetTask(context.Context, string) (domain.Task, error)
	TaskCompletionSummary(context.Context, string) (domain.CompletionSummary, error)
}

// UserService exposes user management and per-user queries.
type UserService interface {
	ListUsers(context.Context) ([]domain.User, error)
	GetUser(context.Context, string) (domain.User, error)
	CreateUser(context.Context, Actor, CreateUserRequest) (domain.User, error)
	UpdateUser(context.Context, Actor, UpdateUserRequest) (domain.User, error)
	DeleteUser(context.Context, Actor, string) error
	TasksAssignedToUser(context.Context, string) ([]domain.Task, error)
	ProjectsForUser(context.Context, string) ([]domain.Project, error)
	UserTaskStats(context.Context, string) (app.UserTaskStats, error)
}

// ProjectService exposes project, membership, and milestone management.
type ProjectService interface {
	ListProjects(context.Context) ([]domain.Project, error)
	GetProject(context.Context, string) (domain.Project, error)
	CreateProject(context.Context, Actor, CreateProjectRequest) (domain.Project, error)
	ProjectTree(context.Context, string) (app.ProjectTree, error)
	ListProjectMembers(context.Context, string) ([]domain.ProjectMember, error)
	AddProjectMember(context.Context, Actor, AddProjectMemberRequest) (domain.ProjectMember, error)
	RemoveProjectMember(context.Context, Actor, string, string) error
	CreateMilestone(context.Context, Actor, CreateMilestoneRequest) (domain.Milestone, error)
}

// TrackerService is the full surface both transports serve.
type TrackerService interface {
	TaskService
	UserService
	ProjectService
}

// dateLayouts lists accepted transport date formats, most specific first.
var dateLayouts = []string{time.RFC3339Nano, time.RFC3339, time.DateOnly}

// ParseDate parses an optional transport date. Empty input yields the zero time.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("date %q must be YYYY-MM-DD or RFC3339: %w", raw, ErrInvalidRequest)
}
