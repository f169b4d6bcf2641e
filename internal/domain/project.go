package domain

import (
	"slices"
	"strings"
	"time"
)

// ProjectStatus is the caller-managed lifecycle of a project.
type ProjectStatus string

// ProjectStatus values.
const (
	ProjectPlanning   ProjectStatus = "planning"
	ProjectInProgress ProjectStatus = "in-progress"
	ProjectOnHold     ProjectStatus = "on-hold"
	ProjectCompleted  ProjectStatus = "completed"
	ProjectCancelled  ProjectStatus = "cancelled"
)

var validProjectStatuses = []ProjectStatus{
	ProjectPlanning,
	ProjectInProgress,
	ProjectOnHold,
	ProjectCompleted,
	ProjectCancelled,
}

// Project represents project data used by this package. Progress is derived and only
// written by the rollup.
type Project struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Description    string        `json:"description"`
	StartDate      time.Time     `json:"start_date"`
	EndDate        time.Time     `json:"end_date"`
	EstimatedHours int           `json:"estimated_hours"`
	Status         ProjectStatus `json:"status"`
	Progress       int           `json:"progress"`
	CreatedBy      string        `json:"created_by"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// ProjectInput holds project fields supplied by callers.
type ProjectInput struct {
	ID             string
	Name           string
	Description    string
	StartDate      time.Time
	EndDate        time.Time
	EstimatedHours int
	Status         ProjectStatus
	CreatedBy      string
}

// NewProject constructs a new value for this package.
func NewProject(in ProjectInput, now time.Time) (Project, error) {
	in.ID = strings.TrimSpace(in.ID)
	if in.ID == "" {
		return Project{}, ErrInvalidID
	}
	if in.Status == "" {
		in.Status = ProjectPlanning
	}
	p := Project{
		ID:        in.ID,
		CreatedBy: strings.TrimSpace(in.CreatedBy),
		CreatedAt: now.UTC(),
	}
	if err := p.UpdateDetails(in.Name, in.Description, in.StartDate, in.EndDate, in.EstimatedHours, in.Status, now); err != nil {
		return Project{}, err
	}
	return p, nil
}

// UpdateDetails updates state for the requested operation.
func (p *Project) UpdateDetails(name, description string, start, end time.Time, estimatedHours int, status ProjectStatus, now time.Time) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}
	if estimatedHours < 0 {
		return ErrInvalidEstimate
	}
	status = ProjectStatus(strings.TrimSpace(strings.ToLower(string(status))))
	if !slices.Contains(validProjectStatuses, status) {
		return ErrInvalidProjectStatus
	}
	start, end, err := normalizeDateRange(start, end)
	if err != nil {
		return err
	}
	p.Name = name
	p.Description = strings.TrimSpace(description)
	p.StartDate = start
	p.EndDate = end
	p.EstimatedHours = estimatedHours
	p.Status = status
	p.UpdatedAt = now.UTC()
	return nil
}

// ProjectMember joins a user to a project with per-project capability flags.
type ProjectMember struct {
	UserID         string    `json:"user_id"`
	ProjectID      string    `json:"project_id"`
	Role           Role      `json:"role"`
	CanEdit        bool      `json:"can_edit"`
	CanDelete      bool      `json:"can_delete"`
	CanAssignTasks bool      `json:"can_assign_tasks"`
	JoinedAt       time.Time `json:"joined_at"`
}

// NewProjectMember validates and constructs a membership row.
func NewProjectMember(in ProjectMember, now time.Time) (ProjectMember, error) {
	in.UserID = strings.TrimSpace(in.UserID)
	in.ProjectID = strings.TrimSpace(in.ProjectID)
	if in.UserID == "" || in.ProjectID == "" {
		return ProjectMember{}, ErrInvalidID
	}
	if in.Role == "" {
		in.Role = RoleDeveloper
	}
	in.Role = NormalizeRole(in.Role)
	if !slices.Contains(validRoles, in.Role) {
		return ProjectMember{}, ErrInvalidRole
	}
	if in.JoinedAt.IsZero() {
		in.JoinedAt = now
	}
	in.JoinedAt = in.JoinedAt.UTC()
	return in, nil
}

// normalizeDateRange canonicalizes optional dates and rejects end-before-start.
func normalizeDateRange(start, end time.Time) (time.Time, time.Time, error) {
	start = normalizeDate(start)
	end = normalizeDate(end)
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return time.Time{}, time.Time{}, ErrInvalidDateRange
	}
	return start, end, nil
}

// normalizeDate stores dates in UTC at second precision.
func normalizeDate(ts time.Time) time.Time {
	if ts.IsZero() {
		return time.Time{}
	}
	return ts.UTC().Truncate(time.Second)
}
