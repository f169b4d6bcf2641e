package domain

import (
	"slices"
	"strings"
	"time"
)

// MilestoneStatus is the caller-managed schedule state of a milestone.
type MilestoneStatus string

// MilestoneStatus values.
const (
	MilestoneNotStarted MilestoneStatus = "not-started"
	MilestoneInProgress MilestoneStatus = "in-progress"
	MilestoneCompleted  MilestoneStatus = "completed"
	MilestoneDelayed    MilestoneStatus = "delayed"
)

var validMilestoneStatuses = []MilestoneStatus{
	MilestoneNotStarted,
	MilestoneInProgress,
	MilestoneCompleted,
	MilestoneDelayed,
}

// Milestone groups an ordered set of tasks inside a project.
type Milestone struct {
	ID          string          `json:"id"`
	ProjectID   string          `json:"project_id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	StartDate   time.Time       `json:"start_date"`
	EndDate     time.Time       `json:"end_date"`
	Progress    int             `json:"progress"`
	Status      MilestoneStatus `json:"status"`
	Position    int             `json:"position"`
	CreatedAt   time.Time       `json:"created_at"`
}

// MilestoneInput holds milestone fields supplied by callers.
type MilestoneInput struct {
	ID          string
	ProjectID   string
	Title       string
	Description string
	StartDate   time.Time
	EndDate     time.Time
	Status      MilestoneStatus
	Position    int
}

// NewMilestone constructs a new value for this package.
func NewMilestone(in MilestoneInput, now time.Time) (Milestone, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.ProjectID = strings.TrimSpace(in.ProjectID)
	if in.ID == "" || in.ProjectID == "" {
		return Milestone{}, ErrInvalidID
	}
	if in.Position < 0 {
		return Milestone{}, ErrInvalidPosition
	}
	if in.Status == "" {
		in.Status = MilestoneNotStarted
	}
	m := Milestone{
		ID:        in.ID,
		ProjectID: in.ProjectID,
		Position:  in.Position,
		CreatedAt: now.UTC(),
	}
	if err := m.UpdateDetails(in.Title, in.Description, in.StartDate, in.EndDate, in.Status); err != nil {
		return Milestone{}, err
	}
	return m, nil
}

// UpdateDetails updates state for the requested operation.
func (m *Milestone) UpdateDetails(title, description string, start, end time.Time, status MilestoneStatus) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrInvalidTitle
	}
	status = MilestoneStatus(strings.TrimSpace(strings.ToLower(string(status))))
	if !slices.Contains(validMilestoneStatuses, status) {
		return ErrInvalidMilestoneStatus
	}
	start, end, err := normalizeDateRange(start, end)
	if err != nil {
		return err
	}
	m.Title = title
	m.Description = strings.TrimSpace(description)
	m.StartDate = start
	m.EndDate = end
	m.Status = status
	return nil
}
