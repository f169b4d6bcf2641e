package domain

import (
	"slices"
	"strings"
	"time"
)

// UserTaskStatus is one assignee's own progress on a task.
type UserTaskStatus string

// UserTaskStatus values.
const (
	UserPending    UserTaskStatus = "pending"
	UserInProgress UserTaskStatus = "in-progress"
	UserPaused     UserTaskStatus = "paused"
	UserCompleted  UserTaskStatus = "completed"
)

var validUserTaskStatuses = []UserTaskStatus{UserPending, UserInProgress, UserPaused, UserCompleted}

// UserTaskStatuses returns every supported per-assignee status.
func UserTaskStatuses() []UserTaskStatus {
	return append([]UserTaskStatus(nil), validUserTaskStatuses...)
}

// NormalizeUserTaskStatus canonicalizes per-assignee status aliases.
func NormalizeUserTaskStatus(status UserTaskStatus) UserTaskStatus {
	switch strings.TrimSpace(strings.ToLower(string(status))) {
	case "pending", "todo", "to-do":
		return UserPending
	case "in-progress", "in_progress", "progress", "doing":
		return UserInProgress
	case "paused", "pause", "on-hold":
		return UserPaused
	case "completed", "complete", "done":
		return UserCompleted
	default:
		return UserTaskStatus(strings.TrimSpace(strings.ToLower(string(status))))
	}
}

// IsValidUserTaskStatus reports whether status is supported after normalization.
func IsValidUserTaskStatus(status UserTaskStatus) bool {
	return slices.Contains(validUserTaskStatuses, NormalizeUserTaskStatus(status))
}

// Completion tracks one assignee's state on a task.
type Completion struct {
	UserID      string         `json:"user_id"`
	Status      UserTaskStatus `json:"user_status"`
	IsCompleted bool           `json:"is_completed"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// newPendingCompletion returns the default record for a freshly assigned user.
func newPendingCompletion(userID string) Completion {
	return Completion{UserID: userID, Status: UserPending}
}

// setStatus applies status and keeps IsCompleted/CompletedAt in step with it.
// CompletedAt only moves on a transition into completed.
func (c *Completion) setStatus(status UserTaskStatus, now time.Time) {
	wasCompleted := c.Status == UserCompleted && c.CompletedAt != nil
	c.Status = status
	c.IsCompleted = status == UserCompleted
	switch {
	case !c.IsCompleted:
		c.CompletedAt = nil
	case !wasCompleted:
		ts := now.UTC()
		c.CompletedAt = &ts
	}
}

// normalize repairs a record decoded from an external source.
func (c *Completion) normalize(now time.Time) error {
	c.UserID = strings.TrimSpace(c.UserID)
	if c.UserID == "" {
		return ErrInvalidID
	}
	status := NormalizeUserTaskStatus(c.Status)
	if status == "" {
		status = UserPending
		if c.IsCompleted {
			status = UserCompleted
		}
	}
	if !slices.Contains(validUserTaskStatuses, status) {
		return ErrInvalidUserTaskStatus
	}
	c.Status = status
	c.IsCompleted = status == UserCompleted
	switch {
	case !c.IsCompleted:
		c.CompletedAt = nil
	case c.CompletedAt == nil:
		ts := now.UTC()
		c.CompletedAt = &ts
	default:
		ts := c.CompletedAt.UTC()
		c.CompletedAt = &ts
	}
	return nil
}

// cloneCompletions deep-copies completion records.
func cloneCompletions(in []Completion) []Completion {
	if in == nil {
		return nil
	}
	out := make([]Completion, len(in))
	for i, c := range in {
		if c.CompletedAt != nil {
			ts := *c.CompletedAt
			c.CompletedAt = &ts
		}
		out[i] = c
	}
	return out
}
