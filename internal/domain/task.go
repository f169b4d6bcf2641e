package domain

import (
	"slices"
	"strings"
	"time"
)

// Priority ranks task urgency.
type Priority string

// Priority values.
const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

var validPriorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

// Priorities returns every supported priority from lowest to highest.
func Priorities() []Priority {
	return append([]Priority(nil), validPriorities...)
}

// TaskStatus is the aggregate status of a task across all assignees.
type TaskStatus string

// TaskStatus values.
const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in-progress"
	TaskCompleted  TaskStatus = "completed"
	TaskBlocked    TaskStatus = "blocked"
)

var validTaskStatuses = []TaskStatus{TaskPending, TaskInProgress, TaskCompleted, TaskBlocked}

// TaskStatuses returns every supported aggregate status.
func TaskStatuses() []TaskStatus {
	return append([]TaskStatus(nil), validTaskStatuses...)
}

// NormalizeTaskStatus canonicalizes aggregate status aliases.
func NormalizeTaskStatus(status TaskStatus) TaskStatus {
	switch strings.TrimSpace(strings.ToLower(string(status))) {
	case "pending", "todo", "to-do":
		return TaskPending
	case "in-progress", "in_progress", "progress", "doing":
		return TaskInProgress
	case "completed", "complete", "done":
		return TaskCompleted
	case "blocked":
		return TaskBlocked
	default:
		return TaskStatus(strings.TrimSpace(strings.ToLower(string(status))))
	}
}

// IsValidTaskStatus reports whether status is supported after normalization.
func IsValidTaskStatus(status TaskStatus) bool {
	return slices.Contains(validTaskStatuses, NormalizeTaskStatus(status))
}

// IsValidPriority reports whether priority is supported.
func IsValidPriority(priority Priority) bool {
	return slices.Contains(validPriorities, Priority(strings.TrimSpace(strings.ToLower(string(priority)))))
}

// UserStatusFor maps a requested aggregate status onto the per-assignee status that
// derives back to it.
func UserStatusFor(status TaskStatus) UserTaskStatus {
	switch NormalizeTaskStatus(status) {
	case TaskInProgress:
		return UserInProgress
	case TaskCompleted:
		return UserCompleted
	case TaskBlocked:
		return UserPaused
	default:
		return UserPending
	}
}

// Task is one unit of work inside a milestone. Status is derived from Completions
// whenever the task has assignees.
type Task struct {
	ID          string       `json:"id"`
	ProjectID   string       `json:"project_id"`
	MilestoneID string       `json:"milestone_id"`
	Position    int          `json:"position"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      TaskStatus   `json:"status"`
	Priority    Priority     `json:"priority"`
	AssignedTo  []string     `json:"assigned_to"`
	Completions []Completion `json:"user_completions,omitempty"`
	StartDate   time.Time    `json:"start_date"`
	EndDate     time.Time    `json:"end_date"`
	CreatedBy   string       `json:"created_by"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// TaskInput holds task fields supplied by callers.
type TaskInput struct {
	ID          string
	ProjectID   string
	MilestoneID string
	Position    int
	Title       string
	Description string
	Status      TaskStatus
	Priority    Priority
	AssignedTo  []string
	StartDate   time.Time
	EndDate     time.Time
	CreatedBy   string
}

// NewTask validates input and constructs a task with one pending completion
// record per assignee. The requested status is kept only when nobody is
// assigned; otherwise the status is derived from the pending records.
func NewTask(in TaskInput, now time.Time) (Task, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.ProjectID = strings.TrimSpace(in.ProjectID)
	in.MilestoneID = strings.TrimSpace(in.MilestoneID)
	if in.ID == "" || in.ProjectID == "" || in.MilestoneID == "" {
		return Task{}, ErrInvalidID
	}
	if in.Position < 0 {
		return Task{}, ErrInvalidPosition
	}
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	status := TaskPending
	if strings.TrimSpace(string(in.Status)) != "" {
		status = NormalizeTaskStatus(in.Status)
		if !slices.Contains(validTaskStatuses, status) {
			return Task{}, ErrInvalidTaskStatus
		}
	}

	t := Task{
		ID:          in.ID,
		ProjectID:   in.ProjectID,
		MilestoneID: in.MilestoneID,
		Position:    in.Position,
		Status:      status,
		CreatedBy:   strings.TrimSpace(in.CreatedBy),
		CreatedAt:   now.UTC(),
	}
	if err := t.UpdateDetails(in.Title, in.Description, in.Priority, in.StartDate, in.EndDate, now); err != nil {
		return Task{}, err
	}
	t.AssignedTo = normalizeAssignees(in.AssignedTo)
	t.Completions = make([]Completion, 0, len(t.AssignedTo))
	for _, userID := range t.AssignedTo {
		t.Completions = append(t.Completions, newPendingCompletion(userID))
	}
	t.RecomputeStatus()
	return t, nil
}

// UpdateDetails replaces the descriptive fields of a task.
func (t *Task) UpdateDetails(title, description string, priority Priority, start, end time.Time, now time.Time) error {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	if title == "" {
		return ErrInvalidTitle
	}
	if description == "" {
		return ErrInvalidDescription
	}
	priority = Priority(strings.TrimSpace(strings.ToLower(string(priority))))
	if !slices.Contains(validPriorities, priority) {
		return ErrInvalidPriority
	}
	start, end, err := normalizeDateRange(start, end)
	if err != nil {
		return err
	}
	t.Title = title
	t.Description = description
	t.Priority = priority
	t.StartDate = start
	t.EndDate = end
	t.UpdatedAt = now.UTC()
	return nil
}

// Reassign replaces the assignee list. Records of retained assignees keep their
// state, new assignees start pending, and removed assignees lose their record.
func (t *Task) Reassign(assignees []string, now time.Time) {
	t.AssignedTo = normalizeAssignees(assignees)
	t.ReconcileCompletions()
	t.RecomputeStatus()
	t.UpdatedAt = now.UTC()
}

// EnsureCompletions materializes pending records when a task has assignees but no
// completion collection yet. It reports whether anything changed.
func (t *Task) EnsureCompletions() bool {
	if t.Completions != nil || len(t.AssignedTo) == 0 {
		return false
	}
	t.ReconcileCompletions()
	return true
}

// ReconcileCompletions rebuilds Completions so it holds exactly one record per
// assignee in AssignedTo order.
func (t *Task) ReconcileCompletions() {
	existing := make(map[string]Completion, len(t.Completions))
	for _, c := range t.Completions {
		if _, ok := existing[c.UserID]; !ok {
			existing[c.UserID] = c
		}
	}
	out := make([]Completion, 0, len(t.AssignedTo))
	for _, userID := range t.AssignedTo {
		if c, ok := existing[userID]; ok {
			out = append(out, c)
			continue
		}
		out = append(out, newPendingCompletion(userID))
	}
	t.Completions = out
}

// CompletionFor returns the record for userID.
func (t Task) CompletionFor(userID string) (Completion, bool) {
	for _, c := range t.Completions {
		if c.UserID == userID {
			return c, true
		}
	}
	return Completion{}, false
}

// SetUserStatus records one assignee's status and re-derives the task status. It
// returns false when userID is not assigned; the task is left untouched in that case.
func (t *Task) SetUserStatus(userID string, status UserTaskStatus, now time.Time) (bool, error) {
	status = NormalizeUserTaskStatus(status)
	if !slices.Contains(validUserTaskStatuses, status) {
		return false, ErrInvalidUserTaskStatus
	}
	userID = strings.TrimSpace(userID)
	next := t.Clone()
	next.EnsureCompletions()
	idx := slices.IndexFunc(next.Completions, func(c Completion) bool { return c.UserID == userID })
	if idx < 0 {
		return false, nil
	}
	next.Completions[idx].setStatus(status, now)
	next.RecomputeStatus()
	next.UpdatedAt = now.UTC()
	*t = next
	return true, nil
}

// ApplyStatusToAll sets every assignee to the per-assignee status that derives to
// status. Tasks without assignees take status directly.
func (t *Task) ApplyStatusToAll(status TaskStatus, now time.Time) {
	status = NormalizeTaskStatus(status)
	userStatus := UserStatusFor(status)
	t.EnsureCompletions()
	for i := range t.Completions {
		t.Completions[i].setStatus(userStatus, now)
	}
	if len(t.Completions) == 0 {
		t.Status = status
	}
	t.RecomputeStatus()
	t.UpdatedAt = now.UTC()
}

// RecomputeStatus re-derives Status from Completions. A task with no assignees keeps
// its stored status.
func (t *Task) RecomputeStatus() {
	if len(t.Completions) == 0 {
		return
	}
	t.Status = DeriveTaskStatus(t.Completions)
}

// Normalize repairs a task decoded from an external source: statuses are
// canonicalized, completions reconciled against assignees, and status re-derived.
func (t *Task) Normalize(now time.Time) error {
	t.ID = strings.TrimSpace(t.ID)
	t.ProjectID = strings.TrimSpace(t.ProjectID)
	t.MilestoneID = strings.TrimSpace(t.MilestoneID)
	if t.ID == "" || t.ProjectID == "" || t.MilestoneID == "" {
		return ErrInvalidID
	}
	if t.Position < 0 {
		return ErrInvalidPosition
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = now
	}
	updatedAt := t.UpdatedAt
	if err := t.UpdateDetails(t.Title, t.Description, t.Priority, t.StartDate, t.EndDate, updatedAt); err != nil {
		return err
	}
	t.Status = NormalizeTaskStatus(t.Status)
	if t.Status == "" {
		t.Status = TaskPending
	}
	if !slices.Contains(validTaskStatuses, t.Status) {
		return ErrInvalidTaskStatus
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.CreatedAt = t.CreatedAt.UTC()
	for i := range t.Completions {
		if err := t.Completions[i].normalize(now); err != nil {
			return err
		}
	}
	t.AssignedTo = normalizeAssignees(t.AssignedTo)
	if t.Completions == nil && len(t.AssignedTo) > 0 {
		// Legacy rows carry only the aggregate status; seed assignees from it.
		t.EnsureCompletions()
		for i := range t.Completions {
			t.Completions[i].setStatus(UserStatusFor(t.Status), updatedAt)
		}
	}
	t.ReconcileCompletions()
	t.RecomputeStatus()
	return nil
}

// Clone returns a deep copy.
func (t Task) Clone() Task {
	out := t
	out.AssignedTo = slices.Clone(t.AssignedTo)
	out.Completions = cloneCompletions(t.Completions)
	return out
}

// normalizeAssignees trims ids and drops blanks and duplicates, keeping first-seen order.
func normalizeAssignees(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, raw := range in {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
