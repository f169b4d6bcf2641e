package app

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/evanschultz/tally/internal/domain"
)

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	DefaultPriority domain.Priority
	DefaultRole     domain.Role
}

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// Service represents service data used by this package.
type Service struct {
	repo            Repository
	idGen           IDGenerator
	clock           Clock
	defaultPriority domain.Priority
	defaultRole     domain.Role
	locks           projectLocks
}

// NewService constructs a new value for this package.
func NewService(repo Repository, idGen IDGenerator, clock Clock, cfg ServiceConfig) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	if !domain.IsValidPriority(cfg.DefaultPriority) {
		cfg.DefaultPriority = domain.PriorityMedium
	}
	if !domain.IsValidRole(cfg.DefaultRole) {
		cfg.DefaultRole = domain.RoleDeveloper
	}
	return &Service{
		repo:            repo,
		idGen:           idGen,
		clock:           clock,
		defaultPriority: cfg.DefaultPriority,
		defaultRole:     domain.NormalizeRole(cfg.DefaultRole),
	}
}

// projectLocks serializes read-modify-write cycles per project.
type projectLocks struct {
	mu   sync.Mutex
	byID map[string]*sync.Mutex
}

// lock acquires the mutex for every id in sorted order and returns the release func.
func (l *projectLocks) lock(ids ...string) func() {
	ids = slices.Clone(ids)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	l.mu.Lock()
	if l.byID == nil {
		l.byID = map[string]*sync.Mutex{}
	}
	held := make([]*sync.Mutex, 0, len(ids))
	for _, id := range ids {
		m, ok := l.byID[id]
		if !ok {
			m = &sync.Mutex{}
			l.byID[id] = m
		}
		held = append(held, m)
	}
	l.mu.Unlock()

	for _, m := range held {
		m.Lock()
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

// SetUserTaskStatus records one assignee's status on a task, re-derives the task
// status, and rolls progress up to the milestone and project in one commit.
func (s *Service) SetUserTaskStatus(ctx context.Context, taskID, userID string, status domain.UserTaskStatus) (domain.Task, error) {
	taskID = strings.TrimSpace(taskID)
	userID = strings.TrimSpace(userID)
	task, unlock, err := s.lockTask(ctx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	defer unlock()

	ok, err := task.SetUserStatus(userID, status, s.clock())
	if err != nil {
		return domain.Task{}, err
	}
	if !ok {
		return domain.Task{}, fmt.Errorf("%w: user %q on task %q", ErrAssigneeNotFound, userID, taskID)
	}
	if err := s.commitTask(ctx, task); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// SetUserTaskCompletion marks an assignee completed or resets them to pending.
func (s *Service) SetUserTaskCompletion(ctx context.Context, taskID, userID string, completed bool) (domain.Task, error) {
	status := domain.UserPending
	if completed {
		status = domain.UserCompleted
	}
	return s.SetUserTaskStatus(ctx, taskID, userID, status)
}

// CreateTaskInput holds input values for create task operations.
type CreateTaskInput struct {
	MilestoneID string
	Title       string
	Description string
	Status      domain.TaskStatus
	Priority    domain.Priority
	AssignedTo  []string
	StartDate   time.Time
	EndDate     time.Time
	CreatedBy   string
}

// UpdateTaskInput holds input values for update task operations. Nil fields are left
// unchanged; a non-nil empty AssignedTo clears every assignee. A Status equal to the
// current derived status is a no-op.
type UpdateTaskInput struct {
	TaskID      string
	Title       *string
	Description *string
	Status      *domain.TaskStatus
	Priority    *domain.Priority
	AssignedTo  []string
	StartDate   *time.Time
	EndDate     *time.Time
}

// CreateTask creates task.
func (s *Service) CreateTask(ctx context.Context, in CreateTaskInput) (domain.Task, error) {
	milestone, err := s.repo.GetMilestone(ctx, strings.TrimSpace(in.MilestoneID))
	if err != nil {
		return domain.Task{}, err
	}
	unlock := s.locks.lock(milestone.ProjectID)
	defer unlock()

	tasks, err := s.repo.ListTasks(ctx, milestone.ID)
	if err != nil {
		return domain.Task{}, err
	}
	position := 0
	for _, t := range tasks {
		if t.Position >= position {
			position = t.Position + 1
		}
	}
	if in.Priority == "" {
		in.Priority = s.defaultPriority
	}
	if strings.TrimSpace(in.CreatedBy) == "" {
		if actor, ok := CurrentUserFromContext(ctx); ok {
			in.CreatedBy = actor.ID
		}
	}

	task, err := domain.NewTask(domain.TaskInput{
		ID:          s.idGen(),
		ProjectID:   milestone.ProjectID,
		MilestoneID: milestone.ID,
		Position:    position,
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		AssignedTo:  in.AssignedTo,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		CreatedBy:   in.CreatedBy,
	}, s.clock())
	if err != nil {
		return domain.Task{}, err
	}
	if err := s.commitTask(ctx, task); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// UpdateTask updates state for the requested operation.
func (s *Service) UpdateTask(ctx context.Context, in UpdateTaskInput) (domain.Task, error) {
	task, unlock, err := s.lockTask(ctx, strings.TrimSpace(in.TaskID))
	if err != nil {
		return domain.Task{}, err
	}
	defer unlock()

	now := s.clock()
	title, description, priority := task.Title, task.Description, task.Priority
	start, end := task.StartDate, task.EndDate
	if in.Title != nil {
		title = *in.Title
	}
	if in.Description != nil {
		description = *in.Description
	}
	if in.Priority != nil {
		priority = *in.Priority
	}
	if in.StartDate != nil {
		start = *in.StartDate
	}
	if in.EndDate != nil {
		end = *in.EndDate
	}
	if err := task.UpdateDetails(title, description, priority, start, end, now); err != nil {
		return domain.Task{}, err
	}
	if in.AssignedTo != nil {
		task.Reassign(in.AssignedTo, now)
	} else {
		task.EnsureCompletions()
	}
	task.RecomputeStatus()
	if in.Status != nil {
		if !domain.IsValidTaskStatus(*in.Status) {
			return domain.Task{}, domain.ErrInvalidTaskStatus
		}
		// Only an explicit change of the aggregate status overwrites per-user state.
		if status := domain.NormalizeTaskStatus(*in.Status); status != task.Status {
			task.ApplyStatusToAll(status, now)
		}
	}
	task.UpdatedAt = now.UTC()

	if err := s.commitTask(ctx, task); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// DeleteTask deletes task and re-rolls the progress it contributed to.
func (s *Service) DeleteTask(ctx context.Context, taskID string) error {
	task, unlock, err := s.lockTask(ctx, strings.TrimSpace(taskID))
	if err != nil {
		return err
	}
	defer unlock()

	change, err := s.rollup(ctx, task.ProjectID, task.MilestoneID, nil, task.ID)
	if err != nil {
		return err
	}
	return s.repo.CommitTaskChange(ctx, change)
}

// GetTask returns one task.
func (s *Service) GetTask(ctx context.Context, taskID string) (domain.Task, error) {
	return s.repo.GetTask(ctx, strings.TrimSpace(taskID))
}

// ListTasks lists tasks of one milestone in position order.
func (s *Service) ListTasks(ctx context.Context, milestoneID string) ([]domain.Task, error) {
	milestoneID = strings.TrimSpace(milestoneID)
	if _, err := s.repo.GetMilestone(ctx, milestoneID); err != nil {
		return nil, err
	}
	return s.repo.ListTasks(ctx, milestoneID)
}

// lockTask takes the project lock for a task and re-reads it under that lock.
func (s *Service) lockTask(ctx context.Context, taskID string) (domain.Task, func(), error) {
	task, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		return domain.Task{}, nil, err
	}
	unlock := s.locks.lock(task.ProjectID)
	task, err = s.repo.GetTask(ctx, taskID)
	if err != nil {
		unlock()
		return domain.Task{}, nil, err
	}
	return task, unlock, nil
}

// commitTask upserts task along with its recomputed rollup.
func (s *Service) commitTask(ctx context.Context, task domain.Task) error {
	change, err := s.rollup(ctx, task.ProjectID, task.MilestoneID, &task, "")
	if err != nil {
		return err
	}
	return s.repo.CommitTaskChange(ctx, change)
}

// rollup recomputes milestone and project progress as they will be once upsert is
// written and deleteID removed. Callers must hold the project lock.
func (s *Service) rollup(ctx context.Context, projectID, milestoneID string, upsert *domain.Task, deleteID string) (TaskChange, error) {
	if _, err := s.repo.GetProject(ctx, projectID); err != nil {
		return TaskChange{}, err
	}
	if _, err := s.repo.GetMilestone(ctx, milestoneID); err != nil {
		return TaskChange{}, err
	}
	current, err := s.repo.ListProjectTasks(ctx, projectID)
	if err != nil {
		return TaskChange{}, err
	}
	projectTasks := make([]domain.Task, 0, len(current)+1)
	replaced := false
	for _, t := range current {
		switch {
		case t.ID == deleteID:
			continue
		case upsert != nil && t.ID == upsert.ID:
			projectTasks = append(projectTasks, *upsert)
			replaced = true
		default:
			projectTasks = append(projectTasks, t)
		}
	}
	if upsert != nil && !replaced {
		projectTasks = append(projectTasks, *upsert)
	}
	milestoneTasks := make([]domain.Task, 0, len(projectTasks))
	for _, t := range projectTasks {
		if t.MilestoneID == milestoneID {
			milestoneTasks = append(milestoneTasks, t)
		}
	}

	change := TaskChange{
		DeleteTaskID:      deleteID,
		ProjectID:         projectID,
		ProjectProgress:   domain.TasksProgress(projectTasks),
		MilestoneID:       milestoneID,
		MilestoneProgress: domain.TasksProgress(milestoneTasks),
	}
	if upsert != nil {
		task := upsert.Clone()
		change.Task = &task
	}
	return change, nil
}
