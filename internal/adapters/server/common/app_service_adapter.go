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

// ErrForbidden reports a caller whose role does not allow the requested operation.
var ErrForbidden = errors.New("forbidden")

// AppServiceAdapter maps transport contracts onto app.Service APIs and applies
// role gating for management operations.
type AppServiceAdapter struct {
	service *app.Service
}

// NewAppServiceAdapter builds one common adapter over an app.Service instance.
func NewAppServiceAdapter(service *app.Service) *AppServiceAdapter {
	return &AppServiceAdapter{service: service}
}

// SetUserTaskStatus sets one assignee status. Callers may change their own status;
// admins and project managers may change anyone's.
func (a *AppServiceAdapter) SetUserTaskStatus(ctx context.Context, actor Actor, in SetUserTaskStatusRequest) (domain.Task, error) {
	if err := a.ready(); err != nil {
		return domain.Task{}, err
	}
	ctx, user := withActor(ctx, actor)
	if err := requireSelfOrManager(user, in.UserID); err != nil {
		return domain.Task{}, err
	}
	status := domain.NormalizeUserTaskStatus(domain.UserTaskStatus(in.Status))
	task, err := a.service.SetUserTaskStatus(ctx, strings.TrimSpace(in.TaskID), strings.TrimSpace(in.UserID), status)
	if err != nil {
		return domain.Task{}, mapAppError("set user task status", err)
	}
	return task, nil
}

// SetUserTaskCompletion toggles one assignee completion flag.
func (a *AppServiceAdapter) SetUserTaskCompletion(ctx context.Context, actor Actor, in SetUserTaskCompletionRequest) (domain.Task, error) {
	if err := a.ready(); err != nil {
		return domain.Task{}, err
	}
	ctx, user := withActor(ctx, actor)
	if err := requireSelfOrManager(user, in.UserID); err != nil {
		return domain.Task{}, err
	}
	task, err := a.service.SetUserTaskCompletion(ctx, strings.TrimSpace(in.TaskID), strings.TrimSpace(in.UserID), in.Completed)
	if err != nil {
		return domain.Task{}, mapAppError("set user task completion", err)
	}
	return task, nil
}

// CreateTask creates one task.
func (a *AppServiceAdapter) CreateTask(ctx context.Context, actor Actor, in CreateTaskRequest) (domain.Task, error) {
	if err := a.ready(); err != nil {
		return domain.Task{}, err
	}
	ctx, user := withActor(ctx, actor)
	if err := requireManager(user); err != nil {
		return domain.Task{}, err
	}
	start, end, err := parseDateRange(in.StartDate, in.EndDate)
	if err != nil {
		return domain.Task{}, err
	}
	task, err := a.service.CreateTask(ctx, app.CreateTaskInput{
		MilestoneID: in.MilestoneID,
		Title:       in.Title,
		Description: in.Description,
		Status:      domain.TaskStatus(in.Status),
		Priority:    domain.Priority(in.Priority),
		AssignedTo:  in.AssignedTo,
		StartDate:   start,
		EndDate:     end,
	})
	if err != nil {
		return domain.Task{}, mapAppError("create task", err)
	}
	return task, nil
}

// UpdateTask patches one task.
func (a *AppServiceAdapter) UpdateTask(ctx context.Context, actor Actor, in UpdateTaskRequest) (domain.Task, error) {
	if err := a.ready(); err != nil {
		return domain.Task{}, err
	}
	ctx, user := withActor(ctx, actor)
	if err := requireManager(user); err != nil {
		return domain.Task{}, err
	}
	update := app.UpdateTaskInput{
		TaskID:      in.TaskID,
		Title:       in.Title,
		Description: in.Description,
	}
	if in.Status != nil {
		status := domain.TaskStatus(*in.Status)
		update.Status = &status
	}
	if in.Priority != nil {
		priority := domain.Priority(*in.Priority)
		update.Priority = &priority
	}
	if in.AssignedTo != nil {
		update.AssignedTo = append([]string{}, (*in.AssignedTo)...)
	}
	var err error
	if update.StartDate, err = parseOptionalDate(in.StartDate); err != nil {
		return domain.Task{}, err
	}
	if update.EndDate, err = parseOptionalDate(in.EndDate); err != nil {
		return domain.Task{}, err
	}
	task, err := a.service.UpdateTask(ctx, update)
	if err != nil {
		return domain.Task{}, mapAppError("update task", err)
	}
	return task, nil
}

// DeleteTask deletes one task.
func (a *AppServiceAdapter) DeleteTask(ctx context.Context, actor Actor, taskID string) error {
	if err := a.ready(); err != nil {
		return err
	}
	ctx, user := withActor(ctx, actor)
	if err := requireManager(user); err != nil {
		return err
	}
	return mapAppError("delete task", a.service.DeleteTask(ctx, taskID))
}

// GetTask returns one task.
func (a *AppServiceAdapter) GetTask(ctx context.Context, taskID string) (domain.Task, error) {
	if err := a.ready(); err != nil {
		return domain.Task{}, err
	}
	task, err := a.service.GetTask(ctx, taskID)
	if err != nil {
		return domain.Task{}, mapAppError("get task", err)
	}
	return task, nil
}

// TaskCompletionSummary returns per-assignee counts for one task.
func (a *AppServiceAdapter) TaskCompletionSummary(ctx context.Context, taskID string) (domain.CompletionSummary, error) {
	if err := a.ready(); err != nil {
		return domain.CompletionSummary{}, err
	}
	summary, err := a.service.TaskCompletionSummary(ctx, taskID)
	if err != nil {
		return domain.CompletionSummary{}, mapAppError("task completion summary", err)
	}
	return summary, nil
}

// ListUsers lists users.
func (a *AppServiceAdapter) ListUsers(ctx context.Context) ([]domain.User, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	users, err := a.service.ListUsers(ctx)
	if err != nil {
		return nil, mapAppError("list users", err)
	}
	return users, nil
}

// GetUser returns one user.
func (a *AppServiceAdapter) GetUser(ctx context.Context, userID string) (domain.User, error) {
	if err := a.ready(); err != nil {
		return domain.User{}, err
	}
	user, err := a.service.GetUser(ctx, userID)
	if err != nil {
		return domain.User{}, mapAppError("get user", err)
	}
	return user, nil
}

// CreateUser creates one user. Admin only.
func (a *AppServiceAdapter) CreateUser(ctx context.Context, actor Actor, in CreateUserRequest) (domain.User, error) {
	if err := a.ready(); err != nil {
		return domain.User{}, err
	}
	ctx, current := withActor(ctx, actor)
	if err := requireAdmin(current); err != nil {
		return domain.User{}, err
	}
	user, err := a.service.CreateUser(ctx, app.CreateUserInput{
		Name:   in.Name,
		Email:  in.Email,
		Avatar: in.Avatar,
		Role:   domain.Role(in.Role),
	})
	if err != nil {
		return domain.User{}, mapAppError("create user", err)
	}
	return user, nil
}

// UpdateUser patches one user. Users may edit their own profile; role changes
// and edits of other users are admin only.
func (a *AppServiceAdapter) UpdateUser(ctx context.Context, actor Actor, in UpdateUserRequest) (domain.User, error) {
	if err := a.ready(); err != nil {
		return domain.User{}, err
	}
	ctx, current := withActor(ctx, actor)
	self := current.ID != "" && current.ID == strings.TrimSpace(in.UserID)
	if !self || strings.TrimSpace(in.Role) != "" {
		if err := requireAdmin(current); err != nil {
			return domain.User{}, err
		}
	}
	user, err := a.service.UpdateUser(ctx, app.UpdateUserInput{
		UserID: in.UserID,
		Name:   in.Name,
		Email:  in.Email,
		Avatar: in.Avatar,
		Role:   domain.Role(in.Role),
	})
	if err != nil {
		return domain.User{}, mapAppError("update user", err)
	}
	return user, nil
}

// DeleteUser deletes one user. Admin only; callers can never delete themselves.
func (a *AppServiceAdapter) DeleteUser(ctx context.Context, actor Actor, userID string) error {
	if err := a.ready(); err != nil {
		return err
	}
	ctx, current := withActor(ctx, actor)
	if err := requireAdmin(current); err != nil {
		return err
	}
	return mapAppError("delete user", a.service.DeleteUser(ctx, userID))
}

// TasksAssignedToUser lists tasks assigned to one user.
func (a *AppServiceAdapter) TasksAssignedToUser(ctx context.Context, userID string) ([]domain.Task, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	tasks, err := a.service.TasksAssignedToUser(ctx, userID)
	if err != nil {
		return nil, mapAppError("list user tasks", err)
	}
	return tasks, nil
}

// ProjectsForUser lists projects one user belongs to.
func (a *AppServiceAdapter) ProjectsForUser(ctx context.Context, userID string) ([]domain.Project, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	projects, err := a.service.ProjectsForUser(ctx, userID)
	if err != nil {
		return nil, mapAppError("list user projects", err)
	}
	return projects, nil
}

// UserTaskStats returns task counts for one user.
func (a *AppServiceAdapter) UserTaskStats(ctx context.Context, userID string) (app.UserTaskStats, error) {
	if err := a.ready(); err != nil {
		return app.UserTaskStats{}, err
	}
	stats, err := a.service.UserTaskStats(ctx, userID)
	if err != nil {
		return app.UserTaskStats{}, mapAppError("user task stats", err)
	}
	return stats, nil
}

// ListProjects lists projects.
func (a *AppServiceAdapter) ListProjects(ctx context.Context) ([]domain.Project, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	projects, err := a.service.ListProjects(ctx)
	if err != nil {
		return nil, mapAppError("list projects", err)
	}
	return projects, nil
}

// GetProject returns one project.
func (a *AppServiceAdapter) GetProject(ctx context.Context, projectID string) (domain.Project, error) {
	if err := a.ready(); err != nil {
		return domain.Project{}, err
	}
	project, err := a.service.GetProject(ctx, projectID)
	if err != nil {
		return domain.Project{}, mapAppError("get project", err)
	}
	return project, nil
}

// CreateProject creates one project.
func (a *AppServiceAdapter) CreateProject(ctx context.Context, actor Actor, in CreateProjectRequest) (domain.Project, error) {
	if err := a.ready(); err != nil {
		return domain.Project{}, err
	}
	ctx, user := withActor(ctx, actor)
	if err := requireManager(user); err != nil {
		return domain.Project{}, err
	}
	start, end, err := parseDateRange(in.StartDate, in.EndDate)
	if err != nil {
		return domain.Project{}, err
	}
	project, err := a.service.CreateProject(ctx, app.CreateProjectInput{
		Name:           in.Name,
		Description:    in.Description,
		StartDate:      start,
		EndDate:        end,
		EstimatedHours: in.EstimatedHours,
		Status:         domain.ProjectStatus(in.Status),
	})
	if err != nil {
		return domain.Project{}, mapAppError("create project", err)
	}
	return project, nil
}

// ProjectTree returns one project with members, milestones, and tasks.
func (a *AppServiceAdapter) ProjectTree(ctx context.Context, projectID string) (app.ProjectTree, error) {
	if err := a.ready(); err != nil {
		return app.ProjectTree{}, err
	}
	tree, err := a.service.ProjectTree(ctx, projectID)
	if err != nil {
		return app.ProjectTree{}, mapAppError("project tree", err)
	}
	return tree, nil
}

// ListProjectMembers lists members of one project.
func (a *AppServiceAdapter) ListProjectMembers(ctx context.Context, projectID string) ([]domain.ProjectMember, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	members, err := a.service.ListProjectMembers(ctx, projectID)
	if err != nil {
		return nil, mapAppError("list project members", err)
	}
	return members, nil
}

// AddProjectMember adds or replaces one membership.
func (a *AppServiceAdapter) AddProjectMember(ctx context.Context, actor Actor, in AddProjectMemberRequest) (domain.ProjectMember, error) {
	if err := a.ready(); err != nil {
		return domain.ProjectMember{}, err
	}
	ctx, user := withActor(ctx, actor)
	if err := requireManager(user); err != nil {
		return domain.ProjectMember{}, err
	}
	member, err := a.service.AddProjectMember(ctx, domain.ProjectMember{
		ProjectID:      in.ProjectID,
		UserID:         in.UserID,
		Role:           domain.Role(in.Role),
		CanEdit:        in.CanEdit,
		CanDelete:      in.CanDelete,
		CanAssignTasks: in.CanAssignTasks,
	})
	if err != nil {
		return domain.ProjectMember{}, mapAppError("add project member", err)
	}
	return member, nil
}

// RemoveProjectMember removes one membership.
func (a *AppServiceAdapter) RemoveProjectMember(ctx context.Context, actor Actor, projectID, userID string) error {
	if err := a.ready(); err != nil {
		return err
	}
	ctx, user := withActor(ctx, actor)
	if err := requireManager(user); err != nil {
		return err
	}
	return mapAppError("remove project member", a.service.RemoveProjectMember(ctx, projectID, userID))
}

// CreateMilestone appends one milestone to a project.
func (a *AppServiceAdapter) CreateMilestone(ctx context.Context, actor Actor, in CreateMilestoneRequest) (domain.Milestone, error) {
	if err := a.ready(); err != nil {
		return domain.Milestone{}, err
	}
	ctx, user := withActor(ctx, actor)
	if err := requireManager(user); err != nil {
		return domain.Milestone{}, err
	}
	start, end, err := parseDateRange(in.StartDate, in.EndDate)
	if err != nil {
		return domain.Milestone{}, err
	}
	milestone, err := a.service.CreateMilestone(ctx, app.CreateMilestoneInput{
		ProjectID:   in.ProjectID,
		Title:       in.Title,
		Description: in.Description,
		StartDate:   start,
		EndDate:     end,
		Status:      domain.MilestoneStatus(in.Status),
	})
	if err != nil {
		return domain.Milestone{}, mapAppError("create milestone", err)
	}
	return milestone, nil
}

// ready reports whether the adapter has a backing service.
func (a *AppServiceAdapter) ready() error {
	if a == nil || a.service == nil {
		return fmt.Errorf("app service adapter is not configured: %w", ErrInvalidRequest)
	}
	return nil
}

// withActor attaches the caller to ctx and returns the normalized identity.
func withActor(ctx context.Context, actor Actor) (context.Context, app.CurrentUser) {
	if ctx == nil {
		ctx = context.Background()
	}
	id := strings.TrimSpace(actor.ID)
	if id == "" && strings.TrimSpace(actor.Role) == "" {
		return ctx, app.CurrentUser{Role: domain.RoleViewer}
	}
	ctx = app.WithCurrentUser(ctx, app.CurrentUser{ID: id, Role: domain.Role(actor.Role)})
	user, _ := app.CurrentUserFromContext(ctx)
	return ctx, user
}

func requireManager(user app.CurrentUser) error {
	if !user.CanManage() {
		return fmt.Errorf("role %q cannot manage projects or tasks: %w", user.Role, ErrForbidden)
	}
	return nil
}

func requireAdmin(user app.CurrentUser) error {
	if user.Role != domain.RoleAdmin {
		return fmt.Errorf("role %q cannot manage users: %w", user.Role, ErrForbidden)
	}
	return nil
}

func requireSelfOrManager(user app.CurrentUser, userID string) error {
	if user.ID != "" && user.ID == strings.TrimSpace(userID) {
		return nil
	}
	if user.CanManage() {
		return nil
	}
	return fmt.Errorf("user %q cannot change another assignee's status: %w", user.ID, ErrForbidden)
}

func parseDateRange(startRaw, endRaw string) (time.Time, time.Time, error) {
	start, err := ParseDate(startRaw)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := ParseDate(endRaw)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

func parseOptionalDate(raw *string) (*time.Time, error) {
	if raw == nil {
		return nil, nil
	}
	ts, err := ParseDate(*raw)
	if err != nil {
		return nil, err
	}
	return &ts, nil
}

// mapAppError maps app/domain errors into transport-layer error sentinels.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, app.ErrNotFound):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, app.ErrSelfDelete):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrConflict, err))
	case errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidName),
		errors.Is(err, domain.ErrInvalidEmail),
		errors.Is(err, domain.ErrInvalidRole),
		errors.Is(err, domain.ErrInvalidTitle),
		errors.Is(err, domain.ErrInvalidDescription),
		errors.Is(err, domain.ErrInvalidPriority),
		errors.Is(err, domain.ErrInvalidTaskStatus),
		errors.Is(err, domain.ErrInvalidUserTaskStatus),
		errors.Is(err, domain.ErrInvalidProjectStatus),
		errors.Is(err, domain.ErrInvalidMilestoneStatus),
		errors.Is(err, domain.ErrInvalidDateRange),
		errors.Is(err, domain.ErrInvalidEstimate),
		errors.Is(err, domain.ErrInvalidPosition),
		errors.Is(err, app.ErrInvalidSnapshot):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}
