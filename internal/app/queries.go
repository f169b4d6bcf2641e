package app

import (
	"context"
	"slices"
	"strings"

	"github.com/evanschultz/tally/internal/domain"
)

// ProjectTree is a read snapshot of a project with its members and ordered work.
type ProjectTree struct {
	Project    domain.Project         `json:"project"`
	Members    []domain.ProjectMember `json:"members"`
	Milestones []MilestoneTree        `json:"milestones"`
}

// MilestoneTree is one milestone with its ordered tasks.
type MilestoneTree struct {
	Milestone domain.Milestone `json:"milestone"`
	Tasks     []domain.Task    `json:"tasks"`
}

// UserTaskStats summarizes the tasks assigned to one user.
type UserTaskStats struct {
	UserID      string                        `json:"user_id"`
	Total       int                           `json:"total"`
	ByStatus    map[domain.TaskStatus]int     `json:"by_status"`
	ByOwnStatus map[domain.UserTaskStatus]int `json:"by_own_status"`
}

// RoleGroup lists the users holding one role.
type RoleGroup struct {
	Role  domain.Role   `json:"role"`
	Users []domain.User `json:"users"`
}

// TasksAssignedToUser returns every task assigned to userID, ordered by project,
// then milestone, then task.
func (s *Service) TasksAssignedToUser(ctx context.Context, userID string) ([]domain.Task, error) {
	userID = strings.TrimSpace(userID)
	out := make([]domain.Task, 0)
	err := s.walkTasks(ctx, func(_ domain.Project, _ domain.Milestone, task domain.Task) {
		if slices.Contains(task.AssignedTo, userID) {
			out = append(out, task)
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ProjectsForUser returns the projects that have a membership row for userID.
func (s *Service) ProjectsForUser(ctx context.Context, userID string) ([]domain.Project, error) {
	memberships, err := s.repo.ListUserMemberships(ctx, strings.TrimSpace(userID))
	if err != nil {
		return nil, err
	}
	member := make(map[string]struct{}, len(memberships))
	for _, m := range memberships {
		member[m.ProjectID] = struct{}{}
	}
	projects, err := s.repo.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Project, 0, len(member))
	for _, p := range projects {
		if _, ok := member[p.ID]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// ProjectTree materializes a project with members, milestones, and tasks.
func (s *Service) ProjectTree(ctx context.Context, projectID string) (ProjectTree, error) {
	project, err := s.repo.GetProject(ctx, strings.TrimSpace(projectID))
	if err != nil {
		return ProjectTree{}, err
	}
	members, err := s.repo.ListProjectMembers(ctx, project.ID)
	if err != nil {
		return ProjectTree{}, err
	}
	milestones, err := s.repo.ListMilestones(ctx, project.ID)
	if err != nil {
		return ProjectTree{}, err
	}
	tree := ProjectTree{
		Project:    project,
		Members:    members,
		Milestones: make([]MilestoneTree, 0, len(milestones)),
	}
	for _, m := range milestones {
		tasks, err := s.repo.ListTasks(ctx, m.ID)
		if err != nil {
			return ProjectTree{}, err
		}
		tree.Milestones = append(tree.Milestones, MilestoneTree{Milestone: m, Tasks: tasks})
	}
	return tree, nil
}

// TaskCompletionSummary counts assignee states on one task.
func (s *Service) TaskCompletionSummary(ctx context.Context, taskID string) (domain.CompletionSummary, error) {
	task, err := s.repo.GetTask(ctx, strings.TrimSpace(taskID))
	if err != nil {
		return domain.CompletionSummary{}, err
	}
	return domain.SummarizeCompletions(task), nil
}

// UserTaskStats counts a user's tasks by aggregate status and by the user's own
// per-assignee status.
func (s *Service) UserTaskStats(ctx context.Context, userID string) (UserTaskStats, error) {
	userID = strings.TrimSpace(userID)
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return UserTaskStats{}, err
	}
	tasks, err := s.TasksAssignedToUser(ctx, userID)
	if err != nil {
		return UserTaskStats{}, err
	}
	stats := UserTaskStats{
		UserID:      userID,
		Total:       len(tasks),
		ByStatus:    map[domain.TaskStatus]int{},
		ByOwnStatus: map[domain.UserTaskStatus]int{},
	}
	for _, task := range tasks {
		stats.ByStatus[task.Status]++
		own := domain.UserPending
		if c, ok := task.CompletionFor(userID); ok {
			own = c.Status
		}
		stats.ByOwnStatus[own]++
	}
	return stats, nil
}

// UsersByRole groups users by role in role order. Roles without users are omitted.
func (s *Service) UsersByRole(ctx context.Context) ([]RoleGroup, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]RoleGroup, 0, len(domain.Roles()))
	for _, role := range domain.Roles() {
		group := RoleGroup{Role: role}
		for _, u := range users {
			if u.Role == role {
				group.Users = append(group.Users, u)
			}
		}
		if len(group.Users) > 0 {
			out = append(out, group)
		}
	}
	return out, nil
}

// walkTasks visits every task in project, milestone, task order.
func (s *Service) walkTasks(ctx context.Context, visit func(domain.Project, domain.Milestone, domain.Task)) error {
	projects, err := s.repo.ListProjects(ctx)
	if err != nil {
		return err
	}
	for _, p := range projects {
		milestones, err := s.repo.ListMilestones(ctx, p.ID)
		if err != nil {
			return err
		}
		for _, m := range milestones {
			tasks, err := s.repo.ListTasks(ctx, m.ID)
			if err != nil {
				return err
			}
			for _, t := range tasks {
				visit(p, m, t)
			}
		}
	}
	return nil
}
