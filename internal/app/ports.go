package app

import (
	"context"

	"github.com/evanschultz/tally/internal/domain"
)

// Repository represents repository data used by this package. List methods return
// rows in a stable order (position, then insertion) and every returned value is a
// copy the caller may mutate.
type Repository interface {
	CreateUser(context.Context, domain.User) error
	UpdateUser(context.Context, domain.User) error
	GetUser(context.Context, string) (domain.User, error)
	ListUsers(context.Context) ([]domain.User, error)
	DeleteUser(context.Context, string) error

	CreateProject(context.Context, domain.Project) error
	UpdateProject(context.Context, domain.Project) error
	GetProject(context.Context, string) (domain.Project, error)
	ListProjects(context.Context) ([]domain.Project, error)

	UpsertProjectMember(context.Context, domain.ProjectMember) error
	DeleteProjectMember(ctx context.Context, projectID, userID string) error
	ListProjectMembers(context.Context, string) ([]domain.ProjectMember, error)
	ListUserMemberships(context.Context, string) ([]domain.ProjectMember, error)

	CreateMilestone(context.Context, domain.Milestone) error
	UpdateMilestone(context.Context, domain.Milestone) error
	GetMilestone(context.Context, string) (domain.Milestone, error)
	ListMilestones(context.Context, string) ([]domain.Milestone, error)

	GetTask(context.Context, string) (domain.Task, error)
	ListTasks(context.Context, string) ([]domain.Task, error)
	ListProjectTasks(context.Context, string) ([]domain.Task, error)

	// CommitTaskChange applies a task write together with the recomputed progress of
	// its milestone and project. Implementations apply it atomically.
	CommitTaskChange(context.Context, TaskChange) error
	// ImportBatch upserts every row of the batch atomically.
	ImportBatch(context.Context, ImportBatch) error
}

// TaskChange is one atomic task write plus the progress values it implies.
// Exactly one of Task or DeleteTaskID is set.
type TaskChange struct {
	Task              *domain.Task
	DeleteTaskID      string
	ProjectID         string
	ProjectProgress   int
	MilestoneID       string
	MilestoneProgress int
}

// ImportBatch carries a validated, fully derived set of rows to upsert.
type ImportBatch struct {
	Users      []domain.User
	Projects   []domain.Project
	Members    []domain.ProjectMember
	Milestones []domain.Milestone
	Tasks      []domain.Task
}
