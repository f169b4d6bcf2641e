package app

import (
	"context"
	"slices"
	"sync"

	"github.com/evanschultz/tally/internal/domain"
)

type fakeRepo struct {
	mu         sync.Mutex
	users      []domain.User
	projects   []domain.Project
	members    []domain.ProjectMember
	milestones []domain.Milestone
	tasks      []domain.Task
	commits    int
	failCommit error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{}
}

func indexByID[T any](rows []T, id string, key func(T) string) int {
	return slices.IndexFunc(rows, func(row T) bool { return key(row) == id })
}

func userKey(u domain.User) string { return u.ID }
func projectKey(p domain.Project) string { return p.ID }
func milestoneKey(m domain.Milestone) string { return m.ID }
func taskKey(t domain.Task) string { return t.ID }

func (f *fakeRepo) CreateUser(_ context.Context, u domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, u)
	return nil
}

func (f *fakeRepo) UpdateUser(_ context.Context, u domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := indexByID(f.users, u.ID, userKey)
	if i < 0 {
		return ErrNotFound
	}
	f.users[i] = u
	return nil
}

func (f *fakeRepo) GetUser(_ context.Context, id string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := indexByID(f.users, id, userKey)
	if i < 0 {
		return domain.User{}, ErrNotFound
	}
	return f.users[i], nil
}

func (f *fakeRepo) ListUsers(context.Context) ([]domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.users), nil
}

func (f *fakeRepo) DeleteUser(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := indexByID(f.users, id, userKey)
	if i < 0 {
		return ErrNotFound
	}
	f.users = slices.Delete(f.users, i, i+1)
	return nil
}

func (f *fakeRepo) CreateProject(_ context.Context, p domain.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projects = append(f.projects, p)
	return nil
}

func (f *fakeRepo) UpdateProject(_ context.Context, p domain.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := indexByID(f.projects, p.ID, projectKey)
	if i < 0 {
		return ErrNotFound
	}
	f.projects[i] = p
	return nil
}

func (f *fakeRepo) GetProject(_ context.Context, id string) (domain.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := indexByID(f.projects, id, projectKey)
	if i < 0 {
		return domain.Project{}, ErrNotFound
	}
	return f.projects[i], nil
}

func (f *fakeRepo) ListProjects(context.Context) ([]domain.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.projects), nil
}

func (f *fakeRepo) UpsertProjectMember(_ context.Context, m domain.ProjectMember) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertMemberLocked(m)
	return nil
}

func (f *fakeRepo) upsertMemberLocked(m domain.ProjectMember) {
	for i, existing := range f.members {
		if existing.ProjectID == m.ProjectID && existing.UserID == m.UserID {
			f.members[i] = m
			return
		}
	}
	f.members = append(f.members, m)
}

func (f *fakeRepo) DeleteProjectMember(_ context.Context, projectID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.members {
		if existing.ProjectID == projectID && existing.UserID == userID {
			f.members = slices.Delete(f.members, i, i+1)
			return nil
		}
	}
	return ErrNotFound
}

func (f *fakeRepo) ListProjectMembers(_ context.Context, projectID string) ([]domain.ProjectMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ProjectMember, 0)
	for _, m := range f.members {
		if m.ProjectID == projectID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListUserMemberships(_ context.Context, userID string) ([]domain.ProjectMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ProjectMember, 0)
	for _, m := range f.members {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeRepo) CreateMilestone(_ context.Context, m domain.Milestone) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.milestones = append(f.milestones, m)
	return nil
}

func (f *fakeRepo) UpdateMilestone(_ context.Context, m domain.Milestone) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := indexByID(f.milestones, m.ID, milestoneKey)
	if i < 0 {
		return ErrNotFound
	}
	f.milestones[i] = m
	return nil
}

func (f *fakeRepo) GetMilestone(_ context.Context, id string) (domain.Milestone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := indexByID(f.milestones, id, milestoneKey)
	if i < 0 {
		return domain.Milestone{}, ErrNotFound
	}
	return f.milestones[i], nil
}

func (f *fakeRepo) ListMilestones(_ context.Context, projectID string) ([]domain.Milestone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Milestone, 0)
	for _, m := range f.milestones {
		if m.ProjectID == projectID {
			out = append(out, m)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.Milestone) int { return a.Position - b.Position })
	return out, nil
}

func (f *fakeRepo) GetTask(_ context.Context, id string) (domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := indexByID(f.tasks, id, taskKey)
	if i < 0 {
		return domain.Task{}, ErrNotFound
	}
	return f.tasks[i].Clone(), nil
}

func (f *fakeRepo) ListTasks(_ context.Context, milestoneID string) ([]domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Task, 0)
	for _, t := range f.tasks {
		if t.MilestoneID == milestoneID {
			out = append(out, t.Clone())
		}
	}
	slices.SortStableFunc(out, func(a, b domain.Task) int { return a.Position - b.Position })
	return out, nil
}

func (f *fakeRepo) ListProjectTasks(_ context.Context, projectID string) ([]domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Task, 0)
	for _, t := range f.tasks {
		if t.ProjectID == projectID {
			out = append(out, t.Clone())
		}
	}
	return out, nil
}

func (f *fakeRepo) CommitTaskChange(_ context.Context, change TaskChange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCommit != nil {
		return f.failCommit
	}
	if change.Task != nil {
		f.upsertTaskLocked(change.Task.Clone())
	}
	if change.DeleteTaskID != "" {
		i := indexByID(f.tasks, change.DeleteTaskID, taskKey)
		if i < 0 {
			return ErrNotFound
		}
		f.tasks = slices.Delete(f.tasks, i, i+1)
	}
	if i := indexByID(f.milestones, change.MilestoneID, milestoneKey); i >= 0 {
		f.milestones[i].Progress = change.MilestoneProgress
	}
	if i := indexByID(f.projects, change.ProjectID, projectKey); i >= 0 {
		f.projects[i].Progress = change.ProjectProgress
	}
	f.commits++
	return nil
}

func (f *fakeRepo) upsertTaskLocked(t domain.Task) {
	if i := indexByID(f.tasks, t.ID, taskKey); i >= 0 {
		f.tasks[i] = t
		return
	}
	f.tasks = append(f.tasks, t)
}

func (f *fakeRepo) ImportBatch(_ context.Context, batch ImportBatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range batch.Users {
		if i := indexByID(f.users, u.ID, userKey); i >= 0 {
			f.users[i] = u
		} else {
			f.users = append(f.users, u)
		}
	}
	for _, p := range batch.Projects {
		if i := indexByID(f.projects, p.ID, projectKey); i >= 0 {
			f.projects[i] = p
		} else {
			f.projects = append(f.projects, p)
		}
	}
	for _, m := range batch.Members {
		f.upsertMemberLocked(m)
	}
	for _, m := range batch.Milestones {
		if i := indexByID(f.milestones, m.ID, milestoneKey); i >= 0 {
			f.milestones[i] = m
		} else {
			f.milestones = append(f.milestones, m)
		}
	}
	for _, t := range batch.Tasks {
		f.upsertTaskLocked(t.Clone())
	}
	return nil
}
