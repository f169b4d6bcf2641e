// Package memory provides the default process-local entity store.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/evanschultz/tally/internal/app"
	"github.com/evanschultz/tally/internal/domain"
)

// Repository represents repository data used by this package.
type Repository struct {
	mu         sync.RWMutex
	seq        uint64
	users      table[domain.User]
	projects   table[domain.Project]
	members    table[domain.ProjectMember]
	milestones table[domain.Milestone]
	tasks      table[domain.Task]
}

// New constructs an empty repository.
func New() *Repository {
	return &Repository{
		users:      newTable[domain.User](),
		projects:   newTable[domain.Project](),
		members:    newTable[domain.ProjectMember](),
		milestones: newTable[domain.Milestone](),
		tasks:      newTable[domain.Task](),
	}
}

// Close is a no-op kept so callers can treat every store the same way.
func (r *Repository) Close() error {
	return nil
}

// row keeps the insertion sequence next to each value.
type row[T any] struct {
	seq   uint64
	value T
}

// table is an insertion-ordered map of rows.
type table[T any] struct {
	rows map[string]row[T]
}

func newTable[T any]() table[T] {
	return table[T]{rows: map[string]row[T]{}}
}

func (t table[T]) get(id string) (T, bool) {
	r, ok := t.rows[id]
	return r.value, ok
}

// list returns matching values ordered by insertion.
func (t table[T]) list(keep func(T) bool) []T {
	matched := make([]row[T], 0, len(t.rows))
	for _, r := range t.rows {
		if keep == nil || keep(r.value) {
			matched = append(matched, r)
		}
	}
	slices.SortFunc(matched, func(a, b row[T]) int { return cmp.Compare(a.seq, b.seq) })
	out := make([]T, 0, len(matched))
	for _, r := range matched {
		out = append(out, r.value)
	}
	return out
}

// upsert inserts or replaces id, keeping the original sequence on replace.
func upsert[T any](r *Repository, t table[T], id string, v T) {
	if existing, ok := t.rows[id]; ok {
		t.rows[id] = row[T]{seq: existing.seq, value: v}
		return
	}
	r.seq++
	t.rows[id] = row[T]{seq: r.seq, value: v}
}

func insert[T any](r *Repository, t table[T], id string, v T, kind string) error {
	if _, ok := t.rows[id]; ok {
		return fmt.Errorf("%s %q already exists", kind, id)
	}
	upsert(r, t, id, v)
	return nil
}

func replace[T any](t table[T], id string, v T) error {
	existing, ok := t.rows[id]
	if !ok {
		return app.ErrNotFound
	}
	t.rows[id] = row[T]{seq: existing.seq, value: v}
	return nil
}

func memberKey(projectID, userID string) string {
	return projectID + "\x00" + userID
}

// CreateUser creates user.
func (r *Repository) CreateUser(_ context.Context, u domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return insert(r, r.users, u.ID, u, "user")
}

// UpdateUser updates state for the requested operation.
func (r *Repository) UpdateUser(_ context.Context, u domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return replace(r.users, u.ID, u)
}

// GetUser returns user.
func (r *Repository) GetUser(_ context.Context, id string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users.get(id)
	if !ok {
		return domain.User{}, app.ErrNotFound
	}
	return u, nil
}

// ListUsers lists users.
func (r *Repository) ListUsers(context.Context) ([]domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.users.list(nil), nil
}

// DeleteUser deletes user.
func (r *Repository) DeleteUser(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users.rows[id]; !ok {
		return app.ErrNotFound
	}
	delete(r.users.rows, id)
	return nil
}

// CreateProject creates project.
func (r *Repository) CreateProject(_ context.Context, p domain.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return insert(r, r.projects, p.ID, p, "project")
}

// UpdateProject updates state for the requested operation.
func (r *Repository) UpdateProject(_ context.Context, p domain.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return replace(r.projects, p.ID, p)
}

// GetProject returns project.
func (r *Repository) GetProject(_ context.Context, id string) (domain.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.projects.get(id)
	if !ok {
		return domain.Project{}, app.ErrNotFound
	}
	return p, nil
}

// ListProjects lists projects.
func (r *Repository) ListProjects(context.Context) ([]domain.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.projects.list(nil), nil
}

// UpsertProjectMember upserts project member.
func (r *Repository) UpsertProjectMember(_ context.Context, m domain.ProjectMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	upsert(r, r.members, memberKey(m.ProjectID, m.UserID), m)
	return nil
}

// DeleteProjectMember deletes project member.
func (r *Repository) DeleteProjectMember(_ context.Context, projectID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := memberKey(projectID, userID)
	if _, ok := r.members.rows[key]; !ok {
		return app.ErrNotFound
	}
	delete(r.members.rows, key)
	return nil
}

// ListProjectMembers lists project members.
func (r *Repository) ListProjectMembers(_ context.Context, projectID string) ([]domain.ProjectMember, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.members.list(func(m domain.ProjectMember) bool { return m.ProjectID == projectID }), nil
}

// ListUserMemberships lists user memberships.
func (r *Repository) ListUserMemberships(_ context.Context, userID string) ([]domain.ProjectMember, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.members.list(func(m domain.ProjectMember) bool { return m.UserID == userID }), nil
}

// CreateMilestone creates milestone.
func (r *Repository) CreateMilestone(_ context.Context, m domain.Milestone) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return insert(r, r.milestones, m.ID, m, "milestone")
}

// UpdateMilestone updates state for the requested operation.
func (r *Repository) UpdateMilestone(_ context.Context, m domain.Milestone) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return replace(r.milestones, m.ID, m)
}

// GetMilestone returns milestone.
func (r *Repository) GetMilestone(_ context.Context, id string) (domain.Milestone, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.milestones.get(id)
	if !ok {
		return domain.Milestone{}, app.ErrNotFound
	}
	return m, nil
}

// ListMilestones lists milestones by position.
func (r *Repository) ListMilestones(_ context.Context, projectID string) ([]domain.Milestone, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := r.milestones.list(func(m domain.Milestone) bool { return m.ProjectID == projectID })
	slices.SortStableFunc(out, func(a, b domain.Milestone) int { return cmp.Compare(a.Position, b.Position) })
	return out, nil
}

// GetTask returns task.
func (r *Repository) GetTask(_ context.Context, id string) (domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks.get(id)
	if !ok {
		return domain.Task{}, app.ErrNotFound
	}
	return t.Clone(), nil
}

// ListTasks lists tasks of one milestone by position.
func (r *Repository) ListTasks(_ context.Context, milestoneID string) ([]domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := r.tasks.list(func(t domain.Task) bool { return t.MilestoneID == milestoneID })
	slices.SortStableFunc(out, func(a, b domain.Task) int { return cmp.Compare(a.Position, b.Position) })
	return cloneTasks(out), nil
}

// ListProjectTasks lists every task of a project in insertion order.
func (r *Repository) ListProjectTasks(_ context.Context, projectID string) ([]domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneTasks(r.tasks.list(func(t domain.Task) bool { return t.ProjectID == projectID })), nil
}

// CommitTaskChange applies a task write and its rollup under one write lock.
func (r *Repository) CommitTaskChange(_ context.Context, change app.TaskChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	project, ok := r.projects.get(change.ProjectID)
	if !ok {
		return app.ErrNotFound
	}
	milestone, ok := r.milestones.get(change.MilestoneID)
	if !ok {
		return app.ErrNotFound
	}
	if change.DeleteTaskID != "" {
		if _, ok := r.tasks.rows[change.DeleteTaskID]; !ok {
			return app.ErrNotFound
		}
	}

	if change.Task != nil {
		upsert(r, r.tasks, change.Task.ID, change.Task.Clone())
	}
	if change.DeleteTaskID != "" {
		delete(r.tasks.rows, change.DeleteTaskID)
	}
	milestone.Progress = change.MilestoneProgress
	project.Progress = change.ProjectProgress
	_ = replace(r.milestones, milestone.ID, milestone)
	_ = replace(r.projects, project.ID, project)
	return nil
}

// ImportBatch upserts every row of batch under one write lock.
func (r *Repository) ImportBatch(_ context.Context, batch app.ImportBatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range batch.Users {
		upsert(r, r.users, u.ID, u)
	}
	for _, p := range batch.Projects {
		upsert(r, r.projects, p.ID, p)
	}
	for _, m := range batch.Members {
		upsert(r, r.members, memberKey(m.ProjectID, m.UserID), m)
	}
	for _, m := range batch.Milestones {
		upsert(r, r.milestones, m.ID, m)
	}
	for _, t := range batch.Tasks {
		upsert(r, r.tasks, t.ID, t.Clone())
	}
	return nil
}

func cloneTasks(in []domain.Task) []domain.Task {
	out := make([]domain.Task, 0, len(in))
	for _, t := range in {
		out = append(out, t.Clone())
	}
	return out
}
