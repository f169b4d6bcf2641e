// Package storagetest holds behavior checks shared by every app.Repository
// implementation.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/evanschultz/tally/internal/app"
	"github.com/evanschultz/tally/internal/domain"
)

// Factory opens a fresh, empty repository for one test.
type Factory func(t *testing.T) app.Repository

// RunRepositoryContract exercises ordering, copy, and atomic-commit guarantees.
func RunRepositoryContract(t *testing.T, open Factory) {
	t.Helper()
	t.Run("users", func(t *testing.T) { testUsers(t, open(t)) })
	t.Run("tree ordering", func(t *testing.T) { testTreeOrdering(t, open(t)) })
	t.Run("commit task change", func(t *testing.T) { testCommitTaskChange(t, open(t)) })
	t.Run("members", func(t *testing.T) { testMembers(t, open(t)) })
	t.Run("import batch", func(t *testing.T) { testImportBatch(t, open(t)) })
}

var now = time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)

func mustUser(t *testing.T, id, name string, role domain.Role) domain.User {
	t.Helper()
	u, err := domain.NewUser(domain.UserInput{ID: id, Name: name, Email: id + "@example.com", Role: role}, now)
	if err != nil {
		t.Fatalf("NewUser() error = %v", err)
	}
	return u
}

func seedTree(t *testing.T, repo app.Repository) {
	t.Helper()
	ctx := context.Background()
	project, err := domain.NewProject(domain.ProjectInput{ID: "p1", Name: "Plataforma", EstimatedHours: 800}, now)
	if err != nil {
		t.Fatalf("NewProject() error = %v", err)
	}
	if err := repo.CreateProject(ctx, project); err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	for _, in := range []domain.MilestoneInput{
		{ID: "m2", ProjectID: "p1", Title: "Backend", Position: 1},
		{ID: "m1", ProjectID: "p1", Title: "Diseño", Position: 0},
	} {
		m, err := domain.NewMilestone(in, now)
		if err != nil {
			t.Fatalf("NewMilestone() error = %v", err)
		}
		if err := repo.CreateMilestone(ctx, m); err != nil {
			t.Fatalf("CreateMilestone() error = %v", err)
		}
	}
}

func newTask(t *testing.T, id, milestoneID string, position int, assignees ...string) domain.Task {
	t.Helper()
	task, err := domain.NewTask(domain.TaskInput{
		ID:          id,
		ProjectID:   "p1",
		MilestoneID: milestoneID,
		Position:    position,
		Title:       "Task " + id,
		Description: "Details " + id,
		Priority:    domain.PriorityCritical,
		AssignedTo:  assignees,
		StartDate:   now,
		EndDate:     now.AddDate(0, 0, 7),
	}, now)
	if err != nil {
		t.Fatalf("NewTask() error = %v", err)
	}
	return task
}

func commitTask(t *testing.T, repo app.Repository, task domain.Task) {
	t.Helper()
	err := repo.CommitTaskChange(context.Background(), app.TaskChange{
		Task:        &task,
		ProjectID:   task.ProjectID,
		MilestoneID: task.MilestoneID,
	})
	if err != nil {
		t.Fatalf("CommitTaskChange() error = %v", err)
	}
}

func testUsers(t *testing.T, repo app.Repository) {
	ctx := context.Background()
	for _, u := range []domain.User{
		mustUser(t, "u2", "Carlos", domain.RoleProjectManager),
		mustUser(t, "u1", "Ana", domain.RoleAdmin),
	} {
		if err := repo.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser() error = %v", err)
		}
	}
	if err := repo.CreateUser(ctx, mustUser(t, "u1", "Dup", domain.RoleViewer)); err == nil {
		t.Fatal("expected duplicate user insert to fail")
	}
	users, err := repo.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if len(users) != 2 || users[0].ID != "u2" || users[1].ID != "u1" {
		t.Fatalf("expected insertion order, got %#v", users)
	}
	u := users[1]
	u.Name = "Ana García"
	if err := repo.UpdateUser(ctx, u); err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}
	got, err := repo.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if got.Name != "Ana García" || got.Role != domain.RoleAdmin || !got.CreatedAt.Equal(now) {
		t.Fatalf("unexpected user %#v", got)
	}
	if err := repo.DeleteUser(ctx, "u1"); err != nil {
		t.Fatalf("DeleteUser() error = %v", err)
	}
	if _, err := repo.GetUser(ctx, "u1"); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.DeleteUser(ctx, "u1"); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	if err := repo.UpdateUser(ctx, mustUser(t, "ghost", "Ghost", domain.RoleViewer)); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update, got %v", err)
	}
}

func testTreeOrdering(t *testing.T, repo app.Repository) {
	ctx := context.Background()
	seedTree(t, repo)
	milestones, err := repo.ListMilestones(ctx, "p1")
	if err != nil {
		t.Fatalf("ListMilestones() error = %v", err)
	}
	if len(milestones) != 2 || milestones[0].ID != "m1" || milestones[1].ID != "m2" {
		t.Fatalf("expected position order, got %#v", milestones)
	}

	commitTask(t, repo, newTask(t, "t2", "m1", 1, "u3"))
	commitTask(t, repo, newTask(t, "t1", "m1", 0, "u2", "u3"))
	commitTask(t, repo, newTask(t, "t3", "m2", 0, "u3", "u4"))

	tasks, err := repo.ListTasks(ctx, "m1")
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if len(tasks) != 2 || tasks[0].ID != "t1" || tasks[1].ID != "t2" {
		t.Fatalf("expected position order, got %#v", tasks)
	}
	all, err := repo.ListProjectTasks(ctx, "p1")
	if err != nil {
		t.Fatalf("ListProjectTasks() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 project tasks, got %d", len(all))
	}
	empty, err := repo.ListTasks(ctx, "missing")
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty list for unknown milestone, got %v, %v", empty, err)
	}

	got, err := repo.GetTask(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if len(got.AssignedTo) != 2 || len(got.Completions) != 2 || got.Completions[1].UserID != "u3" {
		t.Fatalf("unexpected round-tripped task %#v", got)
	}
	if got.Priority != domain.PriorityCritical || !got.EndDate.Equal(now.AddDate(0, 0, 7)) {
		t.Fatalf("unexpected task fields %#v", got)
	}
	got.AssignedTo[0] = "mutated"
	got.Completions[0].Status = domain.UserPaused
	again, _ := repo.GetTask(ctx, "t1")
	if again.AssignedTo[0] != "u2" || again.Completions[0].Status != domain.UserPending {
		t.Fatal("expected repository to return copies")
	}
}

func testCommitTaskChange(t *testing.T, repo app.Repository) {
	ctx := context.Background()
	seedTree(t, repo)
	task := newTask(t, "t3", "m2", 0, "u3", "u4")
	commitTask(t, repo, task)

	later := now.Add(time.Hour)
	if ok, err := task.SetUserStatus("u3", domain.UserCompleted, later); err != nil || !ok {
		t.Fatalf("SetUserStatus() = %v, %v", ok, err)
	}
	if ok, err := task.SetUserStatus("u4", domain.UserCompleted, later); err != nil || !ok {
		t.Fatalf("SetUserStatus() = %v, %v", ok, err)
	}
	err := repo.CommitTaskChange(ctx, app.TaskChange{
		Task:              &task,
		ProjectID:         "p1",
		ProjectProgress:   100,
		MilestoneID:       "m2",
		MilestoneProgress: 100,
	})
	if err != nil {
		t.Fatalf("CommitTaskChange() error = %v", err)
	}
	got, err := repo.GetTask(ctx, "t3")
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if got.Status != domain.TaskCompleted || got.Completions[0].CompletedAt == nil || !got.Completions[0].CompletedAt.Equal(later) {
		t.Fatalf("unexpected committed task %#v", got)
	}
	m, _ := repo.GetMilestone(ctx, "m2")
	p, _ := repo.GetProject(ctx, "p1")
	if m.Progress != 100 || p.Progress != 100 {
		t.Fatalf("expected progress committed, got milestone=%d project=%d", m.Progress, p.Progress)
	}

	err = repo.CommitTaskChange(ctx, app.TaskChange{DeleteTaskID: "missing", ProjectID: "p1", MilestoneID: "m2", MilestoneProgress: 7})
	if !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	m, _ = repo.GetMilestone(ctx, "m2")
	if m.Progress != 100 {
		t.Fatalf("expected failed commit to leave progress untouched, got %d", m.Progress)
	}

	if err := repo.CommitTaskChange(ctx, app.TaskChange{DeleteTaskID: "t3", ProjectID: "p1", MilestoneID: "m2"}); err != nil {
		t.Fatalf("CommitTaskChange() delete error = %v", err)
	}
	if _, err := repo.GetTask(ctx, "t3"); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	m, _ = repo.GetMilestone(ctx, "m2")
	if m.Progress != 0 {
		t.Fatalf("expected progress reset, got %d", m.Progress)
	}
}

func testMembers(t *testing.T, repo app.Repository) {
	ctx := context.Background()
	seedTree(t, repo)
	for _, m := range []domain.ProjectMember{
		{ProjectID: "p1", UserID: "u1", Role: domain.RoleAdmin, CanEdit: true, CanDelete: true, CanAssignTasks: true, JoinedAt: now},
		{ProjectID: "p1", UserID: "u3", Role: domain.RoleDeveloper, CanEdit: true, JoinedAt: now},
	} {
		if err := repo.UpsertProjectMember(ctx, m); err != nil {
			t.Fatalf("UpsertProjectMember() error = %v", err)
		}
	}
	if err := repo.UpsertProjectMember(ctx, domain.ProjectMember{ProjectID: "p1", UserID: "u1", Role: domain.RoleProjectManager, JoinedAt: now}); err != nil {
		t.Fatalf("UpsertProjectMember() replace error = %v", err)
	}
	members, err := repo.ListProjectMembers(ctx, "p1")
	if err != nil {
		t.Fatalf("ListProjectMembers() error = %v", err)
	}
	if len(members) != 2 || members[0].UserID != "u1" || members[0].Role != domain.RoleProjectManager || members[0].CanDelete {
		t.Fatalf("unexpected members %#v", members)
	}
	mine, err := repo.ListUserMemberships(ctx, "u3")
	if err != nil || len(mine) != 1 || !mine[0].CanEdit {
		t.Fatalf("unexpected memberships %#v, %v", mine, err)
	}
	if err := repo.DeleteProjectMember(ctx, "p1", "u3"); err != nil {
		t.Fatalf("DeleteProjectMember() error = %v", err)
	}
	if err := repo.DeleteProjectMember(ctx, "p1", "u3"); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testImportBatch(t *testing.T, repo app.Repository) {
	ctx := context.Background()
	seedTree(t, repo)
	project, _ := repo.GetProject(ctx, "p1")
	project.Progress = 50
	milestone, _ := repo.GetMilestone(ctx, "m1")
	milestone.Progress = 50
	err := repo.ImportBatch(ctx, app.ImportBatch{
		Users:      []domain.User{mustUser(t, "u3", "María", domain.RoleDeveloper)},
		Projects:   []domain.Project{project},
		Members:    []domain.ProjectMember{{ProjectID: "p1", UserID: "u3", Role: domain.RoleDeveloper, JoinedAt: now}},
		Milestones: []domain.Milestone{milestone},
		Tasks:      []domain.Task{newTask(t, "t1", "m1", 0, "u3"), newTask(t, "t2", "m1", 1)},
	})
	if err != nil {
		t.Fatalf("ImportBatch() error = %v", err)
	}
	milestones, _ := repo.ListMilestones(ctx, "p1")
	if len(milestones) != 2 || milestones[0].ID != "m1" || milestones[0].Progress != 50 {
		t.Fatalf("expected upserted milestone to keep its slot, got %#v", milestones)
	}
	tasks, _ := repo.ListTasks(ctx, "m1")
	if len(tasks) != 2 || len(tasks[0].AssignedTo) != 1 || len(tasks[1].AssignedTo) != 0 {
		t.Fatalf("unexpected imported tasks %#v", tasks)
	}
	p, _ := repo.GetProject(ctx, "p1")
	if p.Progress != 50 {
		t.Fatalf("expected project progress 50, got %d", p.Progress)
	}
}
