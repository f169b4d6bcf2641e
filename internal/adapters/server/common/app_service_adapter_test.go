package common

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/evanschultz/tally/internal/adapters/storage/memory"
	"github.com/evanschultz/tally/internal/app"
	"github.com/evanschultz/tally/internal/domain"
)

var (
	admin     = Actor{ID: "u1", Role: "admin"}
	manager   = Actor{ID: "u2", Role: "project-manager"}
	developer = Actor{ID: "u3", Role: "developer"}
)

// newTestAdapter builds an adapter over a memory store holding one project with task t3.
func newTestAdapter(t *testing.T) *AppServiceAdapter {
	t.Helper()
	n := 0
	svc := app.NewService(memory.New(), func() string {
		n++
		return fmt.Sprintf("gen-%d", n)
	}, func() time.Time {
		return time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	}, app.ServiceConfig{})
	err := svc.ImportSnapshot(context.Background(), app.Snapshot{
		Users: []domain.User{
			{ID: "u1", Name: "Ana García", Email: "ana@example.com", Role: domain.RoleAdmin},
			{ID: "u2", Name: "Carlos Rodríguez", Email: "carlos@example.com", Role: domain.RoleProjectManager},
			{ID: "u3", Name: "María López", Email: "maria@example.com", Role: domain.RoleDeveloper},
			{ID: "u4", Name: "Juan Martínez", Email: "juan@example.com", Role: domain.RoleDeveloper},
		},
		Projects:   []domain.Project{{ID: "p1", Name: "Plataforma E-Commerce"}},
		Members:    []domain.ProjectMember{{ProjectID: "p1", UserID: "u3"}, {ProjectID: "p1", UserID: "u4"}},
		Milestones: []domain.Milestone{{ID: "m2", ProjectID: "p1", Title: "Backend"}},
		Tasks: []domain.Task{{
			ID: "t3", MilestoneID: "m2", Title: "API REST", Description: "Endpoints",
			AssignedTo: []string{"u3", "u4"},
			Completions: []domain.Completion{
				{UserID: "u3", Status: domain.UserCompleted},
				{UserID: "u4", Status: domain.UserInProgress},
			},
		}},
	})
	if err != nil {
		t.Fatalf("ImportSnapshot() error = %v", err)
	}
	return NewAppServiceAdapter(svc)
}

// TestAdapterSetUserTaskStatusGating verifies self-or-manager rules on status updates.
func TestAdapterSetUserTaskStatusGating(t *testing.T) {
	ctx := context.Background()
	adapter := newTestAdapter(t)

	_, err := adapter.SetUserTaskStatus(ctx, developer, SetUserTaskStatusRequest{TaskID: "t3", UserID: "u4", Status: "completed"})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for another assignee, got %v", err)
	}

	task, err := adapter.SetUserTaskStatus(ctx, Actor{ID: "u4", Role: "developer"}, SetUserTaskStatusRequest{TaskID: "t3", UserID: "u4", Status: "completed"})
	if err != nil {
		t.Fatalf("SetUserTaskStatus() error = %v", err)
	}
	if task.Status != domain.TaskCompleted {
		t.Fatalf("expected completed task, got %q", task.Status)
	}

	task, err = adapter.SetUserTaskCompletion(ctx, manager, SetUserTaskCompletionRequest{TaskID: "t3", UserID: "u3", Completed: false})
	if err != nil {
		t.Fatalf("SetUserTaskCompletion() error = %v", err)
	}
	if task.Status != domain.TaskPending {
		t.Fatalf("expected pending after manager reset, got %q", task.Status)
	}
}

// TestAdapterErrorMapping verifies app and domain errors map onto transport sentinels.
func TestAdapterErrorMapping(t *testing.T) {
	ctx := context.Background()
	adapter := newTestAdapter(t)

	cases := []struct {
		name string
		run  func() error
		want error
	}{
		{
			name: "unknown task",
			run: func() error {
				_, err := adapter.GetTask(ctx, "missing")
				return err
			},
			want: ErrNotFound,
		},
		{
			name: "unknown assignee",
			run: func() error {
				_, err := adapter.SetUserTaskStatus(ctx, admin, SetUserTaskStatusRequest{TaskID: "t3", UserID: "u9", Status: "completed"})
				return err
			},
			want: ErrNotFound,
		},
		{
			name: "invalid status",
			run: func() error {
				_, err := adapter.SetUserTaskStatus(ctx, admin, SetUserTaskStatusRequest{TaskID: "t3", UserID: "u3", Status: "finished"})
				return err
			},
			want: ErrInvalidRequest,
		},
		{
			name: "bad date",
			run: func() error {
				_, err := adapter.CreateTask(ctx, admin, CreateTaskRequest{MilestoneID: "m2", Title: "x", Description: "y", StartDate: "tomorrow"})
				return err
			},
			want: ErrInvalidRequest,
		},
		{
			name: "self delete",
			run: func() error {
				return adapter.DeleteUser(ctx, admin, "u1")
			},
			want: ErrConflict,
		},
		{
			name: "developer creates task",
			run: func() error {
				_, err := adapter.CreateTask(ctx, developer, CreateTaskRequest{MilestoneID: "m2", Title: "x", Description: "y"})
				return err
			},
			want: ErrForbidden,
		},
		{
			name: "anonymous creates project",
			run: func() error {
				_, err := adapter.CreateProject(ctx, Actor{}, CreateProjectRequest{Name: "x"})
				return err
			},
			want: ErrForbidden,
		},
		{
			name: "manager creates user",
			run: func() error {
				_, err := adapter.CreateUser(ctx, manager, CreateUserRequest{Name: "x", Email: "x@example.com"})
				return err
			},
			want: ErrForbidden,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.run(); !errors.Is(err, tc.want) {
				t.Fatalf("error = %v, want %v", err, tc.want)
			}
		})
	}
}

// TestAdapterTaskLifecycle verifies create, patch, and delete flows with date parsing.
func TestAdapterTaskLifecycle(t *testing.T) {
	ctx := context.Background()
	adapter := newTestAdapter(t)

	task, err := adapter.CreateTask(ctx, manager, CreateTaskRequest{
		MilestoneID: "m2",
		Title:       "Pasarela de pago",
		Description: "Integrar Stripe",
		Priority:    "critical",
		AssignedTo:  []string{"u3"},
		StartDate:   "2026-03-01",
		EndDate:     "2026-03-15",
	})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	if task.CreatedBy != "u2" || task.Priority != domain.PriorityCritical {
		t.Fatalf("unexpected created task %#v", task)
	}
	if want := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC); !task.StartDate.Equal(want) {
		t.Fatalf("start_date = %v, want %v", task.StartDate, want)
	}

	title := "Pasarela"
	assignees := []string{"u3", "u4"}
	status := "completed"
	task, err = adapter.UpdateTask(ctx, manager, UpdateTaskRequest{TaskID: task.ID, Title: &title, AssignedTo: &assignees, Status: &status})
	if err != nil {
		t.Fatalf("UpdateTask() error = %v", err)
	}
	if task.Title != title || len(task.Completions) != 2 || task.Status != domain.TaskCompleted {
		t.Fatalf("unexpected updated task %#v", task)
	}

	if err := adapter.DeleteTask(ctx, manager, task.ID); err != nil {
		t.Fatalf("DeleteTask() error = %v", err)
	}
	if _, err := adapter.GetTask(ctx, task.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected deleted task to be missing, got %v", err)
	}
}

// TestAdapterUpdateUserSelfService verifies users may edit their own profile but not their role.
func TestAdapterUpdateUserSelfService(t *testing.T) {
	ctx := context.Background()
	adapter := newTestAdapter(t)

	user, err := adapter.UpdateUser(ctx, developer, UpdateUserRequest{UserID: "u3", Name: "María L."})
	if err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}
	if user.Name != "María L." {
		t.Fatalf("name = %q, want María L.", user.Name)
	}
	if _, err := adapter.UpdateUser(ctx, developer, UpdateUserRequest{UserID: "u3", Role: "admin"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for self role change, got %v", err)
	}
	if _, err := adapter.UpdateUser(ctx, developer, UpdateUserRequest{UserID: "u4", Name: "x"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for another user, got %v", err)
	}
}

// TestParseDate verifies accepted transport date formats.
func TestParseDate(t *testing.T) {
	cases := []struct {
		raw     string
		want    time.Time
		wantErr bool
	}{
		{raw: "", want: time.Time{}},
		{raw: "2026-01-15", want: time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)},
		{raw: "2026-01-15T10:30:00Z", want: time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)},
		{raw: "2026-01-15T10:30:00+02:00", want: time.Date(2026, 1, 15, 8, 30, 0, 0, time.UTC)},
		{raw: "15/01/2026", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseDate(tc.raw)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidRequest) {
				t.Fatalf("ParseDate(%q) error = %v, want ErrInvalidRequest", tc.raw, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseDate(%q) error = %v", tc.raw, err)
		}
		if !got.Equal(tc.want) {
			t.Fatalf("ParseDate(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}
