package seed

import (
	"context"
	"strings"
	"testing"

	"github.com/evanschultz/tally/internal/adapters/storage/memory"
	"github.com/evanschultz/tally/internal/app"
	"github.com/evanschultz/tally/internal/domain"
)

func TestDemoDatasetShape(t *testing.T) {
	snap, err := Demo()
	if err != nil {
		t.Fatalf("Demo() error = %v", err)
	}
	if len(snap.Users) != 5 || len(snap.Projects) != 1 || len(snap.Members) != 5 {
		t.Fatalf("unexpected sizes users=%d projects=%d members=%d", len(snap.Users), len(snap.Projects), len(snap.Members))
	}
	if len(snap.Milestones) != 5 || len(snap.Tasks) != 10 {
		t.Fatalf("unexpected sizes milestones=%d tasks=%d", len(snap.Milestones), len(snap.Tasks))
	}
	if err := snap.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	for i, m := range snap.Milestones {
		if m.Position != i {
			t.Fatalf("milestone %s position = %d, want %d", m.ID, m.Position, i)
		}
	}
}

func TestLoadDerivesReferenceState(t *testing.T) {
	ctx := context.Background()
	svc := app.NewService(memory.New(), func() string { return "gen" }, nil, app.ServiceConfig{})
	if err := Load(ctx, svc); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	wantStatus := map[string]domain.TaskStatus{
		"t1":  domain.TaskCompleted,
		"t2":  domain.TaskCompleted,
		"t3":  domain.TaskInProgress,
		"t4":  domain.TaskInProgress,
		"t5":  domain.TaskPending,
		"t6":  domain.TaskInProgress,
		"t7":  domain.TaskPending,
		"t8":  domain.TaskPending,
		"t9":  domain.TaskPending,
		"t10": domain.TaskInProgress,
	}
	for id, want := range wantStatus {
		task, err := svc.GetTask(ctx, id)
		if err != nil {
			t.Fatalf("GetTask(%s) error = %v", id, err)
		}
		if task.Status != want {
			t.Fatalf("task %s status = %q, want %q", id, task.Status, want)
		}
	}

	project, err := svc.GetProject(ctx, "p1")
	if err != nil {
		t.Fatalf("GetProject() error = %v", err)
	}
	if project.Progress != 20 {
		t.Fatalf("project progress = %d, want 20", project.Progress)
	}
	m1, err := svc.GetMilestone(ctx, "m1")
	if err != nil {
		t.Fatalf("GetMilestone() error = %v", err)
	}
	if m1.Progress != 100 {
		t.Fatalf("m1 progress = %d, want 100", m1.Progress)
	}

	t3, err := svc.GetTask(ctx, "t3")
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	first := t3.Completions[0]
	if first.UserID != "3" || !first.IsCompleted || first.CompletedAt == nil || !first.CompletedAt.Equal(t3.UpdatedAt) {
		t.Fatalf("unexpected first completion %#v", first)
	}

	// Completing the last open part of t3 moves m2 to 50%.
	if _, err := svc.SetUserTaskStatus(ctx, "t3", "4", domain.UserCompleted); err != nil {
		t.Fatalf("SetUserTaskStatus() error = %v", err)
	}
	m2, err := svc.GetMilestone(ctx, "m2")
	if err != nil {
		t.Fatalf("GetMilestone() error = %v", err)
	}
	if m2.Progress != 50 {
		t.Fatalf("m2 progress = %d, want 50", m2.Progress)
	}
	project, err = svc.GetProject(ctx, "p1")
	if err != nil {
		t.Fatalf("GetProject() error = %v", err)
	}
	if project.Progress != 30 {
		t.Fatalf("project progress = %d, want 30", project.Progress)
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{name: "yaml", content: "users: [", wantErr: "decode seed yaml"},
		{name: "date", content: "users:\n  - id: \"1\"\n    created_at: \"01/02/2024\"\n", wantErr: "user 1 created_at"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.content))
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("Parse() error = %v, want %q", err, tc.wantErr)
			}
		})
	}
}
