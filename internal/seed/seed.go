// Package seed loads the embedded demo dataset into a tracker service.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/evanschultz/tally/internal/app"
	"github.com/evanschultz/tally/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed demo.yaml
var demoYAML []byte

// Importer accepts a snapshot and derives statuses and progress from it.
type Importer interface {
	ImportSnapshot(ctx context.Context, snap app.Snapshot) error
}

type dataset struct {
	Users    []userRow    `yaml:"users"`
	Projects []projectRow `yaml:"projects"`
}

type userRow struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Email     string `yaml:"email"`
	Avatar    string `yaml:"avatar"`
	Role      string `yaml:"role"`
	CreatedAt string `yaml:"created_at"`
}

type projectRow struct {
	ID             string         `yaml:"id"`
	Name           string         `yaml:"name"`
	Description    string         `yaml:"description"`
	StartDate      string         `yaml:"start_date"`
	EndDate        string         `yaml:"end_date"`
	EstimatedHours int            `yaml:"estimated_hours"`
	Status         string         `yaml:"status"`
	CreatedBy      string         `yaml:"created_by"`
	CreatedAt      string         `yaml:"created_at"`
	UpdatedAt      string         `yaml:"updated_at"`
	Members        []memberRow    `yaml:"members"`
	Milestones     []milestoneRow `yaml:"milestones"`
}

type memberRow struct {
	User           string `yaml:"user"`
	Role           string `yaml:"role"`
	CanEdit        bool   `yaml:"can_edit"`
	CanDelete      bool   `yaml:"can_delete"`
	CanAssignTasks bool   `yaml:"can_assign_tasks"`
	JoinedAt       string `yaml:"joined_at"`
}

type milestoneRow struct {
	ID          string    `yaml:"id"`
	Title       string    `yaml:"title"`
	Description string    `yaml:"description"`
	StartDate   string    `yaml:"start_date"`
	EndDate     string    `yaml:"end_date"`
	Status      string    `yaml:"status"`
	CreatedAt   string    `yaml:"created_at"`
	Tasks       []taskRow `yaml:"tasks"`
}

type taskRow struct {
	ID          string        `yaml:"id"`
	Title       string        `yaml:"title"`
	Description string        `yaml:"description"`
	Priority    string        `yaml:"priority"`
	StartDate   string        `yaml:"start_date"`
	EndDate     string        `yaml:"end_date"`
	CreatedBy   string        `yaml:"created_by"`
	CreatedAt   string        `yaml:"created_at"`
	UpdatedAt   string        `yaml:"updated_at"`
	Assignees   []assigneeRow `yaml:"assignees"`
}

type assigneeRow struct {
	User   string `yaml:"user"`
	Status string `yaml:"status"`
}

// Demo returns the embedded demo dataset as a snapshot.
func Demo() (app.Snapshot, error) {
	return Parse(demoYAML)
}

// Load imports the embedded demo dataset through svc.
func Load(ctx context.Context, svc Importer) error {
	snap, err := Demo()
	if err != nil {
		return err
	}
	if err := svc.ImportSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("import demo dataset: %w", err)
	}
	return nil
}

// Parse decodes a nested YAML dataset into a flat snapshot. Completed assignees
// are stamped with the task's updated_at so the result is deterministic.
func Parse(content []byte) (app.Snapshot, error) {
	var data dataset
	if err := yaml.Unmarshal(content, &data); err != nil {
		return app.Snapshot{}, fmt.Errorf("decode seed yaml: %w", err)
	}

	p := &dateParser{}
	snap := app.Snapshot{Version: app.SnapshotVersion}
	for _, u := range data.Users {
		snap.Users = append(snap.Users, domain.User{
			ID:        u.ID,
			Name:      u.Name,
			Email:     u.Email,
			Avatar:    u.Avatar,
			Role:      domain.Role(u.Role),
			CreatedAt: p.parse("user "+u.ID+" created_at", u.CreatedAt),
		})
	}
	for _, pr := range data.Projects {
		snap.Projects = append(snap.Projects, domain.Project{
			ID:             pr.ID,
			Name:           pr.Name,
			Description:    strings.TrimSpace(pr.Description),
			StartDate:      p.parse("project "+pr.ID+" start_date", pr.StartDate),
			EndDate:        p.parse("project "+pr.ID+" end_date", pr.EndDate),
			EstimatedHours: pr.EstimatedHours,
			Status:         domain.ProjectStatus(pr.Status),
			CreatedBy:      pr.CreatedBy,
			CreatedAt:      p.parse("project "+pr.ID+" created_at", pr.CreatedAt),
			UpdatedAt:      p.parse("project "+pr.ID+" updated_at", pr.UpdatedAt),
		})
		for _, m := range pr.Members {
			snap.Members = append(snap.Members, domain.ProjectMember{
				ProjectID:      pr.ID,
				UserID:         m.User,
				Role:           domain.Role(m.Role),
				CanEdit:        m.CanEdit,
				CanDelete:      m.CanDelete,
				CanAssignTasks: m.CanAssignTasks,
				JoinedAt:       p.parse("member "+m.User+" joined_at", m.JoinedAt),
			})
		}
		for mi, ms := range pr.Milestones {
			snap.Milestones = append(snap.Milestones, domain.Milestone{
				ID:          ms.ID,
				ProjectID:   pr.ID,
				Title:       ms.Title,
				Description: ms.Description,
				StartDate:   p.parse("milestone "+ms.ID+" start_date", ms.StartDate),
				EndDate:     p.parse("milestone "+ms.ID+" end_date", ms.EndDate),
				Status:      domain.MilestoneStatus(ms.Status),
				Position:    mi,
				CreatedAt:   p.parse("milestone "+ms.ID+" created_at", ms.CreatedAt),
			})
			for ti, tr := range ms.Tasks {
				snap.Tasks = append(snap.Tasks, toTask(p, pr.ID, ms.ID, ti, tr))
			}
		}
	}
	if p.err != nil {
		return app.Snapshot{}, p.err
	}
	return snap, nil
}

func toTask(p *dateParser, projectID, milestoneID string, position int, tr taskRow) domain.Task {
	updatedAt := p.parse("task "+tr.ID+" updated_at", tr.UpdatedAt)
	task := domain.Task{
		ID:          tr.ID,
		ProjectID:   projectID,
		MilestoneID: milestoneID,
		Position:    position,
		Title:       tr.Title,
		Description: tr.Description,
		Priority:    domain.Priority(tr.Priority),
		StartDate:   p.parse("task "+tr.ID+" start_date", tr.StartDate),
		EndDate:     p.parse("task "+tr.ID+" end_date", tr.EndDate),
		CreatedBy:   tr.CreatedBy,
		CreatedAt:   p.parse("task "+tr.ID+" created_at", tr.CreatedAt),
		UpdatedAt:   updatedAt,
		Completions: []domain.Completion{},
	}
	for _, a := range tr.Assignees {
		task.AssignedTo = append(task.AssignedTo, a.User)
		c := domain.Completion{
			UserID: a.User,
			Status: domain.NormalizeUserTaskStatus(domain.UserTaskStatus(a.Status)),
		}
		if c.Status == domain.UserCompleted {
			completedAt := updatedAt
			c.IsCompleted = true
			c.CompletedAt = &completedAt
		}
		task.Completions = append(task.Completions, c)
	}
	return task
}

// dateParser keeps the first parse failure so conversion code stays linear.
type dateParser struct {
	err error
}

func (p *dateParser) parse(field, raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" || p.err != nil {
		return time.Time{}
	}
	ts, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		ts, err = time.Parse(time.RFC3339, raw)
	}
	if err != nil {
		p.err = fmt.Errorf("%s: invalid date %q: %w", field, raw, err)
		return time.Time{}
	}
	return ts.UTC()
}
