package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/evanschultz/tally/internal/domain"
)

// SnapshotVersion defines a package constant value.
const SnapshotVersion = "tally.snapshot.v1"

// Snapshot represents snapshot data used by this package.
type Snapshot struct {
	Version    string                 `json:"version"`
	ExportedAt time.Time              `json:"exported_at"`
	Users      []domain.User          `json:"users"`
	Projects   []domain.Project       `json:"projects"`
	Members    []domain.ProjectMember `json:"members"`
	Milestones []domain.Milestone     `json:"milestones"`
	Tasks      []domain.Task          `json:"tasks"`
}

// ExportSnapshot handles export snapshot.
func (s *Service) ExportSnapshot(ctx context.Context) (Snapshot, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	projects, err := s.repo.ListProjects(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: s.clock().UTC(),
		Users:      users,
		Projects:   projects,
		Members:    make([]domain.ProjectMember, 0),
		Milestones: make([]domain.Milestone, 0),
		Tasks:      make([]domain.Task, 0),
	}
	for _, project := range projects {
		members, err := s.repo.ListProjectMembers(ctx, project.ID)
		if err != nil {
			return Snapshot{}, err
		}
		snap.Members = append(snap.Members, members...)

		milestones, err := s.repo.ListMilestones(ctx, project.ID)
		if err != nil {
			return Snapshot{}, err
		}
		for _, milestone := range milestones {
			snap.Milestones = append(snap.Milestones, milestone)
			tasks, err := s.repo.ListTasks(ctx, milestone.ID)
			if err != nil {
				return Snapshot{}, err
			}
			snap.Tasks = append(snap.Tasks, tasks...)
		}
	}
	return snap, nil
}

// ImportSnapshot validates snap, re-derives every task status and progress value,
// and upserts the result in one batch.
func (s *Service) ImportSnapshot(ctx context.Context, snap Snapshot) error {
	now := s.clock().UTC()
	if err := snap.Validate(); err != nil {
		return err
	}
	if err := snap.normalize(now); err != nil {
		return err
	}

	projectIDs := make([]string, 0, len(snap.Projects))
	for _, p := range snap.Projects {
		projectIDs = append(projectIDs, p.ID)
	}
	unlock := s.locks.lock(projectIDs...)
	defer unlock()

	if err := s.rollupSnapshot(ctx, &snap); err != nil {
		return err
	}
	return s.repo.ImportBatch(ctx, ImportBatch{
		Users:      snap.Users,
		Projects:   snap.Projects,
		Members:    snap.Members,
		Milestones: snap.Milestones,
		Tasks:      snap.Tasks,
	})
}

// Validate checks ids, uniqueness, and references inside the snapshot.
func (s *Snapshot) Validate() error {
	if s.Version != "" && s.Version != SnapshotVersion {
		return fmt.Errorf("%w: unsupported snapshot version: %q", ErrInvalidSnapshot, s.Version)
	}

	userIDs := map[string]struct{}{}
	for i, u := range s.Users {
		id := strings.TrimSpace(u.ID)
		if id == "" {
			return fmt.Errorf("%w: users[%d].id is required", ErrInvalidSnapshot, i)
		}
		if _, exists := userIDs[id]; exists {
			return fmt.Errorf("%w: duplicate user id: %q", ErrInvalidSnapshot, id)
		}
		userIDs[id] = struct{}{}
	}

	projectIDs := map[string]struct{}{}
	for i, p := range s.Projects {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return fmt.Errorf("%w: projects[%d].id is required", ErrInvalidSnapshot, i)
		}
		if _, exists := projectIDs[id]; exists {
			return fmt.Errorf("%w: duplicate project id: %q", ErrInvalidSnapshot, id)
		}
		projectIDs[id] = struct{}{}
	}

	for i, m := range s.Members {
		if _, ok := projectIDs[strings.TrimSpace(m.ProjectID)]; !ok {
			return fmt.Errorf("%w: members[%d] references unknown project_id %q", ErrInvalidSnapshot, i, m.ProjectID)
		}
	}

	milestoneProject := map[string]string{}
	for i, m := range s.Milestones {
		id := strings.TrimSpace(m.ID)
		if id == "" {
			return fmt.Errorf("%w: milestones[%d].id is required", ErrInvalidSnapshot, i)
		}
		if _, exists := milestoneProject[id]; exists {
			return fmt.Errorf("%w: duplicate milestone id: %q", ErrInvalidSnapshot, id)
		}
		projectID := strings.TrimSpace(m.ProjectID)
		if _, ok := projectIDs[projectID]; !ok {
			return fmt.Errorf("%w: milestones[%d] references unknown project_id %q", ErrInvalidSnapshot, i, m.ProjectID)
		}
		milestoneProject[id] = projectID
	}

	taskIDs := map[string]struct{}{}
	for i, t := range s.Tasks {
		id := strings.TrimSpace(t.ID)
		if id == "" {
			return fmt.Errorf("%w: tasks[%d].id is required", ErrInvalidSnapshot, i)
		}
		if _, exists := taskIDs[id]; exists {
			return fmt.Errorf("%w: duplicate task id: %q", ErrInvalidSnapshot, id)
		}
		projectID, ok := milestoneProject[strings.TrimSpace(t.MilestoneID)]
		if !ok {
			return fmt.Errorf("%w: tasks[%d] references unknown milestone_id %q", ErrInvalidSnapshot, i, t.MilestoneID)
		}
		if pid := strings.TrimSpace(t.ProjectID); pid != "" && pid != projectID {
			return fmt.Errorf("%w: tasks[%d].project_id %q does not own milestone %q", ErrInvalidSnapshot, i, t.ProjectID, t.MilestoneID)
		}
		s.Tasks[i].ProjectID = projectID
		taskIDs[id] = struct{}{}
	}
	return nil
}

// normalize runs every row through its domain constructor rules.
func (s *Snapshot) normalize(now time.Time) error {
	for i, u := range s.Users {
		createdAt := u.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		user, err := domain.NewUser(domain.UserInput{
			ID:     u.ID,
			Name:   u.Name,
			Email:  u.Email,
			Avatar: u.Avatar,
			Role:   u.Role,
		}, createdAt)
		if err != nil {
			return fmt.Errorf("%w: users[%d]: %w", ErrInvalidSnapshot, i, err)
		}
		s.Users[i] = user
	}
	for i := range s.Projects {
		p := &s.Projects[i]
		p.ID = strings.TrimSpace(p.ID)
		if p.Status == "" {
			p.Status = domain.ProjectPlanning
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		updatedAt := p.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = now
		}
		if err := p.UpdateDetails(p.Name, p.Description, p.StartDate, p.EndDate, p.EstimatedHours, p.Status, updatedAt); err != nil {
			return fmt.Errorf("%w: projects[%d]: %w", ErrInvalidSnapshot, i, err)
		}
		p.CreatedAt = p.CreatedAt.UTC()
	}
	for i, m := range s.Members {
		member, err := domain.NewProjectMember(m, now)
		if err != nil {
			return fmt.Errorf("%w: members[%d]: %w", ErrInvalidSnapshot, i, err)
		}
		s.Members[i] = member
	}
	for i := range s.Milestones {
		m := &s.Milestones[i]
		m.ID = strings.TrimSpace(m.ID)
		m.ProjectID = strings.TrimSpace(m.ProjectID)
		if m.Position < 0 {
			return fmt.Errorf("%w: milestones[%d]: %w", ErrInvalidSnapshot, i, domain.ErrInvalidPosition)
		}
		if m.Status == "" {
			m.Status = domain.MilestoneNotStarted
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		m.CreatedAt = m.CreatedAt.UTC()
		if err := m.UpdateDetails(m.Title, m.Description, m.StartDate, m.EndDate, m.Status); err != nil {
			return fmt.Errorf("%w: milestones[%d]: %w", ErrInvalidSnapshot, i, err)
		}
	}
	for i := range s.Tasks {
		if err := s.Tasks[i].Normalize(now); err != nil {
			return fmt.Errorf("%w: tasks[%d]: %w", ErrInvalidSnapshot, i, err)
		}
	}
	return nil
}

// rollupSnapshot recomputes progress for every milestone and project in snap,
// counting tasks already stored for those projects. Callers hold the project locks.
func (s *Service) rollupSnapshot(ctx context.Context, snap *Snapshot) error {
	for _, t := range snap.Tasks {
		existing, err := s.repo.GetTask(ctx, t.ID)
		switch {
		case errors.Is(err, ErrNotFound):
			continue
		case err != nil:
			return err
		case existing.MilestoneID != t.MilestoneID:
			return fmt.Errorf("%w: task %q already belongs to milestone %q", ErrInvalidSnapshot, t.ID, existing.MilestoneID)
		}
	}

	incoming := make(map[string]domain.Task, len(snap.Tasks))
	for _, t := range snap.Tasks {
		incoming[t.ID] = t
	}
	for i := range snap.Projects {
		project := &snap.Projects[i]
		stored, err := s.repo.ListProjectTasks(ctx, project.ID)
		if err != nil {
			return err
		}
		merged := make([]domain.Task, 0, len(stored)+len(snap.Tasks))
		for _, t := range stored {
			if _, replaced := incoming[t.ID]; !replaced {
				merged = append(merged, t)
			}
		}
		for _, t := range snap.Tasks {
			if t.ProjectID == project.ID {
				merged = append(merged, t)
			}
		}
		project.Progress = domain.TasksProgress(merged)

		for j := range snap.Milestones {
			milestone := &snap.Milestones[j]
			if milestone.ProjectID != project.ID {
				continue
			}
			own := make([]domain.Task, 0)
			for _, t := range merged {
				if t.MilestoneID == milestone.ID {
					own = append(own, t)
				}
			}
			milestone.Progress = domain.TasksProgress(own)
		}
	}
	return nil
}
