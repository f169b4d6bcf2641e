package app

import (
	"context"
	"strings"
	"time"

	"github.com/evanschultz/tally/internal/domain"
)

// CreateProjectInput holds input values for create project operations.
type CreateProjectInput struct {
	Name           string
	Description    string
	StartDate      time.Time
	EndDate        time.Time
	EstimatedHours int
	Status         domain.ProjectStatus
	CreatedBy      string
}

// UpdateProjectInput holds input values for update project operations. Nil fields
// are left unchanged.
type UpdateProjectInput struct {
	ProjectID      string
	Name           *string
	Description    *string
	StartDate      *time.Time
	EndDate        *time.Time
	EstimatedHours *int
	Status         *domain.ProjectStatus
}

// CreateProject creates project.
func (s *Service) CreateProject(ctx context.Context, in CreateProjectInput) (domain.Project, error) {
	if strings.TrimSpace(in.CreatedBy) == "" {
		if actor, ok := CurrentUserFromContext(ctx); ok {
			in.CreatedBy = actor.ID
		}
	}
	project, err := domain.NewProject(domain.ProjectInput{
		ID:             s.idGen(),
		Name:           in.Name,
		Description:    in.Description,
		StartDate:      in.StartDate,
		EndDate:        in.EndDate,
		EstimatedHours: in.EstimatedHours,
		Status:         in.Status,
		CreatedBy:      in.CreatedBy,
	}, s.clock())
	if err != nil {
		return domain.Project{}, err
	}
	if err := s.repo.CreateProject(ctx, project); err != nil {
		return domain.Project{}, err
	}
	return project, nil
}

// UpdateProject updates state for the requested operation. Progress is not writable.
func (s *Service) UpdateProject(ctx context.Context, in UpdateProjectInput) (domain.Project, error) {
	projectID := strings.TrimSpace(in.ProjectID)
	if _, err := s.repo.GetProject(ctx, projectID); err != nil {
		return domain.Project{}, err
	}
	unlock := s.locks.lock(projectID)
	defer unlock()

	project, err := s.repo.GetProject(ctx, projectID)
	if err != nil {
		return domain.Project{}, err
	}
	name, description := project.Name, project.Description
	start, end := project.StartDate, project.EndDate
	hours, status := project.EstimatedHours, project.Status
	if in.Name != nil {
		name = *in.Name
	}
	if in.Description != nil {
		description = *in.Description
	}
	if in.StartDate != nil {
		start = *in.StartDate
	}
	if in.EndDate != nil {
		end = *in.EndDate
	}
	if in.EstimatedHours != nil {
		hours = *in.EstimatedHours
	}
	if in.Status != nil {
		status = *in.Status
	}
	if err := project.UpdateDetails(name, description, start, end, hours, status, s.clock()); err != nil {
		return domain.Project{}, err
	}
	if err := s.repo.UpdateProject(ctx, project); err != nil {
		return domain.Project{}, err
	}
	return project, nil
}

// GetProject returns one project.
func (s *Service) GetProject(ctx context.Context, projectID string) (domain.Project, error) {
	return s.repo.GetProject(ctx, strings.TrimSpace(projectID))
}

// ListProjects lists projects in creation order.
func (s *Service) ListProjects(ctx context.Context) ([]domain.Project, error) {
	return s.repo.ListProjects(ctx)
}

// AddProjectMember adds or replaces the membership row for a user.
func (s *Service) AddProjectMember(ctx context.Context, in domain.ProjectMember) (domain.ProjectMember, error) {
	member, err := domain.NewProjectMember(in, s.clock())
	if err != nil {
		return domain.ProjectMember{}, err
	}
	if _, err := s.repo.GetProject(ctx, member.ProjectID); err != nil {
		return domain.ProjectMember{}, err
	}
	if _, err := s.repo.GetUser(ctx, member.UserID); err != nil {
		return domain.ProjectMember{}, err
	}
	if err := s.repo.UpsertProjectMember(ctx, member); err != nil {
		return domain.ProjectMember{}, err
	}
	return member, nil
}

// RemoveProjectMember deletes one membership row.
func (s *Service) RemoveProjectMember(ctx context.Context, projectID, userID string) error {
	return s.repo.DeleteProjectMember(ctx, strings.TrimSpace(projectID), strings.TrimSpace(userID))
}

// ListProjectMembers lists members of one project in join order.
func (s *Service) ListProjectMembers(ctx context.Context, projectID string) ([]domain.ProjectMember, error) {
	projectID = strings.TrimSpace(projectID)
	if _, err := s.repo.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.repo.ListProjectMembers(ctx, projectID)
}

// CreateMilestoneInput holds input values for create milestone operations.
type CreateMilestoneInput struct {
	ProjectID   string
	Title       string
	Description string
	StartDate   time.Time
	EndDate     time.Time
	Status      domain.MilestoneStatus
}

// UpdateMilestoneInput holds input values for update milestone operations. Nil fields
// are left unchanged.
type UpdateMilestoneInput struct {
	MilestoneID string
	Title       *string
	Description *string
	StartDate   *time.Time
	EndDate     *time.Time
	Status      *domain.MilestoneStatus
}

// CreateMilestone appends a milestone to a project.
func (s *Service) CreateMilestone(ctx context.Context, in CreateMilestoneInput) (domain.Milestone, error) {
	projectID := strings.TrimSpace(in.ProjectID)
	if _, err := s.repo.GetProject(ctx, projectID); err != nil {
		return domain.Milestone{}, err
	}
	unlock := s.locks.lock(projectID)
	defer unlock()

	milestones, err := s.repo.ListMilestones(ctx, projectID)
	if err != nil {
		return domain.Milestone{}, err
	}
	position := 0
	for _, m := range milestones {
		if m.Position >= position {
			position = m.Position + 1
		}
	}
	milestone, err := domain.NewMilestone(domain.MilestoneInput{
		ID:          s.idGen(),
		ProjectID:   projectID,
		Title:       in.Title,
		Description: in.Description,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Status:      in.Status,
		Position:    position,
	}, s.clock())
	if err != nil {
		return domain.Milestone{}, err
	}
	if err := s.repo.CreateMilestone(ctx, milestone); err != nil {
		return domain.Milestone{}, err
	}
	return milestone, nil
}

// UpdateMilestone updates state for the requested operation. Progress is not writable.
func (s *Service) UpdateMilestone(ctx context.Context, in UpdateMilestoneInput) (domain.Milestone, error) {
	milestoneID := strings.TrimSpace(in.MilestoneID)
	milestone, err := s.repo.GetMilestone(ctx, milestoneID)
	if err != nil {
		return domain.Milestone{}, err
	}
	unlock := s.locks.lock(milestone.ProjectID)
	defer unlock()

	milestone, err = s.repo.GetMilestone(ctx, milestoneID)
	if err != nil {
		return domain.Milestone{}, err
	}
	title, description := milestone.Title, milestone.Description
	start, end, status := milestone.StartDate, milestone.EndDate, milestone.Status
	if in.Title != nil {
		title = *in.Title
	}
	if in.Description != nil {
		description = *in.Description
	}
	if in.StartDate != nil {
		start = *in.StartDate
	}
	if in.EndDate != nil {
		end = *in.EndDate
	}
	if in.Status != nil {
		status = *in.Status
	}
	if err := milestone.UpdateDetails(title, description, start, end, status); err != nil {
		return domain.Milestone{}, err
	}
	if err := s.repo.UpdateMilestone(ctx, milestone); err != nil {
		return domain.Milestone{}, err
	}
	return milestone, nil
}

// GetMilestone returns one milestone.
func (s *Service) GetMilestone(ctx context.Context, milestoneID string) (domain.Milestone, error) {
	return s.repo.GetMilestone(ctx, strings.TrimSpace(milestoneID))
}

// ListMilestones lists milestones of a project in position order.
func (s *Service) ListMilestones(ctx context.Context, projectID string) ([]domain.Milestone, error) {
	projectID = strings.TrimSpace(projectID)
	if _, err := s.repo.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.repo.ListMilestones(ctx, projectID)
}
