package app

import (
	"context"
	"strings"

	"github.com/evanschultz/tally/internal/domain"
)

// CreateUserInput holds input values for create user operations.
type CreateUserInput struct {
	Name   string
	Email  string
	Avatar string
	Role   domain.Role
}

// UpdateUserInput holds input values for update user operations. Empty fields keep
// their current value.
type UpdateUserInput struct {
	UserID string
	Name   string
	Email  string
	Avatar string
	Role   domain.Role
}

// CreateUser creates user.
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (domain.User, error) {
	if strings.TrimSpace(string(in.Role)) == "" {
		in.Role = s.defaultRole
	}
	user, err := domain.NewUser(domain.UserInput{
		ID:     s.idGen(),
		Name:   in.Name,
		Email:  in.Email,
		Avatar: in.Avatar,
		Role:   in.Role,
	}, s.clock())
	if err != nil {
		return domain.User{}, err
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// UpdateUser merges the provided fields into an existing user.
func (s *Service) UpdateUser(ctx context.Context, in UpdateUserInput) (domain.User, error) {
	user, err := s.repo.GetUser(ctx, strings.TrimSpace(in.UserID))
	if err != nil {
		return domain.User{}, err
	}
	name, email, avatar, role := user.Name, user.Email, user.Avatar, user.Role
	if strings.TrimSpace(in.Name) != "" {
		name = in.Name
	}
	if strings.TrimSpace(in.Email) != "" {
		email = in.Email
	}
	if strings.TrimSpace(in.Avatar) != "" {
		avatar = in.Avatar
	}
	if strings.TrimSpace(string(in.Role)) != "" {
		role = in.Role
	}
	if err := user.UpdateDetails(name, email, avatar, role); err != nil {
		return domain.User{}, err
	}
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// DeleteUser removes a user. Task assignments and memberships that reference the
// user are left in place.
func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if actor, ok := CurrentUserFromContext(ctx); ok && actor.ID == userID {
		return ErrSelfDelete
	}
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return err
	}
	return s.repo.DeleteUser(ctx, userID)
}

// GetUser returns one user.
func (s *Service) GetUser(ctx context.Context, userID string) (domain.User, error) {
	return s.repo.GetUser(ctx, strings.TrimSpace(userID))
}

// ListUsers lists users in creation order.
func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.repo.ListUsers(ctx)
}
