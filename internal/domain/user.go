package domain

import (
	"slices"
	"strings"
	"time"
)

// Role identifies what a user may do across the tracker.
type Role string

// Role values.
const (
	RoleAdmin          Role = "admin"
	RoleProjectManager Role = "project-manager"
	RoleDeveloper      Role = "developer"
	RoleViewer         Role = "viewer"
)

var validRoles = []Role{RoleAdmin, RoleProjectManager, RoleDeveloper, RoleViewer}

// Roles returns every supported role in display order.
func Roles() []Role {
	return append([]Role(nil), validRoles...)
}

// NormalizeRole canonicalizes role aliases.
func NormalizeRole(role Role) Role {
	switch strings.TrimSpace(strings.ToLower(string(role))) {
	case "admin", "administrator":
		return RoleAdmin
	case "project-manager", "project_manager", "pm", "manager":
		return RoleProjectManager
	case "developer", "dev":
		return RoleDeveloper
	case "viewer", "read-only":
		return RoleViewer
	default:
		return Role(strings.TrimSpace(strings.ToLower(string(role))))
	}
}

// IsValidRole reports whether role is supported after normalization.
func IsValidRole(role Role) bool {
	return slices.Contains(validRoles, NormalizeRole(role))
}

// CanManage reports whether the role may create, edit, or delete projects and tasks.
func (r Role) CanManage() bool {
	switch NormalizeRole(r) {
	case RoleAdmin, RoleProjectManager:
		return true
	default:
		return false
	}
}

// User is one tracker identity.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Avatar    string    `json:"avatar,omitempty"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// UserInput holds user fields supplied by callers.
type UserInput struct {
	ID     string
	Name   string
	Email  string
	Avatar string
	Role   Role
}

// NewUser validates input and constructs a user.
func NewUser(in UserInput, now time.Time) (User, error) {
	in.ID = strings.TrimSpace(in.ID)
	if in.ID == "" {
		return User{}, ErrInvalidID
	}
	u := User{ID: in.ID, CreatedAt: now.UTC()}
	if err := u.UpdateDetails(in.Name, in.Email, in.Avatar, in.Role); err != nil {
		return User{}, err
	}
	return u, nil
}

// UpdateDetails replaces the mutable identity fields.
func (u *User) UpdateDetails(name, email, avatar string, role Role) error {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(strings.ToLower(email))
	if name == "" {
		return ErrInvalidName
	}
	if !isPlausibleEmail(email) {
		return ErrInvalidEmail
	}
	if role == "" {
		role = RoleDeveloper
	}
	role = NormalizeRole(role)
	if !slices.Contains(validRoles, role) {
		return ErrInvalidRole
	}
	u.Name = name
	u.Email = email
	u.Avatar = strings.TrimSpace(avatar)
	u.Role = role
	return nil
}

// isPlausibleEmail does a presence check only; forms validate the rest.
func isPlausibleEmail(email string) bool {
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t\n")
}
