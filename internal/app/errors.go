package app

import (
	"errors"
	"fmt"
)

// ErrNotFound and related errors describe validation and runtime failures.
var (
	ErrNotFound         = errors.New("not found")
	ErrAssigneeNotFound = fmt.Errorf("assignee %w", ErrNotFound)
	ErrSelfDelete       = errors.New("cannot delete the current user")
	ErrInvalidSnapshot  = errors.New("invalid snapshot")
)
