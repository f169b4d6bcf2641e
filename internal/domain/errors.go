package domain

import "errors"

var (
	ErrInvalidID              = errors.New("invalid id")
	ErrInvalidName            = errors.New("invalid name")
	ErrInvalidEmail           = errors.New("invalid email")
	ErrInvalidRole            = errors.New("invalid role")
	ErrInvalidTitle           = errors.New("invalid title")
	ErrInvalidDescription     = errors.New("invalid description")
	ErrInvalidPriority        = errors.New("invalid priority")
	ErrInvalidTaskStatus      = errors.New("invalid task status")
	ErrInvalidUserTaskStatus  = errors.New("invalid user task status")
	ErrInvalidProjectStatus   = errors.New("invalid project status")
	ErrInvalidMilestoneStatus = errors.New("invalid milestone status")
	ErrInvalidDateRange       = errors.New("invalid date range")
	ErrInvalidEstimate        = errors.New("invalid estimate")
	ErrInvalidPosition        = errors.New("invalid position")
)
