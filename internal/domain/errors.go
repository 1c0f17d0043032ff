package domain

import "errors"

var (
	ErrNotFound               = errors.New("not found")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrEmailTaken             = errors.New("email already in use")
	ErrSlotUnavailable        = errors.New("time slot is not available")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrPlanLimit              = errors.New("subscription plan limit reached")
	ErrForbidden              = errors.New("forbidden")
	ErrReviewExists           = errors.New("review already exists for appointment")
	ErrPastDate               = errors.New("date is in the past")
	ErrDateTooFar             = errors.New("date is beyond the booking horizon")
	ErrValidation             = errors.New("validation failed")
	ErrInvalidQuery           = errors.New("invalid availability query")
	ErrRateLimited            = errors.New("too many requests")
)
