package database

import "github.com/frenetico9/Navalha.Digital/internal/domain"

var (
	ErrNotFound               = domain.ErrNotFound
	ErrConcurrentModification = domain.ErrConcurrentModification
	ErrEmailTaken             = domain.ErrEmailTaken
	ErrSlotUnavailable        = domain.ErrSlotUnavailable
	ErrReviewExists           = domain.ErrReviewExists
)
