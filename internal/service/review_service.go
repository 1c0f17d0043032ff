package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/frenetico9/Navalha.Digital/internal/domain"
	"github.com/frenetico9/Navalha.Digital/internal/events"
	"github.com/frenetico9/Navalha.Digital/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type ReviewService struct {
	repo     domain.Repository
	eventBus domain.EventPublisher
	now      func() time.Time
	logger   *zerolog.Logger
}

func NewReviewService(repo domain.Repository, eventBus domain.EventPublisher, logger *zerolog.Logger) *ReviewService {
	return &ReviewService{repo: repo, eventBus: eventBus, now: time.Now, logger: logger}
}

type ReviewRequest struct {
	AppointmentID string `json:"appointment_id"`
	ClientID      string `json:"client_id"`
	Rating        int    `json:"rating"`
	Comment       string `json:"comment"`
}

func (s *ReviewService) ListForShop(ctx context.Context, shopID string) ([]*models.ReviewView, error) {
	if _, err := s.repo.GetShop(ctx, shopID); err != nil {
		return nil, err
	}
	return s.repo.ListReviewViews(ctx, shopID)
}

func (s *ReviewService) ForAppointment(ctx context.Context, appointmentID string) (*models.Review, error) {
	return s.repo.GetReviewByAppointment(ctx, appointmentID)
}

// AddReview rates a completed appointment; each appointment takes one review.
func (s *ReviewService) AddReview(ctx context.Context, req ReviewRequest) (*models.Review, error) {
	if err := required(map[string]string{"appointment_id": req.AppointmentID, "client_id": req.ClientID}); err != nil {
		return nil, err
	}
	if req.Rating < 1 || req.Rating > 5 {
		return nil, invalid("rating must be between 1 and 5, got %d", req.Rating)
	}

	appt, err := s.repo.GetAppointment(ctx, req.AppointmentID)
	if err != nil {
		return nil, err
	}
	if appt.ClientID != req.ClientID {
		return nil, domain.ErrForbidden
	}
	if appt.Status != models.StatusCompleted {
		return nil, invalid("only completed appointments can be reviewed")
	}
	if _, err := s.repo.GetReviewByAppointment(ctx, appt.ID); err == nil {
		return nil, domain.ErrReviewExists
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	review := &models.Review{
		ID:            uuid.NewString(),
		AppointmentID: appt.ID,
		ClientID:      appt.ClientID,
		ShopID:        appt.ShopID,
		Rating:        req.Rating,
		Comment:       strings.TrimSpace(req.Comment),
	}
	if err := s.repo.CreateReview(ctx, review); err != nil {
		return nil, err
	}

	s.logger.Info().Str("review_id", review.ID).Str("shop_id", review.ShopID).Int("rating", review.Rating).Msg("review added")
	if s.eventBus != nil {
		payload := events.ReviewEventPayload{
			ReviewID:      review.ID,
			AppointmentID: review.AppointmentID,
			ShopID:        review.ShopID,
			Rating:        review.Rating,
			Comment:       review.Comment,
		}
		if err := s.eventBus.PublishJSON(events.EventReviewAdded, payload); err != nil {
			s.logger.Error().Err(err).Str("review_id", review.ID).Msg("failed to publish event")
		}
	}
	return review, nil
}

// Reply stores the shop's answer. Only the reviewed shop may reply, and only on a plan that allows it.
func (s *ReviewService) Reply(ctx context.Context, reviewID, shopID, reply string) (*models.Review, error) {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return nil, invalid("reply required")
	}

	review, err := s.repo.GetReview(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if review.ShopID != shopID {
		return nil, domain.ErrForbidden
	}
	plan, err := planFor(ctx, s.repo, shopID)
	if err != nil {
		return nil, err
	}
	if !plan.CanReplyReviews {
		return nil, domain.ErrPlanLimit
	}

	at := s.now()
	if err := s.repo.ReplyReview(ctx, reviewID, reply, at); err != nil {
		return nil, err
	}
	review.Reply = reply
	review.ReplyAt = &at
	return review, nil
}
