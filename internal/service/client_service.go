package service

import (
	"context"
	"strings"

	"github.com/frenetico9/Navalha.Digital/internal/domain"
	"github.com/frenetico9/Navalha.Digital/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type ClientService struct {
	repo   domain.Repository
	logger *zerolog.Logger
}

func NewClientService(repo domain.Repository, logger *zerolog.Logger) *ClientService {
	return &ClientService{repo: repo, logger: logger}
}

type ClientSignup struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type ClientUpdate struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Phone *string `json:"phone"`
}

func (s *ClientService) SignupClient(ctx context.Context, req ClientSignup) (*models.User, error) {
	if err := required(map[string]string{"name": req.Name, "email": req.Email}); err != nil {
		return nil, err
	}
	if !strings.Contains(req.Email, "@") {
		return nil, invalid("email %q is malformed", req.Email)
	}

	user := &models.User{
		ID:    uuid.NewString(),
		Email: strings.TrimSpace(req.Email),
		Type:  models.UserTypeClient,
		Name:  req.Name,
		Phone: req.Phone,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info().Str("client_id", user.ID).Msg("client signed up")
	return user, nil
}

func (s *ClientService) GetClient(ctx context.Context, id string) (*models.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

func (s *ClientService) UpdateClient(ctx context.Context, id string, upd ClientUpdate) (*models.User, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		return nil, invalid("name must not be empty")
	}
	if upd.Email != nil && !strings.Contains(*upd.Email, "@") {
		return nil, invalid("email %q is malformed", *upd.Email)
	}
	setString(&user.Name, upd.Name)
	setString(&user.Email, upd.Email)
	setString(&user.Phone, upd.Phone)

	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ClientsForShop returns distinct clients who have booked at the shop.
func (s *ClientService) ClientsForShop(ctx context.Context, shopID string) ([]*models.User, error) {
	if _, err := s.repo.GetShop(ctx, shopID); err != nil {
		return nil, err
	}
	return s.repo.ListClientsForShop(ctx, shopID)
}
