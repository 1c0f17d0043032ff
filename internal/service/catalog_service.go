package service

import (
	"context"
	"errors"
	"strings"

	"github.com/frenetico9/Navalha.Digital/internal/domain"
	"github.com/frenetico9/Navalha.Digital/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CatalogService manages a shop's services and barbers.
type CatalogService struct {
	repo   domain.Repository
	logger *zerolog.Logger
}

func NewCatalogService(repo domain.Repository, logger *zerolog.Logger) *CatalogService {
	return &CatalogService{repo: repo, logger: logger}
}

type ServiceInput struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Duration    int     `json:"duration"`
	IsActive    *bool   `json:"is_active"`
}

type ServiceUpdate struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	Duration    *int     `json:"duration"`
}

type StaffInput struct {
	Name       string              `json:"name"`
	Hours      []models.StaffHours `json:"hours"`
	ServiceIDs []string            `json:"service_ids"`
}

type StaffUpdate struct {
	Name       *string             `json:"name"`
	Hours      []models.StaffHours `json:"hours"`
	ServiceIDs []string            `json:"service_ids"`
}

func (s *CatalogService) ListServices(ctx context.Context, shopID string) ([]*models.Service, error) {
	if _, err := s.repo.GetShop(ctx, shopID); err != nil {
		return nil, err
	}
	return s.repo.ListServices(ctx, shopID)
}

func (s *CatalogService) GetService(ctx context.Context, id string) (*models.Service, error) {
	return s.repo.GetService(ctx, id)
}

func (s *CatalogService) AddService(ctx context.Context, shopID string, in ServiceInput) (*models.Service, error) {
	if _, err := s.repo.GetShop(ctx, shopID); err != nil {
		return nil, err
	}
	if err := validateService(in.Name, in.Price, in.Duration); err != nil {
		return nil, err
	}

	svc := &models.Service{
		ID:          uuid.NewString(),
		ShopID:      shopID,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Price:       in.Price,
		Duration:    in.Duration,
		IsActive:    in.IsActive == nil || *in.IsActive,
	}
	if err := s.repo.CreateService(ctx, svc); err != nil {
		return nil, err
	}

	s.logger.Debug().Str("shop_id", shopID).Str("service_id", svc.ID).Msg("service added")
	return svc, nil
}

func (s *CatalogService) UpdateService(ctx context.Context, id string, upd ServiceUpdate) (*models.Service, error) {
	svc, err := s.repo.GetService(ctx, id)
	if err != nil {
		return nil, err
	}
	setString(&svc.Name, upd.Name)
	setString(&svc.Description, upd.Description)
	if upd.Price != nil {
		svc.Price = *upd.Price
	}
	if upd.Duration != nil {
		svc.Duration = *upd.Duration
	}
	if err := validateService(svc.Name, svc.Price, svc.Duration); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateService(ctx, svc); err != nil {
		return nil, err
	}
	return svc, nil
}

// SetServiceActive hides or re-offers a service without deleting its history.
func (s *CatalogService) SetServiceActive(ctx context.Context, id string, active bool) (*models.Service, error) {
	svc, err := s.repo.GetService(ctx, id)
	if err != nil {
		return nil, err
	}
	if svc.IsActive == active {
		return svc, nil
	}
	svc.IsActive = active
	if err := s.repo.UpdateService(ctx, svc); err != nil {
		return nil, err
	}
	return svc, nil
}

func validateService(name string, price float64, duration int) error {
	if strings.TrimSpace(name) == "" {
		return invalid("name required")
	}
	if duration <= 0 {
		return invalid("duration must be positive, got %d", duration)
	}
	if duration > models.MaxServiceDuration {
		return invalid("duration must not exceed %d minutes, got %d", models.MaxServiceDuration, duration)
	}
	if price < 0 {
		return invalid("price must not be negative")
	}
	return nil
}

func (s *CatalogService) ListStaff(ctx context.Context, shopID string) ([]*models.Staff, error) {
	if _, err := s.repo.GetShop(ctx, shopID); err != nil {
		return nil, err
	}
	return s.repo.ListStaff(ctx, shopID)
}

// StaffForService lists the barbers of the shop assigned to the service.
func (s *CatalogService) StaffForService(ctx context.Context, shopID, serviceID string) ([]*models.Staff, error) {
	staff, err := s.ListStaff(ctx, shopID)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Staff, 0, len(staff))
	for _, member := range staff {
		if member.Performs(serviceID) {
			out = append(out, member)
		}
	}
	return out, nil
}

func (s *CatalogService) AddStaff(ctx context.Context, shopID string, in StaffInput) (*models.Staff, error) {
	if _, err := s.repo.GetShop(ctx, shopID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, invalid("name required")
	}
	if err := models.ValidateStaffHours(in.Hours); err != nil {
		return nil, invalid("hours: %v", err)
	}
	if err := s.checkServicesBelong(ctx, shopID, in.ServiceIDs); err != nil {
		return nil, err
	}

	plan, err := planFor(ctx, s.repo, shopID)
	if err != nil {
		return nil, err
	}
	if plan.StaffLimit > 0 {
		count, err := s.repo.CountStaff(ctx, shopID)
		if err != nil {
			return nil, err
		}
		if count >= plan.StaffLimit {
			return nil, domain.ErrPlanLimit
		}
	}

	staff := &models.Staff{
		ID:         uuid.NewString(),
		ShopID:     shopID,
		Name:       strings.TrimSpace(in.Name),
		Hours:      in.Hours,
		ServiceIDs: in.ServiceIDs,
	}
	if err := s.repo.CreateStaff(ctx, staff); err != nil {
		return nil, err
	}

	s.logger.Debug().Str("shop_id", shopID).Str("staff_id", staff.ID).Msg("staff added")
	return staff, nil
}

func (s *CatalogService) UpdateStaff(ctx context.Context, id string, upd StaffUpdate) (*models.Staff, error) {
	staff, err := s.repo.GetStaff(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		if strings.TrimSpace(*upd.Name) == "" {
			return nil, invalid("name must not be empty")
		}
		staff.Name = *upd.Name
	}
	if upd.Hours != nil {
		if err := models.ValidateStaffHours(upd.Hours); err != nil {
			return nil, invalid("hours: %v", err)
		}
		staff.Hours = upd.Hours
	}
	if upd.ServiceIDs != nil {
		if err := s.checkServicesBelong(ctx, staff.ShopID, upd.ServiceIDs); err != nil {
			return nil, err
		}
		staff.ServiceIDs = upd.ServiceIDs
	}
	if err := s.repo.UpdateStaff(ctx, staff); err != nil {
		return nil, err
	}
	return staff, nil
}

// DeleteStaff removes the barber; their appointments stay and fall back to "any barber".
func (s *CatalogService) DeleteStaff(ctx context.Context, id string) error {
	if err := s.repo.DeleteStaff(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("staff_id", id).Msg("staff deleted")
	return nil
}

func (s *CatalogService) checkServicesBelong(ctx context.Context, shopID string, ids []string) error {
	for _, id := range ids {
		svc, err := s.repo.GetService(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			return invalid("unknown service %s", id)
		}
		if err != nil {
			return err
		}
		if svc.ShopID != shopID {
			return invalid("service %s belongs to another shop", id)
		}
	}
	return nil
}
