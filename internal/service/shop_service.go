package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/frenetico9/Navalha.Digital/internal/domain"
	"github.com/frenetico9/Navalha.Digital/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type ShopService struct {
	repo   domain.Repository
	logger *zerolog.Logger
	now    func() time.Time
}

func NewShopService(repo domain.Repository, logger *zerolog.Logger) *ShopService {
	return &ShopService{repo: repo, logger: logger, now: time.Now}
}

type ShopSignup struct {
	Name            string `json:"name"`
	ResponsibleName string `json:"responsible_name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Address         string `json:"address"`
}

// ShopUpdate is a partial profile update; nil fields are left unchanged.
type ShopUpdate struct {
	Name            *string               `json:"name"`
	ResponsibleName *string               `json:"responsible_name"`
	Email           *string               `json:"email"`
	Phone           *string               `json:"phone"`
	Address         *string               `json:"address"`
	Description     *string               `json:"description"`
	LogoURL         *string               `json:"logo_url"`
	CoverImageURL   *string               `json:"cover_image_url"`
	WorkingHours    []models.WorkingHours `json:"working_hours"`
	TelegramChatID  *int64                `json:"telegram_chat_id"`
}

// SignupShop creates the admin user, the shop profile with default hours and a free subscription.
func (s *ShopService) SignupShop(ctx context.Context, req ShopSignup) (*models.Shop, error) {
	if err := required(map[string]string{
		"name": req.Name, "responsible_name": req.ResponsibleName, "email": req.Email,
	}); err != nil {
		return nil, err
	}
	if !strings.Contains(req.Email, "@") {
		return nil, invalid("email %q is malformed", req.Email)
	}

	id := uuid.NewString()
	owner := &models.User{
		ID:    id,
		Email: strings.TrimSpace(req.Email),
		Type:  models.UserTypeAdmin,
		Name:  req.ResponsibleName,
		Phone: req.Phone,
	}
	shop := &models.Shop{
		ID:              id,
		Name:            req.Name,
		ResponsibleName: req.ResponsibleName,
		Email:           owner.Email,
		Phone:           req.Phone,
		Address:         req.Address,
		WorkingHours:    models.DefaultWorkingHours(),
	}
	sub := &models.Subscription{
		ShopID:    id,
		PlanID:    models.PlanFree,
		Status:    models.SubscriptionActive,
		StartDate: s.now(),
	}

	if err := s.repo.SignupShop(ctx, owner, shop, sub); err != nil {
		return nil, err
	}

	s.logger.Info().Str("shop_id", id).Str("name", shop.Name).Msg("shop signed up")
	return shop, nil
}

func (s *ShopService) GetShop(ctx context.Context, id string) (*models.Shop, error) {
	return s.repo.GetShop(ctx, id)
}

// UpdateShop applies the partial update and mirrors contact fields into the owner user.
func (s *ShopService) UpdateShop(ctx context.Context, id string, upd ShopUpdate) (*models.Shop, error) {
	shop, err := s.repo.GetShop(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.WorkingHours != nil {
		if err := models.ValidateWorkingHours(upd.WorkingHours); err != nil {
			return nil, invalid("working_hours: %v", err)
		}
		sorted := append([]models.WorkingHours(nil), upd.WorkingHours...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].DayOfWeek < sorted[j].DayOfWeek })
		shop.WorkingHours = sorted
	}
	if upd.Name != nil {
		if strings.TrimSpace(*upd.Name) == "" {
			return nil, invalid("name must not be empty")
		}
		shop.Name = *upd.Name
	}
	if upd.Email != nil && !strings.Contains(*upd.Email, "@") {
		return nil, invalid("email %q is malformed", *upd.Email)
	}
	setString(&shop.ResponsibleName, upd.ResponsibleName)
	setString(&shop.Email, upd.Email)
	setString(&shop.Phone, upd.Phone)
	setString(&shop.Address, upd.Address)
	setString(&shop.Description, upd.Description)
	setString(&shop.LogoURL, upd.LogoURL)
	setString(&shop.CoverImageURL, upd.CoverImageURL)
	if upd.TelegramChatID != nil {
		shop.TelegramChatID = *upd.TelegramChatID
	}

	owner, err := s.repo.GetUserByID(ctx, id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		owner = nil
	case err != nil:
		return nil, err
	default:
		setString(&owner.Name, upd.ResponsibleName)
		setString(&owner.Email, upd.Email)
		setString(&owner.Phone, upd.Phone)
	}

	if err := s.repo.UpdateShopWithOwner(ctx, shop, owner); err != nil {
		return nil, err
	}
	return shop, nil
}

// SearchShops lists every shop as a search card, PRO first, then by average rating.
func (s *ShopService) SearchShops(ctx context.Context) ([]*models.ShopSearchResult, error) {
	shops, err := s.repo.ListShops(ctx)
	if err != nil {
		return nil, err
	}
	ratings, err := s.repo.GetShopRatings(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]*models.ShopSearchResult, 0, len(shops))
	for _, shop := range shops {
		services, err := s.repo.ListServices(ctx, shop.ID)
		if err != nil {
			return nil, err
		}
		sample := make([]models.ServiceSummary, 0, models.SampleServicesLimit)
		for _, svc := range services {
			if !svc.IsActive {
				continue
			}
			sample = append(sample, models.ServiceSummary{ID: svc.ID, Name: svc.Name, Price: svc.Price})
			if len(sample) == models.SampleServicesLimit {
				break
			}
		}

		tier := models.PlanFree
		sub, err := s.repo.GetSubscription(ctx, shop.ID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		if sub != nil {
			tier = sub.PlanID
		}

		rating := ratings[shop.ID]
		results = append(results, &models.ShopSearchResult{
			Shop:             *shop,
			AverageRating:    rating.Average,
			ReviewCount:      rating.Count,
			SampleServices:   sample,
			SubscriptionTier: tier,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		iPro := results[i].SubscriptionTier == models.PlanPro
		jPro := results[j].SubscriptionTier == models.PlanPro
		if iPro != jPro {
			return iPro
		}
		return results[i].AverageRating > results[j].AverageRating
	})
	return results, nil
}

func (s *ShopService) GetSubscription(ctx context.Context, shopID string) (*models.Subscription, error) {
	return s.repo.GetSubscription(ctx, shopID)
}

// ChangePlan activates the plan immediately; paid plans bill again in one month.
func (s *ShopService) ChangePlan(ctx context.Context, shopID, planID string) (*models.Subscription, error) {
	plan, ok := models.PlanByID(planID)
	if !ok {
		return nil, invalid("unknown plan %q", planID)
	}
	if _, err := s.repo.GetShop(ctx, shopID); err != nil {
		return nil, err
	}

	now := s.now()
	sub := &models.Subscription{
		ShopID:    shopID,
		PlanID:    plan.ID,
		Status:    models.SubscriptionActive,
		StartDate: now,
	}
	if plan.Price > 0 {
		next := now.AddDate(0, 1, 0)
		sub.NextBillingDate = &next
	}
	if err := s.repo.UpsertSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("change plan: %w", err)
	}

	s.logger.Info().Str("shop_id", shopID).Str("plan", plan.ID).Msg("subscription plan changed")
	return sub, nil
}

func (s *ShopService) Plans() []models.Plan {
	return models.Plans()
}

// planFor resolves the shop's effective plan.
func planFor(ctx context.Context, repo domain.Repository, shopID string) (models.Plan, error) {
	sub, err := repo.GetSubscription(ctx, shopID)
	if errors.Is(err, domain.ErrNotFound) {
		return models.PlanFor(nil), nil
	}
	if err != nil {
		return models.Plan{}, err
	}
	return models.PlanFor(sub), nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
