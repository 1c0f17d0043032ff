package main

import (
	"context"
	"fmt"
	"os"

	"github.com/frenetico9/Navalha.Digital/internal/api"
	"github.com/frenetico9/Navalha.Digital/internal/database"
	"github.com/frenetico9/Navalha.Digital/internal/models"
	"github.com/frenetico9/Navalha.Digital/internal/service"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

// seedFile описывает демо-данные для пустой базы
type seedFile struct {
	Shops   []seedShop   `yaml:"shops"`
	Clients []seedClient `yaml:"clients"`
}

type seedShop struct {
	Name            string                `yaml:"name"`
	ResponsibleName string                `yaml:"responsible_name"`
	Email           string                `yaml:"email"`
	Phone           string                `yaml:"phone"`
	Address         string                `yaml:"address"`
	Description     string                `yaml:"description"`
	Plan            string                `yaml:"plan"`
	TelegramChatID  int64                 `yaml:"telegram_chat_id"`
	WorkingHours    []models.WorkingHours `yaml:"working_hours"`
	Services        []seedService         `yaml:"services"`
	Staff           []seedStaff           `yaml:"staff"`
}

type seedService struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Price       float64 `yaml:"price"`
	Duration    int     `yaml:"duration"`
}

type seedStaff struct {
	Name     string              `yaml:"name"`
	Services []string            `yaml:"services"`
	Hours    []models.StaffHours `yaml:"hours"`
}

type seedClient struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
	Phone string `yaml:"phone"`
}

func loadSeed(path string) (*seedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	return &seed, nil
}

// seedFromFile fills an empty database; a database with any shop is left as is.
func seedFromFile(ctx context.Context, path string, db *database.DB, svc api.Services, logger *zerolog.Logger) error {
	n, err := db.CountShops(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		logger.Debug().Int("shops", n).Msg("database not empty, skipping seed")
		return nil
	}

	seed, err := loadSeed(path)
	if err != nil {
		return err
	}
	for i := range seed.Shops {
		if err := applyShop(ctx, svc, &seed.Shops[i]); err != nil {
			return fmt.Errorf("shop %q: %w", seed.Shops[i].Name, err)
		}
	}
	for _, c := range seed.Clients {
		if _, err := svc.Clients.SignupClient(ctx, service.ClientSignup{Name: c.Name, Email: c.Email, Phone: c.Phone}); err != nil {
			return fmt.Errorf("client %q: %w", c.Email, err)
		}
	}

	logger.Info().Int("shops", len(seed.Shops)).Int("clients", len(seed.Clients)).Msg("database seeded")
	return nil
}

func applyShop(ctx context.Context, svc api.Services, s *seedShop) error {
	shop, err := svc.Shops.SignupShop(ctx, service.ShopSignup{
		Name:            s.Name,
		ResponsibleName: s.ResponsibleName,
		Email:           s.Email,
		Phone:           s.Phone,
		Address:         s.Address,
	})
	if err != nil {
		return err
	}

	upd := service.ShopUpdate{WorkingHours: s.WorkingHours}
	if s.Description != "" {
		upd.Description = &s.Description
	}
	if s.TelegramChatID != 0 {
		upd.TelegramChatID = &s.TelegramChatID
	}
	if _, err := svc.Shops.UpdateShop(ctx, shop.ID, upd); err != nil {
		return err
	}

	// План меняем до мастеров: лимит мастеров зависит от плана
	if s.Plan != "" && s.Plan != models.PlanFree {
		if _, err := svc.Shops.ChangePlan(ctx, shop.ID, s.Plan); err != nil {
			return err
		}
	}

	serviceIDs := make(map[string]string, len(s.Services))
	for _, in := range s.Services {
		created, err := svc.Catalog.AddService(ctx, shop.ID, service.ServiceInput{
			Name:        in.Name,
			Description: in.Description,
			Price:       in.Price,
			Duration:    in.Duration,
		})
		if err != nil {
			return fmt.Errorf("service %q: %w", in.Name, err)
		}
		serviceIDs[in.Name] = created.ID
	}

	for _, st := range s.Staff {
		ids := make([]string, 0, len(st.Services))
		for _, name := range st.Services {
			id, ok := serviceIDs[name]
			if !ok {
				return fmt.Errorf("staff %q: unknown service %q", st.Name, name)
			}
			ids = append(ids, id)
		}
		if _, err := svc.Catalog.AddStaff(ctx, shop.ID, service.StaffInput{Name: st.Name, Hours: st.Hours, ServiceIDs: ids}); err != nil {
			return fmt.Errorf("staff %q: %w", st.Name, err)
		}
	}
	return nil
}
