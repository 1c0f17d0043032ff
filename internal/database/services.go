package database

import (
	"context"
	"fmt"
	"time"

	"github.com/frenetico9/Navalha.Digital/internal/models"
)

const serviceColumns = `id, shop_id, name, description, price, duration, is_active, created_at, updated_at`

func scanService(row rowScanner) (*models.Service, error) {
	var s models.Service
	err := row.Scan(&s.ID, &s.ShopID, &s.Name, &s.Description, &s.Price, &s.Duration, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (db *DB) CreateService(ctx context.Context, svc *models.Service) error {
	now := time.Now()
	_, err := db.ExecContext(ctx,
		`INSERT INTO services (`+serviceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		svc.ID, svc.ShopID, svc.Name, svc.Description, svc.Price, svc.Duration, svc.IsActive, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	svc.CreatedAt = now
	svc.UpdatedAt = now
	return nil
}

func (db *DB) GetService(ctx context.Context, id string) (*models.Service, error) {
	s, err := scanService(db.QueryRowContext(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "service")
	}
	return s, nil
}

func (db *DB) UpdateService(ctx context.Context, svc *models.Service) error {
	now := time.Now()
	result, err := db.ExecContext(ctx,
		`UPDATE services SET name = ?, description = ?, price = ?, duration = ?, is_active = ?, updated_at = ? WHERE id = ?`,
		svc.Name, svc.Description, svc.Price, svc.Duration, svc.IsActive, now, svc.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update service: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("service %s: %w", svc.ID, ErrNotFound)
	}
	svc.UpdatedAt = now
	return nil
}

// ListServices returns active and inactive services of the shop.
func (db *DB) ListServices(ctx context.Context, shopID string) ([]*models.Service, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+serviceColumns+` FROM services WHERE shop_id = ? ORDER BY name ASC`, shopID)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	defer rows.Close()

	var out []*models.Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
