package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/frenetico9/Navalha.Digital/internal/models"
)

const shopColumns = `id, name, responsible_name, email, phone, address, description,
    logo_url, cover_image_url, working_hours, telegram_chat_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanShop(row rowScanner) (*models.Shop, error) {
	var s models.Shop
	var hours string
	if err := row.Scan(
		&s.ID, &s.Name, &s.ResponsibleName, &s.Email, &s.Phone, &s.Address, &s.Description,
		&s.LogoURL, &s.CoverImageURL, &hours, &s.TelegramChatID, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(hours), &s.WorkingHours); err != nil {
		return nil, fmt.Errorf("decode working hours of shop %s: %w", s.ID, err)
	}
	return &s, nil
}

func (db *DB) CreateShop(ctx context.Context, shop *models.Shop) error {
	return createShop(ctx, db, shop)
}

func createShop(ctx context.Context, ex execer, shop *models.Shop) error {
	hours, err := encodeJSON(shop.WorkingHours)
	if err != nil {
		return fmt.Errorf("encode working hours: %w", err)
	}
	now := time.Now()
	_, err = ex.ExecContext(ctx,
		`INSERT INTO shops (`+shopColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		shop.ID, shop.Name, shop.ResponsibleName, shop.Email, shop.Phone, shop.Address, shop.Description,
		shop.LogoURL, shop.CoverImageURL, hours, shop.TelegramChatID, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create shop: %w", err)
	}
	shop.CreatedAt = now
	shop.UpdatedAt = now
	return nil
}

func (db *DB) GetShop(ctx context.Context, id string) (*models.Shop, error) {
	shop, err := scanShop(db.QueryRowContext(ctx, `SELECT `+shopColumns+` FROM shops WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "shop")
	}
	return shop, nil
}

func (db *DB) UpdateShop(ctx context.Context, shop *models.Shop) error {
	return updateShop(ctx, db, shop)
}

func updateShop(ctx context.Context, ex execer, shop *models.Shop) error {
	hours, err := encodeJSON(shop.WorkingHours)
	if err != nil {
		return fmt.Errorf("encode working hours: %w", err)
	}
	now := time.Now()
	result, err := ex.ExecContext(ctx,
		`UPDATE shops SET name = ?, responsible_name = ?, email = ?, phone = ?, address = ?,
                description = ?, logo_url = ?, cover_image_url = ?, working_hours = ?,
                telegram_chat_id = ?, updated_at = ?
         WHERE id = ?`,
		shop.Name, shop.ResponsibleName, shop.Email, shop.Phone, shop.Address,
		shop.Description, shop.LogoURL, shop.CoverImageURL, hours,
		shop.TelegramChatID, now, shop.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update shop: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("shop %s: %w", shop.ID, ErrNotFound)
	}
	shop.UpdatedAt = now
	return nil
}

// UpdateShopWithOwner updates the shop profile and the owning admin user atomically.
func (db *DB) UpdateShopWithOwner(ctx context.Context, shop *models.Shop, owner *models.User) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if err := updateShop(ctx, tx, shop); err != nil {
			return err
		}
		if owner == nil {
			return nil
		}
		return updateUser(ctx, tx, owner)
	})
}

func (db *DB) ListShops(ctx context.Context) ([]*models.Shop, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+shopColumns+` FROM shops ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list shops: %w", err)
	}
	defer rows.Close()

	var shops []*models.Shop
	for rows.Next() {
		shop, err := scanShop(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shop: %w", err)
		}
		shops = append(shops, shop)
	}
	return shops, rows.Err()
}

func (db *DB) CountShops(ctx context.Context) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM shops`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count shops: %w", err)
	}
	return n, nil
}

// SignupShop creates the admin user, the shop and its free subscription in one transaction.
func (db *DB) SignupShop(ctx context.Context, owner *models.User, shop *models.Shop, sub *models.Subscription) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if err := createUser(ctx, tx, owner); err != nil {
			return err
		}
		if err := createShop(ctx, tx, shop); err != nil {
			return err
		}
		return upsertSubscription(ctx, tx, sub)
	})
}

func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
