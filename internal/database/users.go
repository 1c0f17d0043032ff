package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/frenetico9/Navalha.Digital/internal/models"
)

const userColumns = `id, email, type, name, phone, created_at, updated_at`

func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	return createUser(ctx, db, user)
}

func createUser(ctx context.Context, ex execer, user *models.User) error {
	now := time.Now()
	user.Email = strings.TrimSpace(user.Email)
	_, err := ex.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.Type, user.Name, user.Phone, now, now,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("user %s: %w", user.Email, ErrEmailTaken)
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return db.queryUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return db.queryUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, strings.TrimSpace(email))
}

func (db *DB) queryUser(ctx context.Context, query string, args ...interface{}) (*models.User, error) {
	var u models.User
	err := db.QueryRowContext(ctx, query, args...).Scan(
		&u.ID, &u.Email, &u.Type, &u.Name, &u.Phone, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err, "user")
	}
	return &u, nil
}

func (db *DB) UpdateUser(ctx context.Context, user *models.User) error {
	return updateUser(ctx, db, user)
}

func updateUser(ctx context.Context, ex execer, user *models.User) error {
	now := time.Now()
	result, err := ex.ExecContext(ctx,
		`UPDATE users SET email = ?, name = ?, phone = ?, updated_at = ? WHERE id = ?`,
		strings.TrimSpace(user.Email), user.Name, user.Phone, now, user.ID,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("user %s: %w", user.Email, ErrEmailTaken)
	}
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("user %s: %w", user.ID, ErrNotFound)
	}
	user.UpdatedAt = now
	return nil
}

// ListClientsForShop returns distinct clients with at least one appointment at the shop.
func (db *DB) ListClientsForShop(ctx context.Context, shopID string) ([]*models.User, error) {
	query := `SELECT ` + prefixed("u", userColumns) + `
              FROM users u
              WHERE u.id IN (SELECT DISTINCT client_id FROM appointments WHERE shop_id = ?)
              ORDER BY u.name ASC`
	rows, err := db.QueryContext(ctx, query, shopID)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Type, &u.Name, &u.Phone, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
