package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/frenetico9/Navalha.Digital/internal/models"
)

const staffColumns = `id, shop_id, name, hours, service_ids, created_at, updated_at`

func scanStaff(row rowScanner) (*models.Staff, error) {
	var s models.Staff
	var hours, serviceIDs string
	if err := row.Scan(&s.ID, &s.ShopID, &s.Name, &hours, &serviceIDs, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(hours), &s.Hours); err != nil {
		return nil, fmt.Errorf("decode hours of staff %s: %w", s.ID, err)
	}
	if err := json.Unmarshal([]byte(serviceIDs), &s.ServiceIDs); err != nil {
		return nil, fmt.Errorf("decode services of staff %s: %w", s.ID, err)
	}
	return &s, nil
}

func staffJSON(s *models.Staff) (hours, serviceIDs string, err error) {
	if s.Hours == nil {
		s.Hours = []models.StaffHours{}
	}
	if s.ServiceIDs == nil {
		s.ServiceIDs = []string{}
	}
	if hours, err = encodeJSON(s.Hours); err != nil {
		return "", "", err
	}
	if serviceIDs, err = encodeJSON(s.ServiceIDs); err != nil {
		return "", "", err
	}
	return hours, serviceIDs, nil
}

func (db *DB) CreateStaff(ctx context.Context, staff *models.Staff) error {
	hours, serviceIDs, err := staffJSON(staff)
	if err != nil {
		return fmt.Errorf("encode staff: %w", err)
	}
	now := time.Now()
	_, err = db.ExecContext(ctx,
		`INSERT INTO staff (`+staffColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		staff.ID, staff.ShopID, staff.Name, hours, serviceIDs, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create staff: %w", err)
	}
	staff.CreatedAt = now
	staff.UpdatedAt = now
	return nil
}

func (db *DB) GetStaff(ctx context.Context, id string) (*models.Staff, error) {
	s, err := scanStaff(db.QueryRowContext(ctx, `SELECT `+staffColumns+` FROM staff WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "staff")
	}
	return s, nil
}

func (db *DB) UpdateStaff(ctx context.Context, staff *models.Staff) error {
	hours, serviceIDs, err := staffJSON(staff)
	if err != nil {
		return fmt.Errorf("encode staff: %w", err)
	}
	now := time.Now()
	result, err := db.ExecContext(ctx,
		`UPDATE staff SET name = ?, hours = ?, service_ids = ?, updated_at = ? WHERE id = ?`,
		staff.Name, hours, serviceIDs, now, staff.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update staff: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("staff %s: %w", staff.ID, ErrNotFound)
	}
	staff.UpdatedAt = now
	return nil
}

// DeleteStaff removes the barber and detaches them from their appointments.
func (db *DB) DeleteStaff(ctx context.Context, id string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM staff WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete staff: %w", err)
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return fmt.Errorf("staff %s: %w", id, ErrNotFound)
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE appointments SET staff_id = '', version = version + 1, updated_at = ? WHERE staff_id = ?`,
			time.Now(), id,
		)
		if err != nil {
			return fmt.Errorf("failed to detach staff from appointments: %w", err)
		}
		return nil
	})
}

func (db *DB) ListStaff(ctx context.Context, shopID string) ([]*models.Staff, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+staffColumns+` FROM staff WHERE shop_id = ? ORDER BY created_at ASC, name ASC`, shopID)
	if err != nil {
		return nil, fmt.Errorf("failed to list staff: %w", err)
	}
	defer rows.Close()

	var out []*models.Staff
	for rows.Next() {
		s, err := scanStaff(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan staff: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (db *DB) CountStaff(ctx context.Context, shopID string) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM staff WHERE shop_id = ?`, shopID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count staff: %w", err)
	}
	return n, nil
}
