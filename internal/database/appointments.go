package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/frenetico9/Navalha.Digital/internal/models"
)

const appointmentColumns = `id, client_id, shop_id, service_id, staff_id, day, start_time, status, notes, created_at, updated_at, version`

func scanAppointment(row rowScanner) (*models.Appointment, error) {
	var a models.Appointment
	err := row.Scan(
		&a.ID, &a.ClientID, &a.ShopID, &a.ServiceID, &a.StaffID, &a.Date, &a.Time,
		&a.Status, &a.Notes, &a.CreatedAt, &a.UpdatedAt, &a.Version,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateAppointmentWithLock inserts the appointment after re-checking, inside the same
// transaction, that no scheduled appointment holds the same (shop, staff, day, time).
func (db *DB) CreateAppointmentWithLock(ctx context.Context, appt *models.Appointment) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		var taken int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM appointments
             WHERE shop_id = ? AND staff_id = ? AND day = ? AND start_time = ? AND status = ?`,
			appt.ShopID, appt.StaffID, appt.Date, appt.Time, models.StatusScheduled,
		).Scan(&taken)
		if err != nil {
			return fmt.Errorf("failed to check slot in tx: %w", err)
		}
		if taken > 0 {
			return ErrSlotUnavailable
		}

		now := time.Now()
		if appt.Status == "" {
			appt.Status = models.StatusScheduled
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO appointments (`+appointmentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			appt.ID, appt.ClientID, appt.ShopID, appt.ServiceID, appt.StaffID, appt.Date, appt.Time,
			appt.Status, appt.Notes, now, now, 1,
		)
		if isUniqueViolation(err) {
			return ErrSlotUnavailable
		}
		if err != nil {
			return fmt.Errorf("failed to insert appointment in tx: %w", err)
		}
		appt.CreatedAt = now
		appt.UpdatedAt = now
		appt.Version = 1
		return nil
	})
}

func (db *DB) GetAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	a, err := scanAppointment(db.QueryRowContext(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "appointment")
	}
	return a, nil
}

// UpdateAppointmentWithVersion writes mutable fields if appt.Version still matches the stored row.
func (db *DB) UpdateAppointmentWithVersion(ctx context.Context, appt *models.Appointment) error {
	now := time.Now()
	result, err := db.ExecContext(ctx,
		`UPDATE appointments
         SET service_id = ?, staff_id = ?, day = ?, start_time = ?, status = ?, notes = ?,
             version = version + 1, updated_at = ?
         WHERE id = ? AND version = ?`,
		appt.ServiceID, appt.StaffID, appt.Date, appt.Time, appt.Status, appt.Notes,
		now, appt.ID, appt.Version,
	)
	if isUniqueViolation(err) {
		return ErrSlotUnavailable
	}
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}
	if err := expectOneRow(result); err != nil {
		return err
	}
	appt.Version++
	appt.UpdatedAt = now
	return nil
}

func (db *DB) UpdateAppointmentStatusWithVersion(ctx context.Context, id string, fromVersion int64, status string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE appointments SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`,
		status, time.Now(), id, fromVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update appointment status: %w", err)
	}
	return expectOneRow(result)
}

// ListAppointmentsForDate returns every appointment of the shop on the day, cancelled included.
func (db *DB) ListAppointmentsForDate(ctx context.Context, shopID, date string) ([]*models.Appointment, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE shop_id = ? AND day = ? ORDER BY start_time ASC`,
		shopID, date,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	defer rows.Close()

	var out []*models.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountMonthlyAppointments counts non-cancelled appointments of the shop in month "YYYY-MM".
func (db *DB) CountMonthlyAppointments(ctx context.Context, shopID, month string) (int, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM appointments WHERE shop_id = ? AND day LIKE ? AND status NOT IN (?, ?)`,
		shopID, month+"-%", models.StatusCancelledByClient, models.StatusCancelledByAdmin,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count monthly appointments: %w", err)
	}
	return n, nil
}

const appointmentViewSelect = `SELECT a.id, a.client_id, a.shop_id, a.service_id, a.staff_id, a.day, a.start_time,
       a.status, a.notes, a.created_at, a.updated_at, a.version,
       COALESCE(u.name, ''), COALESCE(u.phone, ''), COALESCE(sh.name, ''),
       COALESCE(sv.name, ''), COALESCE(sv.duration, 0), COALESCE(st.name, '')
FROM appointments a
LEFT JOIN users u ON u.id = a.client_id
LEFT JOIN shops sh ON sh.id = a.shop_id
LEFT JOIN services sv ON sv.id = a.service_id
LEFT JOIN staff st ON st.id = a.staff_id`

func scanAppointmentView(row rowScanner) (*models.AppointmentView, error) {
	var v models.AppointmentView
	err := row.Scan(
		&v.ID, &v.ClientID, &v.ShopID, &v.ServiceID, &v.StaffID, &v.Date, &v.Time,
		&v.Status, &v.Notes, &v.CreatedAt, &v.UpdatedAt, &v.Version,
		&v.ClientName, &v.ClientPhone, &v.ShopName, &v.ServiceName, &v.Duration, &v.StaffName,
	)
	if err != nil {
		return nil, err
	}
	if v.ClientName == "" {
		v.ClientName = models.UnknownClientName
	}
	if v.ServiceName == "" {
		v.ServiceName = models.UnknownServiceName
	}
	return &v, nil
}

func (db *DB) GetAppointmentView(ctx context.Context, id string) (*models.AppointmentView, error) {
	v, err := scanAppointmentView(db.QueryRowContext(ctx, appointmentViewSelect+` WHERE a.id = ?`, id))
	if err != nil {
		return nil, notFound(err, "appointment")
	}
	return v, nil
}

func (db *DB) ListAppointmentViews(ctx context.Context, filter models.AppointmentFilter) ([]*models.AppointmentView, error) {
	var where []string
	var args []interface{}
	if filter.ShopID != "" {
		where = append(where, "a.shop_id = ?")
		args = append(args, filter.ShopID)
	}
	if filter.ClientID != "" {
		where = append(where, "a.client_id = ?")
		args = append(args, filter.ClientID)
	}
	if filter.DateFrom != "" {
		where = append(where, "a.day >= ?")
		args = append(args, filter.DateFrom)
	}
	if filter.DateTo != "" {
		where = append(where, "a.day <= ?")
		args = append(args, filter.DateTo)
	}
	if filter.Status != "" {
		where = append(where, "a.status = ?")
		args = append(args, filter.Status)
	}

	query := appointmentViewSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY a.day ASC, a.start_time ASC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointment views: %w", err)
	}
	defer rows.Close()

	var out []*models.AppointmentView
	for rows.Next() {
		v, err := scanAppointmentView(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan appointment view: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
