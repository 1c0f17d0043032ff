package database

import (
	"context"
	"fmt"
	"time"

	"github.com/frenetico9/Navalha.Digital/internal/models"
)

const reviewColumns = `id, appointment_id, client_id, shop_id, rating, comment, reply, reply_at, created_at`

func scanReview(row rowScanner) (*models.Review, error) {
	var r models.Review
	err := row.Scan(&r.ID, &r.AppointmentID, &r.ClientID, &r.ShopID, &r.Rating, &r.Comment, &r.Reply, &r.ReplyAt, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (db *DB) CreateReview(ctx context.Context, review *models.Review) error {
	now := time.Now()
	_, err := db.ExecContext(ctx,
		`INSERT INTO reviews (`+reviewColumns+`) VALUES (?, ?, ?, ?, ?, ?, '', NULL, ?)`,
		review.ID, review.AppointmentID, review.ClientID, review.ShopID, review.Rating, review.Comment, now,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("appointment %s: %w", review.AppointmentID, ErrReviewExists)
	}
	if err != nil {
		return fmt.Errorf("failed to create review: %w", err)
	}
	review.CreatedAt = now
	return nil
}

func (db *DB) GetReview(ctx context.Context, id string) (*models.Review, error) {
	r, err := scanReview(db.QueryRowContext(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "review")
	}
	return r, nil
}

func (db *DB) GetReviewByAppointment(ctx context.Context, appointmentID string) (*models.Review, error) {
	r, err := scanReview(db.QueryRowContext(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE appointment_id = ?`, appointmentID))
	if err != nil {
		return nil, notFound(err, "review")
	}
	return r, nil
}

func (db *DB) ReplyReview(ctx context.Context, id, reply string, at time.Time) error {
	result, err := db.ExecContext(ctx, `UPDATE reviews SET reply = ?, reply_at = ? WHERE id = ?`, reply, at, id)
	if err != nil {
		return fmt.Errorf("failed to reply review: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("review %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListReviewViews returns the shop's reviews newest first with the client's name.
func (db *DB) ListReviewViews(ctx context.Context, shopID string) ([]*models.ReviewView, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+prefixed("r", reviewColumns)+`, COALESCE(u.name, '')
         FROM reviews r LEFT JOIN users u ON u.id = r.client_id
         WHERE r.shop_id = ?
         ORDER BY r.created_at DESC`, shopID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	var out []*models.ReviewView
	for rows.Next() {
		var v models.ReviewView
		if err := rows.Scan(
			&v.ID, &v.AppointmentID, &v.ClientID, &v.ShopID, &v.Rating, &v.Comment, &v.Reply, &v.ReplyAt, &v.CreatedAt,
			&v.ClientName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		if v.ClientName == "" {
			v.ClientName = models.AnonymousClientName
		}
		out = append(out, &v)
	}
	return out, rows.Err()
}

// GetShopRatings aggregates average rating and count for every reviewed shop.
func (db *DB) GetShopRatings(ctx context.Context) (map[string]models.Rating, error) {
	rows, err := db.QueryContext(ctx, `SELECT shop_id, AVG(rating), COUNT(*) FROM reviews GROUP BY shop_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate ratings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]models.Rating)
	for rows.Next() {
		var shopID string
		var r models.Rating
		if err := rows.Scan(&shopID, &r.Average, &r.Count); err != nil {
			return nil, fmt.Errorf("failed to scan rating: %w", err)
		}
		out[shopID] = r
	}
	return out, rows.Err()
}
