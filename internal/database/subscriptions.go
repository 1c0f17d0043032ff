package database

import (
	"context"
	"fmt"

	"github.com/frenetico9/Navalha.Digital/internal/models"
)

func (db *DB) GetSubscription(ctx context.Context, shopID string) (*models.Subscription, error) {
	var s models.Subscription
	err := db.QueryRowContext(ctx,
		`SELECT shop_id, plan_id, status, start_date, end_date, next_billing_date FROM subscriptions WHERE shop_id = ?`,
		shopID,
	).Scan(&s.ShopID, &s.PlanID, &s.Status, &s.StartDate, &s.EndDate, &s.NextBillingDate)
	if err != nil {
		return nil, notFound(err, "subscription")
	}
	return &s, nil
}

func (db *DB) UpsertSubscription(ctx context.Context, sub *models.Subscription) error {
	return upsertSubscription(ctx, db, sub)
}

func upsertSubscription(ctx context.Context, ex execer, sub *models.Subscription) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO subscriptions (shop_id, plan_id, status, start_date, end_date, next_billing_date)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(shop_id) DO UPDATE SET
             plan_id = excluded.plan_id,
             status = excluded.status,
             start_date = excluded.start_date,
             end_date = excluded.end_date,
             next_billing_date = excluded.next_billing_date`,
		sub.ShopID, sub.PlanID, sub.Status, sub.StartDate, sub.EndDate, sub.NextBillingDate,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}
