package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SubscriptionRepository holds the per-customer subscription state the
// webhook handlers act on. Every write is an upsert keyed by customer, so a
// handler re-invoked for a redelivered event converges on the same row.
type SubscriptionRepository struct {
	db *sql.DB
}

func NewSubscriptionRepository(db *sql.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) ActivateSubscription(ctx context.Context, customerID, plan string) error {
	return r.upsert(ctx, customerID, plan, "active")
}

func (r *SubscriptionRepository) MarkPastDue(ctx context.Context, customerID string) error {
	return r.upsert(ctx, customerID, "", "past_due")
}

func (r *SubscriptionRepository) CancelSubscription(ctx context.Context, customerID string) error {
	return r.upsert(ctx, customerID, "", "canceled")
}

func (r *SubscriptionRepository) upsert(ctx context.Context, customerID, plan, status string) error {
	// An empty plan keeps whatever plan is already on record.
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO subscriptions (customer_id, plan, status, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (customer_id) DO UPDATE SET
			plan = COALESCE(NULLIF(EXCLUDED.plan, ''), subscriptions.plan),
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at`,
		customerID, plan, status, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}

func (r *SubscriptionRepository) GetStatus(ctx context.Context, customerID string) (plan, status string, err error) {
	err = r.db.QueryRowContext(ctx,
		`SELECT plan, status FROM subscriptions WHERE customer_id = $1`,
		customerID,
	).Scan(&plan, &status)
	if err != nil && err != sql.ErrNoRows {
		return "", "", fmt.Errorf("GetStatus: %w", err)
	}
	if err == sql.ErrNoRows {
		return "", "", nil
	}
	return plan, status, nil
}
