package repo

import (
	"context"
	"database/sql"
	"time"

	"merch-pickup/internal/domain"
)

// UnmatchedRepo is the dead letter for gateway payments the webhook could not
// apply.
type UnmatchedRepo interface {
	Record(ctx context.Context, paymentID, reason string) error
	// ListPending returns unresolved entries tried fewer than maxAttempts times.
	ListPending(ctx context.Context, maxAttempts, limit int) ([]domain.UnmatchedPayment, error)
	MarkResolved(ctx context.Context, paymentID string) error
}

type unmatchedRepo struct {
	db *sql.DB
}

func NewUnmatchedRepo(db *sql.DB) UnmatchedRepo {
	return &unmatchedRepo{db: db}
}

func (r *unmatchedRepo) Record(ctx context.Context, paymentID, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO unmatched_payments (payment_id, reason, attempts, created_at, updated_at)
		VALUES ($1, $2, 1, $3, $3)
		ON CONFLICT (payment_id) DO UPDATE
		SET reason = EXCLUDED.reason,
		    attempts = unmatched_payments.attempts + 1,
		    resolved_at = NULL,
		    updated_at = EXCLUDED.updated_at`,
		paymentID, reason, time.Now(),
	)
	return err
}

func (r *unmatchedRepo) ListPending(ctx context.Context, maxAttempts, limit int) ([]domain.UnmatchedPayment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT payment_id, reason, attempts, resolved_at, created_at, updated_at
		FROM unmatched_payments
		WHERE resolved_at IS NULL AND attempts < $1
		ORDER BY updated_at
		LIMIT $2`, maxAttempts, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.UnmatchedPayment
	for rows.Next() {
		var (
			p        domain.UnmatchedPayment
			resolved sql.NullTime
		)
		if err := rows.Scan(&p.PaymentID, &p.Reason, &p.Attempts, &resolved, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		if resolved.Valid {
			p.ResolvedAt = &resolved.Time
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *unmatchedRepo) MarkResolved(ctx context.Context, paymentID string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE unmatched_payments SET resolved_at = $2, updated_at = $2 WHERE payment_id = $1",
		paymentID, time.Now())
	return err
}
