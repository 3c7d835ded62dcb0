package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"merch-pickup/internal/domain"

	"github.com/google/uuid"
)

type TransactionRepo interface {
	// UpsertPending stores the charge URL for an order. A rejected row is
	// reopened with the new URL; an approved row is left as it is.
	UpsertPending(ctx context.Context, txn *domain.Transaction) error
	FindByOrder(ctx context.Context, orderID uuid.UUID) (*domain.Transaction, error)
	// update transaction status when the gateway reports on a payment
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status domain.TransactionStatus, paymentID string) (bool, error)
}

type transactionRepo struct {
	db *sql.DB
}

func NewTransactionRepo(db *sql.DB) TransactionRepo {
	return &transactionRepo{db: db}
}

const transactionColumns = `id, order_id, status, payment_url, payment_id, created_at, updated_at`

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var (
		t         domain.Transaction
		url       sql.NullString
		paymentID sql.NullString
	)
	if err := row.Scan(&t.ID, &t.OrderID, &t.Status, &url, &paymentID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if url.Valid {
		t.PaymentURL = &url.String
	}
	if paymentID.Valid {
		t.PaymentID = &paymentID.String
	}
	return &t, nil
}

func (r *transactionRepo) UpsertPending(ctx context.Context, txn *domain.Transaction) error {
	query := `
		INSERT INTO transactions (id, order_id, status, payment_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (order_id) DO UPDATE
		SET status = 'pending',
		    payment_url = EXCLUDED.payment_url,
		    payment_id = NULL,
		    updated_at = EXCLUDED.updated_at
		WHERE transactions.status <> 'approved'
		RETURNING ` + transactionColumns

	stored, err := scanTransaction(r.db.QueryRowContext(
		ctx, query, txn.ID, txn.OrderID, txn.Status, txn.PaymentURL, txn.CreatedAt, txn.UpdatedAt,
	))
	if errors.Is(err, sql.ErrNoRows) {
		// already approved; leave it alone
		existing, err := r.FindByOrder(ctx, txn.OrderID)
		if err != nil {
			return err
		}
		if existing != nil {
			*txn = *existing
		}
		return nil
	}
	if err != nil {
		return err
	}
	*txn = *stored
	return nil
}

func (r *transactionRepo) FindByOrder(ctx context.Context, orderID uuid.UUID) (*domain.Transaction, error) {
	t, err := scanTransaction(r.db.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE order_id = $1", orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// UpdateStatus sets the status of the order's transaction, creating the row
// when the charge was made outside this service. It reports whether the
// stored status changed.
func (r *transactionRepo) UpdateStatus(ctx context.Context, orderID uuid.UUID, status domain.TransactionStatus, paymentID string) (bool, error) {
	query := `
		INSERT INTO transactions (id, order_id, status, payment_id, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $5)
		ON CONFLICT (order_id) DO UPDATE
		SET status = EXCLUDED.status,
		    payment_id = COALESCE(EXCLUDED.payment_id, transactions.payment_id),
		    updated_at = EXCLUDED.updated_at
		WHERE transactions.status IS DISTINCT FROM EXCLUDED.status
		   OR transactions.payment_id IS DISTINCT FROM COALESCE(EXCLUDED.payment_id, transactions.payment_id)`
	res, err := r.db.ExecContext(ctx, query, uuid.New(), orderID, string(status), paymentID, time.Now())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func findTransactions(ctx context.Context, db *sql.DB, orderIDs []uuid.UUID) (map[uuid.UUID]*domain.Transaction, error) {
	out := make(map[uuid.UUID]*domain.Transaction)
	if len(orderIDs) == 0 {
		return out, nil
	}
	rows, err := db.QueryContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE order_id = ANY($1::text[]::uuid[])",
		uuidStrings(orderIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out[t.OrderID] = t
	}
	return out, rows.Err()
}
