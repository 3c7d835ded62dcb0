package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"merch-pickup/internal/domain"

	"github.com/google/uuid"
)

type OrderRepo interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	CreateItems(ctx context.Context, items []domain.OrderItem) error
	// DeleteOrder removes the order; its items and transaction cascade.
	DeleteOrder(ctx context.Context, id uuid.UUID) error
	FindById(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	FindByQRCode(ctx context.Context, code string) (*domain.Order, error)
	FindDetail(ctx context.Context, id uuid.UUID) (*domain.OrderDetail, error)
	FindByUser(ctx context.Context, userID uuid.UUID) ([]domain.OrderDetail, error)
	// Transition moves the order to t.To only if its current status is one of
	// t.From. It reports whether a row changed.
	Transition(ctx context.Context, id uuid.UUID, t Transition) (bool, error)
	FindExpiredReservations(ctx context.Context, createdBefore time.Time, limit int) ([]domain.Order, error)
}

type Transition struct {
	To               domain.OrderStatus
	From             []domain.OrderStatus
	OnlyMethod       domain.PaymentMethod
	PaymentValidated bool
	DeliveredBy      *uuid.UUID
	ReturnReason     *string
	At               time.Time
}

type orderRepo struct {
	db *sql.DB
}

func NewOrderRepo(db *sql.DB) OrderRepo {
	return &orderRepo{db: db}
}

const orderColumns = `id, user_id, customer_name, customer_email, qr_code, status, payment_method,
	payment_validated, total_amount, sale_type, stand_id, delivered_by_stand_id, delivery_timestamp,
	return_reason, return_timestamp, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		o            domain.Order
		userID       uuid.NullUUID
		deliveredBy  uuid.NullUUID
		deliveredAt  sql.NullTime
		returnReason sql.NullString
		returnedAt   sql.NullTime
	)
	err := row.Scan(
		&o.ID,
		&userID,
		&o.CustomerName,
		&o.CustomerEmail,
		&o.QRCode,
		&o.Status,
		&o.PaymentMethod,
		&o.PaymentValidated,
		&o.TotalAmount,
		&o.SaleType,
		&o.StandID,
		&deliveredBy,
		&deliveredAt,
		&returnReason,
		&returnedAt,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if userID.Valid {
		o.UserID = &userID.UUID
	}
	if deliveredBy.Valid {
		o.DeliveredByStandID = &deliveredBy.UUID
	}
	if deliveredAt.Valid {
		o.DeliveredAt = &deliveredAt.Time
	}
	if returnReason.Valid {
		o.ReturnReason = &returnReason.String
	}
	if returnedAt.Valid {
		o.ReturnedAt = &returnedAt.Time
	}
	return &o, nil
}

func (r *orderRepo) CreateOrder(ctx context.Context, order *domain.Order) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, customer_name, customer_email, qr_code, status, payment_method,
			payment_validated, total_amount, sale_type, stand_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		order.ID, order.UserID, order.CustomerName, order.CustomerEmail, order.QRCode, order.Status,
		order.PaymentMethod, order.PaymentValidated, order.TotalAmount, order.SaleType, order.StandID,
		order.CreatedAt, order.UpdatedAt,
	)
	return err
}

// CreateItems inserts the whole batch in one statement so it either lands
// entirely or not at all.
func (r *orderRepo) CreateItems(ctx context.Context, items []domain.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	var (
		ids, orderIDs, variantIDs []string
		quantities                []int64
		prices                    []string
		createdAt                 []time.Time
	)
	for _, it := range items {
		ids = append(ids, it.ID.String())
		orderIDs = append(orderIDs, it.OrderID.String())
		variantIDs = append(variantIDs, it.ProductVariantID.String())
		quantities = append(quantities, int64(it.Quantity))
		prices = append(prices, it.UnitPrice.String())
		createdAt = append(createdAt, it.CreatedAt)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO order_items (id, order_id, product_variant_id, quantity, unit_price, created_at)
		SELECT u.id::uuid, u.order_id::uuid, u.variant_id::uuid, u.quantity, u.unit_price::numeric, u.created_at
		FROM unnest($1::text[], $2::text[], $3::text[], $4::int8[], $5::text[], $6::timestamptz[])
			AS u(id, order_id, variant_id, quantity, unit_price, created_at)`,
		ids, orderIDs, variantIDs, quantities, prices, createdAt,
	)
	return err
}

func (r *orderRepo) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM orders WHERE id = $1", id)
	return err
}

func (r *orderRepo) FindById(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // not found
	}
	if err != nil {
		return nil, err // system error
	}
	return order, nil
}

func (r *orderRepo) FindByQRCode(ctx context.Context, code string) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE qr_code = $1", code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *orderRepo) FindDetail(ctx context.Context, id uuid.UUID) (*domain.OrderDetail, error) {
	order, err := r.FindById(ctx, id)
	if err != nil || order == nil {
		return nil, err
	}
	details := []domain.OrderDetail{{Order: *order}}
	if err := r.attach(ctx, details); err != nil {
		return nil, err
	}
	return &details[0], nil
}

func (r *orderRepo) FindByUser(ctx context.Context, userID uuid.UUID) ([]domain.OrderDetail, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE user_id = $1 ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var details []domain.OrderDetail
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		details = append(details, domain.OrderDetail{Order: *o})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attach(ctx, details); err != nil {
		return nil, err
	}
	return details, nil
}

// attach loads items, stands and transactions for details in three queries.
func (r *orderRepo) attach(ctx context.Context, details []domain.OrderDetail) error {
	if len(details) == 0 {
		return nil
	}
	index := make(map[uuid.UUID]*domain.OrderDetail, len(details))
	orderIDs := make([]uuid.UUID, 0, len(details))
	standIDs := make([]uuid.UUID, 0, len(details))
	for i := range details {
		d := &details[i]
		d.Items = []domain.OrderItem{}
		index[d.ID] = d
		orderIDs = append(orderIDs, d.ID)
		standIDs = append(standIDs, d.StandID)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_variant_id, quantity, unit_price, created_at
		FROM order_items WHERE order_id = ANY($1::text[]::uuid[]) ORDER BY created_at, id`, uuidStrings(orderIDs))
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductVariantID, &it.Quantity, &it.UnitPrice, &it.CreatedAt); err != nil {
			return err
		}
		if d, ok := index[it.OrderID]; ok {
			d.Items = append(d.Items, it)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	stands, err := findStands(ctx, r.db, standIDs)
	if err != nil {
		return err
	}
	txns, err := findTransactions(ctx, r.db, orderIDs)
	if err != nil {
		return err
	}
	for i := range details {
		d := &details[i]
		if s, ok := stands[d.StandID]; ok {
			d.Stand = s
		}
		if t, ok := txns[d.ID]; ok {
			d.Transaction = t
		}
	}
	return nil
}

func (r *orderRepo) Transition(ctx context.Context, id uuid.UUID, t Transition) (bool, error) {
	from := make([]string, 0, len(t.From))
	for _, s := range t.From {
		from = append(from, string(s))
	}
	at := t.At
	if at.IsZero() {
		at = time.Now()
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET
			status = $2,
			updated_at = $3,
			payment_validated = payment_validated OR $4,
			delivered_by_stand_id = COALESCE($5, delivered_by_stand_id),
			delivery_timestamp = CASE WHEN $2 = 'delivered' THEN $3 ELSE delivery_timestamp END,
			return_reason = COALESCE($6, return_reason),
			return_timestamp = CASE WHEN $2 = 'returned' THEN $3 ELSE return_timestamp END
		WHERE id = $1 AND status = ANY($7::text[]) AND ($8 = '' OR payment_method = $8)`,
		id, string(t.To), at, t.PaymentValidated, t.DeliveredBy, t.ReturnReason, from, string(t.OnlyMethod),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// FindExpiredReservations returns cash orders still awaiting pickup that were
// created before createdBefore.
func (r *orderRepo) FindExpiredReservations(ctx context.Context, createdBefore time.Time, limit int) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+orderColumns+` FROM orders
		WHERE payment_method = 'cash' AND status IN ('waiting_payment', 'pending')
		AND payment_validated = FALSE AND created_at < $1
		ORDER BY created_at LIMIT $2`,
		createdBefore, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
