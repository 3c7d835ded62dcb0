package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderWaitingPayment OrderStatus = "waiting_payment"
	OrderPending        OrderStatus = "pending"
	OrderDelivered      OrderStatus = "delivered"
	OrderCancelled      OrderStatus = "cancelled"
	OrderReturned       OrderStatus = "returned"
)

type PaymentMethod string

const (
	PaymentCard PaymentMethod = "card"
	PaymentCash PaymentMethod = "cash"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentCard || m == PaymentCash
}

type SaleType string

const (
	SaleOnline      SaleType = "online"
	SalePointOfSale SaleType = "point-of-sale"
)

// ReservationWindow is how long a cash order stays reserved before it is
// cancelled automatically.
const ReservationWindow = 30 * time.Minute

type Order struct {
	ID               uuid.UUID       `json:"id"`
	UserID           *uuid.UUID      `json:"user_id"`
	CustomerName     string          `json:"customer_name"`
	CustomerEmail    string          `json:"customer_email"`
	QRCode           string          `json:"qr_code"`
	Status           OrderStatus     `json:"status"`
	PaymentMethod    PaymentMethod   `json:"payment_method"`
	PaymentValidated bool            `json:"payment_validated"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	SaleType         SaleType        `json:"sale_type"`
	StandID          uuid.UUID       `json:"stand_id"`

	DeliveredByStandID *uuid.UUID `json:"delivered_by_stand_id,omitempty"`
	DeliveredAt        *time.Time `json:"delivery_timestamp,omitempty"`
	ReturnReason       *string    `json:"return_reason,omitempty"`
	ReturnedAt         *time.Time `json:"return_timestamp,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ReservationExpiresAt is the instant a cash reservation lapses.
func (o *Order) ReservationExpiresAt() time.Time {
	return o.CreatedAt.Add(ReservationWindow)
}

// ReservationOpen reports whether the order is an unpaid cash reservation
// that expiry may still cancel.
func (o *Order) ReservationOpen() bool {
	return o.PaymentMethod == PaymentCash && !o.PaymentValidated && CanTransition(o.Status, OrderCancelled)
}

func (o *Order) BelongsTo(userID uuid.UUID) bool {
	return o.UserID != nil && *o.UserID == userID
}

type OrderItem struct {
	ID               uuid.UUID       `json:"id"`
	OrderID          uuid.UUID       `json:"order_id"`
	ProductVariantID uuid.UUID       `json:"product_variant_id"`
	Quantity         int             `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	CreatedAt        time.Time       `json:"created_at"`
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// OrderDetail is an order joined with everything a viewer renders.
type OrderDetail struct {
	Order
	Items       []OrderItem  `json:"items"`
	Stand       *Stand       `json:"stand,omitempty"`
	Transaction *Transaction `json:"transaction,omitempty"`
}

// ItemsTotal recomputes the total from the stored snapshot prices.
func (d *OrderDetail) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range d.Items {
		total = total.Add(it.Subtotal())
	}
	return total
}
