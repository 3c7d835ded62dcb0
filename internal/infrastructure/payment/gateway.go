package payment

import (
	"context"
	"errors"

	"merch-pickup/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrPaymentNotFound is returned by GetPayment when the gateway has no
// payment under the id.
var ErrPaymentNotFound = errors.New("payment not found at gateway")

type ChargeRequest struct {
	OrderID    uuid.UUID
	Amount     decimal.Decimal
	PayerEmail string
	Title      string
}

type Charge struct {
	PreferenceID string
	PaymentURL   string
}

type PaymentGateway interface {
	// CreateCharge opens a hosted checkout for the order. The order id travels
	// as the external reference so the webhook can find the order again.
	CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error)
	// GetPayment fetches the authoritative payment record by gateway id.
	GetPayment(ctx context.Context, paymentID string) (*domain.PaymentRecord, error)
}
