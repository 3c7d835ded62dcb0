package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	TransactionPending  TransactionStatus = "pending"
	TransactionApproved TransactionStatus = "approved"
	TransactionRejected TransactionStatus = "rejected"
)

// Transaction is the gateway-side record of an order's card payment attempt.
type Transaction struct {
	ID         uuid.UUID         `json:"id"`
	OrderID    uuid.UUID         `json:"order_id"`
	Status     TransactionStatus `json:"status"`
	PaymentURL *string           `json:"payment_url"`
	PaymentID  *string           `json:"payment_id,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// PaymentRecord is the normalized view of a payment as reported by the
// gateway.
type PaymentRecord struct {
	ID                string          `json:"id"`
	Status            string          `json:"status"`
	StatusDetail      string          `json:"statusDetail"`
	TransactionAmount decimal.Decimal `json:"transactionAmount"`
	CurrencyID        string          `json:"currencyId"`
	PaymentMethodID   string          `json:"paymentMethodId"`
	Installments      int             `json:"installments"`
	DateCreated       *time.Time      `json:"dateCreated"`
	DateApproved      *time.Time      `json:"dateApproved"`
	ExternalID        string          `json:"externalId"`
}

const PaymentApproved = "approved"

func (p *PaymentRecord) Approved() bool {
	return p.Status == PaymentApproved
}

// WebhookEvent is the notification body posted by the gateway.
type WebhookEvent struct {
	ID          string `json:"id"`
	Action      string `json:"action"`
	APIVersion  string `json:"api_version"`
	Type        string `json:"type"`
	LiveMode    bool   `json:"live_mode"`
	DateCreated string `json:"date_created"`
	UserID      string `json:"user_id"`
	Data        struct {
		ID string `json:"id"`
	} `json:"data"`
}

const (
	WebhookPaymentCreated = "payment.created"
	WebhookPaymentUpdated = "payment.updated"
)

// ConcernsPayment reports whether the event is a payment creation/update
// carrying a payment id.
func (e *WebhookEvent) ConcernsPayment() bool {
	return (e.Action == WebhookPaymentCreated || e.Action == WebhookPaymentUpdated) && e.Data.ID != ""
}

// UnmatchedPayment is a gateway payment that could not be applied to an
// order yet.
type UnmatchedPayment struct {
	PaymentID  string     `json:"payment_id"`
	Reason     string     `json:"reason"`
	Attempts   int        `json:"attempts"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
