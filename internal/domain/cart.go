package domain

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartLine is one entry of the finalized cart snapshot, in the shape the
// storefront keeps under its "cart" storage key.
type CartLine struct {
	VariantID uuid.UUID       `json:"variantId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// NewOrderInput carries everything needed to create an order.
type NewOrderInput struct {
	UserID        *uuid.UUID
	CustomerName  string
	CustomerEmail string
	PaymentMethod PaymentMethod
	SaleType      SaleType
	StandID       uuid.UUID
	Cart          []CartLine
}

func (in *NewOrderInput) Validate() error {
	if strings.TrimSpace(in.CustomerName) == "" {
		return fmt.Errorf("%w: customer name is required", ErrValidation)
	}
	if _, err := mail.ParseAddress(in.CustomerEmail); err != nil {
		return fmt.Errorf("%w: a valid contact email is required", ErrValidation)
	}
	if in.StandID == uuid.Nil {
		return fmt.Errorf("%w: a pickup stand must be selected", ErrValidation)
	}
	if !in.PaymentMethod.Valid() {
		return fmt.Errorf("%w: unknown payment method %q", ErrValidation, in.PaymentMethod)
	}
	if in.SaleType == "" {
		in.SaleType = SaleOnline
	}
	if in.SaleType != SaleOnline && in.SaleType != SalePointOfSale {
		return fmt.Errorf("%w: unknown sale type %q", ErrValidation, in.SaleType)
	}
	if len(in.Cart) == 0 {
		return fmt.Errorf("%w: cart is empty", ErrValidation)
	}
	for i, l := range in.Cart {
		if l.VariantID == uuid.Nil {
			return fmt.Errorf("%w: cart line %d has no variant", ErrValidation, i)
		}
		if l.Quantity <= 0 {
			return fmt.Errorf("%w: cart line %d has non-positive quantity", ErrValidation, i)
		}
		if l.Price.IsNegative() {
			return fmt.Errorf("%w: cart line %d has negative price", ErrValidation, i)
		}
	}
	return nil
}

// CartSubtotal is Σ price * quantity over the snapshot.
func CartSubtotal(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}
