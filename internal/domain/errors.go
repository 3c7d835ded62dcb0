package domain

import "errors"

var (
	ErrValidation         = errors.New("validation failed")
	ErrOrderNotFound      = errors.New("order not found")
	ErrStandNotFound      = errors.New("stand not found")
	ErrLinkNotFound       = errors.New("payment link not found")
	ErrInvalidTransition  = errors.New("transition not allowed from current status")
	ErrReservationActive  = errors.New("reservation has not expired yet")
	ErrNotCardOrder       = errors.New("order is not paid by card")
	ErrCheckoutInFlight   = errors.New("checkout already in progress")
	ErrForbidden          = errors.New("order belongs to another user")
	ErrPaymentUnavailable = errors.New("payment gateway unavailable")
)
