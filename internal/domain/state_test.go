package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		ok       bool
	}{
		{OrderWaitingPayment, OrderPending, true},
		{OrderWaitingPayment, OrderCancelled, true},
		{OrderPending, OrderCancelled, true},
		{OrderPending, OrderDelivered, true},
		{OrderPending, OrderReturned, true},
		{OrderWaitingPayment, OrderDelivered, false},
		{OrderPending, OrderWaitingPayment, false},
		{OrderPending, OrderPending, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestTerminalStatesAreClosed(t *testing.T) {
	all := []OrderStatus{OrderWaitingPayment, OrderPending, OrderDelivered, OrderCancelled, OrderReturned}
	for _, from := range all {
		if !from.Terminal() {
			continue
		}
		for _, to := range all {
			assert.False(t, CanTransition(from, to), "%s must not reach %s", from, to)
		}
	}
}

func TestInitialStatus(t *testing.T) {
	assert.Equal(t, OrderWaitingPayment, InitialStatus(PaymentCard))
	assert.Equal(t, OrderPending, InitialStatus(PaymentCash))
}
