package domain

// transitions lists, for every target status, the statuses it may be
// reached from.
var transitions = map[OrderStatus][]OrderStatus{
	OrderPending:   {OrderWaitingPayment},
	OrderCancelled: {OrderWaitingPayment, OrderPending},
	OrderDelivered: {OrderPending},
	OrderReturned:  {OrderPending},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderWaitingPayment, OrderPending, OrderDelivered, OrderCancelled, OrderReturned:
		return true
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	return s == OrderDelivered || s == OrderCancelled || s == OrderReturned
}

// SourcesFor returns the statuses from which to may be entered.
func SourcesFor(to OrderStatus) []OrderStatus {
	return transitions[to]
}

func CanTransition(from, to OrderStatus) bool {
	for _, s := range transitions[to] {
		if s == from {
			return true
		}
	}
	return false
}

// InitialStatus is the status an order is created with.
func InitialStatus(m PaymentMethod) OrderStatus {
	if m == PaymentCard {
		return OrderWaitingPayment
	}
	return OrderPending
}
