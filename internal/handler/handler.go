package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"merch-pickup/internal/domain"
	"merch-pickup/internal/infrastructure/payment"
	"merch-pickup/internal/mw"
	"merch-pickup/internal/realtime"
	"merch-pickup/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// HealthChecker reports the state of a backing store.
type HealthChecker interface {
	Health(ctx context.Context) map[string]string
}

type Handler struct {
	orders   service.OrderService
	payments service.PaymentService
	checkout service.CheckoutService
	sync     *realtime.Sync
	health   HealthChecker

	now          func() time.Time
	tickInterval time.Duration
}

type Option func(*Handler)

// WithClock replaces time.Now for reservation countdowns.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// WithTickInterval sets how often countdown ticks are pushed on event streams.
func WithTickInterval(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.tickInterval = d
		}
	}
}

func New(
	orders service.OrderService,
	payments service.PaymentService,
	checkout service.CheckoutService,
	sync *realtime.Sync,
	health HealthChecker,
	opts ...Option,
) *Handler {
	h := &Handler{
		orders:       orders,
		payments:     payments,
		checkout:     checkout,
		sync:         sync,
		health:       health,
		now:          time.Now,
		tickInterval: time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Health(c *gin.Context) {
	stats := h.health.Health(c.Request.Context())
	if stats["status"] != "up" {
		c.JSON(http.StatusServiceUnavailable, stats)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// writeError maps service errors to status codes. Anything unrecognised is
// logged and answered with a generic retryable message.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrStandNotFound),
		errors.Is(err, domain.ErrLinkNotFound),
		errors.Is(err, payment.ErrPaymentNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrCheckoutInFlight),
		errors.Is(err, domain.ErrReservationActive),
		errors.Is(err, domain.ErrNotCardOrder):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrPaymentUnavailable):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		log.Error().Err(err).
			Str("request_id", c.GetString("request_id")).
			Str("path", c.Request.URL.Path).
			Msg("request failed")
		c.JSON(status, gin.H{"error": "something went wrong, please try again"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return uuid.Nil, false
	}
	return id, true
}

// viewable loads an order the caller may see: guest orders by id, account
// orders by their owner or staff.
func (h *Handler) viewable(c *gin.Context, id uuid.UUID) (*domain.OrderDetail, bool) {
	detail, err := h.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	if detail.UserID == nil || c.GetString(mw.RoleCtxKey) == mw.RoleStaff {
		return detail, true
	}
	if userID, ok := mw.CurrentUser(c); ok && detail.BelongsTo(userID) {
		return detail, true
	}
	writeError(c, domain.ErrForbidden)
	return nil, false
}

func requester(c *gin.Context) *uuid.UUID {
	if id, ok := mw.CurrentUser(c); ok {
		return &id
	}
	return nil
}
