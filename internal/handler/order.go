package handler

import (
	"net/http"
	"strings"

	"merch-pickup/internal/domain"
	"merch-pickup/internal/mw"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type checkoutRequest struct {
	CustomerName  string               `json:"customer_name"`
	CustomerEmail string               `json:"customer_email"`
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
	SaleType      domain.SaleType      `json:"sale_type"`
	StandID       uuid.UUID            `json:"stand_id"`
	Cart          []domain.CartLine    `json:"cart"`
}

// Checkout creates an order from the submitted cart. Card orders also get a
// hosted checkout; when that fails the order is still returned with 202.
func (h *Handler) Checkout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid checkout body"})
		return
	}

	in := domain.NewOrderInput{
		UserID:        requester(c),
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		PaymentMethod: req.PaymentMethod,
		SaleType:      req.SaleType,
		StandID:       req.StandID,
		Cart:          req.Cart,
	}

	result, err := h.checkout.Checkout(c.Request.Context(), checkoutKey(c, in), in)
	if err != nil {
		writeError(c, err)
		return
	}
	if result.ChargeError != "" {
		c.JSON(http.StatusAccepted, result)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// checkoutKey picks the in-flight key: the client's idempotency key, else the
// signed-in user, else the contact email.
func checkoutKey(c *gin.Context, in domain.NewOrderInput) string {
	if key := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader)); key != "" {
		return "key:" + key
	}
	if in.UserID != nil {
		return "user:" + in.UserID.String()
	}
	if email := strings.ToLower(strings.TrimSpace(in.CustomerEmail)); email != "" {
		return "email:" + email
	}
	return ""
}

func (h *Handler) ListOrders(c *gin.Context) {
	userID, ok := mw.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	orders, err := h.orders.ListUserOrders(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *Handler) GetOrder(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	detail, ok := h.viewable(c, id)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *Handler) RequestCharge(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	result, err := h.payments.RequestCharge(c.Request.Context(), id, requester(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ExpireReservation is called by the buyer's countdown when it reaches zero.
// Calls that no longer apply answer 200 with the current order.
func (h *Handler) ExpireReservation(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if _, ok := h.viewable(c, id); !ok {
		return
	}
	order, err := h.orders.ExpireReservation(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// QRCode renders the pickup code staff scan at the stand.
func (h *Handler) QRCode(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	detail, ok := h.viewable(c, id)
	if !ok {
		return
	}
	png, err := qrcode.Encode(detail.QRCode, qrcode.Medium, 256)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Cache-Control", "private, max-age=3600")
	c.Data(http.StatusOK, "image/png", png)
}
