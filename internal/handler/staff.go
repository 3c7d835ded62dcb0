package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type deliverRequest struct {
	QRCode  string    `json:"qr_code"`
	StandID uuid.UUID `json:"stand_id"`
}

// Deliver hands over the order behind a scanned pickup code.
func (h *Handler) Deliver(c *gin.Context) {
	var req deliverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid delivery body"})
		return
	}
	order, err := h.orders.MarkDelivered(c.Request.Context(), req.QRCode, req.StandID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type returnRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) Return(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req returnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid return body"})
		return
	}
	order, err := h.orders.MarkReturned(c.Request.Context(), id, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) ListStands(c *gin.Context) {
	stands, err := h.orders.ListStands(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stands)
}
