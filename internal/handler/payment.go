package handler

import (
	"net/http"

	"merch-pickup/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Webhook acknowledges every delivery with 200 so the gateway stops
// retrying; what happened is only logged.
func (h *Handler) Webhook(c *gin.Context) {
	var ev domain.WebhookEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		log.Warn().Err(err).Msg("unreadable webhook body")
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}
	h.payments.HandleWebhook(c.Request.Context(), ev)
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *Handler) GetPayment(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payment id is required"})
		return
	}
	rec, err := h.payments.GetPayment(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) LinkDetails(c *gin.Context) {
	link, err := h.payments.LinkDetails(c.Request.Context(), c.Param("token"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, link)
}
