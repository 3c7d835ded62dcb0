package server

import (
	"net/http"
	"time"

	"merch-pickup/internal/handler"
	"merch-pickup/internal/mw"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Options struct {
	AllowedOrigins []string
	JWTSecret      string
	Production     bool
}

// NewRouter wires every route onto a gin engine.
func NewRouter(h *handler.Handler, opts Options) *gin.Engine {
	if opts.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	corsCfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", handler.IdempotencyKeyHeader, mw.RequestIDHeader},
		ExposeHeaders:    []string{mw.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(opts.AllowedOrigins) == 0 || (len(opts.AllowedOrigins) == 1 && opts.AllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = opts.AllowedOrigins
	}

	r.Use(mw.RequestLogger(), cors.New(corsCfg), mw.Identity(opts.JWTSecret))

	r.GET("/health", h.Health)

	api := r.Group("/api")
	api.GET("/stands", h.ListStands)
	api.POST("/checkout", h.Checkout)

	orders := api.Group("/orders")
	orders.GET("", mw.RequireUser(), h.ListOrders)
	orders.GET("/:id", h.GetOrder)
	orders.POST("/:id/charge", h.RequestCharge)
	orders.POST("/:id/expire", h.ExpireReservation)
	orders.GET("/:id/events", h.OrderEvents)
	orders.GET("/:id/qr.png", h.QRCode)

	pay := api.Group("/payment")
	pay.POST("/webhook", h.Webhook)
	pay.GET("", h.GetPayment)
	pay.GET("/link-details/:token", h.LinkDetails)

	staff := api.Group("/staff", mw.RequireStaff())
	staff.POST("/deliver", h.Deliver)
	staff.POST("/orders/:id/return", h.Return)

	return r
}
