package handler

import (
	"context"
	"net/http"
	"time"

	"merch-pickup/internal/domain"
	"merch-pickup/internal/realtime"
	"merch-pickup/internal/reservation"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// OrderEvents streams an order as server-sent events: a "snapshot" first,
// an "order" event after every change and, while a cash reservation is
// open, a "tick" with the remaining time each interval. When the countdown
// runs out the reservation is expired from here.
//
// The ?channel= query names the subscription; reopening a stream under the
// same name ends the previous one.
func (h *Handler) OrderEvents(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	detail, ok := h.viewable(c, id)
	if !ok {
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	snapshots := make(chan *domain.OrderDetail, 1)
	ticks := make(chan time.Duration, 1)

	channel := c.Query("channel")
	if channel == "" {
		channel = c.GetString("request_id")
	}
	if channel == "" {
		channel = uuid.NewString()
	}
	watcher := h.sync.Watch(ctx, "orders:"+channel, realtime.Filter{OrderID: &id}, func(d *domain.OrderDetail) {
		latest(snapshots, d)
	})
	defer watcher.Stop()

	var timer *reservation.Timer
	if detail.ReservationOpen() {
		timer = reservation.New(
			detail.ReservationExpiresAt(),
			func(remaining time.Duration) { latest(ticks, remaining) },
			func() { h.expire(ctx, id, snapshots) },
			reservation.WithClock(h.now),
			reservation.WithInterval(h.tickInterval),
		)
		timer.Start(ctx)
		defer timer.Stop()
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.SSEvent("snapshot", detail)
	c.Writer.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case <-watcher.Done():
			if ctx.Err() == nil {
				c.SSEvent("closed", gin.H{"reason": "channel taken over"})
				c.Writer.Flush()
			}
			return
		case d := <-snapshots:
			c.SSEvent("order", d)
			if timer != nil && !d.ReservationOpen() {
				timer.Stop()
			}
		case remaining := <-ticks:
			c.SSEvent("tick", gin.H{
				"remaining": reservation.Format(remaining),
				"seconds":   int(remaining / time.Second),
			})
		}
		c.Writer.Flush()
	}
}

func (h *Handler) expire(ctx context.Context, id uuid.UUID, snapshots chan *domain.OrderDetail) {
	if _, err := h.orders.ExpireReservation(ctx, id); err != nil {
		if ctx.Err() == nil {
			log.Warn().Err(err).Str("order_id", id.String()).Msg("countdown expiry failed")
		}
		return
	}
	detail, err := h.orders.GetOrder(ctx, id)
	if err != nil {
		return
	}
	latest(snapshots, detail)
}

// latest puts v in a one-slot channel, replacing whatever the reader has not
// picked up yet.
func latest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
