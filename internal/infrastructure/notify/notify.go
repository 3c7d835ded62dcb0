package notify

import (
	"context"
	"encoding/json"
	"time"

	"merch-pickup/internal/domain"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
)

// Message is what the email collaborator consumes.
type Message struct {
	Event         string             `json:"event"`
	OrderID       string             `json:"order_id"`
	CustomerName  string             `json:"customer_name"`
	CustomerEmail string             `json:"customer_email"`
	Status        domain.OrderStatus `json:"status"`
	PaymentMethod string             `json:"payment_method"`
	TotalAmount   string             `json:"total_amount"`
	QRCode        string             `json:"qr_code"`
	PaymentURL    string             `json:"payment_url,omitempty"`
	OccurredAt    time.Time          `json:"occurred_at"`
}

func NewMessage(event string, order *domain.Order) Message {
	return Message{
		Event:         event,
		OrderID:       order.ID.String(),
		CustomerName:  order.CustomerName,
		CustomerEmail: order.CustomerEmail,
		Status:        order.Status,
		PaymentMethod: string(order.PaymentMethod),
		TotalAmount:   order.TotalAmount.StringFixed(2),
		QRCode:        order.QRCode,
		OccurredAt:    time.Now().UTC(),
	}
}

// Notifier publishes order notifications. Delivery is best effort; a failed
// publish never affects the order.
type Notifier interface {
	Notify(ctx context.Context, msg Message)
	Close() error
}

// Writer is the subset of *kafka.Writer we use.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaNotifier struct {
	writer  Writer
	timeout time.Duration
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		MaxAttempts:  3,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			log.Error().Msgf("kafka writer: "+msg, args...)
		}),
	}
}

func NewKafkaNotifier(w Writer) Notifier {
	return &kafkaNotifier{writer: w, timeout: 5 * time.Second}
}

func (n *kafkaNotifier) Notify(ctx context.Context, msg Message) {
	body, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("order_id", msg.OrderID).Msg("encode notification")
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()

	// keyed by order so one order's messages stay on one partition
	err = n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.OrderID),
		Value: body,
	})
	if err != nil {
		log.Warn().Err(err).Str("order_id", msg.OrderID).Str("event", msg.Event).Msg("notification not published")
		return
	}
	log.Debug().Str("order_id", msg.OrderID).Str("event", msg.Event).Msg("notification published")
}

func (n *kafkaNotifier) Close() error {
	return n.writer.Close()
}

type nopNotifier struct{}

// NewNopNotifier drops every message; used when no broker is configured.
func NewNopNotifier() Notifier {
	return nopNotifier{}
}

func (nopNotifier) Notify(_ context.Context, msg Message) {
	log.Debug().Str("order_id", msg.OrderID).Str("event", msg.Event).Msg("notification skipped, no broker")
}

func (nopNotifier) Close() error { return nil }
