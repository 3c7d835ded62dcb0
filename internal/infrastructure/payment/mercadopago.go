package payment

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"merch-pickup/internal/domain"

	"github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/mercadopago/sdk-go/pkg/preference"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type mercadoPagoGateway struct {
	preferences     preference.Client
	payments        payment.Client
	notificationURL string
	returnURL       string
	currency        string
}

// NewMercadoPagoGateway builds the hosted-checkout gateway. notificationURL
// is where the gateway posts webhooks; returnURL is the storefront page the
// buyer comes back to.
func NewMercadoPagoGateway(accessToken, notificationURL, returnURL string) (PaymentGateway, error) {
	cfg, err := config.New(accessToken)
	if err != nil {
		return nil, fmt.Errorf("mercadopago config: %w", err)
	}
	return &mercadoPagoGateway{
		preferences:     preference.NewClient(cfg),
		payments:        payment.NewClient(cfg),
		notificationURL: notificationURL,
		returnURL:       strings.TrimRight(returnURL, "/"),
		currency:        "ARS",
	}, nil
}

func (g *mercadoPagoGateway) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	title := req.Title
	if title == "" {
		title = "Order " + req.OrderID.String()
	}
	request := preference.Request{
		Items: []preference.ItemRequest{{
			Title:      title,
			Quantity:   1,
			UnitPrice:  req.Amount.InexactFloat64(),
			CurrencyID: g.currency,
		}},
		Payer:             &preference.PayerRequest{Email: req.PayerEmail},
		ExternalReference: req.OrderID.String(),
		NotificationURL:   g.notificationURL,
	}
	if g.returnURL != "" {
		back := g.returnURL + "/confirmation?order=" + req.OrderID.String()
		request.BackURLs = &preference.BackURLsRequest{Success: back, Pending: back, Failure: back}
		request.AutoReturn = "approved"
	}

	resource, err := g.preferences.Create(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("%w: create preference: %v", domain.ErrPaymentUnavailable, err)
	}
	log.Info().
		Str("order_id", req.OrderID.String()).
		Str("preference_id", resource.ID).
		Msg("checkout preference created")
	return &Charge{PreferenceID: resource.ID, PaymentURL: resource.InitPoint}, nil
}

func (g *mercadoPagoGateway) GetPayment(ctx context.Context, paymentID string) (*domain.PaymentRecord, error) {
	id, err := strconv.Atoi(paymentID)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed payment id %q", ErrPaymentNotFound, paymentID)
	}
	resource, err := g.payments.Get(ctx, id)
	if err != nil {
		if strings.Contains(err.Error(), "404") {
			return nil, fmt.Errorf("%w: %s", ErrPaymentNotFound, paymentID)
		}
		return nil, fmt.Errorf("%w: get payment %s: %v", domain.ErrPaymentUnavailable, paymentID, err)
	}

	return &domain.PaymentRecord{
		ID:                strconv.Itoa(resource.ID),
		Status:            resource.Status,
		StatusDetail:      resource.StatusDetail,
		TransactionAmount: decimal.NewFromFloat(resource.TransactionAmount),
		CurrencyID:        resource.CurrencyID,
		PaymentMethodID:   resource.PaymentMethodID,
		Installments:      resource.Installments,
		DateCreated:       timeOrNil(resource.DateCreated),
		DateApproved:      timeOrNil(resource.DateApproved),
		ExternalID:        resource.ExternalReference,
	}, nil
}

func timeOrNil(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
