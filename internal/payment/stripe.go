package payment

import (
	"context"
	"strings"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/checkout/session"
	"github.com/stripe/stripe-go/v74/paymentintent"
)

// StripeGateway is a thin wrapper around stripe-go. Intents back the
// embedded flow, checkout sessions back the hosted flow; Confirm dispatches
// on the handle prefix.
type StripeGateway struct{}

func NewStripeGateway(secretKey string) *StripeGateway {
	stripe.Key = secretKey
	return &StripeGateway{}
}

func (g *StripeGateway) CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(amountCents),
		Currency:           stripe.String(currency),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, err
	}
	return &Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

func (g *StripeGateway) CreateHostedSession(ctx context.Context, amountCents int64, currency, successURL, cancelURL string, metadata map[string]string) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(currency),
					UnitAmount: stripe.Int64(amountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("Car rental booking"),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	s, err := session.New(params)
	if err != nil {
		return nil, err
	}
	return &Session{ID: s.ID, RedirectURL: s.URL}, nil
}

func (g *StripeGateway) Confirm(ctx context.Context, handleID string) (Status, error) {
	if strings.HasPrefix(handleID, "cs_") {
		return g.confirmSession(handleID)
	}
	return g.confirmIntent(handleID)
}

func (g *StripeGateway) confirmIntent(id string) (Status, error) {
	pi, err := paymentintent.Get(id, nil)
	if err != nil {
		return StatusFailed, err
	}
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return StatusSucceeded, nil
	case stripe.PaymentIntentStatusProcessing, stripe.PaymentIntentStatusRequiresAction, stripe.PaymentIntentStatusRequiresConfirmation:
		return StatusPending, nil
	default:
		return StatusFailed, nil
	}
}

func (g *StripeGateway) confirmSession(id string) (Status, error) {
	s, err := session.Get(id, nil)
	if err != nil {
		return StatusFailed, err
	}
	switch s.PaymentStatus {
	case stripe.CheckoutSessionPaymentStatusPaid, stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		return StatusSucceeded, nil
	case stripe.CheckoutSessionPaymentStatusUnpaid:
		return StatusPending, nil
	default:
		return StatusFailed, nil
	}
}

// Cancel releases the provider-side handle. Cancellation of the local draft
// never depends on this succeeding.
func (g *StripeGateway) Cancel(ctx context.Context, handleID string) error {
	if strings.HasPrefix(handleID, "cs_") {
		_, err := session.Expire(handleID, nil)
		return err
	}
	_, err := paymentintent.Cancel(handleID, nil)
	return err
}

var _ Gateway = (*StripeGateway)(nil)
