package payments

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

type checkoutSessions interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// StripeConfig configures Checkout sessions.
type StripeConfig struct {
	SecretKey  string
	SuccessURL string
	CancelURL  string
	Currency   string
}

// StripeLinker creates a Stripe Checkout session per appointment. The
// appointment id travels as client_reference_id and metadata so the
// payment callback can find it again.
type StripeLinker struct {
	sessions   checkoutSessions
	successURL string
	cancelURL  string
	currency   string
}

// NewStripeLinker returns nil without a secret key.
func NewStripeLinker(cfg StripeConfig) *StripeLinker {
	if cfg.SecretKey == "" {
		return nil
	}
	sc := client.New(cfg.SecretKey, nil)
	return newStripeLinker(sc.CheckoutSessions, cfg)
}

func newStripeLinker(sessions checkoutSessions, cfg StripeConfig) *StripeLinker {
	if cfg.Currency == "" {
		cfg.Currency = string(stripe.CurrencyINR)
	}
	return &StripeLinker{
		sessions:   sessions,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
		currency:   cfg.Currency,
	}
}

func (s *StripeLinker) PaymentLink(ctx context.Context, req LinkRequest) (string, error) {
	if req.Fee <= 0 {
		return "", fmt.Errorf("payments: fee must be positive")
	}
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(s.successURL),
		CancelURL:         stripe.String(s.cancelURL),
		ClientReferenceID: stripe.String(req.AppointmentID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(s.currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(fmt.Sprintf("Consultation with %s", req.DoctorName)),
					},
					UnitAmount: stripe.Int64(int64(req.Fee) * 100),
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	params.AddMetadata("appointment_id", req.AppointmentID)
	params.AddMetadata("phone", req.Phone)

	sess, err := s.sessions.New(params)
	if err != nil {
		return "", fmt.Errorf("payments: create checkout session: %w", err)
	}
	if sess.URL == "" {
		return "", fmt.Errorf("payments: checkout session %s has no url", sess.ID)
	}
	return sess.URL, nil
}
