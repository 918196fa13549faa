package payment

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"

	"visa-assessor/config"
)

// Mode identifies how a premium purchase completed.
type Mode string

const (
	ModeCheckout Mode = "checkout"
	ModeNative   Mode = "native"
	ModeDemo     Mode = "demo"
)

// Completion delays for the simulated flows.
const (
	nativeDelay = 2 * time.Second
	demoDelay   = 1500 * time.Millisecond
)

// Processor builds Stripe checkout sessions for the premium report and
// simulates the on-device purchase flows.
type Processor struct {
	cfg *config.Config
}

// NewProcessor configures the Stripe client from the app config.
func NewProcessor(cfg *config.Config) *Processor {
	if cfg.StripeSecretKey != "" {
		stripe.Key = cfg.StripeSecretKey
	}
	return &Processor{cfg: cfg}
}

// CheckoutURL returns the URL to redirect the user to. With an API key
// configured it creates a Checkout session; without one it falls back to
// the static payment link with the email pre-filled.
func (p *Processor) CheckoutURL(email string) (string, error) {
	if p.cfg.StripeSecretKey == "" {
		return p.paymentLink(email), nil
	}

	amount, err := decimal.NewFromString(p.cfg.PremiumPrice)
	if err != nil {
		return "", fmt.Errorf("invalid premium price %q: %w", p.cfg.PremiumPrice, err)
	}
	pence := amount.Mul(decimal.NewFromInt(100)).IntPart()

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(p.cfg.SuccessURL),
		CancelURL:  stripe.String(p.cfg.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(string(stripe.CurrencyGBP)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("Premium Eligibility Report"),
					},
					UnitAmount: stripe.Int64(pence),
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	if email != "" {
		params.CustomerEmail = stripe.String(email)
	}

	s, err := session.New(params)
	if err != nil {
		log.Warnf("stripe checkout session failed, falling back to payment link: %v", err)
		return p.paymentLink(email), nil
	}
	return s.URL, nil
}

func (p *Processor) paymentLink(email string) string {
	link := p.cfg.CheckoutURL
	if email == "" {
		return link
	}
	sep := "?"
	if strings.Contains(link, "?") {
		sep = "&"
	}
	return link + sep + "prefilled_email=" + url.QueryEscape(email)
}

// SimulateCompletion blocks for the mode's completion delay, honoring
// context cancellation. Only the native and demo modes are simulated.
func (p *Processor) SimulateCompletion(ctx context.Context, mode Mode) error {
	var delay time.Duration
	switch mode {
	case ModeNative:
		delay = nativeDelay
	case ModeDemo:
		delay = demoDelay
	default:
		return fmt.Errorf("mode %q is not simulated", mode)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}
