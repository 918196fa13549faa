package payment

import (
	"context"
	"errors"
	"strings"
	"testing"

	"visa-assessor/config"
)

func TestCheckoutURLFallbackLink(t *testing.T) {
	tests := []struct {
		name     string
		link     string
		email    string
		expected string
	}{
		{
			name:     "email appended",
			link:     "https://buy.stripe.com/test_premium",
			email:    "ada@example.com",
			expected: "https://buy.stripe.com/test_premium?prefilled_email=ada%40example.com",
		},
		{
			name:     "no email leaves link untouched",
			link:     "https://buy.stripe.com/test_premium",
			email:    "",
			expected: "https://buy.stripe.com/test_premium",
		},
		{
			name:     "existing query string",
			link:     "https://buy.stripe.com/test_premium?locale=en",
			email:    "ada@example.com",
			expected: "https://buy.stripe.com/test_premium?locale=en&prefilled_email=ada%40example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProcessor(&config.Config{CheckoutURL: tt.link, PremiumPrice: "24.99"})
			url, err := p.CheckoutURL(tt.email)
			if err != nil {
				t.Fatalf("CheckoutURL() error: %v", err)
			}
			if url != tt.expected {
				t.Errorf("CheckoutURL() = %s, want %s", url, tt.expected)
			}
		})
	}
}

func TestSimulateCompletion(t *testing.T) {
	p := NewProcessor(&config.Config{PremiumPrice: "24.99"})

	if err := p.SimulateCompletion(context.Background(), ModeCheckout); err == nil {
		t.Error("checkout mode should not be simulated")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.SimulateCompletion(ctx, ModeNative); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled simulation = %v, want context.Canceled", err)
	}
}

func TestCheckoutURLEscapesEmail(t *testing.T) {
	p := NewProcessor(&config.Config{CheckoutURL: "https://buy.stripe.com/x", PremiumPrice: "24.99"})
	url, err := p.CheckoutURL("a+b@example.com")
	if err != nil {
		t.Fatalf("CheckoutURL() error: %v", err)
	}
	if strings.Contains(url, "a+b@") {
		t.Errorf("email not escaped: %s", url)
	}
}
