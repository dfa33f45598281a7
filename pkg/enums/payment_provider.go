package enums

import (
	"fmt"
	"strings"
)

// PaymentProvider names the gateway that owns a payment.
type PaymentProvider string

const (
	PaymentProviderRazorpay PaymentProvider = "RAZORPAY"
	PaymentProviderStripe   PaymentProvider = "STRIPE"
	PaymentProviderPaypal   PaymentProvider = "PAYPAL"
	// PaymentProviderMock is only written by the non-production mock flow.
	PaymentProviderMock PaymentProvider = "MOCK"
)

var validPaymentProviders = []PaymentProvider{
	PaymentProviderRazorpay,
	PaymentProviderStripe,
	PaymentProviderPaypal,
	PaymentProviderMock,
}

func (p PaymentProvider) String() string {
	return string(p)
}

func (p PaymentProvider) IsValid() bool {
	for _, candidate := range validPaymentProviders {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsClientSelectable reports whether a client may request the provider.
func (p PaymentProvider) IsClientSelectable() bool {
	return p.IsValid() && p != PaymentProviderMock
}

func ParsePaymentProvider(value string) (PaymentProvider, error) {
	normalized := PaymentProvider(strings.ToUpper(strings.TrimSpace(value)))
	if normalized.IsValid() {
		return normalized, nil
	}
	return "", fmt.Errorf("invalid payment provider %q", value)
}
