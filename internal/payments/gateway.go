package payments

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	"github.com/shopzen/shopzen-backend/pkg/enums"
	"github.com/shopzen/shopzen-backend/pkg/razorpay"
	"github.com/shopzen/shopzen-backend/pkg/security"
	stripeclient "github.com/shopzen/shopzen-backend/pkg/stripe"
)

// GatewayOrderRequest describes the provider-side order for one local order.
type GatewayOrderRequest struct {
	OrderID     string
	UserID      string
	AmountMinor int64
	Currency    string
	Description string
}

// GatewayOrder is what a provider returned for a GatewayOrderRequest.
type GatewayOrder struct {
	ProviderOrderID string
	AmountMinor     int64
	Currency        string
	PublicKey       string
	ClientSecret    string
}

// Gateway opens provider-side orders and checks client confirmation signatures.
type Gateway interface {
	CreateOrder(ctx context.Context, req GatewayOrderRequest) (*GatewayOrder, error)
	VerifyPaymentSignature(providerOrderID, providerPaymentID, signature string) bool
}

// Gateways resolves the gateway for a provider, falling back to the local mock
// gateway when a provider has no credentials.
type Gateways struct {
	byProvider map[enums.PaymentProvider]Gateway
	fallback   Gateway
}

func NewGateways(fallback Gateway) *Gateways {
	return &Gateways{byProvider: map[enums.PaymentProvider]Gateway{}, fallback: fallback}
}

// Register binds a configured gateway. Nil gateways are ignored.
func (g *Gateways) Register(provider enums.PaymentProvider, gateway Gateway) *Gateways {
	if gateway != nil {
		g.byProvider[provider] = gateway
	}
	return g
}

func (g *Gateways) For(provider enums.PaymentProvider) Gateway {
	if gateway, ok := g.byProvider[provider]; ok {
		return gateway
	}
	return g.fallback
}

// ToMinorUnits converts a decimal amount to paise/cents.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

type razorpayOrders interface {
	KeyID() string
	CreateOrder(ctx context.Context, req razorpay.OrderRequest) (*razorpay.Order, error)
	VerifyPaymentSignature(providerOrderID, providerPaymentID, signature string) bool
}

type razorpayGateway struct {
	client razorpayOrders
}

// NewRazorpayGateway adapts the Razorpay client to Gateway.
func NewRazorpayGateway(client razorpayOrders) Gateway {
	return &razorpayGateway{client: client}
}

func (g *razorpayGateway) CreateOrder(ctx context.Context, req GatewayOrderRequest) (*GatewayOrder, error) {
	order, err := g.client.CreateOrder(ctx, razorpay.OrderRequest{
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
		OrderID:     req.OrderID,
		UserID:      req.UserID,
	})
	if err != nil {
		return nil, err
	}
	return &GatewayOrder{
		ProviderOrderID: order.ID,
		AmountMinor:     order.Amount,
		Currency:        order.Currency,
		PublicKey:       g.client.KeyID(),
	}, nil
}

func (g *razorpayGateway) VerifyPaymentSignature(providerOrderID, providerPaymentID, signature string) bool {
	return g.client.VerifyPaymentSignature(providerOrderID, providerPaymentID, signature)
}

type stripeIntents interface {
	CreatePaymentIntent(ctx context.Context, req stripeclient.PaymentIntentRequest) (*stripe.PaymentIntent, error)
}

type stripeGateway struct {
	client stripeIntents
}

// NewStripeGateway adapts the Stripe client to Gateway. Stripe payments are
// confirmed by webhook only, so client signatures never verify.
func NewStripeGateway(client stripeIntents) Gateway {
	return &stripeGateway{client: client}
}

func (g *stripeGateway) CreateOrder(ctx context.Context, req GatewayOrderRequest) (*GatewayOrder, error) {
	intent, err := g.client.CreatePaymentIntent(ctx, stripeclient.PaymentIntentRequest{
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
		OrderID:     req.OrderID,
		UserID:      req.UserID,
		Description: req.Description,
	})
	if err != nil {
		return nil, err
	}
	if intent == nil || intent.ID == "" {
		return nil, fmt.Errorf("stripe payment intent missing id")
	}
	return &GatewayOrder{
		ProviderOrderID: intent.ID,
		AmountMinor:     intent.Amount,
		Currency:        string(intent.Currency),
		ClientSecret:    intent.ClientSecret,
	}, nil
}

func (g *stripeGateway) VerifyPaymentSignature(string, string, string) bool {
	return false
}

const mockPublicKey = "mock_key_id"

type mockGateway struct {
	secret string
}

// NewMockGateway builds the local gateway used for providers without
// credentials. An empty secret makes every signature check fail.
func NewMockGateway(secret string) Gateway {
	return &mockGateway{secret: secret}
}

func (g *mockGateway) CreateOrder(_ context.Context, req GatewayOrderRequest) (*GatewayOrder, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate mock order id: %w", err)
	}
	return &GatewayOrder{
		ProviderOrderID: "order_" + hex.EncodeToString(buf),
		AmountMinor:     req.AmountMinor,
		Currency:        req.Currency,
		PublicKey:       mockPublicKey,
	}, nil
}

func (g *mockGateway) VerifyPaymentSignature(providerOrderID, providerPaymentID, signature string) bool {
	return security.VerifyHMACSHA256(g.secret, []byte(providerOrderID+"|"+providerPaymentID), signature)
}
