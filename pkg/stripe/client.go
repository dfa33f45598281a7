package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/shopzen/shopzen-backend/pkg/config"
	"github.com/shopzen/shopzen-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errSecretRequired   = errors.New("stripe webhook secret is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
	errNotInitialized   = errors.New("stripe client not initialized")
)

// keyPrefixes lists the secret and restricted key prefixes accepted per env.
var keyPrefixes = map[string][]string{
	testEnv: {"sk_test_", "rk_test_"},
	liveEnv: {"sk_live_", "rk_live_"},
}

type createIntentFunc func(context.Context, *stripe.PaymentIntentCreateParams) (*stripe.PaymentIntent, error)

// Client creates PaymentIntents through a per-instance stripe.Client and
// verifies webhook payloads with the endpoint signing secret.
type Client struct {
	environment   string
	signingSecret string
	createIntent  createIntentFunc
}

// PaymentIntentRequest describes the PaymentIntent for one local order.
type PaymentIntentRequest struct {
	AmountMinor int64
	Currency    string
	OrderID     string
	UserID      string
	Description string
}

// NewClient rejects a key whose prefix does not match SHOPZEN_STRIPE_ENV so
// a live key never runs against a test deployment or the reverse.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env := strings.ToLower(strings.TrimSpace(cfg.Environment()))
	if env == "" {
		env = testEnv
	}
	prefixes, ok := keyPrefixes[env]
	if !ok {
		return nil, errInvalidStripeEnv
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	secret := strings.TrimSpace(cfg.Secret)
	switch {
	case apiKey == "":
		return nil, errAPIKeyRequired
	case secret == "":
		return nil, errSecretRequired
	case !hasAnyPrefix(apiKey, prefixes):
		return nil, fmt.Errorf("stripe %s environment requires a key starting with %s", env, strings.Join(prefixes, " or "))
	}

	api := stripe.NewClient(apiKey)
	if logg != nil {
		logg.Info(logg.WithField(ctx, "stripe_env", env), "stripe.client_ready")
	}
	return &Client{
		environment:   env,
		signingSecret: secret,
		createIntent:  api.V1PaymentIntents.Create,
	}, nil
}

// CreatePaymentIntent opens a PaymentIntent carrying orderId metadata. The
// Stripe idempotency key is derived from the order so a retried initiate
// returns the same intent.
func (c *Client) CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest) (*stripe.PaymentIntent, error) {
	if c == nil || c.createIntent == nil {
		return nil, errNotInitialized
	}
	if req.AmountMinor <= 0 {
		return nil, fmt.Errorf("stripe amount must be positive, got %d", req.AmountMinor)
	}

	metadata := map[string]string{"orderId": req.OrderID}
	if req.UserID != "" {
		metadata["userId"] = req.UserID
	}
	params := &stripe.PaymentIntentCreateParams{
		Amount:      stripe.Int64(req.AmountMinor),
		Currency:    stripe.String(strings.ToLower(req.Currency)),
		Description: stripe.String(req.Description),
		Metadata:    metadata,
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if req.OrderID != "" {
		params.SetIdempotencyKey("shopzen-order-" + req.OrderID)
	}
	return c.createIntent(ctx, params)
}

// ConstructEvent checks the Stripe-Signature header against the raw body
// and the default timestamp tolerance.
func (c *Client) ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	if c == nil {
		return stripe.Event{}, errNotInitialized
	}
	return webhook.ConstructEvent(payload, sigHeader, c.signingSecret)
}

func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
