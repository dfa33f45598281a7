package razorpay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	rzp "github.com/razorpay/razorpay-go"

	"github.com/shopzen/shopzen-backend/pkg/config"
	"github.com/shopzen/shopzen-backend/pkg/logger"
	"github.com/shopzen/shopzen-backend/pkg/security"
)

const maxReceiptLen = 40

var errCredentialsRequired = errors.New("razorpay key id and secret are required")

type orderCreator interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// Client wraps the Razorpay SDK and the shared secrets used for signature checks.
type Client struct {
	keyID         string
	keySecret     string
	webhookSecret string
	orders        orderCreator
}

// OrderRequest describes a Razorpay order for one local order.
type OrderRequest struct {
	AmountMinor int64
	Currency    string
	OrderID     string
	UserID      string
}

// Order is the subset of the Razorpay order entity the service keeps.
type Order struct {
	ID       string
	Amount   int64
	Currency string
	Receipt  string
	Status   string
}

func NewClient(ctx context.Context, cfg config.RazorpayConfig, logg *logger.Logger) (*Client, error) {
	if !cfg.Configured() {
		return nil, errCredentialsRequired
	}
	sdk := rzp.NewClient(strings.TrimSpace(cfg.KeyID), strings.TrimSpace(cfg.KeySecret))
	if logg != nil {
		logg.Info(ctx, "razorpay client initialized")
	}
	return &Client{
		keyID:         strings.TrimSpace(cfg.KeyID),
		keySecret:     strings.TrimSpace(cfg.KeySecret),
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		orders:        sdk.Order,
	}, nil
}

// KeyID is the public key handed to the checkout widget.
func (c *Client) KeyID() string {
	if c == nil {
		return ""
	}
	return c.keyID
}

// CreateOrder opens a Razorpay order; the SDK call is synchronous so ctx is only checked up front.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	if c == nil || c.orders == nil {
		return nil, errors.New("razorpay client not initialized")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.AmountMinor <= 0 {
		return nil, errors.New("razorpay amount must be positive")
	}
	body := map[string]interface{}{
		"amount":   req.AmountMinor,
		"currency": strings.ToUpper(req.Currency),
		"receipt":  Receipt(req.OrderID),
		"notes": map[string]interface{}{
			"orderId": req.OrderID,
			"userId":  req.UserID,
		},
	}
	resp, err := c.orders.Create(body, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay order create: %w", err)
	}
	id, _ := resp["id"].(string)
	if id == "" {
		return nil, errors.New("razorpay order create: response missing id")
	}
	order := &Order{
		ID:       id,
		Amount:   req.AmountMinor,
		Currency: strings.ToUpper(req.Currency),
		Receipt:  Receipt(req.OrderID),
	}
	if amount, ok := resp["amount"].(float64); ok {
		order.Amount = int64(amount)
	}
	if currency, ok := resp["currency"].(string); ok && currency != "" {
		order.Currency = currency
	}
	if status, ok := resp["status"].(string); ok {
		order.Status = status
	}
	return order, nil
}

// VerifyPaymentSignature checks the checkout callback signature over
// "<order_id>|<payment_id>" keyed with the API secret.
func (c *Client) VerifyPaymentSignature(providerOrderID, providerPaymentID, signature string) bool {
	if c == nil || c.keySecret == "" {
		return false
	}
	return security.VerifyHMACSHA256(c.keySecret, []byte(providerOrderID+"|"+providerPaymentID), signature)
}

// VerifyWebhookSignature checks X-Razorpay-Signature over the raw request body.
func (c *Client) VerifyWebhookSignature(body []byte, signature string) bool {
	if c == nil || c.webhookSecret == "" {
		return false
	}
	return security.VerifyHMACSHA256(c.webhookSecret, body, signature)
}

// Receipt truncates the local order id to Razorpay's receipt limit.
func Receipt(orderID string) string {
	if len(orderID) > maxReceiptLen {
		return orderID[:maxReceiptLen]
	}
	return orderID
}
