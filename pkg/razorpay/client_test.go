package razorpay

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shopzen/shopzen-backend/pkg/config"
	"github.com/shopzen/shopzen-backend/pkg/security"
)

type stubOrders struct {
	body map[string]interface{}
	resp map[string]interface{}
	err  error
}

func (s *stubOrders) Create(data map[string]interface{}, _ map[string]string) (map[string]interface{}, error) {
	s.body = data
	return s.resp, s.err
}

func TestCreateOrderSendsPaiseAndReceipt(t *testing.T) {
	orders := &stubOrders{resp: map[string]interface{}{
		"id":       "order_ABC",
		"amount":   float64(18000),
		"currency": "INR",
		"status":   "created",
	}}
	client := &Client{keyID: "rzp_test", keySecret: "secret", orders: orders}
	orderID := "0b5d1d3e-4a3f-4bde-9a43-2f8f0c7d5e11"

	order, err := client.CreateOrder(context.Background(), OrderRequest{
		AmountMinor: 18000,
		Currency:    "inr",
		OrderID:     orderID,
		UserID:      "user-1",
	})
	require.NoError(t, err)
	require.Equal(t, "order_ABC", order.ID)
	require.Equal(t, int64(18000), order.Amount)
	require.Equal(t, "created", order.Status)

	require.Equal(t, int64(18000), orders.body["amount"])
	require.Equal(t, "INR", orders.body["currency"])
	require.Len(t, orders.body["receipt"], 36)
	notes := orders.body["notes"].(map[string]interface{})
	require.Equal(t, orderID, notes["orderId"])
}

func TestCreateOrderWrapsSDKError(t *testing.T) {
	client := &Client{orders: &stubOrders{err: errors.New("BAD_REQUEST_ERROR")}}
	_, err := client.CreateOrder(context.Background(), OrderRequest{AmountMinor: 100, Currency: "INR", OrderID: "o"})
	require.ErrorContains(t, err, "BAD_REQUEST_ERROR")
}

func TestCreateOrderRejectsMissingID(t *testing.T) {
	client := &Client{orders: &stubOrders{resp: map[string]interface{}{}}}
	_, err := client.CreateOrder(context.Background(), OrderRequest{AmountMinor: 100, Currency: "INR", OrderID: "o"})
	require.Error(t, err)
}

func TestReceiptTruncates(t *testing.T) {
	long := strings.Repeat("a", 64)
	require.Len(t, Receipt(long), 40)
	require.Equal(t, "short", Receipt("short"))
}

func TestVerifyPaymentSignature(t *testing.T) {
	client := &Client{keySecret: "secret"}
	sig := security.SignHMACSHA256("secret", []byte("order_1|pay_1"))

	require.True(t, client.VerifyPaymentSignature("order_1", "pay_1", sig))
	require.False(t, client.VerifyPaymentSignature("order_1", "pay_2", sig))
	require.False(t, client.VerifyPaymentSignature("order_1", "pay_1", "not-hex"))
}

func TestVerifyWebhookSignatureUsesRawBody(t *testing.T) {
	client := &Client{webhookSecret: "whsec"}
	body := []byte(`{"event":"payment.captured",  "payload":{}}`)
	sig := security.SignHMACSHA256("whsec", body)

	require.True(t, client.VerifyWebhookSignature(body, sig))
	require.False(t, client.VerifyWebhookSignature([]byte(`{"event":"payment.captured","payload":{}}`), sig))
	require.False(t, (&Client{}).VerifyWebhookSignature(body, sig))
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient(context.Background(), config.RazorpayConfig{KeyID: "rzp"}, nil)
	require.ErrorIs(t, err, errCredentialsRequired)
}
