package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/shopzen/shopzen-backend/api/responses"
	paymentsvc "github.com/shopzen/shopzen-backend/internal/payments"
	pkgerrors "github.com/shopzen/shopzen-backend/pkg/errors"
	"github.com/shopzen/shopzen-backend/pkg/logger"
	"github.com/shopzen/shopzen-backend/pkg/types"
)

const maxWebhookBytes = 1 << 20

// StripeWebhookService verifies and applies one Stripe delivery.
type StripeWebhookService interface {
	HandleStripeWebhook(ctx context.Context, body []byte, signatureHeader string) (types.WebhookAck, error)
}

// RazorpayWebhookService verifies and applies one Razorpay delivery.
type RazorpayWebhookService interface {
	HandleRazorpayWebhook(ctx context.Context, delivery paymentsvc.RazorpayWebhook) (types.WebhookAck, error)
}

// StripeWebhook hands the exact request bytes to the payment engine; the
// signature covers the raw body, so nothing is decoded here.
func StripeWebhook(svc StripeWebhookService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := readRawBody(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		sigHeader := r.Header.Get("Stripe-Signature")
		if sigHeader == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid webhook signature"))
			return
		}

		ack, err := svc.HandleStripeWebhook(ctx, payload, sigHeader)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		logAck(ctx, logg, "stripe", ack)
		responses.WriteWebhookAck(w, ack)
	}
}

func readRawBody(r *http.Request) ([]byte, error) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body")
	}
	if len(payload) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request body is required")
	}
	return payload, nil
}

func logAck(ctx context.Context, logg *logger.Logger, provider string, ack types.WebhookAck) {
	if logg == nil {
		return
	}
	ctx = logg.WithFields(ctx, map[string]any{
		"provider":       provider,
		"webhook_event":  ack.Event,
		"webhook_status": ack.Status,
	})
	logg.Info(ctx, "webhook.handled")
}
