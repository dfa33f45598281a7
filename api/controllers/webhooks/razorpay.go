package webhooks

import (
	"net/http"

	"github.com/shopzen/shopzen-backend/api/responses"
	paymentsvc "github.com/shopzen/shopzen-backend/internal/payments"
	pkgerrors "github.com/shopzen/shopzen-backend/pkg/errors"
	"github.com/shopzen/shopzen-backend/pkg/logger"
)

// RazorpayWebhook forwards payment.captured / payment.failed deliveries. The
// event id header feeds the replay guard.
func RazorpayWebhook(svc RazorpayWebhookService, logg *logger.Logger) http.HandlerFunc {
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

		signature := r.Header.Get("X-Razorpay-Signature")
		if signature == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid webhook signature"))
			return
		}

		ack, err := svc.HandleRazorpayWebhook(ctx, paymentsvc.RazorpayWebhook{
			Body:      payload,
			Signature: signature,
			EventID:   r.Header.Get("X-Razorpay-Event-Id"),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		logAck(ctx, logg, "razorpay", ack)
		responses.WriteWebhookAck(w, ack)
	}
}
