package payments

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/shopzen/shopzen-backend/pkg/errors"
	"github.com/shopzen/shopzen-backend/pkg/types"
)

const (
	providerRazorpay = "razorpay"
	providerStripe   = "stripe"

	razorpayEventCaptured = "payment.captured"
	razorpayEventFailed   = "payment.failed"

	ignoredNotFound = "not_found"
)

type razorpayWebhookVerifier interface {
	VerifyWebhookSignature(body []byte, signature string) bool
}

type stripeEventConstructor interface {
	ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error)
}

// HandleRazorpayWebhook verifies the signature over the exact raw body before
// anything is decoded.
func (s *service) HandleRazorpayWebhook(ctx context.Context, delivery RazorpayWebhook) (types.WebhookAck, error) {
	if s.razorpay == nil {
		return types.WebhookAck{}, pkgerrors.New(pkgerrors.CodeDependency, "razorpay webhooks are not configured")
	}
	if !s.razorpay.VerifyWebhookSignature(delivery.Body, delivery.Signature) {
		s.metrics.Webhook(providerRazorpay, "invalid_signature")
		return types.WebhookAck{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid webhook signature").
			WithReason(ReasonInvalidSignature)
	}

	var body razorpayWebhookBody
	if err := json.Unmarshal(delivery.Body, &body); err != nil {
		s.metrics.Webhook(providerRazorpay, "malformed")
		return types.WebhookAck{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed webhook body")
	}

	eventID := strings.TrimSpace(delivery.EventID)
	if eventID == "" {
		eventID = BodyEventID(delivery.Body)
	}
	return s.guarded(ctx, providerRazorpay, eventID, body.Event, func() (types.WebhookAck, error) {
		entity := body.Payload.Payment.Entity
		switch body.Event {
		case razorpayEventCaptured:
			return s.webhookSuccess(ctx, body.Event, entity.OrderID, entity.ID)
		case razorpayEventFailed:
			return s.webhookFailure(ctx, body.Event, entity.OrderID, entity.ErrorDescription)
		default:
			return types.WebhookAck{Status: types.WebhookIgnored, Event: body.Event}, nil
		}
	})
}

func (s *service) HandleStripeWebhook(ctx context.Context, body []byte, signatureHeader string) (types.WebhookAck, error) {
	if s.stripe == nil {
		return types.WebhookAck{}, pkgerrors.New(pkgerrors.CodeDependency, "stripe webhooks are not configured")
	}
	event, err := s.stripe.ConstructEvent(body, signatureHeader)
	if err != nil {
		s.metrics.Webhook(providerStripe, "invalid_signature")
		return types.WebhookAck{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook signature").
			WithReason(ReasonInvalidSignature)
	}

	eventType := string(event.Type)
	return s.guarded(ctx, providerStripe, event.ID, eventType, func() (types.WebhookAck, error) {
		switch event.Type {
		case stripe.EventTypePaymentIntentSucceeded, stripe.EventTypePaymentIntentPaymentFailed:
		default:
			return types.WebhookAck{Status: types.WebhookIgnored, Event: eventType}, nil
		}
		if event.Data == nil {
			return types.WebhookAck{}, pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
		}
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return types.WebhookAck{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent")
		}
		if event.Type == stripe.EventTypePaymentIntentSucceeded {
			paymentID := intent.ID
			if intent.LatestCharge != nil && intent.LatestCharge.ID != "" {
				paymentID = intent.LatestCharge.ID
			}
			return s.webhookSuccess(ctx, eventType, intent.ID, paymentID)
		}
		var reason string
		if intent.LastPaymentError != nil {
			reason = intent.LastPaymentError.Msg
		}
		return s.webhookFailure(ctx, eventType, intent.ID, reason)
	})
}

// guarded runs fn at most once per provider event id. A failed run clears the
// mark so the provider's retry gets another attempt.
func (s *service) guarded(ctx context.Context, provider, eventID, eventName string, fn func() (types.WebhookAck, error)) (types.WebhookAck, error) {
	if s.guard != nil {
		seen, err := s.guard.CheckAndMark(ctx, provider, eventID)
		if err != nil {
			s.metrics.Webhook(provider, "error")
			return types.WebhookAck{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "webhook replay guard")
		}
		if seen {
			s.metrics.Webhook(provider, types.WebhookDuplicate)
			return types.WebhookAck{Status: types.WebhookDuplicate, Event: eventName}, nil
		}
	}

	ack, err := fn()
	if err != nil {
		s.metrics.Webhook(provider, "error")
		if s.guard != nil {
			if delErr := s.guard.Delete(ctx, provider, eventID); delErr != nil && s.logg != nil {
				s.logg.Error(s.logg.WithField(ctx, "event_id", eventID), "failed to clear webhook replay mark", delErr)
			}
		}
		return types.WebhookAck{}, err
	}
	s.metrics.Webhook(provider, ack.Status)
	return ack, nil
}

func (s *service) webhookSuccess(ctx context.Context, event, providerOrderID, providerPaymentID string) (types.WebhookAck, error) {
	if providerOrderID == "" {
		return types.WebhookAck{Status: types.WebhookIgnored, Reason: "missing_order_id", Event: event}, nil
	}
	if _, err := s.HandleSuccess(ctx, providerOrderID, providerPaymentID); err != nil {
		if pkgerrors.Reason(err) == ReasonPaymentNotFound {
			s.logUnknownOrder(ctx, event, providerOrderID)
			return types.WebhookAck{Status: types.WebhookIgnored, Reason: ignoredNotFound, Event: event}, nil
		}
		return types.WebhookAck{}, err
	}
	return types.WebhookAck{Status: types.WebhookProcessed, Event: event}, nil
}

func (s *service) webhookFailure(ctx context.Context, event, providerOrderID, reason string) (types.WebhookAck, error) {
	if providerOrderID == "" {
		return types.WebhookAck{Status: types.WebhookIgnored, Reason: "missing_order_id", Event: event}, nil
	}
	if _, err := s.HandleFailure(ctx, providerOrderID, reason); err != nil {
		if pkgerrors.Reason(err) == ReasonPaymentNotFound {
			s.logUnknownOrder(ctx, event, providerOrderID)
			return types.WebhookAck{Status: types.WebhookIgnored, Reason: ignoredNotFound, Event: event}, nil
		}
		return types.WebhookAck{}, err
	}
	return types.WebhookAck{Status: types.WebhookProcessed, Event: event}, nil
}

func (s *service) logUnknownOrder(ctx context.Context, event, providerOrderID string) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"event":             event,
		"provider_order_id": providerOrderID,
	})
	s.logg.Warn(logCtx, "webhook for unknown provider order ignored")
}
