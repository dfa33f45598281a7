package types

type SuccessEnvelope struct {
	Data any `json:"data"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// Webhook outcomes returned to payment providers.
const (
	WebhookProcessed = "processed"
	WebhookIgnored   = "ignored"
	WebhookDuplicate = "duplicate"
)

// WebhookAck is the body returned to a payment provider; any 2xx stops its retries.
type WebhookAck struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
	Event  string `json:"event,omitempty"`
}
