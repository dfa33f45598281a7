package payments

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shopzen/shopzen-backend/pkg/db/models"
	"github.com/shopzen/shopzen-backend/pkg/enums"
)

const (
	ReasonPaymentNotFound   = "PAYMENT_NOT_FOUND"
	ReasonOrderAlreadyPaid  = "ORDER_ALREADY_PAID"
	ReasonOrderCancelled    = "ORDER_CANCELLED"
	ReasonPaymentCompleted  = "PAYMENT_ALREADY_COMPLETED"
	ReasonGatewayError      = "PAYMENT_GATEWAY_ERROR"
	ReasonInvalidSignature  = "INVALID_SIGNATURE"
	ReasonOrderNotPending   = "ORDER_NOT_PENDING"
	ReasonSuccessIsTerminal = "PAYMENT_SUCCESS_IS_FINAL"
)

type InitiateInput struct {
	UserID   uuid.UUID
	OrderID  uuid.UUID
	Provider enums.PaymentProvider
}

// VerifyInput carries the provider-side ids returned to the client checkout.
type VerifyInput struct {
	ProviderOrderID   string
	ProviderPaymentID string
	Signature         string
	Provider          enums.PaymentProvider
}

type UpdateStatusInput struct {
	PaymentID         uuid.UUID
	Status            enums.PaymentStatus
	ProviderPaymentID *string
	ActorID           uuid.UUID
}

type Prefill struct {
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Contact *string `json:"contact,omitempty"`
}

type Theme struct {
	Color string `json:"color"`
}

// GatewayDetails is what the client checkout widget needs to collect payment.
type GatewayDetails struct {
	Key          string  `json:"key"`
	OrderID      string  `json:"orderId"`
	Amount       int64   `json:"amount"`
	Currency     string  `json:"currency"`
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	ClientSecret string  `json:"clientSecret,omitempty"`
	Prefill      Prefill `json:"prefill"`
	Theme        Theme   `json:"theme"`
}

type PaymentDTO struct {
	ID                uuid.UUID             `json:"id"`
	OrderID           uuid.UUID             `json:"orderId"`
	Provider          enums.PaymentProvider `json:"provider"`
	ProviderOrderID   string                `json:"providerOrderId"`
	ProviderPaymentID *string               `json:"providerPaymentId,omitempty"`
	Amount            decimal.Decimal       `json:"amount"`
	Currency          string                `json:"currency"`
	Status            enums.PaymentStatus   `json:"status"`
	FailureReason     *string               `json:"failureReason,omitempty"`
	CreatedAt         time.Time             `json:"createdAt"`
	UpdatedAt         time.Time             `json:"updatedAt"`
}

func ToDTO(payment *models.Payment) PaymentDTO {
	return PaymentDTO{
		ID:                payment.ID,
		OrderID:           payment.OrderID,
		Provider:          payment.Provider,
		ProviderOrderID:   payment.ProviderOrderID,
		ProviderPaymentID: payment.ProviderPaymentID,
		Amount:            payment.Amount,
		Currency:          payment.Currency,
		Status:            payment.Status,
		FailureReason:     payment.FailureReason,
		CreatedAt:         payment.CreatedAt,
		UpdatedAt:         payment.UpdatedAt,
	}
}

type InitiateResult struct {
	Payment        PaymentDTO     `json:"payment"`
	GatewayDetails GatewayDetails `json:"gatewayDetails"`
}

// SuccessResult reports the latched payment and whether this call applied it.
type SuccessResult struct {
	Payment          PaymentDTO        `json:"payment"`
	OrderStatus      enums.OrderStatus `json:"orderStatus"`
	AlreadyProcessed bool              `json:"alreadyProcessed"`
}

// RazorpayWebhook is one raw Razorpay delivery.
type RazorpayWebhook struct {
	Body      []byte
	Signature string
	EventID   string
}

type razorpayWebhookBody struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID               string `json:"id"`
				OrderID          string `json:"order_id"`
				ErrorDescription string `json:"error_description"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}
