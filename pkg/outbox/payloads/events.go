package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shopzen/shopzen-backend/pkg/enums"
)

type OrderItemLine struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// OrderCreatedEvent is emitted once a cart has been converted into an order.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID       `json:"order_id"`
	UserID      uuid.UUID       `json:"user_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Currency    string          `json:"currency"`
	Items       []OrderItemLine `json:"items"`
}

// OrderStatusChangedEvent records any guarded status transition.
type OrderStatusChangedEvent struct {
	OrderID uuid.UUID         `json:"order_id"`
	UserID  uuid.UUID         `json:"user_id"`
	From    enums.OrderStatus `json:"from"`
	To      enums.OrderStatus `json:"to"`
}

// OrderCanceledEvent is emitted when a cancellation released stock. Expired
// orders reuse it under the order_expired event type.
type OrderCanceledEvent struct {
	OrderID       uuid.UUID         `json:"order_id"`
	UserID        uuid.UUID         `json:"user_id"`
	PreviousState enums.OrderStatus `json:"previous_state"`
	CanceledAt    time.Time         `json:"canceled_at"`
	Reason        string            `json:"reason,omitempty"`
}

// OrderPaidEvent is emitted exactly once per order, when the payment latches.
type OrderPaidEvent struct {
	OrderID   uuid.UUID             `json:"order_id"`
	UserID    uuid.UUID             `json:"user_id"`
	PaymentID uuid.UUID             `json:"payment_id"`
	Provider  enums.PaymentProvider `json:"provider"`
	Amount    decimal.Decimal       `json:"amount"`
	PaidAt    time.Time             `json:"paid_at"`
}

// PaymentStatusEvent reports a payment reaching SUCCESS or FAILED.
type PaymentStatusEvent struct {
	PaymentID         uuid.UUID             `json:"payment_id"`
	OrderID           uuid.UUID             `json:"order_id"`
	Provider          enums.PaymentProvider `json:"provider"`
	ProviderOrderID   string                `json:"provider_order_id"`
	ProviderPaymentID string                `json:"provider_payment_id,omitempty"`
	Status            enums.PaymentStatus   `json:"status"`
	Reason            string                `json:"reason,omitempty"`
}

// ChatEscalatedEvent asks a human agent to pick up a conversation.
type ChatEscalatedEvent struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	UserID         uuid.UUID `json:"user_id"`
	Reason         string    `json:"reason"`
}
