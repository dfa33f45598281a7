package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shopzen/shopzen-backend/internal/orders"
	"github.com/shopzen/shopzen-backend/pkg/db/models"
	"github.com/shopzen/shopzen-backend/pkg/enums"
	pkgerrors "github.com/shopzen/shopzen-backend/pkg/errors"
	"github.com/shopzen/shopzen-backend/pkg/llm"
)

const (
	OrderStatusName     = "getOrderStatus"
	unpaidStatus        = "UNPAID"
	orderNotYoursReply  = "Order not found or does not belong to you."
	invalidOrderIDReply = "Invalid Order ID format."
)

type orderReader interface {
	Get(ctx context.Context, orderID uuid.UUID, actor orders.Actor) (*models.Order, error)
}

type orderStatusResult struct {
	ID            uuid.UUID         `json:"id"`
	Status        enums.OrderStatus `json:"status"`
	Total         decimal.Decimal   `json:"total"`
	PaymentStatus string            `json:"paymentStatus"`
	Items         []string          `json:"items"`
	Date          time.Time         `json:"date"`
}

type orderStatus struct {
	orders orderReader
}

// OrderStatus looks up an order owned by the scoped user.
func OrderStatus(reader orderReader) Tool {
	return &orderStatus{orders: reader}
}

func (t *orderStatus) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        OrderStatusName,
		Description: "Get the current status and delivery info of a specific order.",
		Parameters:  objectSchema("orderCode", "The order ID or code provided by the user."),
	}
}

func (t *orderStatus) Execute(ctx context.Context, scope Scope, args map[string]any) (any, error) {
	orderID, err := uuid.Parse(strings.TrimSpace(stringArg(args, "orderCode")))
	if err != nil {
		return errorOutput(invalidOrderIDReply), nil
	}

	// Always read as a plain user so an admin's chat cannot reach other
	// customers' orders.
	order, err := t.orders.Get(ctx, orderID, orders.UserActor(scope.UserID, enums.UserRoleUser))
	if err != nil {
		switch pkgerrors.As(err).Code() {
		case pkgerrors.CodeNotFound, pkgerrors.CodeForbidden:
			return errorOutput(orderNotYoursReply), nil
		}
		return nil, err
	}

	paymentStatus := unpaidStatus
	if order.Payment != nil {
		paymentStatus = string(order.Payment.Status)
	}
	items := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, fmt.Sprintf("%dx %s", item.Quantity, item.Title))
	}
	return orderStatusResult{
		ID:            order.ID,
		Status:        order.Status,
		Total:         order.TotalAmount,
		PaymentStatus: paymentStatus,
		Items:         items,
		Date:          order.CreatedAt,
	}, nil
}
