package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shopzen/shopzen-backend/pkg/db/models"
	"github.com/shopzen/shopzen-backend/pkg/enums"
)

const (
	defaultUserListLimit  = 10
	defaultAdminListLimit = 20
)

// ListFilter narrows order listings. A nil UserID lists every user's orders.
type ListFilter struct {
	UserID *uuid.UUID
	Status *enums.OrderStatus
}

// ListInput carries the raw paging inputs from the HTTP layer.
type ListInput struct {
	Status *enums.OrderStatus
	Limit  int
	Offset int
}

// OrderList is the paginated list response.
type OrderList struct {
	Orders []OrderDTO `json:"orders"`
	Total  int64      `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

type OrderItemDTO struct {
	ID                 uuid.UUID       `json:"id"`
	ProductID          uuid.UUID       `json:"productId"`
	Title              string          `json:"title"`
	Quantity           int             `json:"quantity"`
	UnitPrice          decimal.Decimal `json:"unitPrice"`
	DiscountPercentage decimal.Decimal `json:"discountPercentage"`
	LineTotal          decimal.Decimal `json:"lineTotal"`
}

type PaymentSummary struct {
	ID              uuid.UUID             `json:"id"`
	Provider        enums.PaymentProvider `json:"provider"`
	ProviderOrderID string                `json:"providerOrderId"`
	Status          enums.PaymentStatus   `json:"status"`
}

// OrderDTO is the API shape of an order with its items, address and payment.
type OrderDTO struct {
	ID          uuid.UUID            `json:"id"`
	UserID      uuid.UUID            `json:"userId"`
	Status      enums.OrderStatus    `json:"status"`
	TotalAmount decimal.Decimal      `json:"totalAmount"`
	Currency    string               `json:"currency"`
	Items       []OrderItemDTO       `json:"items"`
	Address     *models.OrderAddress `json:"address,omitempty"`
	Payment     *PaymentSummary      `json:"payment,omitempty"`
	CreatedAt   time.Time            `json:"createdAt"`
	UpdatedAt   time.Time            `json:"updatedAt"`
}

// ToDTO maps an order model with its preloaded relations.
func ToDTO(order *models.Order) OrderDTO {
	dto := OrderDTO{
		ID:          order.ID,
		UserID:      order.UserID,
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
		Currency:    order.Currency,
		Items:       make([]OrderItemDTO, 0, len(order.Items)),
		Address:     order.Address,
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
	}
	for _, item := range order.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ID:                 item.ID,
			ProductID:          item.ProductID,
			Title:              item.Title,
			Quantity:           item.Quantity,
			UnitPrice:          item.UnitPrice,
			DiscountPercentage: item.DiscountPercentage,
			LineTotal:          item.LineTotal,
		})
	}
	if order.Payment != nil {
		dto.Payment = &PaymentSummary{
			ID:              order.Payment.ID,
			Provider:        order.Payment.Provider,
			ProviderOrderID: order.Payment.ProviderOrderID,
			Status:          order.Payment.Status,
		}
	}
	return dto
}
