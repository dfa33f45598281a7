package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shopzen/shopzen-backend/pkg/db/models"
)

const (
	ReasonProductNotFound   = "PRODUCT_NOT_FOUND"
	ReasonInsufficientStock = "INSUFFICIENT_STOCK"
	ReasonItemNotFound      = "CART_ITEM_NOT_FOUND"
)

// AddItemInput is the payload for adding a product. Quantity defaults to 1.
type AddItemInput struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Quantity  int       `json:"quantity" validate:"omitempty,gte=1"`
}

type UpdateItemInput struct {
	Quantity int `json:"quantity" validate:"required,gte=1"`
}

// ProductSnapshot is the product data shown on a cart line.
type ProductSnapshot struct {
	ID                 uuid.UUID       `json:"id"`
	Title              string          `json:"title"`
	Price              decimal.Decimal `json:"price"`
	DiscountPercentage decimal.Decimal `json:"discountPercentage"`
	Thumbnail          *string         `json:"thumbnail,omitempty"`
	Stock              int             `json:"stock"`
	AvailabilityStatus string          `json:"availabilityStatus"`
}

type ItemDTO struct {
	ID        uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"productId"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"lineTotal"`
	Product   ProductSnapshot `json:"product"`
}

// CartDTO is a priced view of the user's cart.
type CartDTO struct {
	UserID    uuid.UUID       `json:"userId"`
	Items     []ItemDTO       `json:"items"`
	ItemCount int             `json:"itemCount"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Discount  decimal.Decimal `json:"discount"`
	Total     decimal.Decimal `json:"total"`
}

func snapshot(p *models.Product) ProductSnapshot {
	if p == nil {
		return ProductSnapshot{}
	}
	return ProductSnapshot{
		ID:                 p.ID,
		Title:              p.Title,
		Price:              p.Price,
		DiscountPercentage: p.DiscountPercentage,
		Thumbnail:          p.Thumbnail,
		Stock:              p.Stock,
		AvailabilityStatus: p.AvailabilityStatus,
	}
}

// Price builds the cart view. Line totals are rounded per line and the cart
// total is their sum.
func Price(userID uuid.UUID, items []models.CartItem) *CartDTO {
	out := &CartDTO{
		UserID:   userID,
		Items:    make([]ItemDTO, 0, len(items)),
		Subtotal: decimal.Zero,
		Discount: decimal.Zero,
		Total:    decimal.Zero,
	}
	hundred := decimal.NewFromInt(100)
	for _, item := range items {
		dto := ItemDTO{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			LineTotal: decimal.Zero,
			Product:   snapshot(item.Product),
		}
		out.ItemCount += item.Quantity
		if item.Product != nil {
			qty := decimal.NewFromInt(int64(item.Quantity))
			gross := item.Product.Price.Mul(qty)
			factor := decimal.NewFromInt(1).Sub(item.Product.DiscountPercentage.Div(hundred))
			dto.LineTotal = gross.Mul(factor).Round(2)
			out.Subtotal = out.Subtotal.Add(gross)
			out.Total = out.Total.Add(dto.LineTotal)
		}
		out.Items = append(out.Items, dto)
	}
	out.Subtotal = out.Subtotal.Round(2)
	out.Discount = out.Subtotal.Sub(out.Total)
	return out
}
