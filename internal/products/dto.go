package product

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shopzen/shopzen-backend/pkg/db/models"
)

const (
	defaultListLimit   = 20
	defaultSearchLimit = 5

	ReasonSKUExists       = "SKU_EXISTS"
	ReasonProductNotFound = "PRODUCT_NOT_FOUND"
)

// CreateProductInput holds the validated payload to create a product.
// Rating is not accepted from callers.
type CreateProductInput struct {
	Title                string          `json:"title" validate:"required,min=2"`
	Description          *string         `json:"description" validate:"omitempty,min=5"`
	Category             string          `json:"category" validate:"required,min=2"`
	Brand                *string         `json:"brand" validate:"omitempty,min=1"`
	SKU                  string          `json:"sku" validate:"required,min=3"`
	Price                decimal.Decimal `json:"price"`
	DiscountPercentage   decimal.Decimal `json:"discountPercentage"`
	Stock                int             `json:"stock" validate:"gte=0"`
	MinimumOrderQuantity int             `json:"minimumOrderQuantity" validate:"required,gte=1"`
	AvailabilityStatus   string          `json:"availabilityStatus"`
	Thumbnail            *string         `json:"thumbnail" validate:"omitempty,url"`
}

// ListProductsInput captures the browse query.
type ListProductsInput struct {
	Page     int
	Limit    int
	Query    string
	Category string
}

// ListFilter is the repository-level filter.
type ListFilter struct {
	Query    string
	Category string
}

func (f ListFilter) normalized() ListFilter {
	return ListFilter{
		Query:    strings.ToLower(strings.TrimSpace(f.Query)),
		Category: strings.TrimSpace(f.Category),
	}
}

// ProductSummary is the list projection of a product.
type ProductSummary struct {
	ID                 uuid.UUID       `json:"id"`
	Title              string          `json:"title"`
	Price              decimal.Decimal `json:"price"`
	DiscountPercentage decimal.Decimal `json:"discountPercentage"`
	Rating             decimal.Decimal `json:"rating"`
	Category           string          `json:"category"`
	Thumbnail          *string         `json:"thumbnail,omitempty"`
	Stock              int             `json:"stock"`
	AvailabilityStatus string          `json:"availabilityStatus"`
}

// ProductDTO is the full product representation.
type ProductDTO struct {
	ProductSummary
	Description          *string   `json:"description,omitempty"`
	Brand                *string   `json:"brand,omitempty"`
	SKU                  string    `json:"sku"`
	MinimumOrderQuantity int       `json:"minimumOrderQuantity"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// ProductListResult is the page envelope returned by List.
type ProductListResult struct {
	Products []ProductSummary `json:"products"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	Limit    int              `json:"limit"`
	HasNext  bool             `json:"hasNext"`
}

// ToSummary projects a product onto the list shape.
func ToSummary(p models.Product) ProductSummary {
	return ProductSummary{
		ID:                 p.ID,
		Title:              p.Title,
		Price:              p.Price,
		DiscountPercentage: p.DiscountPercentage,
		Rating:             p.Rating,
		Category:           p.Category,
		Thumbnail:          p.Thumbnail,
		Stock:              p.Stock,
		AvailabilityStatus: p.AvailabilityStatus,
	}
}

// ToDTO maps a product model to its API representation.
func ToDTO(p *models.Product) *ProductDTO {
	if p == nil {
		return nil
	}
	return &ProductDTO{
		ProductSummary:       ToSummary(*p),
		Description:          p.Description,
		Brand:                p.Brand,
		SKU:                  p.SKU,
		MinimumOrderQuantity: p.MinimumOrderQuantity,
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
	}
}
