package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a catalog listing. Stock is only mutated through the inventory
// ledger.
type Product struct {
	ID                   uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Title                string          `gorm:"column:title;not null"`
	Description          *string         `gorm:"column:description"`
	Category             string          `gorm:"column:category;not null"`
	Brand                *string         `gorm:"column:brand"`
	SKU                  string          `gorm:"column:sku;not null;uniqueIndex"`
	Price                decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	DiscountPercentage   decimal.Decimal `gorm:"column:discount_percentage;type:numeric(5,2);not null;default:0"`
	Rating               decimal.Decimal `gorm:"column:rating;type:numeric(3,2);not null;default:0"`
	Stock                int             `gorm:"column:stock;not null;default:0"`
	MinimumOrderQuantity int             `gorm:"column:minimum_order_quantity;not null;default:1"`
	AvailabilityStatus   string          `gorm:"column:availability_status;not null;default:In Stock"`
	Thumbnail            *string         `gorm:"column:thumbnail"`
	CreatedAt            time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// DiscountedPrice is the unit price after the percentage discount, rounded to
// two decimals.
func (p Product) DiscountedPrice() decimal.Decimal {
	factor := decimal.NewFromInt(1).Sub(p.DiscountPercentage.Div(decimal.NewFromInt(100)))
	return p.Price.Mul(factor).Round(2)
}
