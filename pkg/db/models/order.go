package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shopzen/shopzen-backend/pkg/enums"
)

// Order is created from a cart; its total never changes after creation.
type Order struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	UserID      uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	Status      enums.OrderStatus `gorm:"column:status;not null;default:PENDING"`
	TotalAmount decimal.Decimal   `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Currency    string            `gorm:"column:currency;not null;default:INR"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`

	Items   []OrderItem   `gorm:"foreignKey:OrderID;references:ID"`
	Address *OrderAddress `gorm:"foreignKey:OrderID;references:ID"`
	Payment *Payment      `gorm:"foreignKey:OrderID;references:ID"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// OrderItem freezes the product's price at order time.
type OrderItem struct {
	ID                 uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID            uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID          uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Title              string          `gorm:"column:title;not null"`
	Quantity           int             `gorm:"column:quantity;not null"`
	UnitPrice          decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	DiscountPercentage decimal.Decimal `gorm:"column:discount_percentage;type:numeric(5,2);not null"`
	LineTotal          decimal.Decimal `gorm:"column:line_total;type:numeric(12,2);not null"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// OrderAddress is the shipping address snapshot taken at order time.
type OrderAddress struct {
	OrderID    uuid.UUID `gorm:"column:order_id;type:uuid;primaryKey" json:"-"`
	FullName   string    `gorm:"column:full_name;not null" json:"fullName"`
	Phone      string    `gorm:"column:phone;not null" json:"phone"`
	Line1      string    `gorm:"column:line1;not null" json:"line1"`
	Line2      *string   `gorm:"column:line2" json:"line2,omitempty"`
	City       string    `gorm:"column:city;not null" json:"city"`
	State      string    `gorm:"column:state;not null" json:"state"`
	PostalCode string    `gorm:"column:postal_code;not null" json:"postalCode"`
	Country    string    `gorm:"column:country;not null" json:"country"`
}
