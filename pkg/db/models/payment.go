package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shopzen/shopzen-backend/pkg/enums"
)

// Payment is the single payment record of an order.
type Payment struct {
	ID                uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrderID           uuid.UUID             `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	Provider          enums.PaymentProvider `gorm:"column:provider;not null"`
	ProviderOrderID   string                `gorm:"column:provider_order_id;not null;uniqueIndex"`
	ProviderPaymentID *string               `gorm:"column:provider_payment_id"`
	Amount            decimal.Decimal       `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency          string                `gorm:"column:currency;not null;default:INR"`
	Status            enums.PaymentStatus   `gorm:"column:status;not null;default:CREATED"`
	FailureReason     *string               `gorm:"column:failure_reason"`
	CreatedAt         time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
