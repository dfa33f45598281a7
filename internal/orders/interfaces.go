package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shopzen/shopzen-backend/pkg/db/models"
	"github.com/shopzen/shopzen-backend/pkg/enums"
	"github.com/shopzen/shopzen-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and the cart rows they
// consume.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindCartItems(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error)
	DeleteCartItems(ctx context.Context, userID uuid.UUID) error
	CreateOrder(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindByIDForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus) error
	List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Order, int64, error)
	FindPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
}

// Inventory is the stock ledger used inside order transactions.
type Inventory interface {
	Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}
