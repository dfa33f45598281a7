package payments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shopzen/shopzen-backend/pkg/db"
	"github.com/shopzen/shopzen-backend/pkg/db/models"
)

// Repository persists payments and reads the orders they settle.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
	FindByID(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error)
	FindByIDForUpdate(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	FindByProviderOrderID(ctx context.Context, providerOrderID string) (*models.Payment, error)
	Create(ctx context.Context, payment *models.Payment) error
	Save(ctx context.Context, payment *models.Payment) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return r.findOrder(r.db.WithContext(ctx), orderID)
}

func (r *repository) FindOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return r.findOrder(db.ForUpdate(r.db.WithContext(ctx)), orderID)
}

func (r *repository) findOrder(query *gorm.DB, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := query.
		Preload("Address").
		Preload("Payment").
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) FindByID(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	return r.findPayment(r.db.WithContext(ctx), "id = ?", paymentID)
}

func (r *repository) FindByIDForUpdate(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	return r.findPayment(db.ForUpdate(r.db.WithContext(ctx)), "id = ?", paymentID)
}

func (r *repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	return r.findPayment(r.db.WithContext(ctx), "order_id = ?", orderID)
}

func (r *repository) FindByProviderOrderID(ctx context.Context, providerOrderID string) (*models.Payment, error) {
	return r.findPayment(r.db.WithContext(ctx), "provider_order_id = ?", providerOrderID)
}

func (r *repository) findPayment(query *gorm.DB, where string, arg any) (*models.Payment, error) {
	var payment models.Payment
	if err := query.Where(where, arg).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) Save(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Save(payment).Error
}
