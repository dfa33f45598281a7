package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/shopzen/shopzen-backend/pkg/errors"
	"github.com/shopzen/shopzen-backend/pkg/logger"
)

const ReasonInsufficientStock = "INSUFFICIENT_STOCK"

const (
	reserveSQL = `UPDATE products SET stock = stock - ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND stock >= ?`
	releaseSQL = `UPDATE products SET stock = stock + ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	stockSQL   = `SELECT stock FROM products WHERE id = ?`
)

// Ledger moves product stock inside a caller-owned transaction. It never opens
// its own transaction.
type Ledger interface {
	Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

type ledger struct {
	logg *logger.Logger
}

func NewLedger(logg *logger.Logger) Ledger {
	return &ledger{logg: logg}
}

// Reserve decrements stock with a single conditional update so concurrent
// reservations can never drive stock negative.
func (l *ledger) Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if err := validate(tx, productID, qty); err != nil {
		return err
	}
	res := tx.WithContext(ctx).Exec(reserveSQL, qty, productID, qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve stock")
	}
	if res.RowsAffected == 1 {
		return nil
	}

	available, found, err := currentStock(ctx, tx, productID)
	if err != nil {
		return err
	}
	if !found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
			WithDetail("productId", productID.String())
	}
	return InsufficientStock(productID, available, qty)
}

func (l *ledger) Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if err := validate(tx, productID, qty); err != nil {
		return err
	}
	res := tx.WithContext(ctx).Exec(releaseSQL, qty, productID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release stock")
	}
	if res.RowsAffected == 0 && l.logg != nil {
		logCtx := l.logg.WithFields(ctx, map[string]any{
			"product_id": productID.String(),
			"quantity":   qty,
		})
		l.logg.Warn(logCtx, "stock release skipped for missing product")
	}
	return nil
}

// InsufficientStock builds the conflict returned when a product cannot cover qty.
func InsufficientStock(productID uuid.UUID, available, requested int) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("insufficient stock: %d available, %d requested", available, requested)).
		WithDetail("productId", productID.String()).
		WithDetail("available", available).
		WithDetail("requested", requested).
		WithReason(ReasonInsufficientStock)
}

func validate(tx *gorm.DB, productID uuid.UUID, qty int) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInvariant, "inventory change requires a transaction")
	}
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	return nil
}

func currentStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (int, bool, error) {
	var row struct{ Stock int }
	res := tx.WithContext(ctx).Raw(stockSQL, productID).Scan(&row)
	if res.Error != nil {
		return 0, false, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "read stock")
	}
	return row.Stock, res.RowsAffected > 0, nil
}
