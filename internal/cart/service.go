package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shopzen/shopzen-backend/pkg/db"
	"github.com/shopzen/shopzen-backend/pkg/db/models"
	pkgerrors "github.com/shopzen/shopzen-backend/pkg/errors"
)

// Service exposes per-user cart operations.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*CartDTO, error)
	Add(ctx context.Context, userID uuid.UUID, input AddItemInput) (*CartDTO, error)
	AddWithTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID, input AddItemInput) error
	Update(ctx context.Context, userID, productID uuid.UUID, quantity int) (*CartDTO, error)
	Remove(ctx context.Context, userID, productID uuid.UUID) (*CartDTO, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

type service struct {
	repo CartRepository
	tx   db.TxRunner
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo CartRepository, tx db.TxRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*CartDTO, error) {
	items, err := s.repo.ListItems(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return Price(userID, items), nil
}

// Add merges the quantity into an existing line for the same product.
func (s *service) Add(ctx context.Context, userID uuid.UUID, input AddItemInput) (*CartDTO, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.AddWithTx(ctx, tx, userID, input)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

// AddWithTx is Add inside the caller's transaction, for flows that change
// the cart together with other rows. The product row stays locked until tx
// ends.
func (s *service) AddWithTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID, input AddItemInput) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInvariant, "cart add requires a transaction")
	}
	if input.ProductID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "productId is required")
	}
	qty := input.Quantity
	if qty == 0 {
		qty = 1
	}
	if qty < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	repo := s.repo.WithTx(tx)
	product, err := s.loadProduct(ctx, repo, input.ProductID)
	if err != nil {
		return err
	}
	existing, err := repo.FindItem(ctx, userID, input.ProductID)
	if err != nil && !db.IsNotFound(err) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
	}
	merged := qty
	if existing != nil {
		merged += existing.Quantity
	}
	if err := checkStock(product, merged); err != nil {
		return err
	}
	if existing != nil {
		if err := repo.UpdateQuantity(ctx, existing.ID, merged); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
		}
		return nil
	}
	item := &models.CartItem{UserID: userID, ProductID: input.ProductID, Quantity: merged}
	if err := repo.CreateItem(ctx, item); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart item")
	}
	return nil
}

func (s *service) Update(ctx context.Context, userID, productID uuid.UUID, quantity int) (*CartDTO, error) {
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		product, err := s.loadProduct(ctx, repo, productID)
		if err != nil {
			return err
		}
		item, err := repo.FindItem(ctx, userID, productID)
		if err != nil {
			if db.IsNotFound(err) {
				return itemNotFound(productID)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}
		if err := checkStock(product, quantity); err != nil {
			return err
		}
		if err := repo.UpdateQuantity(ctx, item.ID, quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

func (s *service) Remove(ctx context.Context, userID, productID uuid.UUID) (*CartDTO, error) {
	removed, err := s.repo.DeleteItem(ctx, userID, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart item")
	}
	if removed == 0 {
		return nil, itemNotFound(productID)
	}
	return s.Get(ctx, userID)
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.DeleteAll(ctx, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

func (s *service) loadProduct(ctx context.Context, repo CartRepository, productID uuid.UUID) (*models.Product, error) {
	product, err := repo.FindProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithReason(ReasonProductNotFound).
				WithDetail("productId", productID.String())
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

func checkStock(product *models.Product, quantity int) error {
	if product.Stock >= quantity {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient stock").
		WithReason(ReasonInsufficientStock).
		WithDetail("productId", product.ID.String()).
		WithDetail("available", product.Stock).
		WithDetail("requested", quantity)
}

func itemNotFound(productID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "item not in cart").
		WithReason(ReasonItemNotFound).
		WithDetail("productId", productID.String())
}
