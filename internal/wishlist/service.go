package wishlist

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shopzen/shopzen-backend/internal/cart"
	product "github.com/shopzen/shopzen-backend/internal/products"
	"github.com/shopzen/shopzen-backend/pkg/db"
	pkgerrors "github.com/shopzen/shopzen-backend/pkg/errors"
)

// ServiceParams groups dependencies for the wishlist service.
type ServiceParams struct {
	WishlistRepo *Repository
	ProductRepo  *product.Repository
	Cart         cart.Service
	TxRunner     db.TxRunner
}

// Service exposes business rules for wishlist management.
type Service interface {
	GetWishlist(ctx context.Context, userID uuid.UUID) (WishlistDTO, error)
	GetWishlistIDs(ctx context.Context, userID uuid.UUID) (WishlistIDsDTO, error)
	AddItem(ctx context.Context, userID, productID uuid.UUID) error
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) error
	MoveToCart(ctx context.Context, userID, productID uuid.UUID) (*cart.CartDTO, error)
}

type service struct {
	wishlistRepo *Repository
	productRepo  *product.Repository
	cart         cart.Service
	tx           db.TxRunner
}

// NewService builds a wishlist service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.WishlistRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wishlist repo is required")
	}
	if params.ProductRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product repo is required")
	}
	if params.Cart == nil || params.TxRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart service and tx runner are required")
	}
	return &service{
		wishlistRepo: params.WishlistRepo,
		productRepo:  params.ProductRepo,
		cart:         params.Cart,
		tx:           params.TxRunner,
	}, nil
}

func (s *service) GetWishlist(ctx context.Context, userID uuid.UUID) (WishlistDTO, error) {
	rows, err := s.wishlistRepo.ListItems(ctx, userID)
	if err != nil {
		return WishlistDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list wishlist")
	}
	items := make([]WishlistItemDTO, 0, len(rows))
	for _, row := range rows {
		if row.Product == nil {
			continue
		}
		items = append(items, WishlistItemDTO{Product: product.ToSummary(*row.Product), AddedAt: row.CreatedAt})
	}
	return WishlistDTO{Items: items}, nil
}

func (s *service) GetWishlistIDs(ctx context.Context, userID uuid.UUID) (WishlistIDsDTO, error) {
	ids, err := s.wishlistRepo.ListProductIDs(ctx, userID)
	if err != nil {
		return WishlistIDsDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list wishlist ids")
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return WishlistIDsDTO{ProductIDs: ids}, nil
}

// AddItem saves the product. Adding a saved product again is a no-op.
func (s *service) AddItem(ctx context.Context, userID, productID uuid.UUID) error {
	if _, err := s.productRepo.FindByID(ctx, productID); err != nil {
		if db.IsNotFound(err) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").WithReason(ReasonProductNotFound)
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if err := s.wishlistRepo.AddItem(ctx, userID, productID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add wishlist item")
	}
	return nil
}

func (s *service) RemoveItem(ctx context.Context, userID, productID uuid.UUID) error {
	removed, err := s.wishlistRepo.RemoveItem(ctx, userID, productID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove wishlist item")
	}
	if removed == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "item not in wishlist")
	}
	return nil
}

// MoveToCart adds one unit of the product to the cart, merging with an
// existing line under the usual stock check, and drops it from the wishlist
// in the same transaction. A product that was not saved is still added.
func (s *service) MoveToCart(ctx context.Context, userID, productID uuid.UUID) (*cart.CartDTO, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.cart.AddWithTx(ctx, tx, userID, cart.AddItemInput{ProductID: productID, Quantity: 1}); err != nil {
			return err
		}
		if _, err := s.wishlistRepo.WithTx(tx).RemoveItem(ctx, userID, productID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove wishlist item")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.cart.Get(ctx, userID)
}
