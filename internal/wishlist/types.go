package wishlist

import (
	"time"

	"github.com/google/uuid"

	product "github.com/shopzen/shopzen-backend/internal/products"
)

const ReasonProductNotFound = "PRODUCT_NOT_FOUND"

// WishlistItemDTO wraps the product summary included in a wishlist row.
type WishlistItemDTO struct {
	Product product.ProductSummary `json:"product"`
	AddedAt time.Time              `json:"addedAt"`
}

// WishlistDTO is the user's saved products, newest first.
type WishlistDTO struct {
	Items []WishlistItemDTO `json:"items"`
}

// WishlistIDsDTO is a lightweight projection containing only product IDs.
type WishlistIDsDTO struct {
	ProductIDs []uuid.UUID `json:"productIds"`
}
