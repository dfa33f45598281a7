package tools

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shopzen/shopzen-backend/pkg/db/models"
	pkgerrors "github.com/shopzen/shopzen-backend/pkg/errors"
	"github.com/shopzen/shopzen-backend/pkg/llm"
)

const (
	SearchProductsName = "searchProducts"
	searchResultLimit  = 5
	noProductsMessage  = "No products found matching that query."
)

type productSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]models.Product, error)
}

type productHit struct {
	ID                 uuid.UUID       `json:"id"`
	Title              string          `json:"title"`
	Price              decimal.Decimal `json:"price"`
	Stock              int             `json:"stock"`
	AvailabilityStatus string          `json:"availabilityStatus"`
}

type searchProducts struct {
	catalog productSearcher
}

// SearchProducts matches the catalog by title, description or category.
func SearchProducts(catalog productSearcher) Tool {
	return &searchProducts{catalog: catalog}
}

func (t *searchProducts) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        SearchProductsName,
		Description: "Search for products in the store catalog based on a query string.",
		Parameters:  objectSchema("query", "The search term (e.g., 'running shoes', 'iphone')"),
	}
}

func (t *searchProducts) Execute(ctx context.Context, _ Scope, args map[string]any) (any, error) {
	query := strings.TrimSpace(stringArg(args, "query"))
	if query == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "query is required")
	}
	products, err := t.catalog.Search(ctx, query, searchResultLimit)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return map[string]any{"message": noProductsMessage}, nil
	}
	hits := make([]productHit, 0, len(products))
	for _, p := range products {
		hits = append(hits, productHit{
			ID:                 p.ID,
			Title:              p.Title,
			Price:              p.Price,
			Stock:              p.Stock,
			AvailabilityStatus: p.AvailabilityStatus,
		})
	}
	return map[string]any{"products": hits}, nil
}
