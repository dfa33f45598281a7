package product

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shopzen/shopzen-backend/pkg/db"
	"github.com/shopzen/shopzen-backend/pkg/db/models"
	pkgerrors "github.com/shopzen/shopzen-backend/pkg/errors"
	"github.com/shopzen/shopzen-backend/pkg/logger"
	"github.com/shopzen/shopzen-backend/pkg/pagination"
)

const defaultAvailability = "In Stock"

// Service exposes catalog operations.
type Service interface {
	Create(ctx context.Context, input CreateProductInput) (*ProductDTO, error)
	List(ctx context.Context, input ListProductsInput) (*ProductListResult, error)
	Get(ctx context.Context, id uuid.UUID) (*ProductDTO, error)
	Search(ctx context.Context, query string, limit int) ([]models.Product, error)
}

type service struct {
	repo *Repository
	logg *logger.Logger
}

// NewService constructs a product service instance.
func NewService(repo *Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &service{repo: repo, logg: logg}, nil
}

// Create persists a new listing. Rating always starts at zero.
func (s *service) Create(ctx context.Context, input CreateProductInput) (*ProductDTO, error) {
	if !input.Price.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive").WithDetail("field", "price")
	}
	if input.DiscountPercentage.IsNegative() || input.DiscountPercentage.GreaterThan(decimal.NewFromInt(100)) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discountPercentage must be between 0 and 100").WithDetail("field", "discountPercentage")
	}
	if input.Stock < input.MinimumOrderQuantity {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock cannot be less than minimum order quantity")
	}

	availability := strings.TrimSpace(input.AvailabilityStatus)
	if availability == "" {
		availability = defaultAvailability
	}
	product := &models.Product{
		Title:                strings.TrimSpace(input.Title),
		Description:          input.Description,
		Category:             strings.TrimSpace(input.Category),
		Brand:                input.Brand,
		SKU:                  strings.TrimSpace(input.SKU),
		Price:                input.Price.Round(2),
		DiscountPercentage:   input.DiscountPercentage.Round(2),
		Rating:               decimal.Zero,
		Stock:                input.Stock,
		MinimumOrderQuantity: input.MinimumOrderQuantity,
		AvailabilityStatus:   availability,
		Thumbnail:            input.Thumbnail,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "SKU already exists").WithReason(ReasonSKUExists)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "product_id", product.ID.String()), "product created")
	}
	return ToDTO(product), nil
}

func (s *service) List(ctx context.Context, input ListProductsInput) (*ProductListResult, error) {
	params, page := pagination.FromPage(input.Page, input.Limit, defaultListLimit)
	rows, total, err := s.repo.List(ctx, ListFilter{Query: input.Query, Category: input.Category}, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}

	items := make([]ProductSummary, 0, len(rows))
	for _, row := range rows {
		items = append(items, ToSummary(row))
	}
	return &ProductListResult{
		Products: items,
		Total:    total,
		Page:     page,
		Limit:    params.Limit,
		HasNext:  pagination.HasNext(total, params),
	}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").WithReason(ReasonProductNotFound)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return ToDTO(product), nil
}

// Search backs the assistant's catalog tool. Blank queries return nothing.
func (s *service) Search(ctx context.Context, query string, limit int) ([]models.Product, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return []models.Product{}, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	limit = pagination.NormalizeLimit(limit, defaultSearchLimit)
	products, err := s.repo.Search(ctx, query, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "search products")
	}
	return products, nil
}
