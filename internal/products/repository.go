package product

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shopzen/shopzen-backend/pkg/db/models"
	"github.com/shopzen/shopzen-backend/pkg/pagination"
)

// Repository wraps product persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindByID loads the product without associations.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// List returns one page of products matching filter, newest first, and the
// total match count.
func (r *Repository) List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Product, int64, error) {
	filter = filter.normalized()
	scoped := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&models.Product{})
		if filter.Query != "" {
			q = q.Where("LOWER(title) LIKE ?", "%"+filter.Query+"%")
		}
		if filter.Category != "" {
			q = q.Where("category = ?", filter.Category)
		}
		return q
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var products []models.Product
	if err := scoped().
		Order("created_at DESC").
		Limit(params.Limit).
		Offset(params.Offset).
		Find(&products).Error; err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// Search matches query case-insensitively against title, description and
// category.
func (r *Repository) Search(ctx context.Context, query string, limit int) ([]models.Product, error) {
	pattern := "%" + query + "%"
	var products []models.Product
	err := r.db.WithContext(ctx).
		Where("LOWER(title) LIKE ? OR LOWER(COALESCE(description, '')) LIKE ? OR LOWER(category) LIKE ?", pattern, pattern, pattern).
		Order("created_at DESC").
		Limit(limit).
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}
