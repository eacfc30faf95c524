// internal/repository/product_repository.go
package repository

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openshelf/catalog-backend/internal/models"
)

var (
	ErrNotFound = errors.New("product not found")
	// ErrConflict signals a lost compare-and-swap: another writer saved the
	// product since it was loaded.
	ErrConflict = errors.New("product was modified concurrently")
)

// ProductRepository persists product records. UpdateCAS must write the
// attributes and the image list in one atomic, version-guarded update; that
// is the capability the image lifecycle relies on instead of holding locks
// of its own.
type ProductRepository interface {
	Create(p *models.Product) error
	Get(id uuid.UUID) (*models.Product, error)
	List() ([]models.Product, error)
	UpdateCAS(p *models.Product) error
	Delete(id uuid.UUID) error
}

type GormProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

func (r *GormProductRepository) Create(p *models.Product) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Version == 0 {
		p.Version = 1
	}

	if err := r.db.Create(p).Error; err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

func (r *GormProductRepository) Get(id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &product, nil
}

// List returns all products, newest first.
func (r *GormProductRepository) List() ([]models.Product, error) {
	var products []models.Product
	if err := r.db.Order("created_at DESC").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch products: %w", err)
	}
	return products, nil
}

// UpdateCAS saves the product guarded by its loaded version. On success the
// in-memory version is bumped to match the stored row.
func (r *GormProductRepository) UpdateCAS(p *models.Product) error {
	result := r.db.Model(&models.Product{}).
		Where("id = ? AND version = ?", p.ID, p.Version).
		Updates(map[string]interface{}{
			"name":     p.Name,
			"details":  p.Details,
			"size":     p.Size,
			"color":    p.Color,
			"category": p.Category,
			"price":    p.Price,
			"images":   p.Images,
			"version":  p.Version + 1,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update product: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		// Either the row is gone or another writer bumped the version.
		if _, err := r.Get(p.ID); err != nil {
			return err
		}
		return ErrConflict
	}

	p.Version++
	return nil
}

func (r *GormProductRepository) Delete(id uuid.UUID) error {
	result := r.db.Delete(&models.Product{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete product: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
