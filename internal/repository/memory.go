// internal/repository/memory.go
package repository

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openshelf/catalog-backend/internal/models"
)

// MemoryProductRepository implements ProductRepository in memory with the
// same compare-and-swap semantics as the Postgres implementation. Used by
// tests and database-less development.
type MemoryProductRepository struct {
	mtx      sync.Mutex
	products map[uuid.UUID]models.Product
}

func NewMemoryProductRepository() *MemoryProductRepository {
	return &MemoryProductRepository{
		products: make(map[uuid.UUID]models.Product),
	}
}

func (r *MemoryProductRepository) Create(p *models.Product) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Version == 0 {
		p.Version = 1
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	r.products[p.ID] = clone(p)
	return nil
}

func (r *MemoryProductRepository) Get(id uuid.UUID) (*models.Product, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	stored, ok := r.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := clone(&stored)
	return &out, nil
}

func (r *MemoryProductRepository) List() ([]models.Product, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	products := make([]models.Product, 0, len(r.products))
	for _, p := range r.products {
		products = append(products, clone(&p))
	}

	sort.Slice(products, func(i, j int) bool {
		return products[i].CreatedAt.After(products[j].CreatedAt)
	})

	return products, nil
}

func (r *MemoryProductRepository) UpdateCAS(p *models.Product) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	stored, ok := r.products[p.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != p.Version {
		return ErrConflict
	}

	p.Version++
	p.UpdatedAt = time.Now()
	p.CreatedAt = stored.CreatedAt

	r.products[p.ID] = clone(p)
	return nil
}

func (r *MemoryProductRepository) Delete(id uuid.UUID) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if _, ok := r.products[id]; !ok {
		return ErrNotFound
	}
	delete(r.products, id)
	return nil
}

// clone deep-copies the image slice so callers cannot mutate stored state.
func clone(p *models.Product) models.Product {
	out := *p
	out.Images = append(out.Images[:0:0], p.Images...)
	return out
}
