// internal/services/product_service_test.go
package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshelf/catalog-backend/internal/models"
	"github.com/openshelf/catalog-backend/internal/repository"
	"github.com/openshelf/catalog-backend/internal/storage"
)

var testAttrs = ProductAttributes{
	Name:     "Linen Shirt",
	Details:  "Relaxed fit, breathable weave",
	Size:     "M",
	Color:    "white",
	Category: "shirts",
	Price:    49.99,
}

// conflictingRepo loses the first compare-and-swap to a simulated concurrent
// writer, then behaves normally.
type conflictingRepo struct {
	repository.ProductRepository
	conflicted bool
}

func (r *conflictingRepo) UpdateCAS(p *models.Product) error {
	if !r.conflicted {
		r.conflicted = true

		other, err := r.ProductRepository.Get(p.ID)
		if err != nil {
			return err
		}
		other.Color = "charcoal"
		if err := r.ProductRepository.UpdateCAS(other); err != nil {
			return err
		}
		return repository.ErrConflict
	}
	return r.ProductRepository.UpdateCAS(p)
}

func TestCreateProductPersistsRecordAndBlobs(t *testing.T) {
	store := storage.NewMemoryStore()
	repo := repository.NewMemoryProductRepository()
	svc := NewProductService(repo, NewImageService(store))

	product, err := svc.CreateProduct(testAttrs, []UploadedImage{upload(".jpg"), upload(".png"), upload(".gif")})
	require.NoError(t, err)
	require.NotNil(t, product)

	assert.NotEqual(t, uuid.Nil, product.ID)
	assert.Equal(t, int64(1), product.Version)
	require.Len(t, product.Images, 3)

	// Record write happened after the blob writes it references
	stored, err := repo.Get(product.ID)
	require.NoError(t, err)
	assert.Equal(t, product.Images, stored.Images)
	for _, ref := range stored.Images {
		exists, err := store.Exists(ref)
		require.NoError(t, err)
		assert.True(t, exists, "ref %s has no blob", ref)
	}
}

func TestCreateProductSweepsBlobsOnPartialFailure(t *testing.T) {
	mem := storage.NewMemoryStore()
	repo := repository.NewMemoryProductRepository()
	svc := NewProductService(repo, NewImageService(&flakyStore{MemoryStore: mem, failAfter: 1}))

	product, err := svc.CreateProduct(testAttrs, []UploadedImage{upload(".jpg"), upload(".jpg")})
	require.Error(t, err)
	assert.Nil(t, product)

	var partial *PartialError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, 1, partial.Failed)
	assert.Equal(t, 2, partial.Total)

	// No record exists to own the first blob, so it was swept back out
	assert.Equal(t, 0, mem.Len())

	products, err := repo.List()
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestUpdateProductReconcilesImages(t *testing.T) {
	store := storage.NewMemoryStore()
	repo := repository.NewMemoryProductRepository()
	svc := NewProductService(repo, NewImageService(store))

	product, err := svc.CreateProduct(testAttrs, []UploadedImage{upload(".jpg"), upload(".png"), upload(".jpg")})
	require.NoError(t, err)
	a, b, c := product.Images[0], product.Images[1], product.Images[2]

	attrs := testAttrs
	attrs.Price = 39.99

	updated, err := svc.UpdateProduct(product.ID, attrs, []string{b}, []UploadedImage{upload(".gif")})
	require.NoError(t, err)

	require.Len(t, updated.Images, 3)
	assert.Equal(t, a, updated.Images[0])
	assert.Equal(t, c, updated.Images[1])
	assert.Equal(t, int64(2), updated.Version)
	assert.Equal(t, 39.99, updated.Price)

	stored, err := repo.Get(product.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.Images, stored.Images)

	gone, err := store.Exists(b)
	require.NoError(t, err)
	assert.False(t, gone)
}

func TestUpdateProductRetriesLostCAS(t *testing.T) {
	store := storage.NewMemoryStore()
	inner := repository.NewMemoryProductRepository()
	repo := &conflictingRepo{ProductRepository: inner}
	svc := NewProductService(repo, NewImageService(store))

	product, err := svc.CreateProduct(testAttrs, []UploadedImage{upload(".jpg"), upload(".png")})
	require.NoError(t, err)
	survivor := product.Images[1]

	updated, err := svc.UpdateProduct(product.ID, testAttrs, []string{product.Images[0]}, []UploadedImage{upload(".gif")})
	require.NoError(t, err)

	// The replayed save kept the reconcile's effects: survivor first, new
	// upload appended, no blob I/O repeated
	require.Len(t, updated.Images, 2)
	assert.Equal(t, survivor, updated.Images[0])
	assert.Equal(t, 2, store.Len())

	// Our attributes won the retry over the concurrent writer's
	assert.Equal(t, testAttrs.Color, updated.Color)
	assert.Equal(t, int64(3), updated.Version)
}

func TestUpdateProductPartialUploadStillPersists(t *testing.T) {
	mem := storage.NewMemoryStore()
	repo := repository.NewMemoryProductRepository()
	// Two puts for create, one for the update, then failures
	svc := NewProductService(repo, NewImageService(&flakyStore{MemoryStore: mem, failAfter: 3}))

	product, err := svc.CreateProduct(testAttrs, []UploadedImage{upload(".jpg"), upload(".png")})
	require.NoError(t, err)
	a, b := product.Images[0], product.Images[1]

	updated, err := svc.UpdateProduct(product.ID, testAttrs, []string{a}, []UploadedImage{upload(".gif"), upload(".gif")})
	require.Error(t, err)
	require.NotNil(t, updated)

	var partial *PartialError
	require.ErrorAs(t, err, &partial)

	// The partial list was persisted: losing track of the blob that did
	// land, or of the deletion that happened, would be worse
	stored, err := repo.Get(product.ID)
	require.NoError(t, err)
	require.Len(t, stored.Images, 2)
	assert.Equal(t, b, stored.Images[0])
	assert.Equal(t, partial.Written[0], stored.Images[1])
}

func TestDeleteProductPurgesBlobsThenRecord(t *testing.T) {
	store := storage.NewMemoryStore()
	repo := repository.NewMemoryProductRepository()
	svc := NewProductService(repo, NewImageService(store))

	product, err := svc.CreateProduct(testAttrs, []UploadedImage{upload(".jpg"), upload(".png")})
	require.NoError(t, err)

	// Simulate a blob removed out-of-band; the purge must not care
	_, err = store.Delete(product.Images[0])
	require.NoError(t, err)

	removed, err := svc.DeleteProduct(product.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, store.Len())

	_, err = repo.Get(product.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUpdateProductNotFound(t *testing.T) {
	svc := NewProductService(repository.NewMemoryProductRepository(), NewImageService(storage.NewMemoryStore()))

	_, err := svc.UpdateProduct(uuid.New(), testAttrs, nil, nil)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
