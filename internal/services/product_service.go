// internal/services/product_service.go
package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/openshelf/catalog-backend/internal/models"
	"github.com/openshelf/catalog-backend/internal/repository"
)

// How many times an update retries a lost compare-and-swap before giving up.
const maxUpdateRetries = 3

// ProductAttributes are the already-validated scalar fields of a product.
// They pass through unchanged; attribute validation happens at the HTTP
// boundary before this service is invoked.
type ProductAttributes struct {
	Name     string
	Details  string
	Size     string
	Color    string
	Category string
	Price    float64
}

type ProductService struct {
	repo   repository.ProductRepository
	images *ImageService
}

func NewProductService(repo repository.ProductRepository, images *ImageService) *ProductService {
	return &ProductService{
		repo:   repo,
		images: images,
	}
}

// CreateProduct attaches the uploads and persists the new record. Blob
// writes happen before the record write that references them, so the saved
// record never points at a missing blob. If attaching stops partway, or the
// record write fails, the blobs written so far are swept back out (there is
// no record to own them) and the error is returned.
func (s *ProductService) CreateProduct(attrs ProductAttributes, uploads []UploadedImage) (*models.Product, error) {
	refs, err := s.images.Attach(uploads)
	if err != nil {
		var partial *PartialError
		if errors.As(err, &partial) && len(partial.Written) > 0 {
			s.images.Purge(partial.Written)
		}
		return nil, err
	}

	product := &models.Product{
		Name:     attrs.Name,
		Details:  attrs.Details,
		Size:     attrs.Size,
		Color:    attrs.Color,
		Category: attrs.Category,
		Price:    attrs.Price,
		Images:   pq.StringArray(refs),
	}

	if err := s.repo.Create(product); err != nil {
		s.images.Purge(refs)
		return nil, err
	}

	return product, nil
}

func (s *ProductService) GetProduct(id uuid.UUID) (*models.Product, error) {
	return s.repo.Get(id)
}

func (s *ProductService) ListProducts() ([]models.Product, error) {
	return s.repo.List()
}

// UpdateProduct reconciles the image list (deletions first, then appends)
// and saves the new attributes and list in one version-guarded write. A lost
// compare-and-swap is retried against the fresh record by replaying the blob
// effects that already happened, never by redoing store I/O.
//
// A partial upload failure does not abort the save: the partial list is
// persisted and the *PartialError is returned alongside the updated product,
// so no written blob is ever orphaned and no deleted blob stays referenced.
func (s *ProductService) UpdateProduct(id uuid.UUID, attrs ProductAttributes, deleteRefs []string, uploads []UploadedImage) (*models.Product, error) {
	product, err := s.repo.Get(id)
	if err != nil {
		return nil, err
	}

	result, reconcileErr := s.images.Reconcile(product.Images, deleteRefs, uploads)
	if reconcileErr != nil {
		var partial *PartialError
		if !errors.As(reconcileErr, &partial) {
			return nil, reconcileErr
		}
	}

	applyAttributes(product, attrs)
	product.Images = pq.StringArray(result.Images)

	saveErr := s.repo.UpdateCAS(product)
	for attempt := 0; errors.Is(saveErr, repository.ErrConflict) && attempt < maxUpdateRetries; attempt++ {
		logrus.WithFields(logrus.Fields{
			"product_id": id,
			"attempt":    attempt + 1,
		}).Warn("Concurrent product update, retrying against fresh record")

		product, err = s.repo.Get(id)
		if err != nil {
			return nil, err
		}

		applyAttributes(product, attrs)
		product.Images = replayImageEffects(product.Images, result.Removed, result.Added)
		saveErr = s.repo.UpdateCAS(product)
	}
	if saveErr != nil {
		return nil, saveErr
	}

	// reconcileErr is the partial upload failure, if any
	return product, reconcileErr
}

// DeleteProduct sweeps the product's blobs and then deletes the record, the
// inverse ordering of create. It returns how many blobs were actually
// removed; refs whose blobs were already gone are not an error.
func (s *ProductService) DeleteProduct(id uuid.UUID) (int, error) {
	product, err := s.repo.Get(id)
	if err != nil {
		return 0, err
	}

	removed := s.images.Purge(product.Images)

	if err := s.repo.Delete(id); err != nil {
		return removed, fmt.Errorf("blobs swept but record not deleted: %w", err)
	}

	return removed, nil
}

func applyAttributes(p *models.Product, attrs ProductAttributes) {
	p.Name = attrs.Name
	p.Details = attrs.Details
	p.Size = attrs.Size
	p.Color = attrs.Color
	p.Category = attrs.Category
	p.Price = attrs.Price
}

// replayImageEffects re-applies an already-performed reconcile to a freshly
// loaded image list: refs whose blobs were removed are filtered out and the
// newly written refs go to the end, after every survivor.
func replayImageEffects(fresh pq.StringArray, removed, added []string) pq.StringArray {
	gone := make(map[string]bool, len(removed))
	for _, ref := range removed {
		gone[ref] = true
	}

	images := make(pq.StringArray, 0, len(fresh)+len(added))
	for _, ref := range fresh {
		if !gone[ref] {
			images = append(images, ref)
		}
	}

	return append(images, added...)
}
