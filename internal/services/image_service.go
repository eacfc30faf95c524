// internal/services/image_service.go
package services

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/openshelf/catalog-backend/internal/storage"
)

// UploadedImage is one uploaded file: a byte stream plus the client's
// extension hint. It is consumed exactly once by the store.
type UploadedImage struct {
	Reader io.Reader
	Ext    string
}

// PartialError reports a multi-file store operation that stopped partway.
// Written holds the refs created before the failure so the caller can decide
// to keep them, persist them, or sweep them back out; a multi-blob write has
// no transactional wrapper, so the partial state is surfaced instead of
// being silently rolled back.
type PartialError struct {
	Written []string
	Failed  int
	Total   int
	Err     error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("processed %d of %d images: %v", e.Failed, e.Total, e.Err)
}

func (e *PartialError) Unwrap() error {
	return e.Err
}

// ReconcileResult is the outcome of an update-time reconcile. Images is the
// new authoritative list for the caller to persist. Added and Removed record
// the blob side effects that already happened, so a save conflict can be
// retried against a fresh record without touching the store again.
type ReconcileResult struct {
	Images  []string
	Added   []string
	Removed []string
}

// ImageService keeps a product's image reference list consistent with the
// blobs behind it across create, update and delete. It holds no state of its
// own and is safe for concurrent use; durability and record-level atomicity
// belong to the store and the product repository.
type ImageService struct {
	store storage.Store
}

func NewImageService(store storage.Store) *ImageService {
	return &ImageService{store: store}
}

// Attach writes each upload to the store, in input order, and returns the
// ordered refs for the caller to persist as a new product's image list. If a
// write fails the refs already written are returned inside a *PartialError;
// earlier blobs stay on disk and the caller chooses whether to keep them.
func (s *ImageService) Attach(uploads []UploadedImage) ([]string, error) {
	refs := make([]string, 0, len(uploads))

	for i, upload := range uploads {
		ref, err := s.store.Put(upload.Reader, upload.Ext)
		if err != nil {
			return refs, &PartialError{
				Written: refs,
				Failed:  i,
				Total:   len(uploads),
				Err:     err,
			}
		}
		refs = append(refs, ref)
	}

	return refs, nil
}

// Reconcile computes the new image list for an update: requested deletions
// first, then new uploads appended after all survivors. Deletion requests
// for refs not in current are ignored; a delete that finds no blob still
// counts as removed from the list. Surviving refs keep their relative order.
//
// On an upload failure the accumulated result is returned together with a
// *PartialError. The caller must still persist Result.Images: dropping it
// would either keep references to deleted blobs or lose the ones already
// written.
func (s *ImageService) Reconcile(current []string, deleteRequests []string, uploads []UploadedImage) (ReconcileResult, error) {
	doomed := make(map[string]bool, len(deleteRequests))
	for _, ref := range deleteRequests {
		doomed[ref] = true
	}

	result := ReconcileResult{Images: make([]string, 0, len(current)+len(uploads))}

	for _, ref := range current {
		if !doomed[ref] {
			result.Images = append(result.Images, ref)
			continue
		}

		removed, err := s.store.Delete(ref)
		if err != nil {
			// The ref leaves the list either way; a blob we failed to
			// remove is a transient orphan, not a dangling reference.
			logrus.WithError(err).WithField("ref", ref).Warn("Failed to delete image blob")
		} else if !removed {
			logrus.WithField("ref", ref).Debug("Image blob already absent")
		}
		result.Removed = append(result.Removed, ref)
	}

	for i, upload := range uploads {
		ref, err := s.store.Put(upload.Reader, upload.Ext)
		if err != nil {
			return result, &PartialError{
				Written: result.Added,
				Failed:  i,
				Total:   len(uploads),
				Err:     err,
			}
		}
		result.Images = append(result.Images, ref)
		result.Added = append(result.Added, ref)
	}

	return result, nil
}

// Purge removes every blob referenced by current, ignoring individual
// failures so one missing or locked file cannot block the rest of the sweep.
// It returns the number of blobs actually removed. The caller deletes the
// product record after this returns.
func (s *ImageService) Purge(current []string) int {
	removed := 0

	for _, ref := range current {
		ok, err := s.store.Delete(ref)
		if err != nil {
			logrus.WithError(err).WithField("ref", ref).Warn("Failed to purge image blob")
			continue
		}
		if ok {
			removed++
		}
	}

	return removed
}
