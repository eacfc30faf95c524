// internal/storage/store.go
package storage

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openshelf/catalog-backend/internal/config"
)

// ErrWrite marks a blob that could not be written. A ref returned alongside
// this error must never be recorded on a product.
var ErrWrite = errors.New("storage: write failed")

// Store is a flat namespace of opaque blobs addressed by generated names.
//
// Put consumes the stream and returns the store-relative ref for the new
// blob. Names are always generated, never client-chosen.
//
// Delete removes a blob if present and reports whether a blob was actually
// removed. Deleting an absent ref is a no-op success, so reference cleanup
// stays idempotent and retry-safe.
//
// Exists is an existence probe for invariant checks, not for the hot path.
type Store interface {
	Put(r io.Reader, extHint string) (string, error)
	Delete(ref string) (bool, error)
	Exists(ref string) (bool, error)
}

// New selects the store backend from configuration: S3 when AWS credentials
// are present, the local disk store otherwise.
func New(cfg *config.Config) (Store, error) {
	if cfg.AWS.AccessKeyID != "" {
		return NewS3Store(cfg.AWS)
	}
	return NewDiskStore(cfg.Storage.ContentRoot)
}

// GenerateName builds a practically-unique blob name from the current time,
// a UUID fragment and the sanitized extension hint. No coordination with any
// record store is needed, so concurrent Puts never collide.
func GenerateName(extHint string) string {
	id := uuid.New()
	timestamp := time.Now().UTC().Format("20060102150405")
	return fmt.Sprintf("%s_%s%s", timestamp, id.String()[:8], sanitizeExt(extHint))
}

// sanitizeExt reduces a client-supplied extension hint to a short lowercase
// alphanumeric suffix. Allow-listing of real image extensions happens at the
// upload boundary; this only guards the generated name itself.
func sanitizeExt(hint string) string {
	hint = strings.ToLower(strings.TrimLeft(hint, "."))

	var b strings.Builder
	for _, r := range hint {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
		if b.Len() >= 8 {
			break
		}
	}

	if b.Len() == 0 {
		return ""
	}
	return "." + b.String()
}
