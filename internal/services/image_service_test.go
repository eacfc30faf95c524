// internal/services/image_service_test.go
package services

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshelf/catalog-backend/internal/storage"
)

// flakyStore fails every Put after the first failAfter successes.
type flakyStore struct {
	*storage.MemoryStore
	failAfter int
	puts      int
}

func (f *flakyStore) Put(r io.Reader, extHint string) (string, error) {
	if f.puts >= f.failAfter {
		return "", storage.ErrWrite
	}
	f.puts++
	return f.MemoryStore.Put(r, extHint)
}

func upload(ext string) UploadedImage {
	return UploadedImage{Reader: strings.NewReader("image bytes"), Ext: ext}
}

func seedBlobs(t *testing.T, store storage.Store, n int) []string {
	t.Helper()
	refs := make([]string, 0, n)
	for i := 0; i < n; i++ {
		ref, err := store.Put(strings.NewReader("seeded"), ".png")
		require.NoError(t, err)
		refs = append(refs, ref)
	}
	return refs
}

func TestAttachStoresUploadsInOrder(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := NewImageService(store)

	refs, err := svc.Attach([]UploadedImage{upload(".jpg"), upload(".png"), upload(".gif")})
	require.NoError(t, err)
	require.Len(t, refs, 3)

	// Extensions betray input order
	assert.True(t, strings.HasSuffix(refs[0], ".jpg"))
	assert.True(t, strings.HasSuffix(refs[1], ".png"))
	assert.True(t, strings.HasSuffix(refs[2], ".gif"))

	for _, ref := range refs {
		exists, err := store.Exists(ref)
		require.NoError(t, err)
		assert.True(t, exists)
	}
	assert.Equal(t, 3, store.Len())
}

func TestAttachWithNoUploads(t *testing.T) {
	svc := NewImageService(storage.NewMemoryStore())

	// The manager itself imposes no minimum; that policy sits at the boundary
	refs, err := svc.Attach(nil)
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestAttachPartialFailureKeepsEarlierBlobs(t *testing.T) {
	mem := storage.NewMemoryStore()
	svc := NewImageService(&flakyStore{MemoryStore: mem, failAfter: 2})

	refs, err := svc.Attach([]UploadedImage{upload(".jpg"), upload(".jpg"), upload(".jpg")})
	require.Error(t, err)

	var partial *PartialError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, 2, partial.Failed)
	assert.Equal(t, 3, partial.Total)
	assert.Len(t, partial.Written, 2)
	assert.Equal(t, refs, partial.Written)
	assert.ErrorIs(t, partial, storage.ErrWrite)

	// Already-written blobs stay put; the caller decides their fate
	assert.Equal(t, 2, mem.Len())
}

func TestReconcileDeleteAndAppend(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := NewImageService(store)

	refs := seedBlobs(t, store, 3)
	a, b, c := refs[0], refs[1], refs[2]

	result, err := svc.Reconcile([]string{a, b, c}, []string{b}, []UploadedImage{upload(".gif")})
	require.NoError(t, err)

	require.Len(t, result.Images, 3)
	assert.Equal(t, a, result.Images[0])
	assert.Equal(t, c, result.Images[1])
	assert.True(t, strings.HasSuffix(result.Images[2], ".gif"))

	assert.Equal(t, []string{b}, result.Removed)
	assert.Equal(t, result.Images[2:3], result.Added)

	gone, err := store.Exists(b)
	require.NoError(t, err)
	assert.False(t, gone)

	added, err := store.Exists(result.Images[2])
	require.NoError(t, err)
	assert.True(t, added)
}

func TestReconcileIgnoresUnknownDeleteRequests(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := NewImageService(store)

	refs := seedBlobs(t, store, 3)

	result, err := svc.Reconcile(refs, []string{"not-owned-by-this-product.png"}, nil)
	require.NoError(t, err)

	assert.Equal(t, refs, result.Images)
	assert.Empty(t, result.Removed)
	assert.Equal(t, 3, store.Len())
}

func TestReconcilePreservesSurvivorOrder(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := NewImageService(store)

	refs := seedBlobs(t, store, 5)

	result, err := svc.Reconcile(refs, []string{refs[1], refs[3]}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{refs[0], refs[2], refs[4]}, result.Images)
}

func TestReconcileAppendsAfterAllSurvivors(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := NewImageService(store)

	refs := seedBlobs(t, store, 3)

	// Delete the first image; new uploads must still land after c
	result, err := svc.Reconcile(refs, []string{refs[0]}, []UploadedImage{upload(".gif"), upload(".webp")})
	require.NoError(t, err)

	require.Len(t, result.Images, 4)
	assert.Equal(t, refs[1], result.Images[0])
	assert.Equal(t, refs[2], result.Images[1])
	assert.Equal(t, result.Added, result.Images[2:])
}

func TestReconcileMissingBlobStillLeavesList(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := NewImageService(store)

	refs := seedBlobs(t, store, 2)
	_, err := store.Delete(refs[0])
	require.NoError(t, err)

	// The blob is already gone; removing its ref is still a success
	result, err := svc.Reconcile(refs, []string{refs[0]}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{refs[1]}, result.Images)
	assert.Equal(t, []string{refs[0]}, result.Removed)
}

func TestReconcileToEmptyListIsValid(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := NewImageService(store)

	refs := seedBlobs(t, store, 2)

	result, err := svc.Reconcile(refs, refs, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Images)
	assert.Equal(t, 0, store.Len())
}

func TestReconcilePartialUploadFailure(t *testing.T) {
	mem := storage.NewMemoryStore()
	seeded := seedBlobs(t, mem, 2)
	a, b := seeded[0], seeded[1]

	svc := NewImageService(&flakyStore{MemoryStore: mem, failAfter: 1})

	result, err := svc.Reconcile([]string{a, b}, []string{a}, []UploadedImage{upload(".gif"), upload(".gif")})
	require.Error(t, err)

	var partial *PartialError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, 1, partial.Failed)
	assert.Equal(t, 2, partial.Total)
	assert.Len(t, partial.Written, 1)

	// The accumulated list is still authoritative: survivor plus the one
	// upload that landed, with the deleted ref gone
	require.Len(t, result.Images, 2)
	assert.Equal(t, b, result.Images[0])
	assert.Equal(t, partial.Written[0], result.Images[1])
	assert.Equal(t, []string{a}, result.Removed)

	gone, err := mem.Exists(a)
	require.NoError(t, err)
	assert.False(t, gone)
}

func TestPurgeSweepsEverythingAndIgnoresMissing(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := NewImageService(store)

	refs := seedBlobs(t, store, 2)
	_, err := store.Delete(refs[0])
	require.NoError(t, err)

	// One blob was already removed out-of-band; the sweep carries on
	removed := svc.Purge(refs)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, store.Len())
}
