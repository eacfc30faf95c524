// internal/storage/disk.go
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DiskStore keeps blobs as plain files under a single content root.
type DiskStore struct {
	root string
}

func NewDiskStore(root string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create content root: %w", err)
	}
	return &DiskStore{root: root}, nil
}

func (s *DiskStore) Put(r io.Reader, extHint string) (string, error) {
	name := GenerateName(extHint)
	path := filepath.Join(s.root, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrWrite, err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("%w: %v", ErrWrite, err)
	}

	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("%w: %v", ErrWrite, err)
	}

	return name, nil
}

func (s *DiskStore) Delete(ref string) (bool, error) {
	err := os.Remove(s.localPath(ref))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to remove blob: %w", err)
	}
	return true, nil
}

func (s *DiskStore) Exists(ref string) (bool, error) {
	_, err := os.Stat(s.localPath(ref))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat blob: %w", err)
	}
	return true, nil
}

// localPath resolves a ref inside the content root. Refs are flat generated
// names; Base strips anything that could climb out of the root.
func (s *DiskStore) localPath(ref string) string {
	return filepath.Join(s.root, filepath.Base(ref))
}
