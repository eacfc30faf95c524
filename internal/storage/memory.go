// internal/storage/memory.go
package storage

import (
	"fmt"
	"io"
	"sync"
)

// MemoryStore is an in-memory Store used by tests and credential-less
// development setups.
type MemoryStore struct {
	mtx   sync.Mutex
	blobs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blobs: make(map[string][]byte),
	}
}

func (s *MemoryStore) Put(r io.Reader, extHint string) (string, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrWrite, err)
	}

	name := GenerateName(extHint)

	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.blobs[name] = content

	return name, nil
}

func (s *MemoryStore) Delete(ref string) (bool, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.blobs[ref]; !ok {
		return false, nil
	}
	delete(s.blobs, ref)
	return true, nil
}

func (s *MemoryStore) Exists(ref string) (bool, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	_, ok := s.blobs[ref]
	return ok, nil
}

// Len reports how many blobs the store currently holds.
func (s *MemoryStore) Len() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return len(s.blobs)
}
