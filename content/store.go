package content

import (
	"sync"

	"golang.org/x/xerrors"
)

// inMemoryStore is a blob storage that keeps everything in memory.
//
// - implements content.Store
type inMemoryStore struct {
	sync.Mutex

	blobs map[string][]byte
}

// NewStore creates an empty in-memory blob storage.
func NewStore() Store {
	return &inMemoryStore{
		blobs: make(map[string][]byte),
	}
}

// Put implements content.Store. It stores a copy of the blob under its
// computed identifier.
func (s *inMemoryStore) Put(data []byte) (Descriptor, error) {
	id, err := NewID(data)
	if err != nil {
		return Descriptor{}, xerrors.Errorf("failed to make id: %v", err)
	}

	blob := make([]byte, len(data))
	copy(blob, data)

	s.Lock()
	s.blobs[id.String()] = blob
	s.Unlock()

	return Descriptor{ID: id, Size: uint64(len(blob))}, nil
}

// Get implements content.Store. It returns a copy of the blob.
func (s *inMemoryStore) Get(id ID) ([]byte, error) {
	s.Lock()
	blob, found := s.blobs[id.String()]
	s.Unlock()

	if !found {
		return nil, xerrors.Errorf("blob '%s' not found", id)
	}

	data := make([]byte, len(blob))
	copy(data, blob)

	return data, nil
}

// Stat implements content.Store. It returns the descriptor of a stored blob.
func (s *inMemoryStore) Stat(id ID) (Descriptor, error) {
	s.Lock()
	blob, found := s.blobs[id.String()]
	s.Unlock()

	if !found {
		return Descriptor{}, xerrors.Errorf("blob '%s' not found", id)
	}

	return Descriptor{ID: id, Size: uint64(len(blob))}, nil
}
