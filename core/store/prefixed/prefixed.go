// Package prefixed implements a store wrapper that confines every access to a
// namespace, so that multiple components can share a single underlying store
// without overlapping.
package prefixed

import (
	"encoding/binary"

	"go.dedis.ch/agora/core/store"
	"go.dedis.ch/agora/crypto"
)

type readable struct {
	store.Readable
	prefix []byte
}

type writable struct {
	store.Writable
	prefix []byte
}

type snapshot struct {
	*writable
	*readable
}

// NewSnapshot wraps the snapshot so that every access is confined to the given
// namespace.
func NewSnapshot(prefix string, snap store.Snapshot) store.Snapshot {
	p := []byte(prefix)

	return &snapshot{
		&writable{snap, p},
		&readable{snap, p},
	}
}

// NewReadable wraps the readable store so that every read is confined to the
// given namespace.
func NewReadable(prefix string, r store.Readable) store.Readable {
	return &readable{r, []byte(prefix)}
}

// Get implements store.Readable. It reads the key inside the namespace.
func (s *readable) Get(key []byte) ([]byte, error) {
	return s.Readable.Get(NewPrefixedKey(s.prefix, key))
}

// Set implements store.Writable. It writes the key inside the namespace.
func (s *writable) Set(key []byte, value []byte) error {
	return s.Writable.Set(NewPrefixedKey(s.prefix, key), value)
}

// Delete implements store.Writable. It deletes the key inside the namespace.
func (s *writable) Delete(key []byte) error {
	return s.Writable.Delete(NewPrefixedKey(s.prefix, key))
}

// NewPrefixedKey derives the storage key of the base key under the prefix. It
// hashes the length-delimited concatenation of both so that no pair of
// namespace and key can produce the storage key of another pair.
func NewPrefixedKey(prefix, key []byte) []byte {
	h := crypto.NewSha256Factory().New()

	length := []byte{0, 0}
	binary.LittleEndian.PutUint16(length, uint16(len(prefix)))

	h.Write(length)
	h.Write(prefix)

	length = []byte{0, 0}
	binary.LittleEndian.PutUint16(length, uint16(len(key)))

	h.Write(length)
	h.Write(key)

	return h.Sum(nil)
}
