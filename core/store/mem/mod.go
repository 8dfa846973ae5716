// Package mem implements the store interfaces with a plain in-memory map.
//
// The snapshot is not safe for concurrent use. Callers that share one across
// goroutines are expected to synchronize the accesses themselves.
package mem

// Snapshot is an in-memory implementation of a store snapshot.
//
// - implements store.Snapshot
type Snapshot struct {
	values map[string][]byte
}

// NewSnapshot creates a new empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		values: make(map[string][]byte),
	}
}

// Get implements store.Readable. It returns the value associated to the key,
// or nil if it is not set.
func (snap *Snapshot) Get(key []byte) ([]byte, error) {
	return snap.values[string(key)], nil
}

// Set implements store.Writable. It assigns the value to the key.
func (snap *Snapshot) Set(key, value []byte) error {
	snap.values[string(key)] = value

	return nil
}

// Delete implements store.Writable. It removes the key from the snapshot.
func (snap *Snapshot) Delete(key []byte) error {
	delete(snap.values, string(key))

	return nil
}
