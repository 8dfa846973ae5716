// Package loader takes care of long-lived keys on disk. A node keeps its
// signing key across restarts, so the first start generates the key and
// every later start reads the same file back.
package loader

// Generator is the interface to implement to generate a key.
type Generator interface {
	Generate() ([]byte, error)
}

// Loader loads a key from a persistent storage, generating it on first use.
type Loader interface {
	// LoadOrCreate tries to load the key and returns it if found, otherwise it
	// generates a new one using the generator and stores it.
	LoadOrCreate(Generator) ([]byte, error)
}
