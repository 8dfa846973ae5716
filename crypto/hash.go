// This file contains the implementation of the hash factory.

package crypto

import (
	"crypto/sha256"
	"hash"
)

// hashFactory creates SHA-256 hashers. Transaction digests and namespaced
// store keys are both built on it.
//
// - implements crypto.HashFactory
type hashFactory struct{}

// NewSha256Factory returns a new instance of the factory.
func NewSha256Factory() hashFactory {
	return hashFactory{}
}

// New implements crypto.HashFactory. It returns a new Hash instance.
func (f hashFactory) New() hash.Hash {
	return sha256.New()
}
