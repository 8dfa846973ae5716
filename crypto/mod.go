// Package crypto defines the cryptographic primitives that the module needs:
// hashing, signatures and the identities derived from the public
// keys.
//
// Account identities on the marketplace ledger are public keys, so the
// package also defines the factories to deserialize them from the wire.
package crypto

import (
	"encoding"
	"hash"

	"go.dedis.ch/agora/mino"
	"go.dedis.ch/agora/serde"
)

// HashFactory is an interface to produce a hash digest.
type HashFactory interface {
	New() hash.Hash
}

// PublicKey is a public identity that can be used to verify a signature.
type PublicKey interface {
	encoding.BinaryMarshaler
	encoding.TextMarshaler
	serde.Message

	// Verify returns nil if the signature matches the message, otherwise an
	// error is returned.
	Verify(msg []byte, signature Signature) error

	// Equal returns true when both objects are similar.
	Equal(other interface{}) bool
}

// PublicKeyFactory is a factory to decode public keys.
type PublicKeyFactory interface {
	serde.Factory

	// PublicKeyOf populates the public key associated to the data if
	// appropriate, otherwise it returns an error.
	PublicKeyOf(ctx serde.Context, data []byte) (PublicKey, error)

	// FromBytes returns the public key unmarshaled from the bytes.
	FromBytes(data []byte) (PublicKey, error)
}

// PublicKeyIterator is an iterator over the list of public keys of a
// collective authority.
type PublicKeyIterator interface {
	// Seek moves the iterator to a specific index.
	Seek(int)

	// HasNext returns true if a public key is available, false if the iterator
	// is exhausted.
	HasNext() bool

	// GetNext returns the next public key in case HasNext returns true,
	// otherwise no assumption can be done.
	GetNext() PublicKey
}

// Signature is a verifiable element for a unique message.
type Signature interface {
	encoding.BinaryMarshaler
	serde.Message

	// Equal returns true when both objects are similar.
	Equal(other Signature) bool
}

// SignatureFactory is a factory to decode signatures.
type SignatureFactory interface {
	serde.Factory

	// SignatureOf populates the signature associated to the data if
	// appropriate, otherwise it returns an error.
	SignatureOf(ctx serde.Context, data []byte) (Signature, error)
}

// Signer provides the primitives to sign and verify messages.
type Signer interface {
	// GetPublicKeyFactory returns a factory that can deserialize public keys
	// of the same type as the signer.
	GetPublicKeyFactory() PublicKeyFactory

	// GetSignatureFactory returns a factory that can deserialize signatures
	// of the same type as the signer.
	GetSignatureFactory() SignatureFactory

	// GetPublicKey returns the public key of the signer.
	GetPublicKey() PublicKey

	// Sign returns a signature that will match the message for the signer
	// public key.
	Sign(msg []byte) (Signature, error)
}

// CollectiveAuthority is a set of participants to a distributed protocol,
// binding an address to each public key.
type CollectiveAuthority interface {
	mino.Players

	// GetPublicKey returns the public key and its index of the corresponding
	// address if any, otherwise -1.
	GetPublicKey(addr mino.Address) (PublicKey, int)

	// PublicKeyIterator creates a public key iterator that iterates over the
	// list of public keys and is consistent with the address iterator.
	PublicKeyIterator() PublicKeyIterator
}
