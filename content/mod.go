// Package content defines how the sealed blobs sold on the marketplace are
// identified and stored.
//
// A blob is identified by a CID version 1 with the raw codec and a SHA-256
// multihash of its bytes, so that the identifier listed on the market commits
// to the exact ciphertext the buyer will download. The access gate binds its
// release policy to the same identifier.
package content

import (
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"golang.org/x/xerrors"
)

// ID is the content identifier of a blob.
type ID struct {
	c cid.Cid
}

// NewID computes the identifier of the blob.
func NewID(data []byte) (ID, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return ID{}, xerrors.Errorf("failed to hash blob: %v", err)
	}

	return ID{c: cid.NewCidV1(cid.Raw, sum)}, nil
}

// ParseID decodes the textual form of an identifier. It accepts only raw
// version 1 identifiers.
func ParseID(text string) (ID, error) {
	c, err := cid.Decode(text)
	if err != nil {
		return ID{}, xerrors.Errorf("failed to decode: %v", err)
	}

	if c.Version() != 1 || c.Type() != cid.Raw {
		return ID{}, xerrors.Errorf("expect raw cid v1, got version %d and codec %d",
			c.Version(), c.Type())
	}

	return ID{c: c}, nil
}

// String implements fmt.Stringer. It returns the canonical textual form of
// the identifier.
func (id ID) String() string {
	return id.c.String()
}

// Bytes returns the binary form of the identifier.
func (id ID) Bytes() []byte {
	return id.c.Bytes()
}

// Equal returns true when both identifiers point to the same blob.
func (id ID) Equal(other ID) bool {
	return id.c.Equals(other.c)
}

// Verify returns an error when the blob does not match the identifier.
func (id ID) Verify(data []byte) error {
	other, err := NewID(data)
	if err != nil {
		return err
	}

	if !id.Equal(other) {
		return xerrors.Errorf("blob does not match '%s'", id)
	}

	return nil
}

// Descriptor contains the metadata of a stored blob.
type Descriptor struct {
	ID   ID
	Size uint64
}

// Store is the interface of the blob storage.
type Store interface {
	// Put stores the blob and returns its descriptor.
	Put(data []byte) (Descriptor, error)

	// Get returns the blob of the identifier.
	Get(id ID) ([]byte, error)

	// Stat returns the descriptor of the blob without reading it.
	Stat(id ID) (Descriptor, error)
}
