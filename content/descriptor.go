package content

import (
	"encoding/json"

	"golang.org/x/xerrors"
)

// Manifest is the descriptor bundle of an asset sold on the marketplace. The
// root content identifier listed on the ledger is the identifier of the
// canonical encoding of the manifest, so the listing commits to the metadata,
// the sealed blob and the access policy at once.
type Manifest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	MediaType   string `json:"mediaType"`
	Size        uint64 `json:"size"`

	// Digest is the SHA-256 digest of the plaintext, so a buyer can check the
	// decrypted asset against what was advertised.
	Digest []byte `json:"digest"`

	// Uploader is the text form of the seller's verification key.
	Uploader string `json:"uploader"`

	// Blob is the identifier of the sealed blob, and Cover the identifier of
	// the optional public cover of the listing.
	Blob  string `json:"blob"`
	Cover string `json:"cover,omitempty"`
}

// Encode returns the canonical encoding of the manifest. The encoding is a
// JSON object with a fixed field order, so the same manifest always maps to
// the same identifier.
func (m Manifest) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, xerrors.Errorf("failed to encode manifest: %v", err)
	}

	return data, nil
}

// ID returns the root content identifier of the manifest.
func (m Manifest) ID() (ID, error) {
	data, err := m.Encode()
	if err != nil {
		return ID{}, err
	}

	id, err := NewID(data)
	if err != nil {
		return ID{}, xerrors.Errorf("failed to make id: %v", err)
	}

	return id, nil
}

// BlobID returns the identifier of the sealed blob.
func (m Manifest) BlobID() (ID, error) {
	id, err := ParseID(m.Blob)
	if err != nil {
		return ID{}, xerrors.Errorf("invalid blob reference: %v", err)
	}

	return id, nil
}

// DecodeManifest decodes a canonical manifest encoding and verifies that it
// matches the expected root identifier.
func DecodeManifest(data []byte, root ID) (Manifest, error) {
	err := root.Verify(data)
	if err != nil {
		return Manifest{}, xerrors.Errorf("manifest does not match root: %v", err)
	}

	var m Manifest

	err = json.Unmarshal(data, &m)
	if err != nil {
		return Manifest{}, xerrors.Errorf("failed to decode manifest: %v", err)
	}

	if m.Blob == "" {
		return Manifest{}, xerrors.New("manifest has no blob reference")
	}

	_, err = ParseID(m.Blob)
	if err != nil {
		return Manifest{}, xerrors.Errorf("invalid blob reference: %v", err)
	}

	return m, nil
}
