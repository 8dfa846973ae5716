package content

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"
)

func makeManifest(t *testing.T) (Manifest, []byte) {
	t.Helper()

	blob := []byte("sealed bytes")

	blobID, err := NewID(blob)
	require.NoError(t, err)

	digest := sha256.Sum256([]byte("plaintext"))

	return Manifest{
		Title:     "weather dataset",
		MediaType: "application/x-parquet",
		Size:      uint64(len(blob)),
		Digest:    digest[:],
		Uploader:  "schnorr:deadbeef",
		Blob:      blobID.String(),
	}, blob
}

func TestManifest_ID(t *testing.T) {
	manifest, _ := makeManifest(t)

	id, err := manifest.ID()
	require.NoError(t, err)

	// The identifier is deterministic.
	again, err := manifest.ID()
	require.NoError(t, err)
	require.True(t, id.Equal(again))

	// Any metadata change moves the root.
	manifest.Title = "other"

	moved, err := manifest.ID()
	require.NoError(t, err)
	require.False(t, id.Equal(moved))
}

func TestManifest_BlobID(t *testing.T) {
	manifest, blob := makeManifest(t)

	id, err := manifest.BlobID()
	require.NoError(t, err)
	require.NoError(t, id.Verify(blob))

	manifest.Blob = "oops"

	_, err = manifest.BlobID()
	require.Error(t, err)
}

func TestDecodeManifest(t *testing.T) {
	manifest, _ := makeManifest(t)

	data, err := manifest.Encode()
	require.NoError(t, err)

	root, err := manifest.ID()
	require.NoError(t, err)

	decoded, err := DecodeManifest(data, root)
	require.NoError(t, err)
	require.Equal(t, manifest, decoded)

	// A tampered encoding no longer matches the root.
	tampered := append([]byte{}, data...)
	tampered[len(tampered)-2] ^= 1

	_, err = DecodeManifest(tampered, root)
	require.Error(t, err)
}

func TestDecodeManifest_NoBlob(t *testing.T) {
	manifest, _ := makeManifest(t)
	manifest.Blob = ""

	data, err := manifest.Encode()
	require.NoError(t, err)

	root, err := manifest.ID()
	require.NoError(t, err)

	_, err = DecodeManifest(data, root)
	require.EqualError(t, err, "manifest has no blob reference")
}
