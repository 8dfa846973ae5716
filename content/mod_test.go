package content

import (
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/require"
)

func TestID_New(t *testing.T) {
	id, err := NewID([]byte("deadbeef"))
	require.NoError(t, err)

	other, err := NewID([]byte("deadbeef"))
	require.NoError(t, err)
	require.True(t, id.Equal(other))
	require.Equal(t, id.String(), other.String())

	other, err = NewID([]byte("livebeef"))
	require.NoError(t, err)
	require.False(t, id.Equal(other))
}

func TestID_Parse(t *testing.T) {
	id, err := NewID([]byte("deadbeef"))
	require.NoError(t, err)

	parsed, err := ParseID(id.String())
	require.NoError(t, err)
	require.True(t, id.Equal(parsed))

	_, err = ParseID("oops")
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to decode: ")

	sum, err := multihash.Sum([]byte("deadbeef"), multihash.SHA2_256, -1)
	require.NoError(t, err)

	// A version 0 identifier must be refused.
	_, err = ParseID(cid.NewCidV0(sum).String())
	require.Error(t, err)
	require.Contains(t, err.Error(), "expect raw cid v1")

	// So must a version 1 identifier with another codec.
	_, err = ParseID(cid.NewCidV1(cid.DagCBOR, sum).String())
	require.Error(t, err)
	require.Contains(t, err.Error(), "expect raw cid v1")
}

func TestID_Verify(t *testing.T) {
	id, err := NewID([]byte("deadbeef"))
	require.NoError(t, err)

	require.NoError(t, id.Verify([]byte("deadbeef")))

	err = id.Verify([]byte("livebeef"))
	require.EqualError(t, err, "blob does not match '"+id.String()+"'")
}

func TestStore_Put(t *testing.T) {
	store := NewStore()

	desc, err := store.Put([]byte("blob"))
	require.NoError(t, err)
	require.Equal(t, uint64(4), desc.Size)

	id, err := NewID([]byte("blob"))
	require.NoError(t, err)
	require.True(t, id.Equal(desc.ID))
}

func TestStore_Get(t *testing.T) {
	store := NewStore()

	desc, err := store.Put([]byte("blob"))
	require.NoError(t, err)

	data, err := store.Get(desc.ID)
	require.NoError(t, err)
	require.Equal(t, []byte("blob"), data)

	unknown, err := NewID([]byte("unknown"))
	require.NoError(t, err)

	_, err = store.Get(unknown)
	require.EqualError(t, err, "blob '"+unknown.String()+"' not found")
}

func TestStore_Stat(t *testing.T) {
	store := NewStore()

	desc, err := store.Put([]byte("some longer blob"))
	require.NoError(t, err)

	stat, err := store.Stat(desc.ID)
	require.NoError(t, err)
	require.Equal(t, desc, stat)

	unknown, err := NewID([]byte("unknown"))
	require.NoError(t, err)

	_, err = store.Stat(unknown)
	require.EqualError(t, err, "blob '"+unknown.String()+"' not found")
}
