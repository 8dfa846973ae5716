package mem

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSnapshot_Get(t *testing.T) {
	snap := NewSnapshot()
	snap.values["A"] = []byte{1}

	value, err := snap.Get([]byte("A"))
	require.NoError(t, err)
	require.Equal(t, []byte{1}, value)

	value, err = snap.Get([]byte("B"))
	require.NoError(t, err)
	require.Nil(t, value)
}

func TestSnapshot_Set(t *testing.T) {
	snap := NewSnapshot()

	err := snap.Set([]byte("A"), []byte{1})
	require.NoError(t, err)
	require.Equal(t, []byte{1}, snap.values["A"])
}

func TestSnapshot_Delete(t *testing.T) {
	snap := NewSnapshot()
	snap.values["A"] = []byte{1}

	err := snap.Delete([]byte("A"))
	require.NoError(t, err)

	_, found := snap.values["A"]
	require.False(t, found)
}
