package prefixed

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/agora/core/store/mem"
)

func TestSnapshot_Isolation(t *testing.T) {
	base := mem.NewSnapshot()

	s1 := NewSnapshot("ns1", base)
	s2 := NewSnapshot("ns2", base)

	require.NoError(t, s1.Set([]byte("key"), []byte{1}))
	require.NoError(t, s2.Set([]byte("key"), []byte{2}))

	value, err := s1.Get([]byte("key"))
	require.NoError(t, err)
	require.Equal(t, []byte{1}, value)

	value, err = s2.Get([]byte("key"))
	require.NoError(t, err)
	require.Equal(t, []byte{2}, value)

	require.NoError(t, s1.Delete([]byte("key")))

	value, err = s1.Get([]byte("key"))
	require.NoError(t, err)
	require.Nil(t, value)

	value, err = s2.Get([]byte("key"))
	require.NoError(t, err)
	require.Equal(t, []byte{2}, value)
}

func TestReadable_Get(t *testing.T) {
	base := mem.NewSnapshot()

	err := NewSnapshot("ns", base).Set([]byte("key"), []byte{1})
	require.NoError(t, err)

	value, err := NewReadable("ns", base).Get([]byte("key"))
	require.NoError(t, err)
	require.Equal(t, []byte{1}, value)
}

func TestNewPrefixedKey_Distinct(t *testing.T) {
	k1 := NewPrefixedKey([]byte("ab"), []byte("c"))
	k2 := NewPrefixedKey([]byte("a"), []byte("bc"))

	require.Len(t, k1, 32)
	require.NotEqual(t, k1, k2)
}
