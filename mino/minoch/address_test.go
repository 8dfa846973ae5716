package minoch

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/agora/mino"
)

func TestAddress_Equal(t *testing.T) {
	addr := address{id: "gatekeeper-1"}
	require.True(t, addr.Equal(addr))
	require.False(t, addr.Equal(address{}))
	require.False(t, addr.Equal(otherAddress{}))

	// The orchestrator end shares the identifier of its instance.
	require.True(t, addr.Equal(address{id: "gatekeeper-1", orchestrator: true}))
}

func TestAddress_MarshalText(t *testing.T) {
	for _, id := range []string{"", "gatekeeper-1", "seller node"} {
		buffer, err := address{id: id}.MarshalText()
		require.NoError(t, err)
		require.Equal(t, []byte(id), buffer)
	}
}

func TestAddress_String(t *testing.T) {
	for _, id := range []string{"", "gatekeeper-1", "seller node"} {
		require.Equal(t, id, address{id: id}.String())
	}
}

func TestAddressFactory_FromText(t *testing.T) {
	factory := AddressFactory{}

	for _, id := range []string{"", "gatekeeper-1", "seller node"} {
		addr := factory.FromText([]byte(id))
		require.Equal(t, id, addr.(address).id)
	}
}

//------------------------------------------------------------------------------
// Utility functions

type otherAddress struct {
	mino.Address
}
