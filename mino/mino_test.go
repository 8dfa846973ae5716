package mino

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/agora/serde"
	"golang.org/x/xerrors"
)

func TestUnsupportedHandler_Process(t *testing.T) {
	h := UnsupportedHandler{}

	resp, err := h.Process(Request{})
	require.Error(t, err)
	require.Nil(t, resp)
}

func TestUnsupportedHandler_Stream(t *testing.T) {
	h := UnsupportedHandler{}
	require.Error(t, h.Stream(nil, nil))
}

func TestMustCreateRPC(t *testing.T) {
	rpc := MustCreateRPC(testMino{}, "gate", nil, nil)
	require.NotNil(t, rpc)
}

func TestMustCreateRPC_Panic(t *testing.T) {
	defer func() {
		err := recover().(error)
		require.EqualError(t, err, "rpc_error")
	}()

	MustCreateRPC(testMino{err: xerrors.New("rpc_error")}, "gate", nil, nil)
}

// -----------------------------------------------------------------------------
// Utility functions

type testRPC struct {
	RPC
}

type testMino struct {
	Mino

	err error
}

func (m testMino) CreateRPC(name string, h Handler, f serde.Factory) (RPC, error) {
	return testRPC{}, m.err
}
