package node

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type ledger interface {
	Name() string
}

type memLedger struct{}

func (memLedger) Name() string { return "market" }

func TestReflectInjector_Resolve(t *testing.T) {
	inj := NewInjector()

	inj.Inject(memLedger{})

	var svc ledger
	err := inj.Resolve(&svc)
	require.NoError(t, err)
	require.Equal(t, "market", svc.Name())

	var dep uint64
	err = inj.Resolve(&dep)
	require.EqualError(t, err, "couldn't find dependency for 'uint64'")

	err = inj.Resolve((*interface{})(nil))
	require.EqualError(t, err, "reflect value '<nil>' is invalid")

	err = inj.Resolve(dep)
	require.EqualError(t, err, "expect a pointer")
}

func TestReflectInjector_Inject_Replaces(t *testing.T) {
	inj := NewInjector()

	inj.Inject("seller-1")
	inj.Inject("seller-2")

	var id string
	err := inj.Resolve(&id)
	require.NoError(t, err)
	require.Equal(t, "seller-2", id)
}
