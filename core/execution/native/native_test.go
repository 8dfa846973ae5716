package native

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/agora/core/execution"
	"go.dedis.ch/agora/core/store"
	"go.dedis.ch/agora/core/txn"
	"go.dedis.ch/agora/internal/testing/fake"
)

func TestService_Set_DuplicateName(t *testing.T) {
	srvc := NewExecution()
	srvc.Set("market", fakeContract{uid: "MRKT"})

	require.PanicsWithError(t, "contract 'market' already registered", func() {
		srvc.Set("market", fakeContract{uid: "TOKN"})
	})
}

func TestService_Set_DuplicateUID(t *testing.T) {
	srvc := NewExecution()
	srvc.Set("market", fakeContract{uid: "MRKT"})

	err := fmt.Sprintf("contract UID '%x' for '%s' already registered",
		"MRKT", "token")

	require.PanicsWithError(t, err, func() {
		srvc.Set("token", fakeContract{uid: "MRKT"})
	})
}

func TestService_Set_BadUIDLength(t *testing.T) {
	srvc := NewExecution()

	err := fmt.Sprintf("contract UID '%x' for '%s' is not 4 bytes long",
		"MK", "market")

	require.PanicsWithError(t, err, func() {
		srvc.Set("market", fakeContract{uid: "MK"})
	})
}

func TestService_Execute(t *testing.T) {
	srvc := NewExecution()
	srvc.Set("market", fakeContract{uid: "MRKT"})
	srvc.Set("rejecting", fakeContract{uid: "RJCT", err: fake.GetError()})

	step := execution.Step{}
	step.Current = fakeTx{contract: "market"}

	res, err := srvc.Execute(nil, step)
	require.NoError(t, err)
	require.Equal(t, execution.Result{Accepted: true}, res)

	// A contract error rejects the transaction without failing the service.
	step.Current = fakeTx{contract: "rejecting"}
	res, err = srvc.Execute(nil, step)
	require.NoError(t, err)
	require.Equal(t, execution.Result{Message: fake.GetError().Error()}, res)

	step.Current = fakeTx{contract: "none"}
	_, err = srvc.Execute(nil, step)
	require.EqualError(t, err, "unknown contract 'none'")
}

// -----------------------------------------------------------------------------
// Utility functions

type fakeContract struct {
	err error
	uid string
}

func (c fakeContract) Execute(store.Snapshot, execution.Step) error {
	return c.err
}

func (c fakeContract) UID() string {
	return c.uid
}

type fakeTx struct {
	txn.Transaction
	contract string
}

func (tx fakeTx) GetArg(key string) []byte {
	return []byte(tx.contract)
}
