package controller

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/agora/cli/node"
	"go.dedis.ch/agora/core/store/kv"
	"go.dedis.ch/agora/core/txn/signed"
	"go.dedis.ch/agora/crypto"
	"go.dedis.ch/agora/market"
	"go.dedis.ch/agora/token/mem"
)

func TestListAction(t *testing.T) {
	inj := startNode(t)

	out := new(bytes.Buffer)

	ctx := node.Context{
		Injector: inj,
		Flags: node.FlagSet{
			"content": "bafkreigh2akiscaildc",
			"price":   100,
			"name":    "dataset",
		},
		Out: out,
	}

	err := listAction{}.Execute(ctx)
	require.NoError(t, err)

	require.Contains(t, out.String(), "product listed")
}

func TestPurchaseAction(t *testing.T) {
	inj := startNode(t)

	listProduct(t, inj, "bafkreigh2akiscaildc", 100)

	var signer crypto.Signer
	require.NoError(t, inj.Resolve(&signer))

	var ledger *mem.Ledger
	require.NoError(t, inj.Resolve(&ledger))

	require.NoError(t, ledger.Mint(signer.GetPublicKey(), 1000))

	out := new(bytes.Buffer)

	ctx := node.Context{
		Injector: inj,
		Flags:    node.FlagSet{"product": 1},
		Out:      out,
	}

	// The platform account cannot buy its own listing.
	err := purchaseAction{}.Execute(ctx)
	require.Error(t, err)
	require.Contains(t, err.Error(), "transaction rejected")
}

func TestProductAction(t *testing.T) {
	inj := startNode(t)

	listProduct(t, inj, "bafkreigh2akiscaildc", 100)

	out := new(bytes.Buffer)

	ctx := node.Context{
		Injector: inj,
		Flags:    node.FlagSet{"product": 1},
		Out:      out,
	}

	err := productAction{}.Execute(ctx)
	require.NoError(t, err)

	require.Contains(t, out.String(), "product 1")
	require.Contains(t, out.String(), "price=100")
}

func TestMintAction(t *testing.T) {
	inj := startNode(t)

	var signer crypto.Signer
	require.NoError(t, inj.Resolve(&signer))

	text, err := signer.GetPublicKey().MarshalText()
	require.NoError(t, err)

	out := new(bytes.Buffer)

	ctx := node.Context{
		Injector: inj,
		Flags: node.FlagSet{
			"account": string(text),
			"amount":  500,
		},
		Out: out,
	}

	err = mintAction{}.Execute(ctx)
	require.NoError(t, err)

	var ledger *mem.Ledger
	require.NoError(t, inj.Resolve(&ledger))

	balance, err := ledger.Balance(signer.GetPublicKey())
	require.NoError(t, err)
	require.Equal(t, uint64(500), balance)
}

func TestWithdrawAction_NoBalance(t *testing.T) {
	inj := startNode(t)

	ctx := node.Context{
		Injector: inj,
		Flags:    node.FlagSet{},
		Out:      new(bytes.Buffer),
	}

	err := withdrawAction{}.Execute(ctx)
	require.Error(t, err)
	require.Contains(t, err.Error(), "transaction rejected")
}

// -----------------------------------------------------------------------------
// Utility functions

func startNode(t *testing.T) node.Injector {
	t.Helper()

	inj := node.NewInjector()

	db, err := kv.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })

	inj.Inject(db)

	ctrl := NewController()

	flags := node.FlagSet{"config": t.TempDir()}

	require.NoError(t, ctrl.OnStart(flags, inj))

	t.Cleanup(func() { ctrl.OnStop(inj) })

	var signer crypto.Signer
	require.NoError(t, inj.Resolve(&signer))

	var srvc *market.Service
	require.NoError(t, inj.Resolve(&srvc))

	inj.Inject(signed.NewManager(signer, srvc))

	return inj
}

func listProduct(t *testing.T, inj node.Injector, contentID string, price int) {
	t.Helper()

	ctx := node.Context{
		Injector: inj,
		Flags: node.FlagSet{
			"content": contentID,
			"price":   price,
			"name":    "dataset",
		},
		Out: new(bytes.Buffer),
	}

	require.NoError(t, listAction{}.Execute(ctx))
}
