package controller

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/agora/cli/node"
	"go.dedis.ch/agora/core/store/kv"
	"go.dedis.ch/agora/crypto"
	"go.dedis.ch/agora/crypto/ed25519"
	"go.dedis.ch/agora/gate"
	"go.dedis.ch/agora/market"
	"go.dedis.ch/agora/mino"
	"go.dedis.ch/agora/mino/minoch"
	"go.dedis.ch/agora/token/mem"
	"gopkg.in/yaml.v2"

	_ "go.dedis.ch/agora/crypto/ed25519/json"
	_ "go.dedis.ch/agora/gate/types/json"
)

func TestController_OnStart(t *testing.T) {
	inj := node.NewInjector()

	ctrl := NewController()

	err := ctrl.OnStart(node.FlagSet{}, inj)
	require.EqualError(t, err, "mino: couldn't find dependency for 'mino.Mino'")

	manager := minoch.NewManager()
	inj.Inject(minoch.MustCreate(manager, "node"))

	err = ctrl.OnStart(node.FlagSet{}, inj)
	require.EqualError(t, err, "service: couldn't find dependency for '*market.Service'")

	inj.Inject(makeService(t))

	err = ctrl.OnStart(node.FlagSet{}, inj)
	require.NoError(t, err)

	var actor gate.Actor
	require.NoError(t, inj.Resolve(&actor))

	require.NoError(t, ctrl.OnStop(inj))
}

func TestSetupAction(t *testing.T) {
	inj := startMember(t)

	var no mino.Mino
	require.NoError(t, inj.Resolve(&no))

	var signer crypto.Signer
	require.NoError(t, inj.Resolve(&signer))

	pubkey, err := signer.GetPublicKey().MarshalBinary()
	require.NoError(t, err)

	manifest := Manifest{
		Threshold: 1,
		Members: []Member{{
			Address: no.GetAddress().String(),
			Pubkey:  base64.StdEncoding.EncodeToString(pubkey),
		}},
	}

	data, err := yaml.Marshal(manifest)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "cohort.yml")
	require.NoError(t, os.WriteFile(path, data, 0600))

	out := new(bytes.Buffer)

	ctx := node.Context{
		Injector: inj,
		Flags:    node.FlagSet{"manifest": path},
		Out:      out,
	}

	err = setupAction{}.Execute(ctx)
	require.NoError(t, err)
	require.Contains(t, out.String(), "cohort ready")

	out.Reset()

	err = pubkeyAction{}.Execute(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, out.String())
}

func TestSetupAction_BadManifest(t *testing.T) {
	inj := startMember(t)

	path := filepath.Join(t.TempDir(), "cohort.yml")
	require.NoError(t, os.WriteFile(path, []byte("threshold: ["), 0600))

	ctx := node.Context{
		Injector: inj,
		Flags:    node.FlagSet{"manifest": path},
		Out:      new(bytes.Buffer),
	}

	err := setupAction{}.Execute(ctx)
	require.Error(t, err)
	require.Contains(t, err.Error(), "while decoding the manifest")
}

func TestExportAction(t *testing.T) {
	inj := startMember(t)

	out := new(bytes.Buffer)

	ctx := node.Context{
		Injector: inj,
		Flags:    node.FlagSet{},
		Out:      out,
	}

	err := exportAction{}.Execute(ctx)
	require.NoError(t, err)

	var member Member
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &member))
	require.NotEmpty(t, member.Address)
	require.NotEmpty(t, member.Pubkey)
}

// -----------------------------------------------------------------------------
// Utility functions

func makeService(t *testing.T) *market.Service {
	t.Helper()

	db, err := kv.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })

	owner := ed25519.NewSigner().GetPublicKey()

	contract, err := market.NewContract(mem.NewLedger(), owner)
	require.NoError(t, err)

	srvc, err := market.NewService(contract, db, owner, 500)
	require.NoError(t, err)

	require.NoError(t, srvc.Listen())

	t.Cleanup(func() { srvc.Close() })

	return srvc
}

func startMember(t *testing.T) node.Injector {
	t.Helper()

	inj := node.NewInjector()

	manager := minoch.NewManager()
	inj.Inject(minoch.MustCreate(manager, "node"))

	inj.Inject(makeService(t))
	inj.Inject(ed25519.NewSigner())

	ctrl := NewController()
	require.NoError(t, ctrl.OnStart(node.FlagSet{}, inj))

	return inj
}
