package controller

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/agora/cli/node"
	"go.dedis.ch/agora/core/store/kv"
	"go.dedis.ch/agora/crypto/ed25519"
	"go.dedis.ch/agora/index"
	"go.dedis.ch/agora/market"
	"go.dedis.ch/agora/token/mem"
)

func TestController_Disabled(t *testing.T) {
	ctrl := NewController()

	inj := node.NewInjector()

	err := ctrl.OnStart(node.FlagSet{}, inj)
	require.NoError(t, err)

	// Nothing was started, so nothing to stop.
	err = ctrl.OnStop(inj)
	require.NoError(t, err)
}

func TestController_StartStop(t *testing.T) {
	persister := &recordingPersister{}

	ctrl := minimal{
		persisterFn: func() (index.Persister, error) {
			return persister, nil
		},
	}

	inj := node.NewInjector()
	inj.Inject(makeService(t))

	err := ctrl.OnStart(node.FlagSet{"audit": true}, inj)
	require.NoError(t, err)

	err = ctrl.OnStop(inj)
	require.NoError(t, err)

	require.True(t, persister.closed())
}

func TestController_NoService(t *testing.T) {
	ctrl := NewController()

	err := ctrl.OnStart(node.FlagSet{"audit": true}, node.NewInjector())
	require.Error(t, err)
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

// recordingPersister remembers whether it was closed.
//
// - implements index.Persister
type recordingPersister struct {
	sync.Mutex
	rows   []index.Row
	isDone bool
}

func (p *recordingPersister) Save(rows []index.Row) error {
	p.Lock()
	defer p.Unlock()

	p.rows = append(p.rows, rows...)

	return nil
}

func (p *recordingPersister) Close() error {
	p.Lock()
	defer p.Unlock()

	p.isDone = true

	return nil
}

func (p *recordingPersister) closed() bool {
	p.Lock()
	defer p.Unlock()

	return p.isDone
}
