// Package controller wires a transaction manager into the node, built from
// the signer and the nonce client that other controllers injected before.
package controller

import (
	"go.dedis.ch/agora/cli"
	"go.dedis.ch/agora/cli/node"
	"go.dedis.ch/agora/core/txn/signed"
	"go.dedis.ch/agora/crypto"
	"golang.org/x/xerrors"
)

// mgrController injects a signed transaction manager when the node starts.
//
// - implements node.Initializer
type mgrController struct{}

// NewManagerController creates a new controller that will inject a transaction
// manager in the context.
func NewManagerController() node.Initializer {
	return mgrController{}
}

// SetCommands implements node.Initializer. The manager has no command of its
// own.
func (mgrController) SetCommands(node.Builder) {}

// OnStart implements node.Initializer. It resolves the signer and the nonce
// client, and injects the manager made from them.
func (mgrController) OnStart(flags cli.Flags, inj node.Injector) error {
	var signer crypto.Signer
	err := inj.Resolve(&signer)
	if err != nil {
		return xerrors.Errorf("signer: %v", err)
	}

	var client signed.Client
	err = inj.Resolve(&client)
	if err != nil {
		return xerrors.Errorf("client: %v", err)
	}

	mgr := signed.NewManager(signer, client)

	inj.Inject(mgr)

	return nil
}

// OnStop implements node.Initializer.
func (mgrController) OnStop(node.Injector) error {
	return nil
}
