// Package controller implements a controller for the gatekeeper. It wires the
// threshold cohort on top of the mino instance and the marketplace views, and
// exposes the command to set up the cohort from a manifest.
package controller

import (
	"encoding/base64"
	"fmt"

	"go.dedis.ch/agora/cli"
	"go.dedis.ch/agora/cli/node"
	"go.dedis.ch/agora/gate"
	"go.dedis.ch/agora/gate/shamir"
	"go.dedis.ch/agora/market"
	"go.dedis.ch/agora/mino"
	"golang.org/x/xerrors"
)

// minimal wires the gatekeeper into the daemon.
//
// - implements node.Initializer
type minimal struct{}

// NewController creates a new controller for the gatekeeper.
func NewController() node.Initializer {
	return minimal{}
}

// SetCommands implements node.Initializer. It registers the gate commands.
func (m minimal) SetCommands(builder node.Builder) {
	cmd := builder.SetCommand("gate")

	sub := cmd.SetSubCommand("setup")
	sub.SetDescription("deal the cohort shares from a manifest")
	sub.SetFlags(cli.StringFlag{
		Name:     "manifest",
		Usage:    "path to the YAML cohort manifest",
		Required: true,
	})
	sub.SetAction(builder.MakeAction(setupAction{}))

	sub = cmd.SetSubCommand("pubkey")
	sub.SetDescription("print the cohort public key")
	sub.SetAction(builder.MakeAction(pubkeyAction{}))

	sub = cmd.SetSubCommand("export")
	sub.SetDescription("print the manifest entry of this member")
	sub.SetAction(builder.MakeAction(exportAction{}))
}

// OnStart implements node.Initializer. It creates the gatekeeper backed by the
// ledger oracle of the local marketplace and starts listening.
func (m minimal) OnStart(flags cli.Flags, inj node.Injector) error {
	var no mino.Mino
	err := inj.Resolve(&no)
	if err != nil {
		return xerrors.Errorf("mino: %v", err)
	}

	var srvc *market.Service
	err = inj.Resolve(&srvc)
	if err != nil {
		return xerrors.Errorf("service: %v", err)
	}

	gk := shamir.NewShamir(no, gate.NewLedgerOracle(srvc))

	inj.Inject(gk)

	actor, err := gk.Listen()
	if err != nil {
		return xerrors.Errorf("while listening: %v", err)
	}

	inj.Inject(actor)

	return nil
}

// OnStop implements node.Initializer.
func (m minimal) OnStop(inj node.Injector) error {
	return nil
}

// pubkeyAction prints the cohort public key once the setup is done.
//
// - implements node.ActionTemplate
type pubkeyAction struct{}

// Execute implements node.ActionTemplate.
func (pubkeyAction) Execute(ctx node.Context) error {
	var actor gate.Actor
	err := ctx.Injector.Resolve(&actor)
	if err != nil {
		return xerrors.Errorf("actor: %v", err)
	}

	pubkey, err := actor.GetPublicKey()
	if err != nil {
		return xerrors.Errorf("pubkey: %v", err)
	}

	buf, err := pubkey.MarshalBinary()
	if err != nil {
		return xerrors.Errorf("while marshaling: %v", err)
	}

	fmt.Fprintf(ctx.Out, "%s", base64.StdEncoding.EncodeToString(buf))

	return nil
}
