// Package controller implements a controller that creates an in-memory mino
// instance for the node.
package controller

import (
	"fmt"

	"go.dedis.ch/agora/cli"
	"go.dedis.ch/agora/cli/node"
	"go.dedis.ch/agora/internal/tracing"
	"go.dedis.ch/agora/mino"
	"go.dedis.ch/agora/mino/minoch"
	"golang.org/x/xerrors"
)

const flagID = "minoch-id"

// controller creates the minoch instance of the daemon.
//
// - implements node.Initializer
type controller struct{}

// NewController creates an initializer that starts an in-memory mino.
func NewController() node.Initializer {
	return controller{}
}

// SetCommands implements node.Initializer.
func (c controller) SetCommands(builder node.Builder) {
	builder.SetStartFlags(cli.StringFlag{
		Name:     flagID,
		Usage:    "identifier of the instance in the in-memory network",
		Required: false,
		Value:    "agora",
	})

	cmd := builder.SetCommand("minoch")
	sub := cmd.SetSubCommand("address")
	sub.SetDescription("print the address of the instance")
	sub.SetAction(builder.MakeAction(addressAction{}))
}

// OnStart implements node.Initializer. It creates the manager and the instance
// and injects both.
func (c controller) OnStart(flags cli.Flags, inj node.Injector) error {
	manager := minoch.NewManager()

	m := minoch.MustCreate(manager, flags.String(flagID))

	inj.Inject(manager)
	inj.Inject(m)

	return nil
}

// OnStop implements node.Initializer. It closes the tracers opened by the
// streams of the instance.
func (c controller) OnStop(inj node.Injector) error {
	err := tracing.CloseAll()
	if err != nil {
		return xerrors.Errorf("failed to close tracers: %v", err)
	}

	return nil
}

// addressAction prints the address of the mino instance.
//
// - implements node.ActionTemplate
type addressAction struct{}

// Execute implements node.ActionTemplate.
func (addressAction) Execute(ctx node.Context) error {
	var m mino.Mino
	err := ctx.Injector.Resolve(&m)
	if err != nil {
		return err
	}

	fmt.Fprintf(ctx.Out, "%s", m.GetAddress().String())

	return nil
}
