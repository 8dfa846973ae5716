package controller

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/agora/cli"
	"go.dedis.ch/agora/cli/node"
	"go.dedis.ch/agora/mino/proxy/http"
)

func TestCtrl_SetCommands(t *testing.T) {
	ctrl := NewController()

	builder := &fakeBuilder{}
	ctrl.SetCommands(builder)

	require.Equal(t, []string{"proxy"}, builder.commands)
	require.Equal(t, []string{"start", "prom"}, builder.subcommands)
}

func TestCtrl_OnStart(t *testing.T) {
	ctrl := NewController()

	err := ctrl.OnStart(node.FlagSet{}, node.NewInjector())
	require.NoError(t, err)
}

func TestCtrl_OnStop(t *testing.T) {
	ctrl := NewController()

	// Stopping without a proxy injected is a no-op.
	err := ctrl.OnStop(node.NewInjector())
	require.NoError(t, err)

	proxy := http.NewHTTP("127.0.0.1:0")
	go proxy.Listen()

	inj := node.NewInjector()
	inj.Inject(proxy)

	err = ctrl.OnStop(inj)
	require.NoError(t, err)
}

// -----------------------------------------------------------------------------
// Utility functions

// fakeBuilder records the commands set by the initializer.
//
// - implements node.Builder
type fakeBuilder struct {
	commands    []string
	subcommands []string
}

// SetCommand implements node.Builder.
func (f *fakeBuilder) SetCommand(name string) cli.CommandBuilder {
	f.commands = append(f.commands, name)
	return fakeCommandBuilder{parent: f}
}

// SetStartFlags implements node.Builder.
func (f *fakeBuilder) SetStartFlags(flags ...cli.Flag) {}

// MakeAction implements node.Builder.
func (f *fakeBuilder) MakeAction(_ node.ActionTemplate) cli.Action {
	return nil
}

// fakeCommandBuilder registers subcommand names on the parent builder.
//
// - implements cli.CommandBuilder
type fakeCommandBuilder struct {
	parent *fakeBuilder
}

func (b fakeCommandBuilder) SetDescription(value string) {}

func (b fakeCommandBuilder) SetFlags(flags ...cli.Flag) {}

func (b fakeCommandBuilder) SetAction(a cli.Action) {}

func (b fakeCommandBuilder) SetSubCommand(name string) cli.CommandBuilder {
	b.parent.subcommands = append(b.parent.subcommands, name)
	return b
}
