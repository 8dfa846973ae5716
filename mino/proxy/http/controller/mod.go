// Package controller exposes the proxy commands of a node. The proxy is the
// HTTP surface of the marketplace: services register their endpoints on it
// and the prom subcommand adds the prometheus metrics handler.
package controller

import (
	"go.dedis.ch/agora/cli"
	"go.dedis.ch/agora/cli/node"
	"go.dedis.ch/agora/mino/proxy/http"
)

const defaultAddr = "127.0.0.1:8080"

const defaultProm = "/metrics"

// NewController returns an initializer for the proxy commands.
func NewController() node.Initializer {
	return ctrl{}
}

// ctrl sets up the proxy server of a node.
//
// - implements node.Initializer
type ctrl struct{}

// SetCommands implements node.Initializer. It registers the proxy start and
// prom subcommands.
func (c ctrl) SetCommands(builder node.Builder) {
	cmd := builder.SetCommand("proxy")
	sub := cmd.SetSubCommand("start")

	sub.SetDescription("start the proxy http server")
	sub.SetFlags(cli.StringFlag{
		Name:     "clientaddr",
		Required: false,
		Usage:    "the address of the http client",
		Value:    defaultAddr,
	})
	sub.SetAction(builder.MakeAction(startAction{}))

	sub = cmd.SetSubCommand("prom")

	sub.SetDescription("registers the collectors and starts a prometheus handler. " +
		"Will panic if the path is used more than once.")
	sub.SetFlags(cli.StringFlag{
		Name:     "path",
		Required: false,
		Usage:    "the handler path",
		Value:    defaultProm,
	})
	sub.SetAction(builder.MakeAction(promAction{}))
}

// OnStart implements node.Initializer. The proxy is only started on demand by
// the start subcommand, so there is nothing to do here.
func (c ctrl) OnStart(ctx cli.Flags, inj node.Injector) error {
	return nil
}

// OnStop implements node.Initializer. It stops the http server when one was
// started.
func (c ctrl) OnStop(inj node.Injector) error {
	var proxy *http.HTTP
	err := inj.Resolve(&proxy)
	if err == nil {
		proxy.Stop()
	}

	return nil
}
