// Package controller implements a controller that runs the audit indexer next
// to the marketplace service when the daemon is started with auditing.
package controller

import (
	"context"

	"go.dedis.ch/agora/cli"
	"go.dedis.ch/agora/cli/node"
	"go.dedis.ch/agora/index"
	"go.dedis.ch/agora/index/postgres"
	"go.dedis.ch/agora/market"
	"golang.org/x/xerrors"
)

const flagAudit = "audit"

// runner keeps the handle on the running indexer so that the controller can
// stop it on shutdown.
type runner struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// minimal wires the audit indexer into the daemon.
//
// - implements node.Initializer
type minimal struct {
	persisterFn func() (index.Persister, error)
}

// NewController creates a new controller for the audit indexer. The postgres
// connection is read from the environment.
func NewController() node.Initializer {
	return minimal{
		persisterFn: openPostgres,
	}
}

// SetCommands implements node.Initializer.
func (m minimal) SetCommands(builder node.Builder) {
	builder.SetStartFlags(cli.BoolFlag{
		Name:     flagAudit,
		Usage:    "persist the marketplace events to the audit database",
		Required: false,
		Value:    false,
	})
}

// OnStart implements node.Initializer. It starts the indexer when auditing is
// enabled.
func (m minimal) OnStart(flags cli.Flags, inj node.Injector) error {
	if !flags.Bool(flagAudit) {
		return nil
	}

	var srvc *market.Service
	err := inj.Resolve(&srvc)
	if err != nil {
		return xerrors.Errorf("service: %v", err)
	}

	persister, err := m.persisterFn()
	if err != nil {
		return xerrors.Errorf("persister: %v", err)
	}

	indexer := index.NewIndexer(persister)

	ctx, cancel := context.WithCancel(context.Background())

	r := &runner{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(r.done)

		indexer.Run(ctx, srvc)
		persister.Close()
	}()

	inj.Inject(r)

	return nil
}

// OnStop implements node.Initializer. It stops the indexer if it is running.
func (m minimal) OnStop(inj node.Injector) error {
	var r *runner
	err := inj.Resolve(&r)
	if err != nil {
		return nil
	}

	r.cancel()
	<-r.done

	return nil
}

func openPostgres() (index.Persister, error) {
	cfg, err := postgres.LoadConfig()
	if err != nil {
		return nil, xerrors.Errorf("config: %v", err)
	}

	persister, err := postgres.NewPersister(cfg)
	if err != nil {
		return nil, xerrors.Errorf("while connecting: %v", err)
	}

	return persister, nil
}
