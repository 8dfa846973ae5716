// Package controller implements a minimal controller that opens the key/value
// database and injects it for the other components.
package controller

import (
	"path/filepath"

	"go.dedis.ch/agora/cli"
	"go.dedis.ch/agora/cli/node"
	"go.dedis.ch/agora/core/store/kv"
	"golang.org/x/xerrors"
)

type minimal struct{}

// NewMinimal returns an initializer that opens the database on startup and
// closes it on shutdown.
func NewMinimal() node.Initializer {
	return minimal{}
}

// SetCommands implements node.Initializer. It does not register any command.
func (m minimal) SetCommands(builder node.Builder) {}

// OnStart implements node.Initializer. It opens the database in the
// configuration folder and injects it.
func (m minimal) OnStart(flags cli.Flags, inj node.Injector) error {
	db, err := kv.New(filepath.Join(flags.Path("config"), "agora.db"))
	if err != nil {
		return xerrors.Errorf("db: %v", err)
	}

	inj.Inject(db)

	return nil
}

// OnStop implements node.Initializer. It closes the database.
func (m minimal) OnStop(inj node.Injector) error {
	var db kv.DB
	err := inj.Resolve(&db)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	err = db.Close()
	if err != nil {
		return xerrors.Errorf("while closing db: %v", err)
	}

	return nil
}
