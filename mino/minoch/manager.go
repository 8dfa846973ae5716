// This file contains the manager that routes messages between the in-process
// instances.

package minoch

import (
	"sync"

	"go.dedis.ch/agora/mino"
	"golang.org/x/xerrors"
)

// Manager keeps the directory of instances. Every instance of the same
// in-process network shares one manager.
type Manager struct {
	sync.Mutex

	instances map[string]*Minoch
}

// NewManager creates a new empty manager.
func NewManager() *Manager {
	return &Manager{
		instances: make(map[string]*Minoch),
	}
}

func (m *Manager) get(addr mino.Address) (*Minoch, error) {
	m.Lock()
	defer m.Unlock()

	a, ok := addr.(address)
	if !ok {
		return nil, xerrors.Errorf("invalid address type '%T'", addr)
	}

	peer := m.instances[a.id]
	if peer == nil {
		return nil, xerrors.Errorf("address <%s> not found", a.id)
	}

	return peer, nil
}

func (m *Manager) insert(inst mino.Mino) error {
	instance, ok := inst.(*Minoch)
	if !ok {
		return xerrors.Errorf("invalid instance type '%T'", inst)
	}

	addr, ok := instance.GetAddress().(address)
	if !ok {
		return xerrors.Errorf("invalid address type '%T'", instance.GetAddress())
	}

	if addr.id == "" {
		return xerrors.New("cannot have an empty identifier")
	}

	m.Lock()
	defer m.Unlock()

	if _, found := m.instances[addr.id]; found {
		return xerrors.Errorf("identifier <%s> already exists", addr.id)
	}

	m.instances[addr.id] = instance

	return nil
}
