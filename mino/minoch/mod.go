// Package minoch is the in-process implementation of Mino. Instances exchange
// messages over Go channels through a shared manager, so a whole gatekeeper
// cohort can run inside one process.
//
// This is the transport the cohort tests and the local deployments run on.
// It additionally supports filters: a filter is called for every incoming
// message and decides whether the instance drops it.
package minoch

import (
	"fmt"
	"sync"

	"go.dedis.ch/agora"
	"go.dedis.ch/agora/internal/tracing"
	"go.dedis.ch/agora/mino"
	"go.dedis.ch/agora/serde"
	"go.dedis.ch/agora/serde/json"
	"golang.org/x/xerrors"
)

// Filter is a function called for any request to an RPC which will drop it if
// it returns false.
type Filter func(mino.Request) bool

// Minoch is one member of the in-process network. Each instance registers a
// unique identifier with the manager, which doubles as its address.
//
// - implements mino.Mino
type Minoch struct {
	sync.Mutex

	manager    *Manager
	identifier string
	path       string
	rpcs       map[string]*RPC
	context    serde.Context
	filters    []Filter
}

// NewMinoch creates an instance and registers it with the manager.
func NewMinoch(manager *Manager, identifier string) (*Minoch, error) {
	inst := &Minoch{
		manager:    manager,
		identifier: identifier,
		path:       "",
		rpcs:       make(map[string]*RPC),
		context:    json.NewContext(),
	}

	err := manager.insert(inst)
	if err != nil {
		return nil, xerrors.Errorf("manager refused: %v", err.Error())
	}

	agora.Logger.Trace().Msgf("New instance with identifier %s", identifier)

	return inst, nil
}

// MustCreate creates a new minoch instance and panics if the identifier is
// refused by the manager.
func MustCreate(manager *Manager, identifier string) *Minoch {
	m, err := NewMinoch(manager, identifier)
	if err != nil {
		panic(err)
	}

	return m
}

// GetAddressFactory implements mino.Mino. It returns the address factory.
func (m *Minoch) GetAddressFactory() mino.AddressFactory {
	return AddressFactory{}
}

// GetAddress implements mino.Mino. It returns the address that other
// participants should use to contact this instance.
func (m *Minoch) GetAddress() mino.Address {
	return address{id: m.identifier}
}

// AddFilter adds the filter to all of the RPCs. This must be called before
// receiving requests.
func (m *Minoch) AddFilter(filter Filter) {
	m.filters = append(m.filters, filter)

	for _, rpc := range m.rpcs {
		rpc.filters = m.filters
	}
}

// WithSegment returns a mino instance scoped under the segment, so two
// services can create RPCs of the same name without colliding.
func (m *Minoch) WithSegment(path string) mino.Mino {
	newMinoch := &Minoch{
		manager:    m.manager,
		identifier: m.identifier,
		path:       fmt.Sprintf("%s/%s", m.path, path),
		rpcs:       m.rpcs,
		context:    m.context,
		filters:    m.filters,
	}

	return newMinoch
}

// CreateRPC registers the handler under the unique path and returns the RPC
// that sends to and receives from it.
func (m *Minoch) CreateRPC(name string, h mino.Handler, f serde.Factory) (mino.RPC, error) {
	rpc := &RPC{
		manager:   m.manager,
		addr:      m.GetAddress(),
		path:      fmt.Sprintf("%s/%s", m.path, name),
		h:         h,
		context:   m.context,
		factory:   f,
		filters:   m.filters,
		getTracer: tracing.GetTracerForAddr,
	}

	m.Lock()

	_, found := m.rpcs[rpc.path]
	if found {
		return nil, xerrors.Errorf("rpc '%s' already exists", rpc.path)
	}

	m.rpcs[rpc.path] = rpc

	m.Unlock()

	return rpc, nil
}
