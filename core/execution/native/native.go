// Package native runs contracts that are compiled into the binary.
//
// The marketplace ships its contracts in Go. A transaction selects the
// contract it wants to run with the ContractArg argument, and the service
// dispatches the step to the registered implementation.
package native

import (
	"go.dedis.ch/agora/core/execution"
	"go.dedis.ch/agora/core/store"
	"golang.org/x/xerrors"
)

// ContractArg is the argument key in the transaction to look up a contract.
const ContractArg = "go.dedis.ch/agora.ContractArg"

// Contract is the interface to implement to register a smart contract that
// will be executed natively.
type Contract interface {
	Execute(store.Snapshot, execution.Step) error
	UID() string
}

// Service dispatches execution steps to the contracts registered at startup.
// Contracts have full access to the snapshot and update it directly.
//
// - implements execution.Service
type Service struct {
	contracts map[string]Contract
	uids      map[string]struct{}
}

// NewExecution returns a new empty native execution service.
func NewExecution() *Service {
	return &Service{
		contracts: map[string]Contract{},
		uids:      map[string]struct{}{},
	}
}

// Set registers the contract under the given name. A transaction triggers it
// by carrying that name in its contract argument. Registration happens once
// at startup so a collision of names, or of the 4-byte contract UID, panics.
func (srv *Service) Set(name string, contract Contract) {
	if _, ok := srv.contracts[name]; ok {
		panic(xerrors.Errorf("contract '%s' already registered", name))
	}

	uid := contract.UID()

	if len(uid) != 4 {
		panic(xerrors.Errorf("contract UID '%x' for '%s' is not 4 bytes long", uid, name))
	}

	if _, ok := srv.uids[uid]; ok {
		panic(xerrors.Errorf("contract UID '%x' for '%s' already registered", uid, name))
	}

	srv.contracts[name] = contract
	srv.uids[uid] = struct{}{}
}

// Execute implements execution.Service. It looks up the contract named by the
// transaction and runs it against the snapshot. A contract error rejects the
// transaction but is not an execution failure, so it is reported through the
// result message.
func (srv *Service) Execute(snap store.Snapshot, step execution.Step) (execution.Result, error) {
	name := string(step.Current.GetArg(ContractArg))

	contract := srv.contracts[name]
	if contract == nil {
		return execution.Result{}, xerrors.Errorf("unknown contract '%s'", name)
	}

	err := contract.Execute(snap, step)
	if err != nil {
		return execution.Result{Message: err.Error()}, nil
	}

	return execution.Result{Accepted: true}, nil
}
