// Package execution defines how the marketplace applies a transaction to the
// ledger state.
package execution

import (
	"go.dedis.ch/agora/core/store"
	"go.dedis.ch/agora/core/txn"
)

// Step is the execution unit of a transaction. It carries the previous
// transactions of the same batch so a contract can account for them.
type Step struct {
	Previous []txn.Transaction

	Current txn.Transaction
}

// Result is the outcome of a transaction execution.
type Result struct {
	// Accepted is true when the transaction was applied to the state.
	Accepted bool

	// Message explains why a transaction has been rejected.
	Message string
}

// Service is the execution service that defines the primitives to execute a
// transaction.
type Service interface {
	// Execute must apply the transaction to the snapshot and return the result
	// of it.
	Execute(snap store.Snapshot, step Step) (Result, error)
}
