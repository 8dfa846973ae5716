// Package txn defines the transaction abstraction of the marketplace.
//
// A transaction carries the input of a contract call: the arguments, the
// identity of its author and a nonce that orders the transactions of that
// identity. The digest makes each transaction uniquely identifiable.
//
// The manager attaches the bookkeeping a caller needs to submit valid
// transactions, chiefly tracking the next nonce.
package txn

import (
	"go.dedis.ch/agora/core/access"
	"go.dedis.ch/agora/serde"
)

// Transaction is the input of a contract execution.
type Transaction interface {
	serde.Message
	serde.Fingerprinter

	// GetID returns the unique identifier for the transaction.
	GetID() []byte

	// GetNonce returns the nonce of the transaction. It is the sequence
	// number of the author identity.
	GetNonce() uint64

	// GetIdentity returns the identity that created the transaction.
	GetIdentity() access.Identity

	// GetArg returns the value of the named argument, or nil.
	GetArg(key string) []byte
}

// Factory is the definition of a factory to deserialize transaction
// messages.
type Factory interface {
	serde.Factory

	TransactionOf(serde.Context, []byte) (Transaction, error)
}

// Arg is a key/value argument carried by a transaction.
type Arg struct {
	Key   string
	Value []byte
}

// Manager creates transactions on behalf of one identity, filling in the
// information the caller cannot know locally such as the current nonce.
type Manager interface {
	Make(args ...Arg) (Transaction, error)

	Sync() error
}
