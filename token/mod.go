// Package token defines the abstraction of the fungible token ledger that
// prices and settles the purchases of the marketplace.
//
// The market contract never holds funds itself. It moves them on a ledger
// implementing this interface: a purchase pulls the price from the buyer to
// the custody account with TransferFrom, after the buyer granted an allowance
// to the market with Approve, and a withdrawal pushes the accumulated funds
// out of the custody account with Transfer.
//
// Accounts are designated by their cryptographic identity so that the same
// identity can sign transactions and own funds.
package token

import (
	"go.dedis.ch/agora/core/access"
)

// Ledger is the interface of the fungible token ledger.
type Ledger interface {
	// Balance returns the spendable amount owned by the account.
	Balance(owner access.Identity) (uint64, error)

	// Transfer moves the amount from one account to the other. It returns an
	// error when the sender does not own enough funds.
	Transfer(from, to access.Identity, amount uint64) error

	// Approve allows the spender to pull up to the amount from the owner
	// account. It replaces any previous allowance.
	Approve(owner, spender access.Identity, amount uint64) error

	// Allowance returns the remaining amount the spender is allowed to pull
	// from the owner account.
	Allowance(owner, spender access.Identity) (uint64, error)

	// TransferFrom moves the amount from the owner account by consuming the
	// allowance granted to the spender.
	TransferFrom(spender, from, to access.Identity, amount uint64) error
}
