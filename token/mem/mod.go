// Package mem provides an in-memory implementation of the token ledger.
//
// It is the reference ledger for unit tests and single-node deployments. The
// funds only live in memory and are lost when the process stops.
package mem

import (
	"math"
	"sync"

	"go.dedis.ch/agora/core/access"
	"golang.org/x/xerrors"
)

// Ledger is an in-memory token ledger. Accounts are indexed by the textual
// form of their identity.
//
// - implements token.Ledger
type Ledger struct {
	sync.Mutex

	balances   map[string]uint64
	allowances map[string]map[string]uint64
}

// NewLedger creates a new empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		balances:   make(map[string]uint64),
		allowances: make(map[string]map[string]uint64),
	}
}

// Mint credits the account with the amount out of thin air. It is used to
// fund the accounts of a test or a local setup.
func (l *Ledger) Mint(to access.Identity, amount uint64) error {
	key, err := makeKey(to)
	if err != nil {
		return xerrors.Errorf("mint: %v", err)
	}

	l.Lock()
	defer l.Unlock()

	return l.credit(key, amount)
}

// Balance implements token.Ledger. It returns the amount owned by the
// account, or zero when the account is unknown.
func (l *Ledger) Balance(owner access.Identity) (uint64, error) {
	key, err := makeKey(owner)
	if err != nil {
		return 0, xerrors.Errorf("balance: %v", err)
	}

	l.Lock()
	defer l.Unlock()

	return l.balances[key], nil
}

// Transfer implements token.Ledger. It moves the amount from one account to
// the other.
func (l *Ledger) Transfer(from, to access.Identity, amount uint64) error {
	fromKey, err := makeKey(from)
	if err != nil {
		return xerrors.Errorf("transfer: %v", err)
	}

	toKey, err := makeKey(to)
	if err != nil {
		return xerrors.Errorf("transfer: %v", err)
	}

	l.Lock()
	defer l.Unlock()

	return l.move(fromKey, toKey, amount)
}

// Approve implements token.Ledger. It sets the allowance of the spender over
// the owner account, replacing any previous one.
func (l *Ledger) Approve(owner, spender access.Identity, amount uint64) error {
	ownerKey, err := makeKey(owner)
	if err != nil {
		return xerrors.Errorf("approve: %v", err)
	}

	spenderKey, err := makeKey(spender)
	if err != nil {
		return xerrors.Errorf("approve: %v", err)
	}

	l.Lock()
	defer l.Unlock()

	granted := l.allowances[ownerKey]
	if granted == nil {
		granted = make(map[string]uint64)
		l.allowances[ownerKey] = granted
	}

	granted[spenderKey] = amount

	return nil
}

// Allowance implements token.Ledger. It returns the remaining amount the
// spender can pull from the owner account.
func (l *Ledger) Allowance(owner, spender access.Identity) (uint64, error) {
	ownerKey, err := makeKey(owner)
	if err != nil {
		return 0, xerrors.Errorf("allowance: %v", err)
	}

	spenderKey, err := makeKey(spender)
	if err != nil {
		return 0, xerrors.Errorf("allowance: %v", err)
	}

	l.Lock()
	defer l.Unlock()

	return l.allowances[ownerKey][spenderKey], nil
}

// TransferFrom implements token.Ledger. It moves the amount from the owner
// account by consuming the allowance of the spender.
func (l *Ledger) TransferFrom(spender, from, to access.Identity, amount uint64) error {
	spenderKey, err := makeKey(spender)
	if err != nil {
		return xerrors.Errorf("transfer from: %v", err)
	}

	fromKey, err := makeKey(from)
	if err != nil {
		return xerrors.Errorf("transfer from: %v", err)
	}

	toKey, err := makeKey(to)
	if err != nil {
		return xerrors.Errorf("transfer from: %v", err)
	}

	l.Lock()
	defer l.Unlock()

	remaining := l.allowances[fromKey][spenderKey]
	if remaining < amount {
		return xerrors.Errorf("allowance of '%s' is too low: %d < %d",
			spender, remaining, amount)
	}

	err = l.move(fromKey, toKey, amount)
	if err != nil {
		return err
	}

	l.allowances[fromKey][spenderKey] = remaining - amount

	return nil
}

func (l *Ledger) move(from, to string, amount uint64) error {
	balance := l.balances[from]
	if balance < amount {
		return xerrors.Errorf("not enough funds: %d < %d", balance, amount)
	}

	err := l.credit(to, amount)
	if err != nil {
		return err
	}

	l.balances[from] = balance - amount

	return nil
}

func (l *Ledger) credit(to string, amount uint64) error {
	if l.balances[to] > math.MaxUint64-amount {
		return xerrors.New("balance overflow")
	}

	l.balances[to] += amount

	return nil
}

func makeKey(ident access.Identity) (string, error) {
	if ident == nil {
		return "", xerrors.New("identity is nil")
	}

	text, err := ident.MarshalText()
	if err != nil {
		return "", xerrors.Errorf("failed to marshal identity: %v", err)
	}

	return string(text), nil
}
