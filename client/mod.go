// Package client implements the purchase and decrypt coordinator of a buyer.
//
// The coordinator is an explicit state machine. The purchase flow walks
// through the allowance check, the transfer approval and the purchase
// submission, and observes the finality of the purchase transaction. The
// decrypt flow connects to the access network, mints a session assertion and
// asks the cohort for the release. The decrypt flow never starts before the
// purchase flow has reached Success: a release requested earlier would be
// denied by the gatekeepers anyway, since they evaluate the ledger state.
//
// Every step is idempotent: a step that failed moves the flow to Error with
// its cause, and invoking the flow again retries the same step. Availability
// failures are retried in place with a bounded exponential backoff before
// the flow surfaces the error.
package client

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.dedis.ch/agora"
	"go.dedis.ch/agora/content"
	"go.dedis.ch/agora/core/access"
	"go.dedis.ch/agora/core/execution/native"
	"go.dedis.ch/agora/core/txn"
	"go.dedis.ch/agora/core/txn/signed"
	"go.dedis.ch/agora/crypto"
	"go.dedis.ch/agora/gate"
	gtypes "go.dedis.ch/agora/gate/types"
	"go.dedis.ch/agora/market"
	"go.dedis.ch/agora/market/types"
	"go.dedis.ch/agora/token"
	"golang.org/x/xerrors"
)

// State is the name of a step of the coordinator.
type State string

// States of the purchase flow.
const (
	Idle                     State = "Idle"
	CheckingAllowance        State = "CheckingAllowance"
	Approving                State = "Approving"
	AwaitingApprovalFinality State = "AwaitingApprovalFinality"
	Purchasing               State = "Purchasing"
	AwaitingPurchaseFinality State = "AwaitingPurchaseFinality"
	Success                  State = "Success"
	Error                    State = "Error"
)

// States of the decrypt flow.
const (
	ConnectingAccessNetwork State = "ConnectingAccessNetwork"
	RequestingSession       State = "RequestingSession"
	Decrypting              State = "Decrypting"
	Downloading             State = "Downloading"
)

// ErrNotPurchased indicates a decrypt flow started before the purchase flow
// has observed finality.
var ErrNotPurchased = xerrors.New("purchase is not finalized")

// maxAttempts bounds the in-place retries of a step failing with an
// availability error.
const maxAttempts = 4

// finalityTimeout bounds the wait for the finality event of a submitted
// transaction.
const finalityTimeout = 10 * time.Second

// Flow coordinates the purchase and the decryption of a product for a single
// buyer. It is not safe for concurrent use: the state machine is
// single-threaded and suspends only on its I/O boundaries.
type Flow struct {
	signer  crypto.Signer
	ledger  token.Ledger
	custody access.Identity
	srvc    *market.Service
	manager txn.Manager
	actor   gate.Actor
	store   content.Store

	mutex sync.Mutex
	state State
	cause error

	flow      string
	resume    int
	redo      int
	purchased bool

	product   uint64
	price     uint64
	approved  bool
	pending   txn.Transaction
	events    <-chan market.Event
	unwatch   context.CancelFunc
	session   string
	plaintext []byte
}

// NewFlow creates a coordinator for the buyer. The custody identity is the
// escrow account of the marketplace program, which the approval grants the
// price to.
func NewFlow(signer crypto.Signer, ledger token.Ledger, custody access.Identity,
	srvc *market.Service, actor gate.Actor, store content.Store) *Flow {

	return &Flow{
		signer:  signer,
		ledger:  ledger,
		custody: custody,
		srvc:    srvc,
		manager: signed.NewManager(signer, srvc),
		actor:   actor,
		store:   store,
		state:   Idle,
		redo:    -1,
	}
}

// GetState returns the current state of the flow. After a failure it returns
// Error and GetCause names the failed step.
func (f *Flow) GetState() State {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	return f.state
}

// GetCause returns the cause of the Error state, or nil.
func (f *Flow) GetCause() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	return f.cause
}

type step struct {
	state State
	fn    func(ctx context.Context) error
}

// purchasingIndex is the position of the Purchasing step in the purchase
// flow, used when a settled rejection forces a new submission.
const purchasingIndex = 3

// Purchase runs the purchase flow for the product until it observes the
// finality of the purchase transaction. When the flow is in Error for the
// same product, it resumes at the failed step.
func (f *Flow) Purchase(ctx context.Context, product uint64) error {
	if f.product != product {
		f.reset(product)
	}

	steps := []step{
		{CheckingAllowance, f.checkAllowance},
		{Approving, f.approve},
		{AwaitingApprovalFinality, f.awaitApproval},
		{Purchasing, f.submitPurchase},
		{AwaitingPurchaseFinality, f.awaitPurchase},
	}

	err := f.run(ctx, "purchase", steps)
	if err != nil {
		return err
	}

	f.purchased = true

	return nil
}

// Decrypt runs the decrypt flow for a sealed record after the purchase flow
// has succeeded. It returns the released plaintext.
func (f *Flow) Decrypt(ctx context.Context, sealed gtypes.Sealed) ([]byte, error) {
	if !f.purchased {
		f.fail(ErrNotPurchased)

		return nil, ErrNotPurchased
	}

	steps := []step{
		{ConnectingAccessNetwork, f.connect},
		{RequestingSession, func(context.Context) error {
			return f.requestSession(sealed)
		}},
		{Decrypting, func(ctx context.Context) error {
			return f.unseal(ctx, sealed)
		}},
		{Downloading, f.download},
	}

	err := f.run(ctx, "decrypt", steps)
	if err != nil {
		return nil, err
	}

	return f.plaintext, nil
}

// run walks the steps from the resume point. A step failing with an
// availability error is retried in place with backoff; any other failure
// moves the flow to Error and keeps the step as the resume point.
func (f *Flow) run(ctx context.Context, name string, steps []step) error {
	if f.flow != name {
		f.flow = name
		f.resume = 0
	}

	for i := f.resume; i < len(steps); i++ {
		f.setState(steps[i].state)

		op := func() error {
			err := steps[i].fn(ctx)
			if err != nil && !errors.Is(err, gate.ErrUnavailable) {
				return backoff.Permanent(err)
			}

			return err
		}

		policy := backoff.WithContext(
			backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxAttempts),
			ctx)

		err := backoff.Retry(op, policy)
		if err != nil {
			f.resume = i
			if f.redo >= 0 {
				// The step asked to replay an earlier one.
				f.resume = f.redo
				f.redo = -1
			}

			f.fail(xerrors.Errorf("step %s: %w", steps[i].state, err))

			return f.GetCause()
		}
	}

	f.resume = 0
	f.setState(Success)

	return nil
}

func (f *Flow) setState(state State) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	f.state = state
	f.cause = nil
}

func (f *Flow) fail(cause error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	f.state = Error
	f.cause = cause

	agora.Logger.Warn().Err(cause).Msg("client flow failed")
}

func (f *Flow) reset(product uint64) {
	if f.unwatch != nil {
		f.unwatch()
		f.unwatch = nil
	}

	f.product = product
	f.flow = ""
	f.resume = 0
	f.redo = -1
	f.purchased = false
	f.approved = false
	f.pending = nil
	f.events = nil
	f.session = ""
	f.plaintext = nil

	f.setState(Idle)
}

// -----------------------------------------------------------------------------
// Purchase steps

func (f *Flow) checkAllowance(context.Context) error {
	view, err := f.srvc.GetProduct(f.product)
	if err != nil {
		return xerrors.Errorf("couldn't read product: %v", err)
	}

	f.price = view.Price

	allowance, err := f.ledger.Allowance(f.signer.GetPublicKey(), f.custody)
	if err != nil {
		return xerrors.Errorf("couldn't read allowance: %v", err)
	}

	f.approved = allowance >= f.price

	return nil
}

func (f *Flow) approve(context.Context) error {
	if f.approved {
		return nil
	}

	err := f.ledger.Approve(f.signer.GetPublicKey(), f.custody, f.price)
	if err != nil {
		return xerrors.Errorf("couldn't approve transfer: %v", err)
	}

	return nil
}

func (f *Flow) awaitApproval(context.Context) error {
	allowance, err := f.ledger.Allowance(f.signer.GetPublicKey(), f.custody)
	if err != nil {
		return xerrors.Errorf("couldn't read allowance: %v", err)
	}

	if allowance < f.price {
		return xerrors.Errorf("allowance %d is below the price %d",
			allowance, f.price)
	}

	return nil
}

func (f *Flow) submitPurchase(context.Context) error {
	err := f.manager.Sync()
	if err != nil {
		return xerrors.Errorf("couldn't sync the nonce: %v", err)
	}

	tx, err := f.manager.Make(
		txn.Arg{Key: native.ContractArg, Value: []byte(market.ContractName)},
		txn.Arg{Key: types.CmdArg, Value: []byte(market.CmdPurchase)},
		txn.Arg{Key: types.ProductArg, Value: []byte(strconv.FormatUint(f.product, 10))},
	)
	if err != nil {
		return xerrors.Errorf("couldn't make transaction: %v", err)
	}

	// The watcher is opened before the submission so that the finality
	// event cannot be missed.
	watchCtx, cancel := context.WithCancel(context.Background())
	f.events = f.srvc.Watch(watchCtx)
	f.unwatch = cancel

	err = f.srvc.Submit(tx)
	if err != nil {
		f.unwatch()
		f.unwatch = nil
		f.events = nil

		return xerrors.Errorf("couldn't submit transaction: %v", err)
	}

	f.pending = tx

	return nil
}

func (f *Flow) awaitPurchase(ctx context.Context) error {
	// A receipt already on the ledger means a previous attempt made it
	// through, even if its event was missed.
	ok, err := f.srvc.HasPurchased(f.signer.GetPublicKey(), f.product)
	if err != nil {
		return xerrors.Errorf("couldn't read receipts: %v", err)
	}

	if ok {
		f.stopWatch()

		return nil
	}

	if f.events == nil {
		// The submission step was lost, repeat it on the next retry.
		f.redo = purchasingIndex

		return xerrors.New("no pending transaction")
	}

	timeout := time.After(finalityTimeout)

	for {
		select {
		case evt := <-f.events:
			if string(evt.TxID) != string(f.pending.GetID()) {
				continue
			}

			f.stopWatch()

			if !evt.Accepted {
				// The transaction is settled, a retry must submit a
				// new one.
				f.redo = purchasingIndex

				return xerrors.Errorf("transaction rejected: %s", evt.Message)
			}

			return nil
		case <-timeout:
			return xerrors.New("timeout waiting for finality")
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (f *Flow) stopWatch() {
	if f.unwatch != nil {
		f.unwatch()
		f.unwatch = nil
	}

	f.events = nil
}

// -----------------------------------------------------------------------------
// Decrypt steps

func (f *Flow) connect(context.Context) error {
	_, err := f.actor.GetPublicKey()
	if err != nil {
		return xerrors.Errorf("%v: %w", err, gate.ErrUnavailable)
	}

	return nil
}

func (f *Flow) requestSession(sealed gtypes.Sealed) error {
	session, err := gate.NewSession(f.signer, sealed.GetPolicy().GetContentID())
	if err != nil {
		return xerrors.Errorf("couldn't mint session: %v", err)
	}

	f.session = session

	return nil
}

func (f *Flow) unseal(ctx context.Context, sealed gtypes.Sealed) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if f.session == "" {
		// The session was dropped after a refusal, mint a fresh one so
		// a retry is not doomed by an expired assertion.
		err := f.requestSession(sealed)
		if err != nil {
			return err
		}
	}

	plaintext, err := f.actor.Unseal(sealed, f.session)
	if err != nil {
		if errors.Is(err, gate.ErrUnavailable) {
			return err
		}

		f.session = ""

		return xerrors.Errorf("release refused: %w", err)
	}

	f.plaintext = plaintext

	return nil
}

func (f *Flow) download(context.Context) error {
	_, err := f.store.Put(f.plaintext)
	if err != nil {
		return xerrors.Errorf("couldn't store the asset: %v", err)
	}

	return nil
}
