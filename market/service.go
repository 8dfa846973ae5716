package market

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.dedis.ch/agora"
	"go.dedis.ch/agora/core/access"
	"go.dedis.ch/agora/core/execution"
	"go.dedis.ch/agora/core/execution/native"
	"go.dedis.ch/agora/core/store"
	"go.dedis.ch/agora/core/store/kv"
	"go.dedis.ch/agora/core/store/mem"
	"go.dedis.ch/agora/core/store/prefixed"
	"go.dedis.ch/agora/core/txn"
	"go.dedis.ch/agora/market/types"
	"golang.org/x/xerrors"
)

// Buckets of the durable state in the key/value database.
var (
	stateBucket = []byte("agora:market:state")
	nonceBucket = []byte("agora:market:nonces")
	eventBucket = []byte("agora:market:events")
)

const txBacklog = 100

// stateNamespace confines the contract records inside the shared state, so
// another component reusing the snapshot cannot collide with them.
const stateNamespace = "market"

// Event is the notification sent to the watchers when a transaction reaches
// finality. The attached audit events are only present when the transaction
// has been accepted.
type Event struct {
	TxID     []byte
	Accepted bool
	Message  string
	Events   []types.Event
}

// Service orders the marketplace transactions. Every mutating operation goes
// through its single processing loop, so two in-flight transactions can never
// observe each other half applied. The read views are served concurrently
// from the latest committed state.
//
// - implements signed.Client
type Service struct {
	logger   zerolog.Logger
	contract *Contract
	exec     *native.Service
	db       kv.DB
	watcher  *notifier

	txs     chan txn.Transaction
	closing chan struct{}
	closed  chan struct{}

	// mutex guards the committed snapshot and the nonces. The processing
	// loop takes the write lock only for the commit itself.
	mutex  sync.RWMutex
	snap   *mem.Snapshot
	state  store.Snapshot
	nonces map[string]uint64
	seq    uint64
}

// NewService creates the marketplace service. The contract is registered in a
// fresh execution service, and the state is restored from the database, or
// bootstrapped with the owner and the fee rate when the database is empty.
func NewService(contract *Contract, db kv.DB, owner access.Identity, rateBps uint64) (*Service, error) {
	exec := native.NewExecution()

	RegisterContract(exec, contract)

	s := &Service{
		logger:   agora.Logger.With().Str("service", "market").Logger(),
		contract: contract,
		exec:     exec,
		db:       db,
		watcher:  newNotifier(),
		txs:      make(chan txn.Transaction, txBacklog),
		closing:  make(chan struct{}),
		closed:   make(chan struct{}),
		snap:     mem.NewSnapshot(),
		nonces:   make(map[string]uint64),
	}

	s.state = prefixed.NewSnapshot(stateNamespace, s.snap)

	err := s.restore()
	if err != nil {
		return nil, xerrors.Errorf("failed to restore state: %v", err)
	}

	bootstrapped, err := s.state.Get(types.ConfigKey)
	if err != nil {
		return nil, xerrors.Errorf("failed to read config: %v", err)
	}

	if bootstrapped == nil {
		genesis := newStaging(s.snap)

		err = contract.Bootstrap(prefixed.NewSnapshot(stateNamespace, genesis), owner, rateBps)
		if err != nil {
			return nil, xerrors.Errorf("failed to bootstrap: %w", err)
		}

		genesis.commit(s.snap)

		err = s.persist(genesis.delta, nil)
		if err != nil {
			return nil, xerrors.Errorf("failed to persist bootstrap: %v", err)
		}
	}

	return s, nil
}

// Listen starts the processing loop.
func (s *Service) Listen() error {
	go s.main()

	s.logger.Info().Msg("marketplace service started")

	return nil
}

// Close stops the processing loop. Transactions still in the backlog are
// dropped, they were not finalized.
func (s *Service) Close() error {
	close(s.closing)
	<-s.closed

	return nil
}

// Submit queues the transaction for processing. The result is published to
// the watchers once the transaction is finalized.
func (s *Service) Submit(tx txn.Transaction) error {
	if tx.GetIdentity() == nil {
		return xerrors.New("transaction has no identity")
	}

	select {
	case s.txs <- tx:
		return nil
	case <-s.closing:
		return xerrors.New("service is closing")
	}
}

// Watch returns a channel populated with the finality events. The channel is
// closed when the context is done.
func (s *Service) Watch(ctx context.Context) <-chan Event {
	ch := make(chan Event, txBacklog)

	obs := observer{ch: ch}
	s.watcher.register(obs)

	go func() {
		<-ctx.Done()
		s.watcher.unregister(obs)
	}()

	return ch
}

// Custody returns the identity of the account holding the escrowed funds.
func (s *Service) Custody() access.Identity {
	return s.contract.custody
}

// GetNonce implements signed.Client. It returns the nonce expected for the
// next transaction of the identity.
func (s *Service) GetNonce(ident access.Identity) (uint64, error) {
	key, err := identityKey(ident)
	if err != nil {
		return 0, err
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.nonces[key], nil
}

// GetProduct returns the public snapshot of the product, without the content
// identifier.
func (s *Service) GetProduct(id uint64) (types.ProductView, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	product, err := loadProduct(s.state, id)
	if err != nil {
		return types.ProductView{}, err
	}

	return product.View(), nil
}

// GetSellerProducts returns the identifiers of the products listed by the
// seller, in listing order.
func (s *Service) GetSellerProducts(seller access.Identity) ([]uint64, error) {
	key, err := identityKey(seller)
	if err != nil {
		return nil, err
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	account, err := loadSeller(s.state, key)
	if err != nil {
		return nil, err
	}

	return append([]uint64{}, account.Products...), nil
}

// GetSellerBalance returns the withdrawable balance and the lifetime earnings
// of the seller.
func (s *Service) GetSellerBalance(seller access.Identity) (balance, earnings uint64, err error) {
	key, err := identityKey(seller)
	if err != nil {
		return 0, 0, err
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	account, err := loadSeller(s.state, key)
	if err != nil {
		return 0, 0, err
	}

	return account.Balance, account.Earnings, nil
}

// HasPurchased returns true when a purchase receipt exists for the (buyer,
// product) pair.
func (s *Service) HasPurchased(buyer access.Identity, id uint64) (bool, error) {
	key, err := identityKey(buyer)
	if err != nil {
		return false, err
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	data, err := s.state.Get(types.ReceiptKey(key, id))
	if err != nil {
		return false, err
	}

	return data != nil, nil
}

// IsSeller returns true when the identity is the seller of the product.
func (s *Service) IsSeller(ident access.Identity, id uint64) (bool, error) {
	key, err := identityKey(ident)
	if err != nil {
		return false, err
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	product, err := loadProduct(s.state, id)
	if err != nil {
		return false, err
	}

	return product.Seller == key, nil
}

// GetContentID returns the content identifier of the product when the caller
// purchased it, or sells it.
//
// The view is a convenience for the clients: the actual security boundary is
// the predicate the gatekeepers evaluate before releasing the decryption
// capability, so a denial here proves nothing about the access rights.
func (s *Service) GetContentID(caller access.Identity, id uint64) (string, error) {
	key, err := identityKey(caller)
	if err != nil {
		return "", err
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	product, err := loadProduct(s.state, id)
	if err != nil {
		return "", err
	}

	if product.Seller == key {
		return product.ContentID, nil
	}

	receipt, err := s.state.Get(types.ReceiptKey(key, id))
	if err != nil {
		return "", err
	}

	if receipt == nil {
		return "", xerrors.Errorf("product %d: %w", id, ErrAccessDenied)
	}

	return product.ContentID, nil
}

// ProductByContentID resolves a content identifier to the product bound to it
// by the content index, which is fixed by the first listing.
func (s *Service) ProductByContentID(contentID string) (uint64, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	id, err := loadUint(s.state, types.ListingKey(contentID))
	if err != nil {
		return 0, err
	}

	if id == 0 {
		return 0, xerrors.Errorf("content '%s': %w", contentID, ErrNotFound)
	}

	return id, nil
}

// FeeRate returns the current platform fee rate in basis points.
func (s *Service) FeeRate() (uint64, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	config, err := loadConfig(s.state)
	if err != nil {
		return 0, err
	}

	return config.FeeRateBps, nil
}

// PlatformBalance returns the fees accumulated and not yet withdrawn.
func (s *Service) PlatformBalance() (uint64, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return loadUint(s.state, types.PlatformKey)
}

func (s *Service) main() {
	defer close(s.closed)

	for {
		select {
		case <-s.closing:
			return
		case tx := <-s.txs:
			s.process(tx)
		}
	}
}

// process executes a single transaction against a staging of the committed
// state, commits on success and publishes the finality event either way.
func (s *Service) process(tx txn.Transaction) {
	start := time.Now()

	ident, err := identityKey(tx.GetIdentity())
	if err != nil {
		s.finalize(Event{TxID: tx.GetID(), Message: err.Error()})
		return
	}

	s.mutex.RLock()
	expected := s.nonces[ident]
	s.mutex.RUnlock()

	if tx.GetNonce() != expected {
		s.finalize(Event{
			TxID: tx.GetID(),
			Message: xerrors.Errorf("nonce mismatch: expected %d, got %d",
				expected, tx.GetNonce()).Error(),
		})

		return
	}

	staging := newStaging(s.snap)

	res, err := s.exec.Execute(prefixed.NewSnapshot(stateNamespace, staging), execution.Step{Current: tx})
	if err != nil {
		// An execution error means the transaction is malformed beyond
		// what a contract can reject, e.g. an unknown contract name.
		s.contract.PopEvents()
		s.finalize(Event{TxID: tx.GetID(), Message: err.Error()})

		return
	}

	events := s.contract.PopEvents()

	if !res.Accepted {
		s.mutex.Lock()
		s.nonces[ident] = expected + 1
		s.mutex.Unlock()

		err = s.persist(nil, map[string]uint64{ident: expected + 1})
		if err != nil {
			s.logger.Err(err).Msg("failed to persist nonce")
		}

		s.finalize(Event{TxID: tx.GetID(), Message: res.Message})

		return
	}

	s.mutex.Lock()
	staging.commit(s.snap)
	s.nonces[ident] = expected + 1
	s.mutex.Unlock()

	err = s.persist(staging.delta, map[string]uint64{ident: expected + 1})
	if err != nil {
		s.logger.Err(err).Msg("failed to persist state")
	}

	err = s.persistEvents(events)
	if err != nil {
		s.logger.Err(err).Msg("failed to persist events")
	}

	s.observe(events)

	promTxLatency.Observe(time.Since(start).Seconds())

	s.finalize(Event{TxID: tx.GetID(), Accepted: true, Events: events})
}

func (s *Service) finalize(event Event) {
	if !event.Accepted {
		s.logger.Info().
			Hex("tx", event.TxID).
			Str("reason", event.Message).
			Msg("transaction rejected")
	}

	s.watcher.publish(event)
}

// observe updates the metrics from the committed events.
func (s *Service) observe(events []types.Event) {
	for _, event := range events {
		switch e := event.(type) {
		case types.Purchased:
			promPurchases.Inc()
			promEscrow.Add(float64(e.Price))
		case types.SellerWithdrawn:
			promEscrow.Sub(float64(e.Amount))
		case types.PlatformWithdrawn:
			promEscrow.Sub(float64(e.Amount))
		}
	}
}

// restore loads the committed state and the nonces from the database.
func (s *Service) restore() error {
	return s.db.View(func(rtx kv.ReadableTx) error {
		bucket := rtx.GetBucket(stateBucket)
		if bucket != nil {
			err := bucket.ForEach(func(k, v []byte) error {
				return s.snap.Set(k, v)
			})
			if err != nil {
				return err
			}
		}

		bucket = rtx.GetBucket(nonceBucket)
		if bucket != nil {
			err := bucket.ForEach(func(k, v []byte) error {
				s.nonces[string(k)] = binary.BigEndian.Uint64(v)
				return nil
			})
			if err != nil {
				return err
			}
		}

		bucket = rtx.GetBucket(eventBucket)
		if bucket != nil {
			err := bucket.ForEach(func(k, v []byte) error {
				s.seq++
				return nil
			})
			if err != nil {
				return err
			}
		}

		return nil
	})
}

// persist writes the state delta and the nonces to the database.
func (s *Service) persist(delta map[string][]byte, nonces map[string]uint64) error {
	return s.db.Update(func(wtx kv.WritableTx) error {
		bucket, err := wtx.GetBucketOrCreate(stateBucket)
		if err != nil {
			return err
		}

		for key, value := range delta {
			if value == nil {
				err = bucket.Delete([]byte(key))
			} else {
				err = bucket.Set([]byte(key), value)
			}

			if err != nil {
				return err
			}
		}

		bucket, err = wtx.GetBucketOrCreate(nonceBucket)
		if err != nil {
			return err
		}

		for ident, nonce := range nonces {
			buffer := make([]byte, 8)
			binary.BigEndian.PutUint64(buffer, nonce)

			err = bucket.Set([]byte(ident), buffer)
			if err != nil {
				return err
			}
		}

		return nil
	})
}

// persistEvents appends the audit events to the durable log.
func (s *Service) persistEvents(events []types.Event) error {
	if len(events) == 0 {
		return nil
	}

	return s.db.Update(func(wtx kv.WritableTx) error {
		bucket, err := wtx.GetBucketOrCreate(eventBucket)
		if err != nil {
			return err
		}

		for _, event := range events {
			data, err := json.Marshal(types.NewEventRecord(event))
			if err != nil {
				return xerrors.Errorf("failed to encode event: %v", err)
			}

			s.seq++

			key := make([]byte, 8)
			binary.BigEndian.PutUint64(key, s.seq)

			err = bucket.Set(key, data)
			if err != nil {
				return err
			}
		}

		return nil
	})
}

// observer pushes the published events to a watcher channel.
//
// - implements market.sink
type observer struct {
	ch chan Event
}

// deliver implements market.sink.
func (obs observer) deliver(event Event) {
	obs.ch <- event
}

// staging is a write overlay over the committed state. The contract executes
// against it so that a failed transaction leaves no trace, and a successful
// one is applied in a single critical section.
//
// - implements store.Snapshot
type staging struct {
	base  store.Readable
	delta map[string][]byte
}

func newStaging(base store.Readable) *staging {
	return &staging{
		base:  base,
		delta: make(map[string][]byte),
	}
}

// Get implements store.Readable.
func (s *staging) Get(key []byte) ([]byte, error) {
	value, found := s.delta[string(key)]
	if found {
		return value, nil
	}

	return s.base.Get(key)
}

// Set implements store.Writable.
func (s *staging) Set(key, value []byte) error {
	s.delta[string(key)] = value

	return nil
}

// Delete implements store.Writable.
func (s *staging) Delete(key []byte) error {
	s.delta[string(key)] = nil

	return nil
}

// commit applies the delta to the snapshot.
func (s *staging) commit(snap store.Snapshot) {
	for key, value := range s.delta {
		if value == nil {
			snap.Delete([]byte(key))
		} else {
			snap.Set([]byte(key), value)
		}
	}
}
