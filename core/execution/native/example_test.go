package native

import (
	"encoding/binary"
	"fmt"
	"sync"

	"go.dedis.ch/agora/core/execution"
	"go.dedis.ch/agora/core/store"
	"go.dedis.ch/agora/core/txn/signed"
	"go.dedis.ch/agora/crypto/ed25519"
)

func ExampleService_Execute() {
	srvc := NewExecution()
	srvc.Set("deposit", depositContract{})

	store := newStore()
	signer := ed25519.NewSigner()

	amount := make([]byte, 8)
	binary.LittleEndian.PutUint64(amount, 25)

	opts := []signed.TransactionOption{
		signed.WithArg("amount", amount),
		signed.WithArg(ContractArg, []byte("deposit")),
	}

	tx, err := signed.NewTransaction(0, signer.GetPublicKey(), opts...)
	if err != nil {
		panic("failed to create transaction: " + err.Error())
	}

	step := execution.Step{
		Current: tx,
	}

	for i := 0; i < 2; i++ {
		res, err := srvc.Execute(store, step)
		if err != nil {
			panic("failed to execute: " + err.Error())
		}

		if res.Accepted {
			fmt.Println("accepted")
		}
	}

	value, err := store.Get([]byte("balance"))
	if err != nil {
		panic("store failed: " + err.Error())
	}

	fmt.Println(binary.LittleEndian.Uint64(value))

	// Output: accepted
	// accepted
	// 50
}

// depositContract credits the escrow balance in the store with the amount
// carried by the transaction.
//
// - implements native.Contract
type depositContract struct{}

// UID implements native.Contract. It returns the unique identifier of the
// contract.
func (depositContract) UID() string {
	return "DEPO"
}

// Execute implements native.Contract. It adds the transaction amount to the
// stored balance.
func (depositContract) Execute(store store.Snapshot, step execution.Step) error {
	value, err := store.Get([]byte("balance"))
	if err != nil {
		return err
	}

	balance := uint64(0)
	if len(value) == 8 {
		balance = binary.LittleEndian.Uint64(value)
	}

	amount := binary.LittleEndian.Uint64(step.Current.GetArg("amount"))

	buffer := make([]byte, 8)
	binary.LittleEndian.PutUint64(buffer, balance+amount)

	return store.Set([]byte("balance"), buffer)
}

// inMemoryStore is a simple implementation of a store using an in-memory map.
//
// - implements store.Snapshot
type inMemoryStore struct {
	sync.Mutex

	entries map[string][]byte
}

func newStore() *inMemoryStore {
	return &inMemoryStore{
		entries: make(map[string][]byte),
	}
}

// Get implements store.Readable. It returns the value associated to the key.
func (s *inMemoryStore) Get(key []byte) ([]byte, error) {
	s.Lock()
	defer s.Unlock()

	return s.entries[string(key)], nil
}

// Set implements store.Writable. It sets the value for the key.
func (s *inMemoryStore) Set(key, value []byte) error {
	s.Lock()
	s.entries[string(key)] = value
	s.Unlock()

	return nil
}

// Delete implements store.Writable. It deletes the key from the store.
func (s *inMemoryStore) Delete(key []byte) error {
	s.Lock()
	delete(s.entries, string(key))
	s.Unlock()

	return nil
}
