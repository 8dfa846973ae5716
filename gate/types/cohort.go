package types

import (
	"go.dedis.ch/agora/crypto"
	"go.dedis.ch/agora/mino"
)

// Cohort is the membership of a gatekeeper group, binding the address of each
// member to its public key.
//
// - implements crypto.CollectiveAuthority
type Cohort struct {
	addrs   []mino.Address
	pubkeys []crypto.PublicKey
}

// NewCohort creates a cohort from the addresses and the public keys. Both
// lists must have the same length and be consistently ordered.
func NewCohort(addrs []mino.Address, pubkeys []crypto.PublicKey) Cohort {
	return Cohort{
		addrs:   addrs,
		pubkeys: pubkeys,
	}
}

// Take implements mino.Players. It returns a subset of the cohort according
// to the filter.
func (c Cohort) Take(updaters ...mino.FilterUpdater) mino.Players {
	filter := &mino.Filter{}
	for _, fn := range updaters {
		fn(filter)
	}

	addrs := make([]mino.Address, len(filter.Indices))
	pubkeys := make([]crypto.PublicKey, len(filter.Indices))
	for i, k := range filter.Indices {
		addrs[i] = c.addrs[k]
		pubkeys[i] = c.pubkeys[k]
	}

	return Cohort{addrs: addrs, pubkeys: pubkeys}
}

// AddressIterator implements mino.Players. It returns an iterator over the
// member addresses.
func (c Cohort) AddressIterator() mino.AddressIterator {
	return &cohortAddrIterator{cohort: c}
}

// Len implements mino.Players. It returns the number of members.
func (c Cohort) Len() int {
	return len(c.addrs)
}

// GetPublicKey implements crypto.CollectiveAuthority. It returns the public
// key of the member, with its index, or -1 when the address is not a member.
func (c Cohort) GetPublicKey(addr mino.Address) (crypto.PublicKey, int) {
	for i, member := range c.addrs {
		if member.Equal(addr) {
			return c.pubkeys[i], i
		}
	}

	return nil, -1
}

// PublicKeyIterator implements crypto.CollectiveAuthority. It returns an
// iterator over the member public keys, consistent with the address iterator.
func (c Cohort) PublicKeyIterator() crypto.PublicKeyIterator {
	return &cohortPubkeyIterator{cohort: c}
}

type cohortAddrIterator struct {
	index  int
	cohort Cohort
}

func (it *cohortAddrIterator) Seek(index int) {
	it.index = index
}

func (it *cohortAddrIterator) HasNext() bool {
	return it.index < it.cohort.Len()
}

func (it *cohortAddrIterator) GetNext() mino.Address {
	if !it.HasNext() {
		return nil
	}

	addr := it.cohort.addrs[it.index]
	it.index++

	return addr
}

type cohortPubkeyIterator struct {
	index  int
	cohort Cohort
}

func (it *cohortPubkeyIterator) Seek(index int) {
	it.index = index
}

func (it *cohortPubkeyIterator) HasNext() bool {
	return it.index < it.cohort.Len()
}

func (it *cohortPubkeyIterator) GetNext() crypto.PublicKey {
	if !it.HasNext() {
		return nil
	}

	pubkey := it.cohort.pubkeys[it.index]
	it.index++

	return pubkey
}
