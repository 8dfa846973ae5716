package mino

// addressIterator walks a fixed list of addresses.
//
// - implements mino.AddressIterator
type addressIterator struct {
	index int
	addrs []Address
}

// Seek implements mino.AddressIterator. It moves the iterator to the index.
func (it *addressIterator) Seek(index int) {
	it.index = index
}

// HasNext implements mino.AddressIterator. It returns true if there is an
// address available.
func (it *addressIterator) HasNext() bool {
	return it.index < len(it.addrs)
}

// GetNext implements mino.AddressIterator. It returns the address at the
// current index and moves the iterator to the next address.
func (it *addressIterator) GetNext() Address {
	if !it.HasNext() {
		return nil
	}

	res := it.addrs[it.index]
	it.index++

	return res
}

// roster groups known addresses into a mino.Players for calls and streams.
// The gate builds one for its cohort, the access layer for the members of a
// session.
//
// - implements mino.Players
type roster struct {
	addrs []Address
}

// NewAddresses is a helper to instantiate a Players interface with only a few
// addresses.
func NewAddresses(addrs ...Address) Players {
	return roster{addrs: addrs}
}

// Take implements mino.Players. It returns a subset of the roster according to
// the filter.
func (r roster) Take(updaters ...FilterUpdater) Players {
	filter := &Filter{}
	for _, fn := range updaters {
		fn(filter)
	}

	addrs := make([]Address, len(filter.Indices))
	for i, k := range filter.Indices {
		addrs[i] = r.addrs[k]
	}

	return roster{addrs: addrs}
}

// AddressIterator implements mino.Players. It returns an iterator for the
// roster.
func (r roster) AddressIterator() AddressIterator {
	return &addressIterator{addrs: r.addrs}
}

// Len implements mino.Players. It returns the length of the roster.
func (r roster) Len() int {
	return len(r.addrs)
}
