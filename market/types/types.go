// Package types defines the records the marketplace keeps in its store and
// the events it emits on each successful mutation.
//
// The records are stored as JSON. They are never exposed directly: the
// service returns views that strip the fields a reader is not entitled to,
// like the content identifier of a product.
package types

import "golang.org/x/xerrors"

// Product is the record of a listed asset. A product is never deleted,
// deactivation is the only removal signal.
type Product struct {
	ID        uint64
	Seller    string
	ContentID string
	Price     uint64
	Name      string
	Active    bool
	Sales     uint64
}

// View returns the public snapshot of the product, without the content
// identifier.
func (p Product) View() ProductView {
	return ProductView{
		ID:     p.ID,
		Seller: p.Seller,
		Price:  p.Price,
		Name:   p.Name,
		Active: p.Active,
		Sales:  p.Sales,
	}
}

// ProductView is the public snapshot of a product.
type ProductView struct {
	ID     uint64
	Seller string
	Price  uint64
	Name   string
	Active bool
	Sales  uint64
}

// SellerAccount is the record of a seller. It is created lazily on the first
// listing or the first sale credit.
//
// The balance is always lower or equal to the earnings: the earnings grow
// with every sale and never shrink, while the balance is reset by a
// withdrawal.
type SellerAccount struct {
	Products []uint64
	Sales    uint64
	Balance  uint64
	Earnings uint64
}

// Receipt marks a (buyer, product) pair as paid. It is written once and
// never cleared.
type Receipt struct {
	Product uint64
	Buyer   string
	Price   uint64
	Fee     uint64
}

// Config is the configuration of the marketplace, written once when the
// store is bootstrapped.
type Config struct {
	Owner      string
	FeeRateBps uint64
	TokenRef   string
}

// Event is the interface implemented by the marketplace events.
type Event interface {
	record() EventRecord
}

// Listed is the event of a successful listing.
type Listed struct {
	Product   uint64
	Seller    string
	ContentID string
	Price     uint64
}

func (e Listed) record() EventRecord { return EventRecord{Listed: &e} }

// Purchased is the event of a successful purchase.
type Purchased struct {
	Product uint64
	Buyer   string
	Seller  string
	Price   uint64
	Fee     uint64
}

func (e Purchased) record() EventRecord { return EventRecord{Purchased: &e} }

// SellerWithdrawn is the event of a seller withdrawal.
type SellerWithdrawn struct {
	Seller string
	Amount uint64
}

func (e SellerWithdrawn) record() EventRecord { return EventRecord{SellerWithdrawn: &e} }

// PlatformWithdrawn is the event of a platform fee withdrawal.
type PlatformWithdrawn struct {
	Owner  string
	Amount uint64
}

func (e PlatformWithdrawn) record() EventRecord { return EventRecord{PlatformWithdrawn: &e} }

// Deactivated is the event of a product deactivation.
type Deactivated struct {
	Product uint64
}

func (e Deactivated) record() EventRecord { return EventRecord{Deactivated: &e} }

// Activated is the event of a product activation.
type Activated struct {
	Product uint64
}

func (e Activated) record() EventRecord { return EventRecord{Activated: &e} }

// PriceUpdated is the event of a price update.
type PriceUpdated struct {
	Product uint64
	Price   uint64
}

func (e PriceUpdated) record() EventRecord { return EventRecord{PriceUpdated: &e} }

// FeeRateUpdated is the event of a fee rate update.
type FeeRateUpdated struct {
	Rate uint64
}

func (e FeeRateUpdated) record() EventRecord { return EventRecord{FeeRateUpdated: &e} }

// EventRecord is the envelope of an event in the durable audit log. Only one
// of the fields is set.
type EventRecord struct {
	Listed            *Listed            `json:",omitempty"`
	Purchased         *Purchased         `json:",omitempty"`
	SellerWithdrawn   *SellerWithdrawn   `json:",omitempty"`
	PlatformWithdrawn *PlatformWithdrawn `json:",omitempty"`
	Deactivated       *Deactivated       `json:",omitempty"`
	Activated         *Activated         `json:",omitempty"`
	PriceUpdated      *PriceUpdated      `json:",omitempty"`
	FeeRateUpdated    *FeeRateUpdated    `json:",omitempty"`
}

// NewEventRecord returns the envelope of the event.
func NewEventRecord(e Event) EventRecord {
	return e.record()
}

// Unwrap returns the event contained in the envelope.
func (r EventRecord) Unwrap() (Event, error) {
	switch {
	case r.Listed != nil:
		return *r.Listed, nil
	case r.Purchased != nil:
		return *r.Purchased, nil
	case r.SellerWithdrawn != nil:
		return *r.SellerWithdrawn, nil
	case r.PlatformWithdrawn != nil:
		return *r.PlatformWithdrawn, nil
	case r.Deactivated != nil:
		return *r.Deactivated, nil
	case r.Activated != nil:
		return *r.Activated, nil
	case r.PriceUpdated != nil:
		return *r.PriceUpdated, nil
	case r.FeeRateUpdated != nil:
		return *r.FeeRateUpdated, nil
	default:
		return nil, xerrors.New("empty event record")
	}
}
