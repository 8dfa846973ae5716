package gate

import (
	"errors"

	"go.dedis.ch/agora/core/access"
	"go.dedis.ch/agora/market"
	"golang.org/x/xerrors"
)

// MarketViews is the subset of the marketplace read views the oracle queries.
// The views must reflect the live ledger state.
type MarketViews interface {
	// ProductByContentID returns the product listed under the content
	// identifier.
	ProductByContentID(contentID string) (uint64, error)

	// HasPurchased returns true when the buyer holds a receipt for the
	// product.
	HasPurchased(buyer access.Identity, id uint64) (bool, error)

	// IsSeller returns true when the identity is the seller of the product.
	IsSeller(ident access.Identity, id uint64) (bool, error)
}

// LedgerOracle evaluates the release predicate against the marketplace
// service. Content that no product is listed under is simply not released to
// anyone but a seller that cannot exist, so an unknown content identifier
// evaluates to false rather than to an error.
//
// - implements gate.PurchaseOracle
type LedgerOracle struct {
	views MarketViews
}

// NewLedgerOracle creates an oracle reading from the marketplace views.
func NewLedgerOracle(views MarketViews) LedgerOracle {
	return LedgerOracle{views: views}
}

// HasPurchased implements gate.PurchaseOracle.
func (o LedgerOracle) HasPurchased(account access.Identity, contentID string) (bool, error) {
	id, err := o.views.ProductByContentID(contentID)
	if err != nil {
		if errors.Is(err, market.ErrNotFound) {
			return false, nil
		}

		return false, xerrors.Errorf("couldn't resolve content: %v", err)
	}

	ok, err := o.views.HasPurchased(account, id)
	if err != nil {
		return false, xerrors.Errorf("couldn't read receipts: %v", err)
	}

	return ok, nil
}

// IsSeller implements gate.PurchaseOracle.
func (o LedgerOracle) IsSeller(account access.Identity, contentID string) (bool, error) {
	id, err := o.views.ProductByContentID(contentID)
	if err != nil {
		if errors.Is(err, market.ErrNotFound) {
			return false, nil
		}

		return false, xerrors.Errorf("couldn't resolve content: %v", err)
	}

	ok, err := o.views.IsSeller(account, id)
	if err != nil {
		return false, xerrors.Errorf("couldn't read seller: %v", err)
	}

	return ok, nil
}
