// Package index implements the audit-trail indexer of the marketplace.
//
// The indexer subscribes to the finality events of the marketplace service
// and persists them as flat audit rows for analytics and operators. The rows
// are a convenience projection: authorization decisions never read them, the
// gatekeepers always query the live marketplace views.
package index

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/rs/zerolog"
	"go.dedis.ch/agora"
	"go.dedis.ch/agora/market"
	"go.dedis.ch/agora/market/types"
)

// Kinds of audit rows, one per marketplace event.
const (
	KindListed            = "listed"
	KindPurchased         = "purchased"
	KindSellerWithdrawn   = "seller_withdrawn"
	KindPlatformWithdrawn = "platform_withdrawn"
	KindDeactivated       = "deactivated"
	KindActivated         = "activated"
	KindPriceUpdated      = "price_updated"
	KindFeeRateUpdated    = "fee_rate_updated"
)

// Row is a flat audit record of a single marketplace event.
type Row struct {
	TxID      string    `db:"tx_id"`
	Kind      string    `db:"kind"`
	Product   uint64    `db:"product"`
	Account   string    `db:"account"`
	ContentID string    `db:"content_id"`
	Amount    uint64    `db:"amount"`
	Fee       uint64    `db:"fee"`
	CreatedAt time.Time `db:"created_at"`
}

// Persister saves audit rows to a durable backend.
type Persister interface {
	// Save persists the rows of one finalized transaction.
	Save(rows []Row) error

	// Close releases the backend.
	Close() error
}

// Indexer drains the finality events of the marketplace service into a
// persister.
type Indexer struct {
	logger    zerolog.Logger
	persister Persister
}

// NewIndexer creates an indexer saving to the persister.
func NewIndexer(persister Persister) *Indexer {
	return &Indexer{
		logger:    agora.Logger.With().Str("component", "index").Logger(),
		persister: persister,
	}
}

// Run subscribes to the service and persists the events until the context is
// done. A row that fails to persist is logged and dropped, the indexer never
// blocks the marketplace.
func (idx *Indexer) Run(ctx context.Context, srvc *market.Service) error {
	events := srvc.Watch(ctx)

	idx.logger.Info().Msg("indexer started")

	for {
		select {
		case evt, ok := <-events:
			if !ok {
				return nil
			}

			if !evt.Accepted {
				continue
			}

			rows := MakeRows(evt)
			if len(rows) == 0 {
				continue
			}

			err := idx.persister.Save(rows)
			if err != nil {
				idx.logger.Err(err).
					Str("tx", hex.EncodeToString(evt.TxID)).
					Msg("failed to persist audit rows")
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// MakeRows flattens the events of a finalized transaction into audit rows.
func MakeRows(evt market.Event) []Row {
	now := time.Now().UTC()
	txID := hex.EncodeToString(evt.TxID)

	rows := make([]Row, 0, len(evt.Events))

	for _, event := range evt.Events {
		row := Row{TxID: txID, CreatedAt: now}

		switch e := event.(type) {
		case types.Listed:
			row.Kind = KindListed
			row.Product = e.Product
			row.Account = e.Seller
			row.ContentID = e.ContentID
			row.Amount = e.Price
		case types.Purchased:
			row.Kind = KindPurchased
			row.Product = e.Product
			row.Account = e.Buyer
			row.Amount = e.Price
			row.Fee = e.Fee
		case types.SellerWithdrawn:
			row.Kind = KindSellerWithdrawn
			row.Account = e.Seller
			row.Amount = e.Amount
		case types.PlatformWithdrawn:
			row.Kind = KindPlatformWithdrawn
			row.Account = e.Owner
			row.Amount = e.Amount
		case types.Deactivated:
			row.Kind = KindDeactivated
			row.Product = e.Product
		case types.Activated:
			row.Kind = KindActivated
			row.Product = e.Product
		case types.PriceUpdated:
			row.Kind = KindPriceUpdated
			row.Product = e.Product
			row.Amount = e.Price
		case types.FeeRateUpdated:
			row.Kind = KindFeeRateUpdated
			row.Amount = e.Rate
		default:
			continue
		}

		rows = append(rows, row)
	}

	return rows
}

// NopPersister discards the rows. It keeps a daemon functional when no
// database is configured.
//
// - implements index.Persister
type NopPersister struct{}

// Save implements index.Persister.
func (NopPersister) Save([]Row) error {
	return nil
}

// Close implements index.Persister.
func (NopPersister) Close() error {
	return nil
}
