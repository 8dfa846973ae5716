// Package market implements the escrow ledger program of the marketplace.
//
// The program is the sole writer of the product records, the seller accounts,
// the purchase receipts and the platform fee accumulator. It exposes a native
// contract executing the mutating commands, and a serial service ordering the
// signed transactions, committing the state and publishing the audit events.
//
// A purchase follows the checks, effects, interactions ordering: the command
// validates its inputs, commits the bookkeeping to the staging snapshot, and
// only then asks the token ledger to move the funds. The token ledger is the
// only point where the control can leave the program, so a program-wide guard
// additionally rejects any call made from within the transfer.
package market

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.dedis.ch/agora"
	"golang.org/x/xerrors"
)

// MaxFeeRateBps is the hard ceiling of the platform fee rate, in basis
// points.
const MaxFeeRateBps = 2000

// Errors returned by the marketplace operations. They are compared with
// errors.Is as the returned errors are wrapped with more context.
var (
	// ErrInvalidContent indicates a listing with a missing or malformed
	// content identifier.
	ErrInvalidContent = xerrors.New("invalid content identifier")

	// ErrInvalidPrice indicates a zero or malformed price.
	ErrInvalidPrice = xerrors.New("invalid price")

	// ErrInvalidName indicates a listing with an empty display name.
	ErrInvalidName = xerrors.New("invalid name")

	// ErrNotFound indicates an operation on a product that does not exist.
	ErrNotFound = xerrors.New("product not found")

	// ErrNotActive indicates a purchase of a deactivated product.
	ErrNotActive = xerrors.New("product is not active")

	// ErrSelfPurchase indicates a seller trying to buy its own product.
	ErrSelfPurchase = xerrors.New("seller cannot purchase own product")

	// ErrAlreadyPurchased indicates a second purchase of the same product
	// by the same buyer.
	ErrAlreadyPurchased = xerrors.New("product already purchased")

	// ErrNoBalance indicates a withdrawal of an empty seller balance.
	ErrNoBalance = xerrors.New("no balance to withdraw")

	// ErrNoFees indicates a collection of an empty platform accumulator.
	ErrNoFees = xerrors.New("no fees to withdraw")

	// ErrNotOwner indicates an owner-only operation from another identity.
	ErrNotOwner = xerrors.New("not the platform owner")

	// ErrNotSeller indicates a seller-only operation from another identity.
	ErrNotSeller = xerrors.New("not the product seller")

	// ErrAlreadyInactive indicates a deactivation of an inactive product.
	ErrAlreadyInactive = xerrors.New("product already inactive")

	// ErrAlreadyActive indicates an activation of an active product.
	ErrAlreadyActive = xerrors.New("product already active")

	// ErrAccessDenied indicates a gated read from an identity that neither
	// purchased the product nor sells it.
	ErrAccessDenied = xerrors.New("access denied")

	// ErrInvalidTokenReference indicates a program created without a usable
	// token ledger.
	ErrInvalidTokenReference = xerrors.New("invalid token reference")

	// ErrReentrantCall indicates a mutating call made from within the token
	// transfer of another one.
	ErrReentrantCall = xerrors.New("re-entrant call rejected")
)

// FeeTooHighError is returned when a fee rate above the ceiling is provided,
// either at bootstrap or by the SETFEE command.
type FeeTooHighError struct {
	Provided uint64
	Max      uint64
}

// Error implements error.
func (e FeeTooHighError) Error() string {
	return fmt.Sprintf("fee rate %d bps is above the maximum %d bps",
		e.Provided, e.Max)
}

// Split returns the platform fee and the seller share of a price for the
// given fee rate. The truncation of the integer division goes to the fee so
// that the two parts always rebuild the price exactly.
func Split(price, rateBps uint64) (fee, share uint64) {
	fee = price * rateBps / 10000

	return fee, price - fee
}

var (
	promPurchases = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "agora_market_purchases_total",
		Help: "total number of completed purchases",
	})

	promEscrow = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "agora_market_escrow_balance",
		Help: "tokens held in escrow for sellers and the platform",
	})

	promTxLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "agora_market_transaction_seconds",
		Help:    "processing time of a transaction",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
	})
)

func init() {
	agora.PromCollectors = append(agora.PromCollectors,
		promPurchases, promEscrow, promTxLatency)
}
