package types

import (
	"encoding/binary"
)

// Names of the transaction arguments the marketplace contract reads.
const (
	// CmdArg is the argument containing the command to run.
	CmdArg = "market:command"

	// ContentArg is the argument containing the content identifier of a
	// listing.
	ContentArg = "market:content"

	// PriceArg is the argument containing a price in the smallest token
	// unit, as a decimal string.
	PriceArg = "market:price"

	// NameArg is the argument containing the display name of a listing.
	NameArg = "market:name"

	// ProductArg is the argument containing a product identifier, as a
	// decimal string.
	ProductArg = "market:product"

	// RateArg is the argument containing a fee rate in basis points, as a
	// decimal string.
	RateArg = "market:rate"
)

// Store keys of the singleton records. The contract runs against a store
// view already confined to its own namespace, so the keys only separate the
// record kinds.
var (
	// ConfigKey is the key of the marketplace configuration record.
	ConfigKey = []byte("config")

	// CounterKey is the key of the last allocated product identifier.
	CounterKey = []byte("counter")

	// PlatformKey is the key of the platform fee accumulator.
	PlatformKey = []byte("platform")
)

// ProductKey returns the store key of the product record.
func ProductKey(id uint64) []byte {
	key := make([]byte, 0, 16)
	key = append(key, []byte("product:")...)

	return binary.BigEndian.AppendUint64(key, id)
}

// SellerKey returns the store key of the seller record. The seller is
// designated by the textual form of its identity.
func SellerKey(seller string) []byte {
	return append([]byte("seller:"), seller...)
}

// ReceiptKey returns the store key of the purchase receipt of the (buyer,
// product) pair.
func ReceiptKey(buyer string, product uint64) []byte {
	key := append([]byte("receipt:"), buyer...)
	key = append(key, ':')

	return binary.BigEndian.AppendUint64(key, product)
}

// ListingKey returns the store key of the content index entry mapping a
// content identifier to the product listed first with it.
func ListingKey(contentID string) []byte {
	return append([]byte("listing:"), contentID...)
}
