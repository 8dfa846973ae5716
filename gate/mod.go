// Package gate defines the predicate-gated decryption protocol of the
// marketplace.
//
// A seller seals an asset before uploading it: the payload is encrypted under
// a fresh data key, and the data key is encapsulated to the public key of a
// cohort of gatekeepers, bound to an access policy naming the content
// identifier of the sealed blob.
//
// To unseal, a requester presents a short-lived session assertion signed with
// its own key. Every gatekeeper independently verifies the assertion and
// evaluates the release predicate against the live marketplace views: the
// requester must hold a purchase receipt for the product bound to the content
// identifier, or be its seller. Only then does the gatekeeper answer with its
// partial decryption. A denied request receives no key material at all.
//
// The authorization is eventually consistent with the ledger: a gatekeeper
// reads the marketplace state no older than the moment of the request, so a
// purchase that is not yet finalized is denied and must be retried after
// finality.
package gate

import (
	"go.dedis.ch/agora/core/access"
	"go.dedis.ch/agora/gate/types"
	"go.dedis.ch/kyber/v3"

	"go.dedis.ch/agora/crypto"
	"golang.org/x/xerrors"
)

// Sentinel errors of the protocol. An unavailability must never be presented
// as a denial: the first is retryable, the second is final until the ledger
// state changes.
var (
	// ErrAccessDenied indicates that the release predicate evaluated to
	// false for the requester.
	ErrAccessDenied = xerrors.New("access denied")

	// ErrUnavailable indicates that not enough gatekeepers could be
	// reached, or answered, to attempt an evaluation.
	ErrUnavailable = xerrors.New("access network unavailable")
)

// PurchaseOracle evaluates the release predicate against the authoritative
// ledger state. Implementations must query live views and never trust a
// client-supplied claim.
type PurchaseOracle interface {
	// HasPurchased returns true when the account holds a purchase receipt
	// for the product bound to the content identifier.
	HasPurchased(account access.Identity, contentID string) (bool, error)

	// IsSeller returns true when the account is the seller of the product
	// bound to the content identifier.
	IsSeller(account access.Identity, contentID string) (bool, error)
}

// Gatekeeper is the primitive to start the protocol on a node.
type Gatekeeper interface {
	// Listen starts the RPC and returns the actor to drive the protocol.
	Listen() (Actor, error)
}

// Actor provides the operations of the protocol once the node is listening.
type Actor interface {
	// Setup deals the cohort key shares to the gatekeepers. It must be
	// called exactly once, by one single actor of the cohort.
	Setup(cohort crypto.CollectiveAuthority, threshold int) (kyber.Point, error)

	// GetPublicKey returns the cohort public key.
	GetPublicKey() (kyber.Point, error)

	// Seal encrypts the plaintext under the access policy so that only the
	// cohort can release it.
	Seal(plaintext []byte, policy types.Policy) (types.Sealed, error)

	// Unseal asks the cohort to release the plaintext of the sealed
	// record. The token is the session assertion of the requester. It
	// returns ErrAccessDenied when the predicate refused the requester,
	// and ErrUnavailable when the cohort could not be consulted.
	Unseal(sealed types.Sealed, token string) ([]byte, error)
}
