// Package access defines the identity abstraction used to attribute the
// marketplace accounts.
package access

import (
	"encoding"

	"go.dedis.ch/agora/serde"
)

// Identity is an abstraction to uniquely identify a signer.
type Identity interface {
	serde.Message

	encoding.TextMarshaler

	// Equal returns true when the other object is equal to the identity.
	Equal(other interface{}) bool
}
