// Package registry maps wire formats to their encoding engines.
//
// Every serializable message of the marketplace keeps one registry per
// message type, populated by the format packages at init time. Looking up a
// format that was never registered yields an engine that fails with a
// descriptive error instead of a nil dereference.
package registry

import (
	"go.dedis.ch/agora/serde"
)

// Registry is an interface to register and get format engines for a specific
// format.
type Registry interface {
	// Register takes a format and its engine and it registers them so that the
	// engine can be looked up later.
	Register(serde.Format, serde.FormatEngine)

	// Get returns the engine associated with the format.
	Get(serde.Format) serde.FormatEngine
}
