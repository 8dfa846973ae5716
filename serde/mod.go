// Package serde defines the primitives to serialize and deserialize (serde)
// the network messages and the records of the module.
//
// A message implementation serializes itself to a context that defines the
// format, so that the same data model can support multiple formats. The
// formats of a message are registered through a registry so that the
// definitions stay close to the data model while being chosen at runtime.
package serde

import "io"

// Message is the interface that a data model should implement to be
// serialized and deserialized through a context.
type Message interface {
	// Serialize serializes the object by complying to the context format.
	Serialize(ctx Context) ([]byte, error)
}

// Factory is the interface to implement to instantiate a data model from raw
// bytes.
type Factory interface {
	// Deserialize deserializes the message using the context format.
	Deserialize(ctx Context, data []byte) (Message, error)
}

// Fingerprinter is the interface to differentiate data models that can be
// fingerprinted in a deterministic way, so that the digest can be signed or
// compared.
type Fingerprinter interface {
	// Fingerprint writes itself to the writer in a deterministic way.
	Fingerprint(writer io.Writer) error
}

// Format is the identifier of a format implementation.
type Format string

const (
	// FormatJSON is the identifier of the JSON formats.
	FormatJSON Format = "JSON"

	// FormatXML is the identifier of the XML formats.
	FormatXML Format = "XML"
)

// FormatEngine is the interface to implement to encode and decode a message
// in a specific format.
type FormatEngine interface {
	// Encode encodes the message according to the engine format.
	Encode(ctx Context, message Message) ([]byte, error)

	// Decode decodes the data according to the engine format.
	Decode(ctx Context, data []byte) (Message, error)
}
