// Package mino provides an abstraction for an application layer. It offers a
// Minimalistic Overlay Network (MINO) to communicate between the participants
// of a distributed protocol.
//
// The overlay is divided into segments so that multiple services can sit on
// the same participants without interfering with each other. An RPC is
// registered under a segment with a handler on every participant, then any of
// them can initiate a unicast call or a persistent stream to a subset of the
// players.
package mino

import (
	"context"
	"encoding"

	"go.dedis.ch/agora/serde"
	"golang.org/x/xerrors"
)

// Mino is an abstraction of an overlay network. It provides primitives to
// create RPCs that will send messages to a set of participants.
type Mino interface {
	// GetAddressFactory returns the factory to deserialize the addresses of
	// the participants.
	GetAddressFactory() AddressFactory

	// GetAddress returns the address that other participants should use to
	// contact this instance.
	GetAddress() Address

	// WithSegment returns a new mino instance for the provided segment. It
	// will be a child of the current segment.
	WithSegment(segment string) Mino

	// CreateRPC creates an RPC for the name if possible.
	CreateRPC(name string, h Handler, f serde.Factory) (RPC, error)
}

// Address is a representation of a participant of the overlay.
type Address interface {
	encoding.TextMarshaler

	// Equal returns true when both addresses are similar.
	Equal(other Address) bool

	// String returns a string representation of the address.
	String() string
}

// AddressFactory is the factory to deserialize addresses.
type AddressFactory interface {
	// FromText returns the address of the text.
	FromText(text []byte) Address
}

// AddressIterator is an iterator over the list of addresses of a membership.
type AddressIterator interface {
	// Seek moves the iterator to a specific index.
	Seek(int)

	// HasNext returns true if an address is available, false if the iterator
	// is exhausted.
	HasNext() bool

	// GetNext returns the next address in case HasNext returns true,
	// otherwise no assumption can be done.
	GetNext() Address
}

// Players is an interface to represent a set of nodes participating in a
// message passing protocol.
type Players interface {
	// Take returns a subset of the players according to the filters.
	Take(...FilterUpdater) Players

	// AddressIterator returns an iterator that prevents changes of the
	// underlying array and save memory by iterating over the same array.
	AddressIterator() AddressIterator

	// Len returns the length of the set of players.
	Len() int
}

// Sender is an interface to provide primitives to send messages to
// recipients.
type Sender interface {
	// Send sends the message to all the addresses. It returns a channel that
	// will be populated with errors coming from the network layer if the
	// message cannot be delivered, then closed.
	Send(msg serde.Message, addrs ...Address) <-chan error
}

// Receiver is an interface to provide primitives to receive messages from
// recipients.
type Receiver interface {
	// Recv waits for a message to arrive, or for the context to be done.
	Recv(ctx context.Context) (Address, serde.Message, error)
}

// RPC is a representation of a remote procedure call that can call a single
// distant procedure or multiple.
type RPC interface {
	// Call is a basic request to one or multiple distant peers. The response
	// channel will be populated with the responses of the participants, then
	// closed when all of them have replied.
	Call(ctx context.Context, req serde.Message, players Players) (<-chan Response, error)

	// Stream is a persistent request that will be closed only when the
	// orchestrator is done or an error occurred.
	Stream(ctx context.Context, players Players) (Sender, Receiver, error)
}

// Response represents the response of a distributed RPC. It provides the
// address of the original sender and the reply, or an error if the request
// failed for that participant.
type Response interface {
	// GetFrom returns the address of the responder.
	GetFrom() Address

	// GetMessageOrError returns the message, or an error if something wrong
	// happened.
	GetMessageOrError() (serde.Message, error)
}

// Request is the context of a message received by a handler.
type Request struct {
	// Address is the address of the sender of the request.
	Address Address

	// Message is the message of the request.
	Message serde.Message
}

// Handler is the interface to implement to create a public endpoint.
type Handler interface {
	// Process handles a single request by producing the response according to
	// the request message.
	Process(req Request) (resp serde.Message, err error)

	// Stream is a handler for persistent streams to the orchestrator of the
	// protocol.
	Stream(out Sender, in Receiver) error
}

// UnsupportedHandler is a default implementation of a handler that will
// return an error for every primitive.
//
// - implements mino.Handler
type UnsupportedHandler struct{}

// Process implements mino.Handler. It returns an error.
func (h UnsupportedHandler) Process(req Request) (serde.Message, error) {
	return nil, xerrors.New("rpc is not supported")
}

// Stream implements mino.Handler. It returns an error.
func (h UnsupportedHandler) Stream(in Sender, out Receiver) error {
	return xerrors.New("stream is not supported")
}

// MustCreateRPC creates the RPC attached to the mino instance, or panics if
// the creation fails.
func MustCreateRPC(m Mino, name string, h Handler, f serde.Factory) RPC {
	rpc, err := m.CreateRPC(name, h, f)
	if err != nil {
		panic(err)
	}

	return rpc
}
