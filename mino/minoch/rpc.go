// This file contains the implementation of the RPCs.
//

package minoch

import (
	"context"
	"io"
	"math"
	"sync"

	opentracing "github.com/opentracing/opentracing-go"
	"go.dedis.ch/agora/internal/tracing"
	"go.dedis.ch/agora/mino"
	"go.dedis.ch/agora/serde"
	"golang.org/x/xerrors"
)

// Envelope is the wrapper to send messages through streams.
type Envelope struct {
	to      []mino.Address
	from    address
	message []byte
}

// RPC is an implementation of a remote procedure call for the in-process
// transport.
//
// - implements mino.RPC
type RPC struct {
	manager   *Manager
	addr      mino.Address
	path      string
	h         mino.Handler
	context   serde.Context
	factory   serde.Factory
	filters   []Filter
	getTracer func(addr string) (opentracing.Tracer, error)
}

// Call implements mino.RPC. It sends the message to all the participants and
// gathers their replies. The response channel is filled with one response per
// participant, then closed.
func (c RPC) Call(ctx context.Context,
	req serde.Message, players mino.Players) (<-chan mino.Response, error) {

	out := make(chan mino.Response, players.Len())

	data, err := req.Serialize(c.context)
	if err != nil {
		return nil, xerrors.Errorf("couldn't serialize: %v", err)
	}

	wg := sync.WaitGroup{}
	wg.Add(players.Len())

	iter := players.AddressIterator()
	for iter.HasNext() {
		peer, err := c.manager.get(iter.GetNext())
		if err != nil {
			return nil, xerrors.Errorf("couldn't find peer: %v", err)
		}

		go func(m *Minoch) {
			defer wg.Done()

			resp, err := c.process(m, data)
			if err != nil {
				out <- mino.NewResponseWithError(m.GetAddress(), err)
				return
			}

			if resp != nil {
				out <- mino.NewResponse(m.GetAddress(), resp)
			}
		}(peer)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out, nil
}

func (c RPC) process(m *Minoch, data []byte) (serde.Message, error) {
	msg, err := c.factory.Deserialize(c.context, data)
	if err != nil {
		return nil, xerrors.Errorf("couldn't deserialize: %v", err)
	}

	req := mino.Request{
		Address: c.addr,
		Message: msg,
	}

	m.Lock()
	rpc, ok := m.rpcs[c.path]
	m.Unlock()

	if !ok {
		return nil, xerrors.Errorf("unknown rpc %s", c.path)
	}

	for _, filter := range rpc.filters {
		if !filter(req) {
			return nil, xerrors.New("message dropped")
		}
	}

	resp, err := rpc.h.Process(req)
	if err != nil {
		return nil, xerrors.Errorf("couldn't process request: %v", err)
	}

	return resp, nil
}

// Stream implements mino.RPC. It opens a stream to all the participants and
// routes the envelopes through an orchestrator. The caller is responsible for
// canceling the context to close the stream.
func (c RPC) Stream(ctx context.Context, players mino.Players) (mino.Sender, mino.Receiver, error) {
	tracer, err := c.getTracer(c.addr.String())
	if err != nil {
		return nil, nil, xerrors.Errorf("failed to get tracer for addr %v: %v", c.addr, err)
	}

	protocol := tracing.UndefinedProtocol
	if value, ok := ctx.Value(tracing.ProtocolKey).(string); ok {
		protocol = value
	}

	span := tracer.StartSpan(c.path)
	span.SetTag(tracing.ProtocolTag, protocol)

	in := make(chan Envelope, 100)
	out := make(chan Envelope, 100)
	errs := make(chan error, 1)

	outs := make(map[string]receiver)

	iter := players.AddressIterator()
	for iter.HasNext() {
		addr := iter.GetNext()

		peer, err := c.manager.get(addr)
		if err != nil {
			return nil, nil, xerrors.Errorf("couldn't find peer: %v", err)
		}

		peer.Lock()
		rpc, ok := peer.rpcs[c.path]
		peer.Unlock()

		if !ok {
			return nil, nil, xerrors.Errorf("unknown rpc %s", c.path)
		}

		ch := make(chan Envelope, 1)
		outs[addr.String()] = receiver{
			out:     ch,
			context: c.context,
			factory: c.factory,
			filters: rpc.filters,
		}

		go func(r receiver) {
			s := sender{
				addr:    peer.GetAddress(),
				in:      in,
				context: c.context,
			}

			err := rpc.h.Stream(s, r)
			if err != nil {
				errs <- xerrors.Errorf("couldn't process: %v", err)
			}
		}(outs[addr.String()])
	}

	orchAddr := c.addr.(address)
	orchAddr.orchestrator = true

	orchSender := sender{
		addr:    orchAddr,
		in:      in,
		context: c.context,
	}

	orchRecv := receiver{
		out:     out,
		errs:    errs,
		context: c.context,
		factory: c.factory,
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				span.Finish()
				// closes the orchestrator..
				close(out)
				// closes the participants..
				for _, r := range outs {
					close(r.out)
				}
				return
			case env := <-in:
				for _, to := range env.to {
					if addr, ok := to.(address); ok && addr.orchestrator {
						orchRecv.out <- env
					} else {
						r, ok := outs[to.String()]
						if ok {
							r.out <- env
						}
					}
				}
			}
		}
	}()

	return orchSender, orchRecv, nil
}

// Sender is the struct provided to the handlers to send messages to the other
// participants of a stream.
//
// - implements mino.Sender
type sender struct {
	addr    mino.Address
	in      chan Envelope
	context serde.Context
}

// Send implements mino.Sender. It serializes the message a single time and
// fans it out to the addresses.
func (s sender) Send(msg serde.Message, addrs ...mino.Address) <-chan error {
	errs := make(chan error, int(math.Max(1, float64(len(addrs)))))

	data, err := msg.Serialize(s.context)
	if err != nil {
		errs <- xerrors.Errorf("couldn't marshal message: %v", err)
		close(errs)
		return errs
	}

	go func() {
		s.in <- Envelope{
			from:    s.addr.(address),
			to:      addrs,
			message: data,
		}
		close(errs)
	}()

	return errs
}

// Receiver is the struct provided to the handlers to receive messages from
// the other participants of a stream.
//
// - implements mino.Receiver
type receiver struct {
	out     chan Envelope
	errs    chan error
	context serde.Context
	factory serde.Factory
	filters []Filter
}

// Recv implements mino.Receiver. It waits for an envelope and deserializes
// it, dropping the messages excluded by the filters.
func (r receiver) Recv(ctx context.Context) (mino.Address, serde.Message, error) {
	for {
		select {
		case env, ok := <-r.out:
			if !ok {
				return nil, nil, io.EOF
			}

			msg, err := r.factory.Deserialize(r.context, env.message)
			if err != nil {
				return nil, nil, xerrors.Errorf("couldn't deserialize: %v", err)
			}

			req := mino.Request{
				Address: env.from,
				Message: msg,
			}

			dropped := false
			for _, filter := range r.filters {
				if !filter(req) {
					dropped = true
					break
				}
			}

			if dropped {
				continue
			}

			return env.from, msg, nil
		case err := <-r.errs:
			return nil, nil, err
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}
}
