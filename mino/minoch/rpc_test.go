package minoch

import (
	"context"
	"io"
	"testing"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/agora/internal/testing/fake"
	"go.dedis.ch/agora/internal/tracing"
	"go.dedis.ch/agora/mino"
)

func TestRPC_Call(t *testing.T) {
	manager := NewManager()

	m1 := MustCreate(manager, "A")
	m2 := MustCreate(manager, "B")

	rpc1, err := m1.CreateRPC("test", fakeHandler{}, fake.MessageFactory{})
	require.NoError(t, err)

	_, err = m2.CreateRPC("test", fakeHandler{}, fake.MessageFactory{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	roster := mino.NewAddresses(m1.GetAddress(), m2.GetAddress())

	resps, err := rpc1.Call(ctx, fake.Message{}, roster)
	require.NoError(t, err)

	count := 0
	for resp := range resps {
		msg, err := resp.GetMessageOrError()
		require.NoError(t, err)
		require.Equal(t, fake.Message{}, msg)
		count++
	}

	require.Equal(t, 2, count)
}

func TestRPC_UnknownPeer_Call(t *testing.T) {
	manager := NewManager()

	m1 := MustCreate(manager, "A")

	rpc1, err := m1.CreateRPC("test", fakeHandler{}, fake.MessageFactory{})
	require.NoError(t, err)

	roster := mino.NewAddresses(address{id: "unknown"})

	_, err = rpc1.Call(context.Background(), fake.Message{}, roster)
	require.EqualError(t, err, "couldn't find peer: address <unknown> not found")
}

func TestRPC_MissingHandler_Call(t *testing.T) {
	manager := NewManager()

	m1 := MustCreate(manager, "A")
	m2 := MustCreate(manager, "B")

	rpc1, err := m1.CreateRPC("test", fakeHandler{}, fake.MessageFactory{})
	require.NoError(t, err)

	resps, err := rpc1.Call(context.Background(), fake.Message{},
		mino.NewAddresses(m2.GetAddress()))

	require.NoError(t, err)

	resp := <-resps
	_, err = resp.GetMessageOrError()
	require.EqualError(t, err, "unknown rpc /test")
}

func TestRPC_BadHandler_Call(t *testing.T) {
	manager := NewManager()

	m1 := MustCreate(manager, "A")

	rpc1, err := m1.CreateRPC("test", badHandler{}, fake.MessageFactory{})
	require.NoError(t, err)

	resps, err := rpc1.Call(context.Background(), fake.Message{},
		mino.NewAddresses(m1.GetAddress()))

	require.NoError(t, err)

	resp := <-resps
	_, err = resp.GetMessageOrError()
	require.EqualError(t, err, "couldn't process request: rpc is not supported")
}

func TestRPC_Filter_Call(t *testing.T) {
	manager := NewManager()

	m1 := MustCreate(manager, "A")
	m2 := MustCreate(manager, "B")

	rpc1, err := m1.CreateRPC("test", fakeHandler{}, fake.MessageFactory{})
	require.NoError(t, err)

	m2.AddFilter(func(mino.Request) bool { return false })

	_, err = m2.CreateRPC("test", fakeHandler{}, fake.MessageFactory{})
	require.NoError(t, err)

	resps, err := rpc1.Call(context.Background(), fake.Message{},
		mino.NewAddresses(m2.GetAddress()))

	require.NoError(t, err)

	resp := <-resps
	_, err = resp.GetMessageOrError()
	require.EqualError(t, err, "message dropped")
}

func TestRPC_Stream(t *testing.T) {
	manager := NewManager()

	m1 := MustCreate(manager, "A")
	m2 := MustCreate(manager, "B")

	rpc1, err := m1.CreateRPC("test", echoHandler{}, fake.MessageFactory{})
	require.NoError(t, err)

	_, err = m2.CreateRPC("test", echoHandler{}, fake.MessageFactory{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	roster := mino.NewAddresses(m1.GetAddress(), m2.GetAddress())

	rpc1.(*RPC).getTracer = fake.GetTracerForAddrEmpty

	sender, recv, err := rpc1.Stream(ctx, roster)
	require.NoError(t, err)

	err = <-sender.Send(fake.Message{}, m2.GetAddress())
	require.NoError(t, err)

	from, msg, err := recv.Recv(ctx)
	require.NoError(t, err)
	require.Equal(t, "B", from.String())
	require.Equal(t, fake.Message{}, msg)
}

func TestRPC_UnknownPeer_Stream(t *testing.T) {
	manager := NewManager()

	m1 := MustCreate(manager, "A")

	rpc1, err := m1.CreateRPC("test", echoHandler{}, fake.MessageFactory{})
	require.NoError(t, err)

	rpc1.(*RPC).getTracer = fake.GetTracerForAddrEmpty

	_, _, err = rpc1.Stream(context.Background(),
		mino.NewAddresses(address{id: "unknown"}))

	require.EqualError(t, err, "couldn't find peer: address <unknown> not found")
}

func TestRPC_Stream_TagsProtocolSpan(t *testing.T) {
	manager := NewManager()

	m1 := MustCreate(manager, "A")
	m2 := MustCreate(manager, "B")

	rpc1, err := m1.CreateRPC("sync", echoHandler{}, fake.MessageFactory{})
	require.NoError(t, err)

	_, err = m2.CreateRPC("sync", echoHandler{}, fake.MessageFactory{})
	require.NoError(t, err)

	tracer := &recordingTracer{}
	rpc1.(*RPC).getTracer = func(string) (opentracing.Tracer, error) {
		return tracer, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	ctx = context.WithValue(ctx, tracing.ProtocolKey, "market-sync")

	_, recv, err := rpc1.Stream(ctx, mino.NewAddresses(m1.GetAddress(), m2.GetAddress()))
	require.NoError(t, err)

	cancel()

	_, _, err = recv.Recv(context.Background())
	require.Equal(t, io.EOF, err)

	require.Len(t, tracer.spans, 1)
	require.Equal(t, "/sync", tracer.spans[0].name)
	require.Equal(t, "market-sync", tracer.spans[0].tags[tracing.ProtocolTag])
	require.True(t, tracer.spans[0].finished)
}

func TestRPC_NoProtocol_Stream(t *testing.T) {
	manager := NewManager()

	m1 := MustCreate(manager, "A")

	rpc1, err := m1.CreateRPC("sync", echoHandler{}, fake.MessageFactory{})
	require.NoError(t, err)

	tracer := &recordingTracer{}
	rpc1.(*RPC).getTracer = func(string) (opentracing.Tracer, error) {
		return tracer, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, _, err = rpc1.Stream(ctx, mino.NewAddresses(m1.GetAddress()))
	require.NoError(t, err)

	require.Len(t, tracer.spans, 1)
	require.Equal(t, tracing.UndefinedProtocol, tracer.spans[0].tags[tracing.ProtocolTag])
}

func TestRPC_BadTracer_Stream(t *testing.T) {
	manager := NewManager()

	m1 := MustCreate(manager, "A")

	rpc1, err := m1.CreateRPC("sync", echoHandler{}, fake.MessageFactory{})
	require.NoError(t, err)

	rpc1.(*RPC).getTracer = fake.GetTracerForAddrWithError

	_, _, err = rpc1.Stream(context.Background(), mino.NewAddresses(m1.GetAddress()))
	require.EqualError(t, err, fake.Err("failed to get tracer for addr A"))
}

// -----------------------------------------------------------------------------
// Utility functions

type echoHandler struct {
	mino.UnsupportedHandler
}

func (h echoHandler) Stream(out mino.Sender, in mino.Receiver) error {
	for {
		addr, msg, err := in.Recv(context.Background())
		if err == io.EOF {
			return nil
		}

		if err != nil {
			return err
		}

		err = <-out.Send(msg, addr)
		if err != nil {
			return err
		}
	}
}

// recordingTracer keeps the spans it started so a test can inspect the tags.
//
// - implements opentracing.Tracer
type recordingTracer struct {
	opentracing.Tracer

	spans []*recordingSpan
}

func (t *recordingTracer) StartSpan(name string,
	opts ...opentracing.StartSpanOption) opentracing.Span {

	span := &recordingSpan{name: name, tags: map[string]interface{}{}}
	t.spans = append(t.spans, span)

	return span
}

// - implements opentracing.Span
type recordingSpan struct {
	opentracing.Span

	name     string
	tags     map[string]interface{}
	finished bool
}

func (s *recordingSpan) SetTag(key string, value interface{}) opentracing.Span {
	s.tags[key] = value

	return s
}

func (s *recordingSpan) Finish() {
	s.finished = true
}
