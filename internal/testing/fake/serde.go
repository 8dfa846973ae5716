package fake

import (
	"encoding/json"
	"io"

	"go.dedis.ch/agora/serde"
)

// GoodFormat should register working format engines.
const GoodFormat = serde.Format("FakeGood")

// BadFormat should register non-working format engines.
const BadFormat = serde.Format("FakeBad")

// MsgFormat should register an engine always returning an empty message.
const MsgFormat = serde.Format("FakeMsg")

// GetFakeFormatValue returns the value of the fake format.
func GetFakeFormatValue() []byte {
	return []byte(`fake format`)
}

// Message is a fake implementation of a serde message.
//
// - implements serde.Message
type Message struct {
	serde.Message

	Digest []byte
}

// Fingerprint implements serde.Fingerprinter. It writes the digest of the
// message into the writer.
func (m Message) Fingerprint(writer io.Writer) error {
	writer.Write(m.Digest)

	return nil
}

// Serialize implements serde.Message. It returns the JSON of an empty
// structure.
func (m Message) Serialize(ctx serde.Context) ([]byte, error) {
	return ctx.Marshal(struct{}{})
}

// MessageFactory is a fake implementation of a serde factory.
//
// - implements serde.Factory
type MessageFactory struct {
	serde.Factory

	err error
}

// NewBadMessageFactory returns a fake message factory that returns an error.
func NewBadMessageFactory() MessageFactory {
	return MessageFactory{err: fakeErr}
}

// Deserialize implements serde.Factory.
func (f MessageFactory) Deserialize(ctx serde.Context, data []byte) (serde.Message, error) {
	return Message{}, f.err
}

// Format is a fake implementation of a format engine.
//
// - implements serde.FormatEngine
type Format struct {
	serde.FormatEngine

	err  error
	Msg  serde.Message
	Call *Call
}

// NewBadFormat returns a fake format engine that always returns an error.
func NewBadFormat() Format {
	return Format{err: fakeErr}
}

// NewMsgFormat returns a fake format engine that always returns an empty
// message.
func NewMsgFormat() Format {
	return Format{Msg: Message{}}
}

// Encode implements serde.FormatEngine. It returns the fake format value and
// the error if any.
func (f Format) Encode(ctx serde.Context, m serde.Message) ([]byte, error) {
	f.Call.Add(ctx, m)

	return GetFakeFormatValue(), f.err
}

// Decode implements serde.FormatEngine. It returns the predefined message and
// the error if any.
func (f Format) Decode(ctx serde.Context, data []byte) (serde.Message, error) {
	f.Call.Add(ctx, data)

	return f.Msg, f.err
}

// ContextEngine is a fake implementation of a serde context engine that is
// using the JSON encoding.
//
// - implements serde.ContextEngine
type ContextEngine struct {
	Count *Counter

	format serde.Format
	err    error
}

// NewContext returns a fake serde context.
func NewContext() serde.Context {
	return serde.NewContext(ContextEngine{
		format: GoodFormat,
	})
}

// NewContextWithFormat returns a fake serde context that returns the given
// format.
func NewContextWithFormat(f serde.Format) serde.Context {
	return serde.NewContext(ContextEngine{
		format: f,
	})
}

// NewBadContext returns a fake serde context that produces errors.
func NewBadContext() serde.Context {
	return serde.NewContext(ContextEngine{
		format: BadFormat,
		err:    fakeErr,
	})
}

// NewBadContextWithDelay returns a fake serde context that produces errors
// after the given delay of calls.
func NewBadContextWithDelay(delay int) serde.Context {
	return serde.NewContext(ContextEngine{
		Count:  NewCounter(delay),
		format: BadFormat,
		err:    fakeErr,
	})
}

// NewMsgContext returns a fake serde context that always uses the message
// format.
func NewMsgContext() serde.Context {
	return serde.NewContext(ContextEngine{
		format: MsgFormat,
	})
}

// GetFormat implements serde.ContextEngine.
func (ctx ContextEngine) GetFormat() serde.Format {
	return ctx.format
}

// Marshal implements serde.ContextEngine.
func (ctx ContextEngine) Marshal(m interface{}) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}

	if ctx.err != nil {
		if ctx.Count.Done() {
			return nil, ctx.err
		}

		ctx.Count.Decrease()
	}

	return data, nil
}

// Unmarshal implements serde.ContextEngine.
func (ctx ContextEngine) Unmarshal(data []byte, m interface{}) error {
	if ctx.err != nil {
		if ctx.Count.Done() {
			return ctx.err
		}

		ctx.Count.Decrease()
	}

	return json.Unmarshal(data, m)
}
