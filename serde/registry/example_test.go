package registry_test

import (
	"errors"
	"fmt"

	"go.dedis.ch/agora/serde"
	"go.dedis.ch/agora/serde/json"
	"go.dedis.ch/agora/serde/registry"
)

func ExampleRegistry_Register() {
	receiptRegistry.Register(serde.FormatJSON, receiptJSONFormat{})

	msg := receipt{
		product: 42,
	}

	data, err := msg.Serialize(json.NewContext())
	if err != nil {
		panic("serialization failed: " + err.Error())
	}

	fmt.Println(string(data))

	// Output: {"product":42}
}

var receiptRegistry = registry.NewSimpleRegistry()

// receipt is the data model of the message used in the example.
//
// - implements serde.Message
type receipt struct {
	product uint64
}

// receiptJSON is the JSON representation of a receipt.
type receiptJSON struct {
	Product uint64 `json:"product"`
}

// Serialize implements serde.Message. It returns the JSON serialization of a
// receipt.
func (m receipt) Serialize(ctx serde.Context) ([]byte, error) {
	format := receiptRegistry.Get(ctx.GetFormat())

	data, err := format.Encode(ctx, m)
	if err != nil {
		return nil, err
	}

	return data, nil
}

// receiptJSONFormat is an example of a format to serialize a receipt using a
// JSON encoding.
//
// - implements serde.FormatEngine
type receiptJSONFormat struct{}

// Encode implements serde.FormatEngine. It populates a message that complies
// to the JSON encoding and marshals it.
func (receiptJSONFormat) Encode(ctx serde.Context, msg serde.Message) ([]byte, error) {
	rcpt, ok := msg.(receipt)
	if !ok {
		return nil, errors.New("unsupported message")
	}

	m := receiptJSON{
		Product: rcpt.product,
	}

	return ctx.Marshal(m)
}

// Decode implements serde.FormatEngine. It is not implemented in this example.
func (receiptJSONFormat) Decode(ctx serde.Context, data []byte) (serde.Message, error) {
	return nil, errors.New("not implemented")
}
