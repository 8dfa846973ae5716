// Package json defines the JSON envelope shared by every serialized key and
// signature, so the algorithm can be read before the payload is decoded.
package json

import (
	"go.dedis.ch/agora/crypto/common"
	"go.dedis.ch/agora/serde"
	"golang.org/x/xerrors"
)

func init() {
	common.RegisterAlgorithmFormat(serde.FormatJSON, algoFormat{})
}

// Algorithm names the algorithm of the message it is embedded in.
type Algorithm struct {
	Name string
}

// PublicKey is the JSON envelope of a public key: the algorithm name and the
// algorithm-specific data.
type PublicKey struct {
	Algorithm
	Data []byte
}

// Signature is the JSON envelope of a signature: the algorithm name and the
// algorithm-specific data.
type Signature struct {
	Algorithm
	Data []byte
}

// algoFormat encodes and decodes the algorithm envelope in JSON.
//
// - implements serde.FormatEngine
type algoFormat struct{}

// Encode implements serde.FormatEngine. It returns the JSON representation of
// an algorithm message.
func (f algoFormat) Encode(ctx serde.Context, msg serde.Message) ([]byte, error) {
	algo, ok := msg.(common.Algorithm)
	if !ok {
		return nil, xerrors.Errorf("unsupported message of type '%T'", msg)
	}

	m := Algorithm{
		Name: algo.GetName(),
	}

	data, err := ctx.Marshal(m)
	if err != nil {
		return nil, xerrors.Errorf("couldn't marshal: %v", err)
	}

	return data, nil
}

// Decode implements serde.FormatEngine. It reads only the algorithm name of
// the data, ignoring the payload.
func (f algoFormat) Decode(ctx serde.Context, data []byte) (serde.Message, error) {
	m := Algorithm{}
	err := ctx.Unmarshal(data, &m)
	if err != nil {
		return nil, xerrors.Errorf("couldn't deserialize algorithm: %v", err)
	}

	return common.NewAlgorithm(m.Name), nil
}
