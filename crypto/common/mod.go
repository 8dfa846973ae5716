// Package common resolves serialized public keys and signatures to the
// algorithm that produced them.
//
// Transactions carry the identity of their author, so the deserialization
// side needs to know which algorithm a blob belongs to before it can pick a
// factory. The messages in this package wrap the raw data with the algorithm
// name. The marketplace registers schnorr over Ed25519 out of the box and
// leaves room for more.
package common

import (
	"go.dedis.ch/agora/crypto"
	"go.dedis.ch/agora/crypto/ed25519"
	"go.dedis.ch/agora/serde"
	"go.dedis.ch/agora/serde/registry"
	"golang.org/x/xerrors"
)

var algFormats = registry.NewSimpleRegistry()

// RegisterAlgorithmFormat registers the engine for the provided format.
func RegisterAlgorithmFormat(format serde.Format, engine serde.FormatEngine) {
	algFormats.Register(format, engine)
}

// Algorithm identifies the signature algorithm of a serialized key or
// signature.
//
// - implements serde.Message
type Algorithm struct {
	name string
}

// NewAlgorithm returns a new algorithm from the provided name.
func NewAlgorithm(name string) Algorithm {
	return Algorithm{name: name}
}

// GetName returns the name of the algorithm.
func (alg Algorithm) GetName() string {
	return alg.name
}

// Serialize implements serde.Message. It returns the serialized data of the
// algorithm.
func (alg Algorithm) Serialize(ctx serde.Context) ([]byte, error) {
	format := algFormats.Get(ctx.GetFormat())

	data, err := format.Encode(ctx, alg)
	if err != nil {
		return nil, xerrors.Errorf("couldn't encode algorithm: %v", err)
	}

	return data, nil
}

// algorithmOf decodes only the algorithm envelope of the data, leaving the
// payload to the algorithm-specific factory.
func algorithmOf(ctx serde.Context, data []byte) (Algorithm, error) {
	format := algFormats.Get(ctx.GetFormat())

	m, err := format.Decode(ctx, data)
	if err != nil {
		return Algorithm{}, xerrors.Errorf("couldn't decode algorithm: %v", err)
	}

	algo, ok := m.(Algorithm)
	if !ok {
		return Algorithm{}, xerrors.Errorf("invalid message of type '%T'", m)
	}

	return algo, nil
}

// PublicKeyFactory is a public key factory for the registered algorithms.
//
// - implements crypto.PublicKeyFactory
// - implements serde.Factory
type PublicKeyFactory struct {
	factories map[string]crypto.PublicKeyFactory
}

// NewPublicKeyFactory returns a new instance of the common public key factory.
func NewPublicKeyFactory() PublicKeyFactory {
	factory := PublicKeyFactory{
		factories: make(map[string]crypto.PublicKeyFactory),
	}

	factory.RegisterAlgorithm(ed25519.Algorithm, ed25519.NewPublicKeyFactory())

	return factory
}

// RegisterAlgorithm registers the factory for the algorithm.
func (f PublicKeyFactory) RegisterAlgorithm(algo string, factory crypto.PublicKeyFactory) {
	f.factories[algo] = factory
}

// Deserialize implements serde.Factory. It looks up the algorithm and returns
// the public key of the data if appropriate, otherwise an error.
func (f PublicKeyFactory) Deserialize(ctx serde.Context, data []byte) (serde.Message, error) {
	return f.PublicKeyOf(ctx, data)
}

// PublicKeyOf implements crypto.PublicKeyFactory. It looks up the algorithm
// and returns the public key of the data if appropriate, otherwise an error.
func (f PublicKeyFactory) PublicKeyOf(ctx serde.Context, data []byte) (crypto.PublicKey, error) {
	algo, err := algorithmOf(ctx, data)
	if err != nil {
		return nil, err
	}

	factory := f.factories[algo.GetName()]
	if factory == nil {
		return nil, xerrors.Errorf("unknown algorithm '%s'", algo.GetName())
	}

	return factory.PublicKeyOf(ctx, data)
}

// FromBytes implements crypto.PublicKeyFactory. It returns an error as the
// bytes alone do not carry the algorithm information.
func (f PublicKeyFactory) FromBytes(data []byte) (crypto.PublicKey, error) {
	return nil, xerrors.New("cannot decode a public key without its algorithm")
}

// SignatureFactory is a signature factory for the registered algorithms.
//
// - implements crypto.SignatureFactory
// - implements serde.Factory
type SignatureFactory struct {
	factories map[string]crypto.SignatureFactory
}

// NewSignatureFactory returns a new instance of the common signature factory.
func NewSignatureFactory() SignatureFactory {
	factory := SignatureFactory{
		factories: make(map[string]crypto.SignatureFactory),
	}

	factory.RegisterAlgorithm(ed25519.Algorithm, ed25519.NewSignatureFactory())

	return factory
}

// RegisterAlgorithm registers the factory for the algorithm.
func (f SignatureFactory) RegisterAlgorithm(algo string, factory crypto.SignatureFactory) {
	f.factories[algo] = factory
}

// Deserialize implements serde.Factory. It looks up the algorithm and returns
// the signature of the data if appropriate, otherwise an error.
func (f SignatureFactory) Deserialize(ctx serde.Context, data []byte) (serde.Message, error) {
	return f.SignatureOf(ctx, data)
}

// SignatureOf implements crypto.SignatureFactory. It looks up the algorithm
// and returns the signature of the data if appropriate, otherwise an error.
func (f SignatureFactory) SignatureOf(ctx serde.Context, data []byte) (crypto.Signature, error) {
	algo, err := algorithmOf(ctx, data)
	if err != nil {
		return nil, err
	}

	factory := f.factories[algo.GetName()]
	if factory == nil {
		return nil, xerrors.Errorf("unknown algorithm '%s'", algo.GetName())
	}

	return factory.SignatureOf(ctx, data)
}
