// Package types implements the serializable messages of the gate protocol.
//
// The messages have been implemented in this isolated package so that it does
// not create cycle imports when importing the serde formats.
package types

import (
	"go.dedis.ch/agora/mino"
	"go.dedis.ch/agora/serde"
	"go.dedis.ch/agora/serde/registry"
	"go.dedis.ch/kyber/v3"
	"golang.org/x/xerrors"
)

var msgFormats = registry.NewSimpleRegistry()

// RegisterMessageFormat registers the engine for the provided format.
func RegisterMessageFormat(f serde.Format, e serde.FormatEngine) {
	msgFormats.Register(f, e)
}

// Policy is the access policy a sealed record is bound to. The gatekeepers
// release the record only to a requester that holds a purchase receipt for
// the product listed under the content identifier, or to its seller.
type Policy struct {
	contentID string
}

// NewPolicy creates a policy bound to the content identifier.
func NewPolicy(contentID string) Policy {
	return Policy{contentID: contentID}
}

// GetContentID returns the content identifier the policy is bound to.
func (p Policy) GetContentID() string {
	return p.contentID
}

// Sealed is an encrypted record that only the cohort can release. The data
// key is encapsulated in the KEM point and the payload is sealed with an
// authenticated cipher binding the policy, so that the ciphertext cannot be
// rebound to a weaker policy without breaking the authentication tag.
//
// - implements serde.Message
type Sealed struct {
	kem    kyber.Point
	nonce  []byte
	box    []byte
	digest []byte
	policy Policy
}

// NewSealed creates a sealed record from its parts.
func NewSealed(kem kyber.Point, nonce, box, digest []byte, policy Policy) Sealed {
	return Sealed{
		kem:    kem,
		nonce:  nonce,
		box:    box,
		digest: digest,
		policy: policy,
	}
}

// GetKEM returns the key encapsulation point.
func (s Sealed) GetKEM() kyber.Point {
	return s.kem
}

// GetNonce returns the cipher nonce.
func (s Sealed) GetNonce() []byte {
	return append([]byte{}, s.nonce...)
}

// GetBox returns the authenticated ciphertext.
func (s Sealed) GetBox() []byte {
	return append([]byte{}, s.box...)
}

// GetDigest returns the digest of the plaintext, to let a client verify the
// release.
func (s Sealed) GetDigest() []byte {
	return append([]byte{}, s.digest...)
}

// GetPolicy returns the access policy of the record.
func (s Sealed) GetPolicy() Policy {
	return s.policy
}

// Serialize implements serde.Message.
func (s Sealed) Serialize(ctx serde.Context) ([]byte, error) {
	return msgFormats.Get(ctx.GetFormat()).Encode(ctx, s)
}

// Deal is the message the dealer sends to every gatekeeper of the cohort. It
// carries the private share of the member and the public commitments of the
// sharing polynomial.
//
// - implements serde.Message
type Deal struct {
	index     int
	threshold int
	share     kyber.Scalar
	commits   []kyber.Point
	members   []mino.Address
}

// NewDeal creates a deal for the member at the given index.
func NewDeal(index, threshold int, share kyber.Scalar,
	commits []kyber.Point, members []mino.Address) Deal {

	return Deal{
		index:     index,
		threshold: threshold,
		share:     share,
		commits:   commits,
		members:   members,
	}
}

// GetIndex returns the index of the member in the cohort.
func (d Deal) GetIndex() int {
	return d.index
}

// GetThreshold returns the number of partials required for a release.
func (d Deal) GetThreshold() int {
	return d.threshold
}

// GetShare returns the private share of the member.
func (d Deal) GetShare() kyber.Scalar {
	return d.share
}

// GetCommits returns the public commitments of the sharing polynomial. The
// first commitment is the cohort public key.
func (d Deal) GetCommits() []kyber.Point {
	return append([]kyber.Point{}, d.commits...)
}

// GetMembers returns the addresses of the cohort, consistent with the share
// indices.
func (d Deal) GetMembers() []mino.Address {
	return append([]mino.Address{}, d.members...)
}

// Serialize implements serde.Message.
func (d Deal) Serialize(ctx serde.Context) ([]byte, error) {
	return msgFormats.Get(ctx.GetFormat()).Encode(ctx, d)
}

// DealAck is the message a gatekeeper sends back to the dealer after it has
// stored its share.
//
// - implements serde.Message
type DealAck struct {
	index int
}

// NewDealAck creates an acknowledgement from the member at the given index.
func NewDealAck(index int) DealAck {
	return DealAck{index: index}
}

// GetIndex returns the index of the acknowledging member.
func (a DealAck) GetIndex() int {
	return a.index
}

// Serialize implements serde.Message.
func (a DealAck) Serialize(ctx serde.Context) ([]byte, error) {
	return msgFormats.Get(ctx.GetFormat()).Encode(ctx, a)
}

// UnsealRequest asks a gatekeeper for its partial release of a sealed
// record. The token is the session assertion of the requester.
//
// - implements serde.Message
type UnsealRequest struct {
	sealed Sealed
	token  string
}

// NewUnsealRequest creates a request for the sealed record.
func NewUnsealRequest(sealed Sealed, token string) UnsealRequest {
	return UnsealRequest{sealed: sealed, token: token}
}

// GetSealed returns the sealed record to release.
func (req UnsealRequest) GetSealed() Sealed {
	return req.sealed
}

// GetToken returns the session assertion of the requester.
func (req UnsealRequest) GetToken() string {
	return req.token
}

// Serialize implements serde.Message.
func (req UnsealRequest) Serialize(ctx serde.Context) ([]byte, error) {
	return msgFormats.Get(ctx.GetFormat()).Encode(ctx, req)
}

// UnsealReply is the answer of a gatekeeper to an unseal request. The partial
// is set only when the predicate allowed the requester, so that a denied
// requester learns no key material. A reply with neither a partial nor a
// denial means the member could not evaluate the predicate.
//
// - implements serde.Message
type UnsealReply struct {
	index   int
	partial kyber.Point
	denied  bool
	reason  string
}

// NewUnsealReply creates a reply carrying the partial of the member.
func NewUnsealReply(index int, partial kyber.Point) UnsealReply {
	return UnsealReply{index: index, partial: partial}
}

// NewUnsealDenial creates a reply refusing the release.
func NewUnsealDenial(index int, reason string) UnsealReply {
	return UnsealReply{index: index, denied: true, reason: reason}
}

// NewUnsealFailure creates a reply for a member that could not evaluate the
// predicate.
func NewUnsealFailure(index int, reason string) UnsealReply {
	return UnsealReply{index: index, reason: reason}
}

// GetIndex returns the index of the member.
func (r UnsealReply) GetIndex() int {
	return r.index
}

// GetPartial returns the partial release, or nil when refused.
func (r UnsealReply) GetPartial() kyber.Point {
	return r.partial
}

// IsDenied returns true when the predicate refused the requester.
func (r UnsealReply) IsDenied() bool {
	return r.denied
}

// GetReason returns the reason of a denial or of a failure.
func (r UnsealReply) GetReason() string {
	return r.reason
}

// Serialize implements serde.Message.
func (r UnsealReply) Serialize(ctx serde.Context) ([]byte, error) {
	return msgFormats.Get(ctx.GetFormat()).Encode(ctx, r)
}

// AddrKey is the key of the address factory in the serde context.
type AddrKey struct{}

// addrFac wraps a mino.AddressFactory so it can travel in the serde context,
// which only carries serde factories.
//
// - implements serde.Factory
type addrFac struct {
	mino.AddressFactory
}

// Deserialize implements serde.Factory. Addresses are deserialized with
// FromText, never through this function.
func (addrFac) Deserialize(serde.Context, []byte) (serde.Message, error) {
	return nil, xerrors.New("use FromText to deserialize addresses")
}

// MessageFactory is a factory for the messages of the gate protocol.
//
// - implements serde.Factory
type MessageFactory struct {
	addrFactory mino.AddressFactory
}

// NewMessageFactory creates a message factory using the address factory of
// the transport.
func NewMessageFactory(f mino.AddressFactory) MessageFactory {
	return MessageFactory{addrFactory: f}
}

// Deserialize implements serde.Factory.
func (f MessageFactory) Deserialize(ctx serde.Context, data []byte) (serde.Message, error) {
	ctx = serde.WithFactory(ctx, AddrKey{}, addrFac{f.addrFactory})

	return msgFormats.Get(ctx.GetFormat()).Decode(ctx, data)
}
