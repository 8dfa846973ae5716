// Package json implements the JSON format engine for the gate messages.
package json

import (
	"go.dedis.ch/agora/gate/types"
	"go.dedis.ch/agora/mino"
	"go.dedis.ch/agora/serde"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/suites"
	"golang.org/x/xerrors"
)

func init() {
	types.RegisterMessageFormat(serde.FormatJSON, newMsgFormat())
}

type PublicKey []byte

type Address []byte

type Sealed struct {
	KEM       PublicKey
	Nonce     []byte
	Box       []byte
	Digest    []byte
	ContentID string
}

type Deal struct {
	Index     int
	Threshold int
	Share     []byte
	Commits   []PublicKey
	Members   []Address
}

type DealAck struct {
	Index int
}

type UnsealRequest struct {
	Sealed Sealed
	Token  string
}

type UnsealReply struct {
	Index   int
	Partial PublicKey `json:",omitempty"`
	Denied  bool
	Reason  string
}

type Message struct {
	Sealed        *Sealed        `json:",omitempty"`
	Deal          *Deal          `json:",omitempty"`
	DealAck       *DealAck       `json:",omitempty"`
	UnsealRequest *UnsealRequest `json:",omitempty"`
	UnsealReply   *UnsealReply   `json:",omitempty"`
}

// msgFormat is the engine to encode and decode gate messages in JSON format.
//
// - implements serde.FormatEngine
type msgFormat struct {
	suite suites.Suite
}

func newMsgFormat() msgFormat {
	return msgFormat{
		suite: suites.MustFind("Ed25519"),
	}
}

// Encode implements serde.FormatEngine. It returns the serialized data for
// the message in JSON format.
func (f msgFormat) Encode(ctx serde.Context, msg serde.Message) ([]byte, error) {
	var m Message
	var err error

	switch in := msg.(type) {
	case types.Sealed:
		var sealed Sealed
		sealed, err = f.encodeSealed(in)
		m = Message{Sealed: &sealed}
	case types.Deal:
		m, err = f.encodeDeal(in)
	case types.DealAck:
		m = Message{DealAck: &DealAck{Index: in.GetIndex()}}
	case types.UnsealRequest:
		var sealed Sealed
		sealed, err = f.encodeSealed(in.GetSealed())
		m = Message{UnsealRequest: &UnsealRequest{
			Sealed: sealed,
			Token:  in.GetToken(),
		}}
	case types.UnsealReply:
		m, err = f.encodeUnsealReply(in)
	default:
		return nil, xerrors.Errorf("unsupported message of type '%T'", msg)
	}

	if err != nil {
		return nil, xerrors.Errorf("failed to encode message: %v", err)
	}

	data, err := ctx.Marshal(m)
	if err != nil {
		return nil, xerrors.Errorf("couldn't marshal: %v", err)
	}

	return data, nil
}

// Decode implements serde.FormatEngine. It populates the message from the
// JSON data if appropriate, otherwise it returns an error.
func (f msgFormat) Decode(ctx serde.Context, data []byte) (serde.Message, error) {
	m := Message{}
	err := ctx.Unmarshal(data, &m)
	if err != nil {
		return nil, xerrors.Errorf("couldn't deserialize message: %v", err)
	}

	if m.Sealed != nil {
		return f.decodeSealed(*m.Sealed)
	}

	if m.Deal != nil {
		return f.decodeDeal(ctx, *m.Deal)
	}

	if m.DealAck != nil {
		return types.NewDealAck(m.DealAck.Index), nil
	}

	if m.UnsealRequest != nil {
		sealed, err := f.decodeSealed(m.UnsealRequest.Sealed)
		if err != nil {
			return nil, xerrors.Errorf("couldn't decode sealed: %v", err)
		}

		return types.NewUnsealRequest(sealed, m.UnsealRequest.Token), nil
	}

	if m.UnsealReply != nil {
		return f.decodeUnsealReply(*m.UnsealReply)
	}

	return nil, xerrors.New("message is empty")
}

func (f msgFormat) encodeSealed(sealed types.Sealed) (Sealed, error) {
	kem, err := sealed.GetKEM().MarshalBinary()
	if err != nil {
		return Sealed{}, xerrors.Errorf("couldn't marshal kem: %v", err)
	}

	m := Sealed{
		KEM:       kem,
		Nonce:     sealed.GetNonce(),
		Box:       sealed.GetBox(),
		Digest:    sealed.GetDigest(),
		ContentID: sealed.GetPolicy().GetContentID(),
	}

	return m, nil
}

func (f msgFormat) decodeSealed(m Sealed) (types.Sealed, error) {
	kem := f.suite.Point()

	err := kem.UnmarshalBinary(m.KEM)
	if err != nil {
		return types.Sealed{}, xerrors.Errorf("couldn't unmarshal kem: %v", err)
	}

	policy := types.NewPolicy(m.ContentID)

	return types.NewSealed(kem, m.Nonce, m.Box, m.Digest, policy), nil
}

func (f msgFormat) encodeDeal(deal types.Deal) (Message, error) {
	share, err := deal.GetShare().MarshalBinary()
	if err != nil {
		return Message{}, xerrors.Errorf("couldn't marshal share: %v", err)
	}

	commits := make([]PublicKey, len(deal.GetCommits()))
	for i, commit := range deal.GetCommits() {
		commits[i], err = commit.MarshalBinary()
		if err != nil {
			return Message{}, xerrors.Errorf("couldn't marshal commit: %v", err)
		}
	}

	members := make([]Address, len(deal.GetMembers()))
	for i, member := range deal.GetMembers() {
		members[i], err = member.MarshalText()
		if err != nil {
			return Message{}, xerrors.Errorf("couldn't marshal member: %v", err)
		}
	}

	d := Deal{
		Index:     deal.GetIndex(),
		Threshold: deal.GetThreshold(),
		Share:     share,
		Commits:   commits,
		Members:   members,
	}

	return Message{Deal: &d}, nil
}

func (f msgFormat) decodeDeal(ctx serde.Context, m Deal) (serde.Message, error) {
	factory, ok := ctx.GetFactory(types.AddrKey{}).(mino.AddressFactory)
	if !ok {
		return nil, xerrors.Errorf("invalid address factory of type '%T'",
			ctx.GetFactory(types.AddrKey{}))
	}
	share := f.suite.Scalar()

	err := share.UnmarshalBinary(m.Share)
	if err != nil {
		return nil, xerrors.Errorf("couldn't unmarshal share: %v", err)
	}

	commits := make([]kyber.Point, len(m.Commits))
	for i, data := range m.Commits {
		commits[i] = f.suite.Point()

		err = commits[i].UnmarshalBinary(data)
		if err != nil {
			return nil, xerrors.Errorf("couldn't unmarshal commit: %v", err)
		}
	}

	members := make([]mino.Address, len(m.Members))
	for i, member := range m.Members {
		members[i] = factory.FromText(member)
	}

	return types.NewDeal(m.Index, m.Threshold, share, commits, members), nil
}

func (f msgFormat) encodeUnsealReply(reply types.UnsealReply) (Message, error) {
	m := UnsealReply{
		Index:  reply.GetIndex(),
		Denied: reply.IsDenied(),
		Reason: reply.GetReason(),
	}

	if reply.GetPartial() != nil {
		partial, err := reply.GetPartial().MarshalBinary()
		if err != nil {
			return Message{}, xerrors.Errorf("couldn't marshal partial: %v", err)
		}

		m.Partial = partial
	}

	return Message{UnsealReply: &m}, nil
}

func (f msgFormat) decodeUnsealReply(m UnsealReply) (serde.Message, error) {
	if len(m.Partial) == 0 {
		if m.Denied {
			return types.NewUnsealDenial(m.Index, m.Reason), nil
		}

		return types.NewUnsealFailure(m.Index, m.Reason), nil
	}

	partial := f.suite.Point()

	err := partial.UnmarshalBinary(m.Partial)
	if err != nil {
		return nil, xerrors.Errorf("couldn't unmarshal partial: %v", err)
	}

	return types.NewUnsealReply(m.Index, partial), nil
}
