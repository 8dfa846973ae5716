// Package shamir implements the gate protocol with a threshold cohort of
// gatekeepers holding Shamir shares of the cohort key.
//
// The shares are dealt by a trusted dealer during the setup. A sealed record
// encapsulates its data key to the cohort public key, so that no single
// gatekeeper can release it: a release requires the partials of a threshold
// of members, and each member answers with its partial only after it has
// verified the session assertion and evaluated the release predicate against
// the ledger on its own.
package shamir

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.dedis.ch/agora"
	"go.dedis.ch/agora/crypto"
	"go.dedis.ch/agora/gate"
	"go.dedis.ch/agora/gate/types"
	"go.dedis.ch/agora/internal/tracing"
	"go.dedis.ch/agora/mino"
	"go.dedis.ch/agora/serde"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/share"
	"go.dedis.ch/kyber/v3/suites"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/xerrors"
)

var suite = suites.MustFind("Ed25519")

const (
	setupTimeout  = time.Minute
	unsealTimeout = time.Second * 10

	// protocolNameSetup denotes the value of the protocol span tag
	// associated with the `gate-setup` protocol.
	protocolNameSetup = "gate-setup"
	// protocolNameUnseal denotes the value of the protocol span tag
	// associated with the `gate-unseal` protocol.
	protocolNameUnseal = "gate-unseal"
)

// Shamir allows one to initialize a new gate protocol.
//
// - implements gate.Gatekeeper
type Shamir struct {
	mino    mino.Mino
	oracle  gate.PurchaseOracle
	factory serde.Factory
}

// NewShamir returns a new gatekeeper. The oracle evaluates the release
// predicate against the live ledger of this node.
func NewShamir(m mino.Mino, oracle gate.PurchaseOracle) *Shamir {
	return &Shamir{
		mino:    m,
		oracle:  oracle,
		factory: types.NewMessageFactory(m.GetAddressFactory()),
	}
}

// Listen implements gate.Gatekeeper. It must be called on each node that
// participates in the cohort. It creates the RPC.
func (s *Shamir) Listen() (gate.Actor, error) {
	h := newHandler(s.mino.GetAddress(), s.oracle)

	a := &Actor{
		rpc:     mino.MustCreateRPC(s.mino, "gate", h, s.factory),
		state:   h.state,
		factory: s.factory,
	}

	return a, nil
}

// Actor performs the gate operations of a node once it listens.
//
// - implements gate.Actor
type Actor struct {
	rpc     mino.RPC
	state   *state
	factory serde.Factory
}

// Setup implements gate.Actor. It deals a share of a fresh cohort key to
// every member, including this node, and waits for all of them to
// acknowledge. The sharing polynomial is dropped when the function returns,
// so the dealer keeps no more power than any other member.
func (a *Actor) Setup(cohort crypto.CollectiveAuthority, threshold int) (kyber.Point, error) {
	if a.state.Done() {
		return nil, xerrors.New("cohort is already set up")
	}

	if threshold < 1 || threshold > cohort.Len() {
		return nil, xerrors.Errorf("invalid threshold %d for %d members",
			threshold, cohort.Len())
	}

	ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
	defer cancel()
	ctx = context.WithValue(ctx, tracing.ProtocolKey, protocolNameSetup)

	sender, receiver, err := a.rpc.Stream(ctx, cohort)
	if err != nil {
		return nil, xerrors.Errorf("failed to stream: %v", err)
	}

	addrs := make([]mino.Address, 0, cohort.Len())

	iter := cohort.AddressIterator()
	for iter.HasNext() {
		addrs = append(addrs, iter.GetNext())
	}

	priPoly := share.NewPriPoly(suite, threshold, nil, suite.RandomStream())
	pubPoly := priPoly.Commit(suite.Point().Base())

	_, commits := pubPoly.Info()
	shares := priPoly.Shares(len(addrs))

	for i, addr := range addrs {
		deal := types.NewDeal(i, threshold, shares[i].V, commits, addrs)

		err = <-sender.Send(deal, addr)
		if err != nil {
			return nil, xerrors.Errorf("failed to send deal: %v", err)
		}
	}

	acked := make(map[int]struct{})

	for len(acked) < len(addrs) {
		from, msg, err := receiver.Recv(ctx)
		if err != nil {
			return nil, xerrors.Errorf("got an error from '%v' while "+
				"receiving: %v", from, err)
		}

		ack, ok := msg.(types.DealAck)
		if !ok {
			return nil, xerrors.Errorf("expected an acknowledgement, got '%T'", msg)
		}

		agora.Logger.Debug().
			Stringer("from", from).
			Int("index", ack.GetIndex()).
			Msg("share acknowledged")

		acked[ack.GetIndex()] = struct{}{}
	}

	return pubPoly.Commit(), nil
}

// GetPublicKey implements gate.Actor.
func (a *Actor) GetPublicKey() (kyber.Point, error) {
	if !a.state.Done() {
		return nil, xerrors.New("cohort is not set up")
	}

	return a.state.GetPublicKey(), nil
}

// Seal implements gate.Actor. The data key never exists outside of this
// function: it is derived from a fresh encapsulation to the cohort public
// key, used to seal the payload and discarded. The policy travels as the
// associated data of the cipher, so a record cannot be rebound to a weaker
// policy.
func (a *Actor) Seal(plaintext []byte, policy types.Policy) (types.Sealed, error) {
	if !a.state.Done() {
		return types.Sealed{}, xerrors.New("cohort is not set up")
	}

	r := suite.Scalar().Pick(suite.RandomStream())
	kem := suite.Point().Mul(r, nil)
	shared := suite.Point().Mul(r, a.state.GetPublicKey())

	dek, err := deriveKey(shared)
	if err != nil {
		return types.Sealed{}, xerrors.Errorf("couldn't derive key: %v", err)
	}

	aead, err := chacha20poly1305.New(dek)
	if err != nil {
		return types.Sealed{}, xerrors.Errorf("couldn't make cipher: %v", err)
	}

	nonce := make([]byte, aead.NonceSize())

	_, err = rand.Read(nonce)
	if err != nil {
		return types.Sealed{}, xerrors.Errorf("couldn't make nonce: %v", err)
	}

	box := aead.Seal(nil, nonce, plaintext, []byte(policy.GetContentID()))
	digest := sha256.Sum256(plaintext)

	return types.NewSealed(kem, nonce, box, digest[:], policy), nil
}

// Unseal implements gate.Actor. It asks every member for its partial and
// recovers the data key from a threshold of answers. A member that refuses
// answers with a denial and no key material, so a requester that fails the
// predicate on a threshold of members learns nothing.
func (a *Actor) Unseal(sealed types.Sealed, token string) ([]byte, error) {
	if !a.state.Done() {
		return nil, xerrors.Errorf("cohort is not set up: %w", gate.ErrUnavailable)
	}

	members := a.state.GetMembers()
	threshold := a.state.GetThreshold()

	ctx, cancel := context.WithTimeout(context.Background(), unsealTimeout)
	defer cancel()
	ctx = context.WithValue(ctx, tracing.ProtocolKey, protocolNameUnseal)

	sender, receiver, err := a.rpc.Stream(ctx, mino.NewAddresses(members...))
	if err != nil {
		promUnseals.WithLabelValues(outcomeUnavailable).Inc()

		return nil, xerrors.Errorf("failed to stream: %v: %w", err, gate.ErrUnavailable)
	}

	req := types.NewUnsealRequest(sealed, token)

	err = <-sender.Send(req, members...)
	if err != nil {
		promUnseals.WithLabelValues(outcomeUnavailable).Inc()

		return nil, xerrors.Errorf("failed to send request: %v: %w", err,
			gate.ErrUnavailable)
	}

	pubShares := make([]*share.PubShare, 0, threshold)
	denials := 0

	for answered := 0; answered < len(members); answered++ {
		if len(pubShares) >= threshold {
			break
		}

		from, msg, err := receiver.Recv(ctx)
		if err != nil {
			agora.Logger.Warn().Err(err).Msg("failed to receive a reply")
			break
		}

		reply, ok := msg.(types.UnsealReply)
		if !ok {
			return nil, xerrors.Errorf("expected a reply from '%v', got '%T'",
				from, msg)
		}

		switch {
		case reply.GetPartial() != nil:
			pubShares = append(pubShares, &share.PubShare{
				I: reply.GetIndex(),
				V: reply.GetPartial(),
			})
		case reply.IsDenied():
			agora.Logger.Info().
				Stringer("from", from).
				Str("reason", reply.GetReason()).
				Msg("release denied")

			denials++
		default:
			agora.Logger.Warn().
				Stringer("from", from).
				Str("reason", reply.GetReason()).
				Msg("member could not answer")
		}
	}

	if len(pubShares) < threshold {
		if denials > 0 {
			promUnseals.WithLabelValues(outcomeDenied).Inc()

			return nil, xerrors.Errorf("rejected by %d members: %w", denials,
				gate.ErrAccessDenied)
		}

		promUnseals.WithLabelValues(outcomeUnavailable).Inc()

		return nil, xerrors.Errorf("got %d partials out of %d required: %w",
			len(pubShares), threshold, gate.ErrUnavailable)
	}

	shared, err := share.RecoverCommit(suite, pubShares, threshold, len(members))
	if err != nil {
		return nil, xerrors.Errorf("couldn't recover the secret: %v", err)
	}

	dek, err := deriveKey(shared)
	if err != nil {
		return nil, xerrors.Errorf("couldn't derive key: %v", err)
	}

	aead, err := chacha20poly1305.New(dek)
	if err != nil {
		return nil, xerrors.Errorf("couldn't make cipher: %v", err)
	}

	plaintext, err := aead.Open(nil, sealed.GetNonce(), sealed.GetBox(),
		[]byte(sealed.GetPolicy().GetContentID()))
	if err != nil {
		return nil, xerrors.Errorf("couldn't open the box: %v", err)
	}

	digest := sha256.Sum256(plaintext)
	if !bytes.Equal(digest[:], sealed.GetDigest()) {
		return nil, xerrors.New("digest mismatch")
	}

	promUnseals.WithLabelValues(outcomeAllowed).Inc()

	return plaintext, nil
}

// deriveKey maps the shared point to a symmetric key.
func deriveKey(shared kyber.Point) ([]byte, error) {
	buffer, err := shared.MarshalBinary()
	if err != nil {
		return nil, xerrors.Errorf("couldn't marshal point: %v", err)
	}

	dek := sha256.Sum256(buffer)

	return dek[:], nil
}

const (
	outcomeAllowed     = "allowed"
	outcomeDenied      = "denied"
	outcomeUnavailable = "unavailable"
)

var promUnseals = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "agora_gate_unseals_total",
	Help: "total number of unseal requests by outcome",
}, []string{"outcome"})

func init() {
	agora.PromCollectors = append(agora.PromCollectors, promUnseals)
}
