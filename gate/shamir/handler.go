package shamir

import (
	"context"
	"errors"
	"io"
	"sync"

	"go.dedis.ch/agora"
	"go.dedis.ch/agora/gate"
	"go.dedis.ch/agora/gate/types"
	"go.dedis.ch/agora/mino"
	"go.dedis.ch/kyber/v3"
	"golang.org/x/xerrors"
)

// Handler processes the messages of a gatekeeper. It holds the share of the
// node and answers the unseal requests.
//
// - implements mino.Handler
type Handler struct {
	mino.UnsupportedHandler

	me     mino.Address
	oracle gate.PurchaseOracle
	state  *state
}

func newHandler(me mino.Address, oracle gate.PurchaseOracle) *Handler {
	return &Handler{
		me:     me,
		oracle: oracle,
		state:  newState(),
	}
}

// Stream implements mino.Handler. It answers the deal of the dealer and the
// unseal requests of the requesters until the stream closes.
func (h *Handler) Stream(out mino.Sender, in mino.Receiver) error {
	for {
		from, msg, err := in.Recv(context.Background())
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return xerrors.Errorf("failed to receive: %v", err)
		}

		switch req := msg.(type) {
		case types.Deal:
			err = h.handleDeal(out, from, req)
		case types.UnsealRequest:
			err = h.handleUnseal(out, from, req)
		default:
			err = xerrors.Errorf("unsupported message of type '%T'", msg)
		}

		if err != nil {
			return err
		}
	}
}

func (h *Handler) handleDeal(out mino.Sender, from mino.Address, deal types.Deal) error {
	err := h.state.Fill(deal)
	if err != nil {
		return xerrors.Errorf("failed to store the share: %v", err)
	}

	agora.Logger.Info().
		Stringer("addr", h.me).
		Int("index", deal.GetIndex()).
		Msg("gatekeeper share stored")

	err = <-out.Send(types.NewDealAck(deal.GetIndex()), from)
	if err != nil {
		return xerrors.Errorf("failed to acknowledge: %v", err)
	}

	return nil
}

// handleUnseal evaluates the release predicate for the requester and answers
// with the partial of this node only when it holds. The evaluation reads the
// ledger of this node, so the requester is judged against state at least as
// fresh as the moment the request arrived.
func (h *Handler) handleUnseal(out mino.Sender, from mino.Address, req types.UnsealRequest) error {
	if !h.state.Done() {
		return h.reply(out, from,
			types.NewUnsealFailure(0, "gatekeeper has no share"))
	}

	index := h.state.GetIndex()
	contentID := req.GetSealed().GetPolicy().GetContentID()

	requester, err := gate.VerifySession(req.GetToken(), contentID)
	if err != nil {
		agora.Logger.Info().
			Stringer("addr", h.me).
			Err(err).
			Msg("unseal request with a bad session")

		return h.reply(out, from,
			types.NewUnsealDenial(index, "invalid session"))
	}

	purchased, err := h.oracle.HasPurchased(requester, contentID)
	if err != nil {
		return h.reply(out, from,
			types.NewUnsealFailure(index, "ledger unavailable"))
	}

	if !purchased {
		seller, err := h.oracle.IsSeller(requester, contentID)
		if err != nil {
			return h.reply(out, from,
				types.NewUnsealFailure(index, "ledger unavailable"))
		}

		if !seller {
			agora.Logger.Info().
				Stringer("addr", h.me).
				Stringer("requester", requester).
				Str("content", contentID).
				Msg("release refused")

			return h.reply(out, from,
				types.NewUnsealDenial(index, "no purchase receipt"))
		}
	}

	partial := h.partial(req.GetSealed().GetKEM())

	return h.reply(out, from, types.NewUnsealReply(index, partial))
}

func (h *Handler) reply(out mino.Sender, to mino.Address, reply types.UnsealReply) error {
	err := <-out.Send(reply, to)
	if err != nil {
		return xerrors.Errorf("failed to reply: %v", err)
	}

	return nil
}

// partial computes the contribution of this node to the release, which is
// the encapsulation point raised to the share of the node.
func (h *Handler) partial(kem kyber.Point) kyber.Point {
	return suite.Point().Mul(h.state.GetShare(), kem)
}

// state is the target of the deal of a node. It is shared between the
// handler and the actor.
type state struct {
	sync.Mutex

	done      bool
	index     int
	threshold int
	share     kyber.Scalar
	pubkey    kyber.Point
	members   []mino.Address
}

func newState() *state {
	return &state{}
}

// Fill stores the deal. A node accepts a single deal for its lifetime.
func (s *state) Fill(deal types.Deal) error {
	s.Lock()
	defer s.Unlock()

	if s.done {
		return xerrors.New("share is already set")
	}

	commits := deal.GetCommits()
	if len(commits) == 0 {
		return xerrors.New("deal has no commitment")
	}

	s.done = true
	s.index = deal.GetIndex()
	s.threshold = deal.GetThreshold()
	s.share = deal.GetShare()
	s.pubkey = commits[0]
	s.members = deal.GetMembers()

	return nil
}

func (s *state) Done() bool {
	s.Lock()
	defer s.Unlock()

	return s.done
}

func (s *state) GetIndex() int {
	s.Lock()
	defer s.Unlock()

	return s.index
}

func (s *state) GetThreshold() int {
	s.Lock()
	defer s.Unlock()

	return s.threshold
}

func (s *state) GetShare() kyber.Scalar {
	s.Lock()
	defer s.Unlock()

	return s.share
}

func (s *state) GetPublicKey() kyber.Point {
	s.Lock()
	defer s.Unlock()

	return s.pubkey
}

func (s *state) GetMembers() []mino.Address {
	s.Lock()
	defer s.Unlock()

	return append([]mino.Address{}, s.members...)
}
