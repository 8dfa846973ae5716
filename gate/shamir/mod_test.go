package shamir

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/agora/core/access"
	"go.dedis.ch/agora/crypto"
	"go.dedis.ch/agora/crypto/ed25519"
	"go.dedis.ch/agora/gate"
	"go.dedis.ch/agora/gate/types"
	"go.dedis.ch/agora/mino"
	"go.dedis.ch/agora/mino/minoch"
	"golang.org/x/xerrors"

	_ "go.dedis.ch/agora/crypto/ed25519/json"
	_ "go.dedis.ch/agora/gate/types/json"
)

func TestShamir_Listen(t *testing.T) {
	manager := minoch.NewManager()
	m := minoch.MustCreate(manager, "single")

	actor, err := NewShamir(m, fakeOracle{}).Listen()
	require.NoError(t, err)
	require.NotNil(t, actor)

	_, err = actor.GetPublicKey()
	require.EqualError(t, err, "cohort is not set up")
}

func TestActor_Setup(t *testing.T) {
	actors, _ := makeCohort(t, 3, 2, fakeOracle{})

	pubkey, err := actors[0].GetPublicKey()
	require.NoError(t, err)
	require.NotNil(t, pubkey)

	// Every member must have received the same cohort key.
	for _, actor := range actors[1:] {
		other, err := actor.GetPublicKey()
		require.NoError(t, err)
		require.True(t, pubkey.Equal(other))
	}

	_, err = actors[0].Setup(nil, 2)
	require.EqualError(t, err, "cohort is already set up")
}

func TestActor_Setup_BadThreshold(t *testing.T) {
	manager := minoch.NewManager()
	m := minoch.MustCreate(manager, "node")

	actor, err := NewShamir(m, fakeOracle{}).Listen()
	require.NoError(t, err)

	cohort := types.NewCohort(
		[]mino.Address{m.GetAddress()},
		[]crypto.PublicKey{ed25519.NewSigner().GetPublicKey()},
	)

	_, err = actor.Setup(cohort, 4)
	require.EqualError(t, err, "invalid threshold 4 for 1 members")
}

func TestActor_SealUnseal(t *testing.T) {
	buyer := ed25519.NewSigner()

	oracle := fakeOracle{purchased: identityText(t, buyer.GetPublicKey())}

	actors, _ := makeCohort(t, 3, 2, oracle)

	policy := types.NewPolicy("bafy-content")
	plaintext := []byte("the asset payload")

	sealed, err := actors[0].Seal(plaintext, policy)
	require.NoError(t, err)
	require.NotEqual(t, plaintext, sealed.GetBox())

	token, err := gate.NewSession(buyer, "bafy-content")
	require.NoError(t, err)

	// Any member can orchestrate the release.
	for _, actor := range actors {
		released, err := actor.Unseal(sealed, token)
		require.NoError(t, err)
		require.Equal(t, plaintext, released)
	}
}

func TestActor_Unseal_Seller(t *testing.T) {
	seller := ed25519.NewSigner()

	oracle := fakeOracle{seller: identityText(t, seller.GetPublicKey())}

	actors, _ := makeCohort(t, 3, 2, oracle)

	sealed, err := actors[0].Seal([]byte("preview"), types.NewPolicy("bafy-owned"))
	require.NoError(t, err)

	token, err := gate.NewSession(seller, "bafy-owned")
	require.NoError(t, err)

	released, err := actors[1].Unseal(sealed, token)
	require.NoError(t, err)
	require.Equal(t, []byte("preview"), released)
}

func TestActor_Unseal_Denied(t *testing.T) {
	intruder := ed25519.NewSigner()

	actors, _ := makeCohort(t, 3, 2, fakeOracle{})

	sealed, err := actors[0].Seal([]byte("secret"), types.NewPolicy("bafy-content"))
	require.NoError(t, err)

	token, err := gate.NewSession(intruder, "bafy-content")
	require.NoError(t, err)

	_, err = actors[0].Unseal(sealed, token)
	require.ErrorIs(t, err, gate.ErrAccessDenied)
}

func TestActor_Unseal_WrongContent(t *testing.T) {
	buyer := ed25519.NewSigner()

	oracle := fakeOracle{purchased: identityText(t, buyer.GetPublicKey())}

	actors, _ := makeCohort(t, 3, 2, oracle)

	sealed, err := actors[0].Seal([]byte("secret"), types.NewPolicy("bafy-content"))
	require.NoError(t, err)

	// A session bound to another content must not open this record.
	token, err := gate.NewSession(buyer, "bafy-other")
	require.NoError(t, err)

	_, err = actors[0].Unseal(sealed, token)
	require.ErrorIs(t, err, gate.ErrAccessDenied)
}

func TestActor_Unseal_Unavailable(t *testing.T) {
	buyer := ed25519.NewSigner()

	actors, _ := makeCohort(t, 3, 3, fakeOracle{err: xerrors.New("ledger down")})

	sealed, err := actors[0].Seal([]byte("secret"), types.NewPolicy("bafy-content"))
	require.NoError(t, err)

	token, err := gate.NewSession(buyer, "bafy-content")
	require.NoError(t, err)

	_, err = actors[0].Unseal(sealed, token)
	require.ErrorIs(t, err, gate.ErrUnavailable)
}

func TestActor_Unseal_NotSetup(t *testing.T) {
	manager := minoch.NewManager()
	m := minoch.MustCreate(manager, "node")

	actor, err := NewShamir(m, fakeOracle{}).Listen()
	require.NoError(t, err)

	_, err = actor.Unseal(types.Sealed{}, "token")
	require.ErrorIs(t, err, gate.ErrUnavailable)
}

func TestActor_Unseal_Threshold(t *testing.T) {
	buyer := ed25519.NewSigner()

	// Two members know the buyer, the third one denies. The threshold of
	// two must still be reached.
	allowing := fakeOracle{purchased: identityText(t, buyer.GetPublicKey())}

	manager := minoch.NewManager()

	minos := []mino.Mino{
		minoch.MustCreate(manager, "node-0"),
		minoch.MustCreate(manager, "node-1"),
		minoch.MustCreate(manager, "node-2"),
	}

	oracles := []gate.PurchaseOracle{allowing, allowing, fakeOracle{}}

	actors := make([]gate.Actor, len(minos))
	addrs := make([]mino.Address, len(minos))
	pubkeys := make([]crypto.PublicKey, len(minos))

	for i, m := range minos {
		actor, err := NewShamir(m, oracles[i]).Listen()
		require.NoError(t, err)

		actors[i] = actor
		addrs[i] = m.GetAddress()
		pubkeys[i] = ed25519.NewSigner().GetPublicKey()
	}

	_, err := actors[0].Setup(types.NewCohort(addrs, pubkeys), 2)
	require.NoError(t, err)

	sealed, err := actors[0].Seal([]byte("secret"), types.NewPolicy("bafy-content"))
	require.NoError(t, err)

	token, err := gate.NewSession(buyer, "bafy-content")
	require.NoError(t, err)

	released, err := actors[0].Unseal(sealed, token)
	require.NoError(t, err)
	require.Equal(t, []byte("secret"), released)
}

// -----------------------------------------------------------------------------
// Utility functions

func makeCohort(t *testing.T, n, threshold int,
	oracle gate.PurchaseOracle) ([]gate.Actor, types.Cohort) {

	t.Helper()

	manager := minoch.NewManager()

	actors := make([]gate.Actor, n)
	addrs := make([]mino.Address, n)
	pubkeys := make([]crypto.PublicKey, n)

	for i := 0; i < n; i++ {
		m := minoch.MustCreate(manager, "node-"+string(rune('a'+i)))

		actor, err := NewShamir(m, oracle).Listen()
		require.NoError(t, err)

		actors[i] = actor
		addrs[i] = m.GetAddress()
		pubkeys[i] = ed25519.NewSigner().GetPublicKey()
	}

	cohort := types.NewCohort(addrs, pubkeys)

	_, err := actors[0].Setup(cohort, threshold)
	require.NoError(t, err)

	return actors, cohort
}

func identityText(t *testing.T, pubkey crypto.PublicKey) string {
	t.Helper()

	text, err := pubkey.(ed25519.PublicKey).MarshalText()
	require.NoError(t, err)

	return string(text)
}

// fakeOracle implements gate.PurchaseOracle for the tests. It recognizes a
// single buyer and a single seller by the text form of their identity.
type fakeOracle struct {
	purchased string
	seller    string
	err       error
}

func (o fakeOracle) HasPurchased(account access.Identity, contentID string) (bool, error) {
	if o.err != nil {
		return false, o.err
	}

	text, err := account.MarshalText()
	if err != nil {
		return false, err
	}

	return string(text) == o.purchased, nil
}

func (o fakeOracle) IsSeller(account access.Identity, contentID string) (bool, error) {
	if o.err != nil {
		return false, o.err
	}

	text, err := account.MarshalText()
	if err != nil {
		return false, err
	}

	return string(text) == o.seller, nil
}
