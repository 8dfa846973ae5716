package gate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/agora/crypto/ed25519"
)

func TestSession_RoundTrip(t *testing.T) {
	signer := ed25519.NewSigner()

	token, err := NewSession(signer, "bafy-content")
	require.NoError(t, err)

	identity, err := VerifySession(token, "bafy-content")
	require.NoError(t, err)
	require.True(t, signer.GetPublicKey().Equal(identity))
}

func TestSession_WrongContent(t *testing.T) {
	signer := ed25519.NewSigner()

	token, err := NewSession(signer, "bafy-content")
	require.NoError(t, err)

	_, err = VerifySession(token, "bafy-other")
	require.Error(t, err)
	require.Contains(t, err.Error(), "bound to another content")
}

func TestSession_Tampered(t *testing.T) {
	signer := ed25519.NewSigner()

	token, err := NewSession(signer, "bafy-content")
	require.NoError(t, err)

	// Corrupt the signature part of the token.
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	_, err = VerifySession(tampered, "bafy-content")
	require.Error(t, err)
}

func TestSession_ForgedSubject(t *testing.T) {
	honest := ed25519.NewSigner()
	forger := ed25519.NewSigner()

	// A token minted by the forger for its own key must not verify as the
	// honest identity, and a token cannot claim a subject the signer does
	// not control.
	token, err := NewSession(forger, "bafy-content")
	require.NoError(t, err)

	identity, err := VerifySession(token, "bafy-content")
	require.NoError(t, err)
	require.False(t, honest.GetPublicKey().Equal(identity))
}

func TestSession_Garbage(t *testing.T) {
	_, err := VerifySession("not-a-token", "bafy-content")
	require.Error(t, err)
}
