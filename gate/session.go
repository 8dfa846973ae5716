package gate

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"
	"go.dedis.ch/agora/crypto"
	"go.dedis.ch/agora/crypto/ed25519"
	"golang.org/x/xerrors"
)

// SessionAlg is the JWT algorithm name of the Schnorr signing method.
const SessionAlg = "AGORA-SCHNORR"

// sessionTTL bounds the lifetime of a session assertion. A short lifetime
// keeps a leaked token useless shortly after it has been minted.
const sessionTTL = time.Minute

func init() {
	jwt.RegisterSigningMethod(SessionAlg, func() jwt.SigningMethod {
		return schnorrMethod{}
	})
}

// SessionClaims is the set of claims of a session assertion. The subject is
// the text form of the requester public key and the token is bound to a
// single content identifier.
type SessionClaims struct {
	jwt.RegisteredClaims

	ContentID string `json:"cid"`
}

// NewSession mints a session assertion for the content identifier, signed by
// the requester.
func NewSession(signer crypto.Signer, contentID string) (string, error) {
	pubkey, ok := signer.GetPublicKey().(ed25519.PublicKey)
	if !ok {
		return "", xerrors.Errorf("invalid signer of type '%T'", signer.GetPublicKey())
	}

	subject, err := pubkey.MarshalText()
	if err != nil {
		return "", xerrors.Errorf("couldn't marshal subject: %v", err)
	}

	now := time.Now()

	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(subject),
			ID:        xid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
		},
		ContentID: contentID,
	}

	token, err := jwt.NewWithClaims(schnorrMethod{}, claims).SignedString(signer)
	if err != nil {
		return "", xerrors.Errorf("couldn't sign session: %v", err)
	}

	return token, nil
}

// VerifySession checks the assertion and returns the identity of the
// requester. The assertion is self-certifying: the subject claim names the
// public key the signature is verified against, so a valid token only proves
// possession of the subject key. The identity is then subject to the release
// predicate.
func VerifySession(token, contentID string) (ed25519.PublicKey, error) {
	claims := &SessionClaims{}

	keyfunc := func(t *jwt.Token) (interface{}, error) {
		c, ok := t.Claims.(*SessionClaims)
		if !ok {
			return nil, xerrors.New("unexpected claims type")
		}

		pubkey, err := ed25519.ParsePublicKey(c.Subject)
		if err != nil {
			return nil, xerrors.Errorf("couldn't parse subject: %v", err)
		}

		return pubkey, nil
	}

	_, err := jwt.ParseWithClaims(token, claims, keyfunc,
		jwt.WithValidMethods([]string{SessionAlg}))
	if err != nil {
		return ed25519.PublicKey{}, xerrors.Errorf("invalid session: %v", err)
	}

	if claims.ContentID != contentID {
		return ed25519.PublicKey{}, xerrors.Errorf(
			"session is bound to another content: %s", claims.ContentID)
	}

	pubkey, err := ed25519.ParsePublicKey(claims.Subject)
	if err != nil {
		return ed25519.PublicKey{}, xerrors.Errorf("couldn't parse subject: %v", err)
	}

	return pubkey, nil
}

// schnorrMethod is the JWT signing method using the Schnorr signature over
// the Ed25519 curve.
//
// - implements jwt.SigningMethod
type schnorrMethod struct{}

// Alg implements jwt.SigningMethod.
func (schnorrMethod) Alg() string {
	return SessionAlg
}

// Sign implements jwt.SigningMethod. The key must be a crypto.Signer.
func (schnorrMethod) Sign(signingString string, key interface{}) ([]byte, error) {
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, xerrors.Errorf("invalid key type '%T'", key)
	}

	sig, err := signer.Sign([]byte(signingString))
	if err != nil {
		return nil, xerrors.Errorf("couldn't sign: %v", err)
	}

	data, err := sig.MarshalBinary()
	if err != nil {
		return nil, xerrors.Errorf("couldn't marshal signature: %v", err)
	}

	return data, nil
}

// Verify implements jwt.SigningMethod. The key must be a crypto.PublicKey.
func (schnorrMethod) Verify(signingString string, sig []byte, key interface{}) error {
	pubkey, ok := key.(crypto.PublicKey)
	if !ok {
		return xerrors.Errorf("invalid key type '%T'", key)
	}

	err := pubkey.Verify([]byte(signingString), ed25519.NewSignature(sig))
	if err != nil {
		return xerrors.Errorf("verification failed: %v", err)
	}

	return nil
}
