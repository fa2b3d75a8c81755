// internal/pkg/jwt/verifier.go
package jwt

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// clockSkew tolerates small drift between this service and the issuer.
const clockSkew = 30 * time.Second

var (
	ErrNoKey           = errors.New("jwt: key not configured")
	ErrNotAccessToken  = errors.New("jwt: not an access token")
	ErrTemporaryToken  = errors.New("jwt: temporary tokens cannot access the api")
	ErrMissingIdentity = errors.New("jwt: token carries no identity")
)

// Verifier checks RS256 tokens from a single issuer for a single audience.
type Verifier struct {
	key    *rsa.PublicKey
	parser *jwt.Parser
}

func NewVerifier(pub *rsa.PublicKey, issuer, audience string) *Verifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithLeeway(clockSkew),
	}
	return &Verifier{key: pub, parser: jwt.NewParser(opts...)}
}

func (v *Verifier) keyFunc(*jwt.Token) (any, error) {
	return v.key, nil
}

// Verify checks signature, issuer, audience and expiry, whatever the token's
// purpose.
func (v *Verifier) Verify(raw string) (*Claims, error) {
	if v.key == nil {
		return nil, ErrNoKey
	}
	claims := new(Claims)
	if _, err := v.parser.ParseWithClaims(raw, claims, v.keyFunc); err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	return claims, nil
}

// VerifyAccessToken is Verify restricted to full access tokens that name an
// identity.
func (v *Verifier) VerifyAccessToken(raw string) (*Claims, error) {
	claims, err := v.Verify(raw)
	switch {
	case err != nil:
		return nil, err
	case claims.SessionPurpose != PurposeAccess:
		return nil, ErrNotAccessToken
	case claims.IsTemp:
		return nil, ErrTemporaryToken
	case claims.IdentityID <= 0:
		return nil, ErrMissingIdentity
	}
	return claims, nil
}
