// internal/pkg/jwt/signer.go
package jwt

import (
	"crypto/rsa"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

// Signer mints access tokens in the identity service's format for operators
// and tests. Production tokens are issued by the identity service.
type Signer struct {
	key      *rsa.PrivateKey
	issuer   string
	audience string
	kid      string
	now      func() time.Time
}

func NewSigner(priv *rsa.PrivateKey, issuer, audience, kid string) *Signer {
	return &Signer{key: priv, issuer: issuer, audience: audience, kid: kid, now: time.Now}
}

func (s *Signer) claims(identityID int64, roles []string, ttl time.Duration) *Claims {
	issued := s.now()
	return &Claims{
		IdentityID:     identityID,
		Roles:          roles,
		SessionPurpose: PurposeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ulid.Make().String(),
			Issuer:    s.issuer,
			Subject:   strconv.FormatInt(identityID, 10),
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(issued),
			NotBefore: jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(ttl)),
		},
	}
}

// AccessToken returns the signed token and its jti.
func (s *Signer) AccessToken(identityID int64, roles []string, ttl time.Duration) (token, jti string, err error) {
	if s.key == nil {
		return "", "", ErrNoKey
	}
	c := s.claims(identityID, roles, ttl)
	t := jwt.NewWithClaims(jwt.SigningMethodRS256, c)
	if s.kid != "" {
		t.Header["kid"] = s.kid
	}
	if token, err = t.SignedString(s.key); err != nil {
		return "", "", err
	}
	return token, c.ID, nil
}
