package jwtx

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretSize is the shortest HMAC secret accepted, matching the SHA-256
// block output.
const MinSecretSize = 32

// HS256 signs and verifies tokens of one TokenType with one secret. It
// implements both Signer and Verifier.
type HS256 struct {
	secret []byte
	issuer string
	typ    TokenType
	leeway time.Duration
}

var (
	_ Signer   = (*HS256)(nil)
	_ Verifier = (*HS256)(nil)
)

// NewHS256 returns a signer/verifier for typ tokens.
func NewHS256(secret []byte, issuer string, typ TokenType) (*HS256, error) {
	if len(secret) < MinSecretSize {
		return nil, fmt.Errorf("%w: %s secret has %d bytes, need %d", ErrWeakSecret, typ, len(secret), MinSecretSize)
	}
	return &HS256{
		secret: append([]byte(nil), secret...),
		issuer: issuer,
		typ:    typ,
		leeway: 5 * time.Second,
	}, nil
}

// CheckDistinct fails if any two secrets are equal.
func CheckDistinct(secrets ...[]byte) error {
	for i := range secrets {
		for j := i + 1; j < len(secrets); j++ {
			if subtle.ConstantTimeCompare(secrets[i], secrets[j]) == 1 {
				return ErrSharedSecret
			}
		}
	}
	return nil
}

func (h *HS256) Alg() string     { return jwt.SigningMethodHS256.Alg() }
func (h *HS256) Type() TokenType { return h.typ }

// Sign turns claims into a signed JWT string. Claims of another type are
// refused so a key can only ever mint its own kind of token.
func (h *HS256) Sign(claims Claims) (string, error) {
	if claims.Type != h.typ {
		return "", ErrTokenType
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
}

// Verify validates the JWT string and returns its parsed Claims.
func (h *HS256) Verify(tokenStr string) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(h.leeway),
	)

	var claims Claims
	token, err := parser.ParseWithClaims(tokenStr, &claims, func(*jwt.Token) (any, error) {
		return h.secret, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return Claims{}, ErrExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return Claims{}, ErrNotYetValid
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return Claims{}, ErrInvalidSig
	default:
		return Claims{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if !token.Valid {
		return Claims{}, ErrMalformed
	}

	// Now check all the claim requirements
	if err := claims.ValidateType(h.typ); err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateIssuer(h.issuer); err != nil {
		return Claims{}, err
	}
	if claims.Subject == "" {
		return Claims{}, ErrInvalidClaim
	}

	return claims, nil
}
