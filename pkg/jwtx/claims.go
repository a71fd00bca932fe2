package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token lifetimes.
const (
	DefaultAccessTokenTTL     = 15 * time.Minute
	DefaultRefreshTokenTTL    = 7 * 24 * time.Hour
	DefaultPreSessionTokenTTL = 5 * time.Minute
)

// TokenType is carried in the "typ" claim so a token minted for one purpose
// is rejected everywhere else.
type TokenType string

const (
	TypeAccess     TokenType = "access"
	TypeRefresh    TokenType = "refresh"
	TypePreSession TokenType = "mfa_pending"
)

// Authentication method references.
const (
	AMRPassword = "pwd"
	AMROTP      = "otp"
)

// Claims are the claims shared by every token the service mints.
type Claims struct {
	jwt.RegisteredClaims

	// Type of token, see TokenType.
	Type TokenType `json:"typ"`

	// Authentication Methods Reference ["pwd","otp"]
	//		"pwd": credential check
	//		"otp": TOTP second factor
	AMR []string `json:"amr,omitempty"`
}

// NewClaims builds minimally-correct claims for subject.
func NewClaims(typ TokenType, subject, issuer string, amr []string, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Type: typ,
		AMR:  amr,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim. Two
// refresh tokens minted in the same second for the same account still differ.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}
	if c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateType checks the "typ" claim.
func (c *Claims) ValidateType(expected TokenType) error {
	if c.Type != expected {
		return ErrTokenType
	}
	return nil
}
