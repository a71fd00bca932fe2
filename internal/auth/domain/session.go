package domain

import "time"

// ClientMeta is advisory request metadata recorded on refresh sessions. It
// never takes part in an authorization decision.
type ClientMeta struct {
	IP        string
	UserAgent string
}

// TokenPair is what a successful login, 2FA login or refresh hands out.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	TokenType        string        // always "Bearer"
	ExpiresIn        time.Duration // access token lifetime
	RefreshExpiresAt time.Time
}

// RefreshSession is the stored half of a refresh token. Only the
// fingerprint of the token is kept.
type RefreshSession struct {
	ID              string
	AccountID       string
	TokenHash       string // base64url SHA-256 of the refresh token
	ExpiresAt       time.Time
	RevokedAt       *time.Time // set on rotation or logout
	IssuedFromIP    string
	IssuedFromAgent string
	CreatedAt       time.Time
}

// Revoked reports whether the session has been consumed or logged out.
func (s RefreshSession) Revoked() bool { return s.RevokedAt != nil }

// Usable reports whether the session could still be exchanged at now.
func (s RefreshSession) Usable(now time.Time) bool {
	return !s.Revoked() && now.Before(s.ExpiresAt)
}
