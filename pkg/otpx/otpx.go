// Package otpx wraps pquerna/otp with the fixed TOTP profile the service
// uses: SHA1, six digits, 30 second steps, one step of skew either side.
package otpx

import (
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	Digits = 6
	Period = 30
	Skew   = 1
)

// TOTP generates and validates time-based codes for a single issuer.
type TOTP struct {
	Issuer string // Issuer shown in authenticator apps
}

// New returns a TOTP for issuer.
func New(issuer string) *TOTP {
	return &TOTP{Issuer: issuer}
}

// GenerateSecret produces a fresh shared secret and its otpauth:// URI.
// Nothing is persisted.
func (t *TOTP) GenerateSecret(accountLabel string) (secret, provisioningURI string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      t.Issuer,
		AccountName: accountLabel,
		Period:      Period,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", "", fmt.Errorf("otpx: generate key: %w", err)
	}
	return key.Secret(), key.URL(), nil
}

// WellFormed reports whether code is exactly six ASCII digits.
func WellFormed(code string) bool {
	if len(code) != Digits {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// VerifyCode validates code against secret at the given instant. Malformed
// codes are rejected before any time-window work is done.
func (t *TOTP) VerifyCode(secret, code string, at time.Time) bool {
	if !WellFormed(code) || secret == "" {
		return false
	}

	ok, err := totp.ValidateCustom(code, secret, at.UTC(), totp.ValidateOpts{
		Period:    Period,
		Skew:      Skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// Code returns the code for secret at the given instant. Clients and tests
// use it; the server only ever verifies.
func Code(secret string, at time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, at.UTC(), totp.ValidateOpts{
		Period:    Period,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
}
