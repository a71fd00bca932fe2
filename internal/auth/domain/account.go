package domain

import (
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"
)

// Credential length bounds in bytes. Clients may send either a password or
// a hex/base64 pre-hash, both fit comfortably.
const (
	MinCredentialLen  = 8
	MaxCredentialLen  = 1024
	MaxEmailLen       = 254
	MaxDisplayNameLen = 128
)

type Account struct {
	ID                string
	Email             string // trimmed and lower-cased
	DisplayName       string
	CredentialHash    string // argon2id PHC string
	KeyDerivationSalt string // base64, handed to the client, never used server side
	TwoFactor         TwoFactorState
	DisabledAt        *time.Time // soft-disable, nil while active
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Active reports whether the account may log in or refresh.
func (a Account) Active() bool { return a.DisabledAt == nil }

// View is the projection returned to clients.
func (a Account) View() AccountView {
	return AccountView{
		ID:               a.ID,
		Email:            a.Email,
		DisplayName:      a.DisplayName,
		TwoFactorEnabled: a.TwoFactor.Enabled(),
		CreatedAt:        a.CreatedAt,
	}
}

type AccountView struct {
	ID               string
	Email            string
	DisplayName      string
	TwoFactorEnabled bool
	CreatedAt        time.Time
}

// NormalizeEmail trims and lower-cases raw and checks it is a bare address.
func NormalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", Validationf("email", "is required")
	}
	if len(email) > MaxEmailLen {
		return "", Validationf("email", "must be at most %d characters", MaxEmailLen)
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return "", Validationf("email", "is not a valid address")
	}
	return email, nil
}

// ValidateCredential checks length and encoding only; strength is the
// client's business since it may send a pre-hash.
func ValidateCredential(credential string) error {
	switch {
	case len(credential) < MinCredentialLen:
		return Validationf("credential", "must be at least %d bytes", MinCredentialLen)
	case len(credential) > MaxCredentialLen:
		return Validationf("credential", "must be at most %d bytes", MaxCredentialLen)
	case !utf8.ValidString(credential):
		return Validationf("credential", "must be valid UTF-8")
	case strings.ContainsRune(credential, 0):
		return Validationf("credential", "must not contain NUL")
	}
	return nil
}

// NormalizeDisplayName trims name and enforces its length.
func NormalizeDisplayName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > MaxDisplayNameLen {
		return "", Validationf("display_name", "must be at most %d characters", MaxDisplayNameLen)
	}
	return name, nil
}
