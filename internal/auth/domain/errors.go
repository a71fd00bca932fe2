package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error a service returns to a caller wraps exactly one
// of these so the transport can branch with errors.Is.
var (
	ErrValidation     = errors.New("validation_error")
	ErrConflict       = errors.New("conflict")
	ErrAuthentication = errors.New("authentication_failed")
	ErrAuthorization  = errors.New("forbidden")
	ErrNotFound       = errors.New("not_found")
	ErrDecryption     = errors.New("decryption_failed")
	ErrConfiguration  = errors.New("configuration_error")
)

var (
	// ErrInvalidCredentials covers unknown email, wrong credential and bad
	// pre-session tokens alike.
	ErrInvalidCredentials      = fmt.Errorf("%w: invalid credentials", ErrAuthentication)
	ErrAccountDisabled         = fmt.Errorf("%w: account disabled", ErrAuthentication)
	ErrInvalidRefresh          = fmt.Errorf("%w: invalid refresh token", ErrAuthentication)
	ErrInvalidTwoFactorCode    = fmt.Errorf("%w: invalid two-factor code", ErrAuthentication)
	ErrNoPendingTwoFactor      = fmt.Errorf("%w: no pending two-factor enrollment", ErrAuthentication)
	ErrTooManyAttempts         = fmt.Errorf("%w: too many attempts", ErrAuthentication)
	ErrEmailTaken              = fmt.Errorf("%w: email already registered", ErrConflict)
	ErrTwoFactorAlreadyEnabled = fmt.Errorf("%w: two-factor already enabled", ErrConflict)
	ErrRecordNotFound          = fmt.Errorf("%w: record", ErrNotFound)
	ErrEnvelopeNotFound        = fmt.Errorf("%w: envelope", ErrNotFound)
	ErrEnvelopeCorrupt         = fmt.Errorf("%w: envelope", ErrDecryption)
)

// FieldError is a validation failure on a single input field. Its message
// is safe to show to the caller.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *FieldError) Unwrap() error { return ErrValidation }

// Validationf builds a FieldError for field.
func Validationf(field, format string, args ...any) error {
	return &FieldError{Field: field, Message: fmt.Sprintf(format, args...)}
}
