package domain

import "fmt"

type TwoFactorStatus string

const (
	TwoFactorDisabled TwoFactorStatus = "disabled"
	TwoFactorPending  TwoFactorStatus = "pending"
	TwoFactorEnabled  TwoFactorStatus = "enabled"
)

// TwoFactorState is Disabled, Pending(secret) or Enabled(secret). The
// zero value is Disabled and there is no way to build an enabled or pending
// state without a secret.
type TwoFactorState struct {
	status TwoFactorStatus
	secret string
}

func TwoFactorOff() TwoFactorState { return TwoFactorState{} }

func PendingTwoFactor(secret string) TwoFactorState {
	return TwoFactorState{status: TwoFactorPending, secret: secret}
}

func EnabledTwoFactor(secret string) TwoFactorState {
	return TwoFactorState{status: TwoFactorEnabled, secret: secret}
}

// RestoreTwoFactor rebuilds a state from its stored columns.
func RestoreTwoFactor(status string, secret *string) (TwoFactorState, error) {
	switch TwoFactorStatus(status) {
	case TwoFactorDisabled, "":
		if secret != nil {
			return TwoFactorState{}, fmt.Errorf("two-factor disabled but secret present")
		}
		return TwoFactorOff(), nil
	case TwoFactorPending, TwoFactorEnabled:
		if secret == nil || *secret == "" {
			return TwoFactorState{}, fmt.Errorf("two-factor %s without secret", status)
		}
		return TwoFactorState{status: TwoFactorStatus(status), secret: *secret}, nil
	default:
		return TwoFactorState{}, fmt.Errorf("unknown two-factor status %q", status)
	}
}

// Status returns the state tag, never empty.
func (s TwoFactorState) Status() TwoFactorStatus {
	if s.status == "" {
		return TwoFactorDisabled
	}
	return s.status
}

// Secret returns the shared secret while pending or enabled.
func (s TwoFactorState) Secret() (string, bool) {
	return s.secret, s.secret != ""
}

// SecretColumn is the nullable column value for the secret.
func (s TwoFactorState) SecretColumn() *string {
	if s.secret == "" {
		return nil
	}
	v := s.secret
	return &v
}

func (s TwoFactorState) Enabled() bool { return s.status == TwoFactorEnabled }
func (s TwoFactorState) Pending() bool { return s.status == TwoFactorPending }

// Enrollment is returned when two-factor setup starts.
type Enrollment struct {
	Secret          string // base32 TOTP secret
	ProvisioningURI string // otpauth:// URI for QR codes
}
