package domain_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/aussiebroadwan/medvault/internal/auth/domain"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		raw  string
		want domain.EnvelopeMode
	}{
		{"", domain.ModeClientOpaque},
		{"false", domain.ModeClientOpaque},
		{"FALSE", domain.ModeClientOpaque},
		{"0", domain.ModeClientOpaque},
		{"off", domain.ModeClientOpaque},
		{"client_opaque", domain.ModeClientOpaque},
		{" CLIENT ", domain.ModeClientOpaque},
		{"true", domain.ModeServerManaged},
		{"1", domain.ModeServerManaged},
		{"yes", domain.ModeServerManaged},
		{"on", domain.ModeServerManaged},
		{"SERVER_MANAGED", domain.ModeServerManaged},
	}

	for _, tt := range tests {
		t.Run("raw="+tt.raw, func(t *testing.T) {
			got, err := domain.ParseMode(tt.raw)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}

	for _, raw := range []string{"2", "maybe", "tru", "server-managed-ish"} {
		_, err := domain.ParseMode(raw)
		require.ErrorIs(t, err, domain.ErrValidation, "raw %q", raw)
	}
}

func TestTwoFactorState(t *testing.T) {
	off := domain.TwoFactorOff()
	require.Equal(t, domain.TwoFactorDisabled, off.Status())
	require.False(t, off.Enabled())
	require.Nil(t, off.SecretColumn())

	var zero domain.TwoFactorState
	require.Equal(t, off, zero)

	pending := domain.PendingTwoFactor("JBSWY3DPEHPK3PXP")
	require.True(t, pending.Pending())
	secret, ok := pending.Secret()
	require.True(t, ok)
	require.Equal(t, "JBSWY3DPEHPK3PXP", secret)

	enabled := domain.EnabledTwoFactor("JBSWY3DPEHPK3PXP")
	require.True(t, enabled.Enabled())
	require.Equal(t, "JBSWY3DPEHPK3PXP", *enabled.SecretColumn())
}

func TestRestoreTwoFactor(t *testing.T) {
	secret := "JBSWY3DPEHPK3PXP"
	empty := ""

	tests := []struct {
		name    string
		status  string
		secret  *string
		want    domain.TwoFactorStatus
		wantErr bool
	}{
		{"disabled", "disabled", nil, domain.TwoFactorDisabled, false},
		{"pending", "pending", &secret, domain.TwoFactorPending, false},
		{"enabled", "enabled", &secret, domain.TwoFactorEnabled, false},
		{"enabled without secret", "enabled", nil, "", true},
		{"pending with empty secret", "pending", &empty, "", true},
		{"disabled with secret", "disabled", &secret, "", true},
		{"unknown", "half", &secret, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := domain.RestoreTwoFactor(tt.status, tt.secret)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, st.Status())
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	got, err := domain.NormalizeEmail("  A@X.com ")
	require.NoError(t, err)
	require.Equal(t, "a@x.com", got)

	for _, raw := range []string{"", "nope", "Alice <a@x.com>", "a@", strings.Repeat("a", 250) + "@x.com"} {
		_, err := domain.NormalizeEmail(raw)
		require.ErrorIs(t, err, domain.ErrValidation, "raw %q", raw)
	}
}

func TestValidateCredential(t *testing.T) {
	require.NoError(t, domain.ValidateCredential("correct horse"))
	require.NoError(t, domain.ValidateCredential(strings.Repeat("f", 64)))

	for _, c := range []string{"short", strings.Repeat("x", domain.MaxCredentialLen+1), "abcdefgh\xff", "abcd\x00efgh"} {
		err := domain.ValidateCredential(c)
		require.ErrorIs(t, err, domain.ErrValidation)

		var fe *domain.FieldError
		require.True(t, errors.As(err, &fe))
		require.Equal(t, "credential", fe.Field)
	}
}

func TestErrorKinds(t *testing.T) {
	require.ErrorIs(t, domain.ErrInvalidCredentials, domain.ErrAuthentication)
	require.ErrorIs(t, domain.ErrInvalidRefresh, domain.ErrAuthentication)
	require.ErrorIs(t, domain.ErrEmailTaken, domain.ErrConflict)
	require.ErrorIs(t, domain.ErrEnvelopeNotFound, domain.ErrNotFound)
	require.ErrorIs(t, domain.ErrEnvelopeCorrupt, domain.ErrDecryption)
	require.NotErrorIs(t, domain.ErrInvalidCredentials, domain.ErrAccountDisabled)
}

func TestProtectionVariants(t *testing.T) {
	sm := domain.FileEnvelope{Protection: domain.ServerManaged{}}
	co := domain.FileEnvelope{Protection: domain.ClientOpaque{DisplayName: "scan.pdf"}}

	require.Equal(t, domain.ModeServerManaged, sm.Mode())
	require.Equal(t, domain.ModeClientOpaque, co.Mode())
}
