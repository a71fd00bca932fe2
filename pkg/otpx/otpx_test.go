package otpx_test

import (
	"net/url"
	"testing"
	"time"

	"github.com/aussiebroadwan/medvault/pkg/otpx"
	"github.com/stretchr/testify/require"
)

func TestGenerateSecret(t *testing.T) {
	tp := otpx.New("MedVault")

	secret, uri, err := tp.GenerateSecret("a@x.com")
	require.NoError(t, err)
	require.NotEmpty(t, secret)

	u, err := url.Parse(uri)
	require.NoError(t, err)
	require.Equal(t, "otpauth", u.Scheme)
	require.Equal(t, "totp", u.Host)
	require.Equal(t, secret, u.Query().Get("secret"))
	require.Equal(t, "MedVault", u.Query().Get("issuer"))

	other, _, err := tp.GenerateSecret("a@x.com")
	require.NoError(t, err)
	require.NotEqual(t, secret, other)
}

func TestVerifyCode_Window(t *testing.T) {
	tp := otpx.New("MedVault")
	secret, _, err := tp.GenerateSecret("a@x.com")
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 12, 0, 15, 0, time.UTC)

	tests := []struct {
		name   string
		offset time.Duration
		want   bool
	}{
		{"current step", 0, true},
		{"previous step", -30 * time.Second, true},
		{"next step", 30 * time.Second, true},
		{"two steps back", -60 * time.Second, false},
		{"two steps ahead", 60 * time.Second, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := otpx.Code(secret, now.Add(tt.offset))
			require.NoError(t, err)
			require.Equal(t, tt.want, tp.VerifyCode(secret, code, now))
		})
	}
}

func TestVerifyCode_Malformed(t *testing.T) {
	tp := otpx.New("MedVault")
	secret, _, err := tp.GenerateSecret("a@x.com")
	require.NoError(t, err)

	for _, code := range []string{"", "12345", "1234567", "12a456", " 12345", "１２３４５６", "-12345"} {
		require.False(t, otpx.WellFormed(code), "code %q", code)
		require.False(t, tp.VerifyCode(secret, code, time.Now()), "code %q", code)
	}
}

func TestVerifyCode_WrongSecret(t *testing.T) {
	tp := otpx.New("MedVault")
	a, _, err := tp.GenerateSecret("a@x.com")
	require.NoError(t, err)
	b, _, err := tp.GenerateSecret("b@x.com")
	require.NoError(t, err)

	now := time.Now()
	code, err := otpx.Code(a, now)
	require.NoError(t, err)

	require.True(t, tp.VerifyCode(a, code, now))
	require.False(t, tp.VerifyCode(b, code, now))
	require.False(t, tp.VerifyCode("", code, now))
}
