package auth_test

import (
	"testing"

	"github.com/aussiebroadwan/medvault/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

// TestRegisterLoginSaltIsStable verifies the key-derivation salt returned at
// registration is returned again on every login.
func TestRegisterLoginSaltIsStable(t *testing.T) {
	baseURL, cleanup := setupAuthContainer(t)
	defer cleanup()

	client := authsdk.NewSDKClient(baseURL)
	registered := registerAccount(t, client, "salt@example.com")

	for range 2 {
		session, err := client.Login(t.Context(), "SALT@example.com", testCredential)
		require.NoError(t, err)
		require.Equal(t, registered.KeyDerivationSalt(), session.KeyDerivationSalt())
		require.Equal(t, registered.Account().ID, session.Account().ID)
		require.Equal(t, "salt@example.com", session.Account().Email)
	}
}

// TestRefreshRotatesTokens verifies a refresh token is single use.
func TestRefreshRotatesTokens(t *testing.T) {
	baseURL, cleanup := setupAuthContainer(t)
	defer cleanup()

	client := authsdk.NewSDKClient(baseURL)
	session := registerAccount(t, client, "rotate@example.com")

	original := session.RefreshToken()
	refreshed, err := client.Refresh(t.Context(), original)
	require.NoError(t, err)
	require.NotEqual(t, original, refreshed.RefreshToken)
	require.NotEmpty(t, refreshed.AccessToken)

	_, err = client.Refresh(t.Context(), original)
	require.ErrorIs(t, err, authsdk.ErrInvalidRefreshToken, "Replayed refresh token should be rejected")

	_, err = client.Refresh(t.Context(), refreshed.RefreshToken)
	require.NoError(t, err, "The rotated token is still good")
}

// TestLogoutRevokesRefreshToken verifies logout ends the session and is
// idempotent.
func TestLogoutRevokesRefreshToken(t *testing.T) {
	baseURL, cleanup := setupAuthContainer(t)
	defer cleanup()

	client := authsdk.NewSDKClient(baseURL)
	session := registerAccount(t, client, "logout@example.com")
	refreshToken := session.RefreshToken()

	require.NoError(t, session.Logout(t.Context()))
	require.NoError(t, client.Logout(t.Context(), refreshToken), "Logout twice still succeeds")

	_, err := client.Refresh(t.Context(), refreshToken)
	require.ErrorIs(t, err, authsdk.ErrInvalidRefreshToken)
}
