package auth_test

import (
	"net/http"
	"testing"

	"github.com/aussiebroadwan/medvault/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

// TestInvalidCredentials verifies a wrong credential and an unknown email
// are rejected the same way.
func TestInvalidCredentials(t *testing.T) {
	baseURL, cleanup := setupAuthContainer(t)
	defer cleanup()

	client := authsdk.NewSDKClient(baseURL)
	registerAccount(t, client, "patient@example.com")

	_, wrongErr := client.Login(t.Context(), "patient@example.com", "not the credential")
	assertUnauthorized(t, wrongErr, "Wrong credential should be rejected")

	_, unknownErr := client.Login(t.Context(), "nobody@example.com", testCredential)
	assertUnauthorized(t, unknownErr, "Unknown email should be rejected")

	require.Equal(t, wrongErr.Error(), unknownErr.Error(), "Failures must not reveal whether the email exists")
}

// TestInvalidAccessToken verifies protected routes reject forged tokens.
func TestInvalidAccessToken(t *testing.T) {
	baseURL, cleanup := setupAuthContainer(t)
	defer cleanup()

	client := authsdk.NewSDKClient(baseURL)

	invalidSession := client.NewSessionFromTokens("invalid-token-12345", "", "", 3600)

	_, err := invalidSession.ListRecords(t.Context())
	assertUnauthorized(t, err, "Invalid token should be rejected")
}

// TestRefreshTokenIsNotAnAccessToken verifies token types are not
// interchangeable.
func TestRefreshTokenIsNotAnAccessToken(t *testing.T) {
	baseURL, cleanup := setupAuthContainer(t)
	defer cleanup()

	client := authsdk.NewSDKClient(baseURL)
	session := registerAccount(t, client, "types@example.com")

	swapped := client.NewSessionFromTokens(session.RefreshToken(), "", "", 3600)
	_, err := swapped.ListRecords(t.Context())
	assertUnauthorized(t, err, "Refresh token must not authorise API calls")
}

// TestDuplicateRegistration verifies the email is unique case-insensitively.
func TestDuplicateRegistration(t *testing.T) {
	baseURL, cleanup := setupAuthContainer(t)
	defer cleanup()

	client := authsdk.NewSDKClient(baseURL)
	registerAccount(t, client, "twice@example.com")

	_, err := client.Register(t.Context(), authsdk.RegisterRequest{
		Email:      "Twice@Example.com",
		Credential: testCredential,
	})
	require.ErrorIs(t, err, authsdk.ErrEmailTaken)

	var apiErr *authsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusConflict, apiErr.StatusCode)
}
