package auth_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/aussiebroadwan/medvault/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

// TestRateLimitLoginEndpoint verifies /v1/auth/login has the strict per-IP
// limit (10 req/min).
func TestRateLimitLoginEndpoint(t *testing.T) {
	baseURL, cleanup := setupAuthContainer(t, withDefaultRateLimits())
	defer cleanup()

	client := authsdk.NewSDKClient(baseURL)
	ctx := context.Background()

	for i := range 10 {
		_, err := client.Login(ctx, "nobody@example.com", "wrong credential")
		require.Error(t, err)
		require.NotErrorIs(t, err, authsdk.ErrRateLimitExceeded, "Should not be rate limited yet (request %d)", i+1)
	}

	_, err := client.Login(ctx, "nobody@example.com", "wrong credential")
	require.ErrorIs(t, err, authsdk.ErrRateLimitExceeded, "Should be rate limited after 10 requests")
	t.Logf("Successfully rate limited after 10 requests to /v1/auth/login")
}

// TestRateLimitHealthEndpoints verifies health checks have lenient limits.
func TestRateLimitHealthEndpoints(t *testing.T) {
	baseURL, cleanup := setupAuthContainer(t, withDefaultRateLimits())
	defer cleanup()

	client := authsdk.NewSDKClient(baseURL)

	for i := range 30 {
		health, err := client.GetLiveness(t.Context())
		require.NoError(t, err, "Liveness request %d should not be rate limited", i+1)
		require.Equal(t, "ok", health.Status)

		health, err = client.GetReadiness(t.Context())
		require.NoError(t, err, "Readiness request %d should not be rate limited", i+1)
		require.Equal(t, "ok", health.Status)
	}
}

// TestRateLimitHeadersPresent verifies the 429 response carries the limit
// headers and the JSON error body.
func TestRateLimitHeadersPresent(t *testing.T) {
	baseURL, cleanup := setupAuthContainer(t, withDefaultRateLimits())
	defer cleanup()

	httpClient := &http.Client{}
	body := []byte(`{"email":"nobody@example.com","credential":"wrong credential"}`)

	post := func() *http.Response {
		req, err := http.NewRequest(http.MethodPost, baseURL+"/v1/auth/register", bytes.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		resp, err := httpClient.Do(req)
		require.NoError(t, err)
		return resp
	}

	for range 10 {
		resp := post()
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}

	resp := post()
	defer resp.Body.Close()

	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode, "Should receive 429 status")
	require.NotEmpty(t, resp.Header.Get("Retry-After"))
	require.NotEmpty(t, resp.Header.Get("X-RateLimit-Limit"))
	require.NotEmpty(t, resp.Header.Get("X-RateLimit-Window"))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(raw), "rate_limit_exceeded")
}

// TestRateLimitTwoFactorConfirmPerAccount verifies code confirmation is
// limited per account rather than per IP.
func TestRateLimitTwoFactorConfirmPerAccount(t *testing.T) {
	baseURL, cleanup := setupAuthContainer(t, withDefaultRateLimits())
	defer cleanup()

	client := authsdk.NewSDKClient(baseURL)
	first := registerAccount(t, client, "first@example.com")
	second := registerAccount(t, client, "second@example.com")

	_, err := first.EnableTwoFactor(t.Context())
	require.NoError(t, err)

	var limited bool
	for range 12 {
		err := first.ConfirmTwoFactor(t.Context(), "000000")
		if errors.Is(err, authsdk.ErrRateLimitExceeded) {
			limited = true
			break
		}
	}
	require.True(t, limited, "Repeated confirms should hit the per-account limit")

	_, err = second.EnableTwoFactor(t.Context())
	require.NoError(t, err)
	err = second.ConfirmTwoFactor(t.Context(), "000000")
	require.NotErrorIs(t, err, authsdk.ErrRateLimitExceeded, "Another account has its own budget")
}
