package auth_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/medvault/pkg/authsdk"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

/*
 * Common constants and helper functions for the medvault end-to-end tests.
 * The service runs from the cmd/auth image inside a container; tests talk
 * to it through pkg/authsdk.
 */

const (
	testImageName = "medvault-auth-test:latest"

	testCredential  = "correct horse battery staple"
	testDisplayName = "Test Patient"
)

// TestMain builds the Docker image once before all tests and removes it
// after they complete.
func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		fmt.Fprintln(os.Stdout, "skipping end-to-end tests in short mode")
		os.Exit(0)
	}

	fmt.Fprintf(os.Stdout, "Building medvault auth Docker image...")

	if err := buildDockerImage(); err != nil {
		fmt.Fprintf(os.Stderr, "\nFailed to build Docker image: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, " done\n")

	exitCode := m.Run()

	fmt.Fprintf(os.Stdout, "Cleaning up medvault auth Docker image...")
	cleanupDockerImage()
	fmt.Fprintf(os.Stdout, " done\n")

	os.Exit(exitCode)
}

func buildDockerImage() error {
	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "docker", "build",
		"-t", testImageName,
		"-f", "../../../cmd/auth/Dockerfile",
		"../../../")
	cmd.Dir = "."
	cmd.Stdout = os.Stdout
	cmd.Stderr = nil

	return cmd.Run()
}

func cleanupDockerImage() {
	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "docker", "rmi", "-f", testImageName)
	_ = cmd.Run() // Image might not exist
}

// containerOptions adjusts the service container before it starts.
type containerOptions struct {
	env      map[string]string
	networks []string
}

type containerOption func(*containerOptions)

// withEnv overrides or adds environment variables.
func withEnv(kv map[string]string) containerOption {
	return func(o *containerOptions) {
		for k, v := range kv {
			o.env[k] = v
		}
	}
}

// withDefaultRateLimits drops the relaxed limits used by most tests.
func withDefaultRateLimits() containerOption {
	return func(o *containerOptions) {
		for k := range o.env {
			if strings.HasPrefix(k, "RATELIMIT_") {
				delete(o.env, k)
			}
		}
	}
}

func withNetwork(name string) containerOption {
	return func(o *containerOptions) { o.networks = append(o.networks, name) }
}

// serverKey returns a random base64 envelope key.
func serverKey(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(key)
}

// setupAuthContainer starts the service and returns its base URL.
func setupAuthContainer(t *testing.T, opts ...containerOption) (string, func()) {
	t.Helper()
	ctx := context.Background()

	o := &containerOptions{env: map[string]string{
		"ENV":                        "test",
		"AUTH_ISSUER":                "medvault-e2e",
		"LOG_LEVEL":                  "info",
		"LOG_FORMAT":                 "json",
		"ENVELOPE_SERVER_ENCRYPTION": "true",
		"ENVELOPE_SERVER_KEY":        serverKey(t),
		// Tests make many rapid requests which would otherwise hit the
		// strict production limits.
		"RATELIMIT_STRICT_REQUESTS":   "1000",
		"RATELIMIT_STRICT_WINDOW_SEC": "60",
		"RATELIMIT_STRICT_BURST":      "1000",
		"RATELIMIT_MODERATE_REQUESTS": "1000",
		"RATELIMIT_MODERATE_BURST":    "1000",
	}}
	for _, opt := range opts {
		opt(o)
	}

	req := testcontainers.ContainerRequest{
		Image:        testImageName,
		ExposedPorts: []string{"8080/tcp"},
		Env:          o.env,
		Networks:     o.networks,
		WaitingFor: wait.ForHTTP("/readyz").
			WithPort("8080/tcp").
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	mappedPort, err := container.MappedPort(ctx, "8080")
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	baseURL := fmt.Sprintf("http://%s:%s", host, mappedPort.Port())

	cleanup := func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return baseURL, cleanup
}

// registerAccount creates an account and returns its session.
func registerAccount(t *testing.T, client *authsdk.SDKClient, email string) *authsdk.Session {
	t.Helper()

	session, err := client.Register(t.Context(), authsdk.RegisterRequest{
		Email:       email,
		Credential:  testCredential,
		DisplayName: testDisplayName,
	})
	require.NoError(t, err, "Register should succeed")
	require.NotNil(t, session)
	require.NotEmpty(t, session.AccessToken())
	require.NotEmpty(t, session.RefreshToken())
	require.Len(t, session.KeyDerivationSalt(), 44, "32-byte salt, base64")

	return session
}

// enableTwoFactor enrols and confirms TOTP and returns the secret.
func enableTwoFactor(t *testing.T, session *authsdk.Session) string {
	t.Helper()

	enrollment, err := session.EnableTwoFactor(t.Context())
	require.NoError(t, err)
	require.NotEmpty(t, enrollment.Secret)
	require.Contains(t, enrollment.ProvisioningURI, "otpauth://totp/")

	require.NoError(t, session.ConfirmTwoFactor(t.Context(), generateTOTP(t, enrollment.Secret)))
	return enrollment.Secret
}

func generateTOTP(t *testing.T, secret string) string {
	t.Helper()
	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	return code
}

// assertUnauthorized checks that an error is a 401 from the service.
func assertUnauthorized(t *testing.T, err error, context string) {
	t.Helper()
	require.Error(t, err, context)
	var apiErr *authsdk.APIError
	require.ErrorAs(t, err, &apiErr, context)
	require.Equal(t, 401, apiErr.StatusCode, "%s - got: %s", context, err)
}

// assertHealthy verifies a health check response is OK.
func assertHealthy(t *testing.T, health *authsdk.HealthResponse, err error) {
	t.Helper()
	require.NoError(t, err)
	require.NotNil(t, health)
	require.Equal(t, "ok", health.Status)
}
