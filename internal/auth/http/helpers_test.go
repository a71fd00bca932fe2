package http

import (
	"context"
	"crypto/rand"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/medvault/internal/auth/blob"
	"github.com/aussiebroadwan/medvault/internal/auth/envelope"
	"github.com/aussiebroadwan/medvault/internal/auth/service"
	"github.com/aussiebroadwan/medvault/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/medvault/internal/auth/throttle"
	"github.com/aussiebroadwan/medvault/pkg/authsdk"
	"github.com/aussiebroadwan/medvault/pkg/cryptox"
	"github.com/aussiebroadwan/medvault/pkg/httpx"
	"github.com/aussiebroadwan/medvault/pkg/jwtx"
	"github.com/aussiebroadwan/medvault/pkg/otpx"
	"github.com/stretchr/testify/require"
)

const testCredential = "correct horse battery staple"

type testServer struct {
	URL     string
	client  *authsdk.SDKClient
	blobs   *blob.FileStore
	blobDir string
}

// generousLimits keeps the rate limiter out of the way of functional tests.
func generousLimits() httpx.RateLimits {
	l := httpx.RateLimitConfig{RequestsPerWindow: 10000, Window: time.Minute, Burst: 10000}
	return httpx.RateLimits{Strict: l, Moderate: l, Lenient: l}
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	ctx := context.Background()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations(ctx))

	blobDir := t.TempDir()
	blobs, err := blob.NewFileStore(blobDir)
	require.NoError(t, err)

	key := make([]byte, 32)
	_, err = rand.Read(key)
	require.NoError(t, err)
	codec, err := envelope.NewCodec(key)
	require.NoError(t, err)

	hasher, err := cryptox.NewHasher(cryptox.DefaultHashParams, nil)
	require.NoError(t, err)

	signer := func(secret string, typ jwtx.TokenType) *jwtx.HS256 {
		s, err := jwtx.NewHS256([]byte(strings.Repeat(secret, 32)), "medvault-http-test", typ)
		require.NoError(t, err)
		return s
	}
	sessions := &service.SessionService{
		Store:         st,
		Access:        signer("a", jwtx.TypeAccess),
		Refresh:       signer("r", jwtx.TypeRefresh),
		PreSession:    signer("p", jwtx.TypePreSession),
		AccessTTL:     jwtx.DefaultAccessTokenTTL,
		RefreshTTL:    jwtx.DefaultRefreshTokenTTL,
		PreSessionTTL: jwtx.DefaultPreSessionTokenTTL,
		Issuer:        "medvault-http-test",
	}
	totp := otpx.New("medvault-http-test")
	th := throttle.Nop{}

	if opts.RateLimits == (httpx.RateLimits{}) {
		opts.RateLimits = generousLimits()
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := NewRouter(sessions, "test", st, blobs, th, logger, opts)
	r.AuthService = &service.AuthService{Store: st, Hasher: hasher, Sessions: sessions, TOTP: totp, Throttle: th}
	r.TwoFactorService = &service.TwoFactorService{Store: st, Sessions: sessions, TOTP: totp, Throttle: th}
	r.RecordService = &service.RecordService{Store: st}
	r.EnvelopeService = &service.EnvelopeService{Store: st, Blobs: blobs, Codec: codec}
	r.ApplyRoutes()

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testServer{URL: srv.URL, client: authsdk.NewSDKClient(srv.URL), blobs: blobs, blobDir: blobDir}
}

func (s *testServer) register(t *testing.T, email string) *authsdk.Session {
	t.Helper()
	sess, err := s.client.Register(context.Background(), authsdk.RegisterRequest{
		Email:       email,
		Credential:  testCredential,
		DisplayName: "Test Patient",
	})
	require.NoError(t, err)
	return sess
}

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

func httpxLimit(n int) httpx.RateLimitConfig {
	return httpx.RateLimitConfig{RequestsPerWindow: n, Window: time.Minute, Burst: n}
}

// rawGet issues a GET with an optional bearer token and closes the body.
func rawGet(t *testing.T, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp
}

// wrongCode returns a well-formed code that is not valid for secret now.
func wrongCode(t *testing.T, secret string) string {
	t.Helper()
	now := time.Now()
	valid := map[string]bool{}
	for _, d := range []time.Duration{-otpx.Period * time.Second, 0, otpx.Period * time.Second} {
		c, err := otpx.Code(secret, now.Add(d))
		require.NoError(t, err)
		valid[c] = true
	}
	for _, c := range []string{"000000", "111111", "222222", "333333"} {
		if !valid[c] {
			return c
		}
	}
	t.Fatal("no invalid code found")
	return ""
}

// listBlobKeys returns the storage keys under prefix in the file store.
func listBlobKeys(t *testing.T, s *testServer, prefix string) []string {
	t.Helper()
	var keys []string
	err := filepath.WalkDir(filepath.Join(s.blobDir, filepath.FromSlash(prefix)), func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(s.blobDir, path)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	require.NoError(t, err)
	return keys
}
