package service

import (
	"context"
	"crypto/rand"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/medvault/internal/auth/blob"
	"github.com/aussiebroadwan/medvault/internal/auth/domain"
	"github.com/aussiebroadwan/medvault/internal/auth/envelope"
	"github.com/aussiebroadwan/medvault/internal/auth/store"
	"github.com/aussiebroadwan/medvault/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/medvault/internal/auth/throttle"
	"github.com/aussiebroadwan/medvault/pkg/cryptox"
	"github.com/aussiebroadwan/medvault/pkg/jwtx"
	"github.com/aussiebroadwan/medvault/pkg/otpx"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer     = "medvault-test"
	testCredential = "correct horse battery staple"
)

var testMeta = domain.ClientMeta{IP: "192.0.2.10", UserAgent: "service-test"}

type testEnv struct {
	store     store.Store
	blobs     *blob.FileStore
	codec     *envelope.Codec
	sessions  *SessionService
	auth      *AuthService
	twoFactor *TwoFactorService
	records   *RecordService
	envelopes *EnvelopeService
}

func newSigner(t *testing.T, secret string, typ jwtx.TokenType) *jwtx.HS256 {
	t.Helper()
	s, err := jwtx.NewHS256([]byte(secret), testIssuer, typ)
	require.NoError(t, err)
	return s
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithThrottle(t, throttle.Nop{})
}

func newTestEnvWithThrottle(t *testing.T, th throttle.Throttle) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations(context.Background()))

	blobs, err := blob.NewFileStore(t.TempDir())
	require.NoError(t, err)

	key := make([]byte, 32)
	_, err = rand.Read(key)
	require.NoError(t, err)
	codec, err := envelope.NewCodec(key)
	require.NoError(t, err)

	hasher, err := cryptox.NewHasher(cryptox.DefaultHashParams, []byte("pepper"))
	require.NoError(t, err)

	sessions := &SessionService{
		Store:         st,
		Access:        newSigner(t, strings.Repeat("a", 32), jwtx.TypeAccess),
		Refresh:       newSigner(t, strings.Repeat("r", 32), jwtx.TypeRefresh),
		PreSession:    newSigner(t, strings.Repeat("p", 32), jwtx.TypePreSession),
		AccessTTL:     jwtx.DefaultAccessTokenTTL,
		RefreshTTL:    jwtx.DefaultRefreshTokenTTL,
		PreSessionTTL: jwtx.DefaultPreSessionTokenTTL,
		Issuer:        testIssuer,
	}
	totp := otpx.New(testIssuer)

	return &testEnv{
		store:    st,
		blobs:    blobs,
		codec:    codec,
		sessions: sessions,
		auth: &AuthService{
			Store:    st,
			Hasher:   hasher,
			Sessions: sessions,
			TOTP:     totp,
			Throttle: th,
		},
		twoFactor: &TwoFactorService{Store: st, Sessions: sessions, TOTP: totp, Throttle: th},
		records:   &RecordService{Store: st},
		envelopes: &EnvelopeService{Store: st, Blobs: blobs, Codec: codec},
	}
}

// register creates an account and returns its session.
func (e *testEnv) register(t *testing.T, email string) Session {
	t.Helper()
	sess, err := e.auth.Register(context.Background(), RegisterInput{
		Email:       email,
		Credential:  testCredential,
		DisplayName: "Test Patient",
	}, testMeta)
	require.NoError(t, err)
	return sess
}

// enableTwoFactor runs enrollment to completion and returns the secret.
func (e *testEnv) enableTwoFactor(t *testing.T, accountID string) string {
	t.Helper()
	ctx := context.Background()

	enrollment, err := e.twoFactor.Enable(ctx, accountID)
	require.NoError(t, err)
	code, err := otpx.Code(enrollment.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, e.twoFactor.Confirm(ctx, accountID, code))
	return enrollment.Secret
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
