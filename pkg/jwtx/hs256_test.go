package jwtx_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/medvault/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func secret(b byte) []byte { return bytes.Repeat([]byte{b}, jwtx.MinSecretSize) }

func mustHS256(t *testing.T, key []byte, typ jwtx.TokenType) *jwtx.HS256 {
	t.Helper()
	h, err := jwtx.NewHS256(key, "medvault", typ)
	require.NoError(t, err)
	return h
}

func TestNewHS256_WeakSecret(t *testing.T) {
	_, err := jwtx.NewHS256([]byte("short"), "medvault", jwtx.TypeAccess)
	require.ErrorIs(t, err, jwtx.ErrWeakSecret)
}

func TestCheckDistinct(t *testing.T) {
	require.NoError(t, jwtx.CheckDistinct(secret('a'), secret('b'), secret('c')))
	require.ErrorIs(t, jwtx.CheckDistinct(secret('a'), secret('b'), secret('a')), jwtx.ErrSharedSecret)
}

func TestHS256_SignVerify(t *testing.T) {
	h := mustHS256(t, secret('a'), jwtx.TypeAccess)
	now := time.Now()

	token, err := h.Sign(jwtx.NewClaims(jwtx.TypeAccess, "acct-1", "medvault", []string{"pwd"}, time.Minute, now))
	require.NoError(t, err)
	require.Equal(t, 2, strings.Count(token, "."))

	claims, err := h.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "acct-1", claims.Subject)
	require.Equal(t, jwtx.TypeAccess, claims.Type)
	require.Equal(t, []string{"pwd"}, claims.AMR)
	require.NotEmpty(t, claims.ID)
}

func TestHS256_RefusesForeignType(t *testing.T) {
	h := mustHS256(t, secret('a'), jwtx.TypeAccess)

	_, err := h.Sign(jwtx.NewClaims(jwtx.TypeRefresh, "acct-1", "medvault", nil, time.Minute, time.Now()))
	require.ErrorIs(t, err, jwtx.ErrTokenType)
}

func TestHS256_CrossTypeRejected(t *testing.T) {
	// Same secret on purpose: the typ claim alone must stop the replay.
	access := mustHS256(t, secret('a'), jwtx.TypeAccess)
	pre := mustHS256(t, secret('a'), jwtx.TypePreSession)

	token, err := pre.Sign(jwtx.NewClaims(jwtx.TypePreSession, "acct-1", "medvault", []string{"pwd"}, time.Minute, time.Now()))
	require.NoError(t, err)

	_, err = access.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrTokenType)
}

func TestHS256_WrongSecret(t *testing.T) {
	a := mustHS256(t, secret('a'), jwtx.TypeRefresh)
	b := mustHS256(t, secret('b'), jwtx.TypeRefresh)

	token, err := a.Sign(jwtx.NewClaims(jwtx.TypeRefresh, "acct-1", "medvault", nil, time.Hour, time.Now()))
	require.NoError(t, err)

	_, err = b.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrInvalidSig)
}

func TestHS256_Expired(t *testing.T) {
	h := mustHS256(t, secret('a'), jwtx.TypeAccess)

	token, err := h.Sign(jwtx.NewClaims(jwtx.TypeAccess, "acct-1", "medvault", nil, time.Minute, time.Now().Add(-time.Hour)))
	require.NoError(t, err)

	_, err = h.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrExpired)
}

func TestHS256_IssuerMismatch(t *testing.T) {
	h := mustHS256(t, secret('a'), jwtx.TypeAccess)

	token, err := h.Sign(jwtx.NewClaims(jwtx.TypeAccess, "acct-1", "someone-else", nil, time.Minute, time.Now()))
	require.NoError(t, err)

	_, err = h.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrIssuer)
}

func TestHS256_RejectsOtherAlgorithms(t *testing.T) {
	h := mustHS256(t, secret('a'), jwtx.TypeAccess)

	claims := jwtx.NewClaims(jwtx.TypeAccess, "acct-1", "medvault", nil, time.Minute, time.Now())
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(secret('a'))
	require.NoError(t, err)

	_, err = h.Verify(token)
	require.Error(t, err)
}

func TestHS256_Malformed(t *testing.T) {
	h := mustHS256(t, secret('a'), jwtx.TypeAccess)

	for _, tok := range []string{"", "abc", "a.b.c", "eyJhbGciOiJIUzI1NiJ9.e30."} {
		_, err := h.Verify(tok)
		require.Error(t, err, "token %q", tok)
	}
}
