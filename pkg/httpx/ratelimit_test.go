package httpx_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aussiebroadwan/medvault/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestClientIP(t *testing.T) {
	t.Run("extracts from RemoteAddr", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		require.Equal(t, "192.168.1.1", httpx.ClientIP(req))
	})

	t.Run("prefers X-Forwarded-For", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		req.Header.Set("X-Forwarded-For", "203.0.113.1, 192.168.1.1")
		require.Equal(t, "203.0.113.1", httpx.ClientIP(req))
	})

	t.Run("uses X-Real-IP if X-Forwarded-For absent", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		req.Header.Set("X-Real-IP", "203.0.113.2")
		require.Equal(t, "203.0.113.2", httpx.ClientIP(req))
	})
}

func TestCompositeKeyExtractor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.1:12345"

	extractor := httpx.CompositeKeyExtractor(":", httpx.AccountKeyExtractor, httpx.ClientIP)
	require.Equal(t, "192.168.1.1", extractor(req), "anonymous requests fall back to IP")

	ctx := context.WithValue(req.Context(), httpx.CtxKeyAccountID, "01ACCOUNT")
	require.Equal(t, "01ACCOUNT:192.168.1.1", extractor(req.WithContext(ctx)))
}

func TestRateLimitByIP(t *testing.T) {
	cfg := httpx.RateLimitConfig{RequestsPerWindow: 3, Window: time.Minute, Burst: 3}
	h := httpx.Chain(okHandler(), httpx.RateLimitByIP(cfg))

	do := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil)
		req.RemoteAddr = ip + ":1234"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	for range 3 {
		require.Equal(t, http.StatusOK, do("10.0.0.1").Code)
	}

	rr := do("10.0.0.1")
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	require.NotEmpty(t, rr.Header().Get("Retry-After"))
	require.Equal(t, "3", rr.Header().Get("X-RateLimit-Limit"))
	require.Contains(t, rr.Body.String(), "rate_limit_exceeded")

	require.Equal(t, http.StatusOK, do("10.0.0.2").Code, "other clients are unaffected")
}

func TestRateLimitMiddleware_EmptyKeyAllowed(t *testing.T) {
	cfg := httpx.RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute, Burst: 1}
	h := httpx.Chain(okHandler(), httpx.RateLimitMiddleware(cfg, func(*http.Request) string { return "" }))

	for range 5 {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, rr.Code)
	}
}

func TestLoadRateLimits(t *testing.T) {
	env := map[string]string{
		"RATELIMIT_STRICT_REQUESTS":   "50",
		"RATELIMIT_STRICT_WINDOW_SEC": "10",
		"RATELIMIT_MODERATE_BURST":    "7",
		"RATELIMIT_LENIENT_REQUESTS":  "-4",
		"RATELIMIT_LENIENT_BURST":     "abc",
	}
	rl := httpx.LoadRateLimits(func(k string) string { return env[k] })
	def := httpx.DefaultRateLimits()

	require.Equal(t, 50, rl.Strict.RequestsPerWindow)
	require.Equal(t, 10*time.Second, rl.Strict.Window)
	require.Equal(t, def.Strict.Burst, rl.Strict.Burst)
	require.Equal(t, 7, rl.Moderate.Burst)
	require.Equal(t, def.Lenient, rl.Lenient, "invalid overrides are ignored")
}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpx.Chain(okHandler(), mw("a"), mw("b"), mw("c"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"a", "b", "c"}, order)
}
