package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/medvault/internal/auth/blob"
	"github.com/aussiebroadwan/medvault/internal/auth/service"
	"github.com/aussiebroadwan/medvault/internal/auth/store"
	"github.com/aussiebroadwan/medvault/internal/auth/throttle"
	"github.com/aussiebroadwan/medvault/pkg/httpx"
	"github.com/aussiebroadwan/medvault/pkg/jwtx"
	"github.com/aussiebroadwan/medvault/pkg/slogx"
)

// maxJSONBytes caps every JSON request body.
const maxJSONBytes = 64 << 10

// DefaultMaxUploadBytes caps an envelope upload including multipart framing.
const DefaultMaxUploadBytes = 32 << 20

// Options tunes the router. Zero values fall back to defaults.
type Options struct {
	RateLimits     httpx.RateLimits
	MaxUploadBytes int64
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier     jwtx.Verifier
	limits       httpx.RateLimits
	maxUpload    int64
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store    store.Store
	blobs    blob.Store
	throttle throttle.Throttle

	AuthService      *service.AuthService
	TwoFactorService *service.TwoFactorService
	RecordService    *service.RecordService
	EnvelopeService  *service.EnvelopeService
}

// NewRouter builds a router. verifier must accept access tokens only.
func NewRouter(
	verifier jwtx.Verifier,
	buildVersion string,
	st store.Store,
	blobs blob.Store,
	th throttle.Throttle,
	logger *slog.Logger,
	opts Options,
) *Router {
	if opts.RateLimits == (httpx.RateLimits{}) {
		opts.RateLimits = httpx.DefaultRateLimits()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}

	r := &Router{
		Mux:          http.NewServeMux(),
		verifier:     verifier,
		limits:       opts.RateLimits,
		maxUpload:    opts.MaxUploadBytes,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		blobs:        blobs,
		throttle:     th,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerTwoFactor()
	r.registerRecords()
	r.registerEnvelopes()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// authed wraps h with bearer authentication and a per-account limit.
func (r *Router) authed(h http.HandlerFunc, limit httpx.RateLimitConfig, maxBody int64) http.Handler {
	return httpx.Chain(h,
		httpx.AuthnMiddleware(r.verifier),
		httpx.RateLimitByAccount(limit),
		httpx.MaxBodyBytes(maxBody),
	)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{AuthService: r.AuthService}

	// Credential and code checks - strict rate limit by IP
	strict := func(hf http.HandlerFunc) http.Handler {
		return httpx.Chain(hf,
			httpx.RateLimitByIP(r.limits.Strict),
			httpx.MaxBodyBytes(maxJSONBytes),
		)
	}
	// Token handling - moderate rate limit by IP
	moderate := func(hf http.HandlerFunc) http.Handler {
		return httpx.Chain(hf,
			httpx.RateLimitByIP(r.limits.Moderate),
			httpx.MaxBodyBytes(maxJSONBytes),
		)
	}

	r.Mux.Handle("POST /v1/auth/register", strict(h.HandleRegister))
	r.Mux.Handle("POST /v1/auth/login", strict(h.HandleLogin))
	r.Mux.Handle("POST /v1/auth/login/2fa", strict(h.HandleTwoFactorLogin))
	r.Mux.Handle("POST /v1/auth/refresh", moderate(h.HandleRefresh))
	r.Mux.Handle("POST /v1/auth/logout", moderate(h.HandleLogout))
}

func (r *Router) registerTwoFactor() {
	h := &TwoFactorHandler{TwoFactorService: r.TwoFactorService}

	r.Mux.Handle("POST /v1/2fa/enable", r.authed(h.HandleEnable, r.limits.Moderate, maxJSONBytes))
	// Code guessing - strict rate limit by account
	r.Mux.Handle("POST /v1/2fa/confirm", r.authed(h.HandleConfirm, r.limits.Strict, maxJSONBytes))
	r.Mux.Handle("DELETE /v1/2fa", r.authed(h.HandleDisable, r.limits.Moderate, maxJSONBytes))
}

func (r *Router) registerRecords() {
	h := &RecordsHandler{RecordService: r.RecordService}

	r.Mux.Handle("POST /v1/records", r.authed(h.HandleCreate, r.limits.Lenient, maxJSONBytes))
	r.Mux.Handle("GET /v1/records", r.authed(h.HandleList, r.limits.Lenient, maxJSONBytes))
}

func (r *Router) registerEnvelopes() {
	h := &EnvelopesHandler{EnvelopeService: r.EnvelopeService}

	r.Mux.Handle("POST /v1/records/{id}/envelopes", r.authed(h.HandleUpload, r.limits.Lenient, r.maxUpload))
	r.Mux.Handle("GET /v1/records/{id}/envelopes", r.authed(h.HandleList, r.limits.Lenient, maxJSONBytes))
	r.Mux.Handle("GET /v1/envelopes/{id}", r.authed(h.HandleDownload, r.limits.Lenient, maxJSONBytes))
	r.Mux.Handle("DELETE /v1/envelopes/{id}", r.authed(h.HandleDelete, r.limits.Lenient, maxJSONBytes))
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(r.limits.Lenient),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.blobs, r.throttle),
			httpx.RateLimitByIP(r.limits.Lenient),
		),
	)
}
