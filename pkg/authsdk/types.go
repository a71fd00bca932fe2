package authsdk

import "time"

// Envelope modes as they travel on the wire.
const (
	ModeServerManaged = "SERVER_MANAGED"
	ModeClientOpaque  = "CLIENT_OPAQUE"
)

// Download response headers. The display name is query-escaped.
const (
	HeaderEnvelopeID          = "X-Envelope-Id"
	HeaderEnvelopeMode        = "X-Envelope-Mode"
	HeaderEnvelopeDisplayName = "X-Envelope-Display-Name"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	// Error is the stable error code (e.g. "invalid_credentials")
	Error string `json:"error"`

	// ErrorDescription is a human-readable description of the error
	ErrorDescription string `json:"error_description"`

	// Field names the offending input for validation errors
	Field string `json:"field,omitempty"`
}

// ============================================================================
// Authentication
// ============================================================================

type RegisterRequest struct {
	Email       string `json:"email"`
	Credential  string `json:"credential"`
	DisplayName string `json:"display_name,omitempty"`
}

type LoginRequest struct {
	Email      string `json:"email"`
	Credential string `json:"credential"`
}

type TwoFactorLoginRequest struct {
	PreSessionToken string `json:"pre_session_token"`
	Code            string `json:"code"`
}

// RefreshRequest is also the logout body.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse is the token pair issued on login and refresh.
type TokenResponse struct {
	// AccessToken is the HS256 JWT sent as a bearer token
	AccessToken string `json:"access_token"`

	// RefreshToken is single use; every refresh returns a new one
	RefreshToken string `json:"refresh_token"`

	// TokenType is always "Bearer"
	TokenType string `json:"token_type"`

	// ExpiresIn is the access token lifetime in seconds
	ExpiresIn int `json:"expires_in"`

	// RefreshExpiresIn is the refresh token lifetime in seconds
	RefreshExpiresIn int `json:"refresh_expires_in"`
}

type AccountResponse struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	DisplayName      string    `json:"display_name,omitempty"`
	TwoFactorEnabled bool      `json:"two_factor_enabled"`
	CreatedAt        time.Time `json:"created_at"`
}

// SessionResponse is returned by register, login and the second login step.
type SessionResponse struct {
	Account AccountResponse `json:"account"`

	// KeyDerivationSalt is the base64 salt the client derives its own
	// encryption key from. It is stable for the life of the account.
	KeyDerivationSalt string `json:"key_derivation_salt"`

	TokenResponse
}

// TwoFactorChallengeResponse is the 202 body of a login that needs a code.
type TwoFactorChallengeResponse struct {
	Status          string `json:"status"` // always "two_factor_required"
	PreSessionToken string `json:"pre_session_token"`
	ExpiresIn       int    `json:"expires_in"`
}

// RefreshResponse carries no salt; refresh does not re-authenticate.
type RefreshResponse struct {
	Account AccountResponse `json:"account"`
	TokenResponse
}

// ============================================================================
// Two-factor
// ============================================================================

type TwoFactorEnrollResponse struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioning_uri"`
}

type TwoFactorConfirmRequest struct {
	Code string `json:"code"`
}

// ============================================================================
// Records and envelopes
// ============================================================================

type CreateRecordRequest struct {
	Label string `json:"label"`
}

type RecordResponse struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
}

type RecordListResponse struct {
	Records []RecordResponse `json:"records"`
}

type EnvelopeResponse struct {
	ID          string    `json:"id"`
	RecordID    string    `json:"record_id"`
	Mode        string    `json:"mode"`
	MimeType    string    `json:"mime_type"`
	PlainSize   int64     `json:"plain_size"`
	CipherSize  int64     `json:"cipher_size"`
	DisplayName string    `json:"display_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type EnvelopeListResponse struct {
	Envelopes []EnvelopeResponse `json:"envelopes"`
}

// UploadEnvelopeRequest is sent as multipart/form-data.
type UploadEnvelopeRequest struct {
	// Mode is ModeServerManaged or ModeClientOpaque. Empty leaves the
	// choice to the server default.
	Mode        string
	Data        []byte
	MimeType    string
	DisplayName string

	// PlainSize is the size before client-side encryption. Only meaningful
	// for client-opaque uploads.
	PlainSize *int64
}

// EnvelopeDownload is a downloaded envelope. Data is plaintext for
// server-managed envelopes and the uploaded bytes otherwise.
type EnvelopeDownload struct {
	ID          string
	Mode        string
	MimeType    string
	DisplayName string
	Data        []byte
}

// ============================================================================
// Health
// ============================================================================

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks holds per-dependency readiness.
type HealthChecks struct {
	Database string `json:"database"`
	Blobs    string `json:"blobs"`
	Throttle string `json:"throttle,omitempty"`
}
