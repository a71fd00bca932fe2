package authsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aussiebroadwan/medvault/pkg/httpx"
)

// Stable error codes. Clients branch on these, never on descriptions.
const (
	ErrorCodeInvalidRequest          = "invalid_request"
	ErrorCodeValidation              = "validation_error"
	ErrorCodeInvalidCredentials      = "invalid_credentials"
	ErrorCodeAccountDisabled         = "account_disabled"
	ErrorCodeInvalidRefreshToken     = "invalid_refresh_token"
	ErrorCodeInvalidTwoFactorCode    = "invalid_two_factor_code"
	ErrorCodeNoPendingTwoFactor      = "no_pending_two_factor"
	ErrorCodeTooManyAttempts         = "too_many_attempts"
	ErrorCodeInvalidToken            = "invalid_token"
	ErrorCodeForbidden               = "forbidden"
	ErrorCodeEmailTaken              = "email_taken"
	ErrorCodeTwoFactorAlreadyEnabled = "two_factor_already_enabled"
	ErrorCodeConflict                = "conflict"
	ErrorCodeNotFound                = "not_found"
	ErrorCodeRecordNotFound          = "record_not_found"
	ErrorCodeEnvelopeNotFound        = "envelope_not_found"
	ErrorCodeDecryptionFailed        = "decryption_failed"
	ErrorCodeRequestTooLarge         = "request_too_large"
	ErrorCodeRateLimitExceeded       = "rate_limit_exceeded"
	ErrorCodeServerError             = "server_error"
)

// APIError is the error body every endpoint returns. The server writes it
// and the SDK hands it back to callers.
type APIError struct {
	// StatusCode is the HTTP status code for this error
	StatusCode int `json:"-"`

	// Code is the stable error code
	Code string `json:"error"`

	// Description is a human-readable description of the error
	Description string `json:"error_description"`

	// Field names the offending input for validation errors
	Field string `json:"field,omitempty"`
}

func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Description, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Is matches on status and code so callers can write
// errors.Is(err, authsdk.ErrInvalidCredentials).
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	return ok && t.StatusCode == e.StatusCode && t.Code == e.Code
}

// WriteError writes e as the JSON response body.
func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.WriteJSON(w, e.StatusCode, e)
}

// WithField returns a copy of e naming the offending input.
func (e *APIError) WithField(field, description string) *APIError {
	c := *e
	c.Field = field
	c.Description = description
	return &c
}

// NewAPIError creates an APIError with the given status, code and description.
func NewAPIError(statusCode int, code, description string) *APIError {
	return &APIError{StatusCode: statusCode, Code: code, Description: description}
}

var (
	ErrInvalidRequest = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request is malformed or missing required parameters",
	}

	ErrValidation = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeValidation,
		Description: "the request failed validation",
	}

	// ErrInvalidCredentials covers unknown email and wrong credential alike.
	ErrInvalidCredentials = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidCredentials,
		Description: "invalid credentials",
	}

	ErrAccountDisabled = &APIError{
		StatusCode:  http.StatusForbidden,
		Code:        ErrorCodeAccountDisabled,
		Description: "account is disabled",
	}

	ErrInvalidRefreshToken = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidRefreshToken,
		Description: "the refresh token is invalid, expired or already used",
	}

	ErrInvalidTwoFactorCode = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidTwoFactorCode,
		Description: "invalid two-factor code",
	}

	ErrNoPendingTwoFactor = &APIError{
		StatusCode:  http.StatusConflict,
		Code:        ErrorCodeNoPendingTwoFactor,
		Description: "there is no pending two-factor enrollment",
	}

	ErrTooManyAttempts = &APIError{
		StatusCode:  http.StatusTooManyRequests,
		Code:        ErrorCodeTooManyAttempts,
		Description: "too many failed attempts, try again later",
	}

	// ErrRateLimitExceeded is the HTTP rate limiter, distinct from the
	// per-account attempt throttle above.
	ErrRateLimitExceeded = &APIError{
		StatusCode:  http.StatusTooManyRequests,
		Code:        ErrorCodeRateLimitExceeded,
		Description: "rate limit exceeded",
	}

	// ErrInvalidToken is returned when the access token is missing, invalid or expired.
	ErrInvalidToken = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidToken,
		Description: "the access token is missing, invalid or expired",
	}

	ErrForbidden = &APIError{
		StatusCode:  http.StatusForbidden,
		Code:        ErrorCodeForbidden,
		Description: "access denied",
	}

	ErrEmailTaken = &APIError{
		StatusCode:  http.StatusConflict,
		Code:        ErrorCodeEmailTaken,
		Description: "an account with this email already exists",
	}

	ErrTwoFactorAlreadyEnabled = &APIError{
		StatusCode:  http.StatusConflict,
		Code:        ErrorCodeTwoFactorAlreadyEnabled,
		Description: "two-factor authentication is already enabled",
	}

	ErrConflict = &APIError{
		StatusCode:  http.StatusConflict,
		Code:        ErrorCodeConflict,
		Description: "the request conflicts with the current state",
	}

	ErrNotFound = &APIError{
		StatusCode:  http.StatusNotFound,
		Code:        ErrorCodeNotFound,
		Description: "not found",
	}

	ErrRecordNotFound = &APIError{
		StatusCode:  http.StatusNotFound,
		Code:        ErrorCodeRecordNotFound,
		Description: "record not found",
	}

	ErrEnvelopeNotFound = &APIError{
		StatusCode:  http.StatusNotFound,
		Code:        ErrorCodeEnvelopeNotFound,
		Description: "envelope not found",
	}

	ErrDecryptionFailed = &APIError{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeDecryptionFailed,
		Description: "the envelope could not be decrypted",
	}

	ErrRequestTooLarge = &APIError{
		StatusCode:  http.StatusRequestEntityTooLarge,
		Code:        ErrorCodeRequestTooLarge,
		Description: "request body exceeds the upload limit",
	}

	ErrServerError = &APIError{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "internal server error",
	}
)

// TwoFactorRequiredError is returned by Login when the account has
// two-factor enabled. Pass PreSessionToken to CompleteTwoFactorLogin.
type TwoFactorRequiredError struct {
	PreSessionToken string
	ExpiresIn       time.Duration
}

func (e *TwoFactorRequiredError) Error() string {
	return "two-factor code required"
}

// WriteChallenge writes the 202 body a two-factor login step answers with.
func (e *TwoFactorRequiredError) WriteChallenge(w http.ResponseWriter) {
	httpx.WriteJSON(w, http.StatusAccepted, TwoFactorChallengeResponse{
		Status:          "two_factor_required",
		PreSessionToken: e.PreSessionToken,
		ExpiresIn:       int(e.ExpiresIn.Seconds()),
	})
}

// parseErrorResponse turns a non-2xx response into an *APIError.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &APIError{
			StatusCode:  resp.StatusCode,
			Code:        errResp.Error,
			Description: errResp.ErrorDescription,
			Field:       errResp.Field,
		}
	}

	return &APIError{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeServerError,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}

// IsCode reports whether err is an *APIError with the given code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}
