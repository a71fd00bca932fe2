package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/medvault/internal/auth/domain"
	"github.com/aussiebroadwan/medvault/pkg/authsdk"
	"github.com/aussiebroadwan/medvault/pkg/httpx"
	"github.com/aussiebroadwan/medvault/pkg/slogx"
)

// errorTable maps service errors to responses. Specific errors come before
// the kind they wrap.
var errorTable = []struct {
	target error
	api    *authsdk.APIError
}{
	{domain.ErrTooManyAttempts, authsdk.ErrTooManyAttempts},
	{domain.ErrAccountDisabled, authsdk.ErrAccountDisabled},
	{domain.ErrInvalidRefresh, authsdk.ErrInvalidRefreshToken},
	{domain.ErrInvalidTwoFactorCode, authsdk.ErrInvalidTwoFactorCode},
	{domain.ErrNoPendingTwoFactor, authsdk.ErrNoPendingTwoFactor},
	{domain.ErrInvalidCredentials, authsdk.ErrInvalidCredentials},
	{domain.ErrAuthentication, authsdk.ErrInvalidCredentials},
	{domain.ErrEmailTaken, authsdk.ErrEmailTaken},
	{domain.ErrTwoFactorAlreadyEnabled, authsdk.ErrTwoFactorAlreadyEnabled},
	{domain.ErrConflict, authsdk.ErrConflict},
	{domain.ErrAuthorization, authsdk.ErrForbidden},
	{domain.ErrRecordNotFound, authsdk.ErrRecordNotFound},
	{domain.ErrEnvelopeNotFound, authsdk.ErrEnvelopeNotFound},
	{domain.ErrNotFound, authsdk.ErrNotFound},
	{domain.ErrDecryption, authsdk.ErrDecryptionFailed},
}

// writeServiceError is the single place service errors become HTTP
// responses. Anything unrecognised is a 500 and gets logged.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	log := slogx.FromContext(r.Context())

	var fe *domain.FieldError
	if errors.As(err, &fe) {
		authsdk.ErrValidation.WithField(fe.Field, fe.Message).WriteError(w)
		return
	}
	if errors.Is(err, domain.ErrValidation) {
		authsdk.ErrValidation.WriteError(w)
		return
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		authsdk.ErrRequestTooLarge.WriteError(w)
		return
	}

	for _, e := range errorTable {
		if errors.Is(err, e.target) {
			if errors.Is(err, domain.ErrDecryption) {
				log.Error("envelope failed to decrypt", slog.Any("error", err))
			}
			e.api.WriteError(w)
			return
		}
	}

	log.Error("unhandled service error", slog.Any("error", err))
	authsdk.ErrServerError.WriteError(w)
}

// decodeBody reads a JSON request body into dst, writing the error
// response itself when it fails.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := httpx.DecodeJSON(r, dst)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		authsdk.ErrRequestTooLarge.WriteError(w)
	case errors.Is(err, httpx.ErrUnsupportedMediaType):
		authsdk.NewAPIError(http.StatusUnsupportedMediaType, authsdk.ErrorCodeInvalidRequest, "content-type must be application/json").WriteError(w)
	default:
		slogx.FromContext(r.Context()).Warn("failed to parse request", "err", err)
		authsdk.ErrInvalidRequest.WithField("", "invalid JSON body").WriteError(w)
	}
	return false
}

// accountID returns the authenticated caller, writing 401 when there is none.
func accountID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := httpx.AccountID(r.Context())
	if id == "" {
		authsdk.ErrInvalidToken.WriteError(w)
		return "", false
	}
	return id, true
}
