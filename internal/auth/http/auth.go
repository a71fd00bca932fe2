package http

import (
	"net/http"

	"github.com/aussiebroadwan/medvault/internal/auth/service"
	"github.com/aussiebroadwan/medvault/pkg/authsdk"
	"github.com/aussiebroadwan/medvault/pkg/httpx"
	"github.com/aussiebroadwan/medvault/pkg/slogx"
)

// AuthHandler serves register, login, the second login step, refresh and
// logout.
type AuthHandler struct {
	AuthService *service.AuthService
}

// HandleRegister handles POST /v1/auth/register.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RegisterRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sess, err := h.AuthService.Register(r.Context(), service.RegisterInput{
		Email:       req.Email,
		Credential:  req.Credential,
		DisplayName: req.DisplayName,
	}, clientMeta(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, sessionResponse(sess))
}

// HandleLogin handles POST /v1/auth/login. Accounts with two-factor enabled
// get 202 and a pre-session token instead of a session.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.AuthService.Login(r.Context(), req.Email, req.Credential, clientMeta(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if res.TwoFactorRequired {
		challenge := &authsdk.TwoFactorRequiredError{
			PreSessionToken: res.PreSessionToken,
			ExpiresIn:       res.PreSessionExpiresIn,
		}
		challenge.WriteChallenge(w)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, sessionResponse(*res.Session))
}

// HandleTwoFactorLogin handles POST /v1/auth/login/2fa.
func (h *AuthHandler) HandleTwoFactorLogin(w http.ResponseWriter, r *http.Request) {
	var req authsdk.TwoFactorLoginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sess, err := h.AuthService.CompleteTwoFactorLogin(r.Context(), req.PreSessionToken, req.Code, clientMeta(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, sessionResponse(sess))
}

// HandleRefresh handles POST /v1/auth/refresh.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RefreshRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.AuthService.Refresh(r.Context(), req.RefreshToken, clientMeta(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.RefreshResponse{
		Account:       accountResponse(res.Account),
		TokenResponse: tokenResponse(res.Tokens),
	})
}

// HandleLogout handles POST /v1/auth/logout. It always answers 204 so the
// response says nothing about the token.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RefreshRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := h.AuthService.Logout(r.Context(), req.RefreshToken); err != nil {
		slogx.FromContext(r.Context()).Error("logout failed", "err", err)
	}
	w.WriteHeader(http.StatusNoContent)
}
