package http

import (
	"net/http"

	"github.com/aussiebroadwan/medvault/internal/auth/service"
	"github.com/aussiebroadwan/medvault/pkg/authsdk"
	"github.com/aussiebroadwan/medvault/pkg/httpx"
)

// TwoFactorHandler manages TOTP enrollment for the authenticated account.
type TwoFactorHandler struct {
	TwoFactorService *service.TwoFactorService
}

// HandleEnable handles POST /v1/2fa/enable.
func (h *TwoFactorHandler) HandleEnable(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	enrollment, err := h.TwoFactorService.Enable(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.TwoFactorEnrollResponse{
		Secret:          enrollment.Secret,
		ProvisioningURI: enrollment.ProvisioningURI,
	})
}

// HandleConfirm handles POST /v1/2fa/confirm.
func (h *TwoFactorHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}
	var req authsdk.TwoFactorConfirmRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.TwoFactorService.Confirm(r.Context(), id, req.Code); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDisable handles DELETE /v1/2fa.
func (h *TwoFactorHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	if err := h.TwoFactorService.Disable(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
