package authsdk

import (
	"context"
	"net/http"
)

// EnableTwoFactor starts enrollment. The returned secret stays pending
// until ConfirmTwoFactor succeeds.
func (s *Session) EnableTwoFactor(ctx context.Context) (*TwoFactorEnrollResponse, error) {
	resp, err := s.doAuthJSON(ctx, http.MethodPost, "/v1/2fa/enable", nil)
	if err != nil {
		return nil, err
	}

	var out TwoFactorEnrollResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConfirmTwoFactor turns the pending secret on with a current code.
func (s *Session) ConfirmTwoFactor(ctx context.Context, code string) error {
	resp, err := s.doAuthJSON(ctx, http.MethodPost, "/v1/2fa/confirm", TwoFactorConfirmRequest{Code: code})
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// DisableTwoFactor switches two-factor off and discards the secret.
func (s *Session) DisableTwoFactor(ctx context.Context) error {
	resp, err := s.doAuthJSON(ctx, http.MethodDelete, "/v1/2fa", nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}
