package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/medvault/internal/auth/domain"
	"github.com/aussiebroadwan/medvault/internal/auth/service"
	"github.com/aussiebroadwan/medvault/pkg/authsdk"
	"github.com/aussiebroadwan/medvault/pkg/httpx"
)

func clientMeta(r *http.Request) domain.ClientMeta {
	return domain.ClientMeta{IP: httpx.ClientIP(r), UserAgent: r.UserAgent()}
}

func accountResponse(a domain.AccountView) authsdk.AccountResponse {
	return authsdk.AccountResponse{
		ID:               a.ID,
		Email:            a.Email,
		DisplayName:      a.DisplayName,
		TwoFactorEnabled: a.TwoFactorEnabled,
		CreatedAt:        a.CreatedAt,
	}
}

func tokenResponse(p domain.TokenPair) authsdk.TokenResponse {
	return authsdk.TokenResponse{
		AccessToken:      p.AccessToken,
		RefreshToken:     p.RefreshToken,
		TokenType:        p.TokenType,
		ExpiresIn:        int(p.ExpiresIn.Seconds()),
		RefreshExpiresIn: max(int(time.Until(p.RefreshExpiresAt).Seconds()), 0),
	}
}

func sessionResponse(s service.Session) authsdk.SessionResponse {
	return authsdk.SessionResponse{
		Account:           accountResponse(s.Account),
		KeyDerivationSalt: s.KeyDerivationSalt,
		TokenResponse:     tokenResponse(s.Tokens),
	}
}

func recordResponse(r domain.Record) authsdk.RecordResponse {
	return authsdk.RecordResponse{ID: r.ID, Label: r.Label, CreatedAt: r.CreatedAt}
}

func envelopeResponse(e domain.FileEnvelope, displayName string) authsdk.EnvelopeResponse {
	return authsdk.EnvelopeResponse{
		ID:          e.ID,
		RecordID:    e.RecordID,
		Mode:        string(e.Mode()),
		MimeType:    e.MimeType,
		PlainSize:   e.PlainSize,
		CipherSize:  e.CipherSize,
		DisplayName: displayName,
		CreatedAt:   e.CreatedAt,
	}
}
