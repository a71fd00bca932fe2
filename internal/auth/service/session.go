package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/medvault/internal/auth/domain"
	"github.com/aussiebroadwan/medvault/internal/auth/store"
	"github.com/aussiebroadwan/medvault/pkg/cryptox"
	"github.com/aussiebroadwan/medvault/pkg/idx"
	"github.com/aussiebroadwan/medvault/pkg/jwtx"
	"github.com/aussiebroadwan/medvault/pkg/slogx"
)

// SessionService issues, rotates and revokes token pairs. Each token type
// has its own HS256 key so one leaked secret cannot mint the other kinds.
type SessionService struct {
	Store store.Store

	Access     *jwtx.HS256
	Refresh    *jwtx.HS256
	PreSession *jwtx.HS256

	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	PreSessionTTL time.Duration
	Issuer        string

	// Now is overridable in tests. Token validity itself is always checked
	// against the wall clock.
	Now func() time.Time
}

func (s *SessionService) now() time.Time { return clock(s.Now) }

func clock(now func() time.Time) time.Time {
	if now != nil {
		return now().UTC()
	}
	return time.Now().UTC()
}

// Issue mints a token pair for accountID and records the refresh session
// through repo, which may be transaction scoped.
func (s *SessionService) Issue(
	ctx context.Context,
	repo store.RefreshSessions,
	accountID string,
	amr []string,
	meta domain.ClientMeta,
) (domain.TokenPair, error) {
	return s.issue(ctx, repo, accountID, amr, meta, s.now())
}

func (s *SessionService) issue(
	ctx context.Context,
	repo store.RefreshSessions,
	accountID string,
	amr []string,
	meta domain.ClientMeta,
	now time.Time,
) (domain.TokenPair, error) {
	access, err := s.Access.Sign(jwtx.NewClaims(jwtx.TypeAccess, accountID, s.Issuer, amr, s.AccessTTL, now))
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refreshClaims := jwtx.NewClaims(jwtx.TypeRefresh, accountID, s.Issuer, amr, s.RefreshTTL, now)
	refresh, err := s.Refresh.Sign(refreshClaims)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	// Only the fingerprint is stored; the token itself goes to the client.
	session := domain.RefreshSession{
		ID:              idx.NewAt(now).String(),
		AccountID:       accountID,
		TokenHash:       cryptox.FingerprintToken(refresh),
		ExpiresAt:       refreshClaims.ExpiresAt.Time,
		IssuedFromIP:    meta.IP,
		IssuedFromAgent: meta.UserAgent,
		CreatedAt:       now,
	}
	if err := repo.Create(ctx, session); err != nil {
		return domain.TokenPair{}, fmt.Errorf("store refresh session: %w", err)
	}

	return domain.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        "Bearer",
		ExpiresIn:        s.AccessTTL,
		RefreshExpiresAt: session.ExpiresAt,
	}, nil
}

// Rotate exchanges a refresh token for a new pair. The old session is
// consumed by a conditional update, so of several concurrent calls with the
// same token exactly one succeeds. Every non-infrastructure failure is
// domain.ErrInvalidRefresh, whatever the cause.
func (s *SessionService) Rotate(
	ctx context.Context,
	refreshToken string,
	meta domain.ClientMeta,
) (domain.TokenPair, domain.Account, error) {
	l := slogx.FromContext(ctx)
	now := s.now()

	// 1. Signature, expiry and type
	claims, err := s.Refresh.Verify(refreshToken)
	if err != nil {
		l.Debug("refresh token rejected", slog.String("reason", err.Error()))
		return domain.TokenPair{}, domain.Account{}, domain.ErrInvalidRefresh
	}

	fp := cryptox.FingerprintToken(refreshToken)

	var (
		pair    domain.TokenPair
		account domain.Account
	)
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		// 2. Consume the session; missing, expired and already used look the same
		session, err := tx.RefreshSessions().Consume(ctx, fp, now)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				l.Warn("refresh token reuse or unknown session", slog.String("account_id", claims.Subject))
				return domain.ErrInvalidRefresh
			}
			return err
		}
		if session.AccountID != claims.Subject {
			return domain.ErrInvalidRefresh
		}

		// 3. The account must still be allowed in
		account, err = tx.Accounts().GetByID(ctx, session.AccountID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.ErrInvalidRefresh
			}
			return err
		}
		if !account.Active() {
			return domain.ErrInvalidRefresh
		}

		// 4. New pair, same authentication methods as the original login
		pair, err = s.issue(ctx, tx.RefreshSessions(), account.ID, claims.AMR, meta, now)
		return err
	})
	if err != nil {
		return domain.TokenPair{}, domain.Account{}, err
	}
	return pair, account, nil
}

// Revoke marks the session behind refreshToken revoked. Unknown or already
// revoked tokens are not an error.
func (s *SessionService) Revoke(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.Store.RefreshSessions().Revoke(ctx, cryptox.FingerprintToken(refreshToken), s.now())
}

// RevokeAll revokes every live session of accountID through repo, which
// may be transaction scoped.
func (s *SessionService) RevokeAll(ctx context.Context, repo store.RefreshSessions, accountID string) (int64, error) {
	return repo.RevokeAllForAccount(ctx, accountID, s.now())
}

// IssuePreSession mints the short-lived token that bridges a verified
// credential to a verified second factor.
func (s *SessionService) IssuePreSession(accountID string) (string, error) {
	claims := jwtx.NewClaims(jwtx.TypePreSession, accountID, s.Issuer, []string{jwtx.AMRPassword}, s.PreSessionTTL, s.now())
	return s.PreSession.Sign(claims)
}

// VerifyPreSession returns the account a pre-session token was issued to.
func (s *SessionService) VerifyPreSession(token string) (string, error) {
	claims, err := s.PreSession.Verify(token)
	if err != nil {
		return "", domain.ErrInvalidCredentials
	}
	return claims.Subject, nil
}

// VerifyAccess validates an access token. Refresh and pre-session tokens
// fail here since each type is signed with its own key.
func (s *SessionService) VerifyAccess(token string) (jwtx.Claims, error) {
	return s.Access.Verify(token)
}

// Verify implements jwtx.Verifier for the HTTP authentication middleware.
func (s *SessionService) Verify(token string) (jwtx.Claims, error) {
	return s.VerifyAccess(token)
}
