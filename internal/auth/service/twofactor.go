package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/medvault/internal/auth/domain"
	"github.com/aussiebroadwan/medvault/internal/auth/store"
	"github.com/aussiebroadwan/medvault/internal/auth/throttle"
	"github.com/aussiebroadwan/medvault/pkg/otpx"
	"github.com/aussiebroadwan/medvault/pkg/slogx"
)

// TwoFactorService moves an account through
// DISABLED -> PENDING -> ENABLED and back to DISABLED. Turning the factor
// on or off revokes every refresh session of the account.
type TwoFactorService struct {
	Store    store.Store
	Sessions *SessionService
	TOTP     *otpx.TOTP
	Throttle throttle.Throttle
	Now      func() time.Time
}

// Enable starts enrollment. Calling it again while pending replaces the
// pending secret. An enabled account is never moved back to pending.
func (s *TwoFactorService) Enable(ctx context.Context, accountID string) (domain.Enrollment, error) {
	account, err := s.account(ctx, accountID)
	if err != nil {
		return domain.Enrollment{}, err
	}
	if account.TwoFactor.Enabled() {
		return domain.Enrollment{}, domain.ErrTwoFactorAlreadyEnabled
	}

	secret, uri, err := s.TOTP.GenerateSecret(account.Email)
	if err != nil {
		return domain.Enrollment{}, err
	}
	ok, err := s.Store.Accounts().BeginTwoFactor(ctx, account.ID, secret)
	if err != nil {
		return domain.Enrollment{}, fmt.Errorf("store pending secret: %w", err)
	}
	if !ok {
		// Confirmed between the read and the write.
		return domain.Enrollment{}, domain.ErrTwoFactorAlreadyEnabled
	}

	slogx.FromContext(ctx).Info("two-factor enrollment started", slog.String("account_id", account.ID))
	return domain.Enrollment{Secret: secret, ProvisioningURI: uri}, nil
}

// Confirm enables two-factor once code matches the pending secret. A wrong
// code leaves the account pending.
func (s *TwoFactorService) Confirm(ctx context.Context, accountID, code string) error {
	l := slogx.FromContext(ctx)

	if !otpx.WellFormed(code) {
		return domain.Validationf("code", "must be %d digits", otpx.Digits)
	}
	account, err := s.account(ctx, accountID)
	if err != nil {
		return err
	}
	secret, ok := account.TwoFactor.Secret()
	if !account.TwoFactor.Pending() || !ok {
		return domain.ErrNoPendingTwoFactor
	}

	key := "2fa:" + account.ID
	if err := checkThrottle(ctx, s.Throttle, key); err != nil {
		return err
	}
	if !s.TOTP.VerifyCode(secret, code, clock(s.Now)) {
		recordFailure(ctx, s.Throttle, key)
		return domain.ErrInvalidTwoFactorCode
	}

	var revoked int64
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		// Compare-and-swap on the pending secret we just verified against.
		ok, err := tx.Accounts().ConfirmTwoFactor(ctx, account.ID, secret)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrNoPendingTwoFactor
		}
		n, err := s.Sessions.RevokeAll(ctx, tx.RefreshSessions(), account.ID)
		revoked = n
		return err
	})
	if err != nil {
		return err
	}
	resetThrottle(ctx, s.Throttle, key)

	l.Info("two-factor enabled", slog.String("account_id", account.ID), slog.Int64("sessions_revoked", revoked))
	return nil
}

// Disable clears the state and the secret.
func (s *TwoFactorService) Disable(ctx context.Context, accountID string) error {
	account, err := s.account(ctx, accountID)
	if err != nil {
		return err
	}

	var revoked int64
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Accounts().SetTwoFactor(ctx, account.ID, domain.TwoFactorOff()); err != nil {
			return err
		}
		n, err := s.Sessions.RevokeAll(ctx, tx.RefreshSessions(), account.ID)
		revoked = n
		return err
	})
	if err != nil {
		return err
	}
	slogx.FromContext(ctx).Info("two-factor disabled", slog.String("account_id", account.ID), slog.Int64("sessions_revoked", revoked))
	return nil
}

func (s *TwoFactorService) account(ctx context.Context, accountID string) (domain.Account, error) {
	account, err := s.Store.Accounts().GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Account{}, domain.ErrInvalidCredentials
		}
		return domain.Account{}, err
	}
	return account, nil
}
