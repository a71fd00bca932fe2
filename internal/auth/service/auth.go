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
	"github.com/aussiebroadwan/medvault/pkg/cryptox"
	"github.com/aussiebroadwan/medvault/pkg/idx"
	"github.com/aussiebroadwan/medvault/pkg/jwtx"
	"github.com/aussiebroadwan/medvault/pkg/otpx"
	"github.com/aussiebroadwan/medvault/pkg/slogx"
)

// AuthService drives register, login, two-factor login, refresh and logout.
type AuthService struct {
	Store    store.Store
	Hasher   *cryptox.Hasher
	Sessions *SessionService
	TOTP     *otpx.TOTP

	// Throttle counts failed logins per email and failed codes per account.
	// Nil means no throttling.
	Throttle throttle.Throttle
}

type RegisterInput struct {
	Email       string
	Credential  string
	DisplayName string
}

// Session is a full login: the account, its key-derivation salt and a
// token pair.
type Session struct {
	Account           domain.AccountView
	KeyDerivationSalt string
	Tokens            domain.TokenPair
}

// LoginResult holds either a Session or, when the account has two-factor
// enabled, only a pre-session token.
type LoginResult struct {
	Session *Session

	TwoFactorRequired   bool
	PreSessionToken     string
	PreSessionExpiresIn time.Duration
}

// RefreshResult carries no salt; refresh does not re-authenticate the
// credential.
type RefreshResult struct {
	Account domain.AccountView
	Tokens  domain.TokenPair
}

// Register creates an account and logs it straight in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput, meta domain.ClientMeta) (Session, error) {
	l := slogx.FromContext(ctx)

	// 1. Validate input
	email, err := domain.NormalizeEmail(in.Email)
	if err != nil {
		return Session{}, err
	}
	if err := domain.ValidateCredential(in.Credential); err != nil {
		return Session{}, err
	}
	displayName, err := domain.NormalizeDisplayName(in.DisplayName)
	if err != nil {
		return Session{}, err
	}

	// 2. Hash and salt before touching the store
	hash, err := s.Hasher.Hash(in.Credential)
	if err != nil {
		return Session{}, fmt.Errorf("hash credential: %w", err)
	}
	salt, err := cryptox.IssueSalt()
	if err != nil {
		return Session{}, err
	}

	now := s.Sessions.now()
	account := domain.Account{
		ID:                idx.NewAt(now).String(),
		Email:             email,
		DisplayName:       displayName,
		CredentialHash:    hash,
		KeyDerivationSalt: salt,
		TwoFactor:         domain.TwoFactorOff(),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	// 3. Persist the account and its first session together
	var tokens domain.TokenPair
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Accounts().Create(ctx, account); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return domain.ErrEmailTaken
			}
			return err
		}
		tokens, err = s.Sessions.issue(ctx, tx.RefreshSessions(), account.ID, []string{jwtx.AMRPassword}, meta, now)
		return err
	})
	if err != nil {
		return Session{}, err
	}

	l.Info("account registered", slog.String("account_id", account.ID), slogx.Email(email))
	return Session{Account: account.View(), KeyDerivationSalt: salt, Tokens: tokens}, nil
}

// Login checks the credential. Unknown email and wrong credential give the
// same error after the same amount of hashing work.
func (s *AuthService) Login(ctx context.Context, email, credential string, meta domain.ClientMeta) (LoginResult, error) {
	l := slogx.FromContext(ctx)

	// Oversized input is refused before any hashing work.
	if len(credential) > domain.MaxCredentialLen {
		return LoginResult{}, domain.ErrInvalidCredentials
	}

	email, err := domain.NormalizeEmail(email)
	if err != nil {
		s.Hasher.VerifyDummy(credential)
		return LoginResult{}, domain.ErrInvalidCredentials
	}

	// 1. START: lockout check
	if err := s.checkThrottle(ctx, "login:"+email); err != nil {
		return LoginResult{}, err
	}

	// 2. CREDENTIAL_CHECKED
	account, err := s.Store.Accounts().GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return LoginResult{}, err
		}
		s.Hasher.VerifyDummy(credential)
		s.recordFailure(ctx, "login:"+email)
		l.Info("login failed", slogx.Email(email))
		return LoginResult{}, domain.ErrInvalidCredentials
	}
	if !s.Hasher.Verify(account.CredentialHash, credential) {
		s.recordFailure(ctx, "login:"+email)
		l.Info("login failed", slogx.Email(email))
		return LoginResult{}, domain.ErrInvalidCredentials
	}
	if !account.Active() {
		l.Info("login refused for disabled account", slog.String("account_id", account.ID))
		return LoginResult{}, domain.ErrAccountDisabled
	}
	s.resetThrottle(ctx, "login:"+email)
	s.rehash(ctx, account, credential)

	// 3a. TWOFACTOR_PENDING
	if account.TwoFactor.Enabled() {
		pre, err := s.Sessions.IssuePreSession(account.ID)
		if err != nil {
			return LoginResult{}, fmt.Errorf("sign pre-session token: %w", err)
		}
		return LoginResult{
			TwoFactorRequired:   true,
			PreSessionToken:     pre,
			PreSessionExpiresIn: s.Sessions.PreSessionTTL,
		}, nil
	}

	// 3b. SESSION_ISSUED
	session, err := s.openSession(ctx, account, []string{jwtx.AMRPassword}, meta)
	if err != nil {
		return LoginResult{}, err
	}
	l.Info("login succeeded", slog.String("account_id", account.ID))
	return LoginResult{Session: &session}, nil
}

// CompleteTwoFactorLogin turns a pre-session token and a valid code into a
// full session. A wrong code leaves the pre-session token usable until it
// expires.
func (s *AuthService) CompleteTwoFactorLogin(ctx context.Context, preSessionToken, code string, meta domain.ClientMeta) (Session, error) {
	l := slogx.FromContext(ctx)

	accountID, err := s.Sessions.VerifyPreSession(preSessionToken)
	if err != nil {
		return Session{}, err
	}
	if !otpx.WellFormed(code) {
		return Session{}, domain.Validationf("code", "must be %d digits", otpx.Digits)
	}

	account, err := s.Store.Accounts().GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, domain.ErrInvalidCredentials
		}
		return Session{}, err
	}
	if !account.Active() {
		return Session{}, domain.ErrAccountDisabled
	}
	secret, ok := account.TwoFactor.Secret()
	if !account.TwoFactor.Enabled() || !ok {
		// Two-factor was switched off after the pre-session was issued.
		return Session{}, domain.ErrInvalidCredentials
	}

	key := "2fa:" + account.ID
	if err := s.checkThrottle(ctx, key); err != nil {
		return Session{}, err
	}
	if !s.TOTP.VerifyCode(secret, code, s.Sessions.now()) {
		s.recordFailure(ctx, key)
		l.Info("two-factor code rejected", slog.String("account_id", account.ID))
		return Session{}, domain.ErrInvalidTwoFactorCode
	}
	s.resetThrottle(ctx, key)

	session, err := s.openSession(ctx, account, []string{jwtx.AMRPassword, jwtx.AMROTP}, meta)
	if err != nil {
		return Session{}, err
	}
	l.Info("two-factor login succeeded", slog.String("account_id", account.ID))
	return session, nil
}

// Refresh rotates the refresh token. It never re-checks the credential or
// the second factor.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, meta domain.ClientMeta) (RefreshResult, error) {
	pair, account, err := s.Sessions.Rotate(ctx, refreshToken, meta)
	if err != nil {
		return RefreshResult{}, err
	}
	return RefreshResult{Account: account.View(), Tokens: pair}, nil
}

// Logout revokes the refresh token. It is idempotent.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.Sessions.Revoke(ctx, refreshToken)
}

func (s *AuthService) openSession(ctx context.Context, account domain.Account, amr []string, meta domain.ClientMeta) (Session, error) {
	tokens, err := s.Sessions.Issue(ctx, s.Store.RefreshSessions(), account.ID, amr, meta)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Account:           account.View(),
		KeyDerivationSalt: account.KeyDerivationSalt,
		Tokens:            tokens,
	}, nil
}

// checkThrottle fails open when the throttle backend is unreachable.
// rehash upgrades a hash made under a weaker cost profile. Failure only
// costs the upgrade, never the login.
func (s *AuthService) rehash(ctx context.Context, account domain.Account, credential string) {
	if !s.Hasher.NeedsRehash(account.CredentialHash) {
		return
	}
	l := slogx.FromContext(ctx)

	hash, err := s.Hasher.Hash(credential)
	if err == nil {
		err = s.Store.Accounts().SetCredentialHash(ctx, account.ID, hash)
	}
	if err != nil {
		l.Warn("credential rehash failed", slog.String("account_id", account.ID), slog.Any("error", err))
		return
	}
	p := s.Hasher.Params()
	l.Info("credential rehashed",
		slog.String("account_id", account.ID),
		slog.Uint64("memory_kib", uint64(p.Memory)),
		slog.Uint64("iterations", uint64(p.Iterations)),
	)
}

func (s *AuthService) checkThrottle(ctx context.Context, key string) error {
	return checkThrottle(ctx, s.Throttle, key)
}

func (s *AuthService) recordFailure(ctx context.Context, key string) {
	recordFailure(ctx, s.Throttle, key)
}

func (s *AuthService) resetThrottle(ctx context.Context, key string) {
	resetThrottle(ctx, s.Throttle, key)
}

func checkThrottle(ctx context.Context, th throttle.Throttle, key string) error {
	if th == nil {
		return nil
	}
	err := th.Check(ctx, key)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, throttle.ErrLocked):
		return domain.ErrTooManyAttempts
	default:
		slogx.FromContext(ctx).Warn("throttle unavailable", slog.Any("error", err))
		return nil
	}
}

func recordFailure(ctx context.Context, th throttle.Throttle, key string) {
	if th == nil {
		return
	}
	if err := th.Fail(ctx, key); err != nil {
		slogx.FromContext(ctx).Warn("failed to record attempt", slog.Any("error", err))
	}
}

func resetThrottle(ctx context.Context, th throttle.Throttle, key string) {
	if th == nil {
		return
	}
	if err := th.Reset(ctx, key); err != nil {
		slogx.FromContext(ctx).Warn("failed to reset attempts", slog.Any("error", err))
	}
}
