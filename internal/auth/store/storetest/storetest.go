// Package storetest is a conformance suite every store.Store driver runs.
package storetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/medvault/internal/auth/domain"
	"github.com/aussiebroadwan/medvault/internal/auth/store"
	"github.com/aussiebroadwan/medvault/pkg/idx"
	"github.com/stretchr/testify/require"
)

// Factory returns a migrated, empty store.
type Factory func(t *testing.T) store.Store

// Run executes the suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("accounts", func(t *testing.T) { testAccounts(t, newStore(t)) })
	t.Run("two_factor", func(t *testing.T) { testTwoFactor(t, newStore(t)) })
	t.Run("refresh_sessions", func(t *testing.T) { testRefreshSessions(t, newStore(t)) })
	t.Run("consume_once", func(t *testing.T) { testConsumeOnce(t, newStore(t)) })
	t.Run("records_and_envelopes", func(t *testing.T) { testEnvelopes(t, newStore(t)) })
	t.Run("tx_rollback", func(t *testing.T) { testTxRollback(t, newStore(t)) })
}

// Account builds a valid account for email.
func Account(email string) domain.Account {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return domain.Account{
		ID:                idx.New().String(),
		Email:             email,
		DisplayName:       "Test",
		CredentialHash:    "$argon2id$v=19$m=65536,t=3,p=4$c2FsdA$aGFzaA",
		KeyDerivationSalt: "c2FsdHNhbHRzYWx0c2FsdHNhbHRzYWx0c2FsdHNhbA==",
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func testAccounts(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := Account("alice@example.com")
	require.NoError(t, s.Accounts().Create(ctx, a))

	got, err := s.Accounts().GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, a.ID, got.ID)
	require.Equal(t, a.KeyDerivationSalt, got.KeyDerivationSalt)
	require.Equal(t, a.CreatedAt, got.CreatedAt)
	require.True(t, got.Active())
	require.False(t, got.TwoFactor.Enabled())

	dup := Account("alice@example.com")
	err = s.Accounts().Create(ctx, dup)
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	_, err = s.Accounts().GetByID(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Accounts().SetActive(ctx, a.ID, false))
	got, err = s.Accounts().GetByID(ctx, a.ID)
	require.NoError(t, err)
	require.False(t, got.Active())

	require.NoError(t, s.Accounts().SetActive(ctx, a.ID, true))
	got, err = s.Accounts().GetByID(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, got.Active())

	require.ErrorIs(t, s.Accounts().SetActive(ctx, "missing", false), store.ErrNotFound)

	require.NoError(t, s.Accounts().SetCredentialHash(ctx, a.ID, "$argon2id$rehashed"))
	got, err = s.Accounts().GetByID(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, "$argon2id$rehashed", got.CredentialHash)
	require.ErrorIs(t, s.Accounts().SetCredentialHash(ctx, "missing", "x"), store.ErrNotFound)
}

func testTwoFactor(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := Account("bob@example.com")
	require.NoError(t, s.Accounts().Create(ctx, a))

	ok, err := s.Accounts().BeginTwoFactor(ctx, a.ID, "SECRETZ")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = s.Accounts().BeginTwoFactor(ctx, a.ID, "SECRETA")
	require.NoError(t, err)
	require.True(t, ok, "pending secrets can be replaced")

	// Wrong secret does not confirm.
	ok, err = s.Accounts().ConfirmTwoFactor(ctx, a.ID, "SECRETB")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = s.Accounts().ConfirmTwoFactor(ctx, a.ID, "SECRETA")
	require.NoError(t, err)
	require.True(t, ok)

	got, err := s.Accounts().GetByID(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, got.TwoFactor.Enabled())
	secret, _ := got.TwoFactor.Secret()
	require.Equal(t, "SECRETA", secret)

	// Already enabled: no pending row to swap.
	ok, err = s.Accounts().ConfirmTwoFactor(ctx, a.ID, "SECRETA")
	require.NoError(t, err)
	require.False(t, ok)

	// Enabled never falls back to pending.
	ok, err = s.Accounts().BeginTwoFactor(ctx, a.ID, "SECRETC")
	require.NoError(t, err)
	require.False(t, ok)
	got, err = s.Accounts().GetByID(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, got.TwoFactor.Enabled())
	secret, _ = got.TwoFactor.Secret()
	require.Equal(t, "SECRETA", secret)

	ok, err = s.Accounts().BeginTwoFactor(ctx, "missing", "SECRETC")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Accounts().SetTwoFactor(ctx, a.ID, domain.TwoFactorOff()))
	got, err = s.Accounts().GetByID(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TwoFactorDisabled, got.TwoFactor.Status())
	require.Nil(t, got.TwoFactor.SecretColumn())
}

func newSession(accountID, hash string, expires time.Time) domain.RefreshSession {
	return domain.RefreshSession{
		ID:           idx.New().String(),
		AccountID:    accountID,
		TokenHash:    hash,
		ExpiresAt:    expires,
		IssuedFromIP: "192.0.2.1",
		CreatedAt:    time.Now().UTC(),
	}
}

func testRefreshSessions(t *testing.T, s store.Store) {
	ctx := context.Background()
	now := time.Now().UTC()
	a := Account("carol@example.com")
	require.NoError(t, s.Accounts().Create(ctx, a))

	live := newSession(a.ID, "hash-live", now.Add(time.Hour))
	expired := newSession(a.ID, "hash-expired", now.Add(-time.Minute))
	require.NoError(t, s.RefreshSessions().Create(ctx, live))
	require.NoError(t, s.RefreshSessions().Create(ctx, expired))
	require.ErrorIs(t, s.RefreshSessions().Create(ctx, newSession(a.ID, "hash-live", now)), store.ErrAlreadyExists)

	_, err := s.RefreshSessions().Consume(ctx, "hash-expired", now)
	require.ErrorIs(t, err, store.ErrNotFound)

	got, err := s.RefreshSessions().Consume(ctx, "hash-live", now)
	require.NoError(t, err)
	require.Equal(t, live.ID, got.ID)
	require.NotNil(t, got.RevokedAt)

	_, err = s.RefreshSessions().Consume(ctx, "hash-live", now)
	require.ErrorIs(t, err, store.ErrNotFound)

	// Revoke is idempotent and ignores unknown hashes.
	require.NoError(t, s.RefreshSessions().Revoke(ctx, "hash-live", now))
	require.NoError(t, s.RefreshSessions().Revoke(ctx, "hash-unknown", now))

	require.NoError(t, s.RefreshSessions().Create(ctx, newSession(a.ID, "hash-a", now.Add(time.Hour))))
	require.NoError(t, s.RefreshSessions().Create(ctx, newSession(a.ID, "hash-b", now.Add(time.Hour))))
	n, err := s.RefreshSessions().RevokeAllForAccount(ctx, a.ID, now)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	n, err = s.RefreshSessions().DeleteStale(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 4, n)

	_, err = s.RefreshSessions().GetByHash(ctx, "hash-a")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testConsumeOnce(t *testing.T, s store.Store) {
	ctx := context.Background()
	now := time.Now().UTC()
	a := Account("dave@example.com")
	require.NoError(t, s.Accounts().Create(ctx, a))
	require.NoError(t, s.RefreshSessions().Create(ctx, newSession(a.ID, "hash-race", now.Add(time.Hour))))

	const workers = 16
	var (
		wg  sync.WaitGroup
		won atomic.Int32
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.RefreshSessions().Consume(ctx, "hash-race", now)
			if err == nil {
				won.Add(1)
				return
			}
			if !errors.Is(err, store.ErrNotFound) {
				t.Errorf("consume: %v", err)
			}
		}()
	}
	wg.Wait()
	require.EqualValues(t, 1, won.Load())
}

func testEnvelopes(t *testing.T, s store.Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	a := Account("erin@example.com")
	other := Account("frank@example.com")
	require.NoError(t, s.Accounts().Create(ctx, a))
	require.NoError(t, s.Accounts().Create(ctx, other))

	rec := domain.Record{ID: idx.New().String(), AccountID: a.ID, Label: "Bloodwork", CreatedAt: now}
	require.NoError(t, s.Records().Create(ctx, rec))

	recs, err := s.Records().List(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	recs, err = s.Records().List(ctx, other.ID)
	require.NoError(t, err)
	require.Empty(t, recs)

	_, err = s.Records().Get(ctx, other.ID, rec.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	server := domain.FileEnvelope{
		ID:         idx.New().String(),
		AccountID:  a.ID,
		RecordID:   rec.ID,
		StorageKey: "envelopes/" + a.ID + "/one",
		MimeType:   "application/pdf",
		PlainSize:  10,
		CipherSize: 10,
		Protection: domain.ServerManaged{
			Framing:           domain.CipherFraming{Nonce: make([]byte, 12), Tag: make([]byte, 16)},
			DisplayNameCipher: "aa:bb:cc",
		},
		CreatedAt: now,
	}
	opaque := domain.FileEnvelope{
		ID:         idx.New().String(),
		AccountID:  a.ID,
		RecordID:   rec.ID,
		StorageKey: "envelopes/" + a.ID + "/two",
		MimeType:   "application/octet-stream",
		PlainSize:  7,
		CipherSize: 7,
		Protection: domain.ClientOpaque{DisplayName: "scan.png"},
		CreatedAt:  now.Add(time.Millisecond),
	}
	require.NoError(t, s.Envelopes().Create(ctx, server))
	require.NoError(t, s.Envelopes().Create(ctx, opaque))

	got, err := s.Envelopes().Get(ctx, a.ID, server.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ModeServerManaged, got.Mode())
	sm := got.Protection.(domain.ServerManaged)
	require.Len(t, sm.Framing.Nonce, 12)
	require.Len(t, sm.Framing.Tag, 16)
	require.Equal(t, "aa:bb:cc", sm.DisplayNameCipher)

	got, err = s.Envelopes().Get(ctx, a.ID, opaque.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ClientOpaque{DisplayName: "scan.png"}, got.Protection)

	_, err = s.Envelopes().Get(ctx, other.ID, opaque.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	list, err := s.Envelopes().ListByRecord(ctx, a.ID, rec.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, server.ID, list[0].ID)

	require.ErrorIs(t, s.Envelopes().Delete(ctx, other.ID, server.ID), store.ErrNotFound)
	require.NoError(t, s.Envelopes().Delete(ctx, a.ID, server.ID))
	_, err = s.Envelopes().Get(ctx, a.ID, server.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testTxRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := Account("grace@example.com")
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.Accounts().Create(ctx, a))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.Accounts().GetByID(ctx, a.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	err = s.WithTx(ctx, func(tx store.Tx) error {
		return tx.Accounts().Create(ctx, a)
	})
	require.NoError(t, err)
	_, err = s.Accounts().GetByID(ctx, a.ID)
	require.NoError(t, err)
}
