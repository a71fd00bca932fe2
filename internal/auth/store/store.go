package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/medvault/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite, postgres)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable, and a Tx never hands out another Tx so transactions cannot nest.
type Store interface {
	Accounts() Accounts
	RefreshSessions() RefreshSessions
	Records() Records
	Envelopes() Envelopes

	ApplyMigrations(ctx context.Context) error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise. Inside fn only use tx; on sqlite the outer
	// store shares the single connection and would block.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Accounts interface {
	// Create inserts a new account. A taken email is ErrAlreadyExists.
	Create(ctx context.Context, a domain.Account) error

	// GetByID returns an account by id.
	GetByID(ctx context.Context, id string) (domain.Account, error)

	// GetByEmail looks up by normalized email.
	GetByEmail(ctx context.Context, email string) (domain.Account, error)

	// SetCredentialHash replaces the stored credential hash.
	SetCredentialHash(ctx context.Context, id, hash string) error

	// SetTwoFactor overwrites the two-factor state and bumps updated_at.
	SetTwoFactor(ctx context.Context, id string, st domain.TwoFactorState) error

	// BeginTwoFactor stores secret as pending unless two-factor is already
	// enabled. Reports whether it applied.
	BeginTwoFactor(ctx context.Context, id, secret string) (bool, error)

	// ConfirmTwoFactor moves pending(secret) to enabled(secret) only if the
	// row still holds that exact pending secret. Reports whether it applied.
	ConfirmTwoFactor(ctx context.Context, id, secret string) (bool, error)

	// SetActive clears or sets disabled_at.
	SetActive(ctx context.Context, id string, active bool) error
}

type RefreshSessions interface {
	// Create stores a new session row.
	Create(ctx context.Context, s domain.RefreshSession) error

	// GetByHash returns the session for a token fingerprint, usable or not.
	GetByHash(ctx context.Context, tokenHash string) (domain.RefreshSession, error)

	// Consume revokes the session only if it is unrevoked and unexpired at
	// now, and returns it. Concurrent callers race on a single conditional
	// update; losers get ErrNotFound.
	Consume(ctx context.Context, tokenHash string, now time.Time) (domain.RefreshSession, error)

	// Revoke marks the session revoked. Unknown or already revoked hashes
	// are not an error.
	Revoke(ctx context.Context, tokenHash string, now time.Time) error

	// RevokeAllForAccount revokes every live session of an account.
	RevokeAllForAccount(ctx context.Context, accountID string, now time.Time) (int64, error)

	// DeleteStale removes sessions that are expired or revoked at now.
	DeleteStale(ctx context.Context, now time.Time) (int64, error)
}

type Records interface {
	// Create inserts a record.
	Create(ctx context.Context, r domain.Record) error

	// Get returns the record only if accountID owns it.
	Get(ctx context.Context, accountID, id string) (domain.Record, error)

	// List returns an account's records, oldest first.
	List(ctx context.Context, accountID string) ([]domain.Record, error)
}

type Envelopes interface {
	// Create inserts envelope metadata.
	Create(ctx context.Context, e domain.FileEnvelope) error

	// Get returns the envelope only if accountID owns it.
	Get(ctx context.Context, accountID, id string) (domain.FileEnvelope, error)

	// ListByRecord returns the envelopes of one record, oldest first.
	ListByRecord(ctx context.Context, accountID, recordID string) ([]domain.FileEnvelope, error)

	// Delete removes the envelope row if accountID owns it.
	Delete(ctx context.Context, accountID, id string) error
}
