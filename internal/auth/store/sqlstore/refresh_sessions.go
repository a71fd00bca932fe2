package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/medvault/internal/auth/domain"
)

type refreshSessionsRepo struct {
	c conn
}

const sessionColumns = `id, account_id, token_hash, expires_at, revoked_at,
	issued_from_ip, issued_from_agent, created_at`

func (r *refreshSessionsRepo) Create(ctx context.Context, s domain.RefreshSession) error {
	return r.c.insert(ctx, `
		INSERT INTO refresh_sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID,
		s.AccountID,
		s.TokenHash,
		millis(s.ExpiresAt),
		nullMillis(s.RevokedAt),
		s.IssuedFromIP,
		s.IssuedFromAgent,
		millis(s.CreatedAt),
	)
}

func (r *refreshSessionsRepo) GetByHash(ctx context.Context, tokenHash string) (domain.RefreshSession, error) {
	row := r.c.queryRow(ctx, `SELECT `+sessionColumns+` FROM refresh_sessions WHERE token_hash = ?`, tokenHash)
	return scanSession(row)
}

// Consume is the compare-and-swap at the heart of rotation: the WHERE
// clause is re-evaluated under the row lock, so only one caller can flip
// revoked_at from NULL.
func (r *refreshSessionsRepo) Consume(ctx context.Context, tokenHash string, now time.Time) (domain.RefreshSession, error) {
	row := r.c.queryRow(ctx, `
		UPDATE refresh_sessions
		SET revoked_at = ?
		WHERE token_hash = ? AND revoked_at IS NULL AND expires_at > ?
		RETURNING `+sessionColumns,
		millis(now),
		tokenHash,
		millis(now),
	)
	return scanSession(row)
}

func (r *refreshSessionsRepo) Revoke(ctx context.Context, tokenHash string, now time.Time) error {
	_, err := r.c.exec(ctx, `
		UPDATE refresh_sessions SET revoked_at = ?
		WHERE token_hash = ? AND revoked_at IS NULL`,
		millis(now),
		tokenHash,
	)
	return err
}

func (r *refreshSessionsRepo) RevokeAllForAccount(ctx context.Context, accountID string, now time.Time) (int64, error) {
	res, err := r.c.exec(ctx, `
		UPDATE refresh_sessions SET revoked_at = ?
		WHERE account_id = ? AND revoked_at IS NULL AND expires_at > ?`,
		millis(now),
		accountID,
		millis(now),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *refreshSessionsRepo) DeleteStale(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.c.exec(ctx, `
		DELETE FROM refresh_sessions
		WHERE revoked_at IS NOT NULL OR expires_at <= ?`,
		millis(now),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanSession(row *sql.Row) (domain.RefreshSession, error) {
	var (
		s                    domain.RefreshSession
		expiresAt, createdAt int64
		revokedAt            sql.NullInt64
	)
	err := row.Scan(
		&s.ID,
		&s.AccountID,
		&s.TokenHash,
		&expiresAt,
		&revokedAt,
		&s.IssuedFromIP,
		&s.IssuedFromAgent,
		&createdAt,
	)
	if err != nil {
		return domain.RefreshSession{}, mapNotFound(err)
	}

	s.ExpiresAt = fromMillis(expiresAt)
	s.RevokedAt = fromNullMillis(revokedAt)
	s.CreatedAt = fromMillis(createdAt)
	return s, nil
}
