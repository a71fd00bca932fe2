package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aussiebroadwan/medvault/internal/auth/domain"
)

type accountsRepo struct {
	c conn
}

const accountColumns = `id, email, display_name, credential_hash, key_derivation_salt,
	two_factor_state, two_factor_secret, disabled_at, created_at, updated_at`

func (r *accountsRepo) Create(ctx context.Context, a domain.Account) error {
	return r.c.insert(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID,
		a.Email,
		a.DisplayName,
		a.CredentialHash,
		a.KeyDerivationSalt,
		string(a.TwoFactor.Status()),
		nullString(a.TwoFactor.SecretColumn()),
		nullMillis(a.DisabledAt),
		millis(a.CreatedAt),
		millis(a.UpdatedAt),
	)
}

func (r *accountsRepo) GetByID(ctx context.Context, id string) (domain.Account, error) {
	row := r.c.queryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	return scanAccount(row)
}

func (r *accountsRepo) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	row := r.c.queryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = ?`, email)
	return scanAccount(row)
}

func (r *accountsRepo) SetCredentialHash(ctx context.Context, id, hash string) error {
	return expectOne(r.c.exec(ctx, `
		UPDATE accounts SET credential_hash = ?, updated_at = ? WHERE id = ?`,
		hash,
		millis(time.Now()),
		id,
	))
}

func (r *accountsRepo) SetTwoFactor(ctx context.Context, id string, st domain.TwoFactorState) error {
	return expectOne(r.c.exec(ctx, `
		UPDATE accounts
		SET two_factor_state = ?, two_factor_secret = ?, updated_at = ?
		WHERE id = ?`,
		string(st.Status()),
		nullString(st.SecretColumn()),
		millis(time.Now()),
		id,
	))
}

func (r *accountsRepo) BeginTwoFactor(ctx context.Context, id, secret string) (bool, error) {
	return applied(r.c.exec(ctx, `
		UPDATE accounts
		SET two_factor_state = 'pending', two_factor_secret = ?, updated_at = ?
		WHERE id = ? AND two_factor_state <> 'enabled'`,
		secret,
		millis(time.Now()),
		id,
	))
}

func (r *accountsRepo) ConfirmTwoFactor(ctx context.Context, id, secret string) (bool, error) {
	return applied(r.c.exec(ctx, `
		UPDATE accounts
		SET two_factor_state = 'enabled', updated_at = ?
		WHERE id = ? AND two_factor_state = 'pending' AND two_factor_secret = ?`,
		millis(time.Now()),
		id,
		secret,
	))
}

func (r *accountsRepo) SetActive(ctx context.Context, id string, active bool) error {
	now := time.Now()
	var disabledAt *time.Time
	if !active {
		disabledAt = &now
	}
	return expectOne(r.c.exec(ctx, `
		UPDATE accounts SET disabled_at = ?, updated_at = ? WHERE id = ?`,
		nullMillis(disabledAt),
		millis(now),
		id,
	))
}

func scanAccount(row *sql.Row) (domain.Account, error) {
	var (
		a                    domain.Account
		state                string
		secret               sql.NullString
		disabledAt           sql.NullInt64
		createdAt, updatedAt int64
	)
	err := row.Scan(
		&a.ID,
		&a.Email,
		&a.DisplayName,
		&a.CredentialHash,
		&a.KeyDerivationSalt,
		&state,
		&secret,
		&disabledAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return domain.Account{}, mapNotFound(err)
	}

	a.TwoFactor, err = domain.RestoreTwoFactor(state, fromNullString(secret))
	if err != nil {
		return domain.Account{}, fmt.Errorf("sqlstore: account %s: %w", a.ID, err)
	}
	a.DisabledAt = fromNullMillis(disabledAt)
	a.CreatedAt = fromMillis(createdAt)
	a.UpdatedAt = fromMillis(updatedAt)
	return a, nil
}
