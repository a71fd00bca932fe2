// Package sqlstore implements store.Store over database/sql. The sqlite and
// postgres drivers share it and differ only in their Dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/medvault/internal/auth/store"
)

// DBTX is the subset of database/sql used by the repos. Both *sql.DB and
// *sql.Tx satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Dialect captures what differs between database engines.
type Dialect struct {
	// Name is used in logs and errors.
	Name string

	// Numbered rewrites "?" placeholders as $1, $2, ...
	Numbered bool

	// IsUniqueViolation reports whether err is a unique constraint failure.
	IsUniqueViolation func(error) bool

	// Migrate brings the schema up to date.
	Migrate func(ctx context.Context, db *sql.DB) error
}

func (d *Dialect) rebind(query string) string {
	if !d.Numbered {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// conn binds a DBTX to its dialect for the repos.
type conn struct {
	db DBTX
	d  *Dialect
}

func (c conn) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.db.ExecContext(ctx, c.d.rebind(query), args...)
}

func (c conn) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.db.QueryContext(ctx, c.d.rebind(query), args...)
}

func (c conn) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return c.db.QueryRowContext(ctx, c.d.rebind(query), args...)
}

// insert runs an INSERT and maps unique violations to store.ErrAlreadyExists.
func (c conn) insert(ctx context.Context, query string, args ...any) error {
	_, err := c.exec(ctx, query, args...)
	if err != nil && c.d.IsUniqueViolation != nil && c.d.IsUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

// Store is a store.Store over a *sql.DB.
type Store struct {
	db *sql.DB
	d  *Dialect
}

var _ store.Store = (*Store)(nil)

// New wraps db. The caller keeps ownership of pool settings.
func New(db *sql.DB, d Dialect) *Store {
	return &Store{db: db, d: &d}
}

// DB exposes the pool for drivers and tests.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) ApplyMigrations(ctx context.Context) error {
	if s.d.Migrate == nil {
		return errors.New("sqlstore: " + s.d.Name + " has no migrations")
	}
	return s.d.Migrate(ctx, s.db)
}

// Tx starts a read/write transaction and returns a Tx-scoped Store.
func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &txStore{tx: tx, c: conn{db: tx, d: s.d}}, nil
}

// WithTx executes fn within a transaction, automatically handling commit/rollback.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}

	// Ensure rollback is called if we panic or return early with error
	defer func() {
		_ = tx.Rollback() // safe to call even after commit
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) c() conn { return conn{db: s.db, d: s.d} }

func (s *Store) Accounts() store.Accounts               { return &accountsRepo{c: s.c()} }
func (s *Store) RefreshSessions() store.RefreshSessions { return &refreshSessionsRepo{c: s.c()} }
func (s *Store) Records() store.Records                 { return &recordsRepo{c: s.c()} }
func (s *Store) Envelopes() store.Envelopes             { return &envelopesRepo{c: s.c()} }

type txStore struct {
	tx *sql.Tx
	c  conn
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

func (t *txStore) Close() error { return nil } // the outer DB stays open

// Ping is a no-op; the connection is held by the transaction.
func (t *txStore) Ping(ctx context.Context) error { return nil }

func (t *txStore) Tx(ctx context.Context) (store.Tx, error) {
	// Nested tx not supported; could emulate with SAVEPOINT if needed
	return nil, sql.ErrTxDone
}

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return sql.ErrTxDone
}

func (t *txStore) ApplyMigrations(ctx context.Context) error { return nil } // applied before any tx

func (t *txStore) Accounts() store.Accounts               { return &accountsRepo{c: t.c} }
func (t *txStore) RefreshSessions() store.RefreshSessions { return &refreshSessionsRepo{c: t.c} }
func (t *txStore) Records() store.Records                 { return &recordsRepo{c: t.c} }
func (t *txStore) Envelopes() store.Envelopes             { return &envelopesRepo{c: t.c} }

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// expectOne maps a zero-row write to store.ErrNotFound.
func expectOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// applied reports whether a conditional update matched exactly one row.
func applied(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Timestamps are stored as unix milliseconds in both engines.
func millis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: millis(*t), Valid: true}
}

func fromNullMillis(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromMillis(n.Int64)
	return &t
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
