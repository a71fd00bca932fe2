package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aussiebroadwan/medvault/internal/auth/domain"
)

type envelopesRepo struct {
	c conn
}

const envelopeColumns = `id, account_id, record_id, storage_key, mode, nonce, tag,
	display_name_plain, display_name_cipher, mime_type, plain_size, cipher_size, created_at`

func (r *envelopesRepo) Create(ctx context.Context, e domain.FileEnvelope) error {
	// nonce and tag stay untyped nil for client-opaque rows so every driver
	// binds NULL rather than an empty blob.
	var (
		nonce, tag        any
		dnPlain, dnCipher sql.NullString
	)
	switch p := e.Protection.(type) {
	case domain.ServerManaged:
		nonce, tag = p.Framing.Nonce, p.Framing.Tag
		dnCipher = sql.NullString{String: p.DisplayNameCipher, Valid: true}
	case domain.ClientOpaque:
		dnPlain = sql.NullString{String: p.DisplayName, Valid: true}
	default:
		return fmt.Errorf("sqlstore: envelope %s has no protection", e.ID)
	}

	return r.c.insert(ctx, `
		INSERT INTO envelopes (`+envelopeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.AccountID,
		e.RecordID,
		e.StorageKey,
		string(e.Mode()),
		nonce,
		tag,
		dnPlain,
		dnCipher,
		e.MimeType,
		e.PlainSize,
		e.CipherSize,
		millis(e.CreatedAt),
	)
}

func (r *envelopesRepo) Get(ctx context.Context, accountID, id string) (domain.FileEnvelope, error) {
	row := r.c.queryRow(ctx, `
		SELECT `+envelopeColumns+`
		FROM envelopes WHERE id = ? AND account_id = ?`,
		id,
		accountID,
	)
	e, err := scanEnvelope(row)
	if err != nil {
		return domain.FileEnvelope{}, mapNotFound(err)
	}
	return e, nil
}

func (r *envelopesRepo) ListByRecord(ctx context.Context, accountID, recordID string) ([]domain.FileEnvelope, error) {
	rows, err := r.c.query(ctx, `
		SELECT `+envelopeColumns+`
		FROM envelopes WHERE account_id = ? AND record_id = ?
		ORDER BY created_at, id`,
		accountID,
		recordID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.FileEnvelope{}
	for rows.Next() {
		e, err := scanEnvelope(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *envelopesRepo) Delete(ctx context.Context, accountID, id string) error {
	return expectOne(r.c.exec(ctx, `DELETE FROM envelopes WHERE id = ? AND account_id = ?`, id, accountID))
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEnvelope(s scanner) (domain.FileEnvelope, error) {
	var (
		e                 domain.FileEnvelope
		mode              string
		nonce, tag        []byte
		dnPlain, dnCipher sql.NullString
		createdAt         int64
	)
	err := s.Scan(
		&e.ID,
		&e.AccountID,
		&e.RecordID,
		&e.StorageKey,
		&mode,
		&nonce,
		&tag,
		&dnPlain,
		&dnCipher,
		&e.MimeType,
		&e.PlainSize,
		&e.CipherSize,
		&createdAt,
	)
	if err != nil {
		return domain.FileEnvelope{}, err
	}
	e.CreatedAt = fromMillis(createdAt)

	switch domain.EnvelopeMode(mode) {
	case domain.ModeServerManaged:
		if len(nonce) == 0 || len(tag) == 0 || !dnCipher.Valid {
			return domain.FileEnvelope{}, fmt.Errorf("sqlstore: envelope %s: server-managed row without framing", e.ID)
		}
		e.Protection = domain.ServerManaged{
			Framing:           domain.CipherFraming{Nonce: nonce, Tag: tag},
			DisplayNameCipher: dnCipher.String,
		}
	case domain.ModeClientOpaque:
		e.Protection = domain.ClientOpaque{DisplayName: dnPlain.String}
	default:
		return domain.FileEnvelope{}, fmt.Errorf("sqlstore: envelope %s: unknown mode %q", e.ID, mode)
	}
	return e, nil
}
