package sqlstore

import (
	"context"

	"github.com/aussiebroadwan/medvault/internal/auth/domain"
)

type recordsRepo struct {
	c conn
}

func (r *recordsRepo) Create(ctx context.Context, rec domain.Record) error {
	return r.c.insert(ctx, `
		INSERT INTO records (id, account_id, label, created_at)
		VALUES (?, ?, ?, ?)`,
		rec.ID,
		rec.AccountID,
		rec.Label,
		millis(rec.CreatedAt),
	)
}

func (r *recordsRepo) Get(ctx context.Context, accountID, id string) (domain.Record, error) {
	var (
		rec       domain.Record
		createdAt int64
	)
	err := r.c.queryRow(ctx, `
		SELECT id, account_id, label, created_at
		FROM records WHERE id = ? AND account_id = ?`,
		id,
		accountID,
	).Scan(&rec.ID, &rec.AccountID, &rec.Label, &createdAt)
	if err != nil {
		return domain.Record{}, mapNotFound(err)
	}
	rec.CreatedAt = fromMillis(createdAt)
	return rec, nil
}

func (r *recordsRepo) List(ctx context.Context, accountID string) ([]domain.Record, error) {
	rows, err := r.c.query(ctx, `
		SELECT id, account_id, label, created_at
		FROM records WHERE account_id = ?
		ORDER BY created_at, id`,
		accountID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Record{}
	for rows.Next() {
		var (
			rec       domain.Record
			createdAt int64
		)
		if err := rows.Scan(&rec.ID, &rec.AccountID, &rec.Label, &createdAt); err != nil {
			return nil, err
		}
		rec.CreatedAt = fromMillis(createdAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}
