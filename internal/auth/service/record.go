package service

import (
	"context"
	"time"

	"github.com/aussiebroadwan/medvault/internal/auth/domain"
	"github.com/aussiebroadwan/medvault/internal/auth/store"
	"github.com/aussiebroadwan/medvault/pkg/idx"
)

// RecordService manages the containers envelopes are uploaded into.
type RecordService struct {
	Store store.Store
}

func (s *RecordService) Create(ctx context.Context, accountID, label string) (domain.Record, error) {
	label, err := domain.NormalizeRecordLabel(label)
	if err != nil {
		return domain.Record{}, err
	}

	now := time.Now().UTC()
	rec := domain.Record{
		ID:        idx.NewAt(now).String(),
		AccountID: accountID,
		Label:     label,
		CreatedAt: now,
	}
	if err := s.Store.Records().Create(ctx, rec); err != nil {
		return domain.Record{}, err
	}
	return rec, nil
}

func (s *RecordService) List(ctx context.Context, accountID string) ([]domain.Record, error) {
	return s.Store.Records().List(ctx, accountID)
}
