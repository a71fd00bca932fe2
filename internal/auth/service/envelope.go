package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aussiebroadwan/medvault/internal/auth/blob"
	"github.com/aussiebroadwan/medvault/internal/auth/domain"
	"github.com/aussiebroadwan/medvault/internal/auth/envelope"
	"github.com/aussiebroadwan/medvault/internal/auth/store"
	"github.com/aussiebroadwan/medvault/pkg/idx"
	"github.com/aussiebroadwan/medvault/pkg/slogx"
	"github.com/google/uuid"
)

const (
	defaultMimeType   = "application/octet-stream"
	maxDisplayNameLen = 255
	storageKeyPrefix  = "envelopes/"
)

// EnvelopeService uploads, lists, downloads and deletes file envelopes.
type EnvelopeService struct {
	Store store.Store
	Blobs blob.Store

	// Codec seals server-managed uploads. Nil switches that mode off.
	Codec *envelope.Codec
}

// UploadInput is one file upload. Mode is the raw flag as the client sent
// it; PlainSize is optional and only trusted for client-opaque uploads.
type UploadInput struct {
	AccountID   string
	RecordID    string
	Mode        string
	Data        []byte
	MimeType    string
	PlainSize   *int64
	DisplayName string
}

// EnvelopeInfo is list metadata with the display name readable.
type EnvelopeInfo struct {
	Envelope    domain.FileEnvelope
	DisplayName string
}

// Upload stores the blob first and the record second, removing the blob
// again if the record cannot be written.
func (s *EnvelopeService) Upload(ctx context.Context, in UploadInput) (domain.FileEnvelope, error) {
	l := slogx.FromContext(ctx)

	// 1. Validate input
	mode, err := domain.ParseMode(in.Mode)
	if err != nil {
		return domain.FileEnvelope{}, err
	}
	if mode == domain.ModeServerManaged && s.Codec == nil {
		return domain.FileEnvelope{}, domain.Validationf("mode", "server-managed encryption is not enabled")
	}
	mimeType, err := normalizeMimeType(in.MimeType)
	if err != nil {
		return domain.FileEnvelope{}, err
	}
	displayName := strings.TrimSpace(in.DisplayName)
	if utf8.RuneCountInString(displayName) > maxDisplayNameLen {
		return domain.FileEnvelope{}, domain.Validationf("display_name", "must be at most %d characters", maxDisplayNameLen)
	}
	if in.PlainSize != nil && *in.PlainSize < 0 {
		return domain.FileEnvelope{}, domain.Validationf("plain_size", "must not be negative")
	}

	// 2. The parent record must exist and belong to the caller
	if _, err := s.Store.Records().Get(ctx, in.AccountID, in.RecordID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.FileEnvelope{}, domain.ErrRecordNotFound
		}
		return domain.FileEnvelope{}, err
	}

	// 3. Encode
	now := time.Now().UTC()
	env := domain.FileEnvelope{
		ID:         idx.NewAt(now).String(),
		AccountID:  in.AccountID,
		RecordID:   in.RecordID,
		StorageKey: storageKeyPrefix + in.AccountID + "/" + uuid.NewString(),
		MimeType:   mimeType,
		CreatedAt:  now,
	}

	var stored []byte
	switch mode {
	case domain.ModeServerManaged:
		if in.PlainSize != nil && *in.PlainSize != int64(len(in.Data)) {
			return domain.FileEnvelope{}, domain.Validationf("plain_size", "does not match the uploaded bytes")
		}
		sealed, err := s.Codec.Seal(in.Data)
		if err != nil {
			return domain.FileEnvelope{}, err
		}
		nameCipher, err := s.Codec.SealString(displayName)
		if err != nil {
			return domain.FileEnvelope{}, err
		}
		stored = sealed.Blob
		env.PlainSize = int64(len(in.Data))
		env.Protection = domain.ServerManaged{Framing: sealed.Framing, DisplayNameCipher: nameCipher}

	case domain.ModeClientOpaque:
		// Stored verbatim. The client knows the true size; without it the
		// stored size is the best we have.
		stored = in.Data
		env.PlainSize = int64(len(in.Data))
		if in.PlainSize != nil {
			env.PlainSize = *in.PlainSize
		}
		env.Protection = domain.ClientOpaque{DisplayName: displayName}
	}
	env.CipherSize = int64(len(stored))

	// 4. Blob, then record
	if err := s.Blobs.Put(ctx, env.StorageKey, stored); err != nil {
		return domain.FileEnvelope{}, fmt.Errorf("store blob: %w", err)
	}
	if err := s.Store.Envelopes().Create(ctx, env); err != nil {
		if derr := s.Blobs.Delete(context.WithoutCancel(ctx), env.StorageKey); derr != nil {
			l.Error("failed to remove orphaned blob", slog.String("storage_key", env.StorageKey), slog.Any("error", derr))
		}
		return domain.FileEnvelope{}, fmt.Errorf("store envelope: %w", err)
	}

	l.Info("envelope uploaded",
		slog.String("envelope_id", env.ID),
		slog.String("mode", string(mode)),
		slog.Int64("plain_size", env.PlainSize),
		slog.Int64("cipher_size", env.CipherSize),
	)
	return env, nil
}

// Download returns the stored bytes. Server-managed envelopes are decrypted
// here and the plaintext only lives for the response; client-opaque bytes
// come back exactly as uploaded.
func (s *EnvelopeService) Download(ctx context.Context, accountID, envelopeID string) (domain.EnvelopeContent, error) {
	env, err := s.Store.Envelopes().Get(ctx, accountID, envelopeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.EnvelopeContent{}, domain.ErrEnvelopeNotFound
		}
		return domain.EnvelopeContent{}, err
	}

	data, err := s.Blobs.Get(ctx, env.StorageKey)
	if err != nil {
		return domain.EnvelopeContent{}, fmt.Errorf("load blob %s: %w", env.StorageKey, err)
	}

	switch p := env.Protection.(type) {
	case domain.ServerManaged:
		if s.Codec == nil {
			return domain.EnvelopeContent{}, fmt.Errorf("%w: server key not configured", domain.ErrDecryption)
		}
		nonce, tag, _, err := envelope.Unframe(data)
		if err != nil {
			return domain.EnvelopeContent{}, err
		}
		if !bytes.Equal(nonce, p.Framing.Nonce) || !bytes.Equal(tag, p.Framing.Tag) {
			return domain.EnvelopeContent{}, domain.ErrEnvelopeCorrupt
		}
		plaintext, err := s.Codec.Open(data)
		if err != nil {
			return domain.EnvelopeContent{}, err
		}
		name, err := s.Codec.OpenString(p.DisplayNameCipher)
		if err != nil {
			return domain.EnvelopeContent{}, err
		}
		return domain.EnvelopeContent{Envelope: env, Data: plaintext, DisplayName: name}, nil

	case domain.ClientOpaque:
		return domain.EnvelopeContent{Envelope: env, Data: data, DisplayName: p.DisplayName}, nil
	}
	return domain.EnvelopeContent{}, fmt.Errorf("envelope %s has no protection", env.ID)
}

// List returns the envelopes of one record, oldest first.
func (s *EnvelopeService) List(ctx context.Context, accountID, recordID string) ([]EnvelopeInfo, error) {
	if _, err := s.Store.Records().Get(ctx, accountID, recordID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, err
	}

	envs, err := s.Store.Envelopes().ListByRecord(ctx, accountID, recordID)
	if err != nil {
		return nil, err
	}

	out := make([]EnvelopeInfo, 0, len(envs))
	for _, env := range envs {
		info := EnvelopeInfo{Envelope: env}
		switch p := env.Protection.(type) {
		case domain.ClientOpaque:
			info.DisplayName = p.DisplayName
		case domain.ServerManaged:
			if s.Codec != nil {
				name, err := s.Codec.OpenString(p.DisplayNameCipher)
				if err != nil {
					slogx.FromContext(ctx).Warn("undecryptable display name", slog.String("envelope_id", env.ID))
				}
				info.DisplayName = name
			}
		}
		out = append(out, info)
	}
	return out, nil
}

// Delete removes the record and then its blob. The blob is only touched
// after the record delete has committed, so a failed commit leaves both in
// place. A blob that cannot be removed afterwards is unreachable and logged.
func (s *EnvelopeService) Delete(ctx context.Context, accountID, envelopeID string) error {
	l := slogx.FromContext(ctx)

	var storageKey string
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		env, err := tx.Envelopes().Get(ctx, accountID, envelopeID)
		if err != nil {
			return err
		}
		storageKey = env.StorageKey
		return tx.Envelopes().Delete(ctx, accountID, envelopeID)
	})
	if errors.Is(err, store.ErrNotFound) {
		return domain.ErrEnvelopeNotFound
	}
	if err != nil {
		return err
	}

	if err := s.Blobs.Delete(context.WithoutCancel(ctx), storageKey); err != nil {
		l.Error("failed to remove orphaned blob", slog.String("storage_key", storageKey), slog.Any("error", err))
	}

	l.Info("envelope deleted", slog.String("envelope_id", envelopeID))
	return nil
}

func normalizeMimeType(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultMimeType, nil
	}
	if len(raw) > domain.MaxMimeTypeLen {
		return "", domain.Validationf("mime_type", "must be at most %d characters", domain.MaxMimeTypeLen)
	}
	mediaType, params, err := mime.ParseMediaType(raw)
	if err != nil {
		return "", domain.Validationf("mime_type", "is not a valid media type")
	}
	return mime.FormatMediaType(mediaType, params), nil
}
