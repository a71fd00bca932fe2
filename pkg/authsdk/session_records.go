package authsdk

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
)

func (s *Session) CreateRecord(ctx context.Context, label string) (*RecordResponse, error) {
	resp, err := s.doAuthJSON(ctx, http.MethodPost, "/v1/records", CreateRecordRequest{Label: label})
	if err != nil {
		return nil, err
	}

	var out RecordResponse
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) ListRecords(ctx context.Context) ([]RecordResponse, error) {
	resp, err := s.doAuthJSON(ctx, http.MethodGet, "/v1/records", nil)
	if err != nil {
		return nil, err
	}

	var out RecordListResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Records, nil
}

// UploadEnvelope uploads one file into a record as multipart/form-data.
func (s *Session) UploadEnvelope(ctx context.Context, recordID string, req UploadEnvelopeRequest) (*EnvelopeResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := map[string]string{
		"mode":         req.Mode,
		"mime_type":    req.MimeType,
		"display_name": req.DisplayName,
	}
	if req.PlainSize != nil {
		fields["plain_size"] = strconv.FormatInt(*req.PlainSize, 10)
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}

	part, err := mw.CreateFormFile("file", "envelope")
	if err != nil {
		return nil, fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := part.Write(req.Data); err != nil {
		return nil, fmt.Errorf("failed to write file part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/records/"+url.PathEscape(recordID)+"/envelopes", &buf, map[string]string{
		"Content-Type": mw.FormDataContentType(),
	})
	if err != nil {
		return nil, err
	}

	var out EnvelopeResponse
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) ListEnvelopes(ctx context.Context, recordID string) ([]EnvelopeResponse, error) {
	resp, err := s.doAuthJSON(ctx, http.MethodGet, "/v1/records/"+url.PathEscape(recordID)+"/envelopes", nil)
	if err != nil {
		return nil, err
	}

	var out EnvelopeListResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Envelopes, nil
}

// DownloadEnvelope fetches the envelope bytes. Metadata travels in
// X-Envelope-* headers.
func (s *Session) DownloadEnvelope(ctx context.Context, envelopeID string) (*EnvelopeDownload, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/v1/envelopes/"+url.PathEscape(envelopeID), nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if err := parseErrorResponse(resp, body); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	name, err := url.QueryUnescape(resp.Header.Get(HeaderEnvelopeDisplayName))
	if err != nil {
		return nil, fmt.Errorf("failed to decode display name: %w", err)
	}
	return &EnvelopeDownload{
		ID:          resp.Header.Get(HeaderEnvelopeID),
		Mode:        resp.Header.Get(HeaderEnvelopeMode),
		MimeType:    resp.Header.Get("Content-Type"),
		DisplayName: name,
		Data:        body,
	}, nil
}

func (s *Session) DeleteEnvelope(ctx context.Context, envelopeID string) error {
	resp, err := s.doAuthRequest(ctx, http.MethodDelete, "/v1/envelopes/"+url.PathEscape(envelopeID), nil, nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}
