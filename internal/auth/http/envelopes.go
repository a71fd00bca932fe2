package http

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/aussiebroadwan/medvault/internal/auth/service"
	"github.com/aussiebroadwan/medvault/pkg/authsdk"
	"github.com/aussiebroadwan/medvault/pkg/httpx"
	"github.com/aussiebroadwan/medvault/pkg/slogx"
)

// maxFieldBytes bounds the non-file parts of an upload.
const maxFieldBytes = 4 << 10

// EnvelopesHandler serves envelope upload, listing, download and delete.
type EnvelopesHandler struct {
	EnvelopeService *service.EnvelopeService
}

// HandleUpload handles POST /v1/records/{id}/envelopes. The body is
// multipart/form-data with a "file" part and optional "mode", "mime_type",
// "display_name" and "plain_size" fields. Parts are read straight into
// memory so nothing is spooled to disk.
func (h *EnvelopesHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	mr, err := r.MultipartReader()
	if err != nil {
		authsdk.ErrInvalidRequest.WithField("", "body must be multipart/form-data").WriteError(w)
		return
	}

	in := service.UploadInput{AccountID: id, RecordID: r.PathValue("id")}
	var haveFile bool
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			writeUploadError(w, r, err)
			return
		}

		name := part.FormName()
		var value []byte
		if name == "file" {
			value, err = io.ReadAll(part)
		} else {
			value, err = io.ReadAll(io.LimitReader(part, maxFieldBytes))
		}
		_ = part.Close()
		if err != nil {
			writeUploadError(w, r, err)
			return
		}

		switch name {
		case "file":
			in.Data = value
			haveFile = true
		case "mode":
			in.Mode = string(value)
		case "mime_type":
			in.MimeType = string(value)
		case "display_name":
			in.DisplayName = string(value)
		case "plain_size":
			n, err := strconv.ParseInt(strings.TrimSpace(string(value)), 10, 64)
			if err != nil {
				authsdk.ErrValidation.WithField("plain_size", "must be an integer").WriteError(w)
				return
			}
			in.PlainSize = &n
		}
	}
	if !haveFile {
		authsdk.ErrValidation.WithField("file", "is required").WriteError(w)
		return
	}

	env, err := h.EnvelopeService.Upload(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, envelopeResponse(env, strings.TrimSpace(in.DisplayName)))
}

func writeUploadError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		authsdk.ErrRequestTooLarge.WriteError(w)
		return
	}
	slogx.FromContext(r.Context()).Warn("failed to read upload", "err", err)
	authsdk.ErrInvalidRequest.WithField("", "malformed multipart body").WriteError(w)
}

// HandleList handles GET /v1/records/{id}/envelopes.
func (h *EnvelopesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	infos, err := h.EnvelopeService.List(r.Context(), id, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := authsdk.EnvelopeListResponse{Envelopes: make([]authsdk.EnvelopeResponse, 0, len(infos))}
	for _, info := range infos {
		out.Envelopes = append(out.Envelopes, envelopeResponse(info.Envelope, info.DisplayName))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleDownload handles GET /v1/envelopes/{id}. The body is the raw
// payload; metadata rides in X-Envelope-* headers.
func (h *EnvelopesHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	content, err := h.EnvelopeService.Download(r.Context(), id, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	hdr := w.Header()
	hdr.Set("Content-Type", content.Envelope.MimeType)
	hdr.Set("Content-Length", strconv.Itoa(len(content.Data)))
	hdr.Set("X-Content-Type-Options", "nosniff")
	hdr.Set(authsdk.HeaderEnvelopeID, content.Envelope.ID)
	hdr.Set(authsdk.HeaderEnvelopeMode, string(content.Envelope.Mode()))
	hdr.Set(authsdk.HeaderEnvelopeDisplayName, url.QueryEscape(content.DisplayName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content.Data)
}

// HandleDelete handles DELETE /v1/envelopes/{id}.
func (h *EnvelopesHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	if err := h.EnvelopeService.Delete(r.Context(), id, r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
