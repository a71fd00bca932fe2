package http

import (
	"net/http"

	"github.com/aussiebroadwan/medvault/internal/auth/service"
	"github.com/aussiebroadwan/medvault/pkg/authsdk"
	"github.com/aussiebroadwan/medvault/pkg/httpx"
)

type RecordsHandler struct {
	RecordService *service.RecordService
}

// HandleCreate handles POST /v1/records.
func (h *RecordsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}
	var req authsdk.CreateRecordRequest
	if !decodeBody(w, r, &req) {
		return
	}

	rec, err := h.RecordService.Create(r.Context(), id, req.Label)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, recordResponse(rec))
}

// HandleList handles GET /v1/records.
func (h *RecordsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	recs, err := h.RecordService.List(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := authsdk.RecordListResponse{Records: make([]authsdk.RecordResponse, 0, len(recs))}
	for _, rec := range recs {
		out.Records = append(out.Records, recordResponse(rec))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}
