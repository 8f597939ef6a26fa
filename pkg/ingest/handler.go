// Package ingest accepts device point batches over HTTP and writes them to
// the raw store after validation.
package ingest

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/httpx"
	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/series"
	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/storage"
)

// Handler handles point ingestion.
type Handler struct {
	store storage.Store
}

// NewHandler creates a new ingest handler.
func NewHandler(store storage.Store) *Handler {
	return &Handler{store: store}
}

// IngestRequest represents the request payload.
type IngestRequest struct {
	Points []series.Point `json:"points"`
}

// IngestResponse represents the response payload.
type IngestResponse struct {
	Status  string `json:"status"`
	Count   int    `json:"count"`
	Message string `json:"message,omitempty"`
}

// HandleIngest handles POST /data/ingest. The whole batch is rejected on
// the first invalid point so devices notice bad payloads immediately.
func (h *Handler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.RespondErrorString(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return
	}

	if len(req.Points) > MaxPointsPerRequest {
		httpx.RespondError(w, http.StatusBadRequest, ErrTooManyPoints)
		return
	}
	if len(req.Points) == 0 {
		httpx.RespondJSON(w, http.StatusOK, IngestResponse{Status: "success", Count: 0})
		return
	}

	for i, p := range req.Points {
		if err := ValidatePoint(p); err != nil {
			httpx.RespondError(w, http.StatusBadRequest, fmt.Errorf("invalid point %d: %w", i, err))
			return
		}
	}

	if err := h.store.WriteRaw(r.Context(), req.Points); err != nil {
		log.Printf("❌ Ingest write failed: %v", err)
		httpx.RespondError(w, http.StatusInternalServerError, fmt.Errorf("failed to store points: %w", err))
		return
	}

	httpx.RespondJSON(w, http.StatusOK, IngestResponse{Status: "success", Count: len(req.Points)})
}
