package export

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/httpx"
	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/resolution"
	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/storage"
)

// MaxExportWindow caps the exportable span; one-shot dumps of a whole
// multi-year study go through offline tooling instead.
const MaxExportWindow = 366 * 24 * time.Hour

// Handler serves the export/import HTTP endpoints.
type Handler struct {
	exporter *Exporter
	importer *Importer
}

// NewHandler creates the export/import handler.
func NewHandler(store storage.Store) *Handler {
	return &Handler{
		exporter: NewExporter(store),
		importer: NewImporter(store),
	}
}

// HandleExport handles GET /data/export.
// Query params: user_id, metric, start_date, end_date, format (json|csv,
// default json), tier (default raw), include_imputed (default false).
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.RespondErrorString(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	q := r.URL.Query()
	participant, metric := q.Get("user_id"), q.Get("metric")
	if participant == "" || metric == "" {
		httpx.RespondErrorString(w, http.StatusBadRequest, "user_id and metric parameters are required")
		return
	}

	format := q.Get("format")
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "csv" {
		httpx.RespondErrorString(w, http.StatusBadRequest, "Invalid format. Must be 'json' or 'csv'")
		return
	}

	rng, err := resolution.ParseDateRange(q.Get("start_date"), q.Get("end_date"))
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}
	if rng.Duration() > MaxExportWindow {
		httpx.RespondErrorString(w, http.StatusBadRequest,
			fmt.Sprintf("Time range too large. Maximum is %v", MaxExportWindow))
		return
	}

	tier, err := resolution.ParseTier(q.Get("tier"))
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}
	if tier == "" {
		tier = resolution.TierRaw
	}

	opts := Options{
		ParticipantID:  participant,
		Metric:         metric,
		Range:          rng,
		Tier:           tier,
		IncludeImputed: q.Get("include_imputed") == "true",
	}

	timestamp := time.Now().Format("20060102-150405")
	if format == "json" {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=wearables-export-%s.json", timestamp))
	} else {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=wearables-export-%s.csv", timestamp))
	}

	var result *Result
	if format == "json" {
		result, err = h.exporter.ToJSON(r.Context(), w, opts)
	} else {
		result, err = h.exporter.ToCSV(r.Context(), w, opts)
	}
	if err != nil {
		log.Printf("❌ Export failed: %v", err)
		return
	}

	log.Printf("✅ Exported %d points (%s) from %s", result.PointsExported, format, result.TimeRange)
}

// HandleImport handles POST /data/import: restores a JSON backup into the
// raw store.
func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.RespondErrorString(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if r.Header.Get("Content-Type") != "application/json" {
		httpx.RespondErrorString(w, http.StatusBadRequest, "Content-Type must be application/json")
		return
	}

	result, err := h.importer.FromJSON(r.Context(), r.Body)
	if err != nil {
		log.Printf("❌ Import failed: %v", err)
		httpx.RespondError(w, http.StatusInternalServerError, fmt.Errorf("import failed: %w", err))
		return
	}

	if len(result.Errors) > 0 {
		log.Printf("⚠️  Import completed with %d validation errors", len(result.Errors))
		for i, msg := range result.Errors {
			if i >= 10 {
				log.Printf("   ... and %d more errors", len(result.Errors)-10)
				break
			}
			log.Printf("   - %s", msg)
		}
	}

	log.Printf("✅ Imported %d points in %d batches from %s", result.PointsImported, result.BatchesWritten, result.TimeRange)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		log.Printf("❌ Failed to encode import response: %v", err)
	}
}
