// Package api exposes the retrieval and imputation pipeline over HTTP.
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/config"
	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/httpx"
	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/impute"
	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/resolution"
	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/series"
	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/storage"
)

// Handler serves the /data endpoints.
type Handler struct {
	store    storage.Store
	selector *resolution.Selector
	engine   *impute.Engine
}

// NewHandler creates the data handler.
func NewHandler(store storage.Store, opts config.Options) *Handler {
	return &Handler{
		store:    store,
		selector: resolution.NewSelector(opts),
		engine:   impute.New(store, opts),
	}
}

// Engine exposes the imputation engine for wiring (persist observers).
func (h *Handler) Engine() *impute.Engine { return h.engine }

// TimeSeriesData is one point in a /data response.
type TimeSeriesData struct {
	Timestamp    string   `json:"timestamp"`
	ValueNumeric *float64 `json:"value_numeric"`
	ValueText    *string  `json:"value_text"`
}

// DataResponse is the paginated /data payload.
type DataResponse struct {
	Data  []TimeSeriesData `json:"data"`
	Total int              `json:"total"`
}

// ImputedPointData is one point in a /data/imputed response.
type ImputedPointData struct {
	Timestamp    string   `json:"timestamp"`
	ValueNumeric *float64 `json:"value_numeric"`
	ValueText    *string  `json:"value_text"`
	IsImputed    bool     `json:"is_imputed"`
}

// BatchResponse is the /data/run_imputation payload.
type BatchResponse struct {
	Message       string `json:"message"`
	PointsWritten int    `json:"points_written"`
}

const timestampLayout = "2006-01-02T15:04:05Z07:00"

// HandleGetData handles GET /data: paginated series retrieval at the
// resolution chosen for the requested span.
func (h *Handler) HandleGetData(w http.ResponseWriter, r *http.Request) {
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

	rng, err := resolution.ParseDateRange(q.Get("start_date"), q.Get("end_date"))
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}

	override, err := resolution.ParseTier(q.Get("table_override"))
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}

	limit, err := parseIntParam(q.Get("limit"), config.FetchDefaultLimit)
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, fmt.Errorf("invalid limit: %w", err))
		return
	}
	if limit > config.FetchMaxLimit {
		limit = config.FetchMaxLimit
	}
	offset, err := parseIntParam(q.Get("offset"), 0)
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, fmt.Errorf("invalid offset: %w", err))
		return
	}

	tier := h.selector.Select(rng, override)
	res, err := h.store.Fetch(r.Context(), storage.FetchRequest{
		ParticipantID: participant,
		Metric:        metric,
		Range:         rng,
		Tier:          tier,
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, fmt.Errorf("database query failed: %w", err))
		return
	}

	response := DataResponse{Data: make([]TimeSeriesData, 0, len(res.Points)), Total: res.Total}
	for _, p := range res.Points {
		response.Data = append(response.Data, TimeSeriesData{
			Timestamp:    p.Timestamp.Format(timestampLayout),
			ValueNumeric: p.ValueNumeric,
			ValueText:    textValue(p, tier),
		})
	}
	httpx.RespondJSON(w, http.StatusOK, response)
}

// HandleGetImputed handles GET /data/imputed: advisory read-time gap
// filling. Output is display-only and never persisted.
func (h *Handler) HandleGetImputed(w http.ResponseWriter, r *http.Request) {
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

	rng, err := resolution.ParseDateRange(q.Get("start_date"), q.Get("end_date"))
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}

	methodParam := q.Get("imputation_method")
	if methodParam == "" {
		methodParam = string(impute.MethodLinear)
	}
	method, err := impute.ParseFillMethod(methodParam)
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, fmt.Errorf("%w: %q", err, methodParam))
		return
	}

	window, err := parseIntParam(q.Get("window_size"), 0)
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, fmt.Errorf("invalid window_size: %w", err))
		return
	}

	fillGaps := q.Get("fill_gaps") != "false"

	var points []series.Point
	if fillGaps {
		points, err = h.engine.FillAdHoc(r.Context(), participant, metric, rng, method, window)
	} else {
		var res storage.FetchResult
		res, err = h.store.Fetch(r.Context(), storage.FetchRequest{
			ParticipantID: participant, Metric: metric, Range: rng, Tier: resolution.TierRaw,
		})
		if err == nil {
			points = h.engine.Regrid(res.Points, participant, metric)
		}
	}
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, fmt.Errorf("database query failed: %w", err))
		return
	}

	out := make([]ImputedPointData, 0, len(points))
	for _, p := range points {
		out = append(out, ImputedPointData{
			Timestamp:    p.Timestamp.Format(timestampLayout),
			ValueNumeric: p.ValueNumeric,
			ValueText:    textValue(p, resolution.TierRaw),
			IsImputed:    p.IsImputed,
		})
	}
	httpx.RespondJSON(w, http.StatusOK, out)
}

// HandleRunImputation handles POST /data/run_imputation: the batch path
// that persists synthesized points to the imputed store.
func (h *Handler) HandleRunImputation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.RespondErrorString(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	q := r.URL.Query()
	participant, metric := q.Get("user_id"), q.Get("metric")
	if participant == "" || metric == "" {
		httpx.RespondErrorString(w, http.StatusBadRequest, "user_id and metric parameters are required")
		return
	}

	// Wide defaults so a bare run covers a whole study period.
	start, end := q.Get("start_date"), q.Get("end_date")
	if start == "" {
		start = "2024-01-01"
	}
	if end == "" {
		end = "2025-12-31"
	}
	rng, err := resolution.ParseDateRange(start, end)
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}

	res, err := h.engine.RunBatch(r.Context(), participant, metric, rng)
	if err != nil {
		switch {
		case errors.Is(err, series.ErrNotFound):
			httpx.RespondErrorString(w, http.StatusNotFound, "No raw data found.")
		default:
			httpx.RespondError(w, http.StatusInternalServerError, fmt.Errorf("imputation run failed: %w", err))
		}
		return
	}

	response := BatchResponse{PointsWritten: res.Written}
	switch res.Outcome {
	case impute.OutcomeImputed:
		response.Message = fmt.Sprintf("Successfully imputed and stored %d points for %s - %s.", res.Written, participant, metric)
	case impute.OutcomeNoGaps:
		response.Message = "No gaps found to impute."
	case impute.OutcomeAllFailed:
		response.Message = "Imputation failed for all gaps."
	default:
		response.Message = "No values were imputed."
	}
	httpx.RespondJSON(w, http.StatusOK, response)
}

// textValue maps a point's text onto the response, respecting tier
// semantics: aggregate tiers never expose text.
func textValue(p series.Point, tier resolution.Tier) *string {
	if tier.Aggregated() || p.ValueText == "" {
		return nil
	}
	text := p.ValueText
	return &text
}

func parseIntParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%q is not a non-negative integer", raw)
	}
	return v, nil
}
