package api

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/config"
	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/resolution"
	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/series"
	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/storage"
	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/storage/memory"
)

func newTestHandler(t *testing.T) (*Handler, *memory.Store) {
	t.Helper()
	store := memory.New()
	t.Cleanup(func() { store.Close() })
	return NewHandler(store, config.DefaultOptions()), store
}

func seedHourly(t *testing.T, store *memory.Store, participant, metric string, day time.Time, hours []int, base float64) {
	t.Helper()
	points := make([]series.Point, 0, len(hours))
	for _, h := range hours {
		points = append(points, series.Point{
			Timestamp:     day.Add(time.Duration(h) * time.Hour),
			ParticipantID: participant,
			Metric:        metric,
			ValueNumeric:  series.Float(base + float64(h)),
		})
	}
	require.NoError(t, store.WriteRaw(context.Background(), points))
}

var testDay = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func TestHandleGetData_ReturnsOrderedPoints(t *testing.T) {
	handler, store := newTestHandler(t)
	seedHourly(t, store, "p1", "heart_rate", testDay, []int{0, 1, 2, 3}, 70)

	req := httptest.NewRequest(http.MethodGet,
		"/data?user_id=p1&metric=heart_rate&start_date=2025-03-01&end_date=2025-03-01", nil)
	rr := httptest.NewRecorder()

	handler.HandleGetData(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp DataResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, 4, resp.Total)
	require.Len(t, resp.Data, 4)
	require.Equal(t, "2025-03-01T00:00:00Z", resp.Data[0].Timestamp)
	require.NotNil(t, resp.Data[0].ValueNumeric)
	require.Equal(t, 70.0, *resp.Data[0].ValueNumeric)
	require.Equal(t, 73.0, *resp.Data[3].ValueNumeric)
}

func TestHandleGetData_Pagination(t *testing.T) {
	handler, store := newTestHandler(t)
	seedHourly(t, store, "p1", "heart_rate", testDay, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, 70)

	req := httptest.NewRequest(http.MethodGet,
		"/data?user_id=p1&metric=heart_rate&start_date=2025-03-01&end_date=2025-03-01&limit=3&offset=8", nil)
	rr := httptest.NewRecorder()

	handler.HandleGetData(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp DataResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	// Total counts all matches even when the page is clipped.
	require.Equal(t, 10, resp.Total)
	require.Len(t, resp.Data, 2)
	require.Equal(t, 78.0, *resp.Data[0].ValueNumeric)
}

func TestHandleGetData_TierSelection(t *testing.T) {
	handler, store := newTestHandler(t)
	seedHourly(t, store, "p1", "heart_rate", testDay, []int{0, 1}, 70)
	require.NoError(t, store.WriteAggregates(context.Background(), resolution.TierHour, []series.Point{
		{Timestamp: testDay, ParticipantID: "p1", Metric: "heart_rate", ValueNumeric: series.Float(99)},
	}))

	// 10-day span selects the hour tier.
	req := httptest.NewRequest(http.MethodGet,
		"/data?user_id=p1&metric=heart_rate&start_date=2025-03-01&end_date=2025-03-10", nil)
	rr := httptest.NewRecorder()
	handler.HandleGetData(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp DataResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Total)
	require.Equal(t, 99.0, *resp.Data[0].ValueNumeric)

	// An explicit override wins over the span policy.
	req = httptest.NewRequest(http.MethodGet,
		"/data?user_id=p1&metric=heart_rate&start_date=2025-03-01&end_date=2025-03-10&table_override=raw", nil)
	rr = httptest.NewRecorder()
	handler.HandleGetData(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Total)
}

func TestHandleGetData_BadRequests(t *testing.T) {
	handler, _ := newTestHandler(t)

	cases := []struct {
		name  string
		query string
	}{
		{"missing identity", "start_date=2025-03-01&end_date=2025-03-02"},
		{"malformed date", "user_id=p1&metric=heart_rate&start_date=03/01/2025&end_date=2025-03-02"},
		{"inverted range", "user_id=p1&metric=heart_rate&start_date=2025-03-05&end_date=2025-03-01"},
		{"unknown tier", "user_id=p1&metric=heart_rate&start_date=2025-03-01&end_date=2025-03-02&table_override=weekly"},
		{"negative limit", "user_id=p1&metric=heart_rate&start_date=2025-03-01&end_date=2025-03-02&limit=-1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/data?"+tc.query, nil)
			rr := httptest.NewRecorder()
			handler.HandleGetData(rr, req)
			require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
		})
	}
}

func TestHandleGetData_EmptySeriesIsNotAnError(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet,
		"/data?user_id=nobody&metric=heart_rate&start_date=2025-03-01&end_date=2025-03-01", nil)
	rr := httptest.NewRecorder()
	handler.HandleGetData(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp DataResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, 0, resp.Total)
	require.Empty(t, resp.Data)
}

func TestHandleGetImputed_LinearFillsInteriorGap(t *testing.T) {
	handler, store := newTestHandler(t)
	// Values 2 and 8 three hours apart: linear fill yields 4 and 6.
	require.NoError(t, store.WriteRaw(context.Background(), []series.Point{
		{Timestamp: testDay, ParticipantID: "p1", Metric: "steps", ValueNumeric: series.Float(2)},
		{Timestamp: testDay.Add(3 * time.Hour), ParticipantID: "p1", Metric: "steps", ValueNumeric: series.Float(8)},
	}))

	req := httptest.NewRequest(http.MethodGet,
		"/data/imputed?user_id=p1&metric=steps&start_date=2025-03-01&end_date=2025-03-01&imputation_method=linear", nil)
	rr := httptest.NewRecorder()
	handler.HandleGetImputed(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp []ImputedPointData
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp, 4)

	wantValues := []float64{2, 4, 6, 8}
	wantImputed := []bool{false, true, true, false}
	for i := range resp {
		require.NotNil(t, resp[i].ValueNumeric, "slot %d", i)
		require.InDelta(t, wantValues[i], *resp[i].ValueNumeric, 1e-9, "slot %d", i)
		require.Equal(t, wantImputed[i], resp[i].IsImputed, "slot %d", i)
	}
}

func TestHandleGetImputed_FillGapsDisabled(t *testing.T) {
	handler, store := newTestHandler(t)
	require.NoError(t, store.WriteRaw(context.Background(), []series.Point{
		{Timestamp: testDay, ParticipantID: "p1", Metric: "steps", ValueNumeric: series.Float(2)},
		{Timestamp: testDay.Add(3 * time.Hour), ParticipantID: "p1", Metric: "steps", ValueNumeric: series.Float(8)},
	}))

	req := httptest.NewRequest(http.MethodGet,
		"/data/imputed?user_id=p1&metric=steps&start_date=2025-03-01&end_date=2025-03-01&fill_gaps=false", nil)
	rr := httptest.NewRecorder()
	handler.HandleGetImputed(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp []ImputedPointData
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp, 4)
	require.Nil(t, resp[1].ValueNumeric)
	require.Nil(t, resp[2].ValueNumeric)
	for i := range resp {
		require.False(t, resp[i].IsImputed, "slot %d", i)
	}
}

func TestHandleGetImputed_UnknownMethod(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet,
		"/data/imputed?user_id=p1&metric=steps&start_date=2025-03-01&end_date=2025-03-01&imputation_method=spline", nil)
	rr := httptest.NewRecorder()
	handler.HandleGetImputed(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Contains(t, resp["message"], "spline")
}

func TestHandleGetImputed_NoDataReturnsEmptyList(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet,
		"/data/imputed?user_id=nobody&metric=steps&start_date=2025-03-01&end_date=2025-03-01", nil)
	rr := httptest.NewRecorder()
	handler.HandleGetImputed(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, "[]", rr.Body.String())
}

func TestHandleRunImputation_PersistsForecastPoints(t *testing.T) {
	handler, store := newTestHandler(t)
	// A day of smooth history followed by a 3-hour gap.
	hours := make([]int, 0, 28)
	for h := 0; h < 24; h++ {
		hours = append(hours, h)
	}
	hours = append(hours, 27, 28, 29, 30)
	points := make([]series.Point, 0, len(hours))
	for _, h := range hours {
		points = append(points, series.Point{
			Timestamp:     testDay.Add(time.Duration(h) * time.Hour),
			ParticipantID: "p1",
			Metric:        "heart_rate",
			ValueNumeric:  series.Float(70 + 6*math.Sin(float64(h)*0.6)),
		})
	}
	require.NoError(t, store.WriteRaw(context.Background(), points))

	req := httptest.NewRequest(http.MethodPost,
		"/data/run_imputation?user_id=p1&metric=heart_rate&start_date=2025-03-01&end_date=2025-03-03", nil)
	rr := httptest.NewRecorder()
	handler.HandleRunImputation(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp BatchResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, 3, resp.PointsWritten)
	require.Contains(t, resp.Message, "Successfully imputed and stored 3 points")

	stored, err := store.FetchImputed(context.Background(), fetchAll("p1", "heart_rate"))
	require.NoError(t, err)
	require.Len(t, stored.Points, 3)
	for _, p := range stored.Points {
		require.True(t, p.IsImputed)
	}
}

func TestHandleRunImputation_NoRawDataIs404(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost,
		"/data/run_imputation?user_id=nobody&metric=heart_rate", nil)
	rr := httptest.NewRecorder()
	handler.HandleRunImputation(rr, req)

	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandleRunImputation_NoGaps(t *testing.T) {
	handler, store := newTestHandler(t)
	seedHourly(t, store, "p1", "heart_rate", testDay, []int{0, 1, 2, 3}, 70)

	req := httptest.NewRequest(http.MethodPost,
		"/data/run_imputation?user_id=p1&metric=heart_rate&start_date=2025-03-01&end_date=2025-03-01", nil)
	rr := httptest.NewRecorder()
	handler.HandleRunImputation(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp BatchResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, 0, resp.PointsWritten)
	require.Contains(t, resp.Message, "No gaps found")
}

func TestHandleRunImputation_RejectsGet(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/data/run_imputation?user_id=p1&metric=heart_rate", nil)
	rr := httptest.NewRecorder()
	handler.HandleRunImputation(rr, req)

	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func fetchAll(participant, metric string) storage.FetchRequest {
	return storage.FetchRequest{
		ParticipantID: participant,
		Metric:        metric,
		Range: resolution.Range{
			Start: testDay.AddDate(0, 0, -1),
			End:   testDay.AddDate(0, 0, 7),
		},
		Tier: resolution.TierRaw,
	}
}
