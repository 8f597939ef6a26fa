package memory

import (
	"context"
	"testing"
	"time"

	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/resolution"
	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/series"
	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/storage"
)

func hourRange(start time.Time, hours int) resolution.Range {
	return resolution.Range{Start: start, End: start.Add(time.Duration(hours) * time.Hour)}
}

func TestMemoryStore_WriteAndFetch(t *testing.T) {
	store := New()
	defer store.Close()

	ctx := context.Background()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	points := []series.Point{
		{Timestamp: base.Add(1 * time.Hour), ParticipantID: "p1", Metric: "heart_rate", ValueNumeric: series.Float(72)},
		{Timestamp: base, ParticipantID: "p1", Metric: "heart_rate", ValueNumeric: series.Float(68)},
		{Timestamp: base, ParticipantID: "p1", Metric: "steps", ValueNumeric: series.Float(120)},
		{Timestamp: base, ParticipantID: "p2", Metric: "heart_rate", ValueNumeric: series.Float(80)},
	}
	if err := store.WriteRaw(ctx, points); err != nil {
		t.Fatalf("WriteRaw failed: %v", err)
	}

	res, err := store.Fetch(ctx, storage.FetchRequest{
		ParticipantID: "p1",
		Metric:        "heart_rate",
		Range:         hourRange(base, 24),
		Tier:          resolution.TierRaw,
	})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if res.Total != 2 || len(res.Points) != 2 {
		t.Fatalf("expected 2 points, got total=%d len=%d", res.Total, len(res.Points))
	}
	if !res.Points[0].Timestamp.Before(res.Points[1].Timestamp) {
		t.Error("points are not in ascending timestamp order")
	}
}

func TestMemoryStore_Pagination(t *testing.T) {
	store := New()
	defer store.Close()

	ctx := context.Background()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	var points []series.Point
	for i := 0; i < 10; i++ {
		points = append(points, series.Point{
			Timestamp:     base.Add(time.Duration(i) * time.Hour),
			ParticipantID: "p1",
			Metric:        "steps",
			ValueNumeric:  series.Float(float64(i)),
		})
	}
	store.WriteRaw(ctx, points)

	res, err := store.Fetch(ctx, storage.FetchRequest{
		ParticipantID: "p1",
		Metric:        "steps",
		Range:         hourRange(base, 24),
		Tier:          resolution.TierRaw,
		Limit:         3,
		Offset:        8,
	})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	// Total ignores pagination; the page itself is clipped at the end.
	if res.Total != 10 {
		t.Errorf("Total = %d, want 10", res.Total)
	}
	if len(res.Points) != 2 {
		t.Errorf("page length = %d, want 2", len(res.Points))
	}
}

func TestMemoryStore_TiersAreIsolated(t *testing.T) {
	store := New()
	defer store.Close()

	ctx := context.Background()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	raw := series.Point{Timestamp: base, ParticipantID: "p1", Metric: "heart_rate", ValueNumeric: series.Float(70)}
	agg := series.Point{Timestamp: base, ParticipantID: "p1", Metric: "heart_rate", ValueNumeric: series.Float(71.5)}

	store.WriteRaw(ctx, []series.Point{raw})
	store.WriteAggregates(ctx, resolution.TierHour, []series.Point{agg})

	res, _ := store.Fetch(ctx, storage.FetchRequest{
		ParticipantID: "p1", Metric: "heart_rate",
		Range: hourRange(base, 1), Tier: resolution.TierHour,
	})
	if res.Total != 1 || *res.Points[0].ValueNumeric != 71.5 {
		t.Fatalf("hour tier fetch returned %+v, want the aggregate point", res)
	}
}

func TestMemoryStore_ImputedRoundTrip(t *testing.T) {
	store := New()
	defer store.Close()

	ctx := context.Background()
	ts := time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC)

	imputed := series.Point{
		Timestamp:     ts,
		ParticipantID: "p1",
		Metric:        "heart_rate",
		ValueNumeric:  series.Float(74.2),
		IsImputed:     true,
	}
	if err := store.AppendImputed(ctx, []series.Point{imputed}); err != nil {
		t.Fatalf("AppendImputed failed: %v", err)
	}

	res, err := store.FetchImputed(ctx, storage.FetchRequest{
		ParticipantID: "p1", Metric: "heart_rate",
		Range: hourRange(ts.Add(-time.Hour), 4), Tier: resolution.TierRaw,
	})
	if err != nil {
		t.Fatalf("FetchImputed failed: %v", err)
	}
	if len(res.Points) != 1 {
		t.Fatalf("expected 1 imputed point, got %d", len(res.Points))
	}
	got := res.Points[0]
	if !got.IsImputed || !got.Timestamp.Equal(ts) || *got.ValueNumeric != 74.2 {
		t.Errorf("round-tripped point %+v does not match what was written", got)
	}
}
