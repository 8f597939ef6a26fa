package storage

import (
	"context"

	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/resolution"
	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/series"
)

// Store defines the interface for point storage backends.
// Implementations: memory (testing), badger (production).
//
// Raw points are written by ingestion and never mutated. Aggregate tiers
// are materialized by the rollup job and are read-only to the pipeline.
// The imputed store is append-only and written exclusively by the batch
// imputation path.
type Store interface {
	// WriteRaw stores raw device points.
	WriteRaw(ctx context.Context, points []series.Point) error

	// WriteAggregates stores bucket-averaged points for an aggregate tier.
	// Only the rollup job calls this.
	WriteAggregates(ctx context.Context, tier resolution.Tier, points []series.Point) error

	// Fetch retrieves ordered points for one participant/metric/range from
	// the given tier. A pure read: repeated calls with the same arguments
	// return the same result.
	Fetch(ctx context.Context, req FetchRequest) (FetchResult, error)

	// AppendImputed bulk-appends synthesized points to the imputed store.
	AppendImputed(ctx context.Context, points []series.Point) error

	// FetchImputed retrieves ordered synthesized points for one
	// participant/metric/range.
	FetchImputed(ctx context.Context, req FetchRequest) (FetchResult, error)

	// ListSeries enumerates every (participant, metric) pair with raw data.
	// The rollup job uses this to know which series to materialize.
	ListSeries(ctx context.Context) ([]SeriesKey, error)

	// Close cleanly shuts down the storage.
	Close() error
}

// SeriesKey identifies one stored series.
type SeriesKey struct {
	ParticipantID string `json:"participant_id"`
	Metric        string `json:"metric"`
}

// FetchRequest specifies which points to retrieve.
type FetchRequest struct {
	ParticipantID string
	Metric        string
	Range         resolution.Range
	Tier          resolution.Tier

	// Pagination. Limit 0 means no limit; Total is always reported for
	// the unpaginated filter.
	Limit  int
	Offset int
}

// FetchResult holds ordered points plus the unpaginated match count.
type FetchResult struct {
	Points []series.Point
	Total  int
}
