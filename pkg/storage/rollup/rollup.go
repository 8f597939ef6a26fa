// Package rollup materializes the aggregate resolution tiers.
//
// Each aggregate tier stores the time-bucketed mean of the raw numeric
// value for a (participant, metric) series, stamped at the bucket's period
// start. Text values exist only at raw resolution and are dropped here.
// The pipeline treats aggregate tiers as read-only; this job is the sole
// writer.
package rollup

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/resolution"
	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/series"
	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/storage"
)

// Rollup bucket-averages raw points into the aggregate tiers.
type Rollup struct {
	store storage.Store
}

// New creates a rollup job over the given store.
func New(store storage.Store) *Rollup {
	return &Rollup{store: store}
}

// aggregateTiers in materialization order.
var aggregateTiers = []resolution.Tier{
	resolution.TierMinute,
	resolution.TierHour,
	resolution.TierDay,
}

// MaterializeAll rebuilds every aggregate tier for every known series over
// the given range. Buckets are deterministic functions of the raw data, so
// re-running over an overlapping range overwrites buckets with identical
// keys rather than duplicating them.
func (r *Rollup) MaterializeAll(ctx context.Context, rng resolution.Range) error {
	keys, err := r.store.ListSeries(ctx)
	if err != nil {
		return fmt.Errorf("failed to list series: %w", err)
	}

	for _, key := range keys {
		if err := r.MaterializeSeries(ctx, key, rng); err != nil {
			return fmt.Errorf("rollup of %s/%s failed: %w", key.ParticipantID, key.Metric, err)
		}
	}
	return nil
}

// MaterializeSeries rebuilds the aggregate tiers for one series.
func (r *Rollup) MaterializeSeries(ctx context.Context, key storage.SeriesKey, rng resolution.Range) error {
	res, err := r.store.Fetch(ctx, storage.FetchRequest{
		ParticipantID: key.ParticipantID,
		Metric:        key.Metric,
		Range:         rng,
		Tier:          resolution.TierRaw,
	})
	if err != nil {
		return fmt.Errorf("failed to fetch raw points: %w", err)
	}
	if len(res.Points) == 0 {
		return nil
	}

	for _, tier := range aggregateTiers {
		buckets := Aggregate(res.Points, tier)
		if len(buckets) == 0 {
			continue
		}
		if err := r.store.WriteAggregates(ctx, tier, buckets); err != nil {
			return fmt.Errorf("failed to write %s aggregates: %w", tier, err)
		}
	}
	return nil
}

// Aggregate bucket-averages raw points at the tier's period. Points with
// no numeric value are skipped; text never survives aggregation.
func Aggregate(points []series.Point, tier resolution.Tier) []series.Point {
	period := tier.Period()
	if period <= 0 {
		return nil
	}

	type bucket struct {
		sum   float64
		count int
	}
	buckets := make(map[time.Time]*bucket)

	var participant, metric string
	for _, p := range points {
		if !p.HasValue() {
			continue
		}
		participant, metric = p.ParticipantID, p.Metric

		start := p.Timestamp.Truncate(period)
		b, ok := buckets[start]
		if !ok {
			b = &bucket{}
			buckets[start] = b
		}
		b.sum += *p.ValueNumeric
		b.count++
	}

	out := make([]series.Point, 0, len(buckets))
	for start, b := range buckets {
		out = append(out, series.Point{
			Timestamp:     start,
			ParticipantID: participant,
			Metric:        metric,
			ValueNumeric:  series.Float(b.sum / float64(b.count)),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}
