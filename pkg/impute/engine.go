// Package impute repairs gaps in re-gridded wearable series.
//
// Two interchangeable strategies: short-horizon forecasting for continuous
// physiological signals, and directional fill or local interpolation for
// sparse/bounded ones. The batch path persists synthesized points to the
// imputed store; the ad-hoc path is advisory and never writes back.
package impute

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/config"
	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/gaps"
	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/resolution"
	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/series"
	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/storage"
)

// Outcome classifies a batch run. None of these are errors: a run that
// found nothing to do, or skipped every gap, still succeeded.
type Outcome string

const (
	OutcomeImputed   Outcome = "imputed"
	OutcomeNoGaps    Outcome = "no_gaps"
	OutcomeAllFailed Outcome = "all_failed"
	OutcomeNothing   Outcome = "nothing_imputed"
)

// BatchResult reports what a batch imputation run wrote.
type BatchResult struct {
	Outcome Outcome
	Written int
}

// Engine runs both imputation strategies over a point store.
type Engine struct {
	store      storage.Store
	opts       config.Options
	forecaster *Forecaster

	// onPersist, when set, observes every batch of points written to the
	// imputed store. Used to feed the live websocket stream.
	onPersist func([]series.Point)
}

// New creates an imputation engine.
func New(store storage.Store, opts config.Options) *Engine {
	return &Engine{
		store:      store,
		opts:       opts,
		forecaster: NewForecaster(opts),
	}
}

// SetPersistObserver registers a callback invoked after each successful
// bulk append of synthesized points.
func (e *Engine) SetPersistObserver(fn func([]series.Point)) {
	e.onPersist = fn
}

// RunBatch detects and repairs gaps for one participant/metric/range,
// persisting the synthesized points. The fetch always forces the raw tier:
// imputation must operate on original sample granularity no matter how
// long the range is.
func (e *Engine) RunBatch(ctx context.Context, participant, metric string, rng resolution.Range) (BatchResult, error) {
	res, err := e.store.Fetch(ctx, storage.FetchRequest{
		ParticipantID: participant,
		Metric:        metric,
		Range:         rng,
		Tier:          resolution.TierRaw,
	})
	if err != nil {
		return BatchResult{}, err
	}
	if len(res.Points) == 0 {
		return BatchResult{}, series.ErrNotFound
	}

	grid := gaps.Regrid(res.Points, e.opts.SamplingPeriod)

	var synthesized []series.Point
	var outcome Outcome
	if series.Continuous(metric) {
		synthesized, outcome = e.forecastGaps(res.Points, grid, participant, metric)
	} else {
		synthesized, outcome = e.directionalFill(grid, participant, metric)
	}
	if outcome != OutcomeImputed {
		return BatchResult{Outcome: outcome}, nil
	}

	synthesized = DropUnusable(synthesized)
	if len(synthesized) == 0 {
		return BatchResult{Outcome: OutcomeNothing}, nil
	}

	if err := e.store.AppendImputed(ctx, synthesized); err != nil {
		return BatchResult{}, err
	}
	if e.onPersist != nil {
		e.onPersist(synthesized)
	}

	log.Printf("Imputed %d points for %s/%s", len(synthesized), participant, metric)
	return BatchResult{Outcome: OutcomeImputed, Written: len(synthesized)}, nil
}

// forecastGaps applies the forecast strategy gap by gap. Gaps with thin
// training history or failed fits are skipped silently; one bad gap never
// aborts the run.
func (e *Engine) forecastGaps(original []series.Point, grid gaps.Grid, participant, metric string) ([]series.Point, Outcome) {
	gapSet := gaps.Detect(grid)
	if len(gapSet) == 0 {
		return nil, OutcomeNoGaps
	}

	var synthesized []series.Point
	for _, gap := range gapSet {
		train := e.trainingWindow(original, gap.Start)
		if len(train) < e.opts.MinTrainingPoints {
			continue
		}

		forecast, err := e.forecaster.Forecast(train, gap.Length)
		if err != nil {
			log.Printf("Skipping gap at %v for %s/%s: %v", gap.Start, participant, metric, err)
			continue
		}

		for step, v := range forecast {
			synthesized = append(synthesized, series.Point{
				Timestamp:     gap.Start.Add(time.Duration(step) * grid.Period),
				ParticipantID: participant,
				Metric:        metric,
				ValueNumeric:  series.Float(v),
				IsImputed:     true,
			})
		}
	}

	if len(synthesized) == 0 {
		return nil, OutcomeAllFailed
	}
	return synthesized, OutcomeImputed
}

// trainingWindow gathers usable values from the original, non-re-gridded
// series in the 24 hours before the gap, ending one sampling period before
// it starts. Both window ends are inclusive.
func (e *Engine) trainingWindow(original []series.Point, gapStart time.Time) []float64 {
	windowStart := gapStart.Add(-time.Duration(e.opts.TrainingWindowHours) * time.Hour)
	windowEnd := gapStart.Add(-e.opts.SamplingPeriod)

	var train []float64
	for _, p := range original {
		if p.Timestamp.Before(windowStart) || p.Timestamp.After(windowEnd) {
			continue
		}
		if p.HasValue() {
			train = append(train, *p.ValueNumeric)
		}
	}
	return train
}

// directionalFill applies forward-then-backward fill to the grid and
// collects the newly created slots.
func (e *Engine) directionalFill(grid gaps.Grid, participant, metric string) ([]series.Point, Outcome) {
	if len(gaps.Detect(grid)) == 0 {
		return nil, OutcomeNoGaps
	}
	filled := ForwardBackwardFill(grid)

	var synthesized []series.Point
	for i, slot := range grid.Slots {
		if !filled.Imputed[i] {
			continue
		}
		synthesized = append(synthesized, series.Point{
			Timestamp:     slot.Timestamp,
			ParticipantID: participant,
			Metric:        metric,
			ValueNumeric:  filled.Values[i],
			IsImputed:     true,
		})
	}

	if len(synthesized) == 0 {
		return nil, OutcomeNothing
	}
	return synthesized, OutcomeImputed
}

// FillAdHoc re-grids and fills a series for display. Nothing is persisted;
// the caller gets every grid slot with its provenance flag, and slots
// still missing after the fill carry a nil numeric value.
//
// The re-grid assumes the fixed hourly cadence regardless of the metric's
// true sampling rate.
func (e *Engine) FillAdHoc(ctx context.Context, participant, metric string, rng resolution.Range, method FillMethod, window int) ([]series.Point, error) {
	res, err := e.store.Fetch(ctx, storage.FetchRequest{
		ParticipantID: participant,
		Metric:        metric,
		Range:         rng,
		Tier:          resolution.TierRaw,
	})
	if err != nil {
		return nil, err
	}
	if len(res.Points) == 0 {
		return []series.Point{}, nil
	}

	grid := gaps.Regrid(res.Points, e.opts.SamplingPeriod)
	if len(grid.Slots) == 0 {
		// Too few points to grid: return the raw points unchanged.
		return Merge(res.Points, nil), nil
	}

	var filled FillResult
	switch method {
	case MethodLinear:
		filled = LinearInterpolate(grid)
	case MethodMedianRolling:
		if window < 1 {
			window = e.opts.RollingMedianWindow
		}
		filled = RollingMedianFill(grid, window, 1)
	default:
		return nil, fmt.Errorf("%w: %q", series.ErrInvalidMethod, method)
	}

	out := make([]series.Point, 0, len(grid.Slots))
	for i, slot := range grid.Slots {
		out = append(out, series.Point{
			Timestamp:     slot.Timestamp,
			ParticipantID: participant,
			Metric:        metric,
			ValueNumeric:  filled.Values[i],
			IsImputed:     filled.Imputed[i],
		})
	}
	return out, nil
}

// Regrid exposes the engine's cadence-aligned view of a raw series without
// filling, for callers that want the grid with provenance-false flags.
func (e *Engine) Regrid(points []series.Point, participant, metric string) []series.Point {
	grid := gaps.Regrid(points, e.opts.SamplingPeriod)
	if len(grid.Slots) == 0 {
		return Merge(points, nil)
	}
	out := make([]series.Point, 0, len(grid.Slots))
	for _, slot := range grid.Slots {
		out = append(out, series.Point{
			Timestamp:     slot.Timestamp,
			ParticipantID: participant,
			Metric:        metric,
			ValueNumeric:  slot.Value,
		})
	}
	return out
}
