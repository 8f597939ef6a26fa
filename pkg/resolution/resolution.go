// Package resolution maps requested time ranges onto storage tiers.
//
// Each tier stores the same (participant, metric) series at a different
// granularity: raw device samples, or minute/hour/day bucket averages.
// The selector bounds row volume by trading resolution for response size;
// the imputation pipeline bypasses it with an explicit raw override since
// it must see original sample granularity.
package resolution

import (
	"fmt"
	"time"

	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/config"
	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/series"
)

// Tier is a storage granularity.
type Tier string

const (
	TierRaw    Tier = "raw"
	TierMinute Tier = "minute"
	TierHour   Tier = "hour"
	TierDay    Tier = "day"
)

// ParseTier validates a tier override string. Empty means "no override".
func ParseTier(s string) (Tier, error) {
	switch Tier(s) {
	case TierRaw, TierMinute, TierHour, TierDay:
		return Tier(s), nil
	case "":
		return "", nil
	default:
		return "", fmt.Errorf("%w: %q", series.ErrInvalidTier, s)
	}
}

// Aggregated reports whether the tier stores bucket averages rather than
// instantaneous samples. Aggregate tiers never carry text values.
func (t Tier) Aggregated() bool {
	return t == TierMinute || t == TierHour || t == TierDay
}

// Period returns the bucket width of an aggregate tier, or zero for raw.
func (t Tier) Period() time.Duration {
	switch t {
	case TierMinute:
		return time.Minute
	case TierHour:
		return time.Hour
	case TierDay:
		return 24 * time.Hour
	default:
		return 0
	}
}

// Range is a half-open [Start, End) time interval.
type Range struct {
	Start time.Time
	End   time.Time
}

// Duration returns the span of the range.
func (r Range) Duration() time.Duration { return r.End.Sub(r.Start) }

// Contains reports whether t falls inside the half-open interval.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

const dateLayout = "2006-01-02"

// ParseDateRange parses YYYY-MM-DD start/end dates into a half-open range.
// The inclusive end date is normalized by advancing one day, so querying
// 2024-01-01..2024-01-01 covers the whole first of January.
func ParseDateRange(start, end string) (Range, error) {
	s, err := time.Parse(dateLayout, start)
	if err != nil {
		return Range{}, fmt.Errorf("%w: start_date %q", series.ErrInvalidFormat, start)
	}
	e, err := time.Parse(dateLayout, end)
	if err != nil {
		return Range{}, fmt.Errorf("%w: end_date %q", series.ErrInvalidFormat, end)
	}
	e = e.AddDate(0, 0, 1)
	if !s.Before(e) {
		return Range{}, series.ErrInvalidRange
	}
	return Range{Start: s, End: e}, nil
}

// Selector chooses the coarsest tier that safely satisfies a range.
type Selector struct {
	thresholds config.ResolutionThresholds
}

// NewSelector builds a selector from pipeline options.
func NewSelector(opts config.Options) *Selector {
	return &Selector{thresholds: opts.ResolutionThresholdsDays}
}

// Select applies the span policy, unless override names an explicit tier.
func (s *Selector) Select(r Range, override Tier) Tier {
	if override != "" {
		return override
	}
	days := r.Duration().Hours() / 24
	switch {
	case days > float64(s.thresholds.Day):
		return TierDay
	case days > float64(s.thresholds.Hour):
		return TierHour
	case days > float64(s.thresholds.Minute):
		return TierMinute
	default:
		return TierRaw
	}
}
