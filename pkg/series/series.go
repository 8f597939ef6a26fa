// Package series defines the time-series point model shared by storage,
// gap detection and imputation.
package series

import "time"

// Point is a single observation for one participant/metric.
// ValueNumeric is a pointer so a stored point can carry "no numeric value"
// (some raw device records are text-only, e.g. sleep stage labels).
type Point struct {
	Timestamp     time.Time `json:"timestamp"`
	ParticipantID string    `json:"participant_id"`
	Metric        string    `json:"metric"`
	ValueNumeric  *float64  `json:"value_numeric"`
	ValueText     string    `json:"value_text,omitempty"`
	IsImputed     bool      `json:"is_imputed"`
}

// Float is a convenience constructor for optional numeric values.
func Float(v float64) *float64 { return &v }

// HasValue reports whether the point carries a usable numeric value.
func (p Point) HasValue() bool { return p.ValueNumeric != nil }

// continuousMetrics are physiological signals with short-horizon temporal
// structure. These get the forecast strategy in the batch path; everything
// else (step counts, sleep-stage minutes) gets directional fill.
var continuousMetrics = map[string]bool{
	"heart_rate": true,
}

// Continuous reports whether a metric is treated as a continuous signal.
func Continuous(metric string) bool {
	return continuousMetrics[metric]
}

// SortAscending reports whether points are ordered by ascending timestamp.
// Fetch results must satisfy this before gap detection runs.
func SortAscending(points []Point) bool {
	for i := 1; i < len(points); i++ {
		if points[i].Timestamp.Before(points[i-1].Timestamp) {
			return false
		}
	}
	return true
}
