package ingest

import (
	"fmt"

	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/series"
)

// Validation limits for inbound device points.
const (
	MaxMetricNameLength    = 256
	MaxParticipantIDLength = 256
	MaxTextValueLength     = 1024
	MaxPointsPerRequest    = 1000
)

var (
	// ErrMetricNameEmpty is returned when a point has no metric name
	ErrMetricNameEmpty = fmt.Errorf("metric name cannot be empty")

	// ErrParticipantEmpty is returned when a point has no participant
	ErrParticipantEmpty = fmt.Errorf("participant_id cannot be empty")

	// ErrMetricNameTooLong is returned when a metric name exceeds the limit
	ErrMetricNameTooLong = fmt.Errorf("metric name too long (max %d chars)", MaxMetricNameLength)

	// ErrParticipantTooLong is returned when a participant id exceeds the limit
	ErrParticipantTooLong = fmt.Errorf("participant_id too long (max %d chars)", MaxParticipantIDLength)

	// ErrTextValueTooLong is returned when a text value exceeds the limit
	ErrTextValueTooLong = fmt.Errorf("text value too long (max %d chars)", MaxTextValueLength)

	// ErrTimestampMissing is returned when a point has a zero timestamp
	ErrTimestampMissing = fmt.Errorf("timestamp cannot be zero")

	// ErrValueMissing is returned when a point carries neither value kind
	ErrValueMissing = fmt.Errorf("point must carry a numeric or text value")

	// ErrTooManyPoints is returned when a request exceeds the batch limit
	ErrTooManyPoints = fmt.Errorf("too many points in request (max %d)", MaxPointsPerRequest)
)

// ValidatePoint validates a device point before it reaches the raw store.
func ValidatePoint(p series.Point) error {
	if p.ParticipantID == "" {
		return ErrParticipantEmpty
	}
	if len(p.ParticipantID) > MaxParticipantIDLength {
		return fmt.Errorf("%w: %q has %d chars", ErrParticipantTooLong, p.ParticipantID, len(p.ParticipantID))
	}
	if p.Metric == "" {
		return ErrMetricNameEmpty
	}
	if len(p.Metric) > MaxMetricNameLength {
		return fmt.Errorf("%w: %q has %d chars", ErrMetricNameTooLong, p.Metric, len(p.Metric))
	}
	if p.Timestamp.IsZero() {
		return ErrTimestampMissing
	}
	if !p.HasValue() && p.ValueText == "" {
		return ErrValueMissing
	}
	if len(p.ValueText) > MaxTextValueLength {
		return fmt.Errorf("%w: %d chars", ErrTextValueTooLong, len(p.ValueText))
	}
	return nil
}
