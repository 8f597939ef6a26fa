package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/series"
	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/storage"
)

// MaxImportBatchSize caps how many points one storage write carries.
const MaxImportBatchSize = 5000

// Importer restores device backup files into the raw store.
type Importer struct {
	store storage.Store
}

// NewImporter creates a new importer.
func NewImporter(store storage.Store) *Importer {
	return &Importer{store: store}
}

// ImportResult reports what an import wrote.
type ImportResult struct {
	PointsImported int       `json:"points_imported"`
	BatchesWritten int       `json:"batches_written"`
	TimeRange      string    `json:"time_range"`
	ImportedAt     time.Time `json:"imported_at"`
	Errors         []string  `json:"errors,omitempty"`
}

// backupFile matches the envelope ToJSON produces.
type backupFile struct {
	Metadata struct {
		ParticipantID string `json:"participant_id"`
		Metric        string `json:"metric"`
	} `json:"metadata"`
	Points []series.Point `json:"points"`
}

// FromJSON imports a JSON backup. Points that fail validation are skipped
// and reported; previously imputed points are never restored as raw.
func (im *Importer) FromJSON(ctx context.Context, r io.Reader) (*ImportResult, error) {
	var backup backupFile
	if err := json.NewDecoder(r).Decode(&backup); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}

	if len(backup.Points) == 0 {
		return &ImportResult{TimeRange: "empty", ImportedAt: time.Now()}, nil
	}

	var validationErrors []string
	valid := make([]series.Point, 0, len(backup.Points))
	for i, p := range backup.Points {
		if err := validatePoint(p); err != nil {
			validationErrors = append(validationErrors, fmt.Sprintf("point %d: %v", i, err))
			continue
		}
		if p.IsImputed {
			// Synthesized values belong only to the imputed store.
			validationErrors = append(validationErrors, fmt.Sprintf("point %d: imputed point skipped", i))
			continue
		}
		valid = append(valid, p)
	}

	batchCount := 0
	for i := 0; i < len(valid); i += MaxImportBatchSize {
		end := i + MaxImportBatchSize
		if end > len(valid) {
			end = len(valid)
		}
		if err := im.store.WriteRaw(ctx, valid[i:end]); err != nil {
			return nil, fmt.Errorf("failed to write batch %d: %w", batchCount, err)
		}
		batchCount++
	}

	timeRange := "empty"
	if len(valid) > 0 {
		minTime, maxTime := valid[0].Timestamp, valid[0].Timestamp
		for _, p := range valid {
			if p.Timestamp.Before(minTime) {
				minTime = p.Timestamp
			}
			if p.Timestamp.After(maxTime) {
				maxTime = p.Timestamp
			}
		}
		timeRange = fmt.Sprintf("%s to %s", minTime.Format(time.RFC3339), maxTime.Format(time.RFC3339))
	}

	return &ImportResult{
		PointsImported: len(valid),
		BatchesWritten: batchCount,
		TimeRange:      timeRange,
		ImportedAt:     time.Now(),
		Errors:         validationErrors,
	}, nil
}

func validatePoint(p series.Point) error {
	if p.ParticipantID == "" {
		return fmt.Errorf("participant_id cannot be empty")
	}
	if p.Metric == "" {
		return fmt.Errorf("metric cannot be empty")
	}
	if p.Timestamp.IsZero() {
		return fmt.Errorf("timestamp cannot be zero")
	}
	if !p.HasValue() && p.ValueText == "" {
		return fmt.Errorf("point carries no value")
	}

	now := time.Now()
	if p.Timestamp.Before(now.Add(-10 * 365 * 24 * time.Hour)) {
		return fmt.Errorf("timestamp too far in past: %s", p.Timestamp)
	}
	if p.Timestamp.After(now.Add(24 * time.Hour)) {
		return fmt.Errorf("timestamp too far in future: %s", p.Timestamp)
	}
	return nil
}
