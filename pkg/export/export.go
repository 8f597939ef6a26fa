package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/resolution"
	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/series"
	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/storage"
)

// Exporter snapshots a participant's series to portable formats.
type Exporter struct {
	store storage.Store
}

// NewExporter creates a new exporter.
func NewExporter(store storage.Store) *Exporter {
	return &Exporter{store: store}
}

// Options configures one export.
type Options struct {
	ParticipantID string
	Metric        string
	Range         resolution.Range

	// Tier selects which resolution is exported. TierRaw by default.
	Tier resolution.Tier

	// IncludeImputed appends the imputed store's points after the tier's
	// own points.
	IncludeImputed bool
}

// Result reports what an export produced.
type Result struct {
	PointsExported int       `json:"points_exported"`
	TimeRange      string    `json:"time_range"`
	Format         string    `json:"format"`
	ExportedAt     time.Time `json:"exported_at"`
}

func (e *Exporter) collect(ctx context.Context, opts Options) ([]series.Point, error) {
	req := storage.FetchRequest{
		ParticipantID: opts.ParticipantID,
		Metric:        opts.Metric,
		Range:         opts.Range,
		Tier:          opts.Tier,
	}
	res, err := e.store.Fetch(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch series: %w", err)
	}
	points := res.Points

	if opts.IncludeImputed {
		imputed, err := e.store.FetchImputed(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch imputed points: %w", err)
		}
		points = append(points, imputed.Points...)
		sort.Slice(points, func(i, j int) bool {
			return points[i].Timestamp.Before(points[j].Timestamp)
		})
	}
	return points, nil
}

// ToJSON writes the snapshot as JSON with a metadata envelope.
func (e *Exporter) ToJSON(ctx context.Context, w io.Writer, opts Options) (*Result, error) {
	points, err := e.collect(ctx, opts)
	if err != nil {
		return nil, err
	}

	snapshot := struct {
		Metadata struct {
			ExportedAt    time.Time `json:"exported_at"`
			ParticipantID string    `json:"participant_id"`
			Metric        string    `json:"metric"`
			StartTime     time.Time `json:"start_time"`
			EndTime       time.Time `json:"end_time"`
			PointCount    int       `json:"point_count"`
			Version       string    `json:"version"`
		} `json:"metadata"`
		Points []series.Point `json:"points"`
	}{
		Points: points,
	}
	snapshot.Metadata.ExportedAt = time.Now()
	snapshot.Metadata.ParticipantID = opts.ParticipantID
	snapshot.Metadata.Metric = opts.Metric
	snapshot.Metadata.StartTime = opts.Range.Start
	snapshot.Metadata.EndTime = opts.Range.End
	snapshot.Metadata.PointCount = len(points)
	snapshot.Metadata.Version = "1.0"

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(snapshot); err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}

	return &Result{
		PointsExported: len(points),
		TimeRange:      formatRange(opts.Range),
		Format:         "json",
		ExportedAt:     snapshot.Metadata.ExportedAt,
	}, nil
}

// ToCSV writes the snapshot as CSV with a fixed column set.
func (e *Exporter) ToCSV(ctx context.Context, w io.Writer, opts Options) (*Result, error) {
	points, err := e.collect(ctx, opts)
	if err != nil {
		return nil, err
	}

	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := []string{"timestamp", "participant_id", "metric", "value_numeric", "value_text", "is_imputed"}
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, p := range points {
		numeric := ""
		if p.ValueNumeric != nil {
			numeric = strconv.FormatFloat(*p.ValueNumeric, 'f', -1, 64)
		}
		row := []string{
			p.Timestamp.Format(time.RFC3339),
			p.ParticipantID,
			p.Metric,
			numeric,
			p.ValueText,
			strconv.FormatBool(p.IsImputed),
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	return &Result{
		PointsExported: len(points),
		TimeRange:      formatRange(opts.Range),
		Format:         "csv",
		ExportedAt:     time.Now(),
	}, nil
}

func formatRange(rng resolution.Range) string {
	return fmt.Sprintf("%s to %s", rng.Start.Format(time.RFC3339), rng.End.Format(time.RFC3339))
}
