package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/resolution"
	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/series"
	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/storage"
)

// Store keeps points in memory. Data is lost on restart.
// Useful for testing and development.
type Store struct {
	mu sync.RWMutex

	// One slice per tier, plus the imputed store. Raw maps to tier "raw".
	tiers   map[resolution.Tier][]series.Point
	imputed []series.Point
}

// New creates an in-memory storage backend.
func New() *Store {
	return &Store{
		tiers: make(map[resolution.Tier][]series.Point),
	}
}

// WriteRaw stores raw points.
func (s *Store) WriteRaw(ctx context.Context, points []series.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiers[resolution.TierRaw] = append(s.tiers[resolution.TierRaw], points...)
	return nil
}

// WriteAggregates stores bucket averages for an aggregate tier.
func (s *Store) WriteAggregates(ctx context.Context, tier resolution.Tier, points []series.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiers[tier] = append(s.tiers[tier], points...)
	return nil
}

// Fetch retrieves ordered points matching the request.
func (s *Store) Fetch(ctx context.Context, req storage.FetchRequest) (storage.FetchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterAndPage(s.tiers[req.Tier], req), nil
}

// AppendImputed bulk-appends synthesized points.
func (s *Store) AppendImputed(ctx context.Context, points []series.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.imputed = append(s.imputed, points...)
	return nil
}

// FetchImputed retrieves ordered synthesized points matching the request.
func (s *Store) FetchImputed(ctx context.Context, req storage.FetchRequest) (storage.FetchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterAndPage(s.imputed, req), nil
}

// ListSeries enumerates every (participant, metric) pair with raw data.
func (s *Store) ListSeries(ctx context.Context) ([]storage.SeriesKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[storage.SeriesKey]bool)
	var keys []storage.SeriesKey
	for _, p := range s.tiers[resolution.TierRaw] {
		k := storage.SeriesKey{ParticipantID: p.ParticipantID, Metric: p.Metric}
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ParticipantID != keys[j].ParticipantID {
			return keys[i].ParticipantID < keys[j].ParticipantID
		}
		return keys[i].Metric < keys[j].Metric
	})
	return keys, nil
}

// Close is a no-op for in-memory storage.
func (s *Store) Close() error { return nil }

func filterAndPage(points []series.Point, req storage.FetchRequest) storage.FetchResult {
	var matched []series.Point
	for _, p := range points {
		if p.ParticipantID != req.ParticipantID || p.Metric != req.Metric {
			continue
		}
		if !req.Range.Contains(p.Timestamp) {
			continue
		}
		matched = append(matched, p)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Timestamp.Before(matched[j].Timestamp)
	})

	total := len(matched)
	if req.Offset > 0 {
		if req.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[req.Offset:]
		}
	}
	if req.Limit > 0 && len(matched) > req.Limit {
		matched = matched[:req.Limit]
	}

	return storage.FetchResult{Points: matched, Total: total}
}
