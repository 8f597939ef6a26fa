package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/resolution"
	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/series"
	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/storage"
)

// Store implements storage.Store using BadgerDB (LSM tree).
//
// Key layout: [tier prefix (1 byte)][series hash (8 bytes)][timestamp (8 bytes)].
// The series hash covers (participant, metric), so a prefix scan over one
// series yields points in ascending timestamp order for free. The imputed
// store is a distinct prefix with the same layout; because the timestamp is
// part of the key, re-running batch imputation over an overlapping range
// replaces rather than duplicates synthesized points.
type Store struct {
	db *badger.DB
}

// Config holds BadgerDB configuration.
type Config struct {
	// Path to store database files.
	Path string

	// InMemory mode (for testing).
	InMemory bool

	// MaxMemoryMB limits BadgerDB memory usage in MB (0 = conservative default).
	MaxMemoryMB int64
}

// Tier prefixes. Raw, aggregate tiers and the imputed store each get their
// own keyspace so fetches never cross tiers.
const (
	prefixRaw     byte = 'r'
	prefixMinute  byte = 'm'
	prefixHour    byte = 'h'
	prefixDay     byte = 'd'
	prefixImputed byte = 'i'

	// Series catalog: hash keys are one-way, so raw writes also record the
	// (participant, metric) pair under its own prefix for enumeration.
	prefixCatalog byte = 's'
)

func tierPrefix(t resolution.Tier) byte {
	switch t {
	case resolution.TierMinute:
		return prefixMinute
	case resolution.TierHour:
		return prefixHour
	case resolution.TierDay:
		return prefixDay
	default:
		return prefixRaw
	}
}

// New creates a BadgerDB storage backend.
func New(cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path)

	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}

	// Conservative memory bounds. BadgerDB's defaults assume a server with
	// spare gigabytes; a study data service often shares a small VM.
	memTableSize := int64(16 * 1024 * 1024)
	if cfg.MaxMemoryMB > 0 {
		memTableSize = cfg.MaxMemoryMB * 1024 * 1024 / 3
	}

	opts = opts.
		WithCompression(options.Snappy).
		WithNumVersionsToKeep(1).
		WithMemTableSize(memTableSize).
		WithNumMemtables(3).
		WithBlockCacheSize(memTableSize / 2).
		WithIndexCacheSize(memTableSize / 4).
		WithMaxLevels(4).
		WithNumLevelZeroTables(2).
		WithNumLevelZeroTablesStall(4).
		WithValueThreshold(1024).
		WithNumCompactors(1).
		WithValueLogMaxEntries(5000).
		WithValueLogFileSize(64 << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	return &Store{db: db}, nil
}

// WriteRaw stores raw device points and records their series in the catalog.
func (s *Store) WriteRaw(ctx context.Context, points []series.Point) error {
	if err := s.write(ctx, prefixRaw, points); err != nil {
		return err
	}
	return s.catalog(ctx, points)
}

func (s *Store) catalog(ctx context.Context, points []series.Point) error {
	seen := make(map[storage.SeriesKey]bool)
	var entries []storage.SeriesKey
	for _, p := range points {
		k := storage.SeriesKey{ParticipantID: p.ParticipantID, Metric: p.Metric}
		if !seen[k] {
			seen[k] = true
			entries = append(entries, k)
		}
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		for _, k := range entries {
			value, err := json.Marshal(k)
			if err != nil {
				return err
			}
			if err := txn.Set(seriesKeyPrefix(prefixCatalog, k.ParticipantID, k.Metric), value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", series.ErrStorage, err)
	}
	return nil
}

// ListSeries enumerates every (participant, metric) pair with raw data.
func (s *Store) ListSeries(ctx context.Context) ([]storage.SeriesKey, error) {
	var keys []storage.SeriesKey
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte{prefixCatalog}

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(opts.Prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var k storage.SeriesKey
				if err := json.Unmarshal(val, &k); err != nil {
					return err
				}
				keys = append(keys, k)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", series.ErrStorage, err)
	}
	return keys, nil
}

// WriteAggregates stores bucket averages for an aggregate tier.
func (s *Store) WriteAggregates(ctx context.Context, tier resolution.Tier, points []series.Point) error {
	if !tier.Aggregated() {
		return fmt.Errorf("WriteAggregates: %s is not an aggregate tier", tier)
	}
	return s.write(ctx, tierPrefix(tier), points)
}

// AppendImputed bulk-appends synthesized points to the imputed store.
func (s *Store) AppendImputed(ctx context.Context, points []series.Point) error {
	return s.write(ctx, prefixImputed, points)
}

func (s *Store) write(ctx context.Context, prefix byte, points []series.Point) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", series.ErrStorage, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- s.db.Update(func(txn *badger.Txn) error {
			for i, p := range points {
				// Check context periodically (every 100 points)
				if i%100 == 0 {
					select {
					case <-ctx.Done():
						return ctx.Err()
					default:
					}
				}

				value, err := json.Marshal(p)
				if err != nil {
					return fmt.Errorf("failed to encode point: %w", err)
				}
				if err := txn.Set(makeKey(prefix, p.ParticipantID, p.Metric, p.Timestamp), value); err != nil {
					return fmt.Errorf("failed to write point: %w", err)
				}
			}
			return nil
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: %v", series.ErrStorage, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: write cancelled: %v", series.ErrStorage, ctx.Err())
	}
}

// Fetch retrieves ordered points for one participant/metric/range.
func (s *Store) Fetch(ctx context.Context, req storage.FetchRequest) (storage.FetchResult, error) {
	return s.scan(ctx, tierPrefix(req.Tier), req)
}

// FetchImputed retrieves ordered synthesized points for one participant/metric/range.
func (s *Store) FetchImputed(ctx context.Context, req storage.FetchRequest) (storage.FetchResult, error) {
	return s.scan(ctx, prefixImputed, req)
}

func (s *Store) scan(ctx context.Context, prefix byte, req storage.FetchRequest) (storage.FetchResult, error) {
	if err := ctx.Err(); err != nil {
		return storage.FetchResult{}, fmt.Errorf("%w: %v", series.ErrStorage, err)
	}

	type scanResult struct {
		res storage.FetchResult
		err error
	}
	done := make(chan scanResult, 1)

	go func() {
		var res storage.FetchResult
		err := s.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchSize = 100
			seriesPrefix := seriesKeyPrefix(prefix, req.ParticipantID, req.Metric)
			opts.Prefix = seriesPrefix

			it := txn.NewIterator(opts)
			defer it.Close()

			// Seek directly to the range start; keys within one series sort
			// by timestamp, so iteration stops at the first key past End.
			seek := append(append([]byte{}, seriesPrefix...), timestampBytes(req.Range.Start)...)

			var iterCount int
			for it.Seek(seek); it.ValidForPrefix(seriesPrefix); it.Next() {
				iterCount++
				if iterCount%1000 == 0 {
					select {
					case <-ctx.Done():
						return ctx.Err()
					default:
					}
				}

				ts := keyTimestamp(it.Item().Key())
				if !ts.Before(req.Range.End) {
					break
				}

				// Total counts every match; the page window is cut by
				// offset/limit as we go.
				res.Total++
				if req.Offset > 0 && res.Total <= req.Offset {
					continue
				}
				if req.Limit > 0 && len(res.Points) >= req.Limit {
					continue
				}

				err := it.Item().Value(func(val []byte) error {
					var p series.Point
					if err := json.Unmarshal(val, &p); err != nil {
						return err
					}
					res.Points = append(res.Points, p)
					return nil
				})
				if err != nil {
					return err
				}
			}
			return nil
		})
		done <- scanResult{res: res, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return storage.FetchResult{}, fmt.Errorf("%w: %v", series.ErrStorage, r.err)
		}
		return r.res, nil
	case <-ctx.Done():
		return storage.FetchResult{}, fmt.Errorf("%w: fetch cancelled: %v", series.ErrStorage, ctx.Err())
	}
}

// Close shuts down BadgerDB cleanly.
func (s *Store) Close() error {
	return s.db.Close()
}

// RunGC runs BadgerDB's value log garbage collection.
// Returns error only if GC failed, nil if GC not needed or succeeded.
func (s *Store) RunGC(discardRatio float64) error {
	return s.db.RunValueLogGC(discardRatio)
}

// makeKey creates a sortable key: tier prefix + series hash + timestamp.
func makeKey(prefix byte, participant, metric string, ts time.Time) []byte {
	key := make([]byte, 0, 17)
	key = append(key, seriesKeyPrefix(prefix, participant, metric)...)
	key = append(key, timestampBytes(ts)...)
	return key
}

// seriesKeyPrefix hashes (participant, metric) into the fixed 9-byte key prefix.
func seriesKeyPrefix(prefix byte, participant, metric string) []byte {
	hash := xxhash.Sum64String(participant + "\x00" + metric)
	p := make([]byte, 9)
	p[0] = prefix
	binary.BigEndian.PutUint64(p[1:9], hash)
	return p
}

func timestampBytes(ts time.Time) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(ts.UnixNano()))
	return b
}

func keyTimestamp(key []byte) time.Time {
	tsNano := binary.BigEndian.Uint64(key[9:17])
	return time.Unix(0, int64(tsNano)).UTC()
}
