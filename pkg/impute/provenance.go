package impute

import (
	"sort"

	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/series"
)

// Merge combines original and synthesized points into one ordered
// sequence. Original points keep IsImputed=false, synthesized points are
// flagged true; when both exist for a timestamp the original wins.
func Merge(original, synthesized []series.Point) []series.Point {
	taken := make(map[int64]bool, len(original))
	out := make([]series.Point, 0, len(original)+len(synthesized))

	for _, p := range original {
		p.IsImputed = false
		taken[p.Timestamp.UnixNano()] = true
		out = append(out, p)
	}
	for _, p := range synthesized {
		if taken[p.Timestamp.UnixNano()] {
			continue
		}
		p.IsImputed = true
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// DropUnusable removes synthesized points that carry no numeric value. An
// imputation that succeeded structurally but produced nothing usable must
// not reach the imputed store.
func DropUnusable(points []series.Point) []series.Point {
	usable := points[:0]
	for _, p := range points {
		if p.HasValue() {
			usable = append(usable, p)
		}
	}
	return usable
}
