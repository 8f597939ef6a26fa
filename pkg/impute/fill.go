package impute

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/gaps"
	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/series"
)

// FillMethod selects the ad-hoc fill algorithm.
type FillMethod string

const (
	MethodLinear        FillMethod = "linear"
	MethodMedianRolling FillMethod = "median_rolling"
)

// ParseFillMethod validates an imputation method string.
func ParseFillMethod(s string) (FillMethod, error) {
	switch FillMethod(s) {
	case MethodLinear, MethodMedianRolling:
		return FillMethod(s), nil
	default:
		return "", series.ErrInvalidMethod
	}
}

// FillResult is a filled copy of a grid plus the provenance mask: Imputed
// is true exactly where a value was absent before filling and present
// after. Pre-existing values are never altered, so filling the same grid
// twice yields identical results.
type FillResult struct {
	Values  []*float64
	Imputed []bool
}

func newFillResult(g gaps.Grid) FillResult {
	r := FillResult{
		Values:  make([]*float64, len(g.Slots)),
		Imputed: make([]bool, len(g.Slots)),
	}
	for i, slot := range g.Slots {
		if slot.Value != nil {
			v := *slot.Value
			r.Values[i] = &v
		}
	}
	return r
}

func (r *FillResult) markProvenance(g gaps.Grid) {
	for i := range r.Values {
		r.Imputed[i] = g.Missing(i) && r.Values[i] != nil
	}
}

// ForwardBackwardFill fills each missing slot from the most recent prior
// value, then back-fills any still-missing leading slots from the next
// following value. Used by the batch path for sparse/bounded metrics.
func ForwardBackwardFill(g gaps.Grid) FillResult {
	r := newFillResult(g)

	var carry *float64
	for i := range r.Values {
		if r.Values[i] != nil {
			carry = r.Values[i]
		} else if carry != nil {
			v := *carry
			r.Values[i] = &v
		}
	}

	carry = nil
	for i := len(r.Values) - 1; i >= 0; i-- {
		if r.Values[i] != nil {
			carry = r.Values[i]
		} else if carry != nil {
			v := *carry
			r.Values[i] = &v
		}
	}

	r.markProvenance(g)
	return r
}

// LinearInterpolate fills interior missing runs by straight lines between
// the surrounding known values. Leading and trailing runs have only one
// anchor and stay missing.
func LinearInterpolate(g gaps.Grid) FillResult {
	r := newFillResult(g)

	prev := -1
	for i := 0; i <= len(r.Values); i++ {
		if i < len(r.Values) && r.Values[i] == nil {
			continue
		}
		if i < len(r.Values) && prev >= 0 && i-prev > 1 {
			v0, v1 := *r.Values[prev], *r.Values[i]
			span := float64(i - prev)
			for k := prev + 1; k < i; k++ {
				v := v0 + (v1-v0)*float64(k-prev)/span
				r.Values[k] = &v
			}
		}
		if i < len(r.Values) {
			prev = i
		}
	}

	r.markProvenance(g)
	return r
}

// RollingMedianFill replaces each missing slot with the median of the
// known values in a centered window of the given size. Slots whose window
// holds fewer than minNeighbors known values stay missing. Only original
// values feed the medians, so fill order cannot influence the result.
func RollingMedianFill(g gaps.Grid, window, minNeighbors int) FillResult {
	r := newFillResult(g)
	if window < 1 {
		window = 1
	}
	if minNeighbors < 1 {
		minNeighbors = 1
	}
	half := window / 2

	for i := range r.Values {
		if r.Values[i] != nil {
			continue
		}
		var neighbors []float64
		for j := i - half; j <= i+half; j++ {
			if j < 0 || j >= len(g.Slots) || g.Slots[j].Value == nil {
				continue
			}
			neighbors = append(neighbors, *g.Slots[j].Value)
		}
		if len(neighbors) < minNeighbors {
			continue
		}
		sort.Float64s(neighbors)
		v := stat.Quantile(0.5, stat.LinInterp, neighbors, nil)
		r.Values[i] = &v
	}

	r.markProvenance(g)
	return r
}
