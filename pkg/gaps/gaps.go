// Package gaps re-grids raw series onto their expected sampling cadence
// and finds maximal runs of missing samples.
//
// Gaps are derived, never stored: every retrieval recomputes them from the
// raw points it fetched.
package gaps

import (
	"time"

	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/series"
)

// Gap is a contiguous run of missing expected timestamps, inclusive of
// both ends.
type Gap struct {
	Start  time.Time
	End    time.Time
	Length int
}

// Slot is one grid position: an expected timestamp and the value observed
// there, if any.
type Slot struct {
	Timestamp time.Time
	Value     *float64
}

// Grid is the series aligned onto its expected cadence, ordered ascending.
type Grid struct {
	Period time.Duration
	Slots  []Slot
}

// Missing reports whether the slot at index i has no observed value.
func (g Grid) Missing(i int) bool { return g.Slots[i].Value == nil }

// Regrid aligns points onto a fixed cadence spanning [min ts, max ts].
// Timestamps are snapped down to the cadence; multiple points landing in
// one slot collapse to their mean, matching how the batch path groups
// duplicate raw timestamps. Points without numeric values leave their slot
// empty.
//
// Fewer than 2 distinct timestamps cannot anchor a grid; the result has no
// slots and therefore no gaps.
func Regrid(points []series.Point, period time.Duration) Grid {
	g := Grid{Period: period}

	type cell struct {
		sum   float64
		count int
	}
	cells := make(map[time.Time]*cell)
	var first, last time.Time
	distinct := 0

	for _, p := range points {
		slot := p.Timestamp.Truncate(period)
		if _, ok := cells[slot]; !ok {
			cells[slot] = &cell{}
			distinct++
			if first.IsZero() || slot.Before(first) {
				first = slot
			}
			if last.IsZero() || slot.After(last) {
				last = slot
			}
		}
		if p.HasValue() {
			c := cells[slot]
			c.sum += *p.ValueNumeric
			c.count++
		}
	}

	if distinct < 2 {
		return g
	}

	for ts := first; !ts.After(last); ts = ts.Add(period) {
		slot := Slot{Timestamp: ts}
		if c, ok := cells[ts]; ok && c.count > 0 {
			slot.Value = series.Float(c.sum / float64(c.count))
		}
		g.Slots = append(g.Slots, slot)
	}
	return g
}

// Detect groups missing slots into maximal contiguous runs. A linear scan
// with two states (in-gap, not-in-gap): a gap opens on the first missing
// slot after a present one and closes on the next present slot.
func Detect(g Grid) []Gap {
	var gaps []Gap
	inGap := false
	var current Gap

	for i, slot := range g.Slots {
		if g.Missing(i) {
			if !inGap {
				inGap = true
				current = Gap{Start: slot.Timestamp}
			}
			current.End = slot.Timestamp
			current.Length++
		} else if inGap {
			inGap = false
			gaps = append(gaps, current)
		}
	}
	if inGap {
		gaps = append(gaps, current)
	}
	return gaps
}
