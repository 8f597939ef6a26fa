package gaps

import (
	"testing"
	"time"

	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/series"
)

func hourlyPoints(base time.Time, hours ...int) []series.Point {
	var points []series.Point
	for _, h := range hours {
		points = append(points, series.Point{
			Timestamp:     base.Add(time.Duration(h) * time.Hour),
			ParticipantID: "p1",
			Metric:        "heart_rate",
			ValueNumeric:  series.Float(70 + float64(h)),
		})
	}
	return points
}

func TestDetect_SingleInteriorGap(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	grid := Regrid(hourlyPoints(base, 0, 1, 4, 5), time.Hour)

	gaps := Detect(grid)
	if len(gaps) != 1 {
		t.Fatalf("expected exactly 1 gap, got %d", len(gaps))
	}
	g := gaps[0]
	if !g.Start.Equal(base.Add(2*time.Hour)) || !g.End.Equal(base.Add(3*time.Hour)) {
		t.Errorf("gap covers [%v, %v], want [02:00, 03:00]", g.Start, g.End)
	}
	if g.Length != 2 {
		t.Errorf("gap length = %d, want 2", g.Length)
	}
}

func TestDetect_MultipleGaps(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	grid := Regrid(hourlyPoints(base, 0, 2, 3, 7), time.Hour)

	gaps := Detect(grid)
	if len(gaps) != 2 {
		t.Fatalf("expected 2 gaps, got %d", len(gaps))
	}
	if gaps[0].Length != 1 || gaps[1].Length != 3 {
		t.Errorf("gap lengths = %d, %d, want 1, 3", gaps[0].Length, gaps[1].Length)
	}
}

func TestDetect_NoGaps(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	grid := Regrid(hourlyPoints(base, 0, 1, 2, 3), time.Hour)

	if gaps := Detect(grid); len(gaps) != 0 {
		t.Errorf("contiguous series produced %d gaps, want 0", len(gaps))
	}
}

func TestRegrid_FewerThanTwoPoints(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	grid := Regrid(hourlyPoints(base, 3), time.Hour)
	if len(grid.Slots) != 0 {
		t.Error("a single point cannot anchor a grid")
	}
	if gaps := Detect(grid); len(gaps) != 0 {
		t.Error("a single point must yield an empty gap set")
	}

	grid = Regrid(nil, time.Hour)
	if len(grid.Slots) != 0 || len(Detect(grid)) != 0 {
		t.Error("no points must yield an empty grid and gap set")
	}
}

func TestRegrid_DuplicateTimestampsCollapseToMean(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	points := []series.Point{
		{Timestamp: base, ValueNumeric: series.Float(60)},
		{Timestamp: base.Add(10 * time.Minute), ValueNumeric: series.Float(80)}, // same hour slot
		{Timestamp: base.Add(time.Hour), ValueNumeric: series.Float(100)},
	}

	grid := Regrid(points, time.Hour)
	if len(grid.Slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(grid.Slots))
	}
	if *grid.Slots[0].Value != 70 {
		t.Errorf("collapsed slot value = %v, want mean 70", *grid.Slots[0].Value)
	}
}

func TestRegrid_TextOnlyPointsLeaveSlotMissing(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	points := []series.Point{
		{Timestamp: base, ValueNumeric: series.Float(60)},
		{Timestamp: base.Add(time.Hour), ValueText: "wake"},
		{Timestamp: base.Add(2 * time.Hour), ValueNumeric: series.Float(62)},
	}

	grid := Regrid(points, time.Hour)
	gaps := Detect(grid)
	if len(gaps) != 1 || gaps[0].Length != 1 {
		t.Fatalf("text-only slot should count as missing, got gaps %+v", gaps)
	}
}
