package aggregate

import (
	"math"
	"testing"
)

func TestUpdateRunningMean_MatchesBatchAverage(t *testing.T) {
	t.Parallel()

	scores := []float64{87, 0, 42.5, 100, 13, 66, 66, 91.2, 5, 73}

	var avg float64
	var count int
	var sum float64
	for _, s := range scores {
		avg, count = UpdateRunningMean(avg, count, s)
		sum += s
	}

	if count != len(scores) {
		t.Fatalf("count = %d, want %d", count, len(scores))
	}
	batch := sum / float64(len(scores))
	if math.Abs(avg-batch) > 1e-9 {
		t.Errorf("running mean %v drifted from batch average %v", avg, batch)
	}
}

func TestUpdateRunningMean_FirstScore(t *testing.T) {
	t.Parallel()

	avg, count := UpdateRunningMean(0, 0, 73)
	if avg != 73 || count != 1 {
		t.Errorf("got (%v, %d), want (73, 1)", avg, count)
	}

	// Negative stored counts are treated as empty.
	avg, count = UpdateRunningMean(50, -2, 40)
	if avg != 40 || count != 1 {
		t.Errorf("got (%v, %d), want (40, 1)", avg, count)
	}
}

func TestUpdateRunningMean_TwoScores(t *testing.T) {
	t.Parallel()

	avg, count := UpdateRunningMean(80, 1, 40)
	if avg != 60 || count != 2 {
		t.Errorf("got (%v, %d), want (60, 2)", avg, count)
	}
}
