package aggregate

// UpdateRunningMean folds one new session score into a stored (average,
// count) pair and returns the updated pair. This is an exact running mean:
// replaying N scores through it lands on the same value as averaging the
// N scores in one batch, which is the consistency contract between the
// live session-close fold and the read-time rebuild.
//
// Callers must apply the update atomically per contact key (the store does
// this in a single UPDATE); a read-modify-write here would race concurrent
// session closes and silently corrupt the average.
func UpdateRunningMean(prevAvg float64, prevCount int, score float64) (float64, int) {
	if prevCount <= 0 {
		return score, 1
	}
	n := float64(prevCount)
	return (prevAvg*n + score) / (n + 1), prevCount + 1
}
