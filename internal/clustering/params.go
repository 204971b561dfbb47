package clustering

// MinAchievements is the smallest number of embedded, in-filter achievements
// a clustering run will accept. The HTTP layer reports smaller sets as a
// terminal stream error.
const MinAchievements = 20

// Params are the algorithm parameters selected for an achievement count.
// TargetClusters is a granularity hint, not a hard bound; the threshold is
// what actually decides group membership.
type Params struct {
	SimilarityThreshold float64
	TargetClusters      int
	Valid               bool
}

// SelectParams maps an achievement count to clustering parameters. Counts
// below MinAchievements yield the invalid sentinel; callers must treat that
// as a logic error because the minimum is enforced before selection.
func SelectParams(count int64) Params {
	switch {
	case count < MinAchievements:
		return Params{}
	case count < 50:
		return Params{SimilarityThreshold: 0.70, TargetClusters: clampTarget(count/5, 3, 8), Valid: true}
	case count < 200:
		return Params{SimilarityThreshold: 0.72, TargetClusters: clampTarget(count/12, 5, 14), Valid: true}
	case count < 1000:
		return Params{SimilarityThreshold: 0.75, TargetClusters: clampTarget(count/25, 10, 24), Valid: true}
	default:
		return Params{SimilarityThreshold: 0.78, TargetClusters: clampTarget(count/50, 16, 40), Valid: true}
	}
}

func clampTarget(n, lo, hi int64) int {
	if n < lo {
		n = lo
	}
	if n > hi {
		n = hi
	}
	return int(n)
}
