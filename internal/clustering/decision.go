package clustering

import (
	"fmt"
	"time"

	"github.com/lanefield/brag/pkg/models"
)

// Strategy identifies which clustering pass a request will run.
type Strategy string

const (
	// StrategyFull re-clusters every in-scope achievement from scratch.
	StrategyFull Strategy = "full"
	// StrategyIncremental only places unassigned achievements into existing
	// workstreams.
	StrategyIncremental Strategy = "incremental"
)

// Decision is the per-request outcome of the decision engine. It is never
// persisted.
type Decision struct {
	Strategy Strategy `json:"strategy"`
	Reason   string   `json:"reason"`
}

// Thresholds for choosing a full re-clustering pass.
const (
	// GrowthRatioThreshold triggers a full pass when the filtered count has
	// grown by this fraction since the last full run.
	GrowthRatioThreshold = 0.10
	// NewItemThreshold triggers a full pass on this many new items even when
	// the relative growth stays small.
	NewItemThreshold = 50
	// MaxRunAgeDays triggers a full pass when the last full run is older
	// than this many days.
	MaxRunAgeDays = 30.0
)

// Decide chooses between a full re-clustering pass and a cheap incremental
// pass. Rules are evaluated in order and the first match wins. Filter drift
// is checked before growth and age because a changed filter invalidates the
// meaning of the previously recorded count.
func Decide(now time.Time, filteredCount int64, meta *models.ClusteringRun, filter *models.Filter) Decision {
	if meta == nil {
		return Decision{Strategy: StrategyFull, Reason: "Initial clustering"}
	}

	if !meta.Filter.Equal(filter) {
		return Decision{Strategy: StrategyFull, Reason: "Filter parameters changed from previous clustering"}
	}

	previous := meta.PreviousCount()
	var growth float64
	if previous > 0 {
		growth = float64(filteredCount-previous) / float64(previous)
	}
	if growth >= GrowthRatioThreshold {
		return Decision{
			Strategy: StrategyFull,
			Reason:   fmt.Sprintf("Achievement count grew %.1f%% since last clustering", growth*100),
		}
	}

	if newItems := filteredCount - previous; newItems >= NewItemThreshold {
		return Decision{
			Strategy: StrategyFull,
			Reason:   fmt.Sprintf("%d new achievements since last clustering", newItems),
		}
	}

	if days := now.Sub(meta.LastRunAt).Hours() / 24; days > MaxRunAgeDays {
		return Decision{
			Strategy: StrategyFull,
			Reason:   fmt.Sprintf("%.1f days elapsed since last clustering", days),
		}
	}

	return Decision{Strategy: StrategyIncremental, Reason: "Growth is below thresholds and recent"}
}
