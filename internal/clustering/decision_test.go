package clustering

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lanefield/brag/pkg/models"
)

func runMeta(lastRunAt time.Time, filteredCount int64, filter *models.Filter) *models.ClusteringRun {
	return &models.ClusteringRun{
		UserID:           "u1",
		LastRunAt:        lastRunAt,
		AchievementCount: filteredCount,
		FilteredCount:    &filteredCount,
		Filter:           filter,
	}
}

func TestDecide_NoMetadata(t *testing.T) {
	d := Decide(time.Now(), 100, nil, nil)
	assert.Equal(t, StrategyFull, d.Strategy)
	assert.Equal(t, "Initial clustering", d.Reason)
}

func TestDecide_FilterChanged(t *testing.T) {
	now := time.Now()
	meta := runMeta(now.AddDate(0, 0, -1), 100, &models.Filter{ProjectIDs: []string{"p1"}})

	d := Decide(now, 100, meta, &models.Filter{ProjectIDs: []string{"p2"}})
	assert.Equal(t, StrategyFull, d.Strategy)
	assert.Equal(t, "Filter parameters changed from previous clustering", d.Reason)
}

func TestDecide_FilterAddedSinceLastRun(t *testing.T) {
	now := time.Now()
	meta := runMeta(now.AddDate(0, 0, -1), 100, nil)

	d := Decide(now, 100, meta, &models.Filter{ProjectIDs: []string{"p1"}})
	assert.Equal(t, StrategyFull, d.Strategy)
	assert.Equal(t, "Filter parameters changed from previous clustering", d.Reason)
}

func TestDecide_ReorderedProjectIDsAreNotDrift(t *testing.T) {
	now := time.Now()
	meta := runMeta(now.AddDate(0, 0, -1), 100, &models.Filter{ProjectIDs: []string{"p1", "p2"}})

	d := Decide(now, 100, meta, &models.Filter{ProjectIDs: []string{"p2", "p1"}})
	assert.Equal(t, StrategyIncremental, d.Strategy)
}

func TestDecide_GrowthAtThreshold(t *testing.T) {
	now := time.Now()
	meta := runMeta(now.AddDate(0, 0, -1), 100, nil)

	d := Decide(now, 110, meta, nil)
	assert.Equal(t, StrategyFull, d.Strategy)
	assert.Equal(t, "Achievement count grew 10.0% since last clustering", d.Reason)
}

func TestDecide_GrowthBelowThreshold(t *testing.T) {
	now := time.Now()
	meta := runMeta(now.AddDate(0, 0, -10), 100, nil)

	d := Decide(now, 105, meta, nil)
	assert.Equal(t, StrategyIncremental, d.Strategy)
	assert.Equal(t, "Growth is below thresholds and recent", d.Reason)
}

func TestDecide_AbsoluteNewItems(t *testing.T) {
	now := time.Now()
	meta := runMeta(now.AddDate(0, 0, -1), 1000, nil)

	// 5% growth stays under the ratio threshold, but 50 new items still
	// trigger a full pass.
	d := Decide(now, 1050, meta, nil)
	assert.Equal(t, StrategyFull, d.Strategy)
	assert.Equal(t, "50 new achievements since last clustering", d.Reason)
}

func TestDecide_JustUnderNewItemThreshold(t *testing.T) {
	now := time.Now()
	meta := runMeta(now.AddDate(0, 0, -1), 1000, nil)

	d := Decide(now, 1049, meta, nil)
	assert.Equal(t, StrategyIncremental, d.Strategy)
}

func TestDecide_StaleRun(t *testing.T) {
	now := time.Now()
	meta := runMeta(now.AddDate(0, 0, -31), 100, nil)

	d := Decide(now, 100, meta, nil)
	assert.Equal(t, StrategyFull, d.Strategy)
	assert.Equal(t, "31.0 days elapsed since last clustering", d.Reason)
}

func TestDecide_ExactlyThirtyDaysIsNotStale(t *testing.T) {
	now := time.Now()
	meta := runMeta(now.Add(-30*24*time.Hour), 100, nil)

	d := Decide(now, 100, meta, nil)
	assert.Equal(t, StrategyIncremental, d.Strategy)
}

func TestDecide_ShrunkCountIsNotGrowth(t *testing.T) {
	now := time.Now()
	meta := runMeta(now.AddDate(0, 0, -1), 100, nil)

	d := Decide(now, 80, meta, nil)
	assert.Equal(t, StrategyIncremental, d.Strategy)
}

func TestDecide_LegacyMetadataWithoutFilteredCount(t *testing.T) {
	now := time.Now()
	meta := &models.ClusteringRun{
		UserID:           "u1",
		LastRunAt:        now.AddDate(0, 0, -1),
		AchievementCount: 100,
	}

	// The overall count is the baseline when no filtered count was recorded.
	d := Decide(now, 110, meta, nil)
	assert.Equal(t, StrategyFull, d.Strategy)
	assert.Equal(t, "Achievement count grew 10.0% since last clustering", d.Reason)
}
