package clustering

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectParams_BelowMinimum(t *testing.T) {
	for _, count := range []int64{0, 1, 19} {
		p := SelectParams(count)
		assert.False(t, p.Valid, "count %d should be invalid", count)
	}
}

func TestSelectParams_Bands(t *testing.T) {
	tests := []struct {
		count     int64
		threshold float64
	}{
		{20, 0.70},
		{49, 0.70},
		{50, 0.72},
		{199, 0.72},
		{200, 0.75},
		{999, 0.75},
		{1000, 0.78},
		{50000, 0.78},
	}
	for _, tt := range tests {
		p := SelectParams(tt.count)
		assert.True(t, p.Valid, "count %d", tt.count)
		assert.Equal(t, tt.threshold, p.SimilarityThreshold, "count %d", tt.count)
		assert.Greater(t, p.TargetClusters, 0, "count %d", tt.count)
	}
}

func TestSelectParams_TargetClustersScaleWithCount(t *testing.T) {
	small := SelectParams(20)
	large := SelectParams(5000)
	assert.Less(t, small.TargetClusters, large.TargetClusters)
}
