package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestFilter_Validate(t *testing.T) {
	t.Run("nil filter is valid", func(t *testing.T) {
		var f *Filter
		assert.NoError(t, f.Validate())
	})

	t.Run("no time range is valid", func(t *testing.T) {
		f := &Filter{ProjectIDs: []string{"p1"}}
		assert.NoError(t, f.Validate())
	})

	t.Run("single day range is valid", func(t *testing.T) {
		d := day(2025, 6, 1)
		f := &Filter{TimeRange: &TimeRange{StartDate: d, EndDate: d}}
		assert.NoError(t, f.Validate())
	})

	t.Run("start after end", func(t *testing.T) {
		f := &Filter{TimeRange: &TimeRange{
			StartDate: day(2025, 6, 2),
			EndDate:   day(2025, 6, 1),
		}}
		require.Error(t, f.Validate())
	})

	t.Run("missing end date", func(t *testing.T) {
		f := &Filter{TimeRange: &TimeRange{StartDate: day(2025, 6, 1)}}
		require.Error(t, f.Validate())
	})

	t.Run("exactly 24 months is valid", func(t *testing.T) {
		f := &Filter{TimeRange: &TimeRange{
			StartDate: day(2023, 6, 1),
			EndDate:   day(2025, 6, 1),
		}}
		assert.NoError(t, f.Validate())
	})

	t.Run("over 24 months is invalid", func(t *testing.T) {
		f := &Filter{TimeRange: &TimeRange{
			StartDate: day(2023, 6, 1),
			EndDate:   day(2025, 6, 2),
		}}
		require.Error(t, f.Validate())
	})
}

func TestFilter_Equal(t *testing.T) {
	tr := &TimeRange{StartDate: day(2025, 1, 1), EndDate: day(2025, 12, 31)}

	t.Run("nil equals empty", func(t *testing.T) {
		var a *Filter
		assert.True(t, a.Equal(&Filter{}))
		assert.True(t, (&Filter{}).Equal(nil))
		assert.True(t, a.Equal(nil))
	})

	t.Run("nil differs from restricted", func(t *testing.T) {
		var a *Filter
		assert.False(t, a.Equal(&Filter{ProjectIDs: []string{"p1"}}))
	})

	t.Run("project ids compare as sets", func(t *testing.T) {
		a := &Filter{ProjectIDs: []string{"p1", "p2"}}
		b := &Filter{ProjectIDs: []string{"p2", "p1"}}
		assert.True(t, a.Equal(b))
	})

	t.Run("duplicate ids do not change the set", func(t *testing.T) {
		a := &Filter{ProjectIDs: []string{"p1", "p1", "p2"}}
		b := &Filter{ProjectIDs: []string{"p2", "p1"}}
		assert.True(t, a.Equal(b))
	})

	t.Run("different project sets", func(t *testing.T) {
		a := &Filter{ProjectIDs: []string{"p1"}}
		b := &Filter{ProjectIDs: []string{"p2"}}
		assert.False(t, a.Equal(b))
	})

	t.Run("same calendar instant in different zones", func(t *testing.T) {
		zone := time.FixedZone("plus2", 2*3600)
		a := &Filter{TimeRange: tr}
		b := &Filter{TimeRange: &TimeRange{
			StartDate: tr.StartDate.In(zone),
			EndDate:   tr.EndDate.In(zone),
		}}
		assert.True(t, a.Equal(b))
	})

	t.Run("different time ranges", func(t *testing.T) {
		a := &Filter{TimeRange: tr}
		b := &Filter{TimeRange: &TimeRange{StartDate: day(2024, 1, 1), EndDate: day(2024, 12, 31)}}
		assert.False(t, a.Equal(b))
	})

	t.Run("time range versus none", func(t *testing.T) {
		a := &Filter{TimeRange: tr}
		b := &Filter{ProjectIDs: []string{"p1"}}
		assert.False(t, a.Equal(b))
	})
}

func TestClusteringRun_PreviousCount(t *testing.T) {
	filtered := int64(42)
	r := &ClusteringRun{AchievementCount: 100, FilteredCount: &filtered}
	assert.Equal(t, int64(42), r.PreviousCount())

	legacy := &ClusteringRun{AchievementCount: 100}
	assert.Equal(t, int64(100), legacy.PreviousCount())
}
