package models

import (
	"fmt"
	"time"
)

// MaxFilterRangeMonths is the widest time range a clustering filter may span.
const MaxFilterRangeMonths = 24

// TimeRange restricts achievements to those that occurred within [StartDate, EndDate].
type TimeRange struct {
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

// Filter scopes a clustering request. A nil field means no restriction on
// that dimension; a nil *Filter means no restriction at all.
type Filter struct {
	TimeRange  *TimeRange `json:"timeRange,omitempty"`
	ProjectIDs []string   `json:"projectIds,omitempty"`
}

// IsZero reports whether the filter imposes no restriction.
func (f *Filter) IsZero() bool {
	return f == nil || (f.TimeRange == nil && len(f.ProjectIDs) == 0)
}

// Validate checks the filter's internal consistency.
func (f *Filter) Validate() error {
	if f == nil || f.TimeRange == nil {
		return nil
	}
	tr := f.TimeRange
	if tr.StartDate.IsZero() || tr.EndDate.IsZero() {
		return fmt.Errorf("startDate and endDate must be provided together")
	}
	if tr.StartDate.After(tr.EndDate) {
		return fmt.Errorf("startDate must not be after endDate")
	}
	if tr.EndDate.After(tr.StartDate.AddDate(0, MaxFilterRangeMonths, 0)) {
		return fmt.Errorf("time range must not exceed %d months", MaxFilterRangeMonths)
	}
	return nil
}

// Equal reports whether two filters select the same achievements.
// Project id lists are compared as sets, time ranges by calendar value.
// A nil filter equals a filter with no restrictions.
func (f *Filter) Equal(other *Filter) bool {
	a, b := f, other
	if a.IsZero() && b.IsZero() {
		return true
	}
	if a.IsZero() != b.IsZero() {
		return false
	}
	if (a.TimeRange == nil) != (b.TimeRange == nil) {
		return false
	}
	if a.TimeRange != nil {
		if !a.TimeRange.StartDate.Equal(b.TimeRange.StartDate) ||
			!a.TimeRange.EndDate.Equal(b.TimeRange.EndDate) {
			return false
		}
	}
	return projectIDSet(a.ProjectIDs).equal(projectIDSet(b.ProjectIDs))
}

type idSet map[string]struct{}

func projectIDSet(ids []string) idSet {
	set := make(idSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func (s idSet) equal(other idSet) bool {
	if len(s) != len(other) {
		return false
	}
	for id := range s {
		if _, ok := other[id]; !ok {
			return false
		}
	}
	return true
}
