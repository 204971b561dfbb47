package models

import "time"

// ClusteringRun records the scale and parameters of a user's last full
// clustering pass. One row per user, overwritten by every full run and left
// untouched by incremental runs. Later requests compare against it to detect
// growth and filter drift.
type ClusteringRun struct {
	UserID           string    `json:"user_id"`
	LastRunAt        time.Time `json:"last_run_at"`
	AchievementCount int64     `json:"achievement_count"`
	// FilteredCount is the number of achievements processed within the
	// filter used for that run. Nil for rows written before filtered counts
	// were recorded.
	FilteredCount *int64  `json:"filtered_count,omitempty"`
	Filter        *Filter `json:"filter,omitempty"`
}

// PreviousCount is the baseline for growth comparisons: the filtered count
// when recorded, otherwise the overall achievement count at the last run.
func (r *ClusteringRun) PreviousCount() int64 {
	if r.FilteredCount != nil {
		return *r.FilteredCount
	}
	return r.AchievementCount
}
