package gorm

import (
	"context"
	"database/sql"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lanefield/brag/pkg/models"
)

// RunStore persists the per-user clustering run metadata row.
type RunStore struct {
	store *Store
}

// NewRunStore creates a new RunStore.
func NewRunStore(store *Store) *RunStore {
	return &RunStore{store: store}
}

// GetClusteringRun returns the user's run metadata, or nil when no full run
// has happened yet.
func (s *RunStore) GetClusteringRun(ctx context.Context, userID string) (*models.ClusteringRun, error) {
	var row ClusteringRunRow
	err := s.store.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

// UpsertClusteringRun overwrites the user's run metadata.
func (s *RunStore) UpsertClusteringRun(ctx context.Context, run *models.ClusteringRun) error {
	row := ClusteringRunRow{
		UserID:           run.UserID,
		LastRunAt:        run.LastRunAt,
		AchievementCount: run.AchievementCount,
	}
	if run.FilteredCount != nil {
		row.FilteredCount = sql.NullInt64{Int64: *run.FilteredCount, Valid: true}
	}
	if run.Filter != nil {
		if run.Filter.TimeRange != nil {
			row.FilterStart = sql.NullTime{Time: run.Filter.TimeRange.StartDate, Valid: true}
			row.FilterEnd = sql.NullTime{Time: run.Filter.TimeRange.EndDate, Valid: true}
		}
		row.FilterProjectIDs = models.JSONStringArray(run.Filter.ProjectIDs)
	}

	return s.store.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"last_run_at", "achievement_count", "filtered_count",
				"filter_start", "filter_end", "filter_project_ids", "updated_at",
			}),
		}).
		Create(&row).Error
}
