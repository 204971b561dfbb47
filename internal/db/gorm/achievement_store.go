package gorm

import (
	"context"
	"fmt"

	pgvec "github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"github.com/lanefield/brag/pkg/models"
)

// AchievementStore provides achievement queries scoped to an owning user.
type AchievementStore struct {
	store *Store
}

// NewAchievementStore creates a new AchievementStore.
func NewAchievementStore(store *Store) *AchievementStore {
	return &AchievementStore{store: store}
}

func (s *AchievementStore) base(ctx context.Context, userID string) *gorm.DB {
	return s.store.DB.WithContext(ctx).Model(&AchievementRow{}).Where("user_id = ?", userID)
}

// filterCondition renders a Filter as a SQL condition with its arguments.
// Returns an empty condition for an unrestricted filter.
func filterCondition(f *models.Filter) (string, []any) {
	if f.IsZero() {
		return "", nil
	}
	cond := ""
	var args []any
	if f.TimeRange != nil {
		cond = "occurred_at >= ? AND occurred_at <= ?"
		args = append(args, f.TimeRange.StartDate, f.TimeRange.EndDate)
	}
	if len(f.ProjectIDs) > 0 {
		if cond != "" {
			cond += " AND "
		}
		cond += "project_id IN ?"
		args = append(args, f.ProjectIDs)
	}
	return cond, args
}

func scopeFilter(q *gorm.DB, f *models.Filter) *gorm.DB {
	cond, args := filterCondition(f)
	if cond == "" {
		return q
	}
	return q.Where(cond, args...)
}

// CountAchievements returns the total number of achievements the user owns.
func (s *AchievementStore) CountAchievements(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.base(ctx, userID).Count(&count).Error
	return count, err
}

// CountFilteredEmbedded counts embedded achievements matching the filter.
func (s *AchievementStore) CountFilteredEmbedded(ctx context.Context, userID string, filter *models.Filter) (int64, error) {
	var count int64
	q := scopeFilter(s.base(ctx, userID).Where("embedding IS NOT NULL"), filter)
	err := q.Count(&count).Error
	return count, err
}

// ListFilteredEmbedded loads embedded achievements matching the filter,
// newest first.
func (s *AchievementStore) ListFilteredEmbedded(ctx context.Context, userID string, filter *models.Filter) ([]*models.Achievement, error) {
	var rows []AchievementRow
	q := scopeFilter(s.base(ctx, userID).Where("embedding IS NOT NULL"), filter)
	if err := q.Order("occurred_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rowsToModels(rows), nil
}

// ListUnassignedFilteredEmbedded loads embedded, in-filter achievements
// without a workstream link.
func (s *AchievementStore) ListUnassignedFilteredEmbedded(ctx context.Context, userID string, filter *models.Filter) ([]*models.Achievement, error) {
	var rows []AchievementRow
	q := scopeFilter(
		s.base(ctx, userID).Where("embedding IS NOT NULL").Where("workstream_id IS NULL"),
		filter,
	)
	if err := q.Order("occurred_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rowsToModels(rows), nil
}

// ListUnassignedEmbeddedOutsideFilter loads embedded, unlinked achievements
// falling outside the filter. With no restriction nothing is outside.
func (s *AchievementStore) ListUnassignedEmbeddedOutsideFilter(ctx context.Context, userID string, filter *models.Filter) ([]*models.Achievement, error) {
	cond, args := filterCondition(filter)
	if cond == "" {
		return nil, nil
	}
	var rows []AchievementRow
	q := s.base(ctx, userID).
		Where("embedding IS NOT NULL").
		Where("workstream_id IS NULL").
		Where("NOT ("+cond+")", args...)
	if err := q.Order("occurred_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rowsToModels(rows), nil
}

// ListMissingEmbeddings returns the user's achievements without a vector.
func (s *AchievementStore) ListMissingEmbeddings(ctx context.Context, userID string) ([]*models.Achievement, error) {
	var rows []AchievementRow
	if err := s.base(ctx, userID).Where("embedding IS NULL").Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rowsToModels(rows), nil
}

// SaveEmbedding persists a computed vector for one achievement.
func (s *AchievementStore) SaveEmbedding(ctx context.Context, achievementID int64, vec []float32) error {
	v := pgvec.NewVector(vec)
	res := s.store.DB.WithContext(ctx).
		Model(&AchievementRow{}).
		Where("id = ?", achievementID).
		Update("embedding", &v)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("achievement %d not found", achievementID)
	}
	return nil
}

// SetWorkstream links the given achievements to a workstream.
func (s *AchievementStore) SetWorkstream(ctx context.Context, userID string, achievementIDs []int64, workstreamID int64) error {
	if len(achievementIDs) == 0 {
		return nil
	}
	return s.base(ctx, userID).
		Where("id IN ?", achievementIDs).
		Update("workstream_id", workstreamID).Error
}

// ClearWorkstream removes the workstream link from the given achievements.
func (s *AchievementStore) ClearWorkstream(ctx context.Context, userID string, achievementIDs []int64) error {
	if len(achievementIDs) == 0 {
		return nil
	}
	return s.base(ctx, userID).
		Where("id IN ?", achievementIDs).
		Update("workstream_id", nil).Error
}

// ListUserIDsMissingEmbeddings returns ids of users with at least one
// achievement lacking a vector. Used by the maintenance backfill.
func (s *AchievementStore) ListUserIDsMissingEmbeddings(ctx context.Context) ([]string, error) {
	var userIDs []string
	err := s.store.DB.WithContext(ctx).
		Model(&AchievementRow{}).
		Where("embedding IS NULL").
		Distinct("user_id").
		Pluck("user_id", &userIDs).Error
	return userIDs, err
}

func rowsToModels(rows []AchievementRow) []*models.Achievement {
	achievements := make([]*models.Achievement, len(rows))
	for i := range rows {
		achievements[i] = rows[i].toModel()
	}
	return achievements
}
