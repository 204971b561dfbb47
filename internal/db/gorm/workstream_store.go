package gorm

import (
	"context"

	"github.com/lanefield/brag/pkg/models"
)

// WorkstreamStore provides workstream persistence scoped to an owning user.
type WorkstreamStore struct {
	store *Store
}

// NewWorkstreamStore creates a new WorkstreamStore.
func NewWorkstreamStore(store *Store) *WorkstreamStore {
	return &WorkstreamStore{store: store}
}

// ListWorkstreams returns the user's workstreams ordered by creation.
func (s *WorkstreamStore) ListWorkstreams(ctx context.Context, userID string) ([]*models.Workstream, error) {
	var rows []WorkstreamRow
	err := s.store.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	workstreams := make([]*models.Workstream, len(rows))
	for i, r := range rows {
		workstreams[i] = &models.Workstream{
			ID:        r.ID,
			UserID:    r.UserID,
			Name:      r.Name,
			Color:     r.Color,
			CreatedAt: r.CreatedAt,
		}
	}
	return workstreams, nil
}

// ListMembers returns each workstream's embedded members keyed by
// workstream id. Members without an embedding are skipped since they cannot
// contribute to a summary vector.
func (s *WorkstreamStore) ListMembers(ctx context.Context, userID string) (map[int64][]*models.Achievement, error) {
	var rows []AchievementRow
	err := s.store.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("workstream_id IS NOT NULL").
		Where("embedding IS NOT NULL").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	members := make(map[int64][]*models.Achievement)
	for i := range rows {
		a := rows[i].toModel()
		members[a.WorkstreamID] = append(members[a.WorkstreamID], a)
	}
	return members, nil
}

// CreateWorkstream persists a new workstream and fills in its id.
func (s *WorkstreamStore) CreateWorkstream(ctx context.Context, ws *models.Workstream) error {
	row := WorkstreamRow{
		UserID: ws.UserID,
		Name:   ws.Name,
		Color:  ws.Color,
	}
	if err := s.store.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	ws.ID = row.ID
	ws.CreatedAt = row.CreatedAt
	return nil
}

// DeleteWorkstreams removes the given workstreams and unlinks any remaining
// members.
func (s *WorkstreamStore) DeleteWorkstreams(ctx context.Context, userID string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	db := s.store.DB.WithContext(ctx)
	err := db.Model(&AchievementRow{}).
		Where("user_id = ? AND workstream_id IN ?", userID, ids).
		Update("workstream_id", nil).Error
	if err != nil {
		return err
	}
	return db.Where("user_id = ? AND id IN ?", userID, ids).Delete(&WorkstreamRow{}).Error
}
