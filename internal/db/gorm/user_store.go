package gorm

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// UserStore resolves API tokens and checks project ownership.
type UserStore struct {
	store *Store
}

// NewUserStore creates a new UserStore.
func NewUserStore(store *Store) *UserStore {
	return &UserStore{store: store}
}

// ResolveToken returns the user id owning the API token, or empty when the
// token is unknown.
func (s *UserStore) ResolveToken(ctx context.Context, token string) (string, error) {
	var row UserRow
	err := s.store.DB.WithContext(ctx).
		Where("api_token = ?", token).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return row.ID, nil
}

// CountOwnedProjects returns how many of the given project ids exist and
// belong to the user. Callers compare against the size of the requested set
// to detect unknown or foreign ids.
func (s *UserStore) CountOwnedProjects(ctx context.Context, userID string, projectIDs []string) (int64, error) {
	if len(projectIDs) == 0 {
		return 0, nil
	}
	var count int64
	err := s.store.DB.WithContext(ctx).
		Model(&ProjectRow{}).
		Where("user_id = ? AND id IN ?", userID, projectIDs).
		Count(&count).Error
	return count, err
}
