package gorm

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/lanefield/brag/pkg/models"
)

// UsageStore persists budgets and the usage ledger.
type UsageStore struct {
	store *Store
}

// NewUsageStore creates a new UsageStore.
func NewUsageStore(store *Store) *UsageStore {
	return &UsageStore{store: store}
}

// GetBudget returns the user's budget, or nil when none is provisioned.
func (s *UsageStore) GetBudget(ctx context.Context, userID string) (*models.UserBudget, error) {
	var row UserBudgetRow
	err := s.store.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &models.UserBudget{
		UserID:    row.UserID,
		Remaining: row.Remaining,
		Unlimited: row.Unlimited,
	}, nil
}

// DebitBudget atomically decrements the budget when remaining >= amount.
// The condition and the decrement execute as one UPDATE, so two concurrent
// requests can never both succeed against the same balance.
func (s *UsageStore) DebitBudget(ctx context.Context, userID string, amount int64) (bool, error) {
	res := s.store.DB.WithContext(ctx).
		Model(&UserBudgetRow{}).
		Where("user_id = ? AND unlimited = false AND remaining >= ?", userID, amount).
		Update("remaining", gorm.Expr("remaining - ?", amount))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// RecordUsage appends an immutable ledger entry.
func (s *UsageStore) RecordUsage(ctx context.Context, entry *models.UsageEntry) error {
	row := UsageEntryRow{
		ID:     entry.ID,
		UserID: entry.UserID,
		Amount: entry.Amount,
		Reason: entry.Reason,
	}
	return s.store.DB.WithContext(ctx).Create(&row).Error
}
