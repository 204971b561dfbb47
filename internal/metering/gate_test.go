package metering

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanefield/brag/pkg/models"
)

// memUsageStore reproduces the storage layer's atomicity contract in memory:
// the check and the decrement happen under one lock.
type memUsageStore struct {
	mu      sync.Mutex
	budgets map[string]*models.UserBudget
	ledger  []*models.UsageEntry

	failRecord bool
}

func newMemUsageStore() *memUsageStore {
	return &memUsageStore{budgets: make(map[string]*models.UserBudget)}
}

func (m *memUsageStore) GetBudget(ctx context.Context, userID string) (*models.UserBudget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.budgets[userID]
	if !ok {
		return nil, nil
	}
	copied := *b
	return &copied, nil
}

func (m *memUsageStore) DebitBudget(ctx context.Context, userID string, amount int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.budgets[userID]
	if !ok || b.Unlimited || b.Remaining < amount {
		return false, nil
	}
	b.Remaining -= amount
	return true, nil
}

func (m *memUsageStore) RecordUsage(ctx context.Context, entry *models.UsageEntry) error {
	if m.failRecord {
		return assert.AnError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledger = append(m.ledger, entry)
	return nil
}

func TestReserve_DebitsOnce(t *testing.T) {
	store := newMemUsageStore()
	store.budgets["u1"] = &models.UserBudget{UserID: "u1", Remaining: 5}

	gate := NewGate(store, 1, zerolog.Nop())
	require.NoError(t, gate.Reserve(context.Background(), "u1"))

	assert.Equal(t, int64(4), store.budgets["u1"].Remaining)
	require.Len(t, store.ledger, 1)
	assert.Equal(t, "u1", store.ledger[0].UserID)
	assert.Equal(t, int64(1), store.ledger[0].Amount)
	assert.Equal(t, "workstream_generation", store.ledger[0].Reason)
	assert.NotEmpty(t, store.ledger[0].ID)
}

func TestReserve_NoBudgetProvisioned(t *testing.T) {
	store := newMemUsageStore()
	gate := NewGate(store, 1, zerolog.Nop())

	err := gate.Reserve(context.Background(), "nobody")
	var insufficient *InsufficientBudgetError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, int64(1), insufficient.Required)
	assert.Equal(t, int64(0), insufficient.Available)
}

func TestReserve_InsufficientBalance(t *testing.T) {
	store := newMemUsageStore()
	store.budgets["u1"] = &models.UserBudget{UserID: "u1", Remaining: 0}

	gate := NewGate(store, 1, zerolog.Nop())
	err := gate.Reserve(context.Background(), "u1")

	var insufficient *InsufficientBudgetError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, int64(0), insufficient.Available)
	assert.Empty(t, store.ledger, "failed reservations leave no ledger entry")
}

func TestReserve_UnlimitedPassesWithoutDebit(t *testing.T) {
	store := newMemUsageStore()
	store.budgets["u1"] = &models.UserBudget{UserID: "u1", Remaining: 0, Unlimited: true}

	gate := NewGate(store, 1, zerolog.Nop())
	require.NoError(t, gate.Reserve(context.Background(), "u1"))
	assert.Equal(t, int64(0), store.budgets["u1"].Remaining)
	assert.Empty(t, store.ledger)
}

func TestReserve_LedgerFailureDoesNotFailReservation(t *testing.T) {
	store := newMemUsageStore()
	store.budgets["u1"] = &models.UserBudget{UserID: "u1", Remaining: 1}
	store.failRecord = true

	gate := NewGate(store, 1, zerolog.Nop())
	require.NoError(t, gate.Reserve(context.Background(), "u1"))
	assert.Equal(t, int64(0), store.budgets["u1"].Remaining)
}

func TestReserve_ConcurrentRequestsCannotDoubleSpend(t *testing.T) {
	store := newMemUsageStore()
	store.budgets["u1"] = &models.UserBudget{UserID: "u1", Remaining: 1}

	gate := NewGate(store, 1, zerolog.Nop())

	const workers = 16
	var wg sync.WaitGroup
	results := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = gate.Reserve(context.Background(), "u1")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		var insufficient *InsufficientBudgetError
		assert.ErrorAs(t, err, &insufficient)
	}
	assert.Equal(t, 1, succeeded, "exactly one concurrent request may win the last credit")
	assert.Equal(t, int64(0), store.budgets["u1"].Remaining)
	assert.Len(t, store.ledger, 1)
}
