// Package metering enforces the per-request usage budget. The gate runs
// before any long-running work or response stream opens, because the charge
// decision cannot be revised once streaming starts.
package metering

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lanefield/brag/pkg/models"
)

// Store is the persistence surface the gate needs. DebitBudget must be
// atomic at the storage layer: a single conditional check-and-decrement
// that can only succeed while the checked amount is still available.
type Store interface {
	// GetBudget returns the user's budget, or nil when none is provisioned.
	GetBudget(ctx context.Context, userID string) (*models.UserBudget, error)
	// DebitBudget atomically decrements the budget when remaining >= amount.
	// Returns false when the condition did not hold, including when a
	// concurrent request won the race.
	DebitBudget(ctx context.Context, userID string, amount int64) (bool, error)
	// RecordUsage appends an immutable ledger entry.
	RecordUsage(ctx context.Context, entry *models.UsageEntry) error
}

// InsufficientBudgetError is the distinguishable pre-stream failure a caller
// returns as a synchronous 402 response.
type InsufficientBudgetError struct {
	Required  int64
	Available int64
}

func (e *InsufficientBudgetError) Error() string {
	return fmt.Sprintf("insufficient budget: %d required, %d available", e.Required, e.Available)
}

// Gate reserves a fixed cost per accepted generation request.
type Gate struct {
	store Store
	cost  int64
	log   zerolog.Logger
}

// NewGate creates a gate debiting the given cost per request.
func NewGate(store Store, cost int64, log zerolog.Logger) *Gate {
	return &Gate{
		store: store,
		cost:  cost,
		log:   log.With().Str("component", "metering").Logger(),
	}
}

// Cost returns the per-request debit amount.
func (g *Gate) Cost() int64 { return g.cost }

// Reserve charges the user exactly once for this request. Unlimited users
// pass through without a debit. Losing the decrement race to a concurrent
// request is reported identically to an insufficient balance. Ledger
// recording is best-effort and never fails the reservation.
func (g *Gate) Reserve(ctx context.Context, userID string) error {
	budget, err := g.store.GetBudget(ctx, userID)
	if err != nil {
		return fmt.Errorf("load budget: %w", err)
	}
	if budget == nil {
		return &InsufficientBudgetError{Required: g.cost, Available: 0}
	}
	if budget.Unlimited {
		return nil
	}
	if budget.Remaining < g.cost {
		return &InsufficientBudgetError{Required: g.cost, Available: budget.Remaining}
	}

	ok, err := g.store.DebitBudget(ctx, userID, g.cost)
	if err != nil {
		return fmt.Errorf("debit budget: %w", err)
	}
	if !ok {
		// Lost the race to a concurrent request between the read and the
		// conditional decrement.
		available := int64(0)
		if fresh, err := g.store.GetBudget(ctx, userID); err == nil && fresh != nil {
			available = fresh.Remaining
		}
		return &InsufficientBudgetError{Required: g.cost, Available: available}
	}

	entry := &models.UsageEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Amount:    g.cost,
		Reason:    "workstream_generation",
		CreatedAt: time.Now(),
	}
	if err := g.store.RecordUsage(ctx, entry); err != nil {
		g.log.Warn().Err(err).Str("userId", userID).Msg("Failed to record usage ledger entry")
	}

	return nil
}
