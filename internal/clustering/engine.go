package clustering

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lanefield/brag/pkg/models"
)

// AchievementStore defines the achievement operations the engine needs.
type AchievementStore interface {
	// CountAchievements returns the total number of achievements the user owns.
	CountAchievements(ctx context.Context, userID string) (int64, error)
	// CountFilteredEmbedded counts embedded achievements matching the filter.
	CountFilteredEmbedded(ctx context.Context, userID string, filter *models.Filter) (int64, error)
	// ListFilteredEmbedded loads embedded achievements matching the filter.
	ListFilteredEmbedded(ctx context.Context, userID string, filter *models.Filter) ([]*models.Achievement, error)
	// ListUnassignedFilteredEmbedded loads embedded, in-filter achievements
	// without a workstream link.
	ListUnassignedFilteredEmbedded(ctx context.Context, userID string, filter *models.Filter) ([]*models.Achievement, error)
	// ListUnassignedEmbeddedOutsideFilter loads embedded achievements without
	// a link that fall outside the filter. Returns nothing for an
	// unrestricted filter.
	ListUnassignedEmbeddedOutsideFilter(ctx context.Context, userID string, filter *models.Filter) ([]*models.Achievement, error)
	// SetWorkstream links the given achievements to a workstream.
	SetWorkstream(ctx context.Context, userID string, achievementIDs []int64, workstreamID int64) error
	// ClearWorkstream removes the workstream link from the given achievements.
	ClearWorkstream(ctx context.Context, userID string, achievementIDs []int64) error
}

// WorkstreamStore defines the workstream operations the engine needs.
type WorkstreamStore interface {
	ListWorkstreams(ctx context.Context, userID string) ([]*models.Workstream, error)
	// ListMembers returns each workstream's embedded members, keyed by
	// workstream id.
	ListMembers(ctx context.Context, userID string) (map[int64][]*models.Achievement, error)
	CreateWorkstream(ctx context.Context, ws *models.Workstream) error
	DeleteWorkstreams(ctx context.Context, userID string, ids []int64) error
}

// RunStore persists per-user clustering run metadata.
type RunStore interface {
	// GetClusteringRun returns the user's run metadata, or nil when no full
	// run has happened yet.
	GetClusteringRun(ctx context.Context, userID string) (*models.ClusteringRun, error)
	UpsertClusteringRun(ctx context.Context, run *models.ClusteringRun) error
}

// Embedder completes missing embeddings before a run.
type Embedder interface {
	CompleteEmbeddings(ctx context.Context, userID string) (int, error)
}

// InsufficientAchievementsError reports that too few qualifying achievements
// exist to cluster. It surfaces as a terminal stream error because the check
// runs after the metering gate.
type InsufficientAchievementsError struct {
	Count int64
	Min   int64
}

func (e *InsufficientAchievementsError) Error() string {
	return fmt.Sprintf("only %d qualifying achievements found; at least %d required", e.Count, e.Min)
}

// Engine orchestrates a generation run: embedding completion, strategy
// selection, and the chosen clustering pass.
type Engine struct {
	achievements AchievementStore
	workstreams  WorkstreamStore
	runs         RunStore
	embedder     Embedder
	log          zerolog.Logger

	// Per-user locks serialize full passes so concurrent runs cannot
	// interleave their metadata writes.
	userLocks sync.Map
}

// NewEngine wires the engine's collaborators.
func NewEngine(achievements AchievementStore, workstreams WorkstreamStore, runs RunStore, embedder Embedder, log zerolog.Logger) *Engine {
	return &Engine{
		achievements: achievements,
		workstreams:  workstreams,
		runs:         runs,
		embedder:     embedder,
		log:          log.With().Str("component", "clustering").Logger(),
	}
}

// Generate runs one clustering request end to end and emits the terminal
// complete event through the sink. Errors are returned to the caller, which
// owns translating them into a terminal error event.
func (e *Engine) Generate(ctx context.Context, userID string, filter *models.Filter, sink Sink) (*Outcome, error) {
	if err := emitProgress(ctx, sink, "embedding", "Completing missing embeddings"); err != nil {
		return nil, err
	}
	embedded, err := e.embedder.CompleteEmbeddings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("complete embeddings: %w", err)
	}

	if err := emitProgress(ctx, sink, "counting", "Counting qualifying achievements"); err != nil {
		return nil, err
	}
	count, err := e.achievements.CountFilteredEmbedded(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("count filtered achievements: %w", err)
	}
	if count < MinAchievements {
		return nil, &InsufficientAchievementsError{Count: count, Min: MinAchievements}
	}

	meta, err := e.runs.GetClusteringRun(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load clustering run metadata: %w", err)
	}

	decision := Decide(time.Now(), count, meta, filter)
	e.log.Info().
		Str("userId", userID).
		Str("strategy", string(decision.Strategy)).
		Str("reason", decision.Reason).
		Int64("filteredCount", count).
		Msg("Clustering strategy selected")

	if err := emitProgress(ctx, sink, "strategy", decision.Reason); err != nil {
		return nil, err
	}

	params := SelectParams(count)
	if !params.Valid {
		// Unreachable: the minimum count is enforced above.
		return nil, fmt.Errorf("no clustering parameters defined for count %d", count)
	}

	outcome := &Outcome{
		Strategy:            decision.Strategy,
		Reason:              decision.Reason,
		EmbeddingsCompleted: embedded,
	}

	switch decision.Strategy {
	case StrategyFull:
		lock := e.lockFor(userID)
		lock.Lock()
		full, err := e.runFull(ctx, userID, filter, params, sink)
		lock.Unlock()
		if err != nil {
			return nil, err
		}
		outcome.Full = full
	case StrategyIncremental:
		incr, err := e.runIncremental(ctx, userID, filter, params, sink)
		if err != nil {
			return nil, err
		}
		outcome.Incremental = incr
	}

	if err := sink.Emit(ctx, Event{Type: EventComplete, Result: outcome}); err != nil {
		return outcome, err
	}
	return outcome, nil
}

func (e *Engine) lockFor(userID string) *sync.Mutex {
	lock, _ := e.userLocks.LoadOrStore(userID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}
