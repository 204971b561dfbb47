// Package maintenance provides scheduled maintenance tasks for brag.
package maintenance

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/lanefield/brag/internal/config"
)

// BackfillStore lists users whose achievements still lack embeddings.
type BackfillStore interface {
	ListUserIDsMissingEmbeddings(ctx context.Context) ([]string, error)
}

// Completer fills in missing embeddings for one user.
type Completer interface {
	CompleteEmbeddings(ctx context.Context, userID string) (int, error)
}

// Optimizer refreshes database statistics.
type Optimizer interface {
	Optimize(ctx context.Context) error
}

// Service runs scheduled maintenance: backfilling embeddings for
// achievements created while the provider was unreachable, and keeping
// query planner statistics fresh.
type Service struct {
	log       zerolog.Logger
	config    *config.Config
	backfill  BackfillStore
	completer Completer
	optimizer Optimizer
	cron      *cron.Cron

	mu              sync.Mutex
	lastRunTime     time.Time
	lastRunDuration time.Duration
	totalBackfilled int64
	running         bool
}

// NewService creates a new maintenance service.
func NewService(backfill BackfillStore, completer Completer, optimizer Optimizer, cfg *config.Config, log zerolog.Logger) *Service {
	return &Service{
		backfill:  backfill,
		completer: completer,
		optimizer: optimizer,
		config:    cfg,
		log:       log.With().Str("component", "maintenance").Logger(),
	}
}

// Start schedules the maintenance job. Non-blocking.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	if !s.config.MaintenanceEnabled {
		s.log.Info().Msg("Maintenance disabled, not starting scheduler")
		return nil
	}

	schedule := s.config.MaintenanceSchedule
	if schedule == "" {
		schedule = "@hourly"
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { s.runMaintenance(ctx) }); err != nil {
		return err
	}
	c.Start()

	s.cron = c
	s.running = true
	s.log.Info().Str("schedule", schedule).Msg("Maintenance scheduler started")
	return nil
}

// Stop stops the scheduler and waits for any in-flight run to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.running = false
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
		s.log.Info().Msg("Maintenance scheduler stopped")
	}
}

// RunNow triggers an immediate maintenance run.
func (s *Service) RunNow(ctx context.Context) {
	go s.runMaintenance(ctx)
}

func (s *Service) runMaintenance(ctx context.Context) {
	start := time.Now()
	s.log.Info().Msg("Starting maintenance run")

	backfilled := s.backfillEmbeddings(ctx)

	if err := s.optimizer.Optimize(ctx); err != nil {
		s.log.Error().Err(err).Msg("Failed to optimize database")
	}

	s.mu.Lock()
	s.lastRunTime = time.Now()
	s.lastRunDuration = time.Since(start)
	s.totalBackfilled += int64(backfilled)
	s.mu.Unlock()

	s.log.Info().
		Dur("duration", time.Since(start)).
		Int("embeddings_backfilled", backfilled).
		Msg("Maintenance run completed")
}

// backfillEmbeddings retries embedding generation for every user with
// unembedded achievements. Per-user failures are logged and skipped so one
// broken account cannot stall the rest.
func (s *Service) backfillEmbeddings(ctx context.Context) int {
	userIDs, err := s.backfill.ListUserIDsMissingEmbeddings(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list users missing embeddings")
		return 0
	}

	total := 0
	for _, userID := range userIDs {
		if ctx.Err() != nil {
			return total
		}
		n, err := s.completer.CompleteEmbeddings(ctx, userID)
		if err != nil {
			s.log.Error().Err(err).Str("userId", userID).Msg("Embedding backfill failed for user")
			continue
		}
		total += n
	}
	return total
}

// Stats returns maintenance statistics.
func (s *Service) Stats() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	return map[string]any{
		"enabled":          s.config.MaintenanceEnabled,
		"schedule":         s.config.MaintenanceSchedule,
		"last_run":         s.lastRunTime,
		"last_duration_ms": s.lastRunDuration.Milliseconds(),
		"total_backfilled": s.totalBackfilled,
		"running":          s.running,
	}
}
