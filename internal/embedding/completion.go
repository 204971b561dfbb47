package embedding

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lanefield/brag/pkg/models"
)

// Store is the persistence surface the completion pass needs.
type Store interface {
	// ListMissingEmbeddings returns the user's achievements without a vector.
	ListMissingEmbeddings(ctx context.Context, userID string) ([]*models.Achievement, error)
	// SaveEmbedding persists a computed vector for one achievement.
	SaveEmbedding(ctx context.Context, achievementID int64, vec []float32) error
}

// Completer ensures every achievement of a user has an embedding before
// clustering. Items are processed in bounded concurrent batches; each item's
// outcome is independent, so a provider failure on one achievement never
// fails the pass. Recomputing an existing embedding is harmless, which makes
// the whole pass idempotent.
type Completer struct {
	store       Store
	svc         *Service
	batchSize   int
	concurrency int
	log         zerolog.Logger
}

// NewCompleter creates a completion pass with the given batch shape.
func NewCompleter(store Store, svc *Service, batchSize, concurrency int, log zerolog.Logger) *Completer {
	if batchSize <= 0 {
		batchSize = 16
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Completer{
		store:       store,
		svc:         svc,
		batchSize:   batchSize,
		concurrency: concurrency,
		log:         log.With().Str("component", "embedding-completion").Logger(),
	}
}

// CompleteEmbeddings computes and persists vectors for every achievement of
// the user that lacks one, and returns the count successfully completed.
// Individual provider or persistence failures are logged and excluded from
// the count; only a storage failure listing the pending items is returned
// as an error.
func (c *Completer) CompleteEmbeddings(ctx context.Context, userID string) (int, error) {
	pending, err := c.store.ListMissingEmbeddings(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list achievements missing embeddings: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	var completed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for start := 0; start < len(pending); start += c.batchSize {
		end := min(start+c.batchSize, len(pending))
		batch := pending[start:end]

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			completed.Add(int64(c.completeBatch(gctx, batch)))
			return nil
		})
	}

	// The only error surfaced through the group is context cancellation.
	if err := g.Wait(); err != nil {
		return int(completed.Load()), err
	}

	c.log.Debug().
		Str("userId", userID).
		Int("pending", len(pending)).
		Int64("completed", completed.Load()).
		Msg("Embedding completion pass finished")

	return int(completed.Load()), nil
}

// completeBatch embeds one batch and persists per-item successes.
// Falls back to per-item requests when the batch call fails, so a single
// rejected input cannot poison its neighbors.
func (c *Completer) completeBatch(ctx context.Context, batch []*models.Achievement) int {
	texts := make([]string, len(batch))
	for i, a := range batch {
		texts[i] = a.EmbeddingText()
	}

	vectors, err := c.svc.EmbedBatch(texts)
	if err != nil {
		c.log.Warn().Err(err).Int("batch", len(batch)).Msg("Batch embedding failed, retrying per item")
		vectors = make([][]float32, len(batch))
		for i, text := range texts {
			vec, embedErr := c.svc.Embed(text)
			if embedErr != nil {
				c.log.Warn().Err(embedErr).Int64("achievementId", batch[i].ID).Msg("Embedding failed for achievement")
				continue
			}
			vectors[i] = vec
		}
	}

	saved := 0
	for i, vec := range vectors {
		if len(vec) == 0 {
			continue
		}
		if err := c.store.SaveEmbedding(ctx, batch[i].ID, vec); err != nil {
			c.log.Warn().Err(err).Int64("achievementId", batch[i].ID).Msg("Failed to persist embedding")
			continue
		}
		saved++
	}
	return saved
}
