package embedding

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanefield/brag/pkg/models"
)

type memEmbedStore struct {
	mu      sync.Mutex
	pending []*models.Achievement
	saved   map[int64][]float32
	listErr error
	saveErr map[int64]error
}

func newMemEmbedStore(pending ...*models.Achievement) *memEmbedStore {
	return &memEmbedStore{
		pending: pending,
		saved:   make(map[int64][]float32),
		saveErr: make(map[int64]error),
	}
}

func (s *memEmbedStore) ListMissingEmbeddings(ctx context.Context, userID string) ([]*models.Achievement, error) {
	return s.pending, s.listErr
}

func (s *memEmbedStore) SaveEmbedding(ctx context.Context, id int64, vec []float32) error {
	if err := s.saveErr[id]; err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved[id] = vec
	return nil
}

// stubModel returns a fixed vector; batch calls can be forced to fail to
// exercise the per-item fallback, and individual texts can be rejected.
type stubModel struct {
	mu        sync.Mutex
	batchErr  error
	reject    map[string]bool
	embedded  int
	batchSeen int
}

func (m *stubModel) Name() string    { return "stub" }
func (m *stubModel) Dimensions() int { return 3 }
func (m *stubModel) Close() error    { return nil }

func (m *stubModel) Embed(text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reject[text] {
		return nil, fmt.Errorf("rejected input")
	}
	m.embedded++
	return []float32{1, 0, 0}, nil
}

func (m *stubModel) EmbedBatch(texts []string) ([][]float32, error) {
	m.mu.Lock()
	if m.batchErr != nil {
		m.mu.Unlock()
		return nil, m.batchErr
	}
	m.batchSeen++
	m.mu.Unlock()

	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func achievement(id int64, title string) *models.Achievement {
	return &models.Achievement{ID: id, UserID: "u1", Title: title, Body: "body"}
}

func TestCompleteEmbeddings_Empty(t *testing.T) {
	store := newMemEmbedStore()
	completer := NewCompleter(store, NewService(&stubModel{}), 4, 2, zerolog.Nop())

	n, err := completer.CompleteEmbeddings(context.Background(), "u1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCompleteEmbeddings_BatchesAll(t *testing.T) {
	store := newMemEmbedStore(
		achievement(1, "one"), achievement(2, "two"), achievement(3, "three"),
		achievement(4, "four"), achievement(5, "five"),
	)
	model := &stubModel{}
	completer := NewCompleter(store, NewService(model), 2, 2, zerolog.Nop())

	n, err := completer.CompleteEmbeddings(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Len(t, store.saved, 5)
	assert.Equal(t, 3, model.batchSeen, "5 items in batches of 2")
}

func TestCompleteEmbeddings_FallsBackPerItem(t *testing.T) {
	store := newMemEmbedStore(achievement(1, "one"), achievement(2, "two"))
	model := &stubModel{
		batchErr: fmt.Errorf("batch unavailable"),
		reject:   map[string]bool{"two\nbody": true},
	}
	completer := NewCompleter(store, NewService(model), 8, 1, zerolog.Nop())

	n, err := completer.CompleteEmbeddings(context.Background(), "u1")
	require.NoError(t, err, "provider failures are per-item, not fatal")
	assert.Equal(t, 1, n)
	assert.Contains(t, store.saved, int64(1))
	assert.NotContains(t, store.saved, int64(2))
}

func TestCompleteEmbeddings_PersistFailureSkipsItem(t *testing.T) {
	store := newMemEmbedStore(achievement(1, "one"), achievement(2, "two"))
	store.saveErr[2] = fmt.Errorf("disk full")
	completer := NewCompleter(store, NewService(&stubModel{}), 8, 1, zerolog.Nop())

	n, err := completer.CompleteEmbeddings(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCompleteEmbeddings_ListErrorIsFatal(t *testing.T) {
	store := newMemEmbedStore()
	store.listErr = fmt.Errorf("db down")
	completer := NewCompleter(store, NewService(&stubModel{}), 8, 1, zerolog.Nop())

	_, err := completer.CompleteEmbeddings(context.Background(), "u1")
	require.Error(t, err)
}
