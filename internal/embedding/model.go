// Package embedding provides text embedding generation for achievements.
package embedding

// Model is the interface all embedding providers implement.
type Model interface {
	// Name returns the human-readable model name.
	Name() string
	// Dimensions returns the embedding vector size.
	Dimensions() int
	// Embed generates an embedding for a single text.
	Embed(text string) ([]float32, error)
	// EmbedBatch generates embeddings for multiple texts, preserving order.
	EmbedBatch(texts []string) ([][]float32, error)
	// Close releases model resources.
	Close() error
}

// Service provides thread-safe embedding generation over a Model.
type Service struct {
	model Model
}

// NewService wraps the given model.
func NewService(model Model) *Service {
	return &Service{model: model}
}

// Name returns the underlying model name.
func (s *Service) Name() string { return s.model.Name() }

// Dimensions returns the embedding vector size.
func (s *Service) Dimensions() int { return s.model.Dimensions() }

// Embed generates an embedding for a single text.
func (s *Service) Embed(text string) ([]float32, error) {
	return s.model.Embed(text)
}

// EmbedBatch generates embeddings for multiple texts.
func (s *Service) EmbedBatch(texts []string) ([][]float32, error) {
	return s.model.EmbedBatch(texts)
}

// Close releases model resources.
func (s *Service) Close() error { return s.model.Close() }
