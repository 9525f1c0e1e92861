package search

import "context"

// Embedder encodes text into unit-normalized dense vectors of a fixed
// dimension. Implementations live in infrastructure/provider.
type Embedder interface {
	// Encode returns one vector per input text.
	Encode(ctx context.Context, texts []string) ([][]float32, error)

	// EncodeSingle encodes one text.
	EncodeSingle(ctx context.Context, text string) ([]float32, error)

	// ModelVersion identifies the embedding model. Changing it invalidates
	// all existing vectors and mappings.
	ModelVersion() string

	// Dimension returns the vector dimension, or 0 before the first
	// successful encode when the provider probes lazily.
	Dimension() int
}

// RerankQuery carries both parts of a parsed query to the reranker. How a
// model combines them is model-specific; both are passed unchanged.
type RerankQuery struct {
	search string
	task   string
}

// NewRerankQuery creates a RerankQuery.
func NewRerankQuery(search, task string) RerankQuery {
	return RerankQuery{search: search, task: task}
}

// Search returns the keyword phrase.
func (q RerankQuery) Search() string { return q.search }

// Task returns the task context.
func (q RerankQuery) Task() string { return q.task }

// Reranker scores (query, document) pairs in [0, 1] via yes/no
// classification.
type Reranker interface {
	Rerank(ctx context.Context, query RerankQuery, documents []string) ([]float64, error)
}
