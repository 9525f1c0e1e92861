package search

import (
	"context"

	"github.com/praxishq/praxis/domain/record"
)

// StoredEmbedding is a persisted record vector. At most one exists per
// (record_id, kind, model_version); upserting overwrites.
type StoredEmbedding struct {
	recordID     string
	kind         record.Kind
	modelVersion string
	vector       []float32
}

// NewStoredEmbedding creates a StoredEmbedding. The vector is copied.
func NewStoredEmbedding(recordID string, kind record.Kind, modelVersion string, vector []float32) StoredEmbedding {
	cp := make([]float32, len(vector))
	copy(cp, vector)
	return StoredEmbedding{
		recordID:     recordID,
		kind:         kind,
		modelVersion: modelVersion,
		vector:       cp,
	}
}

// RecordID returns the owning record's identifier.
func (e StoredEmbedding) RecordID() string { return e.recordID }

// Kind returns the owning record's kind.
func (e StoredEmbedding) Kind() record.Kind { return e.kind }

// ModelVersion returns the embedding model version.
func (e StoredEmbedding) ModelVersion() string { return e.modelVersion }

// Vector returns the embedding vector (copy).
func (e StoredEmbedding) Vector() []float32 {
	cp := make([]float32, len(e.vector))
	copy(cp, e.vector)
	return cp
}

// EmbeddingStore persists record embeddings.
type EmbeddingStore interface {
	// Upsert writes a vector, replacing any existing one for the same
	// (record_id, kind, model_version).
	Upsert(ctx context.Context, embedding StoredEmbedding) error

	// List returns all embeddings for a model version.
	List(ctx context.Context, modelVersion string) ([]StoredEmbedding, error)

	// DeleteFor removes all embeddings of a record.
	DeleteFor(ctx context.Context, recordID string, kind record.Kind) error
}
