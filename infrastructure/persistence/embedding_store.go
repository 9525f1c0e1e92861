package persistence

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"github.com/praxishq/praxis/domain/record"
	"github.com/praxishq/praxis/domain/search"
	"github.com/praxishq/praxis/internal/database"
)

// EmbeddingStore is the GORM-backed embedding store.
type EmbeddingStore struct {
	db database.Database
}

// NewEmbeddingStore creates an EmbeddingStore.
func NewEmbeddingStore(db database.Database) *EmbeddingStore {
	return &EmbeddingStore{db: db}
}

// Upsert writes a vector, replacing any existing row for the same
// (record, kind, model version).
func (s *EmbeddingStore) Upsert(ctx context.Context, embedding search.StoredEmbedding) error {
	now := time.Now().UTC()
	entity := EmbeddingEntity{
		RecordID:     embedding.RecordID(),
		Kind:         embedding.Kind().String(),
		ModelVersion: embedding.ModelVersion(),
		Vector:       Float32Slice(embedding.Vector()),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return database.WithRetry(ctx, func() error {
		err := s.db.Session(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "record_id"},
				{Name: "kind"},
				{Name: "model_version"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"vector", "updated_at"}),
		}).Create(&entity).Error
		if err != nil {
			return fmt.Errorf("upsert embedding: %w", err)
		}
		return nil
	})
}

// List returns all embeddings for a model version.
func (s *EmbeddingStore) List(ctx context.Context, modelVersion string) ([]search.StoredEmbedding, error) {
	var entities []EmbeddingEntity
	err := s.db.Session(ctx).
		Where("model_version = ?", modelVersion).
		Order("kind ASC, record_id ASC").
		Find(&entities).Error
	if err != nil {
		return nil, fmt.Errorf("list embeddings: %w", err)
	}

	out := make([]search.StoredEmbedding, 0, len(entities))
	for _, e := range entities {
		kind, err := record.ParseKind(e.Kind)
		if err != nil {
			return nil, err
		}
		out = append(out, search.NewStoredEmbedding(e.RecordID, kind, e.ModelVersion, e.Vector))
	}
	return out, nil
}

// DeleteFor removes all embeddings of a record across model versions.
func (s *EmbeddingStore) DeleteFor(ctx context.Context, recordID string, kind record.Kind) error {
	return database.WithRetry(ctx, func() error {
		err := s.db.Session(ctx).
			Where("record_id = ? AND kind IN ?", recordID, kindValues(kind)).
			Delete(&EmbeddingEntity{}).Error
		if err != nil {
			return fmt.Errorf("delete embeddings: %w", err)
		}
		return nil
	})
}
