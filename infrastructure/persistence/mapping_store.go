package persistence

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/praxishq/praxis/domain/record"
	"github.com/praxishq/praxis/infrastructure/index"
	"github.com/praxishq/praxis/internal/database"
)

// MappingStore is the GORM-backed index mapping store.
type MappingStore struct {
	db database.Database
}

// NewMappingStore creates a MappingStore.
func NewMappingStore(db database.Database) *MappingStore {
	return &MappingStore{db: db}
}

// Append records a new live index entry.
func (s *MappingStore) Append(ctx context.Context, m index.Mapping) error {
	entity := MappingEntity{
		InternalID:   m.InternalID,
		RecordID:     m.RecordID,
		Kind:         m.Kind.String(),
		ModelVersion: m.ModelVersion,
		Deleted:      m.Deleted,
		CreatedAt:    time.Now().UTC(),
	}
	return database.WithRetry(ctx, func() error {
		if err := s.db.Session(ctx).Create(&entity).Error; err != nil {
			return fmt.Errorf("append mapping: %w", err)
		}
		return nil
	})
}

// MarkDeleted flags entries as tombstoned.
func (s *MappingStore) MarkDeleted(ctx context.Context, internalIDs []uint64) error {
	if len(internalIDs) == 0 {
		return nil
	}
	return database.WithRetry(ctx, func() error {
		err := s.db.Session(ctx).Model(&MappingEntity{}).
			Where("internal_id IN ?", internalIDs).
			Update("deleted", true).Error
		if err != nil {
			return fmt.Errorf("mark mappings deleted: %w", err)
		}
		return nil
	})
}

// List returns all mappings for a model version, internal id ascending.
func (s *MappingStore) List(ctx context.Context, modelVersion string) ([]index.Mapping, error) {
	var entities []MappingEntity
	err := s.db.Session(ctx).
		Where("model_version = ?", modelVersion).
		Order("internal_id ASC").
		Find(&entities).Error
	if err != nil {
		return nil, fmt.Errorf("list mappings: %w", err)
	}

	out := make([]index.Mapping, 0, len(entities))
	for _, e := range entities {
		kind, err := record.ParseKind(e.Kind)
		if err != nil {
			return nil, err
		}
		out = append(out, index.Mapping{
			InternalID:   e.InternalID,
			RecordID:     e.RecordID,
			Kind:         kind,
			ModelVersion: e.ModelVersion,
			Deleted:      e.Deleted,
		})
	}
	return out, nil
}

// Replace atomically swaps all mappings of a model version.
func (s *MappingStore) Replace(ctx context.Context, modelVersion string, mappings []index.Mapping) error {
	now := time.Now().UTC()
	entities := make([]MappingEntity, 0, len(mappings))
	for _, m := range mappings {
		entities = append(entities, MappingEntity{
			InternalID:   m.InternalID,
			RecordID:     m.RecordID,
			Kind:         m.Kind.String(),
			ModelVersion: m.ModelVersion,
			Deleted:      m.Deleted,
			CreatedAt:    now,
		})
	}

	return database.WithRetry(ctx, func() error {
		return s.db.Session(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("model_version = ?", modelVersion).
				Delete(&MappingEntity{}).Error; err != nil {
				return fmt.Errorf("clear mappings: %w", err)
			}
			if len(entities) == 0 {
				return nil
			}
			if err := tx.CreateInBatches(&entities, 500).Error; err != nil {
				return fmt.Errorf("insert mappings: %w", err)
			}
			return nil
		})
	})
}
