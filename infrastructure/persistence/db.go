package persistence

import (
	"context"
	"fmt"

	"github.com/praxishq/praxis/internal/database"
)

// AutoMigrate creates or updates the schema for all stores.
func AutoMigrate(ctx context.Context, db database.Database) error {
	if err := db.Session(ctx).AutoMigrate(
		&RecordEntity{},
		&EmbeddingEntity{},
		&MappingEntity{},
		&LeaseEntity{},
	); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}
