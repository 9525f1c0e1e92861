// Package persistence implements the GORM-backed stores: records,
// embeddings, index mappings and the worker lease.
package persistence

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Float32Slice stores a vector as a JSON array in a text column, portable
// across SQLite and PostgreSQL.
type Float32Slice []float32

// Value implements driver.Valuer.
func (f Float32Slice) Value() (driver.Value, error) {
	data, err := json.Marshal([]float32(f))
	if err != nil {
		return nil, fmt.Errorf("marshal vector: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (f *Float32Slice) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	case nil:
		*f = nil
		return nil
	default:
		return fmt.Errorf("unsupported vector column type %T", value)
	}
	return json.Unmarshal(data, (*[]float32)(f))
}

// RecordEntity is the database model for a knowledge-base record.
type RecordEntity struct {
	ID              string `gorm:"primaryKey"`
	Kind            string `gorm:"primaryKey"`
	Title           string
	Body            string
	Summary         string
	CategoryCode    string `gorm:"index"`
	Author          string
	Section         string
	EmbeddingStatus string `gorm:"index"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TableName returns the table name.
func (RecordEntity) TableName() string { return "records" }

// EmbeddingEntity is the database model for a record embedding. At most one
// row exists per (record, kind, model version).
type EmbeddingEntity struct {
	ID           uint         `gorm:"primaryKey;autoIncrement"`
	RecordID     string       `gorm:"uniqueIndex:idx_embeddings_record_model"`
	Kind         string       `gorm:"uniqueIndex:idx_embeddings_record_model"`
	ModelVersion string       `gorm:"uniqueIndex:idx_embeddings_record_model"`
	Vector       Float32Slice `gorm:"type:text"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName returns the table name.
func (EmbeddingEntity) TableName() string { return "record_embeddings" }

// MappingEntity mirrors one vector index entry.
type MappingEntity struct {
	InternalID   uint64 `gorm:"primaryKey;autoIncrement:false"`
	RecordID     string `gorm:"index"`
	Kind         string
	ModelVersion string `gorm:"index"`
	Deleted      bool
	CreatedAt    time.Time
}

// TableName returns the table name.
func (MappingEntity) TableName() string { return "vector_mappings" }

// LeaseEntity is a named worker lease row. The embedding worker's leader
// election is a compare-and-swap over this row.
type LeaseEntity struct {
	Name      string `gorm:"primaryKey"`
	Owner     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// TableName returns the table name.
func (LeaseEntity) TableName() string { return "worker_locks" }
