package record

import (
	"context"
	"errors"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store is the persistence contract the search and embedding subsystem
// consumes. Implementations normalize legacy kind values on read and keep
// transactions per call — the core never holds one across a suspension
// point.
type Store interface {
	// Get loads a single record.
	Get(ctx context.Context, id string, kind Kind) (Record, error)

	// ListPending returns up to limit records whose embedding status is
	// pending (or unset), oldest first. A nil kind matches both kinds.
	ListPending(ctx context.Context, kind *Kind, limit int) ([]Record, error)

	// ListFailed returns up to limit records whose embedding failed,
	// oldest first.
	ListFailed(ctx context.Context, kind *Kind, limit int) ([]Record, error)

	// SetStatus updates a record's embedding status.
	SetStatus(ctx context.Context, id string, kind Kind, status EmbeddingStatus) error
}
