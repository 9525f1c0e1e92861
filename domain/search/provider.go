package search

import (
	"context"

	"github.com/praxishq/praxis/domain/record"
)

// Options scopes a single-type search call.
type Options struct {
	// Kind restricts results to one record kind. Nil matches both.
	Kind *record.Kind

	// Category drops results whose record belongs to another category.
	// Empty means no category filter.
	Category string

	// TopK caps the number of results. Zero returns an empty list.
	TopK int
}

// DuplicateRequest asks a provider for existing records similar to a
// record about to be written.
type DuplicateRequest struct {
	// Title and Body of the candidate record.
	Title string
	Body  string

	// Kind of the candidate record.
	Kind record.Kind

	// Category scope; empty means all categories.
	Category string

	// ExcludeID drops a record from the candidates (the record being
	// updated).
	ExcludeID string

	// Threshold drops candidates scoring below it before any rerank.
	// Ignored by the text provider.
	Threshold float64
}

// Provider is the search contract implemented by the vector and text
// providers. Provider failures are reported as errors wrapping ErrProvider;
// the orchestrator owns retry and fallback decisions.
type Provider interface {
	// Name returns the provider's registry key.
	Name() ProviderName

	// Available reports whether the provider can serve queries right now.
	Available(ctx context.Context) bool

	// Search resolves a query into scored results.
	Search(ctx context.Context, query string, opts Options) ([]Result, error)

	// FindDuplicates returns existing records similar to the request.
	FindDuplicates(ctx context.Context, req DuplicateRequest) ([]Result, error)

	// RebuildIndex reconstructs any derived search state from the store.
	// A no-op for providers without derived state.
	RebuildIndex(ctx context.Context) error
}
