package search

import "errors"

// Error taxonomy. Low layers report these kinds; the orchestrator is the
// only place that makes fallback decisions based on them.
var (
	// ErrProvider marks a transient provider failure (encoder, reranker,
	// or index failure inside a provider call). Retried by the
	// orchestrator, then fallen back.
	ErrProvider = errors.New("search provider failure")

	// ErrUnavailable marks a provider that cannot serve at all (e.g. the
	// vector index has no valid snapshot). Not retried; the orchestrator
	// falls back immediately.
	ErrUnavailable = errors.New("search provider unavailable")

	// ErrIndex marks a vector index failure: dimension mismatch or
	// structural corruption. Treated as ErrProvider by callers.
	ErrIndex = errors.New("vector index failure")

	// ErrValidation marks malformed input. Raised synchronously, never
	// retried.
	ErrValidation = errors.New("invalid search input")

	// ErrEmptyQuery is raised when a query is empty after trimming.
	ErrEmptyQuery = errors.New("query is empty")

	// ErrOrchestrator is surfaced when every provider has been exhausted.
	ErrOrchestrator = errors.New("all search providers failed")
)
