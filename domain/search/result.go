package search

import "github.com/praxishq/praxis/domain/record"

// ProviderName identifies a search provider. Provider resolution is total:
// the orchestrator's registry is keyed by this type.
type ProviderName string

// ProviderName values.
const (
	ProviderVector ProviderName = "vector"
	ProviderText   ProviderName = "text"
)

// Reason explains why a result matched.
type Reason string

// Reason values.
const (
	ReasonSemanticMatch     Reason = "semantic_match"
	ReasonTextMatch         Reason = "text_match"
	ReasonSemanticDuplicate Reason = "semantic_duplicate"
	ReasonTextDuplicate     Reason = "text_duplicate"
)

// Result is a single search or duplicate-detection hit. Scores are always
// in [0, 1]; results produced by a fallback carry degraded=true and a hint.
type Result struct {
	recordID string
	kind     record.Kind
	score    float64
	reason   Reason
	provider ProviderName
	rank     int
	degraded bool
	hint     string
	title    string
	summary  string
}

// NewResult creates a Result.
func NewResult(recordID string, kind record.Kind, score float64) Result {
	return Result{recordID: recordID, kind: kind, score: score}
}

// RecordID returns the matched record's identifier.
func (r Result) RecordID() string { return r.recordID }

// Kind returns the matched record's kind.
func (r Result) Kind() record.Kind { return r.kind }

// Score returns the match score in [0, 1].
func (r Result) Score() float64 { return r.score }

// Reason returns why the record matched.
func (r Result) Reason() Reason { return r.reason }

// Provider returns the provider that produced the result.
func (r Result) Provider() ProviderName { return r.provider }

// Rank returns the 0-based position in the final ordering.
func (r Result) Rank() int { return r.rank }

// Degraded reports whether the result came from a fallback provider.
func (r Result) Degraded() bool { return r.degraded }

// Hint returns a human hint attached to degraded results.
func (r Result) Hint() string { return r.hint }

// Title returns the matched record's title, when loaded.
func (r Result) Title() string { return r.title }

// Summary returns the matched record's summary, when loaded.
func (r Result) Summary() string { return r.summary }

// WithScore returns a copy with the score replaced.
func (r Result) WithScore(score float64) Result {
	r.score = score
	return r
}

// WithReason returns a copy with the reason set.
func (r Result) WithReason(reason Reason) Result {
	r.reason = reason
	return r
}

// WithProvider returns a copy with the provider set.
func (r Result) WithProvider(name ProviderName) Result {
	r.provider = name
	return r
}

// WithRank returns a copy with the rank set.
func (r Result) WithRank(rank int) Result {
	r.rank = rank
	return r
}

// WithDegraded returns a copy marked degraded with the given hint.
func (r Result) WithDegraded(hint string) Result {
	r.degraded = true
	r.hint = hint
	return r
}

// WithTitle returns a copy with the title set.
func (r Result) WithTitle(title string) Result {
	r.title = title
	return r
}

// WithSummary returns a copy with the summary set.
func (r Result) WithSummary(summary string) Result {
	r.summary = summary
	return r
}
