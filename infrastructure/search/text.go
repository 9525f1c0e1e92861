package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/praxishq/praxis/domain/record"
	"github.com/praxishq/praxis/domain/search"
)

// Text match scores. The text provider has no continuous similarity; a
// full-phrase match outranks a token-only match and that is all.
const (
	textScoreFullMatch  = 0.6
	textScoreTokenMatch = 0.4
	textScoreExactTitle = 1.0
	textScoreTitlePart  = 0.75
)

// textSearchHint explains why a caller is seeing substring results.
const textSearchHint = "semantic search unavailable; results from text matching only"

// TextStore is the record store surface the text provider needs.
type TextStore interface {
	MatchText(ctx context.Context, query string, kind *record.Kind, category string, limit int) ([]record.Record, error)
	FindByTitle(ctx context.Context, title string, kind record.Kind, category, excludeID string) ([]record.Record, error)
}

// TextProvider matches queries by substring against title, body and
// summary columns. It is the always-available fallback behind the vector
// provider.
type TextProvider struct {
	store TextStore
}

// NewTextProvider creates a TextProvider.
func NewTextProvider(store TextStore) *TextProvider {
	return &TextProvider{store: store}
}

// Name returns the provider's registry key.
func (p *TextProvider) Name() search.ProviderName { return search.ProviderText }

// Available always reports true.
func (p *TextProvider) Available(_ context.Context) bool { return true }

// Search matches records containing the whole query or any of its leading
// tokens, most recently updated first. Results always carry degraded=true:
// text matching is a fallback, never the intended search mode.
func (p *TextProvider) Search(ctx context.Context, query string, opts search.Options) ([]search.Result, error) {
	phrase := strings.TrimSpace(query)
	if phrase == "" {
		return nil, fmt.Errorf("%w: %w", search.ErrValidation, search.ErrEmptyQuery)
	}

	// Pipe and marker queries carry the keyword phrase up front; matching
	// the raw string would never hit.
	parsed := search.ParseQuery(phrase)
	phrase = parsed.Phrase()

	records, err := p.store.MatchText(ctx, phrase, opts.Kind, opts.Category, opts.TopK)
	if err != nil {
		return nil, fmt.Errorf("%w: text search: %v", search.ErrProvider, err)
	}

	results := make([]search.Result, 0, len(records))
	lower := strings.ToLower(phrase)
	for i, rec := range records {
		if i >= opts.TopK {
			break
		}
		results = append(results, search.NewResult(rec.ID(), rec.Kind(), textMatchScore(rec, lower)).
			WithReason(search.ReasonTextMatch).
			WithProvider(search.ProviderText).
			WithRank(i).
			WithDegraded(textSearchHint).
			WithTitle(rec.Title()).
			WithSummary(rec.Summary()))
	}
	return results, nil
}

// FindDuplicates reports exact case-insensitive title matches with score
// 1.0; when none exist, substring title matches with score 0.75. The
// request threshold is ignored — text matching has no continuous score.
func (p *TextProvider) FindDuplicates(ctx context.Context, req search.DuplicateRequest) ([]search.Result, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return []search.Result{}, nil
	}

	records, err := p.store.FindByTitle(ctx, title, req.Kind, req.Category, req.ExcludeID)
	if err != nil {
		return nil, fmt.Errorf("%w: find duplicates: %v", search.ErrProvider, err)
	}

	lower := strings.ToLower(title)
	var exact, partial []record.Record
	for _, rec := range records {
		if strings.ToLower(strings.TrimSpace(rec.Title())) == lower {
			exact = append(exact, rec)
		} else {
			partial = append(partial, rec)
		}
	}

	matched := exact
	score := textScoreExactTitle
	if len(matched) == 0 {
		matched = partial
		score = textScoreTitlePart
	}

	results := make([]search.Result, 0, len(matched))
	for i, rec := range matched {
		results = append(results, search.NewResult(rec.ID(), rec.Kind(), score).
			WithReason(search.ReasonTextDuplicate).
			WithProvider(search.ProviderText).
			WithRank(i).
			WithTitle(rec.Title()).
			WithSummary(rec.Summary()))
	}
	return results, nil
}

// RebuildIndex is a no-op: the text provider has no derived state.
func (p *TextProvider) RebuildIndex(_ context.Context) error { return nil }

// textMatchScore distinguishes full-phrase matches from token-only
// matches.
func textMatchScore(rec record.Record, lowerPhrase string) float64 {
	haystack := strings.ToLower(rec.Title() + "\n" + rec.Body() + "\n" + rec.Summary())
	if strings.Contains(haystack, lowerPhrase) {
		return textScoreFullMatch
	}
	return textScoreTokenMatch
}

var _ search.Provider = (*TextProvider)(nil)
