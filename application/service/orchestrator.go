// Package service wires the domain into running behavior: the search
// orchestrator, the background embedding worker and the duplicate probe.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/praxishq/praxis/domain/record"
	"github.com/praxishq/praxis/domain/search"
	"github.com/praxishq/praxis/internal/config"
)

// unifiedBuffer is the extra per-kind headroom fetched before merging, so
// post-filters and pagination don't starve the merged list.
const unifiedBuffer = 50

// Soft quality thresholds per provider. A top score below these adds a
// warning to the unified response.
const (
	softThresholdVector = 0.50
	softThresholdText   = 0.35
)

// fallbackHint is attached to results served by the text provider after
// the primary failed.
const fallbackHint = "primary search provider failed; results from text matching"

// RecordGetter loads single records for post-filtering.
type RecordGetter interface {
	Get(ctx context.Context, id string, kind record.Kind) (record.Record, error)
}

// Filters are the unified search post-filters, matched exactly with AND
// semantics.
type Filters struct {
	Author  string
	Section string
}

// UnifiedResponse is the merged multi-kind search result.
type UnifiedResponse struct {
	Results  []search.Result
	Total    int
	Degraded bool
	Provider search.ProviderName
	Warnings []string
}

// Orchestrator routes searches to a primary provider with bounded retries
// and falls back to the text provider when the primary is exhausted.
type Orchestrator struct {
	providers map[search.ProviderName]search.Provider
	primary   search.ProviderName
	records   RecordGetter
	cfg       config.SearchConfig
	logger    *slog.Logger
}

// NewOrchestrator creates an Orchestrator. The text provider is always
// registered; vector may be nil. When the config names no primary, the
// vector provider is preferred if available.
func NewOrchestrator(
	ctx context.Context,
	vector search.Provider,
	text search.Provider,
	records RecordGetter,
	cfg config.SearchConfig,
	logger *slog.Logger,
) *Orchestrator {
	providers := map[search.ProviderName]search.Provider{
		search.ProviderText: text,
	}
	if vector != nil {
		providers[search.ProviderVector] = vector
	}

	primary := search.ProviderText
	switch cfg.Primary() {
	case config.PrimaryVector:
		primary = search.ProviderVector
	case config.PrimaryText:
		primary = search.ProviderText
	default:
		if vector != nil && vector.Available(ctx) {
			primary = search.ProviderVector
		}
	}
	if _, ok := providers[primary]; !ok {
		primary = search.ProviderText
	}

	logger.Info("search orchestrator ready",
		"primary", string(primary),
		"fallback_enabled", cfg.FallbackEnabled(),
		"max_retries", cfg.MaxRetries())

	return &Orchestrator{
		providers: providers,
		primary:   primary,
		records:   records,
		cfg:       cfg,
		logger:    logger,
	}
}

// Primary returns the primary provider's name.
func (o *Orchestrator) Primary() search.ProviderName { return o.primary }

// Search resolves a single-type query: the primary provider with retries,
// then one text fallback. Fallback results are marked degraded.
func (o *Orchestrator) Search(ctx context.Context, query string, opts search.Options) ([]search.Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: %w", search.ErrValidation, search.ErrEmptyQuery)
	}
	results, _, err := o.dispatch(ctx, func(p search.Provider) ([]search.Result, error) {
		return p.Search(ctx, query, opts)
	})
	return results, err
}

// FindDuplicates routes a duplicate request through the same
// retry-then-fallback policy as Search.
func (o *Orchestrator) FindDuplicates(ctx context.Context, req search.DuplicateRequest) ([]search.Result, error) {
	results, _, err := o.dispatch(ctx, func(p search.Provider) ([]search.Result, error) {
		return p.FindDuplicates(ctx, req)
	})
	return results, err
}

// dispatch runs the retry-then-fallback policy. The second return value
// reports whether the text fallback served the call, which holds even
// when the fallback found nothing.
func (o *Orchestrator) dispatch(ctx context.Context, call func(search.Provider) ([]search.Result, error)) ([]search.Result, bool, error) {
	primary := o.providers[o.primary]

	var lastErr error
	attempts := int(o.cfg.MaxRetries()) + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		results, err := call(primary)
		if err == nil {
			return results, false, nil
		}
		if errors.Is(err, search.ErrValidation) {
			return nil, false, err
		}
		lastErr = err
		if errors.Is(err, search.ErrUnavailable) {
			// The provider cannot serve at all; retrying is pointless.
			break
		}
		o.logger.Warn("search provider failed",
			"provider", string(o.primary),
			"attempt", attempt+1,
			"error", err)
	}

	if !o.cfg.FallbackEnabled() || o.primary == search.ProviderText {
		return nil, false, fmt.Errorf("%w: %w", search.ErrOrchestrator, lastErr)
	}

	o.logger.Warn("falling back to text provider", "error", lastErr)
	results, err := call(o.providers[search.ProviderText])
	if err != nil {
		return nil, false, fmt.Errorf("%w: fallback also failed: %w", search.ErrOrchestrator, err)
	}
	for i := range results {
		results[i] = results[i].WithDegraded(fallbackHint)
	}
	return results, true, nil
}

// UnifiedSearch merges per-kind searches into one ranked, filtered,
// paginated response.
func (o *Orchestrator) UnifiedSearch(
	ctx context.Context,
	query string,
	kinds []record.Kind,
	category string,
	limit, offset int,
	minScore *float64,
	filters Filters,
) (UnifiedResponse, error) {
	if strings.TrimSpace(query) == "" {
		return UnifiedResponse{}, fmt.Errorf("%w: %w", search.ErrValidation, search.ErrEmptyQuery)
	}
	if limit <= 0 {
		limit = config.DefaultSearchLimit
	}
	if offset < 0 {
		offset = 0
	}
	if len(kinds) == 0 {
		kinds = []record.Kind{record.KindExperience, record.KindSkill}
	}

	perKind := limit + offset + unifiedBuffer
	var merged []search.Result
	degraded := false
	for _, kind := range kinds {
		results, fellBack, err := o.dispatch(ctx, func(p search.Provider) ([]search.Result, error) {
			return p.Search(ctx, query, search.Options{
				Kind:     &kind,
				Category: category,
				TopK:     perKind,
			})
		})
		if err != nil {
			return UnifiedResponse{}, err
		}
		if fellBack {
			degraded = true
		}
		for _, r := range results {
			if r.Degraded() {
				degraded = true
			}
			merged = append(merged, r)
		}
	}

	merged, err := o.applyFilters(ctx, merged, filters)
	if err != nil {
		return UnifiedResponse{}, err
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Score() != merged[j].Score() {
			return merged[i].Score() > merged[j].Score()
		}
		return merged[i].RecordID() < merged[j].RecordID()
	})
	for i := range merged {
		merged[i] = merged[i].WithRank(i)
	}

	var warnings []string
	if minScore != nil {
		kept := merged[:0]
		for _, r := range merged {
			if r.Score() >= *minScore {
				kept = append(kept, r)
			}
		}
		if len(kept) < len(merged) {
			warnings = append(warnings, fmt.Sprintf("min_score=%0.2f dropped %d results", *minScore, len(merged)-len(kept)))
		}
		merged = kept
	}

	if len(merged) > 0 {
		top := merged[0]
		threshold := softThresholdVector
		if top.Provider() == search.ProviderText {
			threshold = softThresholdText
		}
		if top.Score() < threshold {
			warnings = append(warnings, "low_confidence=true")
		}
	}

	total := len(merged)
	page := paginate(merged, offset, limit)

	return UnifiedResponse{
		Results:  page,
		Total:    total,
		Degraded: degraded,
		Provider: o.primary,
		Warnings: warnings,
	}, nil
}

// RebuildIndex rebuilds the derived state of every registered provider.
func (o *Orchestrator) RebuildIndex(ctx context.Context) error {
	for name, provider := range o.providers {
		if err := provider.RebuildIndex(ctx); err != nil {
			return fmt.Errorf("rebuild %s index: %w", name, err)
		}
	}
	return nil
}

// applyFilters drops results whose record does not match the author and
// section filters exactly.
func (o *Orchestrator) applyFilters(ctx context.Context, results []search.Result, filters Filters) ([]search.Result, error) {
	if filters.Author == "" && filters.Section == "" {
		return results, nil
	}

	kept := results[:0]
	for _, r := range results {
		rec, err := o.records.Get(ctx, r.RecordID(), r.Kind())
		if errors.Is(err, record.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: load record for filters: %v", search.ErrProvider, err)
		}
		if filters.Author != "" && rec.Author() != filters.Author {
			continue
		}
		if filters.Section != "" && rec.Section() != filters.Section {
			continue
		}
		kept = append(kept, r)
	}
	return kept, nil
}

func paginate(results []search.Result, offset, limit int) []search.Result {
	if offset >= len(results) {
		return []search.Result{}
	}
	end := offset + limit
	if end > len(results) {
		end = len(results)
	}
	return results[offset:end]
}
