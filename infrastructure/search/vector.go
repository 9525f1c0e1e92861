// Package search implements the two search providers: semantic search over
// the vector index and substring matching over the record store.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/praxishq/praxis/domain/record"
	"github.com/praxishq/praxis/domain/search"
	"github.com/praxishq/praxis/infrastructure/index"
	"github.com/praxishq/praxis/internal/config"
)

// rerankTimeoutHint is attached to results returned without a completed
// rerank because the caller's deadline expired.
const rerankTimeoutHint = "rerank skipped: search deadline expired; results ordered by vector similarity only"

// VectorProvider resolves queries through the embedding model, the vector
// index and an optional reranker.
type VectorProvider struct {
	embedder search.Embedder
	reranker search.Reranker
	manager  *index.Manager
	records  *recordLoader
	store    search.EmbeddingStore
	cfg      config.SearchConfig
	logger   *slog.Logger
}

// RecordGetter loads single records for result hydration.
type RecordGetter interface {
	Get(ctx context.Context, id string, kind record.Kind) (record.Record, error)
}

// recordLoader wraps a RecordGetter, dropping candidates that must not
// surface: records that have disappeared (stale index entries) and
// records whose embedding failed, whose live index entry may predate the
// failure.
type recordLoader struct {
	store RecordGetter
}

func (l *recordLoader) load(ctx context.Context, id string, kind record.Kind) (record.Record, bool, error) {
	rec, err := l.store.Get(ctx, id, kind)
	if errors.Is(err, record.ErrNotFound) {
		return record.Record{}, false, nil
	}
	if err != nil {
		return record.Record{}, false, err
	}
	if rec.EmbeddingStatus() == record.StatusFailed {
		return record.Record{}, false, nil
	}
	return rec, true, nil
}

// NewVectorProvider creates a VectorProvider. The reranker may be nil.
func NewVectorProvider(
	embedder search.Embedder,
	reranker search.Reranker,
	manager *index.Manager,
	records RecordGetter,
	store search.EmbeddingStore,
	cfg config.SearchConfig,
	logger *slog.Logger,
) *VectorProvider {
	return &VectorProvider{
		embedder: embedder,
		reranker: reranker,
		manager:  manager,
		records:  &recordLoader{store: records},
		store:    store,
		cfg:      cfg,
		logger:   logger,
	}
}

// Name returns the provider's registry key.
func (p *VectorProvider) Name() search.ProviderName { return search.ProviderVector }

// Available reports whether the provider can serve queries: an embedder is
// configured and the index is in a valid state.
func (p *VectorProvider) Available(_ context.Context) bool {
	return p.embedder != nil && p.manager.Valid()
}

// candidate pairs an index hit with its hydrated record.
type candidate struct {
	id    string
	kind  record.Kind
	score float64
	rec   record.Record
}

// Search runs the semantic pipeline: parse, encode the phrase, recall from
// the index, dedup, rerank against the task context, filter by category,
// and truncate to top-k.
func (p *VectorProvider) Search(ctx context.Context, query string, opts search.Options) ([]search.Result, error) {
	q := search.ParseQuery(query)
	if q.Phrase() == "" {
		return nil, fmt.Errorf("%w: %w", search.ErrValidation, search.ErrEmptyQuery)
	}
	if !p.Available(ctx) {
		return nil, fmt.Errorf("%w: vector provider has no embedder or valid index", search.ErrUnavailable)
	}

	candidates, err := p.recall(ctx, q.Phrase(), opts.Kind, nil)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []search.Result{}, nil
	}

	candidates, degradedHint, err := p.rerank(ctx, search.NewRerankQuery(q.Phrase(), q.RerankContext()), candidates)
	if err != nil {
		return nil, err
	}

	candidates = filterCategory(candidates, opts.Category)
	candidates = dedupCandidates(candidates)

	return toResults(candidates, opts.TopK, search.ReasonSemanticMatch, degradedHint), nil
}

// FindDuplicates runs the semantic pipeline against a record about to be
// written. Candidates below the request threshold are dropped before the
// rerank so the reranker can never rescue a below-threshold candidate.
func (p *VectorProvider) FindDuplicates(ctx context.Context, req search.DuplicateRequest) ([]search.Result, error) {
	if !p.Available(ctx) {
		return nil, fmt.Errorf("%w: vector provider has no embedder or valid index", search.ErrUnavailable)
	}

	text := req.Body
	if req.Kind == record.KindExperience {
		text = strings.TrimSpace(req.Title + "\n\n" + req.Body)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: %w", search.ErrValidation, search.ErrEmptyQuery)
	}

	exclude := func(id string) bool { return req.ExcludeID != "" && id == req.ExcludeID }
	candidates, err := p.recall(ctx, text, &req.Kind, exclude)
	if err != nil {
		return nil, err
	}

	kept := candidates[:0]
	for _, c := range candidates {
		if c.score >= req.Threshold {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return []search.Result{}, nil
	}

	kept, degradedHint, err := p.rerank(ctx, search.NewRerankQuery(req.Title, text), kept)
	if err != nil {
		return nil, err
	}

	kept = filterCategory(kept, req.Category)
	kept = dedupCandidates(kept)

	return toResults(kept, len(kept), search.ReasonSemanticDuplicate, degradedHint), nil
}

// RebuildIndex reconstructs the index from the stored embeddings of the
// current model version.
func (p *VectorProvider) RebuildIndex(ctx context.Context) error {
	embeddings, err := p.store.List(ctx, p.embedder.ModelVersion())
	if err != nil {
		return fmt.Errorf("%w: list embeddings: %v", search.ErrProvider, err)
	}
	if err := p.manager.RebuildFromEmbeddings(ctx, embeddings); err != nil {
		return fmt.Errorf("%w: %v", search.ErrProvider, err)
	}
	return nil
}

// recall encodes the text, searches the index with the configured breadth,
// projects cosine scores into [0, 1], dedups by record, truncates to the
// rerank fan-in and hydrates the surviving records.
func (p *VectorProvider) recall(ctx context.Context, text string, kind *record.Kind, exclude func(string) bool) ([]candidate, error) {
	vector, err := p.embedder.EncodeSingle(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: encode query: %v", search.ErrProvider, err)
	}

	hits, err := p.manager.Search(ctx, vector, kind, p.cfg.TopKRetrieve())
	if errors.Is(err, search.ErrUnavailable) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: index search: %v", search.ErrProvider, err)
	}

	best := make(map[index.Key]float64, len(hits))
	order := make([]index.Key, 0, len(hits))
	for _, hit := range hits {
		if !hit.Key.Kind.Valid() {
			continue
		}
		if exclude != nil && exclude(hit.Key.RecordID) {
			continue
		}
		score := projectScore(hit.Score)
		if prev, seen := best[hit.Key]; seen {
			if score > prev {
				best[hit.Key] = score
			}
			continue
		}
		best[hit.Key] = score
		order = append(order, hit.Key)
	}

	sort.SliceStable(order, func(i, j int) bool {
		if best[order[i]] != best[order[j]] {
			return best[order[i]] > best[order[j]]
		}
		return order[i].RecordID < order[j].RecordID
	})
	if len(order) > p.cfg.TopKRerank() {
		order = order[:p.cfg.TopKRerank()]
	}

	candidates := make([]candidate, 0, len(order))
	for _, key := range order {
		rec, ok, err := p.records.load(ctx, key.RecordID, key.Kind)
		if err != nil {
			return nil, fmt.Errorf("%w: load record: %v", search.ErrProvider, err)
		}
		if !ok {
			continue
		}
		candidates = append(candidates, candidate{
			id:    key.RecordID,
			kind:  key.Kind,
			score: best[key],
			rec:   rec,
		})
	}
	return candidates, nil
}

// rerank replaces candidate scores with the reranker's yes-probability and
// re-sorts. A missing reranker or a single candidate leaves scores alone.
// When the caller's deadline expires mid-rerank, the pre-rerank candidates
// are returned with a degraded hint instead of an error.
func (p *VectorProvider) rerank(ctx context.Context, query search.RerankQuery, candidates []candidate) ([]candidate, string, error) {
	if p.reranker == nil || len(candidates) <= 1 {
		return candidates, "", nil
	}

	documents := make([]string, len(candidates))
	for i, c := range candidates {
		documents[i] = c.rec.RerankDocument()
	}

	scores, err := p.reranker.Rerank(ctx, query, documents)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			p.logger.Warn("rerank aborted by deadline, returning vector-ordered results")
			return candidates, rerankTimeoutHint, nil
		}
		return nil, "", fmt.Errorf("%w: rerank: %v", search.ErrProvider, err)
	}
	if len(scores) != len(candidates) {
		return nil, "", fmt.Errorf("%w: rerank returned %d scores for %d documents",
			search.ErrProvider, len(scores), len(candidates))
	}

	for i := range candidates {
		candidates[i].score = clamp01(scores[i])
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].id < candidates[j].id
	})
	return candidates, "", nil
}

func filterCategory(candidates []candidate, category string) []candidate {
	if category == "" {
		return candidates
	}
	kept := candidates[:0]
	for _, c := range candidates {
		if c.rec.CategoryCode() == category {
			kept = append(kept, c)
		}
	}
	return kept
}

func dedupCandidates(candidates []candidate) []candidate {
	type key struct {
		id   string
		kind record.Kind
	}
	seen := make(map[key]struct{}, len(candidates))
	kept := candidates[:0]
	for _, c := range candidates {
		k := key{id: c.id, kind: c.kind}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		kept = append(kept, c)
	}
	return kept
}

func toResults(candidates []candidate, topK int, reason search.Reason, degradedHint string) []search.Result {
	if topK < len(candidates) {
		candidates = candidates[:topK]
	}
	results := make([]search.Result, 0, len(candidates))
	for i, c := range candidates {
		r := search.NewResult(c.id, c.kind, c.score).
			WithReason(reason).
			WithProvider(search.ProviderVector).
			WithRank(i).
			WithTitle(c.rec.Title()).
			WithSummary(c.rec.Summary())
		if degradedHint != "" {
			r = r.WithDegraded(degradedHint)
		}
		results = append(results, r)
	}
	return results
}

// projectScore maps cosine similarity from [-1, 1] into [0, 1].
func projectScore(s float64) float64 {
	return clamp01((s + 1) / 2)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

var _ search.Provider = (*VectorProvider)(nil)
