package search

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praxishq/praxis/domain/record"
	"github.com/praxishq/praxis/domain/search"
)

// fakeTextStore answers substring queries from a fixed record list.
type fakeTextStore struct {
	records   []record.Record
	lastQuery string
}

func (s *fakeTextStore) MatchText(_ context.Context, query string, kind *record.Kind, category string, _ int) ([]record.Record, error) {
	s.lastQuery = query
	var out []record.Record
	for _, r := range s.records {
		if kind != nil && r.Kind() != *kind {
			continue
		}
		if category != "" && r.CategoryCode() != category {
			continue
		}
		haystack := strings.ToLower(r.Title() + "\n" + r.Body() + "\n" + r.Summary())
		for _, term := range strings.Fields(strings.ToLower(query)) {
			if strings.Contains(haystack, term) {
				out = append(out, r)
				break
			}
		}
	}
	return out, nil
}

func (s *fakeTextStore) FindByTitle(_ context.Context, title string, kind record.Kind, category, excludeID string) ([]record.Record, error) {
	var out []record.Record
	for _, r := range s.records {
		if r.Kind() != kind || r.ID() == excludeID {
			continue
		}
		if category != "" && r.CategoryCode() != category {
			continue
		}
		if strings.Contains(strings.ToLower(r.Title()), strings.ToLower(title)) {
			out = append(out, r)
		}
	}
	return out, nil
}

func newTextFixture() (*TextProvider, *fakeTextStore) {
	store := &fakeTextStore{records: []record.Record{
		record.New("exp-1", record.KindExperience, "OAuth token refresh", "Rotate before expiry."),
		record.New("sk-1", record.KindSkill, "Token budgets", "Estimate context windows."),
	}}
	return NewTextProvider(store), store
}

func TestTextSearchAlwaysDegraded(t *testing.T) {
	ctx := context.Background()
	provider, _ := newTextFixture()

	results, err := provider.Search(ctx, "token", search.Options{TopK: 10})
	require.NoError(t, err)
	require.Len(t, results, 2)

	for i, r := range results {
		assert.True(t, r.Degraded())
		assert.Equal(t, textSearchHint, r.Hint())
		assert.Equal(t, search.ReasonTextMatch, r.Reason())
		assert.Equal(t, search.ProviderText, r.Provider())
		assert.Equal(t, i, r.Rank())
	}
}

func TestTextSearchScores(t *testing.T) {
	ctx := context.Background()
	provider, _ := newTextFixture()

	results, err := provider.Search(ctx, "token refresh", search.Options{TopK: 10})
	require.NoError(t, err)
	require.Len(t, results, 2)

	byID := map[string]float64{}
	for _, r := range results {
		byID[r.RecordID()] = r.Score()
	}
	// exp-1 contains the whole phrase; sk-1 only the token.
	assert.InDelta(t, textScoreFullMatch, byID["exp-1"], 1e-9)
	assert.InDelta(t, textScoreTokenMatch, byID["sk-1"], 1e-9)
}

func TestTextSearchParsesStructuredQueries(t *testing.T) {
	ctx := context.Background()
	provider, store := newTextFixture()

	_, err := provider.Search(ctx, "[SEARCH] token refresh [TASK] rotate credentials safely", search.Options{TopK: 10})
	require.NoError(t, err)
	assert.Equal(t, "token refresh", store.lastQuery)
}

func TestTextSearchEmptyQuery(t *testing.T) {
	provider, _ := newTextFixture()

	_, err := provider.Search(context.Background(), "  ", search.Options{TopK: 10})
	require.ErrorIs(t, err, search.ErrValidation)
}

func TestTextSearchTopK(t *testing.T) {
	ctx := context.Background()
	provider, _ := newTextFixture()

	results, err := provider.Search(ctx, "token", search.Options{TopK: 1})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestTextFindDuplicatesExactBeatsPartial(t *testing.T) {
	ctx := context.Background()
	store := &fakeTextStore{records: []record.Record{
		record.New("exp-1", record.KindExperience, "Deploy rollback", "steps"),
		record.New("exp-2", record.KindExperience, "Deploy rollback runbook", "steps"),
	}}
	provider := NewTextProvider(store)

	results, err := provider.FindDuplicates(ctx, search.DuplicateRequest{
		Title: "deploy ROLLBACK",
		Kind:  record.KindExperience,
	})
	require.NoError(t, err)

	// The exact (case-insensitive) title wins with 1.0 and suppresses the
	// partial match entirely.
	require.Len(t, results, 1)
	assert.Equal(t, "exp-1", results[0].RecordID())
	assert.InDelta(t, textScoreExactTitle, results[0].Score(), 1e-9)
	assert.Equal(t, search.ReasonTextDuplicate, results[0].Reason())
	assert.False(t, results[0].Degraded())
}

func TestTextFindDuplicatesPartialOnly(t *testing.T) {
	ctx := context.Background()
	store := &fakeTextStore{records: []record.Record{
		record.New("exp-2", record.KindExperience, "Deploy rollback runbook", "steps"),
	}}
	provider := NewTextProvider(store)

	results, err := provider.FindDuplicates(ctx, search.DuplicateRequest{
		Title: "Deploy rollback",
		Kind:  record.KindExperience,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, textScoreTitlePart, results[0].Score(), 1e-9)
}

func TestTextFindDuplicatesEmptyTitle(t *testing.T) {
	provider, _ := newTextFixture()

	results, err := provider.FindDuplicates(context.Background(), search.DuplicateRequest{
		Kind: record.KindExperience,
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}
