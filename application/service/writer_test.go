package service

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praxishq/praxis/domain/record"
	"github.com/praxishq/praxis/domain/search"
	"github.com/praxishq/praxis/internal/config"
)

// memWriteStore is an in-memory RecordWriteStore.
type memWriteStore struct {
	mu      sync.Mutex
	records map[string]record.Record
}

func newMemWriteStore() *memWriteStore {
	return &memWriteStore{records: map[string]record.Record{}}
}

func (s *memWriteStore) Create(_ context.Context, rec record.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID()] = rec
	return nil
}

func (s *memWriteStore) Update(_ context.Context, rec record.Record) (record.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.ID()]; !ok {
		return record.Record{}, record.ErrNotFound
	}
	s.records[rec.ID()] = rec
	return rec, nil
}

func (s *memWriteStore) Delete(_ context.Context, id string, _ record.Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return record.ErrNotFound
	}
	delete(s.records, id)
	return nil
}

func (s *memWriteStore) Get(_ context.Context, id string, kind record.Kind) (record.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok || r.Kind() != kind {
		return record.Record{}, record.ErrNotFound
	}
	return r, nil
}

// deletions records EmbeddingDeleter and IndexTombstoner calls.
type deletions struct {
	embeddings []string
	tombstones []string
}

func (d *deletions) DeleteFor(_ context.Context, recordID string, _ record.Kind) error {
	d.embeddings = append(d.embeddings, recordID)
	return nil
}

func (d *deletions) Tombstone(_ context.Context, recordID string, _ record.Kind) error {
	d.tombstones = append(d.tombstones, recordID)
	return nil
}

func newTestWriter(store *memWriteStore, dels *deletions, duplicates []search.Result) *Writer {
	vector := &scriptedProvider{
		name:      search.ProviderVector,
		available: true,
		results:   duplicates,
	}
	text := &scriptedProvider{name: search.ProviderText, available: true}
	cfg := config.NewSearchConfig()
	probe := NewDuplicateProbe(newTestOrchestrator(vector, text, nil, cfg), cfg, slog.Default())
	return NewWriter(store, dels, dels, probe, slog.Default())
}

func TestWriterCreate(t *testing.T) {
	ctx := context.Background()
	store := newMemWriteStore()
	w := newTestWriter(store, &deletions{}, nil)

	rec := record.New("exp-1", record.KindExperience, "Title", "Body")
	probe, err := w.Create(ctx, rec)
	require.NoError(t, err)
	assert.Empty(t, probe.Candidates)

	stored, err := store.Get(ctx, "exp-1", record.KindExperience)
	require.NoError(t, err)
	assert.Equal(t, record.StatusPending, stored.EmbeddingStatus())
}

func TestWriterCreateReportsDuplicates(t *testing.T) {
	ctx := context.Background()
	store := newMemWriteStore()
	w := newTestWriter(store, &deletions{}, []search.Result{
		result("exp-0", record.KindExperience, 0.92, search.ProviderVector),
	})

	probe, err := w.Create(ctx, record.New("exp-1", record.KindExperience, "Title", "Body"))
	require.NoError(t, err)

	// High-scoring candidates recommend review but never block the write.
	require.Len(t, probe.Candidates, 1)
	assert.Equal(t, RecommendReviewFirst, probe.Recommendation)
	_, err = store.Get(ctx, "exp-1", record.KindExperience)
	assert.NoError(t, err)
}

func TestWriterCreateValidation(t *testing.T) {
	ctx := context.Background()
	w := newTestWriter(newMemWriteStore(), &deletions{}, nil)

	cases := []record.Record{
		record.New("", record.KindExperience, "Title", "Body"),
		record.New("exp-1", "bogus", "Title", "Body"),
		record.New("exp-1", record.KindExperience, "", "Body"),
		record.New("exp-1", record.KindExperience, "Title", ""),
	}
	for _, rec := range cases {
		_, err := w.Create(ctx, rec)
		assert.ErrorIs(t, err, search.ErrValidation)
	}
}

func TestWriterUpdate(t *testing.T) {
	ctx := context.Background()
	store := newMemWriteStore()
	w := newTestWriter(store, &deletions{}, nil)

	require.NoError(t, store.Create(ctx, record.New("exp-1", record.KindExperience, "Title", "Body")))

	updated, _, err := w.Update(ctx, record.New("exp-1", record.KindExperience, "Title", "New body"))
	require.NoError(t, err)
	assert.Equal(t, "New body", updated.Body())

	_, _, err = w.Update(ctx, record.New("missing", record.KindExperience, "Title", "Body"))
	assert.ErrorIs(t, err, record.ErrNotFound)
}

func TestWriterDeleteCleansUp(t *testing.T) {
	ctx := context.Background()
	store := newMemWriteStore()
	dels := &deletions{}
	w := newTestWriter(store, dels, nil)

	require.NoError(t, store.Create(ctx, record.New("exp-1", record.KindExperience, "Title", "Body")))
	require.NoError(t, w.Delete(ctx, "exp-1", record.KindExperience))

	assert.Equal(t, []string{"exp-1"}, dels.embeddings)
	assert.Equal(t, []string{"exp-1"}, dels.tombstones)
	_, err := store.Get(ctx, "exp-1", record.KindExperience)
	assert.ErrorIs(t, err, record.ErrNotFound)
}

func TestWriterDeleteNotFound(t *testing.T) {
	ctx := context.Background()
	dels := &deletions{}
	w := newTestWriter(newMemWriteStore(), dels, nil)

	err := w.Delete(ctx, "missing", record.KindExperience)
	assert.ErrorIs(t, err, record.ErrNotFound)
	assert.Empty(t, dels.embeddings)
}
