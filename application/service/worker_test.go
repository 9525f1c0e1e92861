package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praxishq/praxis/domain/record"
	"github.com/praxishq/praxis/domain/search"
	"github.com/praxishq/praxis/internal/config"
)

// memRecordStore is an in-memory record.Store for worker tests.
type memRecordStore struct {
	mu      sync.Mutex
	records map[string]record.Record
}

func newMemRecordStore(records ...record.Record) *memRecordStore {
	s := &memRecordStore{records: map[string]record.Record{}}
	for _, r := range records {
		s.records[r.ID()] = r
	}
	return s
}

func (s *memRecordStore) Get(_ context.Context, id string, kind record.Kind) (record.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok || r.Kind() != kind {
		return record.Record{}, record.ErrNotFound
	}
	return r, nil
}

func (s *memRecordStore) ListPending(_ context.Context, _ *record.Kind, limit int) ([]record.Record, error) {
	return s.listByStatus(record.StatusPending, limit), nil
}

func (s *memRecordStore) ListFailed(_ context.Context, _ *record.Kind, limit int) ([]record.Record, error) {
	return s.listByStatus(record.StatusFailed, limit), nil
}

func (s *memRecordStore) listByStatus(status record.EmbeddingStatus, limit int) []record.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []record.Record
	for _, r := range s.records {
		if r.EmbeddingStatus() == status {
			out = append(out, r)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func (s *memRecordStore) SetStatus(_ context.Context, id string, _ record.Kind, status record.EmbeddingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return record.ErrNotFound
	}
	s.records[id] = r.WithEmbeddingStatus(status)
	return nil
}

func (s *memRecordStore) status(id string) record.EmbeddingStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[id].EmbeddingStatus()
}

// memEmbeddings collects upserts.
type memEmbeddings struct {
	mu       sync.Mutex
	upserted []search.StoredEmbedding
	failNext bool
}

func (s *memEmbeddings) Upsert(_ context.Context, e search.StoredEmbedding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext {
		s.failNext = false
		return errors.New("upsert failed")
	}
	s.upserted = append(s.upserted, e)
	return nil
}

func (s *memEmbeddings) List(context.Context, string) ([]search.StoredEmbedding, error) {
	return nil, nil
}

func (s *memEmbeddings) DeleteFor(context.Context, string, record.Kind) error { return nil }

func (s *memEmbeddings) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.upserted)
}

// stubEmbedder encodes everything to the same unit vector, optionally
// failing on specific texts.
type stubEmbedder struct {
	failOn map[string]bool
}

func (e *stubEmbedder) Encode(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0, 0}
	}
	return out, nil
}

func (e *stubEmbedder) EncodeSingle(_ context.Context, text string) ([]float32, error) {
	if e.failOn[text] {
		return nil, errors.New("encode failed")
	}
	return []float32{1, 0, 0, 0}, nil
}

func (e *stubEmbedder) ModelVersion() string { return "stub-model" }
func (e *stubEmbedder) Dimension() int       { return 4 }

// memLeases is an in-memory lease store.
type memLeases struct {
	mu     sync.Mutex
	owner  string
	until  time.Time
	denied bool
}

func (s *memLeases) Acquire(_ context.Context, _ string, owner string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.denied {
		return false, nil
	}
	now := time.Now()
	if s.owner != "" && s.owner != owner && s.until.After(now) {
		return false, nil
	}
	s.owner = owner
	s.until = now.Add(ttl)
	return true, nil
}

func (s *memLeases) Release(_ context.Context, _ string, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owner == owner {
		s.owner = ""
	}
	return nil
}

func (s *memLeases) holder() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner
}

// collectingIndex records Add calls.
type collectingIndex struct {
	mu   sync.Mutex
	keys []string
}

func (i *collectingIndex) Add(_ context.Context, recordID string, _ record.Kind, _ []float32) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.keys = append(i.keys, recordID)
	return nil
}

func newTestWorker(records record.Store, embeddings search.EmbeddingStore, embedder search.Embedder, idx IndexWriter, leases LeaseStore) *Worker {
	cfg := config.NewWorkerConfig().
		WithLeaseTTL(time.Minute).
		WithPollInterval(10 * time.Millisecond).
		WithBatchSize(16)
	return NewWorker(records, embeddings, embedder, idx, leases, cfg, slog.Default())
}

func TestWorkerProcessBatch(t *testing.T) {
	ctx := context.Background()
	records := newMemRecordStore(
		record.New("exp-1", record.KindExperience, "A", "body"),
		record.New("sk-1", record.KindSkill, "B", "body"),
	)
	embeddings := &memEmbeddings{}
	idx := &collectingIndex{}
	w := newTestWorker(records, embeddings, &stubEmbedder{}, idx, &memLeases{})

	require.NoError(t, w.ProcessBatch(ctx))

	assert.Equal(t, record.StatusEmbedded, records.status("exp-1"))
	assert.Equal(t, record.StatusEmbedded, records.status("sk-1"))
	assert.Equal(t, 2, embeddings.count())
	assert.Len(t, idx.keys, 2)

	stats := w.Stats()
	assert.Equal(t, 2, stats.TotalProcessed)
	assert.Equal(t, 2, stats.TotalSucceeded)
	assert.Equal(t, 0, stats.TotalFailed)
	assert.Equal(t, 2, stats.LastBatchSize)
}

func TestWorkerEncodeFailureMarksFailed(t *testing.T) {
	ctx := context.Background()
	bad := record.New("exp-bad", record.KindExperience, "Bad", "body")
	records := newMemRecordStore(
		bad,
		record.New("exp-ok", record.KindExperience, "Good", "body"),
	)
	embeddings := &memEmbeddings{}
	embedder := &stubEmbedder{failOn: map[string]bool{bad.EmbeddingText(): true}}
	w := newTestWorker(records, embeddings, embedder, nil, &memLeases{})

	require.NoError(t, w.ProcessBatch(ctx))

	// The failure never blocks the rest of the batch.
	assert.Equal(t, record.StatusFailed, records.status("exp-bad"))
	assert.Equal(t, record.StatusEmbedded, records.status("exp-ok"))
	assert.Equal(t, 1, embeddings.count())

	stats := w.Stats()
	assert.Equal(t, 1, stats.TotalFailed)
	assert.Equal(t, 1, stats.TotalSucceeded)
}

func TestWorkerUpsertFailureMarksFailed(t *testing.T) {
	ctx := context.Background()
	records := newMemRecordStore(record.New("exp-1", record.KindExperience, "A", "body"))
	embeddings := &memEmbeddings{failNext: true}
	w := newTestWorker(records, embeddings, &stubEmbedder{}, nil, &memLeases{})

	require.NoError(t, w.ProcessBatch(ctx))
	assert.Equal(t, record.StatusFailed, records.status("exp-1"))
}

func TestWorkerRetryFailed(t *testing.T) {
	ctx := context.Background()
	failed := record.New("exp-1", record.KindExperience, "A", "body").
		WithEmbeddingStatus(record.StatusFailed)
	records := newMemRecordStore(failed)
	embeddings := &memEmbeddings{}
	w := newTestWorker(records, embeddings, &stubEmbedder{}, nil, &memLeases{})

	// The normal batch skips failed records.
	require.NoError(t, w.ProcessBatch(ctx))
	assert.Equal(t, record.StatusFailed, records.status("exp-1"))

	require.NoError(t, w.RetryFailed(ctx))
	assert.Equal(t, record.StatusEmbedded, records.status("exp-1"))
	assert.Equal(t, 1, w.Stats().TotalRetried)
}

func TestWorkerLeaderElection(t *testing.T) {
	ctx := context.Background()
	leases := &memLeases{}
	records := newMemRecordStore(record.New("exp-1", record.KindExperience, "A", "body"))
	embeddings := &memEmbeddings{}

	leader := newTestWorker(records, embeddings, &stubEmbedder{}, nil, leases)
	follower := newTestWorker(newMemRecordStore(), &memEmbeddings{}, &stubEmbedder{}, nil, leases)

	leader.Start(ctx)
	defer leader.Stop()

	require.Eventually(t, func() bool {
		return leader.Stats().IsLeader
	}, 2*time.Second, 5*time.Millisecond)

	follower.Start(ctx)
	defer follower.Stop()

	// The follower never becomes leader while the lease is held.
	time.Sleep(100 * time.Millisecond)
	assert.False(t, follower.Stats().IsLeader)
	assert.Equal(t, leader.Owner(), leases.holder())

	// The leader processed the pending record.
	require.Eventually(t, func() bool {
		return embeddings.count() == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestWorkerStopReleasesLease(t *testing.T) {
	ctx := context.Background()
	leases := &memLeases{}
	w := newTestWorker(newMemRecordStore(), &memEmbeddings{}, &stubEmbedder{}, nil, leases)

	w.Start(ctx)
	require.Eventually(t, func() bool {
		return w.Stats().IsLeader
	}, 2*time.Second, 5*time.Millisecond)

	w.Stop()
	assert.Empty(t, leases.holder())
	assert.False(t, w.Stats().IsRunning)
}

func TestWorkerPauseKeepsLease(t *testing.T) {
	ctx := context.Background()
	leases := &memLeases{}
	records := newMemRecordStore(record.New("exp-1", record.KindExperience, "A", "body"))
	embeddings := &memEmbeddings{}
	w := newTestWorker(records, embeddings, &stubEmbedder{}, nil, leases)

	w.Pause()
	w.Start(ctx)
	defer w.Stop()

	require.Eventually(t, func() bool {
		return w.Stats().IsLeader
	}, 2*time.Second, 5*time.Millisecond)

	// Paused: the lease is held but no records are claimed.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, w.Owner(), leases.holder())
	assert.Equal(t, 0, embeddings.count())
	assert.True(t, w.Stats().IsPaused)

	w.Resume()
	require.Eventually(t, func() bool {
		return embeddings.count() == 1
	}, 2*time.Second, 5*time.Millisecond)
}
