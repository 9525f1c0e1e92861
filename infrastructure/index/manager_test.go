package index

import (
	"context"
	"log/slog"
	"math"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praxishq/praxis/domain/record"
	"github.com/praxishq/praxis/domain/search"
	"github.com/praxishq/praxis/internal/config"
)

// memMappings is an in-memory MappingStore for manager tests.
type memMappings struct {
	mu       sync.Mutex
	mappings []Mapping
}

func (s *memMappings) Append(_ context.Context, m Mapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mappings = append(s.mappings, m)
	return nil
}

func (s *memMappings) MarkDeleted(_ context.Context, internalIDs []uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.mappings {
		for _, id := range internalIDs {
			if s.mappings[i].InternalID == id {
				s.mappings[i].Deleted = true
			}
		}
	}
	return nil
}

func (s *memMappings) List(_ context.Context, modelVersion string) ([]Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Mapping
	for _, m := range s.mappings {
		if m.ModelVersion == modelVersion {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memMappings) Replace(_ context.Context, modelVersion string, mappings []Mapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.mappings[:0]
	for _, m := range s.mappings {
		if m.ModelVersion != modelVersion {
			kept = append(kept, m)
		}
	}
	s.mappings = append(kept, mappings...)
	return nil
}

func testManager(t *testing.T, cfg config.IndexConfig) (*Manager, *memMappings) {
	t.Helper()
	if cfg.SnapshotPath() == "" {
		cfg = cfg.WithSnapshotPath(filepath.Join(t.TempDir(), "index.snapshot"))
	}
	mappings := &memMappings{}
	return NewManager(cfg, "test-model", mappings, slog.Default()), mappings
}

// unit returns a unit vector of dimension 4 pointing mostly along axis.
func unit(axis int) []float32 {
	v := make([]float32, 4)
	v[axis] = 1
	return v
}

// blend returns the normalized mix of two axes, weighted w toward a.
func blend(a, b int, w float64) []float32 {
	v := make([]float32, 4)
	v[a] = float32(w)
	v[b] = float32(math.Sqrt(1 - w*w))
	return v
}

func TestManagerAddAndSearch(t *testing.T) {
	ctx := context.Background()
	m, _ := testManager(t, config.NewIndexConfig())

	require.NoError(t, m.Add(ctx, Key{"exp-1", record.KindExperience}, unit(0)))
	require.NoError(t, m.Add(ctx, Key{"exp-2", record.KindExperience}, blend(0, 1, 0.8)))
	require.NoError(t, m.Add(ctx, Key{"sk-1", record.KindSkill}, unit(1)))

	hits, err := m.Search(ctx, unit(0), nil, 10)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "exp-1", hits[0].Key.RecordID)
	assert.Equal(t, "exp-2", hits[1].Key.RecordID)
	assert.Equal(t, "sk-1", hits[2].Key.RecordID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.InDelta(t, 0.8, hits[1].Score, 1e-6)
	assert.InDelta(t, 0.0, hits[2].Score, 1e-6)
}

func TestManagerSearchKindFilter(t *testing.T) {
	ctx := context.Background()
	m, _ := testManager(t, config.NewIndexConfig())

	require.NoError(t, m.Add(ctx, Key{"exp-1", record.KindExperience}, unit(0)))
	require.NoError(t, m.Add(ctx, Key{"sk-1", record.KindSkill}, unit(0)))

	kind := record.KindSkill
	hits, err := m.Search(ctx, unit(0), &kind, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "sk-1", hits[0].Key.RecordID)
}

func TestManagerAddReplacesLiveEntry(t *testing.T) {
	ctx := context.Background()
	m, mappings := testManager(t, config.NewIndexConfig())
	key := Key{"exp-1", record.KindExperience}

	require.NoError(t, m.Add(ctx, key, unit(0)))
	require.NoError(t, m.Add(ctx, key, unit(1)))

	assert.Equal(t, 1, m.Live())
	assert.Equal(t, 2, m.Size())

	// The old entry no longer matches; only the new vector is live.
	hits, err := m.Search(ctx, unit(0), nil, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 0.0, hits[0].Score, 1e-6)

	stored, err := mappings.List(ctx, "test-model")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.True(t, stored[0].Deleted)
	assert.False(t, stored[1].Deleted)
}

func TestManagerTombstone(t *testing.T) {
	ctx := context.Background()
	m, _ := testManager(t, config.NewIndexConfig())
	key := Key{"exp-1", record.KindExperience}

	require.NoError(t, m.Add(ctx, key, unit(0)))
	require.NoError(t, m.Tombstone(ctx, key))

	hits, err := m.Search(ctx, unit(0), nil, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.Equal(t, 0, m.Live())

	// Tombstoning an unknown or already-dead key is a no-op.
	require.NoError(t, m.Tombstone(ctx, key))
	require.NoError(t, m.Tombstone(ctx, Key{"missing", record.KindSkill}))
}

func TestManagerAddRejectsNonUnitVector(t *testing.T) {
	ctx := context.Background()
	m, _ := testManager(t, config.NewIndexConfig())

	err := m.Add(ctx, Key{"exp-1", record.KindExperience}, []float32{2, 0, 0, 0})
	require.ErrorIs(t, err, search.ErrIndex)

	err = m.Add(ctx, Key{"exp-1", record.KindExperience}, nil)
	require.ErrorIs(t, err, search.ErrIndex)

	err = m.Add(ctx, Key{"exp-1", "bogus"}, unit(0))
	require.ErrorIs(t, err, search.ErrIndex)
}

func TestManagerSearchDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	m, _ := testManager(t, config.NewIndexConfig())
	require.NoError(t, m.Add(ctx, Key{"exp-1", record.KindExperience}, unit(0)))

	_, err := m.Search(ctx, []float32{1, 0}, nil, 10)
	require.ErrorIs(t, err, search.ErrIndex)
}

func TestManagerSaveLoadRoundtrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.snapshot")
	cfg := config.NewIndexConfig().WithSnapshotPath(path)

	m, _ := testManager(t, cfg)
	require.NoError(t, m.Add(ctx, Key{"exp-1", record.KindExperience}, unit(0)))
	require.NoError(t, m.Add(ctx, Key{"sk-1", record.KindSkill}, unit(1)))
	require.NoError(t, m.Tombstone(ctx, Key{"sk-1", record.KindSkill}))
	require.NoError(t, m.Save(ctx))

	restored := NewManager(cfg, "test-model", &memMappings{}, slog.Default())
	require.NoError(t, restored.Load(ctx))

	assert.True(t, restored.Valid())
	assert.Equal(t, 1, restored.Live())
	hits, err := restored.Search(ctx, unit(0), nil, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "exp-1", hits[0].Key.RecordID)
}

func TestManagerLoadMissingSnapshot(t *testing.T) {
	ctx := context.Background()
	m, _ := testManager(t, config.NewIndexConfig())

	require.NoError(t, m.Load(ctx))
	assert.True(t, m.Valid())
	assert.Equal(t, 0, m.Size())
}

func TestManagerLoadModelMismatchThenRebuild(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.snapshot")
	cfg := config.NewIndexConfig().WithSnapshotPath(path)

	old := NewManager(cfg, "old-model", &memMappings{}, slog.Default())
	require.NoError(t, old.Add(ctx, Key{"exp-1", record.KindExperience}, unit(0)))
	require.NoError(t, old.Save(ctx))

	m := NewManager(cfg, "new-model", &memMappings{}, slog.Default())
	err := m.Load(ctx)
	require.ErrorIs(t, err, search.ErrIndex)
	assert.False(t, m.Valid())

	_, err = m.Search(ctx, unit(0), nil, 10)
	require.ErrorIs(t, err, search.ErrUnavailable)

	// Rebuild from stored embeddings recovers the index. Embeddings of
	// other model versions are skipped.
	embeddings := []search.StoredEmbedding{
		search.NewStoredEmbedding("exp-1", record.KindExperience, "new-model", unit(0)),
		search.NewStoredEmbedding("exp-2", record.KindExperience, "old-model", unit(1)),
	}
	require.NoError(t, m.RebuildFromEmbeddings(ctx, embeddings))

	assert.True(t, m.Valid())
	assert.Equal(t, 1, m.Live())
	hits, err := m.Search(ctx, unit(0), nil, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "exp-1", hits[0].Key.RecordID)
}

func TestManagerCompactsOnSave(t *testing.T) {
	ctx := context.Background()
	cfg := config.NewIndexConfig().
		WithRebuildThreshold(2).
		WithSavePolicy(config.SaveOnShutdown)
	m, _ := testManager(t, cfg)

	require.NoError(t, m.Add(ctx, Key{"exp-1", record.KindExperience}, unit(0)))
	require.NoError(t, m.Add(ctx, Key{"exp-2", record.KindExperience}, unit(1)))
	require.NoError(t, m.Add(ctx, Key{"exp-3", record.KindExperience}, unit(2)))
	require.NoError(t, m.Tombstone(ctx, Key{"exp-1", record.KindExperience}))
	require.NoError(t, m.Tombstone(ctx, Key{"exp-2", record.KindExperience}))

	assert.Equal(t, 3, m.Size())
	require.NoError(t, m.Save(ctx))
	assert.Equal(t, 1, m.Size())
	assert.Equal(t, 1, m.Live())
}

func TestManagerSearchTopK(t *testing.T) {
	ctx := context.Background()
	m, _ := testManager(t, config.NewIndexConfig())

	require.NoError(t, m.Add(ctx, Key{"a", record.KindExperience}, unit(0)))
	require.NoError(t, m.Add(ctx, Key{"b", record.KindExperience}, blend(0, 1, 0.9)))
	require.NoError(t, m.Add(ctx, Key{"c", record.KindExperience}, blend(0, 1, 0.5)))

	hits, err := m.Search(ctx, unit(0), nil, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].Key.RecordID)
	assert.Equal(t, "b", hits[1].Key.RecordID)
}
