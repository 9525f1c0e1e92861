package persistence_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praxishq/praxis/domain/record"
	"github.com/praxishq/praxis/domain/search"
	"github.com/praxishq/praxis/infrastructure/index"
	"github.com/praxishq/praxis/infrastructure/persistence"
	"github.com/praxishq/praxis/internal/testdb"
)

func TestEmbeddingUpsertOverwrites(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewEmbeddingStore(testdb.New(t))

	first := search.NewStoredEmbedding("exp-1", record.KindExperience, "m1", []float32{1, 0})
	require.NoError(t, store.Upsert(ctx, first))

	second := search.NewStoredEmbedding("exp-1", record.KindExperience, "m1", []float32{0, 1})
	require.NoError(t, store.Upsert(ctx, second))

	got, err := store.List(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []float32{0, 1}, got[0].Vector())
}

func TestEmbeddingListFiltersModelVersion(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewEmbeddingStore(testdb.New(t))

	require.NoError(t, store.Upsert(ctx,
		search.NewStoredEmbedding("exp-1", record.KindExperience, "m1", []float32{1, 0})))
	require.NoError(t, store.Upsert(ctx,
		search.NewStoredEmbedding("exp-1", record.KindExperience, "m2", []float32{0, 1})))
	require.NoError(t, store.Upsert(ctx,
		search.NewStoredEmbedding("sk-1", record.KindSkill, "m1", []float32{1, 0})))

	got, err := store.List(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Ordered by kind then record id.
	assert.Equal(t, "exp-1", got[0].RecordID())
	assert.Equal(t, "sk-1", got[1].RecordID())
}

func TestEmbeddingDeleteFor(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewEmbeddingStore(testdb.New(t))

	require.NoError(t, store.Upsert(ctx,
		search.NewStoredEmbedding("exp-1", record.KindExperience, "m1", []float32{1, 0})))
	require.NoError(t, store.Upsert(ctx,
		search.NewStoredEmbedding("exp-1", record.KindExperience, "m2", []float32{0, 1})))

	require.NoError(t, store.DeleteFor(ctx, "exp-1", record.KindExperience))

	for _, model := range []string{"m1", "m2"} {
		got, err := store.List(ctx, model)
		require.NoError(t, err)
		assert.Empty(t, got)
	}
}

func TestMappingStoreAppendMarkList(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMappingStore(testdb.New(t))

	require.NoError(t, store.Append(ctx, index.Mapping{
		InternalID: 1, RecordID: "exp-1", Kind: record.KindExperience, ModelVersion: "m1",
	}))
	require.NoError(t, store.Append(ctx, index.Mapping{
		InternalID: 2, RecordID: "sk-1", Kind: record.KindSkill, ModelVersion: "m1",
	}))
	require.NoError(t, store.MarkDeleted(ctx, []uint64{1}))

	got, err := store.List(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Deleted)
	assert.False(t, got[1].Deleted)
}

func TestMappingStoreReplace(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMappingStore(testdb.New(t))

	require.NoError(t, store.Append(ctx, index.Mapping{
		InternalID: 1, RecordID: "exp-1", Kind: record.KindExperience, ModelVersion: "m1",
	}))
	require.NoError(t, store.Append(ctx, index.Mapping{
		InternalID: 2, RecordID: "exp-2", Kind: record.KindExperience, ModelVersion: "m2",
	}))

	require.NoError(t, store.Replace(ctx, "m1", []index.Mapping{
		{InternalID: 1, RecordID: "exp-3", Kind: record.KindExperience, ModelVersion: "m1"},
	}))

	m1, err := store.List(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, m1, 1)
	assert.Equal(t, "exp-3", m1[0].RecordID)

	// Other model versions are untouched.
	m2, err := store.List(ctx, "m2")
	require.NoError(t, err)
	require.Len(t, m2, 1)
	assert.Equal(t, "exp-2", m2[0].RecordID)
}
