package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRequiresInitialize(t *testing.T) {
	m := NewMemory()

	err := m.Upsert(context.Background(), "a.go", [][]float32{{1, 0}})
	assert.ErrorIs(t, err, ErrNotInitialized)

	_, err = m.HasIndexedData(context.Background())
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestMemoryInitializeReportsExisting(t *testing.T) {
	m := NewMemory()

	existing, err := m.Initialize(context.Background())
	require.NoError(t, err)
	assert.False(t, existing)

	existing, err = m.Initialize(context.Background())
	require.NoError(t, err)
	assert.True(t, existing)
}

func TestMemoryHasIndexedDataRequiresCompletionMarker(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.Initialize(ctx)
	require.NoError(t, err)

	has, err := m.HasIndexedData(ctx)
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, m.Upsert(ctx, "a.go", [][]float32{{1, 0}}))
	has, err = m.HasIndexedData(ctx)
	require.NoError(t, err)
	assert.False(t, has, "incomplete index must not count as indexed data")

	require.NoError(t, m.MarkIndexingComplete(ctx))
	has, err = m.HasIndexedData(ctx)
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, m.MarkIndexingIncomplete(ctx))
	has, err = m.HasIndexedData(ctx)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestMemoryUpsertReplacesVectors(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.Initialize(ctx)
	require.NoError(t, err)

	require.NoError(t, m.Upsert(ctx, "a.go", [][]float32{{1, 0}}))
	require.NoError(t, m.Upsert(ctx, "a.go", [][]float32{{0, 1}}))

	results, err := m.Search(ctx, []float32{0, 1}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a.go", results[0].Path)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestMemoryClearCollection(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.Initialize(ctx)
	require.NoError(t, err)

	require.NoError(t, m.Upsert(ctx, "a.go", [][]float32{{1, 0}}))
	require.NoError(t, m.MarkIndexingComplete(ctx))
	require.NoError(t, m.ClearCollection(ctx))

	has, err := m.HasIndexedData(ctx)
	require.NoError(t, err)
	assert.False(t, has)
	assert.Empty(t, m.Paths())
}

func TestMemorySearchRanksByCosineSimilarity(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.Initialize(ctx)
	require.NoError(t, err)

	require.NoError(t, m.Upsert(ctx, "exact.go", [][]float32{{1, 0, 0}}))
	require.NoError(t, m.Upsert(ctx, "close.go", [][]float32{{0.9, 0.1, 0}}))
	require.NoError(t, m.Upsert(ctx, "far.go", [][]float32{{0, 0, 1}}))

	results, err := m.Search(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "exact.go", results[0].Path)
	assert.Equal(t, "close.go", results[1].Path)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2}, []float32{1, 2}), 1e-6)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-6)
	assert.Zero(t, CosineSimilarity([]float32{1}, []float32{1, 2}))
	assert.Zero(t, CosineSimilarity([]float32{0, 0}, []float32{1, 2}))
}

func TestVectorSerializationRoundTrip(t *testing.T) {
	want := []float32{0.25, -1.5, 3.75, 0}
	got := deserializeVector(serializeVector(want))
	assert.Equal(t, want, got)
}
