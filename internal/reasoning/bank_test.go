package reasoning

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/do-ops885/dermatology-goap-orchestrator/internal/platform"
)

func TestBank_StoreAndSearchRoundTrip(t *testing.T) {
	dir := t.TempDir()
	b, err := Open(dir, 4, 10000, time.Hour, nil, "", platform.NoOpLogger{})
	require.NoError(t, err)
	defer b.Close()

	p := Pattern{TaskType: "lesion_similarity", Embedding: []float32{1, 0, 0, 0}}
	id, err := b.Store(p, StoreOptions{Durable: true})
	require.NoError(t, err)

	results, err := b.Search(context.Background(), SearchQuery{Embedding: []float32{1, 0, 0, 0}, K: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, id, results[0].Pattern.ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)
}

func TestBank_RejectsDimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	b, err := Open(dir, 4, 10000, time.Hour, nil, "", platform.NoOpLogger{})
	require.NoError(t, err)
	defer b.Close()

	_, err = b.Store(Pattern{Embedding: []float32{1, 2, 3}}, StoreOptions{})
	assert.ErrorIs(t, err, platform.ErrDimensionMismatch)
}

func TestBank_FilterByTaskType(t *testing.T) {
	dir := t.TempDir()
	b, err := Open(dir, 2, 10000, time.Hour, nil, "", platform.NoOpLogger{})
	require.NoError(t, err)
	defer b.Close()

	_, err = b.Store(Pattern{TaskType: "a", Embedding: []float32{1, 0}}, StoreOptions{})
	require.NoError(t, err)
	_, err = b.Store(Pattern{TaskType: "b", Embedding: []float32{1, 0}}, StoreOptions{})
	require.NoError(t, err)

	results, err := b.Search(context.Background(), SearchQuery{Embedding: []float32{1, 0}, K: 10, Filter: Filter{TaskType: "a"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].Pattern.TaskType)
}

func TestBank_PatternMetadataJSONRoundTrip(t *testing.T) {
	dir := t.TempDir()
	b, err := Open(dir, 2, 10000, time.Hour, nil, "", platform.NoOpLogger{})
	require.NoError(t, err)
	defer b.Close()

	id, err := b.Store(Pattern{
		TaskType: "lesion_similarity", Embedding: []float32{1, 0},
		Metadata: map[string]interface{}{"fitzpatrick": "III", "isCorrection": true},
	}, StoreOptions{})
	require.NoError(t, err)

	raw, ok, err := b.PatternMetadataJSON(id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, raw, `"fitzpatrick":"III"`)
	assert.Contains(t, raw, `"isCorrection":true`)

	_, ok, err = b.PatternMetadataJSON("does-not-exist")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Contains(t, b.PatternIDs(), id)
}

func TestBank_RecoversAfterReopen(t *testing.T) {
	dir := t.TempDir()
	b, err := Open(dir, 2, 10000, time.Hour, nil, "", platform.NoOpLogger{})
	require.NoError(t, err)
	id, err := b.Store(Pattern{TaskType: "x", Embedding: []float32{0, 1}}, StoreOptions{Durable: true})
	require.NoError(t, err)
	require.NoError(t, b.Close())

	b2, err := Open(dir, 2, 10000, time.Hour, nil, "", platform.NoOpLogger{})
	require.NoError(t, err)
	defer b2.Close()
	assert.Equal(t, 1, b2.Count())

	results, err := b2.Search(context.Background(), SearchQuery{Embedding: []float32{0, 1}, K: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, id, results[0].Pattern.ID)
}
