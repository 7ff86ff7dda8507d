//go:build integration
// +build integration

package vectorindex

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestIndex connects to a local Qdrant and ensures the collection
// exists. Skips the test if Qdrant is not running.
func setupTestIndex(t *testing.T) *Index {
	index, err := NewIndex("localhost", 6334)
	if err != nil {
		t.Skipf("Qdrant not available: %v", err)
	}

	err = index.EnsureCollection(context.Background())
	require.NoError(t, err, "Failed to ensure collection")

	return index
}

func testVector(fill float32) []float32 {
	v := make([]float32, VectorDimension)
	for i := range v {
		v[i] = fill
	}
	return v
}

func TestUpsertAndQueryRoundTrip(t *testing.T) {
	index := setupTestIndex(t)
	defer index.Close()

	ctx := context.Background()
	docID := uuid.New().String()

	records := []Record{
		{ChunkID: uuid.New().String(), DocumentID: docID, Page: 1, Text: "alpha chunk text", Vector: testVector(0.1)},
		{ChunkID: uuid.New().String(), DocumentID: docID, Page: 2, Text: "beta chunk text", Vector: testVector(0.2)},
	}

	pointIDs, err := index.Upsert(ctx, records)
	require.NoError(t, err, "Failed to upsert records")
	require.Len(t, pointIDs, 2)

	// Point ids derive deterministically from chunk ids.
	assert.Equal(t, PointID(records[0].ChunkID), pointIDs[0])
	assert.Equal(t, PointID(records[1].ChunkID), pointIDs[1])

	results, err := index.QuerySimilar(ctx, testVector(0.1), 5, docID)
	require.NoError(t, err, "Failed to query")
	require.NotEmpty(t, results)

	found := map[string]ScoredPoint{}
	for _, res := range results {
		assert.Equal(t, docID, res.DocumentID, "Filter must restrict to the document")
		found[res.ChunkID] = res
	}
	require.Contains(t, found, records[0].ChunkID)
	assert.Equal(t, 1, found[records[0].ChunkID].Page)
	assert.Equal(t, "alpha chunk text", found[records[0].ChunkID].Preview)
}

func TestUpsertIsIdempotent(t *testing.T) {
	index := setupTestIndex(t)
	defer index.Close()

	ctx := context.Background()
	docID := uuid.New().String()
	record := Record{
		ChunkID:    uuid.New().String(),
		DocumentID: docID,
		Page:       1,
		Text:       "same chunk twice",
		Vector:     testVector(0.3),
	}

	first, err := index.Upsert(ctx, []Record{record})
	require.NoError(t, err)
	second, err := index.Upsert(ctx, []Record{record})
	require.NoError(t, err)
	assert.Equal(t, first, second, "Re-upsert must hit the same point")

	results, err := index.QuerySimilar(ctx, testVector(0.3), 10, docID)
	require.NoError(t, err)
	count := 0
	for _, res := range results {
		if res.ChunkID == record.ChunkID {
			count++
		}
	}
	assert.Equal(t, 1, count, "Duplicate upsert must not duplicate the point")
}

func TestUpsertRejectsWrongDimension(t *testing.T) {
	index := setupTestIndex(t)
	defer index.Close()

	_, err := index.Upsert(context.Background(), []Record{{
		ChunkID:    uuid.New().String(),
		DocumentID: uuid.New().String(),
		Page:       1,
		Text:       "bad vector",
		Vector:     []float32{0.1, 0.2},
	}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestDeleteByDocumentRemovesAllPoints(t *testing.T) {
	index := setupTestIndex(t)
	defer index.Close()

	ctx := context.Background()
	docID := uuid.New().String()

	_, err := index.Upsert(ctx, []Record{
		{ChunkID: uuid.New().String(), DocumentID: docID, Page: 1, Text: "doomed one", Vector: testVector(0.4)},
		{ChunkID: uuid.New().String(), DocumentID: docID, Page: 2, Text: "doomed two", Vector: testVector(0.5)},
	})
	require.NoError(t, err)

	require.NoError(t, index.DeleteByDocument(ctx, docID))

	results, err := index.QuerySimilar(ctx, testVector(0.4), 10, docID)
	require.NoError(t, err)
	assert.Empty(t, results, "Deleted document must have no points left")
}
