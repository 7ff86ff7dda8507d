// Package vectorindex stores chunk embeddings in Qdrant and answers
// approximate nearest-neighbor queries filtered by owning document.
package vectorindex

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// CollectionName is the single Qdrant collection holding all chunk vectors.
const CollectionName = "chunks"

// VectorDimension is the embedding size for text-embedding-3-small.
const VectorDimension = 1536

// PreviewLength bounds the text preview carried in point payloads. The
// preview exists for debugging and as a last-resort fallback; generation
// always re-hydrates full text from the chunk store.
const PreviewLength = 500

// Record is one chunk's entry in the index: the vector plus the metadata
// needed to filter by document and resolve citations.
type Record struct {
	ChunkID    string
	DocumentID string
	Page       int
	Text       string
	Vector     []float32
}

// ScoredPoint is one nearest-neighbor result, ordered by descending cosine
// similarity. Preview is the truncated payload text, not full chunk text.
type ScoredPoint struct {
	ChunkID    string
	DocumentID string
	Page       int
	Preview    string
	Score      float32
}

// Index wraps the Qdrant client with connection management and the
// chunk-collection operations the pipeline needs.
type Index struct {
	client *qdrant.Client
	host   string
	port   int
}

// NewIndex creates a Qdrant client and validates connectivity. It performs
// a health check with retry on startup and fails fast if Qdrant is
// unreachable.
func NewIndex(host string, port int) (*Index, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	idx := &Index{
		client: client,
		host:   host,
		port:   port,
	}

	ctx := context.Background()
	if err := idx.healthCheckWithRetry(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	return idx, nil
}

// healthCheckWithRetry performs health check with exponential backoff.
// Initial interval 500ms, max interval 10s, max elapsed 30s.
func (x *Index) healthCheckWithRetry(ctx context.Context) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		return x.Health(ctx)
	}, backoff.WithContext(exponentialBackoff, ctx))
}

// Health performs a single health check against Qdrant.
func (x *Index) Health(ctx context.Context) error {
	result, err := x.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// EnsureCollection ensures the chunk collection exists with cosine metric
// and the configured dimensionality, and creates the payload indexes used
// for filtering. Idempotent - safe to call multiple times, and required
// before the first upsert or query.
func (x *Index) EnsureCollection(ctx context.Context) error {
	collections, err := x.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}

	for _, name := range collections {
		if name == CollectionName {
			return nil
		}
	}

	err = x.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: CollectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     VectorDimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	return x.createPayloadIndexes(ctx)
}

// createPayloadIndexes creates indexes for the filterable fields. Without
// these, the document-id filter falls back to a full scan.
func (x *Index) createPayloadIndexes(ctx context.Context) error {
	fields := []string{
		"document_id", // every query and delete filters on this
		"chunk_id",    // lookup of a chunk's point
	}

	for _, field := range fields {
		_, err := x.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: CollectionName,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("failed to create index for field %s: %w", field, err)
		}
	}

	return nil
}

// PointID derives the Qdrant point id for a chunk deterministically from
// the chunk id, so re-upserting after a redelivered ingestion job
// overwrites instead of duplicating.
func PointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String()
}

// upsertWithRetry performs an upsert with exponential backoff retry.
func (x *Index) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		_, err := x.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: CollectionName,
			Points:         points,
		})
		return err
	}, backoff.WithContext(exponentialBackoff, ctx))
}

// Upsert stores chunk records in the index, idempotently by point id.
// Records are batched in groups of 100. Returns the point ids in record
// order so the caller can write them back onto the chunk rows.
func (x *Index) Upsert(ctx context.Context, records []Record) ([]string, error) {
	if len(records) == 0 {
		return nil, nil
	}

	for i, rec := range records {
		if len(rec.Vector) != VectorDimension {
			return nil, fmt.Errorf("%w: record %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(rec.Vector), VectorDimension)
		}
	}

	ids := make([]string, len(records))

	batchSize := 100
	for i := 0; i < len(records); i += batchSize {
		end := min(i+batchSize, len(records))

		batch := records[i:end]
		points := make([]*qdrant.PointStruct, len(batch))

		for j, rec := range batch {
			pointID := PointID(rec.ChunkID)
			ids[i+j] = pointID

			points[j] = &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(pointID),
				Vectors: qdrant.NewVectors(rec.Vector...),
				Payload: qdrant.NewValueMap(map[string]any{
					"chunk_id":    rec.ChunkID,
					"document_id": rec.DocumentID,
					"page":        rec.Page,
					"text":        truncatePreview(rec.Text),
				}),
			}
		}

		if err := x.upsertWithRetry(ctx, points); err != nil {
			return nil, fmt.Errorf("failed to upsert batch %d-%d: %w", i, end, err)
		}
	}

	return ids, nil
}

// QuerySimilar returns the topK points most similar to the query vector,
// restricted to the given document, ordered by descending cosine
// similarity.
func (x *Index) QuerySimilar(ctx context.Context, vector []float32, topK int, documentID string) ([]ScoredPoint, error) {
	if len(vector) != VectorDimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(vector), VectorDimension)
	}

	var filter *qdrant.Filter
	if documentID != "" {
		filter = &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("document_id", documentID),
			},
		}
	}

	results, err := x.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: CollectionName,
		Query:          qdrant.NewQuery(vector...),
		Filter:         filter,
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}

	points := make([]ScoredPoint, 0, len(results))
	for _, result := range results {
		payload := result.Payload
		points = append(points, ScoredPoint{
			ChunkID:    payload["chunk_id"].GetStringValue(),
			DocumentID: payload["document_id"].GetStringValue(),
			Page:       int(payload["page"].GetIntegerValue()),
			Preview:    payload["text"].GetStringValue(),
			Score:      result.Score,
		})
	}

	return points, nil
}

// DeleteByDocument removes every point whose payload document id matches.
// Called when a document is deleted; the relational cascade does not reach
// the external index, so the deleting collaborator triggers this
// explicitly.
func (x *Index) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := x.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: CollectionName,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("document_id", documentID),
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to delete vectors for document %s: %w", documentID, err)
	}
	return nil
}

// Close closes the Qdrant client connection.
func (x *Index) Close() error {
	if x.client != nil {
		return x.client.Close()
	}
	return nil
}

func truncatePreview(text string) string {
	if len(text) <= PreviewLength {
		return text
	}
	return text[:PreviewLength]
}
