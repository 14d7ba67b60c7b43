// Package weaviate provides a vector index backed by a Weaviate cluster.
// Chunk vectors are written with client-supplied vectors (no vectorizer
// module), under object IDs derived from the stable record ID so upserts
// replace in place.
package weaviate

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/custodia-labs/rag-platform/internal/core/domain"
	"github.com/custodia-labs/rag-platform/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Defaults.
const (
	DefaultClass     = "Chunk"
	DefaultBatchSize = 200
)

// Property names on the chunk class.
const (
	propRecordID   = "recordId"
	propDocumentID = "documentId"
	propChunkIndex = "chunkIndex"
	propContent    = "content"
)

// idNamespace scopes object UUIDs derived from record IDs.
var idNamespace = uuid.MustParse("6f1c3b1e-6a8e-4d0b-9a57-2f0e5c1d9b41")

// Config holds connection settings.
type Config struct {
	// Host is the Weaviate host, optionally with an http:// or https:// scheme.
	Host string

	// APIKey authenticates against Weaviate Cloud. Optional.
	APIKey string

	// Class holds the chunk objects (default: Chunk).
	Class string

	// BatchSize caps objects per batch request (default: 200).
	BatchSize int
}

// Index writes chunk vectors to Weaviate.
type Index struct {
	client    *weaviate.Client
	class     string
	batchSize int
}

// New connects to Weaviate and creates the chunk class if it is missing.
func New(ctx context.Context, cfg Config) (*Index, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("%w: weaviate host is required", domain.ErrInvalidInput)
	}
	if cfg.Class == "" {
		cfg.Class = DefaultClass
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	client, err := weaviate.NewClient(clientConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("%w: creating weaviate client: %v", domain.ErrVectorIndexUnavailable, err)
	}

	x := &Index{client: client, class: cfg.Class, batchSize: cfg.BatchSize}
	if err := x.ensureClass(ctx); err != nil {
		return nil, err
	}
	return x, nil
}

// clientConfig splits the scheme off the host and sets API key auth.
func clientConfig(cfg Config) weaviate.Config {
	scheme := "http"
	host := cfg.Host
	if rest, ok := strings.CutPrefix(host, "https://"); ok {
		scheme, host = "https", rest
	} else if rest, ok := strings.CutPrefix(host, "http://"); ok {
		host = rest
	}
	host = strings.TrimRight(host, "/")

	wc := weaviate.Config{Host: host, Scheme: scheme}
	if cfg.APIKey != "" {
		wc.AuthConfig = auth.ApiKey{Value: cfg.APIKey}
		wc.Headers = map[string]string{
			"X-Weaviate-Api-Key":     cfg.APIKey,
			"X-Weaviate-Cluster-Url": fmt.Sprintf("%s://%s", scheme, host),
		}
	}
	return wc
}

// classDefinition describes the chunk class.
func classDefinition(class string) *models.Class {
	return &models.Class{
		Class:       class,
		Description: "Document chunks produced by the ingestion pipeline",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{Name: propRecordID, DataType: []string{"text"}},
			{Name: propDocumentID, DataType: []string{"text"}},
			{Name: propChunkIndex, DataType: []string{"int"}},
			{Name: propContent, DataType: []string{"text"}},
		},
		VectorIndexType: "hnsw",
		VectorIndexConfig: map[string]any{
			"distance": "cosine",
		},
	}
}

func (x *Index) ensureClass(ctx context.Context) error {
	exists, err := x.client.Schema().ClassExistenceChecker().WithClassName(x.class).Do(ctx)
	if err != nil {
		return fmt.Errorf("%w: checking class %s: %v", domain.ErrVectorIndexUnavailable, x.class, err)
	}
	if exists {
		return nil
	}
	if err := x.client.Schema().ClassCreator().WithClass(classDefinition(x.class)).Do(ctx); err != nil {
		return fmt.Errorf("%w: creating class %s: %v", domain.ErrVectorIndexUnavailable, x.class, err)
	}
	return nil
}

// ObjectID returns the Weaviate object UUID for a record ID.
func ObjectID(recordID string) strfmt.UUID {
	return strfmt.UUID(uuid.NewSHA1(idNamespace, []byte(recordID)).String())
}

func (x *Index) object(r driven.VectorRecord) *models.Object {
	return &models.Object{
		Class: x.class,
		ID:    ObjectID(r.ID),
		Properties: map[string]any{
			propRecordID:   r.ID,
			propDocumentID: r.DocumentID,
			propChunkIndex: r.ChunkIndex,
			propContent:    r.Content,
		},
		Vector: r.Embedding,
	}
}

// Upsert writes records in batches.
func (x *Index) Upsert(ctx context.Context, records []driven.VectorRecord) error {
	for start := 0; start < len(records); start += x.batchSize {
		end := min(start+x.batchSize, len(records))

		batcher := x.client.Batch().ObjectsBatcher()
		for _, r := range records[start:end] {
			if r.ID == "" || r.DocumentID == "" || len(r.Embedding) == 0 {
				return fmt.Errorf("%w: vector record %q is incomplete", domain.ErrInvalidInput, r.ID)
			}
			batcher = batcher.WithObjects(x.object(r))
		}

		resp, err := batcher.Do(ctx)
		if err != nil {
			return domain.Transient(fmt.Errorf("%w: batch %d-%d: %v", domain.ErrVectorIndexUnavailable, start, end-1, err))
		}
		if err := batchErrors(resp); err != nil {
			return domain.Transient(fmt.Errorf("batch %d-%d: %w", start, end-1, err))
		}
	}
	return nil
}

// batchErrors returns the first per-object error in a batch response.
func batchErrors(resp []models.ObjectsGetResponse) error {
	for _, r := range resp {
		if r.Result == nil || r.Result.Errors == nil {
			continue
		}
		for _, e := range r.Result.Errors.Error {
			if e != nil {
				return fmt.Errorf("object %s: %s", r.ID, e.Message)
			}
		}
	}
	return nil
}

// DeleteDocument removes all of a document's vectors.
func (x *Index) DeleteDocument(ctx context.Context, documentID string) error {
	return x.deleteWhere(ctx, documentFilter(documentID, 0))
}

// Prune removes a document's vectors with chunk index >= keep.
func (x *Index) Prune(ctx context.Context, documentID string, keep int) error {
	return x.deleteWhere(ctx, documentFilter(documentID, keep))
}

// documentFilter matches a document's objects with chunk index >= from.
func documentFilter(documentID string, from int) *filters.WhereBuilder {
	byDoc := filters.Where().
		WithPath([]string{propDocumentID}).
		WithOperator(filters.Equal).
		WithValueText(documentID)
	if from <= 0 {
		return byDoc
	}
	fromIndex := filters.Where().
		WithPath([]string{propChunkIndex}).
		WithOperator(filters.GreaterThanEqual).
		WithValueInt(int64(from))
	return filters.Where().
		WithOperator(filters.And).
		WithOperands([]*filters.WhereBuilder{byDoc, fromIndex})
}

func (x *Index) deleteWhere(ctx context.Context, where *filters.WhereBuilder) error {
	_, err := x.client.Batch().ObjectsBatchDeleter().
		WithClassName(x.class).
		WithWhere(where).
		WithOutput("minimal").
		Do(ctx)
	if err != nil {
		return domain.Transient(fmt.Errorf("%w: batch delete: %v", domain.ErrVectorIndexUnavailable, err))
	}
	return nil
}

// Search runs a nearVector query.
func (x *Index) Search(ctx context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	if k <= 0 {
		return nil, nil
	}

	fields := []graphql.Field{
		{Name: propRecordID},
		{Name: propDocumentID},
		{Name: propChunkIndex},
		{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}},
	}
	near := x.client.GraphQL().NearVectorArgBuilder().WithVector(query)

	resp, err := x.client.GraphQL().Get().
		WithClassName(x.class).
		WithFields(fields...).
		WithNearVector(near).
		WithLimit(k).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", domain.ErrVectorIndexUnavailable, err)
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("%w: search: %s", domain.ErrVectorIndexUnavailable, resp.Errors[0].Message)
	}
	return parseHits(resp.Data, x.class), nil
}

// parseHits reads Get.<class>[] from a GraphQL response.
func parseHits(data map[string]models.JSONObject, class string) []driven.VectorHit {
	get, ok := data["Get"].(map[string]any)
	if !ok {
		return nil
	}
	items, ok := get[class].([]any)
	if !ok {
		return nil
	}

	hits := make([]driven.VectorHit, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		hit := driven.VectorHit{}
		hit.ID, _ = obj[propRecordID].(string)
		hit.DocumentID, _ = obj[propDocumentID].(string)
		if idx, ok := obj[propChunkIndex].(float64); ok {
			hit.ChunkIndex = int(idx)
		}
		if additional, ok := obj["_additional"].(map[string]any); ok {
			if d, ok := additional["distance"].(float64); ok {
				hit.Similarity = 1 - d
			}
		}
		hits = append(hits, hit)
	}
	return hits
}

// Close releases resources.
func (x *Index) Close() error {
	return nil
}
