package weaviate

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"docingest/internal/ingest"
	"docingest/internal/vector"
)

// chunkNamespace seeds deterministic object IDs. A chunk keyed by
// fileID and index always maps to the same UUID, so a replayed store
// overwrites the previous write instead of duplicating it.
var chunkNamespace = uuid.MustParse("3f1a6c2e-8b4d-4a6f-9c3e-7d5b2a914e08")

func chunkID(fileID string, index int) strfmt.UUID {
	id := uuid.NewSHA1(chunkNamespace, []byte(fileID+"/"+strconv.Itoa(index)))
	return strfmt.UUID(id.String())
}

type Store struct {
	client    *weaviate.Client
	batchSize int
}

func NewStore(client *weaviate.Client, batchSize int) *Store {
	if batchSize < 1 {
		batchSize = 1
	}
	return &Store{client: client, batchSize: batchSize}
}

// StoreBatch writes the records of one embedding batch. Writes are
// sub-batched so a large batch never exceeds one Weaviate request of
// batchSize objects. Returns the number of objects confirmed stored.
func (s *Store) StoreBatch(ctx context.Context, fileID string, records []ingest.EmbeddingRecord) (int, error) {
	stored := 0
	for sub := range slices.Chunk(records, s.batchSize) {
		objects := make([]*models.Object, 0, len(sub))
		for _, rec := range sub {
			objects = append(objects, &models.Object{
				Class: vector.ClassName,
				ID:    chunkID(fileID, rec.Index),
				Properties: map[string]interface{}{
					"content":    rec.Text,
					"fileId":     fileID,
					"chunkIndex": rec.Index,
				},
				Vector: models.C11yVector(rec.Vector),
			})
		}

		resp, err := s.client.Batch().ObjectsBatcher().
			WithObjects(objects...).
			Do(ctx)
		if err != nil {
			return stored, fmt.Errorf("weaviate batch: %w", err)
		}

		for _, obj := range resp {
			if obj.Result != nil && obj.Result.Errors != nil && len(obj.Result.Errors.Error) > 0 {
				return stored, fmt.Errorf("weaviate batch: object %s: %s",
					obj.ID, obj.Result.Errors.Error[0].Message)
			}
			stored++
		}
	}
	return stored, nil
}

// DeleteFile removes every chunk belonging to fileID.
func (s *Store) DeleteFile(ctx context.Context, fileID string) error {
	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(vector.ClassName).
		WithOutput("minimal").
		WithWhere(filters.Where().
			WithPath([]string{"fileId"}).
			WithOperator(filters.Equal).
			WithValueString(fileID)).
		Do(ctx)
	return err
}

// Drop deletes the chunk class and everything in it.
func (s *Store) Drop(ctx context.Context) error {
	return s.client.Schema().ClassDeleter().
		WithClassName(vector.ClassName).
		Do(ctx)
}

// Count returns the total number of stored chunks. With a non-empty
// fileID it counts only that file's chunks.
func (s *Store) Count(ctx context.Context, fileID string) (int, error) {
	agg := s.client.GraphQL().Aggregate().
		WithClassName(vector.ClassName).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}})

	if fileID != "" {
		agg = agg.WithWhere(filters.Where().
			WithPath([]string{"fileId"}).
			WithOperator(filters.Equal).
			WithValueString(fileID))
	}

	res, err := agg.Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(res.Errors) > 0 {
		return 0, fmt.Errorf("graphql error: %v", res.Errors[0].Message)
	}

	if data, ok := res.Data["Aggregate"].(map[string]interface{}); ok {
		if rows, ok := data[vector.ClassName].([]interface{}); ok && len(rows) > 0 {
			if row, ok := rows[0].(map[string]interface{}); ok {
				if meta, ok := row["meta"].(map[string]interface{}); ok {
					if count, ok := meta["count"].(float64); ok {
						return int(count), nil
					}
				}
			}
		}
	}
	return 0, fmt.Errorf("aggregate response missing meta count")
}

// StoredChunk is a chunk read back from the store.
type StoredChunk struct {
	FileID     string  `json:"file_id"`
	ChunkIndex int     `json:"chunk_index"`
	Content    string  `json:"content"`
	Distance   float32 `json:"distance,omitempty"`
}

// Sample returns up to limit chunks, optionally filtered by fileID.
func (s *Store) Sample(ctx context.Context, fileID string, limit int) ([]StoredChunk, error) {
	get := s.client.GraphQL().Get().
		WithClassName(vector.ClassName).
		WithLimit(limit).
		WithFields(chunkFields()...)

	if fileID != "" {
		get = get.WithWhere(filters.Where().
			WithPath([]string{"fileId"}).
			WithOperator(filters.Equal).
			WithValueString(fileID))
	}

	res, err := get.Do(ctx)
	if err != nil {
		return nil, err
	}
	return decodeChunks(res)
}

// Search returns the limit nearest chunks to the query vector.
func (s *Store) Search(ctx context.Context, queryVector []float32, limit int) ([]StoredChunk, error) {
	nearVector := s.client.GraphQL().NearVectorArgBuilder().
		WithVector(queryVector)

	fields := append(chunkFields(),
		graphql.Field{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}})

	res, err := s.client.GraphQL().Get().
		WithClassName(vector.ClassName).
		WithNearVector(nearVector).
		WithLimit(limit).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	return decodeChunks(res)
}

func chunkFields() []graphql.Field {
	return []graphql.Field{
		{Name: "content"},
		{Name: "fileId"},
		{Name: "chunkIndex"},
	}
}

func decodeChunks(res *models.GraphQLResponse) ([]StoredChunk, error) {
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors[0].Message)
	}

	var chunks []StoredChunk
	if data, ok := res.Data["Get"].(map[string]interface{}); ok {
		if rows, ok := data[vector.ClassName].([]interface{}); ok {
			for _, row := range rows {
				props, ok := row.(map[string]interface{})
				if !ok {
					continue
				}
				chunk := StoredChunk{}
				if content, ok := props["content"].(string); ok {
					chunk.Content = content
				}
				if fileID, ok := props["fileId"].(string); ok {
					chunk.FileID = fileID
				}
				if idx, ok := props["chunkIndex"].(float64); ok {
					chunk.ChunkIndex = int(idx)
				}
				if additional, ok := props["_additional"].(map[string]interface{}); ok {
					if distance, ok := additional["distance"].(float64); ok {
						chunk.Distance = float32(distance)
					}
				}
				chunks = append(chunks, chunk)
			}
		}
	}
	return chunks, nil
}
