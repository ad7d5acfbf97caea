package weaviate

import (
	"context"
	"fmt"

	"github.com/go-openapi/strfmt"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"prospectus/internal/index"
	"prospectus/internal/retrieval"
	"prospectus/internal/vector"
)

// Store mirrors document indexes into Weaviate and answers nearest-neighbour
// queries against them.
type Store struct {
	client *weaviate.Client
	class  string
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{client: client, class: vector.ClassName}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	return vector.EnsureSchema(ctx, vector.NewClientSchema(s.client), s.class)
}

// Upsert replaces every stored passage of idx.DocumentID with idx's chunks.
func (s *Store) Upsert(ctx context.Context, idx index.DocumentIndex) error {
	if err := s.DeleteDocument(ctx, idx.DocumentID); err != nil {
		return err
	}
	if len(idx.Chunks) == 0 {
		return nil
	}

	objs := make([]*models.Object, len(idx.Chunks))
	for i, c := range idx.Chunks {
		objs[i] = &models.Object{
			Class: s.class,
			ID:    strfmt.UUID(c.ID),
			Properties: map[string]interface{}{
				"chunkId":      c.ID,
				"documentId":   c.DocumentID,
				"documentName": c.DocumentName,
				"chunkIndex":   c.Index,
				"label":        c.Label,
				"content":      c.Text,
				"provider":     idx.Provider,
			},
			Vector: c.Embedding,
		}
	}

	resp, err := s.client.Batch().ObjectsBatcher().WithObjects(objs...).Do(ctx)
	if err != nil {
		return fmt.Errorf("batch insert: %w", err)
	}
	for _, r := range resp {
		if r.Result != nil && r.Result.Errors != nil && len(r.Result.Errors.Error) > 0 {
			return fmt.Errorf("batch insert %s: %s", r.ID, r.Result.Errors.Error[0].Message)
		}
	}
	return nil
}

func (s *Store) DeleteDocument(ctx context.Context, documentID string) error {
	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(s.class).
		WithOutput("minimal").
		WithWhere(filters.Where().
			WithPath([]string{"documentId"}).
			WithOperator(filters.Equal).
			WithValueText(documentID)).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("delete %s: %w", documentID, err)
	}
	return nil
}

// Search returns the k passages nearest to vec. Score is cosine similarity.
func (s *Store) Search(ctx context.Context, vec []float32, k int) ([]retrieval.Result, error) {
	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vec)

	fields := []graphql.Field{
		{Name: "chunkId"},
		{Name: "documentId"},
		{Name: "documentName"},
		{Name: "chunkIndex"},
		{Name: "label"},
		{Name: "content"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}},
	}

	res, err := s.client.GraphQL().Get().
		WithClassName(s.class).
		WithNearVector(nearVector).
		WithLimit(k).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors[0].Message)
	}

	results := []retrieval.Result{}
	data, _ := res.Data["Get"].(map[string]interface{})
	rows, _ := data[s.class].([]interface{})
	for _, row := range rows {
		props, ok := row.(map[string]interface{})
		if !ok {
			continue
		}
		r := retrieval.Result{Chunk: index.Chunk{
			ID:           str(props["chunkId"]),
			DocumentID:   str(props["documentId"]),
			DocumentName: str(props["documentName"]),
			Label:        str(props["label"]),
			Text:         str(props["content"]),
		}}
		if n, ok := props["chunkIndex"].(float64); ok {
			r.Chunk.Index = int(n)
		}
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			if d, ok := additional["distance"].(float64); ok {
				r.Score = 1 - d
			}
		}
		results = append(results, r)
	}
	return results, nil
}

// Count returns the number of stored passages.
func (s *Store) Count(ctx context.Context) (int, error) {
	res, err := s.client.GraphQL().Aggregate().
		WithClassName(s.class).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(res.Errors) > 0 {
		return 0, fmt.Errorf("graphql error: %v", res.Errors[0].Message)
	}

	agg, _ := res.Data["Aggregate"].(map[string]interface{})
	rows, _ := agg[s.class].([]interface{})
	if len(rows) == 0 {
		return 0, nil
	}
	row, _ := rows[0].(map[string]interface{})
	meta, _ := row["meta"].(map[string]interface{})
	count, _ := meta["count"].(float64)
	return int(count), nil
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}
