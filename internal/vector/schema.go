// Package vector manages the Weaviate schema used when passages are
// mirrored into an ANN index.
package vector

import (
	"context"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

const ClassName = "PassageChunk"

// SchemaClient defines the Weaviate schema operations EnsureSchema needs.
type SchemaClient interface {
	ClassExists(ctx context.Context, className string) (bool, error)
	CreateClass(ctx context.Context, class *models.Class) error
	GetClass(ctx context.Context, className string) (*models.Class, error)
	AddProperty(ctx context.Context, className string, property *models.Property) error
}

// Properties lists the passage fields stored next to each vector.
func Properties() []*models.Property {
	return []*models.Property{
		{Name: "chunkId", DataType: []string{"text"}, Description: "stable chunk id"},
		{Name: "documentId", DataType: []string{"text"}, Description: "stored document id"},
		{Name: "documentName", DataType: []string{"text"}},
		{Name: "chunkIndex", DataType: []string{"int"}},
		{Name: "label", DataType: []string{"text"}},
		{Name: "content", DataType: []string{"text"}},
		{Name: "provider", DataType: []string{"text"}},
	}
}

// EnsureSchema creates className when missing, or adds any properties an
// older class lacks. Vectors are always supplied by the caller.
func EnsureSchema(ctx context.Context, client SchemaClient, className string) error {
	exists, err := client.ClassExists(ctx, className)
	if err != nil {
		return err
	}

	properties := Properties()

	if !exists {
		return client.CreateClass(ctx, &models.Class{
			Class:             className,
			Description:       "An embedded passage of an ingested source document",
			Vectorizer:        "none",
			VectorIndexConfig: map[string]interface{}{"distance": "cosine"},
			Properties:        properties,
		})
	}

	class, err := client.GetClass(ctx, className)
	if err != nil {
		return err
	}

	existingProps := make(map[string]bool)
	for _, p := range class.Properties {
		existingProps[p.Name] = true
	}

	for _, p := range properties {
		if !existingProps[p.Name] {
			if err := client.AddProperty(ctx, className, p); err != nil {
				return err
			}
		}
	}

	return nil
}

// ClientSchema adapts a Weaviate client to SchemaClient.
type ClientSchema struct {
	client *weaviate.Client
}

func NewClientSchema(client *weaviate.Client) *ClientSchema {
	return &ClientSchema{client: client}
}

func (c *ClientSchema) ClassExists(ctx context.Context, className string) (bool, error) {
	return c.client.Schema().ClassExistenceChecker().WithClassName(className).Do(ctx)
}

func (c *ClientSchema) CreateClass(ctx context.Context, class *models.Class) error {
	return c.client.Schema().ClassCreator().WithClass(class).Do(ctx)
}

func (c *ClientSchema) GetClass(ctx context.Context, className string) (*models.Class, error) {
	return c.client.Schema().ClassGetter().WithClassName(className).Do(ctx)
}

func (c *ClientSchema) AddProperty(ctx context.Context, className string, property *models.Property) error {
	return c.client.Schema().PropertyCreator().WithClassName(className).WithProperty(property).Do(ctx)
}
