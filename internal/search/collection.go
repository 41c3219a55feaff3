package search

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	wmodels "github.com/weaviate/weaviate/entities/models"
)

// batchSize is the number of documents uploaded per batch call.
const batchSize = 100

// collectionSchema returns the class definition for one repository's
// isolated collection. BM25 over content; no vectorizer required.
func collectionSchema(name string) *wmodels.Class {
	indexFilterable := true
	return &wmodels.Class{
		Class:       name,
		Description: "Source passages for one registered repository",
		Vectorizer:  "none",
		Properties: []*wmodels.Property{
			{
				Name:            "path",
				DataType:        []string{"text"},
				Description:     "Repository-relative file path",
				IndexFilterable: &indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:         "chunk",
				DataType:     []string{"int"},
				Description:  "Chunk index within the file",
			},
			{
				Name:         "content",
				DataType:     []string{"text"},
				Description:  "Passage text",
				Tokenization: "word",
			},
			{
				Name:            "language",
				DataType:        []string{"text"},
				Description:     "Detected source language",
				IndexFilterable: &indexFilterable,
				Tokenization:    "field",
			},
		},
	}
}

// CollectionExists reports whether the class is present.
func (c *Client) CollectionExists(ctx context.Context, name string) (bool, error) {
	_, err := c.weaviate.Schema().ClassGetter().WithClassName(name).Do(ctx)
	if err != nil {
		// The client surfaces a 404 as an error; treat any lookup failure
		// on a missing class as absence and let creation report real faults.
		return false, nil
	}
	return true, nil
}

// CreateCollection creates the class if it does not exist. Idempotent.
func (c *Client) CreateCollection(ctx context.Context, name string) error {
	exists, err := c.CollectionExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if err := c.weaviate.Schema().ClassCreator().WithClass(collectionSchema(name)).Do(ctx); err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	c.logger.WithField("collection", name).Info("search collection created")
	return nil
}

// DeleteCollection tears down the class and everything in it.
func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	if err := c.weaviate.Schema().ClassDeleter().WithClassName(name).Do(ctx); err != nil {
		return fmt.Errorf("delete collection %s: %w", name, err)
	}
	c.logger.WithField("collection", name).Info("search collection deleted")
	return nil
}

// IndexDocuments batch-uploads documents into the named collection and
// returns how many the service accepted.
func (c *Client) IndexDocuments(ctx context.Context, name string, docs []Document) (int, error) {
	indexed := 0
	for i := 0; i < len(docs); i += batchSize {
		if err := ctx.Err(); err != nil {
			return indexed, err
		}
		end := i + batchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[i:end]

		objects := make([]*wmodels.Object, len(batch))
		for j, doc := range batch {
			objects[j] = &wmodels.Object{
				Class: name,
				Properties: map[string]interface{}{
					"path":     doc.Path,
					"chunk":    doc.Chunk,
					"content":  doc.Content,
					"language": doc.Language,
				},
			}
		}

		result, err := c.weaviate.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
		if err != nil {
			return indexed, fmt.Errorf("batch upload to %s: %w", name, err)
		}
		for _, obj := range result {
			if obj.Result != nil && obj.Result.Errors == nil {
				indexed++
			}
		}
	}
	c.logger.WithFields(logrus.Fields{
		"collection": name,
		"indexed":    indexed,
		"total":      len(docs),
	}).Info("documents indexed")
	return indexed, nil
}

// Search runs a BM25 query against the named collection and returns topK
// passages in the order the service ranked them.
func (c *Client) Search(ctx context.Context, name, query string, topK int) ([]Passage, error) {
	if topK <= 0 {
		topK = 5
	}

	fields := []graphql.Field{
		{Name: "path"},
		{Name: "chunk"},
		{Name: "content"},
	}
	result, err := c.weaviate.GraphQL().Get().
		WithClassName(name).
		WithFields(fields...).
		WithBM25(c.weaviate.GraphQL().Bm25ArgBuilder().WithQuery(query)).
		WithLimit(topK).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", name, err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("search %s: %s", name, result.Errors[0].Message)
	}

	data, ok := result.Data["Get"].(map[string]interface{})
	if !ok {
		return []Passage{}, nil
	}
	objects, ok := data[name].([]interface{})
	if !ok {
		return []Passage{}, nil
	}

	passages := make([]Passage, 0, len(objects))
	for _, obj := range objects {
		m, ok := obj.(map[string]interface{})
		if !ok {
			continue
		}
		p := Passage{}
		if v, ok := m["path"].(string); ok {
			p.Path = v
		}
		if v, ok := m["chunk"].(float64); ok {
			p.Chunk = int(v)
		}
		if v, ok := m["content"].(string); ok {
			p.Content = v
		}
		passages = append(passages, p)
	}
	return passages, nil
}
