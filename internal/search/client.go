// Package search wraps the Weaviate semantic-search service. Each
// registered repository gets its own isolated collection; this package only
// guarantees calls are scoped to the right collection and that results come
// back in the service's relevance order, unmodified.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
)

// Document is one indexed chunk of a repository file.
type Document struct {
	Path     string
	Chunk    int
	Content  string
	Language string
}

// Passage is one ranked search result, in service relevance order.
type Passage struct {
	Path    string `json:"path"`
	Chunk   int    `json:"chunk"`
	Content string `json:"content"`
}

// Client talks to one Weaviate instance.
type Client struct {
	weaviate *weaviate.Client
	logger   *logrus.Logger
}

// NewClient connects to Weaviate at url (scheme optional, http assumed).
func NewClient(url string, logger *logrus.Logger) (*Client, error) {
	cfg := weaviate.Config{Host: url, Scheme: "http"}
	if strings.HasPrefix(url, "https://") {
		cfg.Scheme = "https"
		cfg.Host = strings.TrimPrefix(url, "https://")
	} else if strings.HasPrefix(url, "http://") {
		cfg.Host = strings.TrimPrefix(url, "http://")
	}

	client, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}
	return &Client{weaviate: client, logger: logger}, nil
}

// Ready checks connectivity.
func (c *Client) Ready(ctx context.Context) error {
	ready, err := c.weaviate.Misc().ReadyChecker().Do(ctx)
	if err != nil {
		return fmt.Errorf("weaviate readiness check: %w", err)
	}
	if !ready {
		return fmt.Errorf("weaviate is not ready")
	}
	return nil
}
