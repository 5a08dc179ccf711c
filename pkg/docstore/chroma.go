package docstore

import (
	"context"
	"fmt"

	chroma "github.com/amikos-tech/chroma-go/pkg/api/v2"
	defaultef "github.com/amikos-tech/chroma-go/pkg/embeddings/default_ef"

	"github.com/doxa-platform/triage/pkg/observability/logging"
)

// ChromaStoreOptions configures the Chroma backend.
type ChromaStoreOptions struct {
	Endpoint   string
	Tenant     string
	Database   string
	Collection string
}

// ChromaStore queries a Chroma collection by text; the collection's
// embedding function computes vectors server-side.
type ChromaStore struct {
	client     chroma.Client
	collection string
}

// NewChromaStore connects to the Chroma server and verifies it answers.
func NewChromaStore(options ChromaStoreOptions) (*ChromaStore, error) {
	clientOptions := []chroma.ClientOption{
		chroma.WithBaseURL(options.Endpoint),
	}
	if options.Database != "" && options.Tenant != "" {
		clientOptions = append(clientOptions, chroma.WithDatabaseAndTenant(options.Database, options.Tenant))
	} else if options.Tenant != "" {
		clientOptions = append(clientOptions, chroma.WithTenant(options.Tenant))
	}
	c, err := chroma.NewHTTPClient(clientOptions...)
	if err != nil {
		return nil, fmt.Errorf("error creating chroma client: %w", err)
	}
	v, err := c.GetVersion(context.Background())
	if err != nil {
		return nil, fmt.Errorf("error getting chroma version: %w", err)
	}
	logging.Debugf("Initialized Chroma client, API version %s", v)
	return &ChromaStore{
		client:     c,
		collection: options.Collection,
	}, nil
}

// Query retrieves the topK documents closest to queryText.
func (c *ChromaStore) Query(ctx context.Context, queryText string, topK int) ([]Document, error) {
	ef, closeef, err := defaultef.NewDefaultEmbeddingFunction()
	if err != nil {
		return nil, fmt.Errorf("error creating embedding function: %w", err)
	}
	defer func() {
		if err := closeef(); err != nil {
			logging.Warnf("Error closing embedding function: %v", err)
		}
	}()

	coll, err := c.client.GetCollection(ctx, c.collection, chroma.WithEmbeddingFunctionGet(ef))
	if err != nil {
		return nil, fmt.Errorf("error getting collection %q: %w", c.collection, err)
	}
	qr, err := coll.Query(ctx,
		chroma.WithQueryTexts(queryText),
		chroma.WithNResults(topK),
	)
	if err != nil {
		return nil, fmt.Errorf("error querying collection %q: %w", c.collection, err)
	}

	groups := qr.GetDocumentsGroups()
	if len(groups) == 0 {
		return nil, nil
	}
	docs := make([]Document, 0, len(groups[0]))
	for _, document := range groups[0] {
		docs = append(docs, Document{Content: document.ContentString()})
	}
	return docs, nil
}
