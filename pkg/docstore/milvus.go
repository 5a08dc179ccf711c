package docstore

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/doxa-platform/triage/pkg/observability/logging"
)

// MilvusStoreOptions configures the Milvus backend.
type MilvusStoreOptions struct {
	Endpoint   string // e.g. "127.0.0.1:19530"
	Collection string
	Embedder   Embedder
}

// MilvusStore queries a Milvus collection with client-side embeddings.
type MilvusStore struct {
	client     client.Client
	collection string
	embedder   Embedder
}

// NewMilvusStore connects to Milvus and loads the collection into memory.
func NewMilvusStore(options MilvusStoreOptions) (*MilvusStore, error) {
	ctx := context.Background()

	cli, err := client.NewGrpcClient(ctx, options.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("milvus connect error: %w", err)
	}
	if err := cli.LoadCollection(ctx, options.Collection, false); err != nil {
		logging.Warnf("Could not load Milvus collection %q yet: %v", options.Collection, err)
	}
	logging.Debugf("Connected to Milvus at %s", options.Endpoint)
	return &MilvusStore{
		client:     cli,
		collection: options.Collection,
		embedder:   options.Embedder,
	}, nil
}

// Query embeds queryText and runs a vector search over the collection.
func (m *MilvusStore) Query(ctx context.Context, queryText string, topK int) ([]Document, error) {
	vec, err := m.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("embedding query failed: %w", err)
	}

	sp, err := entity.NewIndexFlatSearchParam()
	if err != nil {
		return nil, fmt.Errorf("building search params failed: %w", err)
	}
	results, err := m.client.Search(ctx, m.collection, nil, "",
		[]string{"content"},
		[]entity.Vector{entity.FloatVector(vec)},
		"vector", entity.L2, topK, sp)
	if err != nil {
		return nil, fmt.Errorf("milvus search failed: %w", err)
	}

	var docs []Document
	for _, sr := range results {
		col, ok := sr.Fields.GetColumn("content").(*entity.ColumnVarChar)
		if !ok {
			continue
		}
		for _, content := range col.Data() {
			docs = append(docs, Document{Content: content})
		}
	}
	return docs, nil
}

// EnsureCollection creates the collection schema when it does not exist
// yet. Used by the offline ingestion tooling, not by the query path.
func (m *MilvusStore) EnsureCollection(ctx context.Context, dim int) error {
	has, err := m.client.HasCollection(ctx, m.collection)
	if err != nil {
		return err
	}
	if has {
		logging.Infof("Collection %s already exists", m.collection)
		return nil
	}

	schema := &entity.Schema{
		CollectionName: m.collection,
		Description:    "Support knowledge-base embeddings",
		AutoID:         false,
		Fields: []*entity.Field{
			{
				Name:       "id",
				DataType:   entity.FieldTypeInt64,
				PrimaryKey: true,
				AutoID:     false,
			},
			{
				Name:     "vector",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", dim),
				},
			},
			{
				Name:     "content",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "4096",
				},
			},
		},
	}
	if err := m.client.CreateCollection(ctx, schema, 1); err != nil {
		return fmt.Errorf("error creating Milvus collection: %w", err)
	}
	logging.Infof("Created collection %s", m.collection)
	return nil
}
