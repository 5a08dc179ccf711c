// Package docstore provides the knowledge-base retrieval backends used
// by the feedback loop. Two implementations exist: Chroma (server-side
// embeddings via the collection's embedding function) and Milvus
// (client-side embeddings through the embedding service).
package docstore

import "context"

// Document is one retrieved knowledge-base entry.
type Document struct {
	Content  string
	Metadata map[string]interface{}
}

// Backend retrieves the topK most relevant documents for a query text.
type Backend interface {
	Query(ctx context.Context, queryText string, topK int) ([]Document, error)
}

// BackendType selects the store implementation.
type BackendType string

const (
	ChromaBackendType BackendType = "chroma"
	MilvusBackendType BackendType = "milvus"
)

// Embedder turns text into a vector for backends that need client-side
// embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
