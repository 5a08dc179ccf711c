package docstore

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIEmbedderOptions configures the embedding client.
type OpenAIEmbedderOptions struct {
	Endpoint string
	Model    string
}

// OpenAIEmbedder computes embeddings through an OpenAI-compatible
// embedding endpoint.
type OpenAIEmbedder struct {
	client openai.EmbeddingService
	model  string
}

// NewOpenAIEmbedder builds an embedder for the given endpoint and model.
func NewOpenAIEmbedder(options OpenAIEmbedderOptions) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		client: openai.NewEmbeddingService(option.WithBaseURL(options.Endpoint)),
		model:  options.Model,
	}
}

// Embed returns the vector for a single input text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := e.client.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: []string{text}},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("error creating embedding: %w", err)
	}
	if len(res.Data) == 0 {
		return nil, fmt.Errorf("embedding service returned no data")
	}
	vec := make([]float32, len(res.Data[0].Embedding))
	for i, v := range res.Data[0].Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

var _ Embedder = (*OpenAIEmbedder)(nil)
