package docstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doxa-platform/triage/pkg/config"
)

type nopEmbedder struct{}

func (nopEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{0, 0, 0}, nil
}

func TestValidateBackendConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     BackendConfig
		wantErr string
	}{
		{
			name: "valid chroma",
			cfg: BackendConfig{
				Type:       ChromaBackendType,
				Endpoint:   "http://localhost:8001",
				Collection: "docs",
			},
		},
		{
			name: "valid milvus",
			cfg: BackendConfig{
				Type:       MilvusBackendType,
				Endpoint:   "127.0.0.1:19530",
				Collection: "docs",
				Embedder:   nopEmbedder{},
			},
		},
		{
			name:    "missing type",
			cfg:     BackendConfig{Endpoint: "x", Collection: "y"},
			wantErr: "type not specified",
		},
		{
			name:    "missing endpoint",
			cfg:     BackendConfig{Type: ChromaBackendType, Collection: "docs"},
			wantErr: "endpoint not specified",
		},
		{
			name:    "missing collection",
			cfg:     BackendConfig{Type: ChromaBackendType, Endpoint: "http://localhost:8001"},
			wantErr: "collection not specified",
		},
		{
			name: "milvus without embedder",
			cfg: BackendConfig{
				Type:       MilvusBackendType,
				Endpoint:   "127.0.0.1:19530",
				Collection: "docs",
			},
			wantErr: "requires an embedder",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBackendConfig(tt.cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewBackend_RejectsUnknownType(t *testing.T) {
	_, err := NewBackend(BackendConfig{
		Type:       BackendType("pinecone"),
		Endpoint:   "x",
		Collection: "y",
	})
	require.Error(t, err)
}

func TestConfigFromPipeline(t *testing.T) {
	cfg := &config.PipelineConfig{}
	cfg.DocStore = config.DocStoreConfig{
		Backend:    "milvus",
		Endpoint:   "127.0.0.1:19530",
		Collection: "doxa_docs",
	}
	cfg.Embedding = config.EmbeddingConfig{
		Endpoint: "http://localhost:8002/v1",
		Model:    "bge-m3",
	}

	bc := ConfigFromPipeline(cfg)
	assert.Equal(t, MilvusBackendType, bc.Type)
	assert.Equal(t, "doxa_docs", bc.Collection)
	require.NotNil(t, bc.Embedder, "milvus config must carry an embedder")

	cfg.DocStore.Backend = "chroma"
	bc = ConfigFromPipeline(cfg)
	assert.Nil(t, bc.Embedder, "chroma embeds server-side")
}
