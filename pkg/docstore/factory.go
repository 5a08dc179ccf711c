package docstore

import (
	"fmt"

	"github.com/doxa-platform/triage/pkg/config"
	"github.com/doxa-platform/triage/pkg/observability/logging"
)

// BackendConfig carries everything needed to build a store backend.
type BackendConfig struct {
	Type       BackendType
	Endpoint   string
	Collection string
	Tenant     string
	Database   string
	Embedder   Embedder
}

// ConfigFromPipeline maps the docstore config section onto a BackendConfig.
// The embedder is only built when the backend needs one.
func ConfigFromPipeline(cfg *config.PipelineConfig) BackendConfig {
	bc := BackendConfig{
		Type:       BackendType(cfg.DocStore.Backend),
		Endpoint:   cfg.DocStore.Endpoint,
		Collection: cfg.DocStore.Collection,
		Tenant:     cfg.DocStore.Tenant,
		Database:   cfg.DocStore.Database,
	}
	if bc.Type == MilvusBackendType {
		bc.Embedder = NewOpenAIEmbedder(OpenAIEmbedderOptions{
			Endpoint: cfg.Embedding.Endpoint,
			Model:    cfg.Embedding.Model,
		})
	}
	return bc
}

// NewBackend builds the configured store backend.
func NewBackend(cfg BackendConfig) (Backend, error) {
	if err := ValidateBackendConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid docstore config: %w", err)
	}
	switch cfg.Type {
	case ChromaBackendType:
		logging.Debugf("Creating chroma backend - Endpoint: %s, Collection: %s", cfg.Endpoint, cfg.Collection)
		return NewChromaStore(ChromaStoreOptions{
			Endpoint:   cfg.Endpoint,
			Tenant:     cfg.Tenant,
			Database:   cfg.Database,
			Collection: cfg.Collection,
		})
	case MilvusBackendType:
		logging.Debugf("Creating milvus backend - Endpoint: %s, Collection: %s", cfg.Endpoint, cfg.Collection)
		return NewMilvusStore(MilvusStoreOptions{
			Endpoint:   cfg.Endpoint,
			Collection: cfg.Collection,
			Embedder:   cfg.Embedder,
		})
	default:
		return nil, fmt.Errorf("docstore type %q is not implemented", cfg.Type)
	}
}

// ValidateBackendConfig rejects configurations a backend cannot run with.
func ValidateBackendConfig(cfg BackendConfig) error {
	switch cfg.Type {
	case ChromaBackendType, MilvusBackendType:
		if cfg.Endpoint == "" {
			return fmt.Errorf("endpoint not specified")
		}
		if cfg.Collection == "" {
			return fmt.Errorf("collection not specified")
		}
	default:
		return fmt.Errorf("docstore type not specified")
	}
	if cfg.Type == MilvusBackendType && cfg.Embedder == nil {
		return fmt.Errorf("milvus backend requires an embedder")
	}
	return nil
}
