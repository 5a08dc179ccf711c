// Package config holds the YAML-backed configuration for the support
// pipeline and the global accessors used across packages.
package config

import "fmt"

// PipelineConfig is the root configuration structure.
type PipelineConfig struct {
	// Inference configures the shared chat-completion client used for
	// classification, evaluation, analysis, composition and generation.
	Inference InferenceConfig `yaml:"inference"`

	// Embedding configures the embedding service used by vector backends
	// that need client-side vectors (Milvus).
	Embedding EmbeddingConfig `yaml:"embedding"`

	// DocStore configures the knowledge-base vector store.
	DocStore DocStoreConfig `yaml:"docstore"`

	// Loop configures the retrieval-evaluation feedback loop.
	Loop LoopConfig `yaml:"loop"`

	// Escalation configures the human hand-off surface.
	Escalation EscalationConfig `yaml:"escalation"`

	// Tracing configures latency targets for the pipeline tracer.
	Tracing TracingConfig `yaml:"tracing"`

	// Audit configures the structured audit log.
	Audit AuditConfig `yaml:"audit"`

	// API configures the HTTP entry point.
	API APIConfig `yaml:"api"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`
}

// InferenceConfig configures the chat-completion endpoint.
type InferenceConfig struct {
	// Endpoint is the OpenAI-compatible base URL.
	Endpoint string `yaml:"endpoint"`

	// APIKey is the bearer token, if the endpoint requires one.
	APIKey string `yaml:"api_key,omitempty"`

	// ChatModel is the model used for all single-token and free-form calls.
	ChatModel string `yaml:"chat_model"`

	// GenerationModel is the model used for answer generation.
	// Falls back to ChatModel when empty.
	GenerationModel string `yaml:"generation_model,omitempty"`

	// MaxTokens caps generated answers.
	// Default: 1024
	MaxTokens int64 `yaml:"max_tokens,omitempty"`

	// Temperature for generation. Default: 0.2
	Temperature float64 `yaml:"temperature,omitempty"`

	// TimeoutSeconds bounds every external model call. Default: 30
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty"`
}

// EmbeddingConfig configures the embedding service.
type EmbeddingConfig struct {
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
}

// DocStoreConfig configures the vector document store.
type DocStoreConfig struct {
	// Backend selects the implementation: "chroma" or "milvus".
	Backend string `yaml:"backend"`

	Endpoint   string `yaml:"endpoint"`
	Collection string `yaml:"collection"`

	// Chroma-specific scoping.
	Tenant   string `yaml:"tenant,omitempty"`
	Database string `yaml:"database,omitempty"`
}

// LoopConfig configures the feedback loop bounds.
type LoopConfig struct {
	// MaxRetries bounds retrieval attempts. Default: 3
	MaxRetries int `yaml:"max_retries,omitempty"`

	// BaseResults is the result-count budget on the first attempt.
	// Default: 6
	BaseResults int `yaml:"base_results,omitempty"`

	// MaxResults caps the per-attempt result-count budget. Default: 15
	MaxResults int `yaml:"max_results,omitempty"`
}

// EscalationConfig configures the human hand-off surface.
type EscalationConfig struct {
	// SupportContact appears in user-facing escalation messages.
	// Default: support@doxa.dz
	SupportContact string `yaml:"support_contact,omitempty"`
}

// TracingConfig configures pipeline latency targets.
type TracingConfig struct {
	// TargetLatencyMs is the SLO bound. Default: 10000
	TargetLatencyMs int64 `yaml:"target_latency_ms,omitempty"`

	// IdealLatencyMs is the aspirational bound. Default: 5000
	IdealLatencyMs int64 `yaml:"ideal_latency_ms,omitempty"`
}

// AuditConfig configures the structured audit log.
type AuditConfig struct {
	Enabled bool `yaml:"enabled"`

	// Backend selects the store: "file" (default) or "redis".
	Backend string `yaml:"backend,omitempty"`

	// Dir is the directory for the file backend. Default: logs/query_results
	Dir string `yaml:"dir,omitempty"`

	Redis RedisAuditConfig `yaml:"redis,omitempty"`

	// Async enables non-blocking audit writes through a buffered writer.
	Async AsyncAuditConfig `yaml:"async,omitempty"`
}

// RedisAuditConfig configures the Redis audit backend.
type RedisAuditConfig struct {
	Address    string `yaml:"address"`
	Database   int    `yaml:"database,omitempty"`
	Password   string `yaml:"password,omitempty"`
	KeyPrefix  string `yaml:"key_prefix,omitempty"`
	TTLSeconds int    `yaml:"ttl_seconds,omitempty"`
}

// AsyncAuditConfig configures the async audit writer.
type AsyncAuditConfig struct {
	Enabled         bool `yaml:"enabled"`
	BufferSize      int  `yaml:"buffer_size,omitempty"`
	FlushIntervalMs int  `yaml:"flush_interval_ms,omitempty"`
}

// APIConfig configures the HTTP server.
type APIConfig struct {
	Port int `yaml:"port,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Port int `yaml:"port,omitempty"`
}

// applyDefaults fills unset fields with their documented defaults.
func (c *PipelineConfig) applyDefaults() {
	if c.Inference.MaxTokens <= 0 {
		c.Inference.MaxTokens = 1024
	}
	if c.Inference.Temperature <= 0 {
		c.Inference.Temperature = 0.2
	}
	if c.Inference.TimeoutSeconds <= 0 {
		c.Inference.TimeoutSeconds = 30
	}
	if c.Loop.MaxRetries <= 0 {
		c.Loop.MaxRetries = 3
	}
	if c.Loop.BaseResults <= 0 {
		c.Loop.BaseResults = 6
	}
	if c.Loop.MaxResults <= 0 {
		c.Loop.MaxResults = 15
	}
	if c.Escalation.SupportContact == "" {
		c.Escalation.SupportContact = "support@doxa.dz"
	}
	if c.Tracing.TargetLatencyMs <= 0 {
		c.Tracing.TargetLatencyMs = 10000
	}
	if c.Tracing.IdealLatencyMs <= 0 {
		c.Tracing.IdealLatencyMs = 5000
	}
	if c.Audit.Backend == "" {
		c.Audit.Backend = "file"
	}
	if c.Audit.Dir == "" {
		c.Audit.Dir = "logs/query_results"
	}
	if c.API.Port <= 0 {
		c.API.Port = 8080
	}
	if c.Metrics.Port <= 0 {
		c.Metrics.Port = 9190
	}
}

// validate rejects configurations the pipeline cannot run with.
func (c *PipelineConfig) validate() error {
	if c.Inference.Endpoint == "" {
		return fmt.Errorf("inference.endpoint is required")
	}
	if c.Inference.ChatModel == "" {
		return fmt.Errorf("inference.chat_model is required")
	}
	switch c.DocStore.Backend {
	case "chroma", "milvus":
	case "":
		return fmt.Errorf("docstore.backend is required")
	default:
		return fmt.Errorf("docstore.backend %q is not supported", c.DocStore.Backend)
	}
	if c.DocStore.Endpoint == "" {
		return fmt.Errorf("docstore.endpoint is required")
	}
	if c.DocStore.Collection == "" {
		return fmt.Errorf("docstore.collection is required")
	}
	if c.DocStore.Backend == "milvus" && c.Embedding.Endpoint == "" {
		return fmt.Errorf("embedding.endpoint is required for the milvus backend")
	}
	if c.Loop.BaseResults > c.Loop.MaxResults {
		return fmt.Errorf("loop.base_results (%d) exceeds loop.max_results (%d)",
			c.Loop.BaseResults, c.Loop.MaxResults)
	}
	if c.Audit.Enabled && c.Audit.Backend == "redis" && c.Audit.Redis.Address == "" {
		return fmt.Errorf("audit.redis.address is required for the redis backend")
	}
	return nil
}
