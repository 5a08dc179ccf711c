package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `
inference:
  endpoint: http://localhost:8000/v1
  chat_model: mistral-small
docstore:
  backend: chroma
  endpoint: http://localhost:8001
  collection: doxa_docs
`

func TestParse_AppliesDefaults(t *testing.T) {
	cfg, err := Parse(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Loop.MaxRetries)
	assert.Equal(t, 6, cfg.Loop.BaseResults)
	assert.Equal(t, 15, cfg.Loop.MaxResults)
	assert.Equal(t, int64(10000), cfg.Tracing.TargetLatencyMs)
	assert.Equal(t, int64(5000), cfg.Tracing.IdealLatencyMs)
	assert.Equal(t, "support@doxa.dz", cfg.Escalation.SupportContact)
	assert.Equal(t, "file", cfg.Audit.Backend)
	assert.Equal(t, 30, cfg.Inference.TimeoutSeconds)
}

func TestParse_RejectsMissingDocStore(t *testing.T) {
	_, err := Parse(writeConfig(t, `
inference:
  endpoint: http://localhost:8000/v1
  chat_model: mistral-small
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "docstore.backend")
}

func TestParse_RejectsUnknownBackend(t *testing.T) {
	_, err := Parse(writeConfig(t, `
inference:
  endpoint: http://localhost:8000/v1
  chat_model: mistral-small
docstore:
  backend: pinecone
  endpoint: http://localhost:8001
  collection: docs
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not supported")
}

func TestParse_MilvusRequiresEmbedding(t *testing.T) {
	_, err := Parse(writeConfig(t, `
inference:
  endpoint: http://localhost:8000/v1
  chat_model: mistral-small
docstore:
  backend: milvus
  endpoint: 127.0.0.1:19530
  collection: docs
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding.endpoint")
}

func TestParse_BaseResultsAboveCapRejected(t *testing.T) {
	_, err := Parse(writeConfig(t, minimalConfig+`
loop:
  base_results: 20
  max_results: 15
`))
	require.Error(t, err)
}
