package inference

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/doxa-platform/triage/pkg/config"
)

func configWithModels(chat, generation string) config.InferenceConfig {
	return config.InferenceConfig{
		Endpoint:        "http://localhost:8000/v1",
		ChatModel:       chat,
		GenerationModel: generation,
		MaxTokens:       1024,
		Temperature:     0.2,
		TimeoutSeconds:  30,
	}
}

func TestOptionsFromConfig_MapsFields(t *testing.T) {
	opts := OptionsFromConfig(configWithModels("mistral-small", "mistral-large"))

	assert.Equal(t, "http://localhost:8000/v1", opts.Endpoint)
	assert.Equal(t, "mistral-small", opts.ChatModel)
	assert.Equal(t, int64(1024), opts.MaxTokens)
	assert.InDelta(t, 0.2, opts.Temperature, 1e-9)
	assert.Equal(t, 30*time.Second, opts.Timeout)
}
