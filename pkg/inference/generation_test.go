package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpretChoice(t *testing.T) {
	tests := []struct {
		name         string
		content      string
		finishReason string
		wantText     string
		wantFinish   FinishReason
		wantErr      error
	}{
		{
			name:         "normal stop",
			content:      "Voici la marche à suivre.",
			finishReason: "stop",
			wantText:     "Voici la marche à suivre.",
			wantFinish:   FinishComplete,
		},
		{
			name:         "missing finish reason treated as stop",
			content:      "ok",
			finishReason: "",
			wantText:     "ok",
			wantFinish:   FinishComplete,
		},
		{
			name:         "content filter surfaces sentinel",
			content:      "",
			finishReason: "content_filter",
			wantErr:      ErrSafetyBlocked,
		},
		{
			name:         "truncation keeps partial text",
			content:      "Première partie de la réponse",
			finishReason: "length",
			wantText:     "Première partie de la réponse",
			wantFinish:   FinishTruncated,
		},
		{
			name:         "truncation with no text is an error",
			content:      "   ",
			finishReason: "length",
			wantErr:      ErrEmptyCompletion,
		},
		{
			name:         "empty stop completion is an error",
			content:      "",
			finishReason: "stop",
			wantErr:      ErrEmptyCompletion,
		},
		{
			name:         "unknown reason keeps text but flags it",
			content:      "réponse",
			finishReason: "tool_calls",
			wantText:     "réponse",
			wantFinish:   FinishAnomalous,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := interpretChoice(tt.content, tt.finishReason)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, res.Text)
			assert.Equal(t, tt.wantFinish, res.FinishReason)
		})
	}
}

func TestInterpretChoice_UnknownReasonNoContent(t *testing.T) {
	_, err := interpretChoice("", "weird_code")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weird_code")
}

func TestOptionsFromConfig_GenerationModelFallsBack(t *testing.T) {
	opts := OptionsFromConfig(configWithModels("mistral-small", ""))
	assert.Equal(t, "mistral-small", opts.GenerationModel)

	opts = OptionsFromConfig(configWithModels("mistral-small", "mistral-large"))
	assert.Equal(t, "mistral-large", opts.GenerationModel)
}
