package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"

	"github.com/doxa-platform/triage/pkg/observability/logging"
)

var (
	// ErrSafetyBlocked is returned when the model refused to answer and
	// produced no usable text. The caller must escalate, never retry.
	ErrSafetyBlocked = errors.New("generation blocked by the model safety filter")

	// ErrEmptyCompletion is returned when the model stopped normally but
	// produced no content.
	ErrEmptyCompletion = errors.New("model returned an empty completion")
)

// FinishReason is the normalized outcome of a generation call.
type FinishReason string

const (
	FinishComplete  FinishReason = "complete"
	FinishTruncated FinishReason = "length-truncated"
	FinishAnomalous FinishReason = "anomalous"
)

// GenerationResult carries a generated answer with its finish state.
// Truncated and anomalous completions are still returned: a partial
// answer with a flag beats no answer, and the confidence layer accounts
// for it downstream.
type GenerationResult struct {
	Text         string
	FinishReason FinishReason
}

// Generator produces the final user-facing answer.
type Generator interface {
	Generate(ctx context.Context, system, user string) (*GenerationResult, error)
}

// Generate calls the generation model with the configured temperature
// and token budget and maps the provider finish reason onto the
// pipeline's vocabulary.
func (c *Client) Generate(ctx context.Context, system, user string) (*GenerationResult, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.options.GenerationModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature:         openai.Float(c.options.Temperature),
		MaxCompletionTokens: openai.Int(c.options.MaxTokens),
	})
	if err != nil {
		return nil, fmt.Errorf("error calling chat completions: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned")
	}

	choice := resp.Choices[0]
	return interpretChoice(choice.Message.Content, choice.FinishReason)
}

// interpretChoice maps a provider completion onto a GenerationResult.
func interpretChoice(content, finishReason string) (*GenerationResult, error) {
	text := strings.TrimSpace(content)

	switch finishReason {
	case "content_filter":
		logging.Warnf("Generation blocked by content filter")
		return nil, ErrSafetyBlocked
	case "length":
		if text == "" {
			return nil, ErrEmptyCompletion
		}
		logging.Warnf("Generation truncated at the token budget (%d chars kept)", len(text))
		return &GenerationResult{Text: text, FinishReason: FinishTruncated}, nil
	case "stop", "":
		if text == "" {
			return nil, ErrEmptyCompletion
		}
		return &GenerationResult{Text: text, FinishReason: FinishComplete}, nil
	default:
		if text == "" {
			return nil, fmt.Errorf("completion finished with %q and no content", finishReason)
		}
		logging.Warnf("Unexpected finish reason %q, keeping the text", finishReason)
		return &GenerationResult{Text: text, FinishReason: FinishAnomalous}, nil
	}
}

var _ Generator = (*Client)(nil)
