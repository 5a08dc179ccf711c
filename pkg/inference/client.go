// Package inference wraps the OpenAI-compatible endpoint behind two
// narrow surfaces: Inferencer for short deterministic calls (labels,
// verdicts, structured JSON) and Generator for user-facing answers.
package inference

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/doxa-platform/triage/pkg/config"
)

// Inferencer is the call shape every agent in the pipeline depends on:
// one system prompt, one user message, one text completion back.
type Inferencer interface {
	Infer(ctx context.Context, system, user string) (string, error)
}

// NewClientOptions configures a Client.
type NewClientOptions struct {
	Endpoint        string
	APIKey          string
	ChatModel       string
	GenerationModel string
	MaxTokens       int64
	Temperature     float64
	Timeout         time.Duration
}

// OptionsFromConfig maps the inference config section onto client options.
func OptionsFromConfig(cfg config.InferenceConfig) NewClientOptions {
	genModel := cfg.GenerationModel
	if genModel == "" {
		genModel = cfg.ChatModel
	}
	return NewClientOptions{
		Endpoint:        cfg.Endpoint,
		APIKey:          cfg.APIKey,
		ChatModel:       cfg.ChatModel,
		GenerationModel: genModel,
		MaxTokens:       cfg.MaxTokens,
		Temperature:     cfg.Temperature,
		Timeout:         time.Duration(cfg.TimeoutSeconds) * time.Second,
	}
}

// Client talks to one OpenAI-compatible endpoint.
type Client struct {
	client  openai.Client
	options NewClientOptions
}

// NewClient builds a Client for the configured endpoint.
func NewClient(options NewClientOptions) *Client {
	opts := []option.RequestOption{option.WithBaseURL(options.Endpoint)}
	if options.APIKey != "" {
		opts = append(opts, option.WithAPIKey(options.APIKey))
	}
	return &Client{
		client:  openai.NewClient(opts...),
		options: options,
	}
}

// Infer sends one system+user exchange to the chat model at temperature
// zero and returns the trimmed completion text. Used for classification
// labels, evaluation verdicts and structured-JSON analysis.
func (c *Client) Infer(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.options.ChatModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature:         openai.Float(0.0),
		MaxCompletionTokens: openai.Int(512),
	})
	if err != nil {
		return "", fmt.Errorf("error calling chat completions: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.options.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.options.Timeout)
}

var _ Inferencer = (*Client)(nil)
