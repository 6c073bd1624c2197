package analyst

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/LambaLab/abudhabi-sales-explorer/pkg/metrics"
)

// LLMClient is the interface for interacting with an LLM.
type LLMClient interface {
	// Complete sends a prompt and returns the full response text.
	Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int64) (string, error)

	// Stream sends a prompt and delivers response text incrementally
	// through onText, returning the concatenated full text.
	Stream(ctx context.Context, systemPrompt, userPrompt string, maxTokens int64, onText func(string)) (string, error)
}

// AnthropicClient implements LLMClient using the Anthropic API.
type AnthropicClient struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewAnthropicClient creates a new Anthropic-based LLM client. The API key
// is read from the environment by the SDK.
func NewAnthropicClient(model anthropic.Model) *AnthropicClient {
	return &AnthropicClient{
		client: anthropic.NewClient(),
		model:  model,
	}
}

func (c *AnthropicClient) Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int64) (string, error) {
	start := time.Now()
	slog.Debug("Anthropic API call starting", "model", c.model, "maxTokens", maxTokens, "userPromptLen", len(userPrompt))

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Type: "text", Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})

	duration := time.Since(start)
	metrics.RecordAnthropicRequest("messages", duration, err)
	if err != nil {
		slog.Error("Anthropic API call failed", "duration", duration, "error", err)
		return "", fmt.Errorf("anthropic API error: %w", err)
	}
	slog.Debug("Anthropic API call completed", "duration", duration, "stopReason", msg.StopReason)

	for _, block := range msg.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in response")
}

func (c *AnthropicClient) Stream(ctx context.Context, systemPrompt, userPrompt string, maxTokens int64, onText func(string)) (string, error) {
	start := time.Now()

	stream := c.client.Messages.NewStreaming(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Type: "text", Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})

	var full string
	for stream.Next() {
		event := stream.Current()
		if event.Type == "content_block_delta" {
			delta := event.AsContentBlockDelta()
			if delta.Delta.Type == "text_delta" && delta.Delta.Text != "" {
				full += delta.Delta.Text
				onText(delta.Delta.Text)
			}
		}
	}

	duration := time.Since(start)
	err := stream.Err()
	metrics.RecordAnthropicRequest("messages/stream", duration, err)
	if err != nil {
		slog.Error("Anthropic streaming call failed", "duration", duration, "error", err)
		return full, fmt.Errorf("anthropic API error: %w", err)
	}
	slog.Debug("Anthropic streaming call completed", "duration", duration, "textLen", len(full))
	return full, nil
}
