// ABOUTME: OpenAI-backed implementation of the engine Client interface
// ABOUTME: Streams chat completions and probes model liveness via the models API

package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient implements Client against the OpenAI API or any
// OpenAI-compatible endpoint.
type OpenAIClient struct {
	client *openai.Client
	logger *slog.Logger
}

// NewOpenAIClient creates a client for the given API key. baseURL overrides
// the endpoint when non-empty.
func NewOpenAIClient(apiKey, baseURL string) *OpenAIClient {
	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientConfig),
		logger: slog.Default().With("component", "engine"),
	}
}

// Stream starts a streaming chat completion. The returned channel is closed
// after the terminal done or error event.
func (c *OpenAIClient) Stream(ctx context.Context, model string, turns []Turn) (<-chan Event, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(turns))
	for _, turn := range turns {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    turn.Role,
			Content: turn.Content,
		})
	}

	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
		Stream:   true,
		StreamOptions: &openai.StreamOptions{
			IncludeUsage: true,
		},
	}

	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("creating completion stream: %w", err)
	}

	events := make(chan Event)

	go func() {
		defer close(events)
		defer stream.Close()

		var usage *Usage

		for {
			response, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				events <- Event{Type: EventDone, Usage: usage}
				return
			}
			if err != nil {
				if ctx.Err() != nil {
					err = ctx.Err()
				}
				events <- Event{Type: EventError, Err: err}
				return
			}

			// The usage-bearing chunk has no choices
			if response.Usage != nil {
				usage = &Usage{
					PromptTokens:     response.Usage.PromptTokens,
					CompletionTokens: response.Usage.CompletionTokens,
					TotalTokens:      response.Usage.TotalTokens,
				}
			}

			if len(response.Choices) > 0 {
				content := response.Choices[0].Delta.Content
				if content != "" {
					events <- Event{Type: EventDelta, Delta: content}
				}
			}
		}
	}()

	return events, nil
}

// Ping checks that the model is retrievable from the backing API.
func (c *OpenAIClient) Ping(ctx context.Context, model string) error {
	if _, err := c.client.GetModel(ctx, model); err != nil {
		c.logger.Debug("model probe failed", "model", model, "error", err)
		return fmt.Errorf("%w: %s", ErrModelUnavailable, model)
	}
	return nil
}

var _ Client = (*OpenAIClient)(nil)
