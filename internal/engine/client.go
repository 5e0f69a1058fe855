// ABOUTME: Completion engine client abstraction for chatd
// ABOUTME: Defines Turn, Event, Usage types and the Client streaming interface

package engine

import (
	"context"
	"errors"
)

// ErrModelUnavailable is returned by Ping when the model cannot be served
var ErrModelUnavailable = errors.New("model unavailable")

// Role constants for conversation turns
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is a single entry in the context window sent to the engine.
type Turn struct {
	Role    string
	Content string
}

// EventType identifies the kind of stream event
type EventType string

const (
	EventDelta EventType = "delta"
	EventDone  EventType = "done"
	EventError EventType = "error"
)

// Usage reports token consumption for a completed generation.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// Event is one element of a completion stream. A stream is a sequence of
// delta events terminated by exactly one done or error event.
type Event struct {
	Type  EventType
	Delta string
	Usage *Usage
	Err   error
}

// Client generates streaming completions against a model.
type Client interface {
	// Stream starts a completion for the given context window. Events are
	// delivered on the returned channel, which is closed after the terminal
	// event. Cancelling ctx aborts the stream.
	Stream(ctx context.Context, model string, turns []Turn) (<-chan Event, error)

	// Ping checks whether the named model is currently servable.
	Ping(ctx context.Context, model string) error
}
