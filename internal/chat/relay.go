// ABOUTME: Stream relay orchestrating one chat turn end to end
// ABOUTME: Quota gate, context build, engine select, stream forward, persist on completion

package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vaxassist/chatd/internal/engine"
	"github.com/vaxassist/chatd/internal/store"
)

// ErrEmptyText is returned when a send request carries no message text
var ErrEmptyText = errors.New("message text is required")

// defaultTitlePattern matches the placeholder title given to conversations
// created from an empty first message.
var defaultTitlePattern = regexp.MustCompile(`(?i)^new chat$`)

const (
	titleMaxLen     = 60
	defaultTitle    = "New Chat"
	persistTimeout  = 5 * time.Second
	historyPageSize = 0 // unlimited: the window builder trims by budget
)

// Relay drives one chat turn: admit through the quota gate, persist the user
// message, build the context window, select an engine, and stream the answer
// back while persisting it on completion.
//
// Key principle: record first, then act. The user message is durable before
// any network call to the engine, so a failed stream never loses user input.
type Relay struct {
	store        store.Store
	client       engine.Client
	selector     *engine.Selector
	gate         *QuotaGate
	systemPrompt string
	budget       int
	logger       *slog.Logger
}

// NewRelay creates a relay with the given collaborators.
func NewRelay(st store.Store, client engine.Client, selector *engine.Selector, gate *QuotaGate, systemPrompt string, budget int) *Relay {
	return &Relay{
		store:        st,
		client:       client,
		selector:     selector,
		gate:         gate,
		systemPrompt: systemPrompt,
		budget:       budget,
		logger:       slog.Default().With("component", "relay"),
	}
}

// SendRequest is one chat turn from an authenticated user.
type SendRequest struct {
	UserID         string
	ConversationID string // empty to start a new conversation
	Text           string
}

// EventType identifies the kind of relay event pushed to the caller
type EventType string

const (
	EventDelta EventType = "delta"
	EventDone  EventType = "done"
	EventError EventType = "error"
)

// DonePayload is the terminal metadata emitted after a completed turn.
type DonePayload struct {
	UserMessageID string        `json:"userMessageId"`
	BotMessageID  string        `json:"botMessageId"`
	ModelUsed     string        `json:"modelUsed"`
	Usage         *engine.Usage `json:"usage"`
	AttemptsLeft  int           `json:"attemptsLeft"`
}

// Event is one element of the relay's push stream. A stream is a sequence of
// delta events terminated by exactly one done or error event.
type Event struct {
	Type    EventType
	Delta   string
	Done    *DonePayload
	Message string // human-readable cause, error events only
}

// SendResponse carries the stream handle for one admitted turn.
type SendResponse struct {
	ConversationID string
	UserMessageID  string
	Model          string
	Events         <-chan Event
}

// Send runs one turn. Errors returned here occur before any streaming starts
// and map to conventional status codes: ErrEmptyText, ErrQuotaExceeded,
// store.ErrNotFound, or an internal failure. Once a SendResponse is
// returned, all further failures arrive in-band as error events.
func (r *Relay) Send(ctx context.Context, req *SendRequest) (*SendResponse, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, ErrEmptyText
	}

	if err := r.gate.Check(ctx, req.UserID); err != nil {
		return nil, err
	}

	conv, err := r.ensureConversation(ctx, req.UserID, req.ConversationID, text)
	if err != nil {
		return nil, err
	}

	// History is loaded before the new user message is appended so the
	// window builder sees it exactly once, as the new turn.
	history, err := r.store.GetConversationMessages(ctx, conv.ID, historyPageSize)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	userMsg := &store.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		Sender:         store.SenderUser,
		Text:           text,
		CreatedAt:      time.Now().UTC(),
	}
	if err := r.store.AppendMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("recording user message: %w", err)
	}

	r.logger.Debug("user message recorded",
		"conversation_id", conv.ID,
		"message_id", userMsg.ID)

	window := BuildWindow(history, text, r.systemPrompt, r.budget)
	model := r.selector.Select(ctx)

	engineEvents, err := r.client.Stream(ctx, model, window)
	if err != nil {
		// User message is recorded, but the engine refused the stream
		return nil, fmt.Errorf("starting engine stream: %w", err)
	}

	events := make(chan Event, 16)
	go r.pump(ctx, engineEvents, events, conv.ID, req.UserID, userMsg.ID, model)

	return &SendResponse{
		ConversationID: conv.ID,
		UserMessageID:  userMsg.ID,
		Model:          model,
		Events:         events,
	}, nil
}

// ensureConversation resolves an existing conversation (checking ownership)
// or creates a new one titled from the message text.
func (r *Relay) ensureConversation(ctx context.Context, userID, conversationID, text string) (*store.Conversation, error) {
	if conversationID != "" {
		conv, err := r.store.GetConversation(ctx, conversationID)
		if err != nil {
			return nil, err
		}
		if conv.UserID != userID {
			// Not owned by the caller; indistinguishable from absent
			return nil, store.ErrNotFound
		}

		// A conversation still carrying the placeholder title adopts the
		// first real message as its name.
		if defaultTitlePattern.MatchString(conv.Title) {
			title := titleFromText(text)
			if err := r.store.UpdateConversationTitle(ctx, conv.ID, title); err != nil {
				r.logger.Warn("failed to retitle conversation",
					"conversation_id", conv.ID, "error", err)
			} else {
				conv.Title = title
			}
		}
		return conv, nil
	}

	now := time.Now().UTC()
	conv := &store.Conversation{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     titleFromText(text),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.store.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}
	r.logger.Debug("conversation created", "conversation_id", conv.ID)
	return conv, nil
}

// titleFromText derives a conversation title from message text.
func titleFromText(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return defaultTitle
	}
	runes := []rune(text)
	if len(runes) > titleMaxLen {
		return string(runes[:titleMaxLen])
	}
	return text
}

// pump consumes the engine stream, forwarding deltas and accumulating the
// answer. On a completed stream it persists the bot message and charges
// quota before emitting the terminal done event. On failure or caller
// disconnect the partial answer is discarded.
func (r *Relay) pump(ctx context.Context, in <-chan engine.Event, out chan<- Event, conversationID, userID, userMessageID, model string) {
	defer close(out)

	var buffer strings.Builder

	for ev := range in {
		switch ev.Type {
		case engine.EventDelta:
			buffer.WriteString(ev.Delta)
			select {
			case out <- Event{Type: EventDelta, Delta: ev.Delta}:
			case <-ctx.Done():
				r.logger.Debug("caller disconnected mid-stream",
					"conversation_id", conversationID)
				// Drain so the engine goroutine can exit
				go func() {
					for range in {
					}
				}()
				return
			}

		case engine.EventError:
			r.logger.Warn("engine stream failed",
				"conversation_id", conversationID,
				"model", model,
				"error", ev.Err)
			out <- Event{Type: EventError, Message: "engine stream failed"}
			return

		case engine.EventDone:
			done := r.complete(conversationID, userID, userMessageID, model, buffer.String(), ev.Usage)
			if done == nil {
				out <- Event{Type: EventError, Message: "failed to record answer"}
				return
			}
			out <- Event{Type: EventDone, Done: done}
			return
		}
	}

	// Engine channel closed without a terminal event
	out <- Event{Type: EventError, Message: "engine stream ended unexpectedly"}
}

// complete persists the bot message and charges quota. It runs on a detached
// timeout context so a caller disconnect after upstream completion does not
// lose the answer.
func (r *Relay) complete(conversationID, userID, userMessageID, model, answer string, usage *engine.Usage) *DonePayload {
	saveCtx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	botMsg := &store.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Sender:         store.SenderBot,
		Text:           strings.TrimSpace(answer),
		CreatedAt:      time.Now().UTC(),
	}
	if err := r.store.AppendMessage(saveCtx, botMsg); err != nil {
		r.logger.Error("failed to record bot message",
			"conversation_id", conversationID,
			"error", err)
		return nil
	}

	newCount, err := r.store.IncrementDailyCount(saveCtx, userID)
	if err != nil {
		r.logger.Error("failed to charge quota",
			"user_id", userID,
			"error", err)
		// The answer is durable; report zero remaining rather than failing
		newCount = r.gate.Limit()
	}

	attemptsLeft := r.gate.Limit() - newCount
	if attemptsLeft < 0 {
		attemptsLeft = 0
	}

	r.logger.Debug("turn completed",
		"conversation_id", conversationID,
		"bot_message_id", botMsg.ID,
		"model", model,
		"attempts_left", attemptsLeft)

	return &DonePayload{
		UserMessageID: userMessageID,
		BotMessageID:  botMsg.ID,
		ModelUsed:     model,
		Usage:         usage,
		AttemptsLeft:  attemptsLeft,
	}
}
