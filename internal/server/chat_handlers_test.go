// ABOUTME: HTTP tests for the SSE chat endpoint and conversation browsing
// ABOUTME: Asserts SSE framing, terminal payloads, persistence, and ownership checks

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/vaxassist/chatd/internal/engine"
	"github.com/vaxassist/chatd/internal/store"
)

type sseEvent struct {
	name string
	data string
}

// parseSSE splits a recorded response body into its framed events.
func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()

	var events []sseEvent
	for _, block := range strings.Split(strings.TrimSpace(body), "\n\n") {
		lines := strings.Split(block, "\n")
		require.Len(t, lines, 2, "SSE event must be an event line and a data line: %q", block)
		require.True(t, strings.HasPrefix(lines[0], "event: "), "malformed event line: %q", lines[0])
		require.True(t, strings.HasPrefix(lines[1], "data: "), "malformed data line: %q", lines[1])
		events = append(events, sseEvent{
			name: strings.TrimPrefix(lines[0], "event: "),
			data: strings.TrimPrefix(lines[1], "data: "),
		})
	}
	return events
}

func TestSend_StreamsAndPersists(t *testing.T) {
	env := newTestEnv(t)
	user, cookie := env.loginUser(t, "chatter@example.com")

	env.engine.script(
		engine.Event{Type: engine.EventDelta, Delta: "Hello"},
		engine.Event{Type: engine.EventDelta, Delta: " there!"},
		engine.Event{Type: engine.EventDone, Usage: &engine.Usage{
			PromptTokens:     12,
			CompletionTokens: 3,
			TotalTokens:      15,
		}},
	)

	rec := env.do(t, http.MethodPost, "/api/chat/send", map[string]string{
		"text": "What vaccines do I need for travel?",
	}, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events := parseSSE(t, rec.Body.String())
	require.Len(t, events, 3)

	var answer strings.Builder
	for _, ev := range events[:2] {
		require.Equal(t, "delta", ev.name)
		var delta string
		require.NoError(t, json.Unmarshal([]byte(ev.data), &delta))
		answer.WriteString(delta)
	}
	require.Equal(t, "Hello there!", answer.String())

	require.Equal(t, "done", events[2].name)
	var done map[string]any
	require.NoError(t, json.Unmarshal([]byte(events[2].data), &done))
	require.NotEmpty(t, done["userMessageId"])
	require.NotEmpty(t, done["botMessageId"])
	require.Equal(t, "gpt-5", done["modelUsed"])
	require.Equal(t, float64(testDailyLimit-1), done["attemptsLeft"])
	usage := done["usage"].(map[string]any)
	require.Equal(t, float64(15), usage["totalTokens"])

	// Both turns are durable and the conversation is titled from the text
	convs, err := env.store.ListConversations(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	require.Equal(t, "What vaccines do I need for travel?", convs[0].Title)

	msgs, err := env.store.GetConversationMessages(context.Background(), convs[0].ID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, store.SenderUser, msgs[0].Sender)
	require.Equal(t, store.SenderBot, msgs[1].Sender)
	require.Equal(t, "Hello there!", msgs[1].Text)

	// Quota charged exactly once
	fresh, err := env.store.GetUser(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, 1, fresh.DailyMessageCount)
}

func TestSend_EmptyText(t *testing.T) {
	env := newTestEnv(t)
	_, cookie := env.loginUser(t, "mute@example.com")

	rec := env.do(t, http.MethodPost, "/api/chat/send", map[string]string{
		"text": "   ",
	}, cookie)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSend_Unauthenticated(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/chat/send", map[string]string{
		"text": "hi",
	}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSend_QuotaExhausted(t *testing.T) {
	env := newTestEnv(t)
	user, cookie := env.loginUser(t, "heavy@example.com")

	require.NoError(t, env.store.SetQuotaState(context.Background(), user.ID, testDailyLimit, time.Now()))

	rec := env.do(t, http.MethodPost, "/api/chat/send", map[string]string{
		"text": "one more?",
	}, cookie)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSend_UnknownConversation(t *testing.T) {
	env := newTestEnv(t)
	_, cookie := env.loginUser(t, "lost@example.com")

	rec := env.do(t, http.MethodPost, "/api/chat/send", map[string]string{
		"conversationId": uuid.New().String(),
		"text":           "hello?",
	}, cookie)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSend_ForeignConversation(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner@example.com", store.RoleUser)
	_, cookie := env.loginUser(t, "intruder@example.com")

	now := time.Now().UTC()
	conv := &store.Conversation{
		ID:        uuid.New().String(),
		UserID:    owner.ID,
		Title:     "private",
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, env.store.CreateConversation(context.Background(), conv))

	rec := env.do(t, http.MethodPost, "/api/chat/send", map[string]string{
		"conversationId": conv.ID,
		"text":           "let me in",
	}, cookie)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSend_EngineFailure(t *testing.T) {
	env := newTestEnv(t)
	user, cookie := env.loginUser(t, "unlucky@example.com")

	env.engine.script(
		engine.Event{Type: engine.EventDelta, Delta: "partial "},
		engine.Event{Type: engine.EventError, Err: context.DeadlineExceeded},
	)

	rec := env.do(t, http.MethodPost, "/api/chat/send", map[string]string{
		"text": "doomed question",
	}, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	events := parseSSE(t, rec.Body.String())
	require.Equal(t, "error", events[len(events)-1].name)

	// The user message survives but the partial answer is discarded and
	// quota is not charged.
	convs, err := env.store.ListConversations(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, convs, 1)

	msgs, err := env.store.GetConversationMessages(context.Background(), convs[0].ID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, store.SenderUser, msgs[0].Sender)

	fresh, err := env.store.GetUser(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, 0, fresh.DailyMessageCount)
}

func TestStartConversation(t *testing.T) {
	env := newTestEnv(t)
	_, cookie := env.loginUser(t, "starter@example.com")

	rec := env.do(t, http.MethodPost, "/api/chat/start", nil, cookie)
	require.Equal(t, http.StatusCreated, rec.Code)

	var body map[string]any
	decodeBody(t, rec, &body)
	require.NotEmpty(t, body["id"])
	require.Equal(t, "New Chat", body["title"])
}

func TestListConversations(t *testing.T) {
	env := newTestEnv(t)
	_, cookie := env.loginUser(t, "lister@example.com")

	for range 3 {
		rec := env.do(t, http.MethodPost, "/api/chat/start", nil, cookie)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/api/chat/conversations", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var convs []map[string]any
	decodeBody(t, rec, &convs)
	require.Len(t, convs, 3)
}

func TestConversationMessages_Ownership(t *testing.T) {
	env := newTestEnv(t)
	_, ownerCookie := env.loginUser(t, "author@example.com")
	_, otherCookie := env.loginUser(t, "rando@example.com")

	rec := env.do(t, http.MethodPost, "/api/chat/start", nil, ownerCookie)
	require.Equal(t, http.StatusCreated, rec.Code)
	var conv map[string]any
	decodeBody(t, rec, &conv)
	convID := conv["id"].(string)

	rec = env.do(t, http.MethodGet, "/api/chat/conversations/"+convID+"/messages", nil, ownerCookie)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/chat/conversations/"+convID+"/messages", nil, otherCookie)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteConversation(t *testing.T) {
	env := newTestEnv(t)
	_, ownerCookie := env.loginUser(t, "tidy@example.com")
	_, otherCookie := env.loginUser(t, "nosy@example.com")

	rec := env.do(t, http.MethodPost, "/api/chat/start", nil, ownerCookie)
	require.Equal(t, http.StatusCreated, rec.Code)
	var conv map[string]any
	decodeBody(t, rec, &conv)
	convID := conv["id"].(string)

	// Someone else's delete looks like a missing conversation
	rec = env.do(t, http.MethodDelete, "/api/chat/conversations/"+convID, nil, otherCookie)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/chat/conversations/"+convID, nil, ownerCookie)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/chat/conversations", nil, ownerCookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var convs []map[string]any
	decodeBody(t, rec, &convs)
	require.Empty(t, convs)
}

func TestAdminConversationBrowsing(t *testing.T) {
	env := newTestEnv(t)
	user, userCookie := env.loginUser(t, "subject@example.com")
	_, adminCookie := env.loginAdmin(t, "root@example.com")

	rec := env.do(t, http.MethodPost, "/api/chat/start", nil, userCookie)
	require.Equal(t, http.StatusCreated, rec.Code)
	var conv map[string]any
	decodeBody(t, rec, &conv)

	rec = env.do(t, http.MethodGet, "/api/admin/users/"+user.ID+"/conversations", nil, adminCookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var convs []map[string]any
	decodeBody(t, rec, &convs)
	require.Len(t, convs, 1)

	rec = env.do(t, http.MethodGet, "/api/admin/conversations/"+conv["id"].(string)+"/messages", nil, adminCookie)
	require.Equal(t, http.StatusOK, rec.Code)

	// Regular users cannot reach the admin surface
	rec = env.do(t, http.MethodGet, "/api/admin/users/"+user.ID+"/conversations", nil, userCookie)
	require.Equal(t, http.StatusForbidden, rec.Code)
}
