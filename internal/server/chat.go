// ABOUTME: Chat HTTP handlers: SSE streaming send plus conversation browsing
// ABOUTME: Pre-stream failures map to status codes, later failures go in-band

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/vaxassist/chatd/internal/auth"
	"github.com/vaxassist/chatd/internal/chat"
	"github.com/vaxassist/chatd/internal/store"
)

// sendRequest is the JSON request body for POST /api/chat/send.
type sendRequest struct {
	ConversationID string `json:"conversationId,omitempty"`
	Text           string `json:"text"`
}

// conversationResponse is the JSON shape for one conversation.
type conversationResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// messageResponse is the JSON shape for one message.
type messageResponse struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	CreatedAt string `json:"createdAt"`
}

// handleSend handles POST /api/chat/send. On success the response is a
// text/event-stream of delta events terminated by exactly one done or error
// event. Failures before the stream opens are conventional JSON errors.
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())

	var req sendRequest
	if err := decodeJSON(r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Check streaming support before doing any work (fail fast)
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.logger.Error("streaming not supported")
		s.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	resp, err := s.relay.Send(r.Context(), &chat.SendRequest{
		UserID:         id.UserID,
		ConversationID: req.ConversationID,
		Text:           req.Text,
	})
	if err != nil {
		s.sendRelayError(w, err)
		return
	}

	// Set SSE headers; from here on the status code is fixed and all
	// failures are delivered in-band.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range resp.Events {
		switch ev.Type {
		case chat.EventDelta:
			s.writeSSEEvent(w, "delta", ev.Delta)
		case chat.EventDone:
			s.writeSSEEvent(w, "done", ev.Done)
		case chat.EventError:
			s.writeSSEEvent(w, "error", map[string]string{"message": ev.Message})
		}
		flusher.Flush()
	}
}

// sendRelayError maps pre-stream relay failures to status codes.
func (s *Server) sendRelayError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrEmptyText):
		s.sendJSONError(w, http.StatusBadRequest, "text is required")
	case errors.Is(err, chat.ErrQuotaExceeded):
		s.sendJSONError(w, http.StatusForbidden, "daily message quota exceeded")
	case errors.Is(err, store.ErrNotFound):
		s.sendJSONError(w, http.StatusNotFound, "conversation not found")
	default:
		s.logger.Error("send failed", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

// writeSSEEvent writes a single SSE event to the response writer.
func (s *Server) writeSSEEvent(w http.ResponseWriter, event string, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("failed to marshal SSE data", "error", err)
		return
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", dataJSON)
}

// handleStartConversation handles POST /api/chat/start. It creates an empty
// conversation owned by the caller, titled with the placeholder until the
// first message arrives.
func (s *Server) handleStartConversation(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())

	now := time.Now().UTC()
	conv := &store.Conversation{
		ID:        uuid.New().String(),
		UserID:    id.UserID,
		Title:     "New Chat",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateConversation(r.Context(), conv); err != nil {
		s.logger.Error("failed to create conversation", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.writeJSON(w, http.StatusCreated, toConversationResponse(conv))
}

// handleListConversations handles GET /api/chat/conversations.
func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())

	convs, err := s.store.ListConversations(r.Context(), id.UserID)
	if err != nil {
		s.logger.Error("failed to list conversations", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := make([]conversationResponse, 0, len(convs))
	for _, conv := range convs {
		response = append(response, toConversationResponse(conv))
	}
	s.writeJSON(w, http.StatusOK, response)
}

// handleConversationMessages handles GET /api/chat/conversations/{id}/messages.
// A conversation owned by someone else looks absent.
func (s *Server) handleConversationMessages(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())
	conversationID := r.PathValue("id")

	conv, err := s.store.GetConversation(r.Context(), conversationID)
	if err != nil || conv.UserID != id.UserID {
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			s.logger.Error("failed to load conversation", "error", err)
			s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		s.sendJSONError(w, http.StatusNotFound, "conversation not found")
		return
	}

	s.writeConversationMessages(w, r, conversationID)
}

// handleDeleteConversation handles DELETE /api/chat/conversations/{id}.
// Messages cascade with the conversation row.
func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())
	conversationID := r.PathValue("id")

	conv, err := s.store.GetConversation(r.Context(), conversationID)
	if err != nil || conv.UserID != id.UserID {
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			s.logger.Error("failed to load conversation", "error", err)
			s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		s.sendJSONError(w, http.StatusNotFound, "conversation not found")
		return
	}

	if err := s.store.DeleteConversation(r.Context(), conversationID); err != nil {
		s.logger.Error("failed to delete conversation", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) writeConversationMessages(w http.ResponseWriter, r *http.Request, conversationID string) {
	messages, err := s.store.GetConversationMessages(r.Context(), conversationID, 0)
	if err != nil {
		s.logger.Error("failed to load messages", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := make([]messageResponse, 0, len(messages))
	for _, msg := range messages {
		response = append(response, messageResponse{
			ID:        msg.ID,
			Sender:    msg.Sender,
			Text:      msg.Text,
			CreatedAt: msg.CreatedAt.Format(time.RFC3339),
		})
	}
	s.writeJSON(w, http.StatusOK, response)
}

// handleAdminUserConversations handles GET /api/admin/users/{id}/conversations.
func (s *Server) handleAdminUserConversations(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")

	if _, err := s.store.GetUser(r.Context(), userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.sendJSONError(w, http.StatusNotFound, "user not found")
			return
		}
		s.logger.Error("failed to load user", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	convs, err := s.store.ListConversations(r.Context(), userID)
	if err != nil {
		s.logger.Error("failed to list conversations", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := make([]conversationResponse, 0, len(convs))
	for _, conv := range convs {
		response = append(response, toConversationResponse(conv))
	}
	s.writeJSON(w, http.StatusOK, response)
}

// handleAdminConversationMessages handles GET /api/admin/conversations/{id}/messages.
func (s *Server) handleAdminConversationMessages(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("id")

	if _, err := s.store.GetConversation(r.Context(), conversationID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.sendJSONError(w, http.StatusNotFound, "conversation not found")
			return
		}
		s.logger.Error("failed to load conversation", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.writeConversationMessages(w, r, conversationID)
}

func toConversationResponse(conv *store.Conversation) conversationResponse {
	return conversationResponse{
		ID:        conv.ID,
		Title:     conv.Title,
		CreatedAt: conv.CreatedAt.Format(time.RFC3339),
		UpdatedAt: conv.UpdatedAt.Format(time.RFC3339),
	}
}
