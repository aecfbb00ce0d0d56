// Package chathandler relays user messages to per-conversation assistant
// processes and streams the replies back.
package chathandler

import (
	"context"
	"net/http"

	"parley-server/internal/domain/conversation"
	"parley-server/internal/process"
	"parley-server/internal/relay"
	"parley-server/internal/utils/platformerrors"
)

// ChatHandler handles message send and retry requests
type ChatHandler struct {
	service *conversation.Service
	pool    *process.Pool
	relay   *relay.Relay
}

// NewChatHandler creates a new chat handler
func NewChatHandler(service *conversation.Service, pool *process.Pool, streamRelay *relay.Relay) *ChatHandler {
	return &ChatHandler{
		service: service,
		pool:    pool,
		relay:   streamRelay,
	}
}

// SendMessage persists the user message, acquires the conversation's
// assistant process and streams the reply to w. The user message is stored
// even if the assistant later fails; the reply is stored only on completion.
func (h *ChatHandler) SendMessage(ctx context.Context, w http.ResponseWriter, userID, conversationID, content string) error {
	conv, err := h.service.GetByPublicIDAndUserID(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !conv.IsActive() {
		return platformerrors.NewError(ctx, platformerrors.LayerHandler, platformerrors.ErrorTypeConflict,
			"conversation does not accept messages", nil, "6e2d8a05-f491-4b37-8c60-a53b1e7d9f24")
	}

	if _, err := h.service.AppendMessage(ctx, conv, conversation.MessageRoleUser, content); err != nil {
		return err
	}

	return h.stream(ctx, w, conv, content)
}

// RetryMessage regenerates the answer to an earlier user message. The single
// assistant message that followed it, if any, is discarded first.
func (h *ChatHandler) RetryMessage(ctx context.Context, w http.ResponseWriter, userID, conversationID, messageID string) error {
	conv, err := h.service.GetByPublicIDAndUserID(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !conv.IsActive() {
		return platformerrors.NewError(ctx, platformerrors.LayerHandler, platformerrors.ErrorTypeConflict,
			"conversation does not accept messages", nil, "b79c3e51-0a86-4df2-95b4-2c1e8f60d7a3")
	}

	userMsg, err := h.service.TrimForRetry(ctx, conv, messageID)
	if err != nil {
		return err
	}

	return h.stream(ctx, w, conv, userMsg.Content)
}

func (h *ChatHandler) stream(ctx context.Context, w http.ResponseWriter, conv *conversation.Conversation, content string) error {
	handle, err := h.pool.Acquire(conv.PublicID)
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "assistant process unavailable")
	}

	return h.relay.Stream(ctx, w, handle, conv, func() error {
		return handle.Send(content)
	})
}
