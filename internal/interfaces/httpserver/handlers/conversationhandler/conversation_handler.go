// Package conversationhandler implements conversation CRUD, archiving and
// branching.
package conversationhandler

import (
	"context"

	"parley-server/internal/domain/conversation"
	"parley-server/internal/interfaces/httpserver/requests"
	"parley-server/internal/interfaces/httpserver/responses"
)

// ConversationHandler handles conversation-related HTTP requests
type ConversationHandler struct {
	service *conversation.Service
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(service *conversation.Service) *ConversationHandler {
	return &ConversationHandler{service: service}
}

func (h *ConversationHandler) Create(ctx context.Context, userID string, req requests.CreateConversationRequest) (*responses.ConversationResponse, error) {
	conv, err := h.service.Create(ctx, conversation.CreateInput{
		UserID: userID,
		Title:  req.Title,
	})
	if err != nil {
		return nil, err
	}
	resp := responses.NewConversationResponse(conv)
	return &resp, nil
}

func (h *ConversationHandler) List(ctx context.Context, userID string) ([]responses.ConversationResponse, error) {
	convs, err := h.service.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	return responses.NewConversationListResponse(convs), nil
}

func (h *ConversationHandler) Get(ctx context.Context, userID, publicID string) (*responses.ConversationResponse, error) {
	conv, err := h.service.GetByPublicIDAndUserID(ctx, publicID, userID)
	if err != nil {
		return nil, err
	}
	resp := responses.NewConversationResponse(conv)
	return &resp, nil
}

func (h *ConversationHandler) UpdateTitle(ctx context.Context, userID, publicID string, req requests.UpdateConversationRequest) (*responses.ConversationResponse, error) {
	conv, err := h.service.UpdateTitle(ctx, userID, publicID, req.Title)
	if err != nil {
		return nil, err
	}
	resp := responses.NewConversationResponse(conv)
	return &resp, nil
}

func (h *ConversationHandler) Archive(ctx context.Context, userID, publicID string) (*responses.ConversationResponse, error) {
	conv, err := h.service.Archive(ctx, userID, publicID)
	if err != nil {
		return nil, err
	}
	resp := responses.NewConversationResponse(conv)
	return &resp, nil
}

func (h *ConversationHandler) Unarchive(ctx context.Context, userID, publicID string) (*responses.ConversationResponse, error) {
	conv, err := h.service.Unarchive(ctx, userID, publicID)
	if err != nil {
		return nil, err
	}
	resp := responses.NewConversationResponse(conv)
	return &resp, nil
}

func (h *ConversationHandler) Delete(ctx context.Context, userID, publicID string) error {
	return h.service.SoftDelete(ctx, userID, publicID)
}

func (h *ConversationHandler) Branch(ctx context.Context, userID, publicID string, req requests.BranchConversationRequest) (*responses.ConversationResponse, error) {
	fork, err := h.service.Branch(ctx, userID, publicID, req.MessageID)
	if err != nil {
		return nil, err
	}
	resp := responses.NewConversationResponse(fork)
	return &resp, nil
}

func (h *ConversationHandler) ListMessages(ctx context.Context, userID, publicID string) ([]responses.MessageResponse, error) {
	conv, err := h.service.GetByPublicIDAndUserID(ctx, publicID, userID)
	if err != nil {
		return nil, err
	}
	msgs, err := h.service.ListMessagesFor(ctx, conv)
	if err != nil {
		return nil, err
	}
	return responses.NewMessageListResponse(msgs), nil
}

func (h *ConversationHandler) EditMessage(ctx context.Context, userID, publicID, messageID string, req requests.EditMessageRequest) (*responses.MessageResponse, error) {
	conv, err := h.service.GetByPublicIDAndUserID(ctx, publicID, userID)
	if err != nil {
		return nil, err
	}
	msg, err := h.service.EditMessage(ctx, conv, messageID, req.Content)
	if err != nil {
		return nil, err
	}
	resp := responses.NewMessageResponse(msg)
	return &resp, nil
}
