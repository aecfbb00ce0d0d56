package responses

import (
	"time"

	"parley-server/internal/domain/conversation"
)

// ConversationResponse is the public shape of a conversation.
type ConversationResponse struct {
	ID              string    `json:"id"`
	Title           *string   `json:"title,omitempty"`
	Status          string    `json:"status"`
	ParentID        *string   `json:"parent_id,omitempty"`
	BranchMessageID *string   `json:"branch_message_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// MessageResponse is the public shape of a message.
type MessageResponse struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Edited    bool      `json:"edited"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionStatusResponse reports the idle-session countdown.
type SessionStatusResponse struct {
	RemainingSeconds int       `json:"remaining_seconds"`
	ExpiresAt        time.Time `json:"expires_at"`
}

// SessionTimeoutResponse confirms the effective timeout after clamping.
type SessionTimeoutResponse struct {
	TimeoutSeconds int `json:"timeout_seconds"`
}

func NewConversationResponse(c *conversation.Conversation) ConversationResponse {
	return ConversationResponse{
		ID:              c.PublicID,
		Title:           c.Title,
		Status:          string(c.Status),
		ParentID:        c.ParentPublicID,
		BranchMessageID: c.BranchMessage,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

func NewConversationListResponse(convs []*conversation.Conversation) []ConversationResponse {
	out := make([]ConversationResponse, 0, len(convs))
	for _, c := range convs {
		out = append(out, NewConversationResponse(c))
	}
	return out
}

func NewMessageResponse(m *conversation.Message) MessageResponse {
	return MessageResponse{
		ID:        m.PublicID,
		Role:      string(m.Role),
		Content:   m.Content,
		Edited:    m.Edited,
		CreatedAt: m.CreatedAt,
	}
}

func NewMessageListResponse(msgs []*conversation.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, NewMessageResponse(m))
	}
	return out
}
