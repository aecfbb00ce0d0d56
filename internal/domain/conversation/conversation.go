package conversation

import (
	"context"
	"time"
)

type ConversationStatus string

const (
	ConversationStatusActive   ConversationStatus = "active"
	ConversationStatusArchived ConversationStatus = "archived"
	ConversationStatusDeleted  ConversationStatus = "deleted"
)

type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Conversation is one independent chat thread. A conversation owns at most one
// live assistant process at a time; forked conversations keep a reference to
// their parent and the message they branched from.
type Conversation struct {
	ID             uint               `json:"-"`
	PublicID       string             `json:"id"`
	Title          *string            `json:"title,omitempty"`
	UserID         string             `json:"-"`
	Status         ConversationStatus `json:"status"`
	ParentPublicID *string            `json:"parent_id,omitempty"`
	BranchMessage  *string            `json:"branch_message_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is append-only except for content edits and soft deletes. Ordering
// within a conversation is by (CreatedAt, ID) and must be monotonic.
type Message struct {
	ID             uint        `json:"-"`
	PublicID       string      `json:"id"`
	ConversationID uint        `json:"-"`
	Role           MessageRole `json:"role"`
	Content        string      `json:"content"`
	Edited         bool        `json:"edited"`
	Deleted        bool        `json:"deleted"`
	CreatedAt      time.Time   `json:"created_at"`
}

type ConversationFilter struct {
	ID       *uint
	PublicID *string
	UserID   *string
	Status   *ConversationStatus
}

type Repository interface {
	Create(ctx context.Context, conv *Conversation) error
	FindByFilter(ctx context.Context, filter ConversationFilter) ([]*Conversation, error)
	FindByPublicID(ctx context.Context, publicID string) (*Conversation, error)
	Update(ctx context.Context, conv *Conversation) error

	// Message operations. ListMessages returns non-deleted messages in
	// (created_at, id) order unless includeDeleted is set.
	AddMessage(ctx context.Context, conversationID uint, msg *Message) error
	ListMessages(ctx context.Context, conversationID uint, includeDeleted bool) ([]*Message, error)
	GetMessageByPublicID(ctx context.Context, conversationID uint, publicID string) (*Message, error)
	UpdateMessage(ctx context.Context, msg *Message) error
	BulkAddMessages(ctx context.Context, conversationID uint, msgs []*Message) error
}

// NewConversation creates an active conversation owned by userID.
func NewConversation(publicID, userID string, title *string) *Conversation {
	now := time.Now().UTC()
	return &Conversation{
		PublicID:  publicID,
		Title:     title,
		UserID:    userID,
		Status:    ConversationStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsActive reports whether the conversation still accepts messages.
func (c *Conversation) IsActive() bool {
	return c.Status == ConversationStatusActive
}
