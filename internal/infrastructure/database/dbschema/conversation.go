package dbschema

import (
	"parley-server/internal/domain/conversation"
	"parley-server/internal/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(Conversation{})
	database.RegisterSchemaForAutoMigrate(Message{})
}

// Conversation represents the database schema for conversations
type Conversation struct {
	BaseModel
	PublicID       string                          `gorm:"type:varchar(50);uniqueIndex;not null"`
	Title          *string                         `gorm:"type:varchar(256)"`
	UserID         string                          `gorm:"type:varchar(64);index:idx_conversation_user_status;not null"`
	Status         conversation.ConversationStatus `gorm:"type:varchar(20);index:idx_conversation_user_status;not null;default:'active'"`
	ParentPublicID *string                         `gorm:"type:varchar(50);index"`
	BranchMessage  *string                         `gorm:"type:varchar(50)"`

	Messages []Message `gorm:"foreignKey:ConversationID"`
}

// Message represents the database schema for conversation messages
type Message struct {
	BaseModel
	ConversationID uint                     `gorm:"index:idx_message_conversation_created;not null"`
	Conversation   Conversation             `gorm:"foreignKey:ConversationID"`
	PublicID       string                   `gorm:"type:varchar(50);uniqueIndex;not null"`
	Role           conversation.MessageRole `gorm:"type:varchar(20);not null"`
	Content        string                   `gorm:"type:text;not null"`
	Edited         bool                     `gorm:"not null;default:false"`
	Deleted        bool                     `gorm:"not null;default:false"`
}

// NewSchemaConversation creates a database schema from domain conversation
func NewSchemaConversation(c *conversation.Conversation) *Conversation {
	return &Conversation{
		BaseModel: BaseModel{
			ID:        c.ID,
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		},
		PublicID:       c.PublicID,
		Title:          c.Title,
		UserID:         c.UserID,
		Status:         c.Status,
		ParentPublicID: c.ParentPublicID,
		BranchMessage:  c.BranchMessage,
	}
}

// EtoD converts database schema to domain conversation (Entity to Domain)
func (c *Conversation) EtoD() *conversation.Conversation {
	return &conversation.Conversation{
		ID:             c.ID,
		PublicID:       c.PublicID,
		Title:          c.Title,
		UserID:         c.UserID,
		Status:         c.Status,
		ParentPublicID: c.ParentPublicID,
		BranchMessage:  c.BranchMessage,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

// NewSchemaMessage creates a database schema from domain message
func NewSchemaMessage(conversationID uint, m *conversation.Message) *Message {
	return &Message{
		BaseModel: BaseModel{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
		},
		ConversationID: conversationID,
		PublicID:       m.PublicID,
		Role:           m.Role,
		Content:        m.Content,
		Edited:         m.Edited,
		Deleted:        m.Deleted,
	}
}

// EtoD converts database schema to domain message (Entity to Domain)
func (m *Message) EtoD() *conversation.Message {
	return &conversation.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		PublicID:       m.PublicID,
		Role:           m.Role,
		Content:        m.Content,
		Edited:         m.Edited,
		Deleted:        m.Deleted,
		CreatedAt:      m.CreatedAt,
	}
}
