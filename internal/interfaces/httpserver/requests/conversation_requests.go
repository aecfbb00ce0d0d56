package requests

// CreateConversationRequest represents the request to start a conversation
type CreateConversationRequest struct {
	Title *string `json:"title,omitempty" binding:"omitempty,max=256"`
}

// UpdateConversationRequest represents the request to rename a conversation
type UpdateConversationRequest struct {
	Title string `json:"title" binding:"required,max=256"`
}

// BranchConversationRequest forks a conversation at the given message
type BranchConversationRequest struct {
	MessageID string `json:"message_id" binding:"required"`
}

// SendMessageRequest represents a user message to relay to the assistant
type SendMessageRequest struct {
	Content string `json:"content" binding:"required,max=32768" validate:"required,max=32768"`
}

// EditMessageRequest rewrites the content of a user message
type EditMessageRequest struct {
	Content string `json:"content" binding:"required,max=32768"`
}

// RetryMessageRequest re-sends a user message, discarding the previous answer
type RetryMessageRequest struct {
	// Empty body today; reserved for sampling overrides.
}

// SessionTimeoutRequest sets the caller's idle-session timeout
type SessionTimeoutRequest struct {
	TimeoutSeconds int `json:"timeout_seconds" binding:"required,min=1"`
}
