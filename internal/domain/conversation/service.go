package conversation

import (
	"context"
	"time"

	"parley-server/internal/utils/idgen"
	"parley-server/internal/utils/platformerrors"
)

// ProcessReleaser terminates the assistant process bound to a conversation, if
// any. Archive and delete must go through it before the state change lands.
type ProcessReleaser interface {
	Release(conversationID string)
}

// Service owns conversation and message lifecycle around the process pool.
type Service struct {
	repo     Repository
	releaser ProcessReleaser
}

func NewService(repo Repository, releaser ProcessReleaser) *Service {
	return &Service{repo: repo, releaser: releaser}
}

type CreateInput struct {
	UserID string
	Title  *string
}

func (s *Service) Create(ctx context.Context, input CreateInput) (*Conversation, error) {
	publicID, err := idgen.GenerateSecureID("conv", 16)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to generate conversation id")
	}

	conv := NewConversation(publicID, input.UserID, input.Title)
	if err := s.repo.Create(ctx, conv); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to create conversation")
	}
	return conv, nil
}

// GetByPublicIDAndUserID fetches a conversation scoped to its owner. Deleted
// conversations are reported as not found.
func (s *Service) GetByPublicIDAndUserID(ctx context.Context, publicID, userID string) (*Conversation, error) {
	conv, err := s.repo.FindByPublicID(ctx, publicID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to get conversation")
	}
	if conv.UserID != userID || conv.Status == ConversationStatusDeleted {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound,
			"conversation not found", nil, "")
	}
	return conv, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]*Conversation, error) {
	convs, err := s.repo.FindByFilter(ctx, ConversationFilter{UserID: &userID})
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list conversations")
	}
	result := convs[:0]
	for _, conv := range convs {
		if conv.Status != ConversationStatusDeleted {
			result = append(result, conv)
		}
	}
	return result, nil
}

func (s *Service) UpdateTitle(ctx context.Context, userID, publicID string, title string) (*Conversation, error) {
	conv, err := s.GetByPublicIDAndUserID(ctx, publicID, userID)
	if err != nil {
		return nil, err
	}
	conv.Title = &title
	conv.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, conv); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to update conversation")
	}
	return conv, nil
}

// Archive releases the conversation's assistant process and marks the
// conversation archived. The release happens before the state change so no
// live handle can outlast an archived conversation.
func (s *Service) Archive(ctx context.Context, userID, publicID string) (*Conversation, error) {
	return s.transition(ctx, userID, publicID, ConversationStatusArchived)
}

// SoftDelete releases the process and marks the conversation deleted. Rows are
// kept for audit; reads exclude them.
func (s *Service) SoftDelete(ctx context.Context, userID, publicID string) error {
	_, err := s.transition(ctx, userID, publicID, ConversationStatusDeleted)
	return err
}

func (s *Service) transition(ctx context.Context, userID, publicID string, status ConversationStatus) (*Conversation, error) {
	conv, err := s.GetByPublicIDAndUserID(ctx, publicID, userID)
	if err != nil {
		return nil, err
	}

	if s.releaser != nil {
		s.releaser.Release(conv.PublicID)
	}

	conv.Status = status
	conv.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, conv); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to update conversation status")
	}
	return conv, nil
}

// Unarchive reactivates an archived conversation. The next send spawns a fresh
// process; the old handle was released at archive time.
func (s *Service) Unarchive(ctx context.Context, userID, publicID string) (*Conversation, error) {
	conv, err := s.GetByPublicIDAndUserID(ctx, publicID, userID)
	if err != nil {
		return nil, err
	}
	if conv.Status != ConversationStatusArchived {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"conversation is not archived", nil, "")
	}
	conv.Status = ConversationStatusActive
	conv.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, conv); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to unarchive conversation")
	}
	return conv, nil
}

// Branch forks a conversation at branchMessageID: every non-deleted message
// with CreatedAt <= the branch point's CreatedAt is copied, in original order,
// into a new conversation. No process is attached to the fork.
func (s *Service) Branch(ctx context.Context, userID, publicID, branchMessageID string) (*Conversation, error) {
	source, err := s.GetByPublicIDAndUserID(ctx, publicID, userID)
	if err != nil {
		return nil, err
	}

	branchPoint, err := s.repo.GetMessageByPublicID(ctx, source.ID, branchMessageID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "branch point not found")
	}
	if branchPoint.Deleted {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"cannot branch at a deleted message", nil, "")
	}

	messages, err := s.repo.ListMessages(ctx, source.ID, false)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list messages")
	}

	forkID, err := idgen.GenerateSecureID("conv", 16)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to generate conversation id")
	}

	fork := NewConversation(forkID, userID, source.Title)
	fork.ParentPublicID = &source.PublicID
	fork.BranchMessage = &branchPoint.PublicID
	if err := s.repo.Create(ctx, fork); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to create fork")
	}

	copies := make([]*Message, 0, len(messages))
	for _, msg := range messages {
		if msg.CreatedAt.After(branchPoint.CreatedAt) {
			continue
		}
		msgID, err := idgen.GenerateSecureID("msg", 16)
		if err != nil {
			return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to generate message id")
		}
		copies = append(copies, &Message{
			PublicID:       msgID,
			ConversationID: fork.ID,
			Role:           msg.Role,
			Content:        msg.Content,
			Edited:         msg.Edited,
			CreatedAt:      msg.CreatedAt,
		})
	}

	if len(copies) > 0 {
		if err := s.repo.BulkAddMessages(ctx, fork.ID, copies); err != nil {
			return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to copy messages")
		}
	}

	return fork, nil
}

// ListMessagesFor returns the conversation's non-deleted messages in order.
func (s *Service) ListMessagesFor(ctx context.Context, conv *Conversation) ([]*Message, error) {
	msgs, err := s.repo.ListMessages(ctx, conv.ID, false)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list messages")
	}
	return msgs, nil
}

// AppendMessage persists a new message at the tail of the conversation.
func (s *Service) AppendMessage(ctx context.Context, conv *Conversation, role MessageRole, content string) (*Message, error) {
	publicID, err := idgen.GenerateSecureID("msg", 16)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to generate message id")
	}

	msg := &Message{
		PublicID:       publicID,
		ConversationID: conv.ID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.repo.AddMessage(ctx, conv.ID, msg); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to append message")
	}
	return msg, nil
}

// Touch bumps the conversation's updated_at, used at stream completion.
func (s *Service) Touch(ctx context.Context, conv *Conversation) error {
	conv.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, conv); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to touch conversation")
	}
	return nil
}

// EditMessage replaces a user message's content and flags it edited.
func (s *Service) EditMessage(ctx context.Context, conv *Conversation, messagePublicID, content string) (*Message, error) {
	msg, err := s.repo.GetMessageByPublicID(ctx, conv.ID, messagePublicID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "message not found")
	}
	if msg.Role != MessageRoleUser {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"can only edit user messages", nil, "")
	}
	if msg.Deleted {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"cannot edit a deleted message", nil, "")
	}

	msg.Content = content
	msg.Edited = true
	if err := s.repo.UpdateMessage(ctx, msg); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to edit message")
	}
	return msg, nil
}

// TrimForRetry prepares a retry of the user message: the single nearest
// assistant message that chronologically follows it (if one exists) is
// soft-deleted before regeneration. Returns the user message to resend.
func (s *Service) TrimForRetry(ctx context.Context, conv *Conversation, userMessageID string) (*Message, error) {
	userMsg, err := s.repo.GetMessageByPublicID(ctx, conv.ID, userMessageID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "message not found")
	}
	if userMsg.Role != MessageRoleUser || userMsg.Deleted {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"can only retry user messages", nil, "")
	}

	messages, err := s.repo.ListMessages(ctx, conv.ID, false)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list messages")
	}

	for _, msg := range messages {
		if msg.Role != MessageRoleAssistant {
			continue
		}
		if msg.CreatedAt.Before(userMsg.CreatedAt) {
			continue
		}
		if msg.CreatedAt.Equal(userMsg.CreatedAt) && msg.ID <= userMsg.ID {
			continue
		}
		msg.Deleted = true
		if err := s.repo.UpdateMessage(ctx, msg); err != nil {
			return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to trim assistant message")
		}
		break
	}

	return userMsg, nil
}
