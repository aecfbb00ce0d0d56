// Package conversationrepo persists conversations and messages with gorm.
package conversationrepo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"parley-server/internal/domain/conversation"
	"parley-server/internal/infrastructure/database/dbschema"
	"parley-server/internal/utils/platformerrors"
)

// Repository handles conversation and message persistence.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

var _ conversation.Repository = (*Repository)(nil)

func (r *Repository) Create(ctx context.Context, conv *conversation.Conversation) error {
	entity := dbschema.NewSchemaConversation(conv)
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabase,
			"failed to create conversation",
			err,
			"6f1a9d3c-58b2-4c7e-9e0a-bd54a2c8f113",
		)
	}
	conv.ID = entity.ID
	return nil
}

func (r *Repository) FindByFilter(ctx context.Context, filter conversation.ConversationFilter) ([]*conversation.Conversation, error) {
	query := r.db.WithContext(ctx).Model(&dbschema.Conversation{})
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.PublicID != nil {
		query = query.Where("public_id = ?", *filter.PublicID)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var entities []dbschema.Conversation
	if err := query.Order("updated_at DESC").Find(&entities).Error; err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabase,
			"failed to list conversations",
			err,
			"0b7c2e84-1f5d-4a36-8c9b-7e2d41f6a5c0",
		)
	}

	convs := make([]*conversation.Conversation, 0, len(entities))
	for i := range entities {
		convs = append(convs, entities[i].EtoD())
	}
	return convs, nil
}

func (r *Repository) FindByPublicID(ctx context.Context, publicID string) (*conversation.Conversation, error) {
	var entity dbschema.Conversation
	err := r.db.WithContext(ctx).Where("public_id = ?", publicID).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, platformerrors.NewError(
				ctx,
				platformerrors.LayerRepository,
				platformerrors.ErrorTypeNotFound,
				"conversation not found",
				err,
				"3d9f5b21-a64c-48e7-b0d2-91c8e4f7a6b3",
			)
		}
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabase,
			"failed to find conversation",
			err,
			"8e4a1c6d-27f9-4b50-a3e8-c5d907b2f441",
		)
	}
	return entity.EtoD(), nil
}

func (r *Repository) Update(ctx context.Context, conv *conversation.Conversation) error {
	entity := dbschema.NewSchemaConversation(conv)
	err := r.db.WithContext(ctx).
		Model(&dbschema.Conversation{}).
		Where("id = ?", conv.ID).
		Updates(map[string]interface{}{
			"title":            entity.Title,
			"status":           entity.Status,
			"parent_public_id": entity.ParentPublicID,
			"branch_message":   entity.BranchMessage,
			"updated_at":       entity.UpdatedAt,
		}).Error
	if err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabase,
			"failed to update conversation",
			err,
			"b2d80f5e-6a14-4c93-97cb-3e5f0a8d12c7",
		)
	}
	return nil
}

func (r *Repository) AddMessage(ctx context.Context, conversationID uint, msg *conversation.Message) error {
	entity := dbschema.NewSchemaMessage(conversationID, msg)
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabase,
			"failed to add message",
			err,
			"7c3b9e12-d480-4f6a-85c1-2a9f6e0d4b58",
		)
	}
	msg.ID = entity.ID
	msg.ConversationID = conversationID
	return nil
}

func (r *Repository) ListMessages(ctx context.Context, conversationID uint, includeDeleted bool) ([]*conversation.Message, error) {
	query := r.db.WithContext(ctx).
		Model(&dbschema.Message{}).
		Where("conversation_id = ?", conversationID)
	if !includeDeleted {
		query = query.Where("deleted = ?", false)
	}

	var entities []dbschema.Message
	if err := query.Order("created_at ASC, id ASC").Find(&entities).Error; err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabase,
			"failed to list messages",
			err,
			"e1f64a28-93cd-4b07-a5d6-08b2c7e9f314",
		)
	}

	msgs := make([]*conversation.Message, 0, len(entities))
	for i := range entities {
		msgs = append(msgs, entities[i].EtoD())
	}
	return msgs, nil
}

func (r *Repository) GetMessageByPublicID(ctx context.Context, conversationID uint, publicID string) (*conversation.Message, error) {
	var entity dbschema.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND public_id = ?", conversationID, publicID).
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, platformerrors.NewError(
				ctx,
				platformerrors.LayerRepository,
				platformerrors.ErrorTypeNotFound,
				"message not found",
				err,
				"42a7d9e0-5b63-4c18-8f2a-d167e90c4b85",
			)
		}
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabase,
			"failed to find message",
			err,
			"9d05c3f7-e821-4a6b-b49c-5f8e1d2a7603",
		)
	}
	return entity.EtoD(), nil
}

func (r *Repository) UpdateMessage(ctx context.Context, msg *conversation.Message) error {
	err := r.db.WithContext(ctx).
		Model(&dbschema.Message{}).
		Where("id = ?", msg.ID).
		Updates(map[string]interface{}{
			"content": msg.Content,
			"edited":  msg.Edited,
			"deleted": msg.Deleted,
		}).Error
	if err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabase,
			"failed to update message",
			err,
			"5a8e2c40-f6d9-4371-9b0e-c24d81f5a396",
		)
	}
	return nil
}

func (r *Repository) BulkAddMessages(ctx context.Context, conversationID uint, msgs []*conversation.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	entities := make([]dbschema.Message, 0, len(msgs))
	for _, msg := range msgs {
		entities = append(entities, *dbschema.NewSchemaMessage(conversationID, msg))
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&entities).Error
	})
	if err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabase,
			"failed to copy messages",
			err,
			"ce91b4d6-07a3-4f28-8e5d-1b6f92c0a754",
		)
	}
	for i := range msgs {
		msgs[i].ID = entities[i].ID
		msgs[i].ConversationID = conversationID
	}
	return nil
}
