package conversation

import (
	"context"
	"errors"
	"testing"
	"time"
)

// mockRepository is an in-memory Repository for testing.
type mockRepository struct {
	nextID        uint
	conversations map[string]*Conversation
	messages      map[uint][]*Message
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		nextID:        1,
		conversations: make(map[string]*Conversation),
		messages:      make(map[uint][]*Message),
	}
}

func (m *mockRepository) Create(ctx context.Context, conv *Conversation) error {
	conv.ID = m.nextID
	m.nextID++
	m.conversations[conv.PublicID] = conv
	return nil
}

func (m *mockRepository) FindByFilter(ctx context.Context, filter ConversationFilter) ([]*Conversation, error) {
	var result []*Conversation
	for _, conv := range m.conversations {
		if filter.UserID != nil && conv.UserID != *filter.UserID {
			continue
		}
		result = append(result, conv)
	}
	return result, nil
}

func (m *mockRepository) FindByPublicID(ctx context.Context, publicID string) (*Conversation, error) {
	conv, ok := m.conversations[publicID]
	if !ok {
		return nil, errors.New("not found")
	}
	return conv, nil
}

func (m *mockRepository) Update(ctx context.Context, conv *Conversation) error {
	m.conversations[conv.PublicID] = conv
	return nil
}

func (m *mockRepository) AddMessage(ctx context.Context, conversationID uint, msg *Message) error {
	msg.ID = m.nextID
	m.nextID++
	msg.ConversationID = conversationID
	m.messages[conversationID] = append(m.messages[conversationID], msg)
	return nil
}

func (m *mockRepository) ListMessages(ctx context.Context, conversationID uint, includeDeleted bool) ([]*Message, error) {
	var result []*Message
	for _, msg := range m.messages[conversationID] {
		if msg.Deleted && !includeDeleted {
			continue
		}
		result = append(result, msg)
	}
	return result, nil
}

func (m *mockRepository) GetMessageByPublicID(ctx context.Context, conversationID uint, publicID string) (*Message, error) {
	for _, msg := range m.messages[conversationID] {
		if msg.PublicID == publicID {
			return msg, nil
		}
	}
	return nil, errors.New("not found")
}

func (m *mockRepository) UpdateMessage(ctx context.Context, msg *Message) error {
	return nil
}

func (m *mockRepository) BulkAddMessages(ctx context.Context, conversationID uint, msgs []*Message) error {
	for _, msg := range msgs {
		if err := m.AddMessage(ctx, conversationID, msg); err != nil {
			return err
		}
	}
	return nil
}

// mockReleaser records Release calls.
type mockReleaser struct {
	released []string
}

func (m *mockReleaser) Release(conversationID string) {
	m.released = append(m.released, conversationID)
}

func seedConversation(t *testing.T, svc *Service, userID string) *Conversation {
	t.Helper()
	conv, err := svc.Create(context.Background(), CreateInput{UserID: userID})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return conv
}

func seedMessage(t *testing.T, repo *mockRepository, conv *Conversation, publicID string, role MessageRole, content string, at time.Time) *Message {
	t.Helper()
	msg := &Message{
		PublicID:  publicID,
		Role:      role,
		Content:   content,
		CreatedAt: at,
	}
	if err := repo.AddMessage(context.Background(), conv.ID, msg); err != nil {
		t.Fatalf("AddMessage() error = %v", err)
	}
	return msg
}

func TestArchiveReleasesProcess(t *testing.T) {
	repo := newMockRepository()
	releaser := &mockReleaser{}
	svc := NewService(repo, releaser)

	conv := seedConversation(t, svc, "user-1")

	archived, err := svc.Archive(context.Background(), "user-1", conv.PublicID)
	if err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	if archived.Status != ConversationStatusArchived {
		t.Errorf("status = %s, want archived", archived.Status)
	}
	if len(releaser.released) != 1 || releaser.released[0] != conv.PublicID {
		t.Errorf("released = %v, want [%s]", releaser.released, conv.PublicID)
	}
}

func TestSoftDeleteReleasesProcessAndHidesConversation(t *testing.T) {
	repo := newMockRepository()
	releaser := &mockReleaser{}
	svc := NewService(repo, releaser)

	conv := seedConversation(t, svc, "user-1")

	if err := svc.SoftDelete(context.Background(), "user-1", conv.PublicID); err != nil {
		t.Fatalf("SoftDelete() error = %v", err)
	}
	if len(releaser.released) != 1 {
		t.Errorf("released = %v, want one release", releaser.released)
	}
	if _, err := svc.GetByPublicIDAndUserID(context.Background(), conv.PublicID, "user-1"); err == nil {
		t.Error("expected deleted conversation to be not found")
	}
}

func TestGetScopedToOwner(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, &mockReleaser{})

	conv := seedConversation(t, svc, "user-1")

	if _, err := svc.GetByPublicIDAndUserID(context.Background(), conv.PublicID, "user-2"); err == nil {
		t.Error("expected not found for other user")
	}
}

func TestBranchCopiesMessagesUpToBranchPoint(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, &mockReleaser{})

	conv := seedConversation(t, svc, "user-1")

	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	seedMessage(t, repo, conv, "msg_1", MessageRoleUser, "Hello", base)
	seedMessage(t, repo, conv, "msg_2", MessageRoleAssistant, "Hi there", base.Add(time.Second))
	deleted := seedMessage(t, repo, conv, "msg_3", MessageRoleUser, "deleted question", base.Add(2*time.Second))
	deleted.Deleted = true
	seedMessage(t, repo, conv, "msg_4", MessageRoleUser, "Follow up", base.Add(3*time.Second))
	seedMessage(t, repo, conv, "msg_5", MessageRoleAssistant, "Later answer", base.Add(4*time.Second))

	fork, err := svc.Branch(context.Background(), "user-1", conv.PublicID, "msg_4")
	if err != nil {
		t.Fatalf("Branch() error = %v", err)
	}

	if fork.ParentPublicID == nil || *fork.ParentPublicID != conv.PublicID {
		t.Errorf("fork parent = %v, want %s", fork.ParentPublicID, conv.PublicID)
	}
	if fork.BranchMessage == nil || *fork.BranchMessage != "msg_4" {
		t.Errorf("fork branch point = %v, want msg_4", fork.BranchMessage)
	}

	copies, err := repo.ListMessages(context.Background(), fork.ID, false)
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	want := []string{"Hello", "Hi there", "Follow up"}
	if len(copies) != len(want) {
		t.Fatalf("copied %d messages, want %d", len(copies), len(want))
	}
	for i, content := range want {
		if copies[i].Content != content {
			t.Errorf("copy[%d].Content = %q, want %q", i, copies[i].Content, content)
		}
		if copies[i].PublicID == "" || copies[i].PublicID[:4] != "msg_" {
			t.Errorf("copy[%d] has invalid public id %q", i, copies[i].PublicID)
		}
	}
}

func TestBranchRejectsDeletedBranchPoint(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, &mockReleaser{})

	conv := seedConversation(t, svc, "user-1")
	msg := seedMessage(t, repo, conv, "msg_1", MessageRoleUser, "Hello", time.Now().UTC())
	msg.Deleted = true

	if _, err := svc.Branch(context.Background(), "user-1", conv.PublicID, "msg_1"); err == nil {
		t.Error("expected error branching at deleted message")
	}
}

func TestTrimForRetryDeletesSingleFollowingAssistantMessage(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, &mockReleaser{})

	conv := seedConversation(t, svc, "user-1")

	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	seedMessage(t, repo, conv, "msg_1", MessageRoleUser, "First", base)
	seedMessage(t, repo, conv, "msg_2", MessageRoleAssistant, "First answer", base.Add(time.Second))
	user := seedMessage(t, repo, conv, "msg_3", MessageRoleUser, "Second", base.Add(2*time.Second))
	following := seedMessage(t, repo, conv, "msg_4", MessageRoleAssistant, "Second answer", base.Add(3*time.Second))
	later := seedMessage(t, repo, conv, "msg_5", MessageRoleAssistant, "Even later", base.Add(4*time.Second))

	got, err := svc.TrimForRetry(context.Background(), conv, user.PublicID)
	if err != nil {
		t.Fatalf("TrimForRetry() error = %v", err)
	}
	if got.PublicID != user.PublicID {
		t.Errorf("returned message = %s, want %s", got.PublicID, user.PublicID)
	}
	if !following.Deleted {
		t.Error("expected the nearest following assistant message to be soft-deleted")
	}
	if later.Deleted {
		t.Error("only the single nearest assistant message may be trimmed")
	}
}

func TestTrimForRetryWithNoFollowingAssistantMessage(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, &mockReleaser{})

	conv := seedConversation(t, svc, "user-1")
	user := seedMessage(t, repo, conv, "msg_1", MessageRoleUser, "Hello", time.Now().UTC())

	got, err := svc.TrimForRetry(context.Background(), conv, user.PublicID)
	if err != nil {
		t.Fatalf("TrimForRetry() error = %v", err)
	}
	if got.Content != "Hello" {
		t.Errorf("content = %q, want Hello", got.Content)
	}
}

func TestTrimForRetryRejectsAssistantMessage(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, &mockReleaser{})

	conv := seedConversation(t, svc, "user-1")
	seedMessage(t, repo, conv, "msg_1", MessageRoleAssistant, "answer", time.Now().UTC())

	if _, err := svc.TrimForRetry(context.Background(), conv, "msg_1"); err == nil {
		t.Error("expected error retrying an assistant message")
	}
}

func TestEditMessageOnlyUserMessages(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, &mockReleaser{})

	conv := seedConversation(t, svc, "user-1")
	seedMessage(t, repo, conv, "msg_1", MessageRoleAssistant, "answer", time.Now().UTC())
	user := seedMessage(t, repo, conv, "msg_2", MessageRoleUser, "question", time.Now().UTC())

	if _, err := svc.EditMessage(context.Background(), conv, "msg_1", "nope"); err == nil {
		t.Error("expected error editing assistant message")
	}

	edited, err := svc.EditMessage(context.Background(), conv, user.PublicID, "revised question")
	if err != nil {
		t.Fatalf("EditMessage() error = %v", err)
	}
	if edited.Content != "revised question" || !edited.Edited {
		t.Errorf("edited = %+v, want revised content with Edited flag", edited)
	}
}
