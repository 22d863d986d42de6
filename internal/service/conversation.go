package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Strob0t/TuneForge/internal/domain/conversation"
	"github.com/Strob0t/TuneForge/internal/domain/event"
	"github.com/Strob0t/TuneForge/internal/port/broadcast"
	"github.com/Strob0t/TuneForge/internal/port/database"
)

// ConversationService manages training conversations and their messages.
type ConversationService struct {
	store  database.Store
	events broadcast.Broadcaster
	now    func() time.Time
}

// NewConversationService creates a new ConversationService.
func NewConversationService(store database.Store, events broadcast.Broadcaster) *ConversationService {
	return &ConversationService{store: store, events: orNop(events), now: time.Now}
}

// List returns a dataset's conversations, newest first, with ordered messages.
func (s *ConversationService) List(ctx context.Context, callerID, datasetID string) ([]conversation.Conversation, error) {
	if _, err := authorize(ctx, s.store, callerID, database.KindDataset, datasetID); err != nil {
		return nil, err
	}
	d, err := s.store.GetDataset(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	return s.store.ListConversations(ctx, d.ID)
}

// Create adds a conversation with its initial messages, numbered from 0.
func (s *ConversationService) Create(ctx context.Context, callerID, datasetID string, req conversation.CreateRequest) (*conversation.Conversation, error) {
	if err := req.Normalize(s.now()); err != nil {
		return nil, err
	}
	msgs := make([]conversation.NewMessage, 0, len(req.Messages))
	for i := range req.Messages {
		m, err := req.Messages[i].ToNewMessage()
		if err != nil {
			return nil, fmt.Errorf("messages[%d]: %w", i, err)
		}
		msgs = append(msgs, m)
	}

	owner, err := authorize(ctx, s.store, callerID, database.KindDataset, datasetID)
	if err != nil {
		return nil, err
	}
	d, err := s.store.GetDataset(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	c, err := s.store.CreateConversation(ctx, d.ID, req, msgs)
	if err != nil {
		return nil, err
	}
	emit(ctx, s.events, event.TypeConversationCreated, callerID, owner.WorkspaceID, c.ID)
	return c, nil
}

// Get returns a conversation with its ordered messages.
func (s *ConversationService) Get(ctx context.Context, callerID, id string) (*conversation.Conversation, error) {
	if _, err := authorize(ctx, s.store, callerID, database.KindConversation, id); err != nil {
		return nil, err
	}
	return s.store.GetConversation(ctx, id)
}

// Update changes title, description or tags.
func (s *ConversationService) Update(ctx context.Context, callerID, id string, req conversation.UpdateRequest) (*conversation.Conversation, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	owner, err := authorize(ctx, s.store, callerID, database.KindConversation, id)
	if err != nil {
		return nil, err
	}
	c, err := s.store.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	req.Apply(c)
	if err := s.store.UpdateConversation(ctx, c); err != nil {
		return nil, err
	}
	emit(ctx, s.events, event.TypeConversationUpdated, callerID, owner.WorkspaceID, c.ID)
	return c, nil
}

// Delete removes a conversation with its messages.
func (s *ConversationService) Delete(ctx context.Context, callerID, id string) error {
	owner, err := authorize(ctx, s.store, callerID, database.KindConversation, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteConversation(ctx, id); err != nil {
		return err
	}
	emit(ctx, s.events, event.TypeConversationDeleted, callerID, owner.WorkspaceID, id)
	return nil
}

// ListMessages returns a conversation's messages in order.
func (s *ConversationService) ListMessages(ctx context.Context, callerID, conversationID string) ([]conversation.Message, error) {
	if _, err := authorize(ctx, s.store, callerID, database.KindConversation, conversationID); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, conversationID)
}

// GetMessage returns a single message with its tool calls.
func (s *ConversationService) GetMessage(ctx context.Context, callerID, id string) (*conversation.Message, error) {
	if _, err := authorize(ctx, s.store, callerID, database.KindMessage, id); err != nil {
		return nil, err
	}
	return s.store.GetMessage(ctx, id)
}

// AppendMessage adds a message after the conversation's current last one.
func (s *ConversationService) AppendMessage(ctx context.Context, callerID, conversationID string, req conversation.CreateMessageRequest) (*conversation.Message, error) {
	msg, err := req.ToNewMessage()
	if err != nil {
		return nil, err
	}
	owner, err := authorize(ctx, s.store, callerID, database.KindConversation, conversationID)
	if err != nil {
		return nil, err
	}
	m, err := s.store.AppendMessage(ctx, conversationID, msg)
	if err != nil {
		return nil, err
	}
	emit(ctx, s.events, event.TypeMessageCreated, callerID, owner.WorkspaceID, m.ID)
	return m, nil
}

// UpdateMessage replaces a message's tool calls and, when given, its content.
func (s *ConversationService) UpdateMessage(ctx context.Context, callerID, id string, req conversation.UpdateMessageRequest) (*conversation.Message, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	calls, err := conversation.NormalizeToolCalls(req.ToolCalls)
	if err != nil {
		return nil, err
	}
	owner, err := authorize(ctx, s.store, callerID, database.KindMessage, id)
	if err != nil {
		return nil, err
	}
	m, err := s.store.UpdateMessage(ctx, id, req.Content, calls)
	if err != nil {
		return nil, err
	}
	emit(ctx, s.events, event.TypeMessageUpdated, callerID, owner.WorkspaceID, m.ID)
	return m, nil
}

// DeleteMessage removes one message; the others keep their order values.
func (s *ConversationService) DeleteMessage(ctx context.Context, callerID, id string) error {
	owner, err := authorize(ctx, s.store, callerID, database.KindMessage, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteMessage(ctx, id); err != nil {
		return err
	}
	emit(ctx, s.events, event.TypeMessageDeleted, callerID, owner.WorkspaceID, id)
	return nil
}
