// Package databasetest provides an in-memory database.Store for tests.
package databasetest

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/TuneForge/internal/domain"
	"github.com/Strob0t/TuneForge/internal/domain/conversation"
	"github.com/Strob0t/TuneForge/internal/domain/dataset"
	"github.com/Strob0t/TuneForge/internal/domain/tool"
	"github.com/Strob0t/TuneForge/internal/domain/user"
	"github.com/Strob0t/TuneForge/internal/domain/workspace"
	"github.com/Strob0t/TuneForge/internal/port/database"
)

var _ database.Store = (*MemStore)(nil)

// MemStore keeps every record in memory. Lists preserve the orderings of the
// postgres store: newest first, messages by order then insertion.
// Calls counts store method invocations by name.
type MemStore struct {
	mu sync.Mutex

	users         []user.User
	workspaces    []workspace.Workspace
	datasets      []dataset.Dataset
	conversations []conversation.Conversation
	messages      []conversation.Message
	tools         []tool.Tool

	// RecordExportErr, when set, is returned by RecordExport.
	RecordExportErr error
	// ListConversationsErr, when set, is returned by ListConversations.
	ListConversationsErr error

	Calls map[string]int
	now   time.Time
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{Calls: map[string]int{}, now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// CallCount reports how often the named method ran.
func (s *MemStore) CallCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Calls[name]
}

// tick advances the store clock so timestamps are strictly increasing.
func (s *MemStore) tick(name string) time.Time {
	s.Calls[name]++
	s.now = s.now.Add(time.Second)
	return s.now
}

// --- Users ---

func (s *MemStore) CreateUser(_ context.Context, username, ipAddress string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.tick("CreateUser")
	for i := range s.users {
		if s.users[i].Username == username {
			return nil, fmt.Errorf("username %q: %w", username, domain.ErrConflict)
		}
	}
	u := user.User{ID: uuid.NewString(), Username: username, IPAddress: ipAddress, CreatedAt: now, UpdatedAt: now}
	s.users = append(s.users, u)
	return &u, nil
}

func (s *MemStore) GetUserByIP(_ context.Context, ipAddress string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick("GetUserByIP")
	for i := range s.users {
		if s.users[i].IPAddress == ipAddress {
			u := s.users[i]
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user with ip %s: %w", ipAddress, domain.ErrNotFound)
}

func (s *MemStore) ListUsers(_ context.Context) ([]user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick("ListUsers")
	return slices.Clone(s.users), nil
}

// --- Workspaces ---

func (s *MemStore) workspaceIndex(id string) int {
	for i := range s.workspaces {
		if s.workspaces[i].ID == id || s.workspaces[i].PublicID == id {
			return i
		}
	}
	return -1
}

func (s *MemStore) summary(w *workspace.Workspace) workspace.Summary {
	sum := workspace.Summary{Workspace: *w}
	for i := range s.datasets {
		if s.datasets[i].WorkspaceID == w.ID {
			sum.DatasetCount++
		}
	}
	for i := range s.tools {
		if s.tools[i].WorkspaceID == w.ID {
			sum.ToolCount++
		}
	}
	return sum
}

func (s *MemStore) ListWorkspaces(_ context.Context, userID string) ([]workspace.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick("ListWorkspaces")
	out := []workspace.Summary{}
	for i := len(s.workspaces) - 1; i >= 0; i-- {
		if s.workspaces[i].UserID == userID {
			out = append(out, s.summary(&s.workspaces[i]))
		}
	}
	return out, nil
}

func (s *MemStore) ListAllWorkspaces(_ context.Context) ([]workspace.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick("ListAllWorkspaces")
	out := []workspace.Summary{}
	for i := len(s.workspaces) - 1; i >= 0; i-- {
		out = append(out, s.summary(&s.workspaces[i]))
	}
	return out, nil
}

func (s *MemStore) GetWorkspace(_ context.Context, id string) (*workspace.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick("GetWorkspace")
	i := s.workspaceIndex(id)
	if i < 0 {
		return nil, fmt.Errorf("workspace %s: %w", id, domain.ErrNotFound)
	}
	w := s.workspaces[i]
	return &w, nil
}

func (s *MemStore) CreateWorkspace(_ context.Context, userID, publicID, name string) (*workspace.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.tick("CreateWorkspace")
	if !slices.ContainsFunc(s.users, func(u user.User) bool { return u.ID == userID }) {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrValidation)
	}
	w := workspace.Workspace{ID: uuid.NewString(), PublicID: publicID, Name: name, UserID: userID, CreatedAt: now, UpdatedAt: now}
	s.workspaces = append(s.workspaces, w)
	return &w, nil
}

func (s *MemStore) UpdateWorkspace(_ context.Context, id, name string) (*workspace.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.tick("UpdateWorkspace")
	i := s.workspaceIndex(id)
	if i < 0 {
		return nil, fmt.Errorf("workspace %s: %w", id, domain.ErrNotFound)
	}
	s.workspaces[i].Name = name
	s.workspaces[i].UpdatedAt = now
	w := s.workspaces[i]
	return &w, nil
}

func (s *MemStore) DeleteWorkspace(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick("DeleteWorkspace")
	i := s.workspaceIndex(id)
	if i < 0 {
		return fmt.Errorf("workspace %s: %w", id, domain.ErrNotFound)
	}
	wsID := s.workspaces[i].ID
	s.workspaces = slices.Delete(s.workspaces, i, i+1)
	s.tools = slices.DeleteFunc(s.tools, func(t tool.Tool) bool { return t.WorkspaceID == wsID })
	for _, d := range slices.Clone(s.datasets) {
		if d.WorkspaceID == wsID {
			s.deleteDatasetLocked(d.ID)
		}
	}
	return nil
}

// --- Datasets ---

func (s *MemStore) datasetIndex(id string) int {
	for i := range s.datasets {
		if s.datasets[i].ID == id || s.datasets[i].PublicID == id {
			return i
		}
	}
	return -1
}

func (s *MemStore) ListDatasets(_ context.Context, workspaceID string) ([]dataset.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick("ListDatasets")
	out := []dataset.Summary{}
	for i := len(s.datasets) - 1; i >= 0; i-- {
		d := s.datasets[i]
		if d.WorkspaceID != workspaceID {
			continue
		}
		sum := dataset.Summary{Dataset: d}
		for j := range s.conversations {
			if s.conversations[j].DatasetID == d.ID {
				sum.TrainingConversations++
			}
		}
		sum.TotalConversations = sum.LegacyConversations + sum.TrainingConversations
		out = append(out, sum)
	}
	return out, nil
}

func (s *MemStore) GetDataset(_ context.Context, id string) (*dataset.Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick("GetDataset")
	i := s.datasetIndex(id)
	if i < 0 {
		return nil, fmt.Errorf("dataset %s: %w", id, domain.ErrNotFound)
	}
	d := s.datasets[i]
	return &d, nil
}

func (s *MemStore) CreateDataset(_ context.Context, workspaceID, publicID string, req dataset.CreateRequest) (*dataset.Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.tick("CreateDataset")
	if s.workspaceIndex(workspaceID) < 0 {
		return nil, fmt.Errorf("workspace %s: %w", workspaceID, domain.ErrValidation)
	}
	d := dataset.Dataset{
		ID:          uuid.NewString(),
		PublicID:    publicID,
		WorkspaceID: workspaceID,
		Name:        req.Name,
		Description: req.Description,
		Purpose:     req.Purpose,
		Status:      dataset.StatusDraft,
		Model:       req.Model,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.datasets = append(s.datasets, d)
	return &d, nil
}

func (s *MemStore) UpdateDataset(_ context.Context, d *dataset.Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.tick("UpdateDataset")
	i := s.datasetIndex(d.ID)
	if i < 0 {
		return fmt.Errorf("dataset %s: %w", d.ID, domain.ErrNotFound)
	}
	d.UpdatedAt = now
	s.datasets[i] = *d
	return nil
}

func (s *MemStore) DeleteDataset(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick("DeleteDataset")
	i := s.datasetIndex(id)
	if i < 0 {
		return fmt.Errorf("dataset %s: %w", id, domain.ErrNotFound)
	}
	s.deleteDatasetLocked(s.datasets[i].ID)
	return nil
}

func (s *MemStore) deleteDatasetLocked(id string) {
	s.datasets = slices.DeleteFunc(s.datasets, func(d dataset.Dataset) bool { return d.ID == id })
	for _, c := range slices.Clone(s.conversations) {
		if c.DatasetID == id {
			s.deleteConversationLocked(c.ID)
		}
	}
}

func (s *MemStore) RecordExport(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.tick("RecordExport")
	if s.RecordExportErr != nil {
		return s.RecordExportErr
	}
	i := s.datasetIndex(id)
	if i < 0 {
		return fmt.Errorf("dataset %s: %w", id, domain.ErrNotFound)
	}
	s.datasets[i].ExportCount++
	s.datasets[i].LastExportAt = &now
	return nil
}

// --- Conversations ---

func (s *MemStore) conversationIndex(id string) int {
	return slices.IndexFunc(s.conversations, func(c conversation.Conversation) bool { return c.ID == id })
}

// withMessages returns a copy of c carrying its ordered messages.
func (s *MemStore) withMessages(c conversation.Conversation) conversation.Conversation {
	c.Messages = s.messagesLocked(c.ID)
	c.Tags = slices.Clone(c.Tags)
	return c
}

func (s *MemStore) messagesLocked(conversationID string) []conversation.Message {
	out := []conversation.Message{}
	for i := range s.messages {
		if s.messages[i].ConversationID == conversationID {
			m := s.messages[i]
			m.ToolCalls = slices.Clone(m.ToolCalls)
			out = append(out, m)
		}
	}
	slices.SortStableFunc(out, func(a, b conversation.Message) int { return a.Order - b.Order })
	return out
}

func (s *MemStore) ListConversations(_ context.Context, datasetID string) ([]conversation.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick("ListConversations")
	if s.ListConversationsErr != nil {
		return nil, s.ListConversationsErr
	}
	out := []conversation.Conversation{}
	for i := len(s.conversations) - 1; i >= 0; i-- {
		if s.conversations[i].DatasetID == datasetID {
			out = append(out, s.withMessages(s.conversations[i]))
		}
	}
	return out, nil
}

func (s *MemStore) GetConversation(_ context.Context, id string) (*conversation.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick("GetConversation")
	i := s.conversationIndex(id)
	if i < 0 {
		return nil, fmt.Errorf("conversation %s: %w", id, domain.ErrNotFound)
	}
	c := s.withMessages(s.conversations[i])
	return &c, nil
}

func (s *MemStore) CreateConversation(_ context.Context, datasetID string, req conversation.CreateRequest, msgs []conversation.NewMessage) (*conversation.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.tick("CreateConversation")
	if s.datasetIndex(datasetID) < 0 {
		return nil, fmt.Errorf("dataset %s: %w", datasetID, domain.ErrValidation)
	}
	c := conversation.Conversation{
		ID:          uuid.NewString(),
		DatasetID:   datasetID,
		Title:       req.Title,
		Description: req.Description,
		Tags:        slices.Clone(req.Tags),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.conversations = append(s.conversations, c)
	for i := range msgs {
		s.insertMessageLocked(c.ID, i, msgs[i], now)
	}
	out := s.withMessages(c)
	return &out, nil
}

func (s *MemStore) UpdateConversation(_ context.Context, c *conversation.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.tick("UpdateConversation")
	i := s.conversationIndex(c.ID)
	if i < 0 {
		return fmt.Errorf("conversation %s: %w", c.ID, domain.ErrNotFound)
	}
	s.conversations[i].Title = c.Title
	s.conversations[i].Description = c.Description
	s.conversations[i].Tags = slices.Clone(c.Tags)
	s.conversations[i].UpdatedAt = now
	c.UpdatedAt = now
	return nil
}

func (s *MemStore) DeleteConversation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick("DeleteConversation")
	if s.conversationIndex(id) < 0 {
		return fmt.Errorf("conversation %s: %w", id, domain.ErrNotFound)
	}
	s.deleteConversationLocked(id)
	return nil
}

func (s *MemStore) deleteConversationLocked(id string) {
	s.conversations = slices.DeleteFunc(s.conversations, func(c conversation.Conversation) bool { return c.ID == id })
	s.messages = slices.DeleteFunc(s.messages, func(m conversation.Message) bool { return m.ConversationID == id })
}

// --- Messages ---

func (s *MemStore) insertMessageLocked(conversationID string, order int, nm conversation.NewMessage, now time.Time) conversation.Message {
	m := conversation.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           nm.Role,
		Content:        nm.Content,
		Order:          order,
		Name:           nm.Name,
		ToolCallID:     nm.ToolCallID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	m.ToolCalls = toolCalls(m.ID, nm.ToolCalls, now)
	s.messages = append(s.messages, m)
	return m
}

func toolCalls(messageID string, in []conversation.NewToolCall, now time.Time) []conversation.ToolCall {
	out := []conversation.ToolCall{}
	for _, tc := range in {
		out = append(out, conversation.ToolCall{
			ID:                uuid.NewString(),
			MessageID:         messageID,
			CallID:            tc.CallID,
			Type:              tc.Type,
			FunctionName:      tc.FunctionName,
			FunctionArguments: tc.FunctionArguments,
			CreatedAt:         now,
		})
	}
	return out
}

func (s *MemStore) ListMessages(_ context.Context, conversationID string) ([]conversation.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick("ListMessages")
	if s.conversationIndex(conversationID) < 0 {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, domain.ErrNotFound)
	}
	return s.messagesLocked(conversationID), nil
}

func (s *MemStore) GetMessage(_ context.Context, id string) (*conversation.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick("GetMessage")
	for i := range s.messages {
		if s.messages[i].ID == id {
			m := s.messages[i]
			return &m, nil
		}
	}
	return nil, fmt.Errorf("message %s: %w", id, domain.ErrNotFound)
}

func (s *MemStore) AppendMessage(_ context.Context, conversationID string, nm conversation.NewMessage) (*conversation.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.tick("AppendMessage")
	if s.conversationIndex(conversationID) < 0 {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, domain.ErrNotFound)
	}
	next := 0
	for i := range s.messages {
		if s.messages[i].ConversationID == conversationID && s.messages[i].Order >= next {
			next = s.messages[i].Order + 1
		}
	}
	m := s.insertMessageLocked(conversationID, next, nm, now)
	return &m, nil
}

func (s *MemStore) UpdateMessage(_ context.Context, id string, content *string, calls []conversation.NewToolCall) (*conversation.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.tick("UpdateMessage")
	i := slices.IndexFunc(s.messages, func(m conversation.Message) bool { return m.ID == id })
	if i < 0 {
		return nil, fmt.Errorf("message %s: %w", id, domain.ErrNotFound)
	}
	if content != nil {
		s.messages[i].Content = content
	}
	s.messages[i].ToolCalls = toolCalls(id, calls, now)
	s.messages[i].UpdatedAt = now
	m := s.messages[i]
	return &m, nil
}

func (s *MemStore) DeleteMessage(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick("DeleteMessage")
	i := slices.IndexFunc(s.messages, func(m conversation.Message) bool { return m.ID == id })
	if i < 0 {
		return fmt.Errorf("message %s: %w", id, domain.ErrNotFound)
	}
	s.messages = slices.Delete(s.messages, i, i+1)
	return nil
}

// --- Tools ---

func (s *MemStore) toolIndex(id string) int {
	return slices.IndexFunc(s.tools, func(t tool.Tool) bool { return t.ID == id })
}

func (s *MemStore) ListTools(_ context.Context, workspaceID string) ([]tool.Tool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick("ListTools")
	out := []tool.Tool{}
	for i := len(s.tools) - 1; i >= 0; i-- {
		if s.tools[i].WorkspaceID == workspaceID {
			out = append(out, s.tools[i])
		}
	}
	return out, nil
}

func (s *MemStore) GetTool(_ context.Context, id string) (*tool.Tool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick("GetTool")
	i := s.toolIndex(id)
	if i < 0 {
		return nil, fmt.Errorf("tool %s: %w", id, domain.ErrNotFound)
	}
	t := s.tools[i]
	return &t, nil
}

func (s *MemStore) CreateTool(_ context.Context, workspaceID string, f tool.Fields) (*tool.Tool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.tick("CreateTool")
	for i := range s.tools {
		if s.tools[i].WorkspaceID == workspaceID && s.tools[i].Name == f.Name {
			return nil, fmt.Errorf("tool %q: %w", f.Name, domain.ErrConflict)
		}
	}
	t := tool.Tool{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		Name:        f.Name,
		Description: f.Description,
		Parameters:  f.Parameters,
		APIURL:      f.APIURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.tools = append(s.tools, t)
	return &t, nil
}

func (s *MemStore) UpdateTool(_ context.Context, id string, f tool.Fields) (*tool.Tool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.tick("UpdateTool")
	i := s.toolIndex(id)
	if i < 0 {
		return nil, fmt.Errorf("tool %s: %w", id, domain.ErrNotFound)
	}
	t := &s.tools[i]
	t.Name, t.Description, t.Parameters, t.APIURL = f.Name, f.Description, f.Parameters, f.APIURL
	t.UpdatedAt = now
	out := *t
	return &out, nil
}

func (s *MemStore) DeleteTool(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick("DeleteTool")
	i := s.toolIndex(id)
	if i < 0 {
		return fmt.Errorf("tool %s: %w", id, domain.ErrNotFound)
	}
	s.tools = slices.Delete(s.tools, i, i+1)
	return nil
}

func (s *MemStore) IncrementToolUsage(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick("IncrementToolUsage")
	i := s.toolIndex(id)
	if i < 0 {
		return fmt.Errorf("tool %s: %w", id, domain.ErrNotFound)
	}
	s.tools[i].UsageCount++
	return nil
}

// --- Ownership ---

func (s *MemStore) ResourceOwner(_ context.Context, kind database.ResourceKind, id string) (database.Owner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick("ResourceOwner")

	wsID := ""
	switch kind {
	case database.KindWorkspace:
		if i := s.workspaceIndex(id); i >= 0 {
			wsID = s.workspaces[i].ID
		}
	case database.KindDataset:
		if i := s.datasetIndex(id); i >= 0 {
			wsID = s.datasets[i].WorkspaceID
		}
	case database.KindConversation:
		wsID = s.conversationWorkspace(id)
	case database.KindMessage:
		if i := slices.IndexFunc(s.messages, func(m conversation.Message) bool { return m.ID == id }); i >= 0 {
			wsID = s.conversationWorkspace(s.messages[i].ConversationID)
		}
	case database.KindTool:
		if i := s.toolIndex(id); i >= 0 {
			wsID = s.tools[i].WorkspaceID
		}
	}
	i := s.workspaceIndex(wsID)
	if wsID == "" || i < 0 {
		return database.Owner{}, fmt.Errorf("%s %s: %w", kind, id, domain.ErrNotFound)
	}
	return database.Owner{WorkspaceID: wsID, UserID: s.workspaces[i].UserID}, nil
}

func (s *MemStore) conversationWorkspace(id string) string {
	i := s.conversationIndex(id)
	if i < 0 {
		return ""
	}
	if j := s.datasetIndex(s.conversations[i].DatasetID); j >= 0 {
		return s.datasets[j].WorkspaceID
	}
	return ""
}
