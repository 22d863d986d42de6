package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Strob0t/TuneForge/internal/domain"
	"github.com/Strob0t/TuneForge/internal/domain/conversation"
)

const conversationColumns = `c.id, c.dataset_id, c.title, c.description, c.tags, c.created_at, c.updated_at`

func scanConversation(row scannable) (conversation.Conversation, error) {
	var c conversation.Conversation
	err := row.Scan(&c.ID, &c.DatasetID, &c.Title, &c.Description, &c.Tags, &c.CreatedAt, &c.UpdatedAt)
	c.Tags = orEmpty(c.Tags)
	c.Messages = []conversation.Message{}
	return c, err
}

func (s *Store) ListConversations(ctx context.Context, datasetID string) ([]conversation.Conversation, error) {
	if !isUUID(datasetID) {
		return []conversation.Conversation{}, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+conversationColumns+` FROM training_conversations c
		 WHERE c.dataset_id = $1 ORDER BY c.created_at DESC, c.id`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var convs []conversation.Conversation
	index := make(map[string]int)
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		index[c.ID] = len(convs)
		convs = append(convs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	if len(convs) == 0 {
		return []conversation.Conversation{}, nil
	}

	msgs, err := loadMessages(ctx, s.pool, scopeDataset, datasetID)
	if err != nil {
		return nil, err
	}
	for i := range msgs {
		if ci, ok := index[msgs[i].ConversationID]; ok {
			convs[ci].Messages = append(convs[ci].Messages, msgs[i])
		}
	}
	return convs, nil
}

func (s *Store) GetConversation(ctx context.Context, id string) (*conversation.Conversation, error) {
	if !isUUID(id) {
		return nil, fmt.Errorf("get conversation %s: %w", id, domain.ErrNotFound)
	}
	c, err := scanConversation(s.pool.QueryRow(ctx,
		`SELECT `+conversationColumns+` FROM training_conversations c WHERE c.id = $1`, id))
	if err != nil {
		return nil, classify(err, "get conversation %s", id)
	}
	msgs, err := loadMessages(ctx, s.pool, scopeConversation, id)
	if err != nil {
		return nil, err
	}
	c.Messages = msgs
	return &c, nil
}

// CreateConversation inserts the conversation and its initial messages,
// numbered 0..n-1, in one transaction.
func (s *Store) CreateConversation(ctx context.Context, datasetID string, req conversation.CreateRequest, msgs []conversation.NewMessage) (*conversation.Conversation, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	c, err := scanConversation(tx.QueryRow(ctx,
		`INSERT INTO training_conversations AS c (dataset_id, title, description, tags)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+conversationColumns,
		datasetID, req.Title, req.Description, pgTextArray(req.Tags)))
	if err != nil {
		return nil, classify(err, "create conversation")
	}

	for i := range msgs {
		m, err := insertMessage(ctx, tx, c.ID, i, &msgs[i])
		if err != nil {
			return nil, err
		}
		c.Messages = append(c.Messages, m)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit conversation: %w", err)
	}
	return &c, nil
}

func (s *Store) UpdateConversation(ctx context.Context, c *conversation.Conversation) error {
	err := s.pool.QueryRow(ctx,
		`UPDATE training_conversations SET title = $2, description = $3, tags = $4, updated_at = now()
		 WHERE id = $1 RETURNING updated_at`,
		c.ID, c.Title, c.Description, pgTextArray(c.Tags)).Scan(&c.UpdatedAt)
	if err != nil {
		return classify(err, "update conversation %s", c.ID)
	}
	return nil
}

func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	if !isUUID(id) {
		return fmt.Errorf("delete conversation %s: %w", id, domain.ErrNotFound)
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM training_conversations WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete conversation %s", id)
}

// --- Messages ---

const messageColumns = `m.id, m.conversation_id, m.role, m.content, m."order", m.name, m.tool_call_id, m.created_at, m.updated_at`

const toolCallColumns = `tc.id, tc.message_id, tc.call_id, tc.type, tc.function_name, tc.function_arguments, tc.created_at`

// messageScope selects which messages loadMessages reads.
type messageScope struct {
	join  string
	where string
}

var (
	scopeConversation = messageScope{where: `m.conversation_id = $1`}
	scopeDataset      = messageScope{
		join:  `JOIN training_conversations c ON c.id = m.conversation_id`,
		where: `c.dataset_id = $1`,
	}
	scopeMessage = messageScope{where: `m.id = $1`}
)

func scanMessage(row scannable) (conversation.Message, error) {
	var m conversation.Message
	var role string
	err := row.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &m.Order, &m.Name, &m.ToolCallID, &m.CreatedAt, &m.UpdatedAt)
	m.Role = conversation.Role(role)
	m.ToolCalls = []conversation.ToolCall{}
	return m, err
}

func scanToolCall(row scannable) (conversation.ToolCall, error) {
	var tc conversation.ToolCall
	err := row.Scan(&tc.ID, &tc.MessageID, &tc.CallID, &tc.Type, &tc.FunctionName, &tc.FunctionArguments, &tc.CreatedAt)
	return tc, err
}

// loadMessages reads messages in order ascending (created_at breaks ties)
// with their tool calls in insertion order. Tool calls written in one
// transaction share created_at, so they are ordered by position.
func loadMessages(ctx context.Context, q queryer, scope messageScope, arg string) ([]conversation.Message, error) {
	rows, err := q.Query(ctx,
		`SELECT `+messageColumns+` FROM messages m `+scope.join+`
		 WHERE `+scope.where+`
		 ORDER BY m.conversation_id, m."order" ASC, m.created_at ASC, m.id ASC`, arg)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []conversation.Message
	index := make(map[string]int)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		index[m.ID] = len(msgs)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if len(msgs) == 0 {
		return []conversation.Message{}, nil
	}

	tcRows, err := q.Query(ctx,
		`SELECT `+toolCallColumns+` FROM tool_calls tc
		 JOIN messages m ON m.id = tc.message_id `+scope.join+`
		 WHERE `+scope.where+`
		 ORDER BY tc.message_id, tc.position ASC`, arg)
	if err != nil {
		return nil, fmt.Errorf("list tool calls: %w", err)
	}
	defer tcRows.Close()

	for tcRows.Next() {
		tc, err := scanToolCall(tcRows)
		if err != nil {
			return nil, fmt.Errorf("scan tool call: %w", err)
		}
		if i, ok := index[tc.MessageID]; ok {
			msgs[i].ToolCalls = append(msgs[i].ToolCalls, tc)
		}
	}
	return msgs, tcRows.Err()
}

func insertMessage(ctx context.Context, tx pgx.Tx, conversationID string, order int, msg *conversation.NewMessage) (conversation.Message, error) {
	m, err := scanMessage(tx.QueryRow(ctx,
		`INSERT INTO messages AS m (conversation_id, role, content, "order", name, tool_call_id)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+messageColumns,
		conversationID, string(msg.Role), msg.Content, order, msg.Name, msg.ToolCallID))
	if err != nil {
		return conversation.Message{}, classify(err, "insert message")
	}
	calls, err := insertToolCalls(ctx, tx, m.ID, msg.ToolCalls)
	if err != nil {
		return conversation.Message{}, err
	}
	m.ToolCalls = calls
	return m, nil
}

func insertToolCalls(ctx context.Context, tx pgx.Tx, messageID string, calls []conversation.NewToolCall) ([]conversation.ToolCall, error) {
	out := make([]conversation.ToolCall, 0, len(calls))
	for i, c := range calls {
		tc, err := scanToolCall(tx.QueryRow(ctx,
			`INSERT INTO tool_calls AS tc (message_id, call_id, type, function_name, function_arguments, position)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING `+toolCallColumns,
			messageID, c.CallID, c.Type, c.FunctionName, c.FunctionArguments, i))
		if err != nil {
			return nil, classify(err, "insert tool call")
		}
		out = append(out, tc)
	}
	return out, nil
}

func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]conversation.Message, error) {
	if !isUUID(conversationID) {
		return []conversation.Message{}, nil
	}
	return loadMessages(ctx, s.pool, scopeConversation, conversationID)
}

func (s *Store) GetMessage(ctx context.Context, id string) (*conversation.Message, error) {
	if !isUUID(id) {
		return nil, fmt.Errorf("get message %s: %w", id, domain.ErrNotFound)
	}
	msgs, err := loadMessages(ctx, s.pool, scopeMessage, id)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("get message %s: %w", id, domain.ErrNotFound)
	}
	return &msgs[0], nil
}

// AppendMessage stores msg with order one past the conversation's current
// maximum (0 for an empty conversation). The conversation row is locked for
// the duration so concurrent appends on one conversation queue up.
func (s *Store) AppendMessage(ctx context.Context, conversationID string, msg conversation.NewMessage) (*conversation.Message, error) {
	if !isUUID(conversationID) {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, domain.ErrNotFound)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	var lockedID string
	if err := tx.QueryRow(ctx,
		`SELECT id FROM training_conversations WHERE id = $1 FOR UPDATE`, conversationID).Scan(&lockedID); err != nil {
		return nil, classify(err, "conversation %s", conversationID)
	}

	var next int
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX("order"), -1) + 1 FROM messages WHERE conversation_id = $1`, conversationID).Scan(&next); err != nil {
		return nil, fmt.Errorf("next message order: %w", err)
	}

	m, err := insertMessage(ctx, tx, conversationID, next, &msg)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE training_conversations SET updated_at = now() WHERE id = $1`, conversationID); err != nil {
		return nil, fmt.Errorf("touch conversation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit message: %w", err)
	}
	return &m, nil
}

// UpdateMessage replaces all tool calls and, when content is non-nil, the
// content of a message in one transaction.
func (s *Store) UpdateMessage(ctx context.Context, id string, content *string, calls []conversation.NewToolCall) (*conversation.Message, error) {
	if !isUUID(id) {
		return nil, fmt.Errorf("update message %s: %w", id, domain.ErrNotFound)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	m, err := scanMessage(tx.QueryRow(ctx,
		`UPDATE messages AS m SET content = CASE WHEN $2 THEN $3 ELSE m.content END, updated_at = now()
		 WHERE m.id = $1
		 RETURNING `+messageColumns,
		id, content != nil, content))
	if err != nil {
		return nil, classify(err, "update message %s", id)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM tool_calls WHERE message_id = $1`, id); err != nil {
		return nil, fmt.Errorf("clear tool calls: %w", err)
	}
	m.ToolCalls, err = insertToolCalls(ctx, tx, id, calls)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit message: %w", err)
	}
	return &m, nil
}

func (s *Store) DeleteMessage(ctx context.Context, id string) error {
	if !isUUID(id) {
		return fmt.Errorf("delete message %s: %w", id, domain.ErrNotFound)
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete message %s", id)
}
