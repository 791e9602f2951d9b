package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/parley-app/parley/internal/model/chat"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
    id TEXT PRIMARY KEY,
    seq INTEGER NOT NULL UNIQUE,
    title TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    last_message_at INTEGER
);

CREATE TABLE IF NOT EXISTS messages (
    id TEXT PRIMARY KEY,
    conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_transcript
    ON messages(conversation_id, created_at, id);
`

// SQLite persists conversations and messages in a single sqlite database.
// Timestamps are stored as unix nanoseconds so the (created_at, id) order
// and cursor round-trips are exact.
type SQLite struct {
	db *sql.DB
}

var _ Store = (*SQLite)(nil)

// Open creates (or opens) the database at path and applies the schema.
func Open(path string) (*SQLite, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// A single connection sidesteps SQLITE_BUSY between pooled writers and
	// keeps :memory: databases usable in tests.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// CreateConversation allocates the next display counter value and inserts
// the row in one transaction, so concurrent creations never share a seq.
func (s *SQLite) CreateConversation(ctx context.Context, title string) (chat.Conversation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return chat.Conversation{}, err
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM conversations`).Scan(&seq); err != nil {
		return chat.Conversation{}, fmt.Errorf("allocate seq: %w", err)
	}

	if title == "" {
		title = fmt.Sprintf("Conversation #%d", seq)
	}

	conv := chat.Conversation{
		ID:        uuid.NewString(),
		Seq:       seq,
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO conversations (id, seq, title, created_at) VALUES (?, ?, ?, ?)`,
		conv.ID, conv.Seq, conv.Title, conv.CreatedAt.UnixNano())
	if err != nil {
		return chat.Conversation{}, fmt.Errorf("insert conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return chat.Conversation{}, err
	}
	return conv, nil
}

func (s *SQLite) GetConversation(ctx context.Context, id string) (chat.Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, seq, title, created_at, last_message_at FROM conversations WHERE id = ?`, id)
	return scanConversation(row)
}

func (s *SQLite) ListConversations(ctx context.Context) ([]chat.Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, seq, title, created_at, last_message_at FROM conversations ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	conversations := make([]chat.Conversation, 0)
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}

func (s *SQLite) RenameConversation(ctx context.Context, id, title string) (chat.Conversation, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE conversations SET title = ? WHERE id = ?`, title, id)
	if err != nil {
		return chat.Conversation{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return chat.Conversation{}, ErrConversationNotFound
	}
	return s.GetConversation(ctx, id)
}

func (s *SQLite) TouchConversation(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET last_message_at = ? WHERE id = ?`, at.UTC().UnixNano(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// DeleteConversation removes the conversation; owned messages go with it
// via ON DELETE CASCADE.
func (s *SQLite) DeleteConversation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConversationNotFound
	}
	return nil
}

func (s *SQLite) CreateMessage(ctx context.Context, conversationID, role, content string) (chat.Message, error) {
	msg := chat.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, msg.Role, msg.Content, msg.CreatedAt.UnixNano())
	if err != nil {
		return chat.Message{}, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

func (s *SQLite) GetMessage(ctx context.Context, id string) (chat.Message, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, conversation_id, role, content, created_at FROM messages WHERE id = ?`, id)
	msg, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return chat.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// FindRecentUserMessage returns the most recent user message in the
// conversation with exactly this content, no older than the window.
func (s *SQLite) FindRecentUserMessage(ctx context.Context, conversationID, content string, window time.Duration) (chat.Message, error) {
	since := time.Now().UTC().Add(-window).UnixNano()
	row := s.db.QueryRowContext(ctx, `
        SELECT id, conversation_id, role, content, created_at
        FROM messages
        WHERE conversation_id = ? AND role = ? AND content = ? AND created_at >= ?
        ORDER BY created_at DESC, id DESC
        LIMIT 1`,
		conversationID, chat.RoleUser, content, since)
	msg, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return chat.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// ListAllMessages returns the full transcript, oldest first.
func (s *SQLite) ListAllMessages(ctx context.Context, conversationID string) ([]chat.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, conversation_id, role, content, created_at
        FROM messages
        WHERE conversation_id = ?
        ORDER BY created_at ASC, id ASC`,
		conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMessages(rows)
}

// ListMessagesPage returns up to limit messages strictly older than the
// cursor boundary (or the newest messages when cursor is nil). It fetches
// one extra row to learn whether older data remains.
func (s *SQLite) ListMessagesPage(ctx context.Context, conversationID string, cursor *chat.Cursor, limit int) (Page, error) {
	query := `
        SELECT id, conversation_id, role, content, created_at
        FROM messages
        WHERE conversation_id = ?`
	args := []any{conversationID}

	if cursor != nil {
		query += ` AND (created_at < ? OR (created_at = ? AND id < ?))`
		boundary := cursor.CreatedAt.UnixNano()
		args = append(args, boundary, boundary, cursor.MessageID)
	}

	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return Page{}, err
	}
	defer rows.Close()

	descending, err := collectMessages(rows)
	if err != nil {
		return Page{}, err
	}

	page := Page{HasMore: len(descending) > limit}
	if page.HasMore {
		descending = descending[:limit]
	}

	// Reverse into ascending transcript order.
	page.Messages = make([]chat.Message, len(descending))
	for i, msg := range descending {
		page.Messages[len(descending)-1-i] = msg
	}

	if page.HasMore && len(page.Messages) > 0 {
		oldest := page.Messages[0]
		page.NextCursor = &chat.Cursor{MessageID: oldest.ID, CreatedAt: oldest.CreatedAt}
	}
	return page, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (chat.Conversation, error) {
	var (
		conv      chat.Conversation
		createdAt int64
		lastAt    sql.NullInt64
	)
	err := row.Scan(&conv.ID, &conv.Seq, &conv.Title, &createdAt, &lastAt)
	if err == sql.ErrNoRows {
		return chat.Conversation{}, ErrConversationNotFound
	}
	if err != nil {
		return chat.Conversation{}, err
	}
	conv.CreatedAt = time.Unix(0, createdAt).UTC()
	if lastAt.Valid {
		ts := time.Unix(0, lastAt.Int64).UTC()
		conv.LastMessageAt = &ts
	}
	return conv, nil
}

func scanMessage(row rowScanner) (chat.Message, error) {
	var (
		msg       chat.Message
		createdAt int64
	)
	err := row.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &createdAt)
	if err != nil {
		return chat.Message{}, err
	}
	msg.CreatedAt = time.Unix(0, createdAt).UTC()
	return msg, nil
}

func collectMessages(rows *sql.Rows) ([]chat.Message, error) {
	messages := make([]chat.Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
