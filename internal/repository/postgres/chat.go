package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/aslmarket/aslmatch/internal/domain"
	"github.com/aslmarket/aslmatch/internal/service/chat"
)

// ChatRepo implements chat.Repository against PostgreSQL.
type ChatRepo struct{ db *sql.DB }

// NewChatRepo creates a Postgres-backed chat repository.
func NewChatRepo(db *sql.DB) *ChatRepo { return &ChatRepo{db: db} }

const conversationColumns = `id, request_id, supplier_id, visitor_id, is_active, last_seq, last_message_at, created_at`

func scanConversation(row rowScanner) (*domain.Conversation, error) {
	var (
		c    domain.Conversation
		last sql.NullTime
	)
	if err := row.Scan(&c.ID, &c.RequestID, &c.SupplierID, &c.VisitorID, &c.IsActive, &c.LastSeq, &last, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.LastMessageAt = timePtr(last)
	return &c, nil
}

func (r *ChatRepo) CreateConversation(ctx context.Context, c *domain.Conversation) (*domain.Conversation, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO conversations (id, request_id, supplier_id, visitor_id, is_active, last_seq, created_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6)
		ON CONFLICT (request_id) DO NOTHING
	`, c.ID, c.RequestID, c.SupplierID, c.VisitorID, c.IsActive, c.CreatedAt)
	if err != nil {
		return nil, storeErr("create conversation", err)
	}
	return r.ConversationByRequest(ctx, c.RequestID)
}

func (r *ChatRepo) Conversation(ctx context.Context, id string) (*domain.Conversation, error) {
	c, err := scanConversation(r.db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, chat.ErrNotFound
	}
	if err != nil {
		return nil, storeErr("get conversation", err)
	}
	return c, nil
}

func (r *ChatRepo) ConversationByRequest(ctx context.Context, requestID string) (*domain.Conversation, error) {
	c, err := scanConversation(r.db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE request_id = $1`, requestID))
	if err == sql.ErrNoRows {
		return nil, chat.ErrNotFound
	}
	if err != nil {
		return nil, storeErr("get conversation by request", err)
	}
	return c, nil
}

// AppendMessage bumps the conversation counter and inserts the message in
// one transaction. The row lock taken by the UPDATE serializes writers.
func (r *ChatRepo) AppendMessage(ctx context.Context, m *domain.Message) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin append message", err)
	}
	defer tx.Rollback()

	var seq int64
	var at time.Time
	err = tx.QueryRowContext(ctx, `
		UPDATE conversations
		SET last_seq = last_seq + 1,
		    last_message_at = GREATEST(COALESCE(last_message_at, $2), $2)
		WHERE id = $1
		RETURNING last_seq, last_message_at
	`, m.ConversationID, m.CreatedAt).Scan(&seq, &at)
	if err == sql.ErrNoRows {
		return chat.ErrNotFound
	}
	if err != nil {
		return storeErr("advance conversation seq", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, seq, sender_id, sender_type, body, image_url, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false, $8)
	`, m.ID, m.ConversationID, seq, m.SenderID, m.SenderType, m.Body, m.ImageURL, at)
	if err != nil {
		return storeErr("insert message", err)
	}
	if err := tx.Commit(); err != nil {
		return storeErr("commit message", err)
	}
	m.Seq = seq
	m.CreatedAt = at
	return nil
}

const messageColumns = `id, conversation_id, seq, sender_id, sender_type, body, image_url, is_read, read_at, created_at`

func scanMessage(row rowScanner) (*domain.Message, error) {
	var (
		m      domain.Message
		readAt sql.NullTime
	)
	if err := row.Scan(&m.ID, &m.ConversationID, &m.Seq, &m.SenderID, &m.SenderType, &m.Body, &m.ImageURL, &m.IsRead, &readAt, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.ReadAt = timePtr(readAt)
	return &m, nil
}

func (r *ChatRepo) Message(ctx context.Context, id string) (*domain.Message, error) {
	m, err := scanMessage(r.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, chat.ErrMessageMissing
	}
	if err != nil {
		return nil, storeErr("get message", err)
	}
	return m, nil
}

func (r *ChatRepo) Messages(ctx context.Context, conversationID string, afterSeq int64, limit int) ([]domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE conversation_id = $1 AND seq > $2
		ORDER BY seq
		LIMIT $3
	`, conversationID, afterSeq, limit)
	if err != nil {
		return nil, storeErr("list messages", err)
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, storeErr("scan message", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (r *ChatRepo) MarkRead(ctx context.Context, conversationID, readerID string, uptoSeq int64, at time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages SET is_read = true, read_at = $4
		WHERE conversation_id = $1 AND sender_id <> $2 AND seq <= $3 AND NOT is_read
	`, conversationID, readerID, uptoSeq, at)
	if err != nil {
		return 0, storeErr("mark messages read", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *ChatRepo) ListForUser(ctx context.Context, userID string) ([]domain.ConversationSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.request_id, c.supplier_id, c.visitor_id, c.is_active, c.last_seq,
		       c.last_message_at, c.created_at,
		       COALESCE((SELECT m.body FROM messages m WHERE m.conversation_id = c.id ORDER BY m.seq DESC LIMIT 1), ''),
		       (SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id AND m.sender_id <> $1 AND NOT m.is_read)
		FROM conversations c
		WHERE c.supplier_id = $1 OR c.visitor_id = $1
		ORDER BY COALESCE(c.last_message_at, c.created_at) DESC
	`, userID)
	if err != nil {
		return nil, storeErr("list conversations", err)
	}
	defer rows.Close()

	var out []domain.ConversationSummary
	for rows.Next() {
		var (
			s    domain.ConversationSummary
			last sql.NullTime
		)
		if err := rows.Scan(&s.ID, &s.RequestID, &s.SupplierID, &s.VisitorID, &s.IsActive, &s.LastSeq,
			&last, &s.CreatedAt, &s.LastMessage, &s.UnreadCount); err != nil {
			return nil, storeErr("scan conversation", err)
		}
		s.LastMessageAt = timePtr(last)
		out = append(out, s)
	}
	return out, rows.Err()
}
