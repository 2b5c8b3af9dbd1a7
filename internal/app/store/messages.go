package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"pulsechat/internal/app/chat"
)

// Messages is the message repository. It satisfies chat.MessageStore.
type Messages struct {
	pool          *pgxpool.Pool
	conversations *Conversations
}

func NewMessages(pool *pgxpool.Pool, conversations *Conversations) *Messages {
	return &Messages{pool: pool, conversations: conversations}
}

// Append durably persists a message and advances the conversation's
// updated_at to the message's created_at in the same transaction, keeping
// the recency key monotonically non-decreasing. It returns the authoritative
// message and the refreshed conversation snapshot.
func (s *Messages) Append(ctx context.Context, conversationID, senderID, text string) (chat.Message, chat.Conversation, error) {
	msg := chat.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Text:           text,
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return chat.Message{}, chat.Conversation{}, fmt.Errorf("begin append message: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, text)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		msg.ID, msg.ConversationID, msg.SenderID, msg.Text,
	).Scan(&msg.CreatedAt)
	if err != nil {
		return chat.Message{}, chat.Conversation{}, fmt.Errorf("insert message: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE conversations
		SET updated_at = GREATEST(updated_at, $2)
		WHERE id = $1`,
		conversationID, msg.CreatedAt)
	if err != nil {
		return chat.Message{}, chat.Conversation{}, fmt.Errorf("touch conversation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return chat.Message{}, chat.Conversation{}, fmt.Errorf("commit append message: %w", err)
	}

	conv, err := s.conversations.Conversation(ctx, conversationID)
	if err != nil {
		return chat.Message{}, chat.Conversation{}, err
	}

	return msg, conv, nil
}

// History returns the conversation's messages in persisted order, the ground
// truth clients reconcile against.
func (s *Messages) History(ctx context.Context, conversationID string) ([]chat.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, conversation_id, sender_id, text, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at, id`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []chat.Message
	for rows.Next() {
		var m chat.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Text, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}

	return msgs, rows.Err()
}
