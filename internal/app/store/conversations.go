package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"pulsechat/internal/app/chat"
	"pulsechat/internal/app/db"
	"pulsechat/internal/app/user"
	"pulsechat/internal/pkg/errs"
)

// Conversations is the conversation repository. It satisfies
// chat.ConversationStore.
type Conversations struct {
	pool *pgxpool.Pool
}

func NewConversations(pool *pgxpool.Pool) *Conversations {
	return &Conversations{pool: pool}
}

// Create inserts a conversation with its participant set and returns the
// full snapshot. The creator must be part of participantIDs; callers
// validate that.
func (s *Conversations) Create(ctx context.Context, participantIDs []string, isGroup bool, groupName string) (chat.Conversation, error) {
	id := uuid.NewString()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return chat.Conversation{}, fmt.Errorf("begin create conversation: %w", err)
	}
	defer tx.Rollback(ctx)

	var name *string
	if isGroup && groupName != "" {
		name = &groupName
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO conversations (id, is_group, group_name) VALUES ($1, $2, $3)`,
		id, isGroup, name)
	if err != nil {
		return chat.Conversation{}, fmt.Errorf("insert conversation: %w", err)
	}

	for _, userID := range participantIDs {
		_, err = tx.Exec(ctx, `
			INSERT INTO conversation_participants (conversation_id, user_id) VALUES ($1, $2)`,
			id, userID)
		if err != nil {
			return chat.Conversation{}, fmt.Errorf("insert participant: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return chat.Conversation{}, fmt.Errorf("commit create conversation: %w", err)
	}

	return s.Conversation(ctx, id)
}

// Conversation loads one conversation snapshot with its participants.
func (s *Conversations) Conversation(ctx context.Context, id string) (chat.Conversation, error) {
	var conv chat.Conversation
	var groupName *string

	err := s.pool.QueryRow(ctx, `
		SELECT id, is_group, group_name, updated_at
		FROM conversations WHERE id = $1`, id,
	).Scan(&conv.ID, &conv.IsGroup, &groupName, &conv.UpdatedAt)
	if err != nil {
		if db.IsNotFound(err) {
			return chat.Conversation{}, errs.NewError(errs.ErrConversationNotFound)
		}
		return chat.Conversation{}, fmt.Errorf("fetch conversation: %w", err)
	}

	if groupName != nil {
		conv.GroupName = *groupName
	}

	participants, err := s.loadParticipants(ctx, []string{conv.ID})
	if err != nil {
		return chat.Conversation{}, err
	}
	conv.Participants = participants[conv.ID]

	return conv, nil
}

// ForUser lists the caller's conversations, most recently updated first.
// updated_at is the sole ordering key.
func (s *Conversations) ForUser(ctx context.Context, userID string) ([]chat.Conversation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.id, c.is_group, c.group_name, c.updated_at
		FROM conversations c
		JOIN conversation_participants cp ON cp.conversation_id = c.id
		WHERE cp.user_id = $1
		ORDER BY c.updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var convs []chat.Conversation
	var ids []string
	for rows.Next() {
		var conv chat.Conversation
		var groupName *string
		if err := rows.Scan(&conv.ID, &conv.IsGroup, &groupName, &conv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		if groupName != nil {
			conv.GroupName = *groupName
		}
		convs = append(convs, conv)
		ids = append(ids, conv.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return convs, nil
	}

	participants, err := s.loadParticipants(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range convs {
		convs[i].Participants = participants[convs[i].ID]
	}

	return convs, nil
}

// ContactIDs returns the distinct ids of users sharing a conversation with
// userID, excluding userID itself.
func (s *Conversations) ContactIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT other.user_id
		FROM conversation_participants own
		JOIN conversation_participants other
			ON other.conversation_id = own.conversation_id
		WHERE own.user_id = $1 AND other.user_id <> $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan contact id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// IsParticipant reports whether the user belongs to the conversation.
func (s *Conversations) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM conversation_participants
			WHERE conversation_id = $1 AND user_id = $2
		)`, conversationID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check participant: %w", err)
	}
	return exists, nil
}

// loadParticipants fetches the participants of the given conversations,
// carrying each user's stored default status. Live presence decoration is
// the hub's job.
func (s *Conversations) loadParticipants(ctx context.Context, conversationIDs []string) (map[string][]chat.Participant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT cp.conversation_id, u.id, u.username, u.full_name, u.status
		FROM conversation_participants cp
		JOIN users u ON u.id = cp.user_id
		WHERE cp.conversation_id = ANY($1::uuid[])
		ORDER BY u.full_name`, conversationIDs)
	if err != nil {
		return nil, fmt.Errorf("load participants: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]chat.Participant, len(conversationIDs))
	for rows.Next() {
		var convID, status string
		var p chat.Participant
		if err := rows.Scan(&convID, &p.ID, &p.Username, &p.FullName, &status); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		p.Status = user.Status(status)
		out[convID] = append(out[convID], p)
	}

	return out, rows.Err()
}
