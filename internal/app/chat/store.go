package chat

import (
	"context"

	"pulsechat/internal/app/user"
)

// ConversationStore is the read contract the hub needs against the external
// conversation store.
type ConversationStore interface {
	// Conversation loads a conversation snapshot with its participants.
	Conversation(ctx context.Context, id string) (Conversation, error)

	// ContactIDs returns the distinct ids of users sharing at least one
	// conversation with userID, excluding userID itself. Status changes are
	// broadcast to these users' connections only.
	ContactIDs(ctx context.Context, userID string) ([]string, error)
}

// MessageStore is the write contract for message persistence. Append must be
// durable before it returns: the fan-out pipeline never runs for an
// unpersisted message.
type MessageStore interface {
	// Append persists a message, advances the conversation's recency key,
	// and returns both the authoritative message and the refreshed
	// conversation snapshot.
	Append(ctx context.Context, conversationID, senderID, text string) (Message, Conversation, error)
}

// StatusStore reads and writes the durably stored default status that seeds
// presence on a user's first connection.
type StatusStore interface {
	StoredStatus(ctx context.Context, userID string) (user.Status, error)
	SaveStatus(ctx context.Context, userID string, status user.Status) error
}
