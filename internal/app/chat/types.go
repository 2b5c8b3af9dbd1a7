/*
Package chat implements the real-time presence and conversation
synchronization layer: the connection registry, the in-memory presence
tracker, the room manager, and the message fan-out pipeline that keep every
connected client's conversation list, message stream, and peer-presence view
consistent.

Conversations and messages are owned by the persistence layer; the chat core
only holds read-derived copies and relays them.
*/
package chat

import (
	"time"

	"github.com/samber/lo"

	"pulsechat/internal/app/user"
)

// Participant is a conversation member as seen by clients: the immutable
// user reference plus the availability shown next to the conversation.
type Participant struct {
	user.Ref

	Status user.Status `json:"status"`
}

// Conversation is the read-derived snapshot of a persisted conversation.
// UpdatedAt is the sole recency key for list ordering and is monotonically
// non-decreasing.
type Conversation struct {
	ID           string        `json:"id"`
	Participants []Participant `json:"participants"`
	IsGroup      bool          `json:"isGroup"`
	GroupName    string        `json:"groupName,omitempty"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// HasParticipant reports whether userID is in the participant list.
func (c Conversation) HasParticipant(userID string) bool {
	return lo.ContainsBy(c.Participants, func(p Participant) bool {
		return p.ID == userID
	})
}

// ParticipantIDs returns the ids of all participants.
func (c Conversation) ParticipantIDs() []string {
	return lo.Map(c.Participants, func(p Participant, _ int) string {
		return p.ID
	})
}

// Message is the read-derived snapshot of a persisted message. CreatedAt and
// insertion order at the store are authoritative; real-time arrival order is
// best effort.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"createdAt"`
}
