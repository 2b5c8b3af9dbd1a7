package chat

import (
	"encoding/json"
	"fmt"

	"pulsechat/internal/app/user"
)

// EventType tags a real-time event. The catalog is closed: anything outside
// it is rejected at the connection boundary.
type EventType string

const (
	// EventAddUser (client to server) binds the connection to its
	// authenticated user and triggers registration.
	EventAddUser EventType = "addUser"

	// EventInitialUserStatuses (server to client) delivers the presence
	// snapshot to a newly registered connection.
	EventInitialUserStatuses EventType = "initialUserStatuses"

	// EventUpdateUserStatus (bidirectional) carries a single status change.
	EventUpdateUserStatus EventType = "updateUserStatus"

	// EventNewConversation (server to client) announces a conversation the
	// receiving user was just added to.
	EventNewConversation EventType = "newConversation"

	// EventUpdateConversation (server to client) is the recency update: a
	// conversation snapshot with a refreshed UpdatedAt and no message body.
	EventUpdateConversation EventType = "updateConversation"

	// EventJoinConversation (client to server) subscribes the connection to
	// a conversation's live message stream.
	EventJoinConversation EventType = "joinConversation"

	// EventSendMessage (client to server) requests persist-then-fan-out of a
	// new message.
	EventSendMessage EventType = "sendMessage"

	// EventReceiveMessage (server to client) delivers a persisted message to
	// connections viewing its conversation.
	EventReceiveMessage EventType = "receiveMessage"
)

var knownEvents = map[EventType]struct{}{
	EventAddUser:             {},
	EventInitialUserStatuses: {},
	EventUpdateUserStatus:    {},
	EventNewConversation:     {},
	EventUpdateConversation:  {},
	EventJoinConversation:    {},
	EventSendMessage:         {},
	EventReceiveMessage:      {},
}

// Envelope is the wire frame for every real-time event.
type Envelope struct {
	Event   EventType       `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// DecodeEnvelope parses a raw frame and validates the event tag against the
// catalog. Unrecognized variants are an error, never passed through.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("malformed event frame: %w", err)
	}

	if _, ok := knownEvents[env.Event]; !ok {
		return Envelope{}, fmt.Errorf("unknown event type %q", env.Event)
	}

	return env, nil
}

// EncodeEvent marshals an outbound event into its wire frame.
func EncodeEvent(event EventType, payload any) ([]byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", event, err)
	}

	return json.Marshal(Envelope{Event: event, Payload: payloadBytes})
}

// AddUserPayload is the handshake payload; UserID must match the identity
// the connection authenticated with.
type AddUserPayload struct {
	UserID string `json:"userId"`
}

// StatusUpdatePayload carries one user's status change.
type StatusUpdatePayload struct {
	UserID string      `json:"userId"`
	Status user.Status `json:"status"`
}

// JoinConversationPayload subscribes the connection to a conversation.
type JoinConversationPayload struct {
	ConversationID string `json:"conversationId"`
}

// SendMessagePayload requests a message send. SenderID must match the
// connection's user.
type SendMessagePayload struct {
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId"`
	Text           string `json:"text"`
}
