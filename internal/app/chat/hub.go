package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"pulsechat/internal/app/user"
	"pulsechat/internal/pkg/logx"
)

const (
	// storeOpTimeout bounds every call to the external store issued from the
	// real-time path.
	storeOpTimeout = 10 * time.Second

	// MaxMessageChars caps the text of a single message.
	MaxMessageChars = 5000
)

// Hub owns the shared real-time state (registry, presence, rooms) and routes
// every inbound event to it. In-memory mutations happen synchronously on the
// dispatching connection's read loop; calls that touch the external store run
// on their own goroutine so no connection's event stream ever blocks on I/O.
type Hub struct {
	registry *Registry
	presence *Presence
	rooms    *Rooms

	conversations ConversationStore
	messages      MessageStore
	statuses      StatusStore

	// userTaskTail chains the presence propagation work of each user, so
	// broadcasts go out in the order the status changes were dispatched
	// even when the store writes complete out of order.
	userTasksMu  sync.Mutex
	userTaskTail map[string]chan struct{}

	// joinSeq holds the latest join request number per connection. A slow
	// conversation lookup finishing after a newer join (or after the
	// disconnect cleanup) must not overwrite the newer membership.
	joinMu  sync.Mutex
	joinSeq map[string]uint64

	logger zerolog.Logger
}

// NewHub wires the hub against the external store contracts.
func NewHub(conversations ConversationStore, messages MessageStore, statuses StatusStore) *Hub {
	return &Hub{
		registry:      NewRegistry(),
		presence:      NewPresence(),
		rooms:         NewRooms(),
		conversations: conversations,
		messages:      messages,
		statuses:      statuses,
		userTaskTail:  make(map[string]chan struct{}),
		joinSeq:       make(map[string]uint64),
		logger:        logx.Logger().With().Str("component", "hub").Logger(),
	}
}

// runUserTask runs fn on its own goroutine once every previously queued task
// for the same user has finished. Queue position is taken synchronously, so
// callers on the dispatching read loop get their tasks executed in dispatch
// order while the read loop itself never blocks on store I/O.
func (h *Hub) runUserTask(userID string, fn func(ctx context.Context)) {
	h.userTasksMu.Lock()
	prev := h.userTaskTail[userID]
	done := make(chan struct{})
	h.userTaskTail[userID] = done
	h.userTasksMu.Unlock()

	go func() {
		if prev != nil {
			<-prev
		}

		ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
		fn(ctx)
		cancel()

		h.userTasksMu.Lock()
		if h.userTaskTail[userID] == done {
			delete(h.userTaskTail, userID)
		}
		h.userTasksMu.Unlock()

		close(done)
	}()
}

// Dispatch routes one validated inbound event. Errors are reported to the
// dispatching connection's caller only; they never affect other connections.
func (h *Hub) Dispatch(c *Conn, env Envelope) error {
	switch env.Event {
	case EventAddUser:
		return h.handleAddUser(c, env)

	case EventUpdateUserStatus:
		return h.handleStatusUpdate(c, env)

	case EventJoinConversation:
		return h.handleJoin(c, env)

	case EventSendMessage:
		return h.handleSend(c, env)

	default:
		// Server-to-client variants arriving inbound are protocol misuse.
		return fmt.Errorf("event %q is not a client event", env.Event)
	}
}

// handleAddUser registers the connection and pushes the presence snapshot to
// it. The stored default status seeds the presence entry on the user's first
// connection only; an in-memory entry from another live session wins.
func (h *Hub) handleAddUser(c *Conn, env Envelope) error {
	var payload AddUserPayload
	if err := decodePayload(env, &payload); err != nil {
		return err
	}

	if payload.UserID != c.UserID() {
		return fmt.Errorf("addUser id %q does not match connection identity", payload.UserID)
	}

	h.registry.Register(c)

	h.runUserTask(c.UserID(), func(ctx context.Context) {
		stored, err := h.statuses.StoredStatus(ctx, c.UserID())
		if err != nil {
			h.logger.Warn().Err(err).Str("user_id", c.UserID()).
				Msg("Stored status fetch failed, seeding presence as offline")
			stored = user.StatusOffline
		}

		if h.presence.Seed(c.UserID(), stored) {
			// Entry was created: contacts have not seen this user yet.
			h.broadcastStatus(ctx, c.UserID(), h.presence.Get(c.UserID()), c.ID())
		}

		if err := c.Enqueue(EventInitialUserStatuses, h.presence.Snapshot()); err != nil {
			h.logger.Warn().Err(err).Str("conn_id", c.ID()).Msg("Presence snapshot push failed")
		}
	})

	return nil
}

// handleStatusUpdate validates and applies a status change coming over the
// live connection, then persists the new stored default.
func (h *Hub) handleStatusUpdate(c *Conn, env Envelope) error {
	var payload StatusUpdatePayload
	if err := decodePayload(env, &payload); err != nil {
		return err
	}

	if payload.UserID != c.UserID() {
		return fmt.Errorf("status update for %q rejected: not the connection's user", payload.UserID)
	}

	if customErr := h.presence.SetStatus(c.UserID(), payload.Status); customErr != nil {
		return customErr
	}

	// Persist and broadcast on the user's ordered queue: rapid updates must
	// reach subscribers in the order they were applied above, not in the
	// order the store writes happen to finish.
	h.runUserTask(c.UserID(), func(ctx context.Context) {
		if err := h.statuses.SaveStatus(ctx, c.UserID(), payload.Status); err != nil {
			h.logger.Error().Err(err).Str("user_id", c.UserID()).Msg("Failed to persist stored status")
		}

		h.broadcastStatus(ctx, c.UserID(), payload.Status, c.ID())
	})

	return nil
}

// handleJoin subscribes the connection to a conversation's live stream after
// checking the user is a participant. The room manager releases any previous
// membership itself.
func (h *Hub) handleJoin(c *Conn, env Envelope) error {
	var payload JoinConversationPayload
	if err := decodePayload(env, &payload); err != nil {
		return err
	}

	if payload.ConversationID == "" {
		return fmt.Errorf("joinConversation requires a conversation id")
	}

	// Taken on the read loop, so the sequence reflects dispatch order.
	h.joinMu.Lock()
	h.joinSeq[c.ID()]++
	seq := h.joinSeq[c.ID()]
	h.joinMu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
		defer cancel()

		conv, err := h.conversations.Conversation(ctx, payload.ConversationID)
		if err != nil {
			h.logger.Warn().Err(err).
				Str("conversation_id", payload.ConversationID).
				Msg("Join rejected: conversation lookup failed")
			return
		}

		if !conv.HasParticipant(c.UserID()) {
			h.logger.Warn().
				Str("user_id", c.UserID()).
				Str("conversation_id", conv.ID).
				Msg("Join rejected: not a participant")
			return
		}

		h.joinMu.Lock()
		defer h.joinMu.Unlock()

		if h.joinSeq[c.ID()] != seq {
			// A newer join for this connection, or its disconnect cleanup,
			// landed while the lookup ran. The room the client actually
			// displays wins.
			h.logger.Debug().
				Str("conn_id", c.ID()).
				Str("conversation_id", conv.ID).
				Msg("Stale join completion discarded")
			return
		}

		left := h.rooms.Join(c.ID(), conv.ID)
		if left != "" && left != conv.ID {
			h.logger.Debug().
				Str("conn_id", c.ID()).
				Str("left", left).
				Str("joined", conv.ID).
				Msg("Connection switched rooms")
		}
	}()

	return nil
}

// handleSend runs the two-step send: durable persist first, fan-out second.
// The persisting goroutine is decoupled from the connection's read loop; a
// failed write produces no notifications at all.
func (h *Hub) handleSend(c *Conn, env Envelope) error {
	var payload SendMessagePayload
	if err := decodePayload(env, &payload); err != nil {
		return err
	}

	if payload.SenderID != c.UserID() {
		return fmt.Errorf("sendMessage sender %q rejected: not the connection's user", payload.SenderID)
	}

	if payload.ConversationID == "" || payload.Text == "" || utf8.RuneCountInString(payload.Text) > MaxMessageChars {
		return fmt.Errorf("sendMessage rejected: invalid conversation id or text")
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
		defer cancel()

		conv, err := h.conversations.Conversation(ctx, payload.ConversationID)
		if err != nil {
			h.logger.Warn().Err(err).
				Str("conversation_id", payload.ConversationID).
				Msg("Send rejected: conversation lookup failed")
			return
		}

		if !conv.HasParticipant(c.UserID()) {
			h.logger.Warn().
				Str("user_id", c.UserID()).
				Str("conversation_id", conv.ID).
				Msg("Send rejected: not a participant")
			return
		}

		msg, refreshed, err := h.messages.Append(ctx, conv.ID, payload.SenderID, payload.Text)
		if err != nil {
			h.logger.Error().Err(err).
				Str("conversation_id", conv.ID).
				Msg("Message persistence failed, no fan-out performed")
			return
		}

		// The sender's authoritative copy: delivered once, directly, so the
		// room fan-out below can exclude the origin without losing it.
		if err := c.Enqueue(EventReceiveMessage, msg); err != nil {
			h.logger.Warn().Err(err).Str("conn_id", c.ID()).Msg("Sender acknowledgement dropped")
		}

		h.Deliver(msg, refreshed, c.ID())
	}()

	return nil
}

// Disconnect runs the session cancellation path: deregister the connection,
// release its room membership, and drop presence when the user's last
// connection closed. Presence survives as long as any other connection of
// the same user remains live.
func (h *Hub) Disconnect(c *Conn) {
	// Invalidating the join sequence makes any in-flight join lookup a
	// stale completion, so it cannot re-add membership after the release.
	h.joinMu.Lock()
	delete(h.joinSeq, c.ID())
	h.rooms.ReleaseAll(c.ID())
	h.joinMu.Unlock()

	removed, lastOfUser := h.registry.Deregister(c.ID())
	if removed == nil {
		return
	}

	if lastOfUser {
		h.presence.Drop(c.UserID())

		h.runUserTask(c.UserID(), func(ctx context.Context) {
			h.broadcastStatus(ctx, c.UserID(), user.StatusOffline, c.ID())
		})
	}
}

// UpdateStatus applies a status change arriving over REST: same validation
// as the live path, with persist and broadcast on the user's ordered queue
// so REST and socket updates cannot reach subscribers out of order.
func (h *Hub) UpdateStatus(ctx context.Context, userID string, status user.Status) error {
	if customErr := h.presence.SetStatus(userID, status); customErr != nil {
		return customErr
	}

	h.runUserTask(userID, func(ctx context.Context) {
		if err := h.statuses.SaveStatus(ctx, userID, status); err != nil {
			h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to persist stored status")
		}

		h.broadcastStatus(ctx, userID, status, "")
	})

	return nil
}

// StatusOf exposes live presence to the REST layer, defaulting to offline.
func (h *Hub) StatusOf(userID string) user.Status {
	return h.presence.Get(userID)
}

// PresenceSnapshot returns the current presence map.
func (h *Hub) PresenceSnapshot() map[string]user.Status {
	return h.presence.Snapshot()
}

// Decorate overlays live presence onto a conversation snapshot's
// participants.
func (h *Hub) Decorate(conv Conversation) Conversation {
	for i := range conv.Participants {
		conv.Participants[i].Status = h.presence.Get(conv.Participants[i].ID)
	}
	return conv
}

// NotifyConversationCreated pushes the new conversation to every
// participant's live connections. Clients treat an unknown conversation id
// as an insert, so delivery to the creator is harmless.
func (h *Hub) NotifyConversationCreated(conv Conversation) {
	conv = h.Decorate(conv)

	for _, p := range conv.Participants {
		for _, target := range h.registry.ActiveConnections(p.ID) {
			if err := target.Enqueue(EventNewConversation, conv); err != nil {
				h.logger.Warn().Err(err).
					Str("conn_id", target.ID()).
					Msg("newConversation delivery dropped")
			}
		}
	}
}

// broadcastStatus propagates a status change to the user's contacts: the
// active connections of every user sharing a conversation with them. The
// scope bounds fan-out to actual contacts instead of every connected user.
func (h *Hub) broadcastStatus(ctx context.Context, userID string, status user.Status, originConnID string) {
	contactIDs, err := h.conversations.ContactIDs(ctx, userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Contact lookup failed, status change not broadcast")
		return
	}

	update := StatusUpdatePayload{UserID: userID, Status: status}

	for _, contactID := range contactIDs {
		for _, target := range h.registry.ActiveConnections(contactID) {
			if target.ID() == originConnID {
				continue
			}
			if err := target.Enqueue(EventUpdateUserStatus, update); err != nil {
				h.logger.Warn().Err(err).
					Str("conn_id", target.ID()).
					Msg("Status update delivery dropped")
			}
		}
	}
}

func decodePayload(env Envelope, dst any) error {
	if len(env.Payload) == 0 {
		return fmt.Errorf("event %s carries no payload", env.Event)
	}
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		return fmt.Errorf("invalid %s payload: %w", env.Event, err)
	}
	return nil
}
