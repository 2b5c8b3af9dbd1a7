package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pulsechat/internal/app/user"
	"pulsechat/internal/pkg/errs"
)

// fakeStore backs all three store contracts with in-memory maps. The delay
// maps simulate slow store I/O for individual lookups or writes.
type fakeStore struct {
	mu        sync.Mutex
	convs     map[string]Conversation
	contacts  map[string][]string
	stored    map[string]user.Status
	saved     map[string]user.Status
	appended  []Message
	appendErr error

	convDelay map[string]time.Duration
	saveDelay map[user.Status]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		convs:     make(map[string]Conversation),
		contacts:  make(map[string][]string),
		stored:    make(map[string]user.Status),
		saved:     make(map[string]user.Status),
		convDelay: make(map[string]time.Duration),
		saveDelay: make(map[user.Status]time.Duration),
	}
}

func (f *fakeStore) Conversation(_ context.Context, id string) (Conversation, error) {
	f.mu.Lock()
	delay := f.convDelay[id]
	conv, ok := f.convs[id]
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	if !ok {
		return Conversation{}, errs.NewError(errs.ErrConversationNotFound)
	}
	return conv, nil
}

func (f *fakeStore) ContactIDs(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.contacts[userID], nil
}

func (f *fakeStore) Append(_ context.Context, conversationID, senderID, text string) (Message, Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.appendErr != nil {
		return Message{}, Conversation{}, f.appendErr
	}

	conv, ok := f.convs[conversationID]
	if !ok {
		return Message{}, Conversation{}, errs.NewError(errs.ErrConversationNotFound)
	}

	msg := Message{
		ID:             fmt.Sprintf("m%d", len(f.appended)+1),
		ConversationID: conversationID,
		SenderID:       senderID,
		Text:           text,
		CreatedAt:      time.Now().UTC(),
	}
	conv.UpdatedAt = msg.CreatedAt
	f.convs[conversationID] = conv
	f.appended = append(f.appended, msg)

	return msg, conv, nil
}

func (f *fakeStore) StoredStatus(_ context.Context, userID string) (user.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if status, ok := f.stored[userID]; ok {
		return status, nil
	}
	return user.StatusOffline, nil
}

func (f *fakeStore) SaveStatus(_ context.Context, userID string, status user.Status) error {
	f.mu.Lock()
	delay := f.saveDelay[status]
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.saved[userID] = status
	return nil
}

func (f *fakeStore) appendedMessages() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Message, len(f.appended))
	copy(out, f.appended)
	return out
}

func (f *fakeStore) savedStatus(userID string) (user.Status, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	status, ok := f.saved[userID]
	return status, ok
}

func (f *fakeStore) addConversation(id string, isGroup bool, participantIDs ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	conv := Conversation{ID: id, IsGroup: isGroup, UpdatedAt: time.Now().UTC()}
	for _, p := range participantIDs {
		conv.Participants = append(conv.Participants, Participant{
			Ref:    user.Ref{ID: p, Username: p},
			Status: user.StatusOffline,
		})
	}
	f.convs[id] = conv

	for _, p := range participantIDs {
		for _, other := range participantIDs {
			if other == p {
				continue
			}
			f.contacts[p] = append(f.contacts[p], other)
		}
	}
}

func clientEvent(t *testing.T, event EventType, payload any) Envelope {
	t.Helper()

	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return Envelope{Event: event, Payload: raw}
}

func nextEvent(t *testing.T, c *Conn) Envelope {
	t.Helper()

	select {
	case frame := <-c.send:
		env, err := DecodeEnvelope(frame)
		require.NoError(t, err)
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an event frame")
		return Envelope{}
	}
}

func requireNoEvent(t *testing.T, c *Conn) {
	t.Helper()

	select {
	case frame := <-c.send:
		t.Fatalf("unexpected event frame: %s", frame)
	case <-time.After(100 * time.Millisecond):
	}
}

func decodeAs[T any](t *testing.T, env Envelope) T {
	t.Helper()

	var payload T
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	return payload
}

func TestHubAddUserSeedsPresenceAndPushesSnapshot(t *testing.T) {
	store := newFakeStore()
	store.addConversation("c1", false, "alice", "bob")
	store.stored["alice"] = user.StatusBusy

	hub := NewHub(store, store, store)

	bobConn := NewConn(hub, nil, "bob")
	hub.registry.Register(bobConn)

	aliceConn := NewConn(hub, nil, "alice")
	require.NoError(t, hub.Dispatch(aliceConn, clientEvent(t, EventAddUser, AddUserPayload{UserID: "alice"})))

	env := nextEvent(t, aliceConn)
	require.Equal(t, EventInitialUserStatuses, env.Event)
	snapshot := decodeAs[map[string]user.Status](t, env)
	require.Equal(t, user.StatusBusy, snapshot["alice"])

	// Alice's contact learns about the seeded status.
	env = nextEvent(t, bobConn)
	require.Equal(t, EventUpdateUserStatus, env.Event)
	update := decodeAs[StatusUpdatePayload](t, env)
	require.Equal(t, "alice", update.UserID)
	require.Equal(t, user.StatusBusy, update.Status)

	require.Equal(t, 1, hub.registry.ConnectionCount("alice"))
	require.Equal(t, user.StatusBusy, hub.StatusOf("alice"))
}

func TestHubAddUserRejectsMismatchedIdentity(t *testing.T) {
	store := newFakeStore()
	hub := NewHub(store, store, store)

	c := NewConn(hub, nil, "alice")
	err := hub.Dispatch(c, clientEvent(t, EventAddUser, AddUserPayload{UserID: "mallory"}))
	require.Error(t, err)
	require.Zero(t, hub.registry.ConnectionCount("alice"))
}

func TestHubSecondConnectionDoesNotReseedPresence(t *testing.T) {
	store := newFakeStore()
	store.stored["alice"] = user.StatusOnline
	hub := NewHub(store, store, store)

	first := NewConn(hub, nil, "alice")
	require.NoError(t, hub.Dispatch(first, clientEvent(t, EventAddUser, AddUserPayload{UserID: "alice"})))
	require.Equal(t, EventInitialUserStatuses, nextEvent(t, first).Event)

	// A live status change after the first connection seeded.
	require.Nil(t, hub.presence.SetStatus("alice", user.StatusHidden))

	second := NewConn(hub, nil, "alice")
	require.NoError(t, hub.Dispatch(second, clientEvent(t, EventAddUser, AddUserPayload{UserID: "alice"})))

	env := nextEvent(t, second)
	require.Equal(t, EventInitialUserStatuses, env.Event)
	snapshot := decodeAs[map[string]user.Status](t, env)

	// The in-memory entry wins over the stored default.
	require.Equal(t, user.StatusHidden, snapshot["alice"])
	require.Equal(t, 2, hub.registry.ConnectionCount("alice"))
}

func TestHubStatusUpdatePropagatesToContactsOnly(t *testing.T) {
	store := newFakeStore()
	store.addConversation("c1", false, "alice", "bob")
	hub := NewHub(store, store, store)

	origin := NewConn(hub, nil, "alice")
	bobConn := NewConn(hub, nil, "bob")
	carolConn := NewConn(hub, nil, "carol")
	hub.registry.Register(origin)
	hub.registry.Register(bobConn)
	hub.registry.Register(carolConn)

	env := clientEvent(t, EventUpdateUserStatus, StatusUpdatePayload{UserID: "alice", Status: user.StatusBusy})
	require.NoError(t, hub.Dispatch(origin, env))

	got := nextEvent(t, bobConn)
	require.Equal(t, EventUpdateUserStatus, got.Event)
	update := decodeAs[StatusUpdatePayload](t, got)
	require.Equal(t, "alice", update.UserID)
	require.Equal(t, user.StatusBusy, update.Status)

	// Neither the origin connection nor a non-contact hears about it.
	requireNoEvent(t, origin)
	requireNoEvent(t, carolConn)

	require.Equal(t, user.StatusBusy, hub.StatusOf("alice"))
	saved, ok := store.savedStatus("alice")
	require.True(t, ok)
	require.Equal(t, user.StatusBusy, saved)
}

func TestHubRapidStatusUpdatesBroadcastInOrder(t *testing.T) {
	store := newFakeStore()
	store.addConversation("c1", false, "alice", "bob")
	// The first write is slow; the second lands in the store immediately.
	store.saveDelay[user.StatusOnline] = 150 * time.Millisecond
	hub := NewHub(store, store, store)

	origin := NewConn(hub, nil, "alice")
	bobConn := NewConn(hub, nil, "bob")
	hub.registry.Register(origin)
	hub.registry.Register(bobConn)

	require.NoError(t, hub.Dispatch(origin, clientEvent(t, EventUpdateUserStatus, StatusUpdatePayload{UserID: "alice", Status: user.StatusOnline})))
	require.NoError(t, hub.Dispatch(origin, clientEvent(t, EventUpdateUserStatus, StatusUpdatePayload{UserID: "alice", Status: user.StatusBusy})))

	first := nextEvent(t, bobConn)
	require.Equal(t, EventUpdateUserStatus, first.Event)
	require.Equal(t, user.StatusOnline, decodeAs[StatusUpdatePayload](t, first).Status)

	second := nextEvent(t, bobConn)
	require.Equal(t, EventUpdateUserStatus, second.Event)
	require.Equal(t, user.StatusBusy, decodeAs[StatusUpdatePayload](t, second).Status)

	requireNoEvent(t, bobConn)
	require.Equal(t, user.StatusBusy, hub.StatusOf("alice"))

	saved, ok := store.savedStatus("alice")
	require.True(t, ok)
	require.Equal(t, user.StatusBusy, saved)
}

func TestHubStatusUpdateRejectsOtherUsers(t *testing.T) {
	store := newFakeStore()
	hub := NewHub(store, store, store)

	c := NewConn(hub, nil, "alice")
	env := clientEvent(t, EventUpdateUserStatus, StatusUpdatePayload{UserID: "bob", Status: user.StatusBusy})
	require.Error(t, hub.Dispatch(c, env))
	require.Equal(t, user.StatusOffline, hub.StatusOf("bob"))
}

func TestHubStatusUpdateRejectsInvalidValue(t *testing.T) {
	store := newFakeStore()
	hub := NewHub(store, store, store)

	c := NewConn(hub, nil, "alice")
	env := clientEvent(t, EventUpdateUserStatus, StatusUpdatePayload{UserID: "alice", Status: user.Status("away")})
	require.Error(t, hub.Dispatch(c, env))
	require.Equal(t, user.StatusOffline, hub.StatusOf("alice"))
}

func TestHubJoinConversation(t *testing.T) {
	store := newFakeStore()
	store.addConversation("c1", false, "alice", "bob")
	store.addConversation("c2", false, "alice", "carol")
	hub := NewHub(store, store, store)

	c := NewConn(hub, nil, "alice")
	hub.registry.Register(c)

	require.NoError(t, hub.Dispatch(c, clientEvent(t, EventJoinConversation, JoinConversationPayload{ConversationID: "c1"})))
	require.Eventually(t, func() bool {
		joined, ok := hub.rooms.Joined(c.ID())
		return ok && joined == "c1"
	}, 2*time.Second, 10*time.Millisecond)

	// Joining another conversation releases the first.
	require.NoError(t, hub.Dispatch(c, clientEvent(t, EventJoinConversation, JoinConversationPayload{ConversationID: "c2"})))
	require.Eventually(t, func() bool {
		joined, ok := hub.rooms.Joined(c.ID())
		return ok && joined == "c2"
	}, 2*time.Second, 10*time.Millisecond)
	require.Empty(t, hub.rooms.MembersOf("c1"))
}

func TestHubSlowJoinCannotOverrideNewerJoin(t *testing.T) {
	store := newFakeStore()
	store.addConversation("c1", false, "alice", "bob")
	store.addConversation("c2", false, "alice", "carol")
	// The first join's lookup is slow and completes after the second join landed.
	store.convDelay["c1"] = 150 * time.Millisecond
	hub := NewHub(store, store, store)

	c := NewConn(hub, nil, "alice")
	hub.registry.Register(c)

	require.NoError(t, hub.Dispatch(c, clientEvent(t, EventJoinConversation, JoinConversationPayload{ConversationID: "c1"})))
	require.NoError(t, hub.Dispatch(c, clientEvent(t, EventJoinConversation, JoinConversationPayload{ConversationID: "c2"})))

	require.Eventually(t, func() bool {
		joined, ok := hub.rooms.Joined(c.ID())
		return ok && joined == "c2"
	}, 2*time.Second, 10*time.Millisecond)

	// The slow lookup resolves: the stale completion must be discarded.
	time.Sleep(250 * time.Millisecond)
	joined, ok := hub.rooms.Joined(c.ID())
	require.True(t, ok)
	require.Equal(t, "c2", joined)
	require.Empty(t, hub.rooms.MembersOf("c1"))
}

func TestHubDisconnectDiscardsInFlightJoin(t *testing.T) {
	store := newFakeStore()
	store.addConversation("c1", false, "alice", "bob")
	store.convDelay["c1"] = 100 * time.Millisecond
	hub := NewHub(store, store, store)

	c := NewConn(hub, nil, "alice")
	hub.registry.Register(c)

	require.NoError(t, hub.Dispatch(c, clientEvent(t, EventJoinConversation, JoinConversationPayload{ConversationID: "c1"})))
	hub.Disconnect(c)

	time.Sleep(200 * time.Millisecond)
	_, ok := hub.rooms.Joined(c.ID())
	require.False(t, ok)
	require.Empty(t, hub.rooms.MembersOf("c1"))
}

func TestHubJoinRejectsNonParticipant(t *testing.T) {
	store := newFakeStore()
	store.addConversation("c1", false, "alice", "bob")
	hub := NewHub(store, store, store)

	intruder := NewConn(hub, nil, "mallory")
	hub.registry.Register(intruder)

	require.NoError(t, hub.Dispatch(intruder, clientEvent(t, EventJoinConversation, JoinConversationPayload{ConversationID: "c1"})))

	// The join never lands.
	time.Sleep(100 * time.Millisecond)
	_, ok := hub.rooms.Joined(intruder.ID())
	require.False(t, ok)
}

func TestHubSendMessageFanout(t *testing.T) {
	store := newFakeStore()
	store.addConversation("c1", true, "alice", "bob", "carol")
	hub := NewHub(store, store, store)

	origin := NewConn(hub, nil, "alice")
	bobViewing := NewConn(hub, nil, "bob")
	bobElsewhere := NewConn(hub, nil, "bob")
	carolConn := NewConn(hub, nil, "carol")
	for _, c := range []*Conn{origin, bobViewing, bobElsewhere, carolConn} {
		hub.registry.Register(c)
	}
	hub.rooms.Join(origin.ID(), "c1")
	hub.rooms.Join(bobViewing.ID(), "c1")

	env := clientEvent(t, EventSendMessage, SendMessagePayload{
		ConversationID: "c1",
		SenderID:       "alice",
		Text:           "hello room",
	})
	require.NoError(t, hub.Dispatch(origin, env))

	// The sender gets exactly one authoritative copy, no recency event.
	got := nextEvent(t, origin)
	require.Equal(t, EventReceiveMessage, got.Event)
	msg := decodeAs[Message](t, got)
	require.Equal(t, "c1", msg.ConversationID)
	require.Equal(t, "alice", msg.SenderID)
	require.Equal(t, "hello room", msg.Text)
	requireNoEvent(t, origin)

	// The viewing connection gets the full message body.
	got = nextEvent(t, bobViewing)
	require.Equal(t, EventReceiveMessage, got.Event)
	require.Equal(t, msg.ID, decodeAs[Message](t, got).ID)
	requireNoEvent(t, bobViewing)

	// Non-viewing participant connections get the recency update only.
	for _, c := range []*Conn{bobElsewhere, carolConn} {
		got = nextEvent(t, c)
		require.Equal(t, EventUpdateConversation, got.Event)
		conv := decodeAs[Conversation](t, got)
		require.Equal(t, "c1", conv.ID)
		require.Equal(t, msg.CreatedAt, conv.UpdatedAt)
		requireNoEvent(t, c)
	}

	appended := store.appendedMessages()
	require.Len(t, appended, 1)
	require.Equal(t, msg.ID, appended[0].ID)
}

func TestHubSendRejectsNonParticipant(t *testing.T) {
	store := newFakeStore()
	store.addConversation("c1", false, "alice", "bob")
	hub := NewHub(store, store, store)

	intruder := NewConn(hub, nil, "mallory")
	aliceConn := NewConn(hub, nil, "alice")
	hub.registry.Register(intruder)
	hub.registry.Register(aliceConn)
	hub.rooms.Join(aliceConn.ID(), "c1")

	env := clientEvent(t, EventSendMessage, SendMessagePayload{
		ConversationID: "c1",
		SenderID:       "mallory",
		Text:           "let me in",
	})
	require.NoError(t, hub.Dispatch(intruder, env))

	requireNoEvent(t, aliceConn)
	require.Empty(t, store.appendedMessages())
}

func TestHubSendRejectsInvalidText(t *testing.T) {
	store := newFakeStore()
	store.addConversation("c1", false, "alice", "bob")
	hub := NewHub(store, store, store)

	c := NewConn(hub, nil, "alice")
	hub.registry.Register(c)

	empty := clientEvent(t, EventSendMessage, SendMessagePayload{ConversationID: "c1", SenderID: "alice"})
	require.Error(t, hub.Dispatch(c, empty))

	oversized := clientEvent(t, EventSendMessage, SendMessagePayload{
		ConversationID: "c1",
		SenderID:       "alice",
		Text:           string(make([]byte, MaxMessageChars+1)),
	})
	require.Error(t, hub.Dispatch(c, oversized))

	require.Empty(t, store.appendedMessages())
}

func TestHubSendAcceptsMaxLengthMultibyteText(t *testing.T) {
	store := newFakeStore()
	store.addConversation("c1", false, "alice", "bob")
	hub := NewHub(store, store, store)

	origin := NewConn(hub, nil, "alice")
	hub.registry.Register(origin)
	hub.rooms.Join(origin.ID(), "c1")

	// Exactly at the character bound, but well past it in bytes.
	text := strings.Repeat("ж", MaxMessageChars)
	require.Greater(t, len(text), MaxMessageChars)

	env := clientEvent(t, EventSendMessage, SendMessagePayload{
		ConversationID: "c1",
		SenderID:       "alice",
		Text:           text,
	})
	require.NoError(t, hub.Dispatch(origin, env))

	got := nextEvent(t, origin)
	require.Equal(t, EventReceiveMessage, got.Event)
	require.Equal(t, text, decodeAs[Message](t, got).Text)

	appended := store.appendedMessages()
	require.Len(t, appended, 1)
}

func TestHubSendPersistFailureProducesNoFanout(t *testing.T) {
	store := newFakeStore()
	store.addConversation("c1", false, "alice", "bob")
	store.appendErr = fmt.Errorf("store unavailable")
	hub := NewHub(store, store, store)

	origin := NewConn(hub, nil, "alice")
	bobConn := NewConn(hub, nil, "bob")
	hub.registry.Register(origin)
	hub.registry.Register(bobConn)
	hub.rooms.Join(bobConn.ID(), "c1")

	env := clientEvent(t, EventSendMessage, SendMessagePayload{
		ConversationID: "c1",
		SenderID:       "alice",
		Text:           "will not persist",
	})
	require.NoError(t, hub.Dispatch(origin, env))

	requireNoEvent(t, origin)
	requireNoEvent(t, bobConn)
}

func TestHubDisconnectLastConnectionDropsPresence(t *testing.T) {
	store := newFakeStore()
	store.addConversation("c1", false, "alice", "bob")
	hub := NewHub(store, store, store)

	first := NewConn(hub, nil, "alice")
	second := NewConn(hub, nil, "alice")
	bobConn := NewConn(hub, nil, "bob")
	hub.registry.Register(first)
	hub.registry.Register(second)
	hub.registry.Register(bobConn)
	require.Nil(t, hub.presence.SetStatus("alice", user.StatusOnline))
	hub.rooms.Join(first.ID(), "c1")

	// Closing one of two connections keeps presence and stays quiet.
	hub.Disconnect(first)
	require.Equal(t, user.StatusOnline, hub.StatusOf("alice"))
	requireNoEvent(t, bobConn)
	require.Empty(t, hub.rooms.MembersOf("c1"))

	hub.Disconnect(second)
	require.Equal(t, user.StatusOffline, hub.StatusOf("alice"))

	env := nextEvent(t, bobConn)
	require.Equal(t, EventUpdateUserStatus, env.Event)
	update := decodeAs[StatusUpdatePayload](t, env)
	require.Equal(t, "alice", update.UserID)
	require.Equal(t, user.StatusOffline, update.Status)
}

func TestHubUpdateStatusOverREST(t *testing.T) {
	store := newFakeStore()
	store.addConversation("c1", false, "alice", "bob")
	hub := NewHub(store, store, store)

	bobConn := NewConn(hub, nil, "bob")
	hub.registry.Register(bobConn)

	require.Error(t, hub.UpdateStatus(context.Background(), "alice", user.Status("nope")))

	require.NoError(t, hub.UpdateStatus(context.Background(), "alice", user.StatusHidden))
	require.Equal(t, user.StatusHidden, hub.StatusOf("alice"))

	env := nextEvent(t, bobConn)
	require.Equal(t, EventUpdateUserStatus, env.Event)
	update := decodeAs[StatusUpdatePayload](t, env)
	require.Equal(t, user.StatusHidden, update.Status)

	saved, ok := store.savedStatus("alice")
	require.True(t, ok)
	require.Equal(t, user.StatusHidden, saved)
}

func TestHubNotifyConversationCreated(t *testing.T) {
	store := newFakeStore()
	store.addConversation("c1", false, "alice", "bob")
	hub := NewHub(store, store, store)

	aliceConn := NewConn(hub, nil, "alice")
	bobConn := NewConn(hub, nil, "bob")
	hub.registry.Register(aliceConn)
	hub.registry.Register(bobConn)
	require.Nil(t, hub.presence.SetStatus("alice", user.StatusOnline))

	conv, err := store.Conversation(context.Background(), "c1")
	require.NoError(t, err)
	hub.NotifyConversationCreated(conv)

	for _, c := range []*Conn{aliceConn, bobConn} {
		env := nextEvent(t, c)
		require.Equal(t, EventNewConversation, env.Event)
		got := decodeAs[Conversation](t, env)
		require.Equal(t, "c1", got.ID)

		// Participant statuses carry the live presence overlay.
		for _, p := range got.Participants {
			if p.ID == "alice" {
				require.Equal(t, user.StatusOnline, p.Status)
			} else {
				require.Equal(t, user.StatusOffline, p.Status)
			}
		}
	}
}

func TestHubDispatchRejectsServerEvents(t *testing.T) {
	store := newFakeStore()
	hub := NewHub(store, store, store)

	c := NewConn(hub, nil, "alice")
	err := hub.Dispatch(c, clientEvent(t, EventReceiveMessage, Message{}))
	require.Error(t, err)
}
