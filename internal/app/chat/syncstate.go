package chat

import (
	"sort"
	"sync"

	"pulsechat/internal/app/user"
)

// SyncState is a client's cached view of its conversation list and the
// active conversation's messages, kept consistent through an initial bulk
// fetch plus the incremental event stream. It is the reference client for
// the protocol and is safe for concurrent use.
//
// After every mutation the conversation list is sorted by UpdatedAt
// descending and contains no duplicate ids.
type SyncState struct {
	mu sync.Mutex

	conversations []Conversation
	presence      map[string]user.Status

	activeID string
	messages []Message

	// unread counts notifications per conversation for messages that
	// arrived while the conversation was not being viewed.
	unread map[string]int
}

func NewSyncState() *SyncState {
	return &SyncState{
		presence: make(map[string]user.Status),
		unread:   make(map[string]int),
	}
}

// SetConversations installs the result of a full list fetch, replacing any
// live-updated state. The fetched (persisted) ordering is ground truth.
func (s *SyncState) SetConversations(convs []Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations = make([]Conversation, len(convs))
	copy(s.conversations, convs)
	s.normalizeLocked()
}

// SetActive switches the viewed conversation and installs its fetched
// message history. Any live-delivered messages for the previous conversation
// are discarded; persisted order is authoritative.
func (s *SyncState) SetActive(conversationID string, history []Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.activeID = conversationID
	s.messages = make([]Message, len(history))
	copy(s.messages, history)
	delete(s.unread, conversationID)
}

// ApplyInitialStatuses installs the presence snapshot delivered on
// registration.
func (s *SyncState) ApplyInitialStatuses(statuses map[string]user.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, status := range statuses {
		s.presence[id] = status
	}
	s.overlayPresenceLocked()
}

// ApplyConversationUpsert replaces the conversation in place when its id is
// already cached, otherwise inserts it; either way the list is re-sorted.
// Applying the same payload twice leaves the state unchanged.
func (s *SyncState) ApplyConversationUpsert(conv Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	replaced := false
	for i := range s.conversations {
		if s.conversations[i].ID == conv.ID {
			s.conversations[i] = conv
			replaced = true
			break
		}
	}

	if !replaced {
		s.conversations = append([]Conversation{conv}, s.conversations...)
	}

	s.normalizeLocked()
}

// ApplyIncomingMessage appends the message to the cache only when its
// conversation is the active one; otherwise the message body is dropped and
// a notification is counted. In both cases the conversation's recency is
// bumped; a conversation missing from the cache is treated as an implicit
// new conversation, not an error.
func (s *SyncState) ApplyIncomingMessage(msg Message) (appended bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for i := range s.conversations {
		if s.conversations[i].ID == msg.ConversationID {
			if msg.CreatedAt.After(s.conversations[i].UpdatedAt) {
				s.conversations[i].UpdatedAt = msg.CreatedAt
			}
			found = true
			break
		}
	}

	if !found {
		s.conversations = append(s.conversations, Conversation{
			ID:        msg.ConversationID,
			UpdatedAt: msg.CreatedAt,
		})
	}

	s.normalizeLocked()

	if msg.ConversationID == s.activeID {
		s.messages = append(s.messages, msg)
		return true
	}

	s.unread[msg.ConversationID]++
	return false
}

// ApplyPresenceUpdate records a status change and refreshes the cached
// status of every participant entry for that user.
func (s *SyncState) ApplyPresenceUpdate(userID string, status user.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.presence[userID] = status
	s.overlayPresenceLocked()
}

// StatusOf returns the cached status of a user, defaulting to offline for
// users no update has been seen for.
func (s *SyncState) StatusOf(userID string) user.Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	if status, ok := s.presence[userID]; ok {
		return status
	}
	return user.StatusOffline
}

// Conversations returns a copy of the cached list, sorted by UpdatedAt
// descending.
func (s *SyncState) Conversations() []Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Conversation, len(s.conversations))
	copy(out, s.conversations)
	return out
}

// ActiveMessages returns a copy of the active conversation's message cache.
func (s *SyncState) ActiveMessages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Unread returns the notification count for a conversation.
func (s *SyncState) Unread(conversationID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.unread[conversationID]
}

// normalizeLocked restores the list invariant: deduplicated by id (first
// occurrence wins) and sorted by UpdatedAt descending.
func (s *SyncState) normalizeLocked() {
	seen := make(map[string]struct{}, len(s.conversations))
	deduped := s.conversations[:0]
	for _, conv := range s.conversations {
		if _, dup := seen[conv.ID]; dup {
			continue
		}
		seen[conv.ID] = struct{}{}
		deduped = append(deduped, conv)
	}
	s.conversations = deduped

	sort.SliceStable(s.conversations, func(i, j int) bool {
		return s.conversations[i].UpdatedAt.After(s.conversations[j].UpdatedAt)
	})
}

// overlayPresenceLocked pushes known statuses onto participant snapshots.
func (s *SyncState) overlayPresenceLocked() {
	for i := range s.conversations {
		for j := range s.conversations[i].Participants {
			if status, ok := s.presence[s.conversations[i].Participants[j].ID]; ok {
				s.conversations[i].Participants[j].Status = status
			}
		}
	}
}
