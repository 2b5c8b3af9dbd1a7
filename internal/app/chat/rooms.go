package chat

import "sync"

// Rooms tracks which connections are subscribed to which conversation's live
// message stream. A connection views at most one conversation at a time:
// joining a new room always releases the previous one, so stale fan-out to a
// conversation the client no longer displays cannot happen.
//
// Participant authorization is the Hub's job; Rooms only manages membership.
type Rooms struct {
	mu sync.RWMutex

	// joined maps connection id to its single joined conversation id.
	joined map[string]string

	// members maps conversation id to the set of joined connection ids.
	members map[string]map[string]struct{}
}

func NewRooms() *Rooms {
	return &Rooms{
		joined:  make(map[string]string),
		members: make(map[string]map[string]struct{}),
	}
}

// Join subscribes the connection to the conversation, first releasing any
// previous membership. It returns the conversation left, if any.
func (r *Rooms) Join(connID, conversationID string) (left string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	left = r.leaveLocked(connID)

	set, ok := r.members[conversationID]
	if !ok {
		set = make(map[string]struct{})
		r.members[conversationID] = set
	}
	set[connID] = struct{}{}
	r.joined[connID] = conversationID

	return left
}

// Leave releases the connection's membership in the given conversation.
// A no-op when the connection is not a member.
func (r *Rooms) Leave(connID, conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.joined[connID] == conversationID {
		r.leaveLocked(connID)
	}
}

// ReleaseAll drops whatever membership the connection holds. Called on
// connection close.
func (r *Rooms) ReleaseAll(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.leaveLocked(connID)
}

func (r *Rooms) leaveLocked(connID string) (left string) {
	conversationID, ok := r.joined[connID]
	if !ok {
		return ""
	}

	delete(r.joined, connID)

	if set, ok := r.members[conversationID]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(r.members, conversationID)
		}
	}

	return conversationID
}

// Joined returns the conversation the connection is currently viewing.
func (r *Rooms) Joined(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conversationID, ok := r.joined[connID]
	return conversationID, ok
}

// MembersOf returns the connection ids currently viewing the conversation.
// Only these connections receive full message bodies; other participants get
// the lighter recency update.
func (r *Rooms) MembersOf(conversationID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.members[conversationID]
	ids := make([]string, 0, len(set))
	for connID := range set {
		ids = append(ids, connID)
	}
	return ids
}
