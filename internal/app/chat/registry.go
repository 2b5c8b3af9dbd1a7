package chat

import "sync"

// Registry maps authenticated user ids to their live connections. A user may
// own any number of concurrent connections; an empty set is the "user
// offline" signal for fan-out, not an error.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]map[string]*Conn
	byConn map[string]*Conn
}

func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]map[string]*Conn),
		byConn: make(map[string]*Conn),
	}
}

// Register adds the connection under its user's active set. Registering the
// same connection twice is a no-op. It reports whether this is the user's
// first live connection.
func (r *Registry) Register(c *Conn) (first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byConn[c.ID()]; exists {
		return false
	}

	conns, ok := r.byUser[c.UserID()]
	if !ok {
		conns = make(map[string]*Conn)
		r.byUser[c.UserID()] = conns
	}

	conns[c.ID()] = c
	r.byConn[c.ID()] = c

	return len(conns) == 1
}

// Deregister removes the connection from whatever user owned it. Unknown ids
// are a no-op. It returns the removed connection and whether the owning
// user's active set became empty.
func (r *Registry) Deregister(connID string) (removed *Conn, lastOfUser bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byConn[connID]
	if !ok {
		return nil, false
	}

	delete(r.byConn, connID)

	conns := r.byUser[c.UserID()]
	delete(conns, connID)
	if len(conns) == 0 {
		delete(r.byUser, c.UserID())
		return c, true
	}

	return c, false
}

// Conn returns a live connection by id.
func (r *Registry) Conn(connID string) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byConn[connID]
	return c, ok
}

// ActiveConnections returns the user's live connections. The empty slice is
// a valid result for offline users.
func (r *Registry) ActiveConnections(userID string) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*Conn, 0, len(r.byUser[userID]))
	for _, c := range r.byUser[userID] {
		conns = append(conns, c)
	}
	return conns
}

// ConnectionCount returns the number of live connections the user owns.
func (r *Registry) ConnectionCount(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byUser[userID])
}
