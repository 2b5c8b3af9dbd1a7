package chat

import (
	"sync"

	"pulsechat/internal/app/user"
	"pulsechat/internal/pkg/errs"
)

// Presence holds each user's current availability in memory. Entries are
// session-scoped: never persisted here, lost on restart, dropped when the
// owning user's last connection closes. The stored default in the user
// record only seeds the first connection.
type Presence struct {
	mu      sync.RWMutex
	entries map[string]user.Status
}

func NewPresence() *Presence {
	return &Presence{entries: make(map[string]user.Status)}
}

// SetStatus validates and records a status change. Updates for unknown users
// create the entry (first-write-creates); values outside the enum are
// rejected and never stored.
func (p *Presence) SetStatus(userID string, status user.Status) *errs.CustomError {
	if !status.Valid() {
		return errs.NewError(errs.ErrInvalidStatus)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.entries[userID] = status
	return nil
}

// Seed installs the stored default status on a user's first connection. An
// existing in-memory entry wins and is left untouched; it reports whether
// the seed was applied.
func (p *Presence) Seed(userID string, status user.Status) bool {
	if !status.Valid() {
		status = user.StatusOffline
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.entries[userID]; ok {
		return false
	}

	p.entries[userID] = status
	return true
}

// Get returns the user's current status, defaulting to offline when no entry
// exists. Absence is a normal state, not an error.
func (p *Presence) Get(userID string) user.Status {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if status, ok := p.entries[userID]; ok {
		return status
	}
	return user.StatusOffline
}

// Snapshot returns a copy of all known entries. Users missing from the map
// are offline by the default-to-offline policy.
func (p *Presence) Snapshot() map[string]user.Status {
	p.mu.RLock()
	defer p.mu.RUnlock()

	snapshot := make(map[string]user.Status, len(p.entries))
	for id, status := range p.entries {
		snapshot[id] = status
	}
	return snapshot
}

// Drop removes the user's entry. Called when the last live connection
// closes, so the next connection re-seeds from the stored default instead of
// inheriting a stale offline value.
func (p *Presence) Drop(userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.entries, userID)
}
