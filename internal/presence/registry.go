// Package presence tracks which users currently hold a live connection.
package presence

import (
	"sync"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/lingopals/internal/models"
)

// Handle is a live connection that events can be pushed to. Implementations
// must be comparable (typically a pointer); identity is handle equality.
type Handle interface {
	Push(event models.Event) error
}

// Registry maps a user id to that user's current connection. It starts
// empty and lives for the process; entries are never persisted.
//
// A user has at most one entry. The latest Connect wins, and Disconnect of
// a handle that has since been replaced leaves the newer entry in place.
type Registry struct {
	mu     sync.RWMutex
	byUser map[uuid.UUID]Handle
	byConn map[Handle]uuid.UUID
}

func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[uuid.UUID]Handle),
		byConn: make(map[Handle]uuid.UUID),
	}
}

// Connect records h as the live connection for userID and returns the
// handle it displaced, if any.
func (r *Registry) Connect(userID uuid.UUID, h Handle) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	// A handle belongs to exactly one user.
	if prevUser, ok := r.byConn[h]; ok && prevUser != userID {
		if r.byUser[prevUser] == h {
			delete(r.byUser, prevUser)
		}
	}

	prev, had := r.byUser[userID]
	if had && prev != h {
		delete(r.byConn, prev)
	} else {
		prev = nil
	}

	r.byUser[userID] = h
	r.byConn[h] = userID
	return prev
}

// Disconnect removes the entry whose handle is h. It returns the user the
// handle was registered for; ok is false when h is unknown or already
// replaced, in which case nothing changes.
func (r *Registry) Disconnect(h Handle) (userID uuid.UUID, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok = r.byConn[h]
	if !ok {
		return uuid.Nil, false
	}
	delete(r.byConn, h)
	if r.byUser[userID] == h {
		delete(r.byUser, userID)
	}
	return userID, true
}

func (r *Registry) Lookup(userID uuid.UUID) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byUser[userID]
	return h, ok
}

func (r *Registry) IsOnline(userID uuid.UUID) bool {
	_, ok := r.Lookup(userID)
	return ok
}

// Count returns the number of users currently online.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
