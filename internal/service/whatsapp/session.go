package whatsapp

import (
	"sync"
	"time"

	"github.com/mamadbah2/greenbook/internal/service/commands"
)

// DefaultDraftTTL is how long an unconfirmed sale waits for its sender.
const DefaultDraftTTL = 2 * time.Hour

type session struct {
	draft     commands.Draft
	updatedAt time.Time
}

// SessionManager holds one pending draft per sender. It implements commands.DraftStore.
type SessionManager struct {
	sessions map[string]session
	ttl      time.Duration
	now      func() time.Time
	mu       sync.RWMutex
}

// NewSessionManager creates a new session manager. A non-positive ttl uses DefaultDraftTTL.
func NewSessionManager(ttl time.Duration) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultDraftTTL
	}
	return &SessionManager{
		sessions: make(map[string]session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get retrieves the pending draft for a sender, ignoring expired ones.
func (sm *SessionManager) Get(sender string) (commands.Draft, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	s, ok := sm.sessions[sender]
	if !ok || sm.now().Sub(s.updatedAt) > sm.ttl {
		return commands.Draft{}, false
	}
	return s.draft, true
}

// Put stores or replaces the draft for a sender.
func (sm *SessionManager) Put(sender string, draft commands.Draft) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.sessions[sender] = session{draft: draft, updatedAt: sm.now()}
}

// Clear removes a sender's draft.
func (sm *SessionManager) Clear(sender string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.sessions, sender)
}

// Prune drops expired drafts and reports how many were removed.
func (sm *SessionManager) Prune() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	removed := 0
	for sender, s := range sm.sessions {
		if sm.now().Sub(s.updatedAt) > sm.ttl {
			delete(sm.sessions, sender)
			removed++
		}
	}
	return removed
}
