package application

import (
	"sync"
	"sync/atomic"
	"time"

	"kadan/internal/models"

	"github.com/google/uuid"
)

const defaultSessionTTL = 10 * time.Minute

type SessionOptions struct {
	TTL time.Duration
}

// sessionEntry fields other than session are guarded by SessionStore.mu;
// session is guarded by the entry's own mu. guildID and userID never change.
type sessionEntry struct {
	mu        sync.Mutex
	session   models.VerificationSession
	guildID   string
	userID    string
	expiresAt time.Time
	removed   bool
}

// SessionStore keeps verification sessions in memory. Each session has its
// own lock so steps of one flow run one at a time while other users proceed.
type SessionStore struct {
	mu      sync.Mutex
	entries map[string]*sessionEntry
	ttl     time.Duration
	now     func() time.Time
	newID   func() string
}

func NewSessionStore(opts SessionOptions) *SessionStore {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &SessionStore{
		entries: make(map[string]*sessionEntry),
		ttl:     ttl,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Create stores a new session and drops any older session of the same user.
func (s *SessionStore) Create(sess models.VerificationSession) models.VerificationSession {
	now := s.now()
	sess.ID = s.newID()
	sess.CreatedAt = now
	sess.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		if e.guildID == sess.GuildID && e.userID == sess.UserID {
			e.removed = true
			delete(s.entries, id)
		}
	}
	s.entries[sess.ID] = &sessionEntry{
		session:   sess,
		guildID:   sess.GuildID,
		userID:    sess.UserID,
		expiresAt: now.Add(s.ttl),
	}
	return sess
}

// Acquire locks a session for one transition. The returned release func
// must be called exactly once; it drops the session when it reached a
// terminal state and otherwise extends its deadline.
func (s *SessionStore) Acquire(id string) (*models.VerificationSession, func(), error) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return nil, nil, ErrSessionNotFound
	}
	if s.now().After(e.expiresAt) {
		e.removed = true
		delete(s.entries, id)
		s.mu.Unlock()
		return nil, nil, ErrSessionExpired
	}
	s.mu.Unlock()

	e.mu.Lock()
	s.mu.Lock()
	removed := e.removed
	s.mu.Unlock()
	if removed {
		e.mu.Unlock()
		return nil, nil, ErrSessionNotFound
	}

	release := func() {
		now := s.now()
		e.session.UpdatedAt = now
		s.mu.Lock()
		if e.session.State.Terminal() {
			if !e.removed {
				e.removed = true
				delete(s.entries, id)
			}
		} else {
			e.expiresAt = now.Add(s.ttl)
		}
		s.mu.Unlock()
		e.mu.Unlock()
	}
	return &e.session, release, nil
}

func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok {
		e.removed = true
		delete(s.entries, id)
	}
}

// Sweep drops expired sessions and returns how many were removed.
func (s *SessionStore) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, e := range s.entries {
		if now.After(e.expiresAt) {
			e.removed = true
			delete(s.entries, id)
			n++
		}
	}
	return n
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// ActorID holds the bot's own user id once the gateway session is ready.
type ActorID struct {
	v atomic.Value
}

func (a *ActorID) Set(id string) {
	a.v.Store(id)
}

func (a *ActorID) Get() string {
	id, _ := a.v.Load().(string)
	return id
}
