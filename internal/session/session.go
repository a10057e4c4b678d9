package session

import (
	"sync"
	"time"

	"muster-gateway/internal/api"

	"github.com/google/uuid"
)

// McpSession is one tracked connection held by the session store.
type McpSession struct {
	SessionID string

	// internalID exists only to let the legacy /sse+/message transport
	// share bookkeeping with first-class MCP-Session-Id sessions without
	// making transient legacy sessions routable via roots/list.
	internalID string

	ProtocolVersion string
	Initialized     bool

	WorkDir   string
	ProjectID string

	SupportsRoots     bool
	RootsListChanged  bool
	RootsPaths        []string
	PendingRootsReqID string
	RootsTimedOut     bool

	createdAt  time.Time
	lastActive time.Time
	ttl        time.Duration
}

func (s *McpSession) expiredAt(now time.Time) bool {
	return now.Sub(s.lastActive) > s.ttl
}

// Store is a lazily-expiring table of McpSession records guarded by a
// single mutex.
type Store struct {
	mu          sync.Mutex
	sessions    map[string]*McpSession
	legacy      map[string]*McpSession // keyed by internalID, for the legacy /sse+/message transport
	ttl         time.Duration
	maxSessions int
}

// New constructs a Store. ttl <= 0 uses DefaultTTL; maxSessions <= 0 uses
// DefaultMaxSessions.
func New(ttl time.Duration, maxSessions int) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	return &Store{
		sessions:    make(map[string]*McpSession),
		legacy:      make(map[string]*McpSession),
		ttl:         ttl,
		maxSessions: maxSessions,
	}
}

// InternalID exposes the legacy-linkage id for use as the legacy
// transport's session id.
func (s *McpSession) InternalID() string { return s.internalID }

// DefaultTTL is the session_ttl_minutes default (30 minutes).
const DefaultTTL = 30 * time.Minute

// DefaultMaxSessions is the DoS-protection cap on concurrent sessions.
const DefaultMaxSessions = 10000

// Create returns a new session with default TTL, or ErrSessionLimit once
// the live (unexpired) session count reaches maxSessions.
func (s *Store) Create() (*McpSession, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictExpiredLocked(now)
	if len(s.sessions) >= s.maxSessions {
		return nil, api.ErrSessionLimit
	}

	sess := &McpSession{
		SessionID:  uuid.NewString(),
		internalID: uuid.NewString(),
		createdAt:  now,
		lastActive: now,
		ttl:        s.ttl,
	}
	s.sessions[sess.SessionID] = sess
	return sess, nil
}

// CreateTransient is the legacy-adapter entry point: it returns a session
// addressable only by its internalID (via GetByInternalID), never
// inserted into the MCP-Session-Id-addressable table, so it is not
// reachable by first-class session lookups or roots/list routing.
func (s *Store) CreateTransient() *McpSession {
	now := time.Now()
	sess := &McpSession{
		SessionID:  "",
		internalID: uuid.NewString(),
		createdAt:  now,
		lastActive: now,
		ttl:        s.ttl,
	}

	s.mu.Lock()
	s.legacy[sess.internalID] = sess
	s.mu.Unlock()
	return sess
}

// GetByInternalID resolves a legacy transient session by the id handed out
// in the /sse endpoint event, the same lazy-expiry semantics as Get.
func (s *Store) GetByInternalID(id string) *McpSession {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.legacy[id]
	if !ok || sess.expiredAt(now) {
		return nil
	}
	return sess
}

// RemoveByInternalID deletes a legacy transient session. Idempotent.
func (s *Store) RemoveByInternalID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.legacy, id)
}

// Get returns the session for id, or nil if it does not exist or has
// expired. Expired entries are left in place; removal happens lazily via
// CleanupExpired rather than on every failed lookup.
func (s *Store) Get(id string) *McpSession {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || sess.expiredAt(now) {
		return nil
	}
	return sess
}

// Touch updates last_active for id, if the session is live. Returns false
// if the session does not exist or has already expired.
func (s *Store) Touch(id string) bool {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || sess.expiredAt(now) {
		return false
	}
	sess.lastActive = now
	return true
}

// Remove deletes id's session. Idempotent: removing an absent or
// already-removed id is a no-op.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Count reports the number of live (unexpired) sessions.
func (s *Store) Count() int {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictExpiredLocked(now)
	return len(s.sessions)
}

// CleanupExpired removes every session past its idle TTL and reports how
// many were evicted. Intended to run on a periodic ticker in
// internal/gateway, complementing the lazy per-access expiry Get/Touch
// already perform.
func (s *Store) CleanupExpired() int {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evictExpiredLocked(now)
}

func (s *Store) evictExpiredLocked(now time.Time) int {
	evicted := 0
	for id, sess := range s.sessions {
		if sess.expiredAt(now) {
			delete(s.sessions, id)
			evicted++
		}
	}
	for id, sess := range s.legacy {
		if sess.expiredAt(now) {
			delete(s.legacy, id)
			evicted++
		}
	}
	return evicted
}
