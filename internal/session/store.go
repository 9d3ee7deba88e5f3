// Package session implements the in-memory session store. Sessions are
// opaque uuid tokens valid for a fixed time from creation; expiry is
// enforced both on access and by the periodic reaper sweep.
package session

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hashnet666/hydra-scanner-backend/internal/model"
)

type Store struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]*model.Session
}

func NewStore(ttl time.Duration) *Store {
	return &Store{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*model.Session),
	}
}

// WithClock replaces the time source. This method exists for unit testing only.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Create allocates a fresh session and returns its identifier.
func (s *Store) Create() string {
	id := uuid.NewString()
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = &model.Session{
		ID:           id,
		CreatedAt:    now,
		LastActivity: now,
		ActiveJobs:   make(map[string]struct{}),
	}
	return id
}

// Validate reports whether id names a live session. An expired session is
// deleted on the spot. LastActivity is refreshed on success but does not
// extend the lifetime; the TTL is anchored to creation time.
func (s *Store) Validate(id string) bool {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return false
	}
	if now.Sub(sess.CreatedAt) >= s.ttl {
		delete(s.sessions, id)
		return false
	}
	sess.LastActivity = now
	return true
}

// TrackJob records a newly submitted job under its owning session.
func (s *Store) TrackJob(sessionID, jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return
	}
	sess.JobsCreated++
	sess.ActiveJobs[jobID] = struct{}{}
}

// UntrackJob drops a job from its session's active set. Missing sessions or
// job ids are ignored, the session may have expired meanwhile.
func (s *Store) UntrackJob(sessionID, jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return
	}
	delete(sess.ActiveJobs, jobID)
}

// Snapshot returns the jobs-created counter and a sorted copy of the active
// job ids. ok is false for an unknown id; expiry is Validate's business.
func (s *Store) Snapshot(id string) (jobsCreated int, active []string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, found := s.sessions[id]
	if !found {
		return 0, nil, false
	}
	active = make([]string, 0, len(sess.ActiveJobs))
	for jobID := range sess.ActiveJobs {
		active = append(active, jobID)
	}
	sort.Strings(active)
	return sess.JobsCreated, active, true
}

// Sweep deletes every session older than the TTL and returns how many went.
func (s *Store) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	var evicted int
	for id, sess := range s.sessions {
		if now.Sub(sess.CreatedAt) >= s.ttl {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
