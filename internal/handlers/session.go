package handlers

import (
	"errors"
	"sync"
	"time"

	"github.com/MegaGrindStone/chat-playground/internal/models"
	"github.com/google/uuid"
)

// session is the in-memory state of one page load. Its transcript is only touched under mu or by the
// holder of the active turn, and at most one turn is active per session.
type session struct {
	mu       sync.Mutex
	pending  *turn
	active   string
	lastSeen time.Time

	transcript models.Transcript
}

// turn is a chat turn that was accepted but whose stream has not been claimed yet.
type turn struct {
	ID    string
	Model string
}

type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*session
	ttl      time.Duration
	now      func() time.Time
}

var errTurnInFlight = errors.New("a response is still streaming")

func newSessionStore(ttl time.Duration) *sessionStore {
	return &sessionStore{
		sessions: make(map[string]*session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// create registers a fresh session and evicts idle ones.
func (s *sessionStore) create() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, sess := range s.sessions {
		if sess.idle(now, s.ttl) {
			delete(s.sessions, id)
		}
	}

	id := uuid.New().String()
	s.sessions[id] = &session{lastSeen: now}
	return id
}

func (s *sessionStore) get(id string) (*session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	sess.touch(s.now())
	return sess, true
}

// streaming returns the number of sessions with a claimed turn still running.
func (s *sessionStore) streaming() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, sess := range s.sessions {
		sess.mu.Lock()
		if sess.active != "" {
			n++
		}
		sess.mu.Unlock()
	}
	return n
}

func (s *session) idle(now time.Time, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active == "" && now.Sub(s.lastSeen) > ttl
}

func (s *session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// beginTurn appends the user's message and records a pending turn for model. A pending turn whose
// stream never connected is replaced; only an active turn blocks a new one.
func (s *session) beginTurn(model, prompt string) (models.Message, turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != "" {
		return models.Message{}, turn{}, errTurnInFlight
	}

	um := s.transcript.AppendUser(prompt)
	t := turn{
		ID:    uuid.New().String(),
		Model: model,
	}
	s.pending = &t

	return um, t, nil
}

// claimTurn hands the pending turn with id to its stream, at most once, and makes it the active turn.
func (s *session) claimTurn(id string) (turn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil || s.pending.ID != id {
		return turn{}, false
	}
	t := *s.pending
	s.pending = nil
	s.active = t.ID
	return t, true
}

// endTurn releases the session if id is still its active turn. Calling it more than once is fine.
func (s *session) endTurn(id string) {
	s.mu.Lock()
	if s.active == id {
		s.active = ""
	}
	s.mu.Unlock()
}
