package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/morikuni/failure/v2"
	"github.com/samber/lo"
)

// Store is an in-memory session log safe for concurrent use.
// Sessions live as long as the process.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	order    []string
	now      func() time.Time
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Create starts an active session holding only the welcome message.
func (s *Store) Create(ownerUserID string) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess := &Session{
		ID:          uuid.NewString(),
		OwnerUserID: ownerUserID,
		Messages: []Message{{
			ID:        uuid.NewString(),
			Sender:    SenderBot,
			Kind:      KindPlain,
			Text:      WelcomeText,
			Timestamp: now,
		}},
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions[sess.ID] = sess
	s.order = append(s.order, sess.ID)

	return sess.clone()
}

// Get returns a copy of the session.
func (s *Store) Get(id string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, notFound(id)
	}
	return sess.clone(), nil
}

// Append adds msg to the end of the session log. Missing ID, Kind and
// Timestamp are filled in.
func (s *Store) Append(id string, msg Message) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, notFound(id)
	}
	if !sess.Active() {
		return Session{}, failure.New(ErrClosed,
			failure.Message("The conversation has ended"),
			failure.Context{"session": id},
		)
	}

	now := s.now()
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Kind == "" {
		msg.Kind = KindPlain
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = now
	}
	msg.Links = append([]Link(nil), msg.Links...)

	sess.Messages = append(sess.Messages, msg)
	sess.UpdatedAt = now

	return sess.clone(), nil
}

// Close ends the session. Closing a closed session changes nothing.
func (s *Store) Close(id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, notFound(id)
	}
	if sess.Active() {
		sess.Status = StatusClosed
		sess.UpdatedAt = s.now()
	}
	return sess.clone(), nil
}

// List returns every session in creation order.
func (s *Store) List() []Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return lo.Map(s.order, func(id string, _ int) Session {
		return s.sessions[id].clone()
	})
}

// Stats counts sessions and messages.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st Stats
	for _, sess := range s.sessions {
		st.Sessions++
		st.Messages += len(sess.Messages)
		if sess.Active() {
			st.Active++
		} else {
			st.Closed++
		}
	}
	return st
}

func notFound(id string) error {
	return failure.New(ErrNotFound,
		failure.Message("Chat session not found"),
		failure.Context{"session": id},
	)
}
