package memory

import (
	"context"
	"sync"
	"time"

	"timed-quiz-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionRepository with
// clock-based expiry, used for redis-less runs and in tests.
type SessionStore struct {
	ttl   time.Duration
	clock func() time.Time

	mu       sync.RWMutex
	sessions map[string]storedSession
}

type storedSession struct {
	session   domain.QuizSession
	expiresAt time.Time
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		ttl:      ttl,
		clock:    time.Now,
		sessions: make(map[string]storedSession),
	}
}

// WithClock overrides the expiry clock; test-only.
func (s *SessionStore) WithClock(clock func() time.Time) *SessionStore {
	s.clock = clock
	return s
}

func (s *SessionStore) Get(_ context.Context, id string) (*domain.QuizSession, error) {
	s.mu.RLock()
	stored, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok || (s.ttl > 0 && !stored.expiresAt.After(s.clock())) {
		return nil, domain.ErrSessionNotFound
	}
	session := deepCopy(&stored.session)
	return &session, nil
}

func (s *SessionStore) Save(_ context.Context, session *domain.QuizSession) error {
	s.mu.Lock()
	s.sessions[session.ID] = storedSession{
		session:   deepCopy(session),
		expiresAt: s.clock().Add(s.ttl),
	}
	s.mu.Unlock()
	return nil
}

// deepCopy detaches the slice-backed state so callers cannot mutate the
// stored copy without going through Save.
func deepCopy(session *domain.QuizSession) domain.QuizSession {
	copied := *session
	copied.Questions = append([]domain.Question(nil), session.Questions...)
	copied.Marked = append([]bool(nil), session.Marked...)
	copied.HintsUsed = append([]bool(nil), session.HintsUsed...)
	copied.HelpRequests = append([]string(nil), session.HelpRequests...)
	copied.Answers = make([]*string, len(session.Answers))
	for i, a := range session.Answers {
		if a != nil {
			v := *a
			copied.Answers[i] = &v
		}
	}
	if session.Summary != nil {
		summary := *session.Summary
		copied.Summary = &summary
	}
	return copied
}
