// Package session keeps server-side execution sessions, each owning one execution client.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/Ryo-cool/go-concurrency-learner/internal/executor"
	"github.com/Ryo-cool/go-concurrency-learner/internal/models"
)

// Common errors
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionBusy     = errors.New("session is already running code")
)

// Manager defines the interface for execution session management
type Manager interface {
	Create(ctx context.Context, learnerID, lessonID string) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) []*Session
	GetIdle(ctx context.Context, idleFor time.Duration) []*Session
	Close() error
}

// Session pairs an execution client with its ownership and activity data
type Session struct {
	ID        string
	LearnerID string
	LessonID  string
	CreatedAt time.Time
	Client    *executor.Client

	mu          sync.Mutex
	lastUsed    time.Time
	subscribers map[int]func(models.OutputRecord)
	nextSub     int
}

// Subscribe registers fn to receive every record the session's client produces.
// The returned function removes the subscription.
func (s *Session) Subscribe(fn func(models.OutputRecord)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subscribers == nil {
		s.subscribers = make(map[int]func(models.OutputRecord))
	}
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

func (s *Session) publish(rec models.OutputRecord) {
	s.mu.Lock()
	subs := make([]func(models.OutputRecord), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(rec)
	}
}

// Touch records activity at now
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.After(s.lastUsed) {
		s.lastUsed = now
	}
}

// LastUsed returns the time of the latest activity
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// Info returns the API view of the session
func (s *Session) Info() *models.ExecutionSession {
	state := models.SessionIdle
	if s.Client.State() == executor.StateRunning {
		state = models.SessionRunning
	}
	return &models.ExecutionSession{
		ID:         s.ID,
		LearnerID:  s.LearnerID,
		LessonID:   s.LessonID,
		State:      state,
		CreatedAt:  s.CreatedAt,
		LastUsedAt: s.LastUsed(),
	}
}

// MemoryManager implements Manager in process memory
type MemoryManager struct {
	sessions   *xsync.MapOf[string, *Session]
	compiler   executor.Compiler
	clientOpts []executor.Option
	now        func() time.Time
}

// NewManager creates a new in-memory session manager. Every session gets its
// own execution client built from compiler and opts.
func NewManager(compiler executor.Compiler, opts ...executor.Option) *MemoryManager {
	return &MemoryManager{
		sessions:   xsync.NewMapOf[string, *Session](),
		compiler:   compiler,
		clientOpts: opts,
		now:        time.Now,
	}
}

// Create starts a new idle session
func (m *MemoryManager) Create(ctx context.Context, learnerID, lessonID string) (*Session, error) {
	id := uuid.New().String()
	now := m.now()

	s := &Session{
		ID:        id,
		LearnerID: learnerID,
		LessonID:  lessonID,
		CreatedAt: now,
		lastUsed:  now,
	}
	opts := append(append([]executor.Option{}, m.clientOpts...),
		executor.WithObserver(s.publish),
		executor.WithLogger(slog.Default().With("session_id", id)),
	)
	s.Client = executor.New(m.compiler, opts...)
	m.sessions.Store(id, s)

	slog.Info("execution session created", "id", id, "learner_id", learnerID, "lesson_id", lessonID)
	return s, nil
}

// Get retrieves a session by ID and marks it as used
func (m *MemoryManager) Get(ctx context.Context, id string) (*Session, error) {
	s, ok := m.sessions.Load(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.Touch(m.now())
	return s, nil
}

// Delete cancels any run in progress and removes the session
func (m *MemoryManager) Delete(ctx context.Context, id string) error {
	s, ok := m.sessions.LoadAndDelete(id)
	if !ok {
		return ErrSessionNotFound
	}
	s.Client.Cancel()

	slog.Info("execution session deleted", "id", id)
	return nil
}

// List returns all sessions ordered by creation time
func (m *MemoryManager) List(ctx context.Context) []*Session {
	result := make([]*Session, 0, m.sessions.Size())
	m.sessions.Range(func(_ string, s *Session) bool {
		result = append(result, s)
		return true
	})
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// GetIdle returns the sessions unused for longer than idleFor
func (m *MemoryManager) GetIdle(ctx context.Context, idleFor time.Duration) []*Session {
	cutoff := m.now().Add(-idleFor)
	var result []*Session
	m.sessions.Range(func(_ string, s *Session) bool {
		if s.LastUsed().Before(cutoff) {
			result = append(result, s)
		}
		return true
	})
	return result
}

// Close cancels all runs and drops every session
func (m *MemoryManager) Close() error {
	m.sessions.Range(func(id string, s *Session) bool {
		s.Client.Cancel()
		m.sessions.Delete(id)
		return true
	})
	return nil
}
