package session

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// MemoryStore keeps sessions in process memory and evicts the ones left
// idle longer than the TTL. Not shared across instances.
type MemoryStore struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	ttl      time.Duration
	log      logrus.FieldLogger
	now      func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore creates a store that sweeps idle sessions every interval
func NewMemoryStore(ttl, sweepInterval time.Duration, log logrus.FieldLogger) *MemoryStore {
	m := &MemoryStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		log:      log,
		now:      time.Now,
		stop:     make(chan struct{}),
	}

	if sweepInterval > 0 {
		go m.cleanupExpiredSessions(sweepInterval)
	}

	return m
}

func (m *MemoryStore) GetOrCreate(ctx context.Context, key string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, exists := m.sessions[key]; exists && !m.expired(s) {
		return clone(s), nil
	}

	s := New(key)
	s.CreatedAt = m.now()
	s.LastActive = s.CreatedAt
	m.sessions[key] = s
	return clone(s), nil
}

func (m *MemoryStore) Save(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := clone(s)
	stored.LastActive = m.now()
	s.LastActive = stored.LastActive
	m.sessions[s.Key] = stored
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, key)
	return nil
}

func (m *MemoryStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.sessions), nil
}

// Close stops the eviction loop
func (m *MemoryStore) Close() error {
	m.stopOnce.Do(func() { close(m.stop) })
	return nil
}

func (m *MemoryStore) expired(s *Session) bool {
	return m.ttl > 0 && m.now().Sub(s.LastActive) > m.ttl
}

// cleanupExpiredSessions runs periodically to evict idle sessions
func (m *MemoryStore) cleanupExpiredSessions(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			if n := m.sweep(); n > 0 {
				m.log.WithField("evicted", n).Info("Cleaned up idle USSD sessions")
			}
		}
	}
}

func (m *MemoryStore) sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for key, s := range m.sessions {
		if m.expired(s) {
			delete(m.sessions, key)
			evicted++
		}
	}
	return evicted
}

func clone(s *Session) *Session {
	c := *s
	if s.Stalls != nil {
		c.Stalls = append([]string(nil), s.Stalls...)
	}
	return &c
}
