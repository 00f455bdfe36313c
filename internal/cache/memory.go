package cache

import (
	"context"
	"sync"
	"time"

	"parts-agent/internal/models"
)

// MemoryStore is the in-process fallback used when Redis is unavailable.
// Expired responses are evicted lazily on read.
type MemoryStore struct {
	mu        sync.RWMutex
	histories map[string][]models.Turn
	responses map[string]memoryEntry
	values    map[string]valueEntry
	now       func() time.Time
}

type memoryEntry struct {
	answer    models.Answer
	expiresAt time.Time
}

type valueEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		histories: make(map[string][]models.Turn),
		responses: make(map[string]memoryEntry),
		values:    make(map[string]valueEntry),
		now:       time.Now,
	}
}

func (s *MemoryStore) AppendTurns(_ context.Context, sessionID string, turns ...models.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	history := append(s.histories[sessionID], turns...)
	if len(history) > HistoryLimit {
		history = history[len(history)-HistoryLimit:]
	}
	s.histories[sessionID] = history
	return nil
}

func (s *MemoryStore) History(_ context.Context, sessionID string) ([]models.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.histories[sessionID]
	out := make([]models.Turn, len(history))
	copy(out, history)
	return out, nil
}

func (s *MemoryStore) GetResponse(_ context.Context, message string) (*models.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.responses[responseKey(message)]
	if !ok {
		return nil, nil
	}
	if s.now().After(entry.expiresAt) {
		delete(s.responses, responseKey(message))
		return nil, nil
	}
	answer := entry.answer
	return &answer, nil
}

func (s *MemoryStore) SetResponse(_ context.Context, message string, answer *models.Answer, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.responses[responseKey(message)] = memoryEntry{
		answer:    *answer,
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.values[key]
	if !ok {
		return "", nil
	}
	if !entry.expiresAt.IsZero() && s.now().After(entry.expiresAt) {
		delete(s.values, key)
		return "", nil
	}
	return entry.value, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := valueEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}
	s.values[key] = entry
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.values, key)
	}
	return nil
}

var _ Store = (*MemoryStore)(nil)
