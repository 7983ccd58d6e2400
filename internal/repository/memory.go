package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"consultdesk/internal/models"
)

// MemorySessionRepository keeps sessions in process. Sessions are stored
// encoded, so callers never share a pointer with the store.
type MemorySessionRepository struct {
	mu         sync.Mutex
	sessions   map[string]memoryEntry
	rateLimits map[string]*rateLimitEntry
	ttl        time.Duration
	now        func() time.Time
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func NewMemorySessionRepository(ttl time.Duration) *MemorySessionRepository {
	return &MemorySessionRepository{
		sessions:   make(map[string]memoryEntry),
		rateLimits: make(map[string]*rateLimitEntry),
		ttl:        ttl,
		now:        time.Now,
	}
}

func (r *MemorySessionRepository) GetSession(ctx context.Context, id string) (*models.Session, error) {
	r.mu.Lock()
	entry, ok := r.sessions[id]
	if ok && r.expired(entry.expiresAt) {
		delete(r.sessions, id)
		ok = false
	}
	r.mu.Unlock()
	if !ok {
		return nil, nil
	}

	var session models.Session
	if err := json.Unmarshal(entry.data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

func (r *MemorySessionRepository) SaveSession(ctx context.Context, session *models.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	entry := memoryEntry{data: data}
	if r.ttl > 0 {
		entry.expiresAt = r.now().Add(r.ttl)
	}

	r.mu.Lock()
	r.sessions[session.ID] = entry
	r.mu.Unlock()
	return nil
}

func (r *MemorySessionRepository) DeleteSession(ctx context.Context, id string) error {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
	return nil
}

func (r *MemorySessionRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	entry, ok := r.rateLimits[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &rateLimitEntry{expiresAt: now.Add(window)}
		r.rateLimits[key] = entry
	}
	entry.count++
	return entry.count <= limit, nil
}

// Len reports the number of live sessions.
func (r *MemorySessionRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.sessions {
		if !r.expired(e.expiresAt) {
			n++
		}
	}
	return n
}

func (r *MemorySessionRepository) expired(at time.Time) bool {
	return !at.IsZero() && r.now().After(at)
}
