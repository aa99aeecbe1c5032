package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound indicates the requested quote could not be located.
var ErrNotFound = errors.New("quote not found")

// Store persists quote sessions. Quotes expire after the configured TTL;
// every Put refreshes it.
type Store interface {
	Get(ctx context.Context, id string) (Quote, error)
	Put(ctx context.Context, q Quote) error
	Delete(ctx context.Context, id string) error
}

// RedisStore keeps quotes as JSON values with a TTL.
type RedisStore struct {
	Client *redis.Client
	TTL    time.Duration
}

func (s RedisStore) ttl() time.Duration {
	if s.TTL <= 0 {
		return 24 * time.Hour
	}
	return s.TTL
}

func quoteKey(id string) string {
	return "quote:" + id
}

// Get loads a quote by id.
func (s RedisStore) Get(ctx context.Context, id string) (Quote, error) {
	if s.Client == nil {
		return Quote{}, errors.New("quote store not configured")
	}
	data, err := s.Client.Get(ctx, quoteKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Quote{}, ErrNotFound
		}
		return Quote{}, fmt.Errorf("load quote: %w", err)
	}
	var q Quote
	if err := json.Unmarshal(data, &q); err != nil {
		return Quote{}, fmt.Errorf("decode quote: %w", err)
	}
	return q, nil
}

// Put stores the quote and refreshes its TTL.
func (s RedisStore) Put(ctx context.Context, q Quote) error {
	if s.Client == nil {
		return errors.New("quote store not configured")
	}
	data, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("encode quote: %w", err)
	}
	return s.Client.Set(ctx, quoteKey(q.ID), data, s.ttl()).Err()
}

// Delete removes a quote.
func (s RedisStore) Delete(ctx context.Context, id string) error {
	if s.Client == nil {
		return errors.New("quote store not configured")
	}
	return s.Client.Del(ctx, quoteKey(id)).Err()
}

type memoryEntry struct {
	quote     Quote
	expiresAt time.Time
}

// MemoryStore keeps quotes in process memory. Used when no Redis URL is
// configured and throughout the test suite.
type MemoryStore struct {
	TTL time.Duration
	Now func() time.Time

	mu sync.RWMutex
	m  map[string]memoryEntry
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{TTL: ttl, m: map[string]memoryEntry{}}
}

func (s *MemoryStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *MemoryStore) ttl() time.Duration {
	if s.TTL <= 0 {
		return 24 * time.Hour
	}
	return s.TTL
}

// Get loads a quote by id, honouring expiry.
func (s *MemoryStore) Get(_ context.Context, id string) (Quote, error) {
	s.mu.RLock()
	entry, ok := s.m[id]
	s.mu.RUnlock()
	if !ok || entry.expiresAt.Before(s.now()) {
		return Quote{}, ErrNotFound
	}
	return entry.quote, nil
}

// Put stores the quote and refreshes its TTL.
func (s *MemoryStore) Put(_ context.Context, q Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = map[string]memoryEntry{}
	}
	s.m[q.ID] = memoryEntry{quote: q, expiresAt: s.now().Add(s.ttl())}
	return nil
}

// Delete removes a quote.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, id)
	return nil
}
