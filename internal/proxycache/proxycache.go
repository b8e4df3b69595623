// Package proxycache implements the blacklist and priority cache
// described in spec.md §4.6: a monotonically-growing set of JIDs known
// not to be SOCKS5 proxies, and the last remote proxy a negotiation
// successfully used. A Store is either in-memory (the spec's baseline
// semantics) or Redis-backed for a manager that wants this state to
// survive a process restart, grounded on
// sadewadee-google-scraper/internal/cache/redis.go's
// redis.NewClient/Ping/Get/Set shape.
package proxycache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ge0rg/bytestream5/pkg/jid"
)

// Store is the persistence boundary for blacklist and priority state.
// Every method is safe for concurrent use.
type Store interface {
	// Blacklist adds candidate to the blacklist. Additions only: a JID
	// once blacklisted never leaves.
	Blacklist(ctx context.Context, candidate jid.JID) error
	// IsBlacklisted reports whether candidate was previously blacklisted.
	IsBlacklisted(ctx context.Context, candidate jid.JID) (bool, error)
	// LastSuccess returns the most recently recorded successful remote
	// proxy JID, and whether one has ever been recorded.
	LastSuccess(ctx context.Context) (jid.JID, bool, error)
	// SetLastSuccess records candidate as the most recent successful
	// remote proxy JID.
	SetLastSuccess(ctx context.Context, candidate jid.JID) error
}

// MemoryStore is the default in-process Store: a mutex-guarded set and a
// single optional JID, satisfying spec.md §4.6 exactly.
type MemoryStore struct {
	mu          sync.RWMutex
	blacklisted map[string]struct{}
	lastSuccess jid.JID
	hasSuccess  bool
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blacklisted: make(map[string]struct{})}
}

func (s *MemoryStore) Blacklist(_ context.Context, candidate jid.JID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blacklisted[candidate.String()] = struct{}{}
	return nil
}

func (s *MemoryStore) IsBlacklisted(_ context.Context, candidate jid.JID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blacklisted[candidate.String()]
	return ok, nil
}

func (s *MemoryStore) LastSuccess(_ context.Context) (jid.JID, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSuccess, s.hasSuccess, nil
}

func (s *MemoryStore) SetLastSuccess(_ context.Context, candidate jid.JID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSuccess = candidate
	s.hasSuccess = true
	return nil
}

const (
	redisBlacklistKeyPrefix = "bytestream5:blacklist:"
	redisLastSuccessKey     = "bytestream5:last_success"
)

// RedisStore is a Store backed by Redis, for deployments that want the
// blacklist and priority cache to outlive a single process.
type RedisStore struct {
	client *redis.Client
}

// RedisConfig holds Redis connection settings for NewRedisStore.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisStore dials addr and verifies connectivity with a Ping before
// returning, mirroring NewRedisCache's fail-fast construction.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("proxycache: redis connection failed: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Blacklist(ctx context.Context, candidate jid.JID) error {
	key := redisBlacklistKeyPrefix + candidate.String()
	if err := s.client.Set(ctx, key, "1", 0).Err(); err != nil {
		return fmt.Errorf("proxycache: redis blacklist set failed: %w", err)
	}
	return nil
}

func (s *RedisStore) IsBlacklisted(ctx context.Context, candidate jid.JID) (bool, error) {
	key := redisBlacklistKeyPrefix + candidate.String()
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("proxycache: redis blacklist lookup failed: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) LastSuccess(ctx context.Context) (jid.JID, bool, error) {
	val, err := s.client.Get(ctx, redisLastSuccessKey).Result()
	if err == redis.Nil {
		return jid.JID{}, false, nil
	}
	if err != nil {
		return jid.JID{}, false, fmt.Errorf("proxycache: redis last-success get failed: %w", err)
	}
	parsed, err := jid.Parse(val)
	if err != nil {
		return jid.JID{}, false, fmt.Errorf("proxycache: stored last-success value %q is not a valid jid: %w", val, err)
	}
	return parsed, true, nil
}

func (s *RedisStore) SetLastSuccess(ctx context.Context, candidate jid.JID) error {
	if err := s.client.Set(ctx, redisLastSuccessKey, candidate.String(), 0).Err(); err != nil {
		return fmt.Errorf("proxycache: redis last-success set failed: %w", err)
	}
	return nil
}

// Close releases the underlying Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
