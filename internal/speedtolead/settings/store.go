package settings

import (
	"context"
	"sync"
	"time"

	"orengen_backend/platform/apperr"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Repository persists tenant configurations.
// GetConfig returns an apperr.NotFound error when the tenant has no row.
type Repository interface {
	GetConfig(ctx context.Context, tenantID uuid.UUID) (Config, error)
	UpsertConfig(ctx context.Context, tenantID uuid.UUID, cfg Config) (Config, error)
}

// Broadcaster tells other processes that a tenant's configuration changed.
type Broadcaster interface {
	Broadcast(ctx context.Context, tenantID uuid.UUID)
}

type cacheEntry struct {
	cfg       Config
	expiresAt time.Time
}

// Store reads tenant configurations through a short TTL cache. Concurrent
// misses for one tenant share a single repository read.
type Store struct {
	repo     Repository
	defaults Config
	ttl      time.Duration
	now      func() time.Time

	mu          sync.RWMutex
	cache       map[uuid.UUID]cacheEntry
	group       singleflight.Group
	broadcaster Broadcaster
}

// NewStore creates a Store. A ttl of zero disables caching.
func NewStore(repo Repository, defaults Config, ttl time.Duration) *Store {
	return &Store{
		repo:     repo,
		defaults: defaults,
		ttl:      ttl,
		now:      time.Now,
		cache:    make(map[uuid.UUID]cacheEntry),
	}
}

// SetBroadcaster makes Update announce changes so other processes drop their
// cached copy. Without one, other processes see a change once their TTL expires.
func (s *Store) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// Defaults returns the configuration applied to tenants without a stored row.
func (s *Store) Defaults() Config {
	return s.defaults
}

// Get returns the stored configuration for tenantID.
func (s *Store) Get(ctx context.Context, tenantID uuid.UUID) (Config, error) {
	if cfg, ok := s.cached(tenantID); ok {
		return cfg, nil
	}

	v, err, _ := s.group.Do(tenantID.String(), func() (interface{}, error) {
		cfg, err := s.repo.GetConfig(ctx, tenantID)
		if err != nil {
			return Config{}, err
		}
		s.store(tenantID, cfg)
		return cfg, nil
	})
	if err != nil {
		return Config{}, err
	}
	return v.(Config), nil
}

// GetOrDefault returns the stored configuration, or the defaults when the
// tenant has none.
func (s *Store) GetOrDefault(ctx context.Context, tenantID uuid.UUID) (Config, bool, error) {
	cfg, err := s.Get(ctx, tenantID)
	if err == nil {
		return cfg, true, nil
	}
	if apperr.Is(err, apperr.KindNotFound) {
		return s.defaults, false, nil
	}
	return Config{}, false, err
}

// Update validates and persists cfg, then drops the cached copy here and,
// through the broadcaster, in every other process.
func (s *Store) Update(ctx context.Context, tenantID uuid.UUID, cfg Config) (Config, error) {
	if err := cfg.Validate(); err != nil {
		if cfg.AssignmentStrategy != "" && !cfg.AssignmentStrategy.IsKnown() {
			return Config{}, apperr.Unsupported(err.Error())
		}
		return Config{}, apperr.Validation(err.Error())
	}

	saved, err := s.repo.UpsertConfig(ctx, tenantID, cfg.Normalize())
	if err != nil {
		return Config{}, err
	}
	s.Invalidate(tenantID)
	if s.broadcaster != nil {
		s.broadcaster.Broadcast(ctx, tenantID)
	}
	return saved, nil
}

// Invalidate removes tenantID from this process's cache only.
func (s *Store) Invalidate(tenantID uuid.UUID) {
	s.mu.Lock()
	delete(s.cache, tenantID)
	s.mu.Unlock()
}

func (s *Store) cached(tenantID uuid.UUID) (Config, bool) {
	if s.ttl <= 0 {
		return Config{}, false
	}
	s.mu.RLock()
	entry, ok := s.cache[tenantID]
	s.mu.RUnlock()
	if !ok || s.now().After(entry.expiresAt) {
		return Config{}, false
	}
	return entry.cfg, true
}

func (s *Store) store(tenantID uuid.UUID, cfg Config) {
	if s.ttl <= 0 {
		return
	}
	s.mu.Lock()
	s.cache[tenantID] = cacheEntry{cfg: cfg, expiresAt: s.now().Add(s.ttl)}
	s.mu.Unlock()
}
