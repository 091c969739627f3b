package assignment

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Counter hands out per-tenant round-robin positions. Next returns the value
// before the increment, and two concurrent callers never receive the same value.
type Counter interface {
	Next(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

const redisCounterPrefix = "stl:rr:"

// RedisCounter keeps the counter in Redis so every API and worker process
// shares it.
type RedisCounter struct {
	client redis.Cmdable
}

func NewRedisCounter(client redis.Cmdable) *RedisCounter {
	return &RedisCounter{client: client}
}

func (c *RedisCounter) Next(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	value, err := c.client.Incr(ctx, redisCounterPrefix+tenantID.String()).Result()
	if err != nil {
		return 0, fmt.Errorf("increment round-robin counter: %w", err)
	}
	return value - 1, nil
}

// PostgresCounter keeps the counter in stl_round_robin_counters. The upsert
// takes a row lock, which serializes concurrent increments for one tenant.
type PostgresCounter struct {
	pool *pgxpool.Pool
}

func NewPostgresCounter(pool *pgxpool.Pool) *PostgresCounter {
	return &PostgresCounter{pool: pool}
}

func (c *PostgresCounter) Next(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var value int64
	err := c.pool.QueryRow(ctx, `
		INSERT INTO stl_round_robin_counters (tenant_id, value)
		VALUES ($1, 1)
		ON CONFLICT (tenant_id) DO UPDATE SET value = stl_round_robin_counters.value + 1
		RETURNING value`,
		tenantID,
	).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("increment round-robin counter: %w", err)
	}
	return value - 1, nil
}

// MemoryCounter is a process-local Counter for tests and single-instance setups.
type MemoryCounter struct {
	mu     sync.Mutex
	values map[uuid.UUID]int64
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{values: make(map[uuid.UUID]int64)}
}

// Seed sets the next value returned for tenantID.
func (c *MemoryCounter) Seed(tenantID uuid.UUID, value int64) {
	c.mu.Lock()
	c.values[tenantID] = value
	c.mu.Unlock()
}

func (c *MemoryCounter) Next(_ context.Context, tenantID uuid.UUID) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value := c.values[tenantID]
	c.values[tenantID] = value + 1
	return value, nil
}
