package settings

import (
	"context"
	"fmt"

	"orengen_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// InvalidationChannel carries the ids of tenants whose configuration changed.
const InvalidationChannel = "stl:config-invalidate"

// RedisInvalidation keeps the config caches of API and scheduler processes
// coherent over Redis Pub/Sub.
type RedisInvalidation struct {
	client *redis.Client
	log    *logger.Logger
}

func NewRedisInvalidation(client *redis.Client, log *logger.Logger) *RedisInvalidation {
	return &RedisInvalidation{client: client, log: log}
}

// Broadcast announces a change. A failed publish is logged; the other
// processes then pick the change up when their cache entry expires.
func (r *RedisInvalidation) Broadcast(ctx context.Context, tenantID uuid.UUID) {
	if err := r.client.Publish(ctx, InvalidationChannel, tenantID.String()).Err(); err != nil {
		r.log.Warn("failed to broadcast config change", "tenantId", tenantID, "error", err)
	}
}

// Listen drops announced tenants from store until ctx is done.
func (r *RedisInvalidation) Listen(ctx context.Context, store *Store) error {
	sub := r.client.Subscribe(ctx, InvalidationChannel)
	defer func() { _ = sub.Close() }()

	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", InvalidationChannel, err)
	}

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			tenantID, err := uuid.Parse(msg.Payload)
			if err != nil {
				r.log.Warn("ignoring malformed config invalidation", "payload", msg.Payload)
				continue
			}
			store.Invalidate(tenantID)
			r.log.Debug("config cache invalidated", "tenantId", tenantID)
		}
	}
}
