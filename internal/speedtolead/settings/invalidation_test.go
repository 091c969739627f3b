package settings

import (
	"context"
	"testing"
	"time"

	"orengen_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func TestUpdateInvalidatesOtherProcessCaches(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := newFakeRepo()
	tenant := uuid.New()
	repo.rows[tenant] = Config{Enabled: false}

	api := NewStore(repo, Config{}, time.Hour)
	api.SetBroadcaster(NewRedisInvalidation(client, logger.Discard()))
	worker := NewStore(repo, Config{}, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = NewRedisInvalidation(client, logger.Discard()).Listen(ctx, worker) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		subs, err := client.PubSubNumSub(ctx, InvalidationChannel).Result()
		if err == nil && subs[InvalidationChannel] > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("listener never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if cfg, err := worker.Get(ctx, tenant); err != nil || cfg.Enabled {
		t.Fatalf("expected cached disabled config, got %+v %v", cfg, err)
	}

	if _, err := api.Update(ctx, tenant, Config{Enabled: true, AssignmentStrategy: StrategyRoundRobin}); err != nil {
		t.Fatalf("update: %v", err)
	}

	deadline = time.Now().Add(2 * time.Second)
	for {
		cfg, err := worker.Get(ctx, tenant)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if cfg.Enabled {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("expected worker cache to drop the stale config")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStoreWithoutBroadcasterOnlyInvalidatesLocally(t *testing.T) {
	repo := newFakeRepo()
	tenant := uuid.New()
	repo.rows[tenant] = Config{Enabled: false}
	api := NewStore(repo, Config{}, time.Hour)
	worker := NewStore(repo, Config{}, time.Hour)

	if _, err := worker.Get(context.Background(), tenant); err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, err := api.Update(context.Background(), tenant, Config{Enabled: true, AssignmentStrategy: StrategyRoundRobin}); err != nil {
		t.Fatalf("update: %v", err)
	}

	cfg, err := worker.Get(context.Background(), tenant)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cfg.Enabled {
		t.Fatal("expected other store to keep its copy until the ttl expires")
	}
}
