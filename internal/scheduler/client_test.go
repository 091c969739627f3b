package scheduler

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

type redisSettings struct {
	url string
}

func (r redisSettings) GetRedisURL() string       { return r.url }
func (r redisSettings) GetRedisTLSInsecure() bool { return false }

func TestConnectRedisReturnsLiveClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := ConnectRedis(context.Background(), redisSettings{url: "redis://" + mr.Addr()}, 3, time.Millisecond)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	if err := client.Set(context.Background(), "stl:ping", "1", 0).Err(); err != nil {
		t.Fatalf("expected usable client, got %v", err)
	}
}

func TestConnectRedisFailsWhenConfiguredRedisIsDown(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	client, err := ConnectRedis(context.Background(), redisSettings{url: "redis://" + addr}, 2, time.Millisecond)
	if err == nil {
		_ = client.Close()
		t.Fatal("expected unreachable redis to be an error")
	}
	if !strings.Contains(err.Error(), "after 2 attempts") {
		t.Fatalf("expected retries to be exhausted, got %v", err)
	}
}

func TestConnectRedisRejectsInvalidURL(t *testing.T) {
	if _, err := ConnectRedis(context.Background(), redisSettings{url: "://nope"}, 1, time.Millisecond); err == nil {
		t.Fatal("expected invalid url error")
	}
	if _, err := ConnectRedis(context.Background(), redisSettings{}, 1, time.Millisecond); err == nil {
		t.Fatal("expected missing url error")
	}
}
