package settings

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"orengen_backend/platform/apperr"

	"github.com/google/uuid"
)

type fakeRepo struct {
	mu    sync.Mutex
	rows  map[uuid.UUID]Config
	reads int32
	delay time.Duration
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: map[uuid.UUID]Config{}}
}

func (r *fakeRepo) GetConfig(_ context.Context, tenantID uuid.UUID) (Config, error) {
	atomic.AddInt32(&r.reads, 1)
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.rows[tenantID]
	if !ok {
		return Config{}, apperr.NotFound("speed-to-lead config not found")
	}
	return cfg, nil
}

func (r *fakeRepo) UpsertConfig(_ context.Context, tenantID uuid.UUID, cfg Config) (Config, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[tenantID] = cfg
	return cfg, nil
}

func TestEmbeddedDefaultsParse(t *testing.T) {
	cfg, err := LoadDefaults("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if !cfg.Enabled || cfg.AssignmentStrategy != StrategyRoundRobin {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if len(cfg.NotificationChannels) != 1 || cfg.NotificationChannels[0] != ChannelEmail {
		t.Fatalf("expected email channel, got %v", cfg.NotificationChannels)
	}
}

func TestDefaultsFileOverride(t *testing.T) {
	user := uuid.New()
	path := filepath.Join(t.TempDir(), "defaults.yaml")
	doc := "enabled: true\nassignment_strategy: least_loaded\neligible_users:\n  - " + user.String() + "\n  - " + user.String() + "\nnotification_channels: [slack, slack, sms]\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write defaults: %v", err)
	}

	cfg, err := LoadDefaults(path)
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.AssignmentStrategy != StrategyLeastLoaded {
		t.Fatalf("expected least_loaded, got %s", cfg.AssignmentStrategy)
	}
	if len(cfg.EligibleUsers) != 1 || cfg.EligibleUsers[0] != user {
		t.Fatalf("expected deduplicated eligible users, got %v", cfg.EligibleUsers)
	}
	if len(cfg.NotificationChannels) != 2 {
		t.Fatalf("expected deduplicated channels, got %v", cfg.NotificationChannels)
	}
}

func TestDefaultsFileRejectsUnknownStrategy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "defaults.yaml")
	if err := os.WriteFile(path, []byte("assignment_strategy: random\n"), 0o600); err != nil {
		t.Fatalf("write defaults: %v", err)
	}
	if _, err := LoadDefaults(path); err == nil {
		t.Fatalf("expected error for unknown strategy")
	}
}

func TestStoreCachesUntilTTL(t *testing.T) {
	repo := newFakeRepo()
	tenant := uuid.New()
	repo.rows[tenant] = Config{Enabled: true, AssignmentStrategy: StrategyByScore}

	store := NewStore(repo, Config{}, time.Minute)
	clock := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }

	for i := 0; i < 3; i++ {
		if _, err := store.Get(context.Background(), tenant); err != nil {
			t.Fatalf("get: %v", err)
		}
	}
	if repo.reads != 1 {
		t.Fatalf("expected one repository read, got %d", repo.reads)
	}

	clock = clock.Add(2 * time.Minute)
	if _, err := store.Get(context.Background(), tenant); err != nil {
		t.Fatalf("get: %v", err)
	}
	if repo.reads != 2 {
		t.Fatalf("expected cache expiry to trigger a read, got %d", repo.reads)
	}
}

func TestStoreCollapsesConcurrentMisses(t *testing.T) {
	repo := newFakeRepo()
	repo.delay = 50 * time.Millisecond
	tenant := uuid.New()
	repo.rows[tenant] = Config{Enabled: true}

	store := NewStore(repo, Config{}, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Get(context.Background(), tenant); err != nil {
				t.Errorf("get: %v", err)
			}
		}()
	}
	wg.Wait()

	if reads := atomic.LoadInt32(&repo.reads); reads != 1 {
		t.Fatalf("expected concurrent misses to share one read, got %d", reads)
	}
}

func TestStoreGetOrDefault(t *testing.T) {
	store := NewStore(newFakeRepo(), Config{Enabled: true, HighScoreThreshold: 75}, time.Minute)

	cfg, stored, err := store.GetOrDefault(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored || cfg.HighScoreThreshold != 75 {
		t.Fatalf("expected defaults, got stored=%v cfg=%+v", stored, cfg)
	}
}

func TestStoreUpdateValidatesAndInvalidates(t *testing.T) {
	repo := newFakeRepo()
	tenant := uuid.New()
	repo.rows[tenant] = Config{Enabled: false}
	store := NewStore(repo, Config{}, time.Hour)

	if _, err := store.Get(context.Background(), tenant); err != nil {
		t.Fatalf("get: %v", err)
	}

	_, err := store.Update(context.Background(), tenant, Config{AssignmentStrategy: "random"})
	if !apperr.Is(err, apperr.KindUnsupported) {
		t.Fatalf("expected unsupported error, got %v", err)
	}
	_, err = store.Update(context.Background(), tenant, Config{HighScoreThreshold: 101})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	if _, err := store.Update(context.Background(), tenant, Config{Enabled: true, AssignmentStrategy: StrategyRoundRobin}); err != nil {
		t.Fatalf("update: %v", err)
	}
	cfg, err := store.Get(context.Background(), tenant)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !cfg.Enabled {
		t.Fatalf("expected cache to be invalidated after update")
	}
}
