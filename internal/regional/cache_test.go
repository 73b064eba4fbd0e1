package regional_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nyashahama/fitcheck-backend/internal/regional"
)

// memCache is an in-memory stand-in for the two Redis commands the cache uses.
type memCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	ttls    map[string]time.Duration
	readErr error
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (m *memCache) Get(_ context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return redis.NewStringResult("", m.readErr)
	}
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (m *memCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value.([]byte)
	m.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func TestWithCache_MissThenHit(t *testing.T) {
	inner := &stubSource{result: liveResult("high")}
	cache := newMemCache()
	src := regional.WithCache(inner, cache, time.Hour, discardLogger())
	ctx := context.Background()

	first, err := src.Fetch(ctx, "NY")
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	// Same location, different spelling → same key.
	second, err := src.Fetch(ctx, " ny ")
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("inner calls: got %d, want 1", inner.calls)
	}
	if second.Status != regional.StatusOK || len(second.Records) != len(first.Records) {
		t.Errorf("cached result: got %+v", second)
	}
	if cache.ttls["regional:ny"] != time.Hour {
		t.Errorf("ttl: got %v", cache.ttls["regional:ny"])
	}
}

func TestWithCache_DegradedResultsAreNotCached(t *testing.T) {
	inner := &stubSource{result: regional.SyntheticFallback("NY", time.Now(), errors.New("down"))}
	cache := newMemCache()
	src := regional.WithCache(inner, cache, time.Hour, discardLogger())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := src.Fetch(ctx, "NY"); err != nil {
			t.Fatalf("fetch: %v", err)
		}
	}
	if inner.calls != 2 {
		t.Errorf("inner calls: got %d, want 2", inner.calls)
	}
	if len(cache.data) != 0 {
		t.Errorf("cache should be empty, has %d entries", len(cache.data))
	}
}

func TestWithCache_RedisDownIsBypassed(t *testing.T) {
	inner := &stubSource{result: liveResult("normal")}
	cache := newMemCache()
	cache.readErr = errors.New("dial tcp: connection refused")
	src := regional.WithCache(inner, cache, time.Hour, discardLogger())

	got, err := src.Fetch(context.Background(), "NY")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != regional.StatusOK || inner.calls != 1 {
		t.Errorf("got status %q after %d inner calls", got.Status, inner.calls)
	}
}

func TestWithCache_InnerErrorPropagates(t *testing.T) {
	boom := errors.New("upstream down")
	src := regional.WithCache(&stubSource{err: boom}, newMemCache(), time.Hour, discardLogger())
	if _, err := src.Fetch(context.Background(), "NY"); !errors.Is(err, boom) {
		t.Errorf("expected upstream error, got %v", err)
	}
}
