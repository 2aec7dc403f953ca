package proxy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeRedis struct {
	data   map[string]string
	getErr error
	setErr error
	delErr error
	dels   int
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	value, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(value, nil)
}

func (f *fakeRedis) store(key string, value interface{}) {
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	f.store(key, value)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) *redis.BoolCmd {
	if f.setErr != nil {
		return redis.NewBoolResult(false, f.setErr)
	}
	if _, ok := f.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.store(key, value)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.dels++
	if f.delErr != nil {
		return redis.NewIntResult(0, f.delErr)
	}
	for _, key := range keys {
		delete(f.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

type countingService struct {
	proxy   Proxy
	gets    int
	updates int
	err     error
}

func (s *countingService) GetProxy(context.Context) (Proxy, error) {
	s.gets++
	return s.proxy, s.err
}

func (s *countingService) UpdateProxy(_ context.Context, p Proxy) error {
	s.updates++
	if s.err != nil {
		return s.err
	}
	s.proxy = p
	return nil
}

func TestCachedServiceServesFromCache(t *testing.T) {
	next := &countingService{proxy: Proxy{Host: "proxy.example.com", Port: 3128, Enabled: true}}
	cache := NewCachedService(next, newFakeRedis(), time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		p, err := cache.GetProxy(ctx)
		if err != nil {
			t.Fatalf("get proxy: %v", err)
		}
		if p.Host != "proxy.example.com" {
			t.Fatalf("unexpected proxy: %+v", p)
		}
	}
	if next.gets != 1 {
		t.Fatalf("expected one backing read, got %d", next.gets)
	}
}

func TestCachedServiceRefreshesOnUpdate(t *testing.T) {
	next := &countingService{proxy: Proxy{Host: "old.example.com", Port: 3128}}
	client := newFakeRedis()
	cache := NewCachedService(next, client, time.Minute)
	ctx := context.Background()

	if _, err := cache.GetProxy(ctx); err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	if err := cache.UpdateProxy(ctx, Proxy{Host: "new.example.com", Port: 8080, Enabled: true}); err != nil {
		t.Fatalf("update: %v", err)
	}

	p, err := cache.GetProxy(ctx)
	if err != nil {
		t.Fatalf("get proxy: %v", err)
	}
	if p.Host != "new.example.com" {
		t.Fatalf("expected fresh proxy after update, got %+v", p)
	}
	if next.gets != 1 {
		t.Fatalf("expected the refreshed entry to be served from cache, got %d backing reads", next.gets)
	}
}

// updateDuringReadService commits an update after the backing read of a
// cache miss and before the miss is written back.
type updateDuringReadService struct {
	countingService
	onRead func()
}

func (s *updateDuringReadService) GetProxy(ctx context.Context) (Proxy, error) {
	p, err := s.countingService.GetProxy(ctx)
	if s.onRead != nil {
		hook := s.onRead
		s.onRead = nil
		hook()
	}
	return p, err
}

func TestCachedServiceSlowReadDoesNotOverwriteUpdate(t *testing.T) {
	next := &updateDuringReadService{countingService: countingService{proxy: Proxy{Host: "old.example.com", Port: 3128}}}
	client := newFakeRedis()
	cache := NewCachedService(next, client, time.Minute)
	ctx := context.Background()

	next.onRead = func() {
		if err := cache.UpdateProxy(ctx, Proxy{Host: "new.example.com", Port: 8080, Enabled: true}); err != nil {
			t.Fatalf("update: %v", err)
		}
	}
	if _, err := cache.GetProxy(ctx); err != nil {
		t.Fatalf("get proxy: %v", err)
	}

	p, err := cache.GetProxy(ctx)
	if err != nil {
		t.Fatalf("get proxy: %v", err)
	}
	if p.Host != "new.example.com" {
		t.Fatalf("stale cache after committed update: store host=%s, cached host=%s", next.proxy.Host, p.Host)
	}
}

func TestCachedServiceDropsEntryWhenRefreshFails(t *testing.T) {
	next := &countingService{proxy: Proxy{Host: "old.example.com", Port: 3128}}
	client := newFakeRedis()
	cache := NewCachedService(next, client, time.Minute)
	ctx := context.Background()

	if _, err := cache.GetProxy(ctx); err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	client.setErr = errors.New("read only replica")
	if err := cache.UpdateProxy(ctx, Proxy{Host: "new.example.com", Port: 8080}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if client.dels != 1 {
		t.Fatalf("expected cache invalidation, got %d deletes", client.dels)
	}

	p, err := cache.GetProxy(ctx)
	if err != nil {
		t.Fatalf("get proxy: %v", err)
	}
	if p.Host != "new.example.com" || next.gets != 2 {
		t.Fatalf("expected backing read after failed refresh, got %+v (gets=%d)", p, next.gets)
	}
}

func TestCachedServiceIgnoresCacheWriteFailures(t *testing.T) {
	next := &countingService{proxy: Proxy{Host: "proxy.example.com", Port: 3128}}
	client := newFakeRedis()
	client.setErr = errors.New("connection reset")
	client.delErr = errors.New("connection reset")
	cache := NewCachedService(next, client, time.Minute)
	ctx := context.Background()

	p, err := cache.GetProxy(ctx)
	if err != nil {
		t.Fatalf("get proxy: %v", err)
	}
	if p.Host != "proxy.example.com" {
		t.Fatalf("unexpected proxy: %+v", p)
	}
	if err := cache.UpdateProxy(ctx, Proxy{Host: "new.example.com", Port: 8080}); err != nil {
		t.Fatalf("update should not fail on cache errors: %v", err)
	}
	if next.proxy.Host != "new.example.com" {
		t.Fatalf("expected write to reach the store, got %+v", next.proxy)
	}
}

func TestCachedServiceFallsThroughOnRedisError(t *testing.T) {
	next := &countingService{proxy: Proxy{Host: "proxy.example.com", Port: 3128}}
	client := newFakeRedis()
	client.getErr = errors.New("connection refused")
	cache := NewCachedService(next, client, time.Minute)

	p, err := cache.GetProxy(context.Background())
	if err != nil {
		t.Fatalf("get proxy: %v", err)
	}
	if p.Host != "proxy.example.com" || next.gets != 1 {
		t.Fatalf("expected backing read, got %+v (gets=%d)", p, next.gets)
	}
}

func TestCachedServiceKeepsCacheWhenUpdateFails(t *testing.T) {
	next := &countingService{err: errors.New("db down")}
	client := newFakeRedis()
	cache := NewCachedService(next, client, time.Minute)

	if err := cache.UpdateProxy(context.Background(), Proxy{Host: "x", Port: 1}); err == nil {
		t.Fatalf("expected update error")
	}
	if client.dels != 0 {
		t.Fatalf("expected no invalidation on failed update")
	}
}
