package cache

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache 进程内缓存，单实例部署时使用
type MemoryCache struct {
	items *gocache.Cache
}

// NewMemoryCache 创建内存缓存
func NewMemoryCache(config Config) (*MemoryCache, error) {
	ttl := config.DefaultTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	cleanup := config.CleanupInterval
	if cleanup <= 0 {
		cleanup = 10 * time.Minute
	}
	return &MemoryCache{items: gocache.New(ttl, cleanup)}, nil
}

// Get 返回缓存内容的副本
func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.items.Get(key)
	if !ok {
		return nil, false, nil
	}
	data, ok := v.([]byte)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

// Set 保存value的副本，调用方之后修改切片不影响缓存
func (m *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}
	m.items.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

func (m *MemoryCache) DeletePrefix(_ context.Context, prefix string) error {
	for key := range m.items.Items() {
		if strings.HasPrefix(key, prefix) {
			m.items.Delete(key)
		}
	}
	return nil
}

func (m *MemoryCache) Close() error {
	m.items.Flush()
	return nil
}
