package cache

import (
	"context"
	"fmt"
	"time"
)

// Cache 渲染结果缓存
// 键包含文章ID和版本号，文章修改后按文章前缀整体失效
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set ttl为0时使用默认过期时间
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// DeletePrefix 删除以prefix开头的所有键
	DeletePrefix(ctx context.Context, prefix string) error

	Close() error
}

// Config 缓存配置
type Config struct {
	Type            string // memory 或 redis
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	KeyPrefix       string // Redis键的公共前缀，多个服务共用一个库时区分各自的键
	DefaultTTL      time.Duration
	CleanupInterval time.Duration // 内存缓存清理过期项的间隔
}

// DefaultConfig 返回默认缓存配置
func DefaultConfig() Config {
	return Config{
		Type:            "memory",
		KeyPrefix:       "storm:",
		DefaultTTL:      time.Hour,
		CleanupInterval: 10 * time.Minute,
	}
}

// NewCache 按类型创建缓存，未知类型使用内存缓存
func NewCache(config Config) (Cache, error) {
	switch config.Type {
	case "redis":
		return NewRedisCache(config)
	default:
		return NewMemoryCache(config)
	}
}

// ArticleKey 文章某个版本某种格式的渲染结果
func ArticleKey(articleID string, version int, format string) string {
	return fmt.Sprintf("%sv%d:%s", ArticlePrefix(articleID), version, format)
}

// ArticlePrefix 文章全部渲染结果的公共前缀
func ArticlePrefix(articleID string) string {
	return "article:" + articleID + ":"
}
