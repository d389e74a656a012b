package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用程序配置结构体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Database DatabaseConfig `mapstructure:"database"`
	Article  ArticleConfig  `mapstructure:"article"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `mapstructure:"host"`                                     // 服务器主机
	Port int    `mapstructure:"port" validate:"min=1,max=65535"`          // 服务器端口
	Mode string `mapstructure:"mode" validate:"oneof=debug release test"` // 运行模式：debug 或 release
}

// StorageConfig 导出文件存储配置
type StorageConfig struct {
	Type      string `mapstructure:"type" validate:"oneof=local minio"` // 存储类型：local 或 minio
	Path      string `mapstructure:"path"`                              // 本地存储路径
	Bucket    string `mapstructure:"bucket"`                            // MinIO桶名称
	Endpoint  string `mapstructure:"endpoint"`                          // MinIO端点
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"` // 是否使用SSL
}

// LLMConfig 大语言模型配置
type LLMConfig struct {
	Provider    string  `mapstructure:"provider"`    // 提供商：tongyi
	Model       string  `mapstructure:"model"`       // 模型名称
	APIKey      string  `mapstructure:"api_key"`     // API密钥
	Endpoint    string  `mapstructure:"endpoint"`    // API端点
	MaxTokens   int     `mapstructure:"max_tokens"`  // 最大生成token数量
	Temperature float32 `mapstructure:"temperature"` // 采样温度
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Enable   bool   `mapstructure:"enable"`                             // 是否启用缓存
	Type     string `mapstructure:"type" validate:"oneof=memory redis"` // 缓存类型：memory 或 redis
	Address  string `mapstructure:"address"`                            // Redis地址
	Password string `mapstructure:"password"`                           // Redis密码
	DB       int    `mapstructure:"db"`                                 // Redis数据库
	TTL      int    `mapstructure:"ttl"`                                // 缓存TTL（秒）
}

// QueueConfig 任务队列配置
type QueueConfig struct {
	Enable        bool   `mapstructure:"enable"`                       // 是否启用任务队列
	Type          string `mapstructure:"type"`                         // 队列类型：redis
	RedisAddr     string `mapstructure:"redis_addr"`                   // Redis地址
	RedisPassword string `mapstructure:"redis_password"`               // Redis密码
	RedisDB       int    `mapstructure:"redis_db"`                     // Redis数据库编号
	Concurrency   int    `mapstructure:"concurrency" validate:"min=1"` // 任务处理并发数
	RetryLimit    int    `mapstructure:"retry_limit"`                  // 任务最大重试次数
	RetryDelay    int    `mapstructure:"retry_delay"`                  // 重试延迟(秒)
	TaskTimeout   int    `mapstructure:"task_timeout"`                 // 单个任务执行时限(秒)
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Type string `mapstructure:"type" validate:"eq=sqlite"` // 数据库类型: sqlite
	DSN  string `mapstructure:"dsn" validate:"required"`   // 数据源名称
}

// ArticleConfig 文章生成配置
type ArticleConfig struct {
	GenerateAttempts int `mapstructure:"generate_attempts" validate:"min=1"` // 生成调用的最大尝试次数
	RetryDelayMS     int `mapstructure:"retry_delay_ms"`                     // 生成重试的初始间隔(毫秒)
	MaxContextWords  int `mapstructure:"max_context_words"`                  // 提示词中文章上下文的最大单词数
	LeadMaxWords     int `mapstructure:"lead_max_words" validate:"min=1"`    // 导语最大单词数
	NormalizeWorkers int `mapstructure:"normalize_workers" validate:"min=1"` // 批量规范化的并发数
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=trace debug info warn warning error fatal panic"` // 日志级别
	File       string `mapstructure:"file"`                                                                   // 日志文件路径，为空时只输出到标准输出
	MaxSizeMB  int    `mapstructure:"max_size_mb"`                                                            // 单个日志文件最大大小
	MaxBackups int    `mapstructure:"max_backups"`                                                            // 保留的旧日志文件数量
	MaxAgeDays int    `mapstructure:"max_age_days"`                                                           // 旧日志保留天数
}

// Load 读取配置文件，.env 和环境变量可以覆盖文件中的值
// 文件不存在时按默认值生成一份，方便修改
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Warning: Failed to load .env file: %v", err)
	}
	if configPath == "" {
		configPath = "config.yaml"
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetConfigFile(configPath)
	// LLM_API_KEY 覆盖 llm.api_key
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil:
		log.Printf("Using config file: %s", v.ConfigFileUsed())
	case errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist):
		log.Printf("Warning: Config file not found at %s, writing defaults", configPath)
		writeDefaults(v, configPath)
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	for _, secret := range []*string{
		&cfg.LLM.APIKey,
		&cfg.Storage.AccessKey,
		&cfg.Storage.SecretKey,
		&cfg.Cache.Password,
		&cfg.Queue.RedisPassword,
	} {
		*secret = expandEnv(*secret)
	}
	return &cfg, nil
}

// Validate 检查取值范围，命令行参数覆盖之后调用
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func writeDefaults(v *viper.Viper, path string) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return
	}
	if err := v.WriteConfigAs(path); err != nil {
		log.Printf("Warning: Could not write default config to %s: %v", path, err)
	}
}

// expandEnv 展开 ${VAR}，环境变量未设置时保留原值
func expandEnv(value string) string {
	if !strings.HasPrefix(value, "${") || !strings.HasSuffix(value, "}") {
		return value
	}
	if env, ok := os.LookupEnv(value[2 : len(value)-1]); ok && env != "" {
		return env
	}
	return value
}

var defaults = map[string]any{
	"server.host": "0.0.0.0",
	"server.port": 8080,
	"server.mode": "debug",

	"storage.type":    "local",
	"storage.path":    "./data/exports",
	"storage.bucket":  "articles",
	"storage.use_ssl": false,

	"llm.provider":    "tongyi",
	"llm.model":       "qwen-turbo",
	"llm.max_tokens":  2048,
	"llm.temperature": 0.7,

	"cache.enable": true,
	"cache.type":   "memory",
	"cache.ttl":    3600,

	"queue.enable":       false,
	"queue.type":         "redis",
	"queue.redis_addr":   "localhost:6379",
	"queue.redis_db":     0,
	"queue.concurrency":  10,
	"queue.retry_limit":  3,
	"queue.retry_delay":  60,
	"queue.task_timeout": 600,

	"database.type": "sqlite",
	"database.dsn":  "data/articles.db",

	"article.generate_attempts": 3,
	"article.retry_delay_ms":    500,
	"article.max_context_words": 3000,
	"article.lead_max_words":    300,
	"article.normalize_workers": 4,

	"log.level":        "info",
	"log.max_size_mb":  100,
	"log.max_backups":  3,
	"log.max_age_days": 28,
}
