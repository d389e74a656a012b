package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fyerfyer/storm-article/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB 全局数据库连接
var DB *gorm.DB

// Config 数据库配置
type Config struct {
	Type         string // 目前只支持sqlite
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
	BusyTimeout  time.Duration // SQLite写锁等待时间，API和worker会同时写文章
}

// DefaultConfig 返回默认数据库配置
func DefaultConfig() *Config {
	return &Config{
		Type:         "sqlite",
		DSN:          "data/articles.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		MaxLifetime:  time.Hour,
		BusyTimeout:  5 * time.Second,
	}
}

// Setup 打开数据库、配置连接池并迁移文章表
func Setup(cfg *Config, log *logrus.Logger) error {
	if cfg.Type != "sqlite" {
		return fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
	if err := ensureDir(cfg.DSN); err != nil {
		return err
	}

	db, err := gorm.Open(sqlite.Open(sqliteDSN(cfg.DSN, cfg.BusyTimeout)), &gorm.Config{
		Logger: logger.New(&logrusWriter{log}, logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.MaxLifetime)
	}

	if err := Migrate(db); err != nil {
		sqlDB.Close()
		return fmt.Errorf("failed to migrate articles: %w", err)
	}

	DB = db
	log.WithField("dsn", cfg.DSN).Info("Article database ready")
	return nil
}

// MustDB 返回全局数据库连接，未初始化时panic
func MustDB() *gorm.DB {
	if DB == nil {
		panic("database not initialized, call database.Setup first")
	}
	return DB
}

// Close 关闭全局数据库连接
func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}
	return sqlDB.Close()
}

// Migrate 迁移文章和修订历史表，测试中用于初始化内存数据库
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Article{},
		&models.ArticleRevision{},
	)
}

// isMemoryDSN 内存数据库或URI形式的DSN不做任何改写
func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || strings.HasPrefix(dsn, "file:")
}

// sqliteDSN 为文件数据库开启WAL并设置写锁等待时间，已带参数的DSN保持不变
func sqliteDSN(dsn string, busyTimeout time.Duration) string {
	if isMemoryDSN(dsn) || strings.Contains(dsn, "?") {
		return dsn
	}
	params := "_journal_mode=WAL"
	if busyTimeout > 0 {
		params += fmt.Sprintf("&_busy_timeout=%d", busyTimeout.Milliseconds())
	}
	return dsn + "?" + params
}

// ensureDir 创建SQLite文件所在目录
func ensureDir(dsn string) error {
	if isMemoryDSN(dsn) {
		return nil
	}
	dir := filepath.Dir(dsn)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	return nil
}

// logrusWriter 把GORM日志转发到logrus
type logrusWriter struct {
	logger *logrus.Logger
}

// Printf GORM只输出慢查询和错误，统一记为Warn
func (w *logrusWriter) Printf(format string, args ...interface{}) {
	w.logger.WithField("component", "gorm").Warnf(format, args...)
}
