package middleware

import (
	"bytes"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var log = logrus.New()

// traceIDKey 追踪ID在gin上下文中的键
const traceIDKey = "TraceID"

// 初始化日志配置
func init() {
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
	})

	if os.Getenv("DEBUG") == "true" {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
}

// LogFileConfig 日志文件配置
type LogFileConfig struct {
	Path       string // 日志文件路径，为空时只输出到标准输出
	MaxSizeMB  int    // 单个文件最大大小
	MaxBackups int    // 保留的旧文件数量
	MaxAgeDays int    // 旧文件保留天数
}

// ConfigureLogger 设置日志级别和输出
// 配置了日志文件时同时输出到标准输出和按大小滚动的文件
func ConfigureLogger(level string, file LogFileConfig) *logrus.Logger {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	log.SetLevel(parsed)

	if file.Path != "" {
		log.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   file.Path,
			MaxSize:    file.MaxSizeMB,
			MaxBackups: file.MaxBackups,
			MaxAge:     file.MaxAgeDays,
			Compress:   true,
		}))
	}

	return log
}

// Logger 请求日志中间件
// 5xx记为错误，健康检查只在debug级别输出
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		entry := log.WithFields(logrus.Fields{
			FieldStatus:   status,
			FieldLatency:  time.Since(start).String(),
			FieldClientIP: c.ClientIP(),
			FieldMethod:   c.Request.Method,
			FieldPath:     path,
			FieldTraceID:  traceIDFrom(c),
		})
		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("HTTP request")
		case strings.HasSuffix(path, "/health"):
			entry.Debug("HTTP request")
		default:
			entry.Info("HTTP request")
		}
	}
}

// RequestBodyLog 请求体日志中间件
// 在DEBUG模式下记录请求体内容，multipart上传不记录
func RequestBodyLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		if log.IsLevelEnabled(logrus.DebugLevel) && c.ContentType() != "multipart/form-data" {
			var buf bytes.Buffer
			body, _ := io.ReadAll(io.TeeReader(c.Request.Body, &buf))
			c.Request.Body = io.NopCloser(&buf)

			if len(body) > 0 {
				log.WithFields(logrus.Fields{
					FieldMethod: c.Request.Method,
					FieldPath:   c.Request.URL.Path,
					"body":      string(body),
				}).Debug("Request body")
			}
		}

		c.Next()
	}
}

// SetTraceID 将追踪ID设置到上下文和响应头中
func SetTraceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader("X-Trace-ID")
		if traceID == "" {
			traceID = uuid.New().String()
		}

		c.Set(traceIDKey, traceID)
		c.Header("X-Trace-ID", traceID)

		c.Next()
	}
}

// 常用日志字段
const (
	FieldTraceID   = "trace_id"    // 追踪ID
	FieldArticleID = "article_id"  // 文章ID
	FieldPath      = "path"        // 请求路径
	FieldMethod    = "method"      // 请求方法
	FieldStatus    = "status_code" // 状态码
	FieldLatency   = "latency"     // 延迟时间
	FieldClientIP  = "client_ip"   // 客户端IP
	FieldError     = "error"       // 错误信息
)

// GetLogger 返回全局日志实例
func GetLogger() *logrus.Logger {
	return log
}
