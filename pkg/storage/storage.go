package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// ErrFileNotFound 对象不存在
var ErrFileNotFound = errors.New("file not found")

// FileInfo 导出文件的元数据
type FileInfo struct {
	Key      string    // 存储键，例如 articles/<id>/go-v3.md
	Name     string    // 键的最后一段
	Size     int64     // 字节数
	MimeType string    // 由扩展名推断
	ModTime  time.Time // 最后写入时间
}

// Storage 导出文件存储
// 键用"/"分隔，同一个键重复写入会覆盖旧内容
type Storage interface {
	Put(ctx context.Context, key string, r io.Reader) (FileInfo, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (FileInfo, error)
	Delete(ctx context.Context, key string) error

	// List 列出以prefix开头的对象，按键排序
	List(ctx context.Context, prefix string) ([]FileInfo, error)
}

// Config 存储配置
type Config struct {
	Type  string // local 或 minio
	Local LocalConfig
	Minio MinioConfig
}

// New 根据配置创建存储
func New(cfg Config) (Storage, error) {
	switch cfg.Type {
	case "", "local":
		return NewLocalStorage(cfg.Local)
	case "minio":
		return NewMinioStorage(cfg.Minio)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// ExportKey 文章导出文件的存储键
func ExportKey(articleID, filename string) string {
	return ExportPrefix(articleID) + path.Base(filename)
}

// ExportPrefix 文章全部导出文件的公共前缀
func ExportPrefix(articleID string) string {
	return "articles/" + articleID + "/"
}

// DeletePrefix 删除以prefix开头的全部对象，返回删除的数量
func DeletePrefix(ctx context.Context, s Storage, prefix string) (int, error) {
	files, err := s.List(ctx, prefix)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, f := range files {
		if err := s.Delete(ctx, f.Key); err != nil && !errors.Is(err, ErrFileNotFound) {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

// cleanKey 规范化存储键，拒绝空键和跳出根目录的键
func cleanKey(key string) (string, error) {
	cleaned := strings.TrimPrefix(path.Clean("/"+key), "/")
	if cleaned == "" || cleaned != strings.TrimPrefix(key, "/") {
		return "", fmt.Errorf("invalid storage key: %q", key)
	}
	return cleaned, nil
}

// mimeType 根据扩展名判断MIME类型
func mimeType(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".pdf":
		return "application/pdf"
	case ".md", ".markdown":
		return "text/markdown"
	case ".html", ".htm":
		return "text/html"
	case ".txt":
		return "text/plain"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
