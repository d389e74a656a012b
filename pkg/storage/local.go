package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocalConfig 本地存储配置
type LocalConfig struct {
	Path string // 根目录
}

// LocalStorage 本地文件系统存储，键直接映射为根目录下的相对路径
type LocalStorage struct {
	root string
}

// NewLocalStorage 创建本地存储，根目录不存在时创建
func NewLocalStorage(cfg LocalConfig) (*LocalStorage, error) {
	root, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage path: %w", err)
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{root: root}, nil
}

func (s *LocalStorage) path(key string) (string, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(cleaned)), nil
}

// Put 先写临时文件再重命名，读者不会看到写了一半的文件
func (s *LocalStorage) Put(ctx context.Context, key string, r io.Reader) (FileInfo, error) {
	target, err := s.path(key)
	if err != nil {
		return FileInfo{}, err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return FileInfo{}, fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return FileInfo{}, fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return FileInfo{}, fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return FileInfo{}, fmt.Errorf("failed to store file: %w", err)
	}

	return s.Stat(ctx, key)
}

// Get 打开对象
func (s *LocalStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, notFound(key, err)
	}
	return f, nil
}

// Stat 读取对象元数据
func (s *LocalStorage) Stat(_ context.Context, key string) (FileInfo, error) {
	p, err := s.path(key)
	if err != nil {
		return FileInfo{}, err
	}
	st, err := os.Stat(p)
	if err != nil {
		return FileInfo{}, notFound(key, err)
	}
	if st.IsDir() {
		return FileInfo{}, fmt.Errorf("%w: %s", ErrFileNotFound, key)
	}
	return s.fileInfo(p, st), nil
}

// Delete 删除对象
func (s *LocalStorage) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		return notFound(key, err)
	}
	return nil
}

// List 遍历根目录，返回键以prefix开头的文件
func (s *LocalStorage) List(_ context.Context, prefix string) ([]FileInfo, error) {
	var files []FileInfo
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".upload-") {
			return nil
		}
		st, err := d.Info()
		if err != nil {
			return err
		}
		if info := s.fileInfo(p, st); strings.HasPrefix(info.Key, prefix) {
			files = append(files, info)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Key < files[j].Key })
	return files, nil
}

func (s *LocalStorage) fileInfo(p string, st fs.FileInfo) FileInfo {
	rel, _ := filepath.Rel(s.root, p)
	key := filepath.ToSlash(rel)
	return FileInfo{
		Key:      key,
		Name:     st.Name(),
		Size:     st.Size(),
		MimeType: mimeType(key),
		ModTime:  st.ModTime(),
	}
}

func notFound(key string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrFileNotFound, key)
	}
	return err
}
