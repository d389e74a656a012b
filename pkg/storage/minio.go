package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig MinIO存储配置
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// MinioStorage MinIO对象存储，键即对象名
type MinioStorage struct {
	client *minio.Client
	bucket string
}

// NewMinioStorage 创建MinIO存储，存储桶不存在时自动创建
func NewMinioStorage(cfg MinioConfig) (*MinioStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &MinioStorage{client: client, bucket: cfg.Bucket}, nil
}

// Put 上传对象，大小未知时由客户端分片上传
func (s *MinioStorage) Put(ctx context.Context, key string, r io.Reader) (FileInfo, error) {
	key, err := cleanKey(key)
	if err != nil {
		return FileInfo{}, err
	}

	info, err := s.client.PutObject(ctx, s.bucket, key, r, -1, minio.PutObjectOptions{
		ContentType: mimeType(key),
	})
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to upload %s: %w", key, err)
	}

	return FileInfo{
		Key:      key,
		Name:     path.Base(key),
		Size:     info.Size,
		MimeType: mimeType(key),
		ModTime:  info.LastModified,
	}, nil
}

// Get 下载对象，对象不存在时返回ErrFileNotFound
func (s *MinioStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if _, err := s.Stat(ctx, key); err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return obj, nil
}

// Stat 读取对象元数据
func (s *MinioStorage) Stat(ctx context.Context, key string) (FileInfo, error) {
	st, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return FileInfo{}, s.notFound(key, err)
	}
	return objectInfo(st), nil
}

// Delete 删除对象，S3删除不存在的对象不会报错，因此先检查
func (s *MinioStorage) Delete(ctx context.Context, key string) error {
	if _, err := s.Stat(ctx, key); err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// List 列出以prefix开头的对象
func (s *MinioStorage) List(ctx context.Context, prefix string) ([]FileInfo, error) {
	var files []FileInfo
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", obj.Err)
		}
		files = append(files, objectInfo(obj))
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Key < files[j].Key })
	return files, nil
}

func objectInfo(obj minio.ObjectInfo) FileInfo {
	return FileInfo{
		Key:      obj.Key,
		Name:     path.Base(obj.Key),
		Size:     obj.Size,
		MimeType: mimeType(obj.Key),
		ModTime:  obj.LastModified,
	}
}

func (s *MinioStorage) notFound(key string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("%w: %s", ErrFileNotFound, key)
	}
	return fmt.Errorf("failed to stat %s: %w", key, err)
}
