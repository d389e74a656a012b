package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, r io.ReadCloser) string {
	defer r.Close()
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(b)
}

// exerciseStorage 对任意存储实现执行相同的读写删流程
func exerciseStorage(t *testing.T, s Storage) {
	ctx := context.Background()
	key := ExportKey("article-1", "go-v3.md")
	content := "# History\n\nGo was announced in 2009.[1]"

	info, err := s.Put(ctx, key, strings.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, "articles/article-1/go-v3.md", info.Key)
	assert.Equal(t, "go-v3.md", info.Name)
	assert.Equal(t, int64(len(content)), info.Size)
	assert.Equal(t, "text/markdown", info.MimeType)

	reader, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, content, readAll(t, reader))

	// 同一个键再次写入覆盖旧内容
	_, err = s.Put(ctx, key, strings.NewReader("# History\n\nRewritten."))
	require.NoError(t, err)
	reader, err = s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "# History\n\nRewritten.", readAll(t, reader))

	_, err = s.Put(ctx, ExportKey("article-1", "go-v3.pdf"), strings.NewReader("%PDF-1.3"))
	require.NoError(t, err)
	_, err = s.Put(ctx, ExportKey("article-2", "rust-v1.md"), strings.NewReader("# Rust"))
	require.NoError(t, err)

	files, err := s.List(ctx, ExportPrefix("article-1"))
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "go-v3.md", files[0].Name)
	assert.Equal(t, "go-v3.pdf", files[1].Name)
	assert.Equal(t, "application/pdf", files[1].MimeType)

	deleted, err := DeletePrefix(ctx, s, ExportPrefix("article-1"))
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	_, err = s.Get(ctx, key)
	assert.ErrorIs(t, err, ErrFileNotFound)
	_, err = s.Stat(ctx, key)
	assert.ErrorIs(t, err, ErrFileNotFound)
	assert.ErrorIs(t, s.Delete(ctx, key), ErrFileNotFound)

	files, err = s.List(ctx, ExportPrefix("article-2"))
	require.NoError(t, err)
	assert.Len(t, files, 1, "其他文章的导出不受影响")
	require.NoError(t, s.Delete(ctx, files[0].Key))
}

func TestLocalStorage(t *testing.T) {
	root := t.TempDir()
	local, err := NewLocalStorage(LocalConfig{Path: root})
	require.NoError(t, err)

	t.Run("roundtrip", func(t *testing.T) {
		exerciseStorage(t, local)
	})

	t.Run("layout", func(t *testing.T) {
		ctx := context.Background()
		_, err := local.Put(ctx, "articles/a/go-v1.html", strings.NewReader("<h1>Go</h1>"))
		require.NoError(t, err)

		_, err = os.Stat(filepath.Join(root, "articles", "a", "go-v1.html"))
		assert.NoError(t, err, "键直接映射为相对路径")

		entries, err := os.ReadDir(filepath.Join(root, "articles", "a"))
		require.NoError(t, err)
		assert.Len(t, entries, 1, "临时文件应已被重命名")
	})

	t.Run("invalid keys", func(t *testing.T) {
		ctx := context.Background()
		for _, key := range []string{"", "../escape.md", "articles/../../x"} {
			_, err := local.Put(ctx, key, strings.NewReader("x"))
			assert.Error(t, err, key)
		}
	})
}

// TestMinioStorage 需要设置MINIO_TEST_ENDPOINT，例如 localhost:9000
func TestMinioStorage(t *testing.T) {
	endpoint := os.Getenv("MINIO_TEST_ENDPOINT")
	if endpoint == "" {
		t.Skip("MINIO_TEST_ENDPOINT not set, skipping MinIO tests")
	}

	minioStorage, err := NewMinioStorage(MinioConfig{
		Endpoint:  endpoint,
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "storm-article-test",
	})
	require.NoError(t, err)

	exerciseStorage(t, minioStorage)
}

func TestNew(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")

	s, err := New(Config{Type: "local", Local: LocalConfig{Path: dir}})
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, s)

	_, err = os.Stat(dir)
	assert.NoError(t, err, "存储目录应被创建")

	_, err = New(Config{Type: "ftp"})
	assert.Error(t, err)
}

func TestMimeType(t *testing.T) {
	assert.Equal(t, "application/pdf", mimeType("a.PDF"))
	assert.Equal(t, "text/markdown", mimeType("x/a.markdown"))
	assert.Equal(t, "application/octet-stream", mimeType("a.bin"))
}
