package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/fyerfyer/storm-article/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSqliteDSN(t *testing.T) {
	assert.Equal(t, "data/a.db?_journal_mode=WAL&_busy_timeout=5000", sqliteDSN("data/a.db", 5*time.Second))
	assert.Equal(t, "data/a.db?_journal_mode=WAL", sqliteDSN("data/a.db", 0))
	assert.Equal(t, ":memory:", sqliteDSN(":memory:", time.Second))
	assert.Equal(t, "file:x?mode=memory", sqliteDSN("file:x?mode=memory", time.Second))
	assert.Equal(t, "a.db?cache=shared", sqliteDSN("a.db?cache=shared", time.Second))
}

func TestSetup(t *testing.T) {
	t.Cleanup(func() {
		Close()
		DB = nil
	})

	cfg := DefaultConfig()
	cfg.DSN = filepath.Join(t.TempDir(), "nested", "articles.db")
	require.NoError(t, Setup(cfg, logrus.New()))

	db := MustDB()
	assert.True(t, db.Migrator().HasTable(&models.Article{}))
	assert.True(t, db.Migrator().HasTable(&models.ArticleRevision{}))

	var mode string
	require.NoError(t, db.Raw("PRAGMA journal_mode").Scan(&mode).Error)
	assert.Equal(t, "wal", mode)
}

func TestSetupUnsupported(t *testing.T) {
	err := Setup(&Config{Type: "postgres", DSN: "x"}, logrus.New())
	assert.ErrorContains(t, err, "unsupported database type")
}
