package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fyerfyer/storm-article/internal/database"
	"github.com/fyerfyer/storm-article/internal/models"
	"github.com/fyerfyer/storm-article/pkg/taskqueue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) (*gorm.DB, func()) {
	// 使用唯一的内存数据库标识符
	dbName := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{})
	require.NoError(t, err, "Failed to open in-memory database")

	require.NoError(t, database.Migrate(db), "Failed to run migrations")

	originalDB := database.DB
	database.DB = db

	cleanup := func() {
		database.DB = originalDB
	}

	return db, cleanup
}

func newTestArticle(id, topic string) *models.Article {
	return &models.Article{
		ID:     id,
		Topic:  topic,
		Status: models.ArticleStatusEmpty,
	}
}

func TestArticleRepository_Create(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewArticleRepository()

	article := newTestArticle("article-1", "Go programming language")
	require.NoError(t, article.SetReferences([]models.Reference{{Index: 1, URL: "https://go.dev"}}))

	err := repo.Create(article)
	assert.NoError(t, err, "Article creation should succeed")
	assert.False(t, article.CreatedAt.IsZero(), "CreatedAt should be filled by hook")

	saved, err := repo.GetByID(article.ID)
	require.NoError(t, err)
	assert.Equal(t, article.Topic, saved.Topic)
	assert.Equal(t, models.ArticleStatusEmpty, saved.Status)

	refs, err := saved.GetReferences()
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "https://go.dev", refs[0].URL)

	assert.Error(t, repo.Create(&models.Article{Topic: "no id"}), "Empty ID should be rejected")
}

func TestArticleRepository_Update(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewArticleRepository()
	article := newTestArticle("article-2", "Rust")
	require.NoError(t, repo.Create(article))

	article.Content = "# History\n\nRust began at Mozilla [1]."
	article.Version = 1
	article.SectionCount = 1
	article.Status = models.ArticleStatusDrafted
	require.NoError(t, repo.Update(article))

	updated, err := repo.GetByID(article.ID)
	require.NoError(t, err)
	assert.Equal(t, article.Content, updated.Content)
	assert.Equal(t, 1, updated.Version)
	assert.Equal(t, models.ArticleStatusDrafted, updated.Status)
}

func TestArticleRepository_GetByID(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewArticleRepository()

	article, err := repo.GetByID("non-existing")
	assert.Nil(t, article)
	assert.True(t, errors.Is(err, models.ErrArticleNotFound), "Missing article should wrap ErrArticleNotFound")
}

func TestArticleRepository_List(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewArticleRepositoryWithDB(db)

	for i, topic := range []string{"Go language", "Rust language", "Lake Baikal"} {
		a := newTestArticle(fmt.Sprintf("article-list-%d", i), topic)
		if i == 2 {
			a.Status = models.ArticleStatusDrafted
		}
		require.NoError(t, repo.Create(a))
		time.Sleep(2 * time.Millisecond)
	}

	all, total, err := repo.List(0, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, all, 3)
	assert.Equal(t, "article-list-2", all[0].ID, "Newest article should be first")

	page, total, err := repo.List(1, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page, 1)
	assert.Equal(t, "article-list-1", page[0].ID)

	byTopic, total, err := repo.List(0, 10, map[string]interface{}{"topic": "language"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, byTopic, 2)

	byStatus, total, err := repo.List(0, 10, map[string]interface{}{"status": models.ArticleStatusDrafted})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "Lake Baikal", byStatus[0].Topic)
}

func TestArticleRepository_UpdateStatus(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewArticleRepository()
	require.NoError(t, repo.Create(newTestArticle("article-status", "Go")))

	require.NoError(t, repo.UpdateStatus("article-status", models.ArticleStatusFailed, "llm timeout"))
	article, err := repo.GetByID("article-status")
	require.NoError(t, err)
	assert.Equal(t, models.ArticleStatusFailed, article.Status)
	assert.Equal(t, "llm timeout", article.Error)

	require.NoError(t, repo.UpdateStatus("article-status", models.ArticleStatusDrafted, ""))
	article, err = repo.GetByID("article-status")
	require.NoError(t, err)
	assert.Empty(t, article.Error, "Successful status should clear the error")

	err = repo.UpdateStatus("missing", models.ArticleStatusDrafted, "")
	assert.True(t, errors.Is(err, models.ErrArticleNotFound))
}

func TestArticleRepository_Revisions(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewArticleRepository()
	require.NoError(t, repo.Create(newTestArticle("article-rev", "Go")))

	require.NoError(t, repo.SaveRevision(&models.ArticleRevision{ArticleID: "article-rev", Version: 2, Stage: models.StagePolish, Content: "v2"}))
	require.NoError(t, repo.SaveRevision(&models.ArticleRevision{ArticleID: "article-rev", Version: 1, Stage: models.StageDraft, Content: "v1"}))
	assert.Error(t, repo.SaveRevision(&models.ArticleRevision{Version: 3}))

	revisions, err := repo.ListRevisions("article-rev")
	require.NoError(t, err)
	require.Len(t, revisions, 2)
	assert.Equal(t, 1, revisions[0].Version)
	assert.Equal(t, models.StageDraft, revisions[0].Stage)
	assert.Equal(t, 2, revisions[1].Version)

	rev, err := repo.GetRevision("article-rev", 2)
	require.NoError(t, err)
	assert.Equal(t, "v2", rev.Content)

	_, err = repo.GetRevision("article-rev", 9)
	assert.True(t, errors.Is(err, models.ErrRevisionNotFound))
}

func TestArticleRepository_Delete(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	queue, err := taskqueue.NewRedisQueue(&taskqueue.Config{RedisAddr: mr.Addr()})
	require.NoError(t, err)
	defer queue.Close()

	repo := NewArticleRepositoryWithQueue(db, queue)
	require.NoError(t, repo.Create(newTestArticle("article-del", "Go")))
	require.NoError(t, repo.SaveRevision(&models.ArticleRevision{ArticleID: "article-del", Version: 1, Stage: models.StageDraft}))

	ctx := context.Background()
	taskID, err := queue.Enqueue(ctx, taskqueue.TaskArticleLead, "article-del", &taskqueue.LeadPayload{})
	require.NoError(t, err)

	require.NoError(t, repo.Delete("article-del"))

	_, err = repo.GetByID("article-del")
	assert.True(t, errors.Is(err, models.ErrArticleNotFound))

	revisions, err := repo.ListRevisions("article-del")
	require.NoError(t, err)
	assert.Empty(t, revisions)

	_, err = queue.GetTask(ctx, taskID)
	assert.Equal(t, taskqueue.ErrTaskNotFound, err)

	err = repo.Delete("article-del")
	assert.True(t, errors.Is(err, models.ErrArticleNotFound), "Deleting twice should report not found")
}
