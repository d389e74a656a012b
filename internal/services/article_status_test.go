package services

import (
	"context"
	"sync"
	"testing"

	"github.com/fyerfyer/storm-article/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArticleStatusManager_Transitions(t *testing.T) {
	repo := setupTestRepo(t)
	manager := NewArticleStatusManager(repo, logrus.New())
	ctx := context.Background()

	a := &models.Article{ID: "status-1", Topic: "Go", Status: models.ArticleStatusEmpty}
	require.NoError(t, repo.Create(a))

	require.NoError(t, manager.MarkAsDrafting(ctx, a.ID))
	status, err := manager.GetStatus(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ArticleStatusDrafting, status)

	require.NoError(t, manager.MarkAsFailed(ctx, a.ID, "model unavailable"))
	failed, err := repo.GetByID(a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ArticleStatusFailed, failed.Status)
	assert.Equal(t, "model unavailable", failed.Error)

	// 失败后可以重新生成，错误信息被清除
	require.NoError(t, manager.MarkAsDrafting(ctx, a.ID))
	retried, err := repo.GetByID(a.ID)
	require.NoError(t, err)
	assert.Empty(t, retried.Error)

	assert.ErrorIs(t, manager.MarkAsDrafting(ctx, "missing"), models.ErrArticleNotFound)
}

func TestArticleStatusManager_ValidateStateTransition(t *testing.T) {
	manager := NewArticleStatusManager(nil, nil)

	tests := []struct {
		from, to models.ArticleStatus
		valid    bool
	}{
		{models.ArticleStatusEmpty, models.ArticleStatusDrafting, true},
		{models.ArticleStatusDrafting, models.ArticleStatusDrafting, true},
		{models.ArticleStatusDrafted, models.ArticleStatusPolished, true},
		{models.ArticleStatusFailed, models.ArticleStatusDrafting, true},
		{models.ArticleStatusEmpty, models.ArticleStatusPolished, false},
		{models.ArticleStatusFailed, models.ArticleStatusPolished, true},
	}

	for _, tt := range tests {
		err := manager.ValidateStateTransition(tt.from, tt.to)
		if tt.valid {
			assert.NoError(t, err, "%s -> %s", tt.from, tt.to)
		} else {
			assert.ErrorIs(t, err, models.ErrInvalidArticleStatus, "%s -> %s", tt.from, tt.to)
		}
	}
}

func TestKeyedMutex(t *testing.T) {
	locks := newKeyedMutex()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		running = map[string]int{}
		overlap bool
	)

	for i := 0; i < 20; i++ {
		key := []string{"a", "b"}[i%2]
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock(key)
			defer unlock()

			mu.Lock()
			running[key]++
			if running[key] > 1 {
				overlap = true
			}
			mu.Unlock()

			mu.Lock()
			running[key]--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.False(t, overlap)
	assert.Equal(t, 0, locks.size())
}
