package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fyerfyer/storm-article/api/handler"
	"github.com/fyerfyer/storm-article/api/model"
	"github.com/fyerfyer/storm-article/internal/cache"
	"github.com/fyerfyer/storm-article/internal/database"
	"github.com/fyerfyer/storm-article/internal/llm"
	"github.com/fyerfyer/storm-article/internal/repository"
	"github.com/fyerfyer/storm-article/internal/services"
	"github.com/fyerfyer/storm-article/pkg/storage"
	"github.com/fyerfyer/storm-article/pkg/taskqueue"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// 测试环境配置
type testEnv struct {
	Router    *gin.Engine
	LLMClient *llm.MockClient
	Storage   storage.Storage
	Service   *services.ArticleService
}

type envOptions struct {
	withQueue bool
}

// 创建测试环境
func setupTestEnv(t *testing.T, opts envOptions) *testEnv {
	gin.SetMode(gin.TestMode)

	dbName := fmt.Sprintf("file:api_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	fileStorage, err := storage.NewLocalStorage(storage.LocalConfig{Path: t.TempDir()})
	require.NoError(t, err)

	cacheService, err := cache.NewCache(cache.Config{
		Type:            "memory",
		DefaultTTL:      time.Hour,
		CleanupInterval: time.Minute,
	})
	require.NoError(t, err)

	mockLLM := llm.NewMockClient(t)
	mockLLM.EXPECT().Name().Return("mock-llm").Maybe()

	serviceOpts := []services.ArticleOption{
		services.WithCache(cacheService),
		services.WithStorage(fileStorage),
		services.WithRetryDelay(0),
	}

	if opts.withQueue {
		mr, err := miniredis.Run()
		require.NoError(t, err)
		t.Cleanup(mr.Close)

		queue, err := taskqueue.NewRedisQueue(&taskqueue.Config{
			RedisAddr:   mr.Addr(),
			Concurrency: 1,
			RetryLimit:  1,
			RetryDelay:  time.Second,
		})
		require.NoError(t, err)
		t.Cleanup(func() { queue.Close() })
		serviceOpts = append(serviceOpts, services.WithTaskQueue(queue))
	}

	service := services.NewArticleService(repository.NewArticleRepositoryWithDB(db), mockLLM, serviceOpts...)
	router := SetupRouter(handler.NewArticleHandler(service), handler.NewTaskHandler(service))

	return &testEnv{
		Router:    router,
		LLMClient: mockLLM,
		Storage:   fileStorage,
		Service:   service,
	}
}

// apiResponse 通用响应，Data保留原始JSON
type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	TraceID string          `json:"trace_id"`
}

func (env *testEnv) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, apiResponse) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	env.Router.ServeHTTP(w, req)

	var resp apiResponse
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

type articleData struct {
	ID            string `json:"id"`
	Topic         string `json:"topic"`
	Status        string `json:"status"`
	Version       int    `json:"version"`
	SectionCount  int    `json:"section_count"`
	CitationCount int    `json:"citation_count"`
	Content       string `json:"content"`
	Outline       string `json:"outline"`
	References    []struct {
		Index int    `json:"index"`
		URL   string `json:"url"`
	} `json:"references"`
}

func decodeArticle(t *testing.T, resp apiResponse) articleData {
	var a articleData
	require.NoError(t, json.Unmarshal(resp.Data, &a))
	return a
}

func (env *testEnv) createArticle(t *testing.T, topic string) articleData {
	w, resp := env.do(t, http.MethodPost, "/api/articles", map[string]string{"topic": topic})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeArticle(t, resp)
}

func TestHealthAndTraceID(t *testing.T) {
	env := setupTestEnv(t, envOptions{})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Trace-ID", "trace-123")
	w := httptest.NewRecorder()
	env.Router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "trace-123", w.Header().Get("X-Trace-ID"))
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	// 预检请求不需要对应的OPTIONS路由
	req = httptest.NewRequest(http.MethodOptions, "/api/articles", nil)
	w = httptest.NewRecorder()
	env.Router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PUT")
}

func TestArticleCRUD(t *testing.T) {
	env := setupTestEnv(t, envOptions{})

	a := env.createArticle(t, "Go programming language")
	assert.Equal(t, "empty", a.Status)

	t.Run("blank topic", func(t *testing.T) {
		w, resp := env.do(t, http.MethodPost, "/api/articles", map[string]string{"topic": "   "})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, http.StatusBadRequest, resp.Code)
		assert.NotEmpty(t, resp.TraceID)
	})

	t.Run("get", func(t *testing.T) {
		w, resp := env.do(t, http.MethodGet, "/api/articles/"+a.ID, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, a.ID, decodeArticle(t, resp).ID)
	})

	t.Run("list", func(t *testing.T) {
		env.createArticle(t, "Rust")
		w, resp := env.do(t, http.MethodGet, "/api/articles?topic=Go&page_size=5", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var list struct {
			Total    int64         `json:"total"`
			PageSize int           `json:"page_size"`
			Articles []articleData `json:"articles"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &list))
		assert.Equal(t, int64(1), list.Total)
		assert.Equal(t, 5, list.PageSize)
		require.Len(t, list.Articles, 1)
		assert.Equal(t, a.ID, list.Articles[0].ID)

		w, _ = env.do(t, http.MethodGet, "/api/articles?status=unknown", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("delete", func(t *testing.T) {
		w, _ := env.do(t, http.MethodDelete, "/api/articles/"+a.ID, nil)
		assert.Equal(t, http.StatusOK, w.Code)

		w, resp := env.do(t, http.MethodGet, "/api/articles/"+a.ID, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, http.StatusNotFound, resp.Code)
	})
}

func TestSectionEditing(t *testing.T) {
	env := setupTestEnv(t, envOptions{})
	a := env.createArticle(t, "Go")

	w, resp := env.do(t, http.MethodPut, "/api/articles/"+a.ID+"/sections", map[string]interface{}{
		"text": "# History\nGo was announced in 2009.[4]\n\n# Design\nGo is simple.[2, 4]",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	a = decodeArticle(t, resp)
	assert.Equal(t, "drafted", a.Status)
	assert.Equal(t, 2, a.SectionCount)
	assert.Equal(t, "# History\n# Design", a.Outline)
	assert.Contains(t, a.Content, "Go is simple.[1][2]")

	w, resp = env.do(t, http.MethodPost, "/api/articles/"+a.ID+"/sections/insert", map[string]interface{}{
		"parent": []string{"Design"},
		"title":  "Concurrency",
		"text":   "Goroutines are cheap.",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "# History\n# Design\n## Concurrency", decodeArticle(t, resp).Outline)

	w, _ = env.do(t, http.MethodPost, "/api/articles/"+a.ID+"/sections/insert", map[string]interface{}{
		"parent": []string{"Missing"},
		"title":  "Child",
		"text":   "Text.",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, resp = env.do(t, http.MethodDelete, "/api/articles/"+a.ID+"/sections", map[string]interface{}{
		"path": []string{"History"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "# Design\n## Concurrency", decodeArticle(t, resp).Outline)

	w, _ = env.do(t, http.MethodDelete, "/api/articles/"+a.ID+"/sections", map[string]interface{}{
		"path": []string{},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = env.do(t, http.MethodPut, "/api/articles/"+a.ID+"/outline", map[string]interface{}{
		"outline": "# Design\n## Concurrency\n## Types\n# See also",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "# Design\n## Concurrency\n## Types", decodeArticle(t, resp).Outline)

	t.Run("revisions", func(t *testing.T) {
		w, resp := env.do(t, http.MethodGet, "/api/articles/"+a.ID+"/revisions", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var list struct {
			Revisions []struct {
				Version int    `json:"version"`
				Stage   string `json:"stage"`
			} `json:"revisions"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &list))
		require.Len(t, list.Revisions, 4)
		assert.Equal(t, "outline", list.Revisions[3].Stage)

		w, resp = env.do(t, http.MethodGet, "/api/articles/"+a.ID+"/revisions/1", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, string(resp.Data), "# History")

		w, _ = env.do(t, http.MethodGet, "/api/articles/"+a.ID+"/revisions/99", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestReferencesAndExport(t *testing.T) {
	env := setupTestEnv(t, envOptions{})
	a := env.createArticle(t, "Go Language")

	w, _ := env.do(t, http.MethodPut, "/api/articles/"+a.ID+"/sections", map[string]interface{}{
		"text": "# History\nFirst.[2] Second.[1] Third.[3]\n\n# Empty",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = env.do(t, http.MethodPut, "/api/articles/"+a.ID+"/references", map[string]interface{}{
		"references": []map[string]string{{"url": "not a url"}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp := env.do(t, http.MethodPut, "/api/articles/"+a.ID+"/references", map[string]interface{}{
		"references": []map[string]string{
			{"url": "https://a.example", "title": "A"},
			{"url": "https://b.example", "title": "B"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	a = decodeArticle(t, resp)
	assert.Contains(t, a.Content, "First.[1] Second.[2] Third.")
	require.Len(t, a.References, 2)

	w, resp = env.do(t, http.MethodPost, "/api/articles/"+a.ID+"/normalize", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "# History", decodeArticle(t, resp).Outline)

	t.Run("markdown", func(t *testing.T) {
		w, _ := env.do(t, http.MethodGet, "/api/articles/"+a.ID+"/export?format=md", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/markdown")
		assert.NotEmpty(t, w.Header().Get("X-Article-Version"))
		assert.Contains(t, w.Body.String(), "# References")
		assert.Contains(t, w.Body.String(), "[1] A. https://a.example")
	})

	t.Run("pdf", func(t *testing.T) {
		w, _ := env.do(t, http.MethodGet, "/api/articles/"+a.ID+"/export?format=pdf", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
		assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))
	})

	t.Run("save", func(t *testing.T) {
		w, resp := env.do(t, http.MethodGet, "/api/articles/"+a.ID+"/export?format=html&save=true", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var info model.ExportResponse
		require.NoError(t, json.Unmarshal(resp.Data, &info))
		assert.True(t, strings.HasPrefix(info.FileName, "go-language-v"))
		assert.Equal(t, storage.ExportKey(a.ID, info.FileName), info.Key)
		_, err := env.Storage.Stat(context.Background(), info.Key)
		require.NoError(t, err)

		w, resp = env.do(t, http.MethodGet, "/api/articles/"+a.ID+"/exports", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var listed struct {
			Exports []model.ExportResponse `json:"exports"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &listed))
		require.Len(t, listed.Exports, 1)
		assert.Equal(t, info.FileName, listed.Exports[0].FileName)

		w, _ = env.do(t, http.MethodGet, "/api/articles/"+a.ID+"/exports/"+info.FileName, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/html", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), info.FileName)
		assert.Contains(t, w.Body.String(), "<h1")

		w, _ = env.do(t, http.MethodGet, "/api/articles/"+a.ID+"/exports/missing.pdf", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("unsupported format", func(t *testing.T) {
		w, _ := env.do(t, http.MethodGet, "/api/articles/"+a.ID+"/export?format=docx", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestImportFile(t *testing.T) {
	env := setupTestEnv(t, envOptions{})
	a := env.createArticle(t, "Go")

	upload := func(filename, content string) *httptest.ResponseRecorder {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
		require.NoError(t, writer.WriteField("trim_children", "false"))
		require.NoError(t, writer.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/articles/"+a.ID+"/import", body)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		w := httptest.NewRecorder()
		env.Router.ServeHTTP(w, req)
		return w
	}

	w := upload("notes.md", "# Tooling\nThe go command builds packages.")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "Tooling")

	w = upload("notes.docx", "binary")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGeneration(t *testing.T) {
	env := setupTestEnv(t, envOptions{})
	a := env.createArticle(t, "Go")

	env.LLMClient.EXPECT().Generate(mock.Anything, mock.Anything).
		Return(&llm.Response{Text: "# History\nGo was designed at Google. It was"}, nil).Once()

	w, resp := env.do(t, http.MethodPost, "/api/articles/"+a.ID+"/draft", map[string]interface{}{
		"title": "History",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	a = decodeArticle(t, resp)
	assert.Contains(t, a.Content, "Go was designed at Google.")
	assert.NotContains(t, a.Content, "It was")

	w, _ = env.do(t, http.MethodPost, "/api/articles/"+a.ID+"/draft", map[string]interface{}{
		"title": "History",
		"async": true,
	})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	env.LLMClient.EXPECT().Generate(mock.Anything, mock.Anything).
		Return(&llm.Response{Text: "and the"}, nil).Once()
	w, _ = env.do(t, http.MethodPost, "/api/articles/"+a.ID+"/lead", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	env.LLMClient.EXPECT().Generate(mock.Anything, mock.Anything).
		Return(nil, llm.NewLLMError(llm.ErrCodeInvalidAPIKey, "invalid key")).Once()
	w, _ = env.do(t, http.MethodPost, "/api/articles/"+a.ID+"/polish", map[string]interface{}{
		"remove_duplicate": true,
	})
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestAsyncTasks(t *testing.T) {
	env := setupTestEnv(t, envOptions{withQueue: true})
	a := env.createArticle(t, "Go")

	w, resp := env.do(t, http.MethodPost, "/api/articles/"+a.ID+"/draft", map[string]interface{}{
		"title": "History",
		"async": true,
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var accepted struct {
		TaskID string `json:"task_id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &accepted))
	require.NotEmpty(t, accepted.TaskID)
	assert.Equal(t, "pending", accepted.Status)

	w, resp = env.do(t, http.MethodGet, "/api/tasks/"+accepted.TaskID, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, string(resp.Data), `"article:draft"`)

	w, resp = env.do(t, http.MethodGet, "/api/articles/"+a.ID+"/tasks", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(resp.Data), accepted.TaskID)

	w, _ = env.do(t, http.MethodGet, "/api/tasks/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
