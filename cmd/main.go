package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fyerfyer/storm-article/api"
	"github.com/fyerfyer/storm-article/api/handler"
	"github.com/fyerfyer/storm-article/api/middleware"
	appconfig "github.com/fyerfyer/storm-article/config"
	"github.com/fyerfyer/storm-article/internal/cache"
	"github.com/fyerfyer/storm-article/internal/database"
	"github.com/fyerfyer/storm-article/internal/llm"
	"github.com/fyerfyer/storm-article/internal/repository"
	"github.com/fyerfyer/storm-article/internal/services"
	"github.com/fyerfyer/storm-article/pkg/storage"
	"github.com/fyerfyer/storm-article/pkg/taskqueue"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// 命令行选项，非零值覆盖配置文件
type options struct {
	ConfigFile   string        // 配置文件路径
	Port         int           // 服务端口
	Mode         string        // 运行模式 (debug/release)
	LogLevel     string        // 日志级别
	EnableQueue  bool          // 强制启用任务队列
	ReadTimeout  time.Duration // 读取超时
	WriteTimeout time.Duration // 写入超时
}

func main() {
	opts := parseFlags()

	cfg, err := appconfig.Load(opts.ConfigFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	applyFlags(cfg, opts)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	gin.SetMode(cfg.Server.Mode)

	logger := middleware.ConfigureLogger(cfg.Log.Level, middleware.LogFileConfig{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	logger.Info("Starting article builder...")

	dbConfig := database.DefaultConfig()
	dbConfig.Type = cfg.Database.Type
	dbConfig.DSN = cfg.Database.DSN
	if err := database.Setup(dbConfig, logger); err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	exportStorage, err := setupStorage(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}

	llmClient, err := setupLLM(cfg)
	if err != nil {
		// 没有大模型时仍可以编辑、导入和导出
		logger.WithError(err).Warn("LLM client disabled, generation endpoints will return 503")
	}

	serviceOpts := []services.ArticleOption{
		services.WithLogger(logger),
		services.WithStorage(exportStorage),
		services.WithGenerateAttempts(cfg.Article.GenerateAttempts),
		services.WithRetryDelay(time.Duration(cfg.Article.RetryDelayMS) * time.Millisecond),
		services.WithMaxContextWords(cfg.Article.MaxContextWords),
		services.WithLeadMaxWords(cfg.Article.LeadMaxWords),
		services.WithNormalizeWorkers(cfg.Article.NormalizeWorkers),
		services.WithCacheTTL(time.Duration(cfg.Cache.TTL) * time.Second),
	}

	if cfg.Cache.Enable {
		renderCache, err := setupCache(cfg)
		if err != nil {
			logger.Fatalf("Failed to initialize cache: %v", err)
		}
		defer renderCache.Close()
		serviceOpts = append(serviceOpts, services.WithCache(renderCache))
	}

	var (
		queue  *taskqueue.RedisQueue
		worker *taskqueue.RedisWorker
		repo   repository.ArticleRepository
	)
	if cfg.Queue.Enable {
		queue, err = setupTaskQueue(cfg, logger)
		if err != nil {
			logger.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer queue.Close()

		repo = repository.NewArticleRepositoryWithQueue(database.MustDB(), queue)
		serviceOpts = append(serviceOpts, services.WithTaskQueue(queue))
		logger.Info("Task queue initialized successfully")
	} else {
		repo = repository.NewArticleRepository()
	}

	articleService := services.NewArticleService(repo, llmClient, serviceOpts...)

	if queue != nil {
		worker = taskqueue.NewRedisWorker(queue, nil)
		worker.RegisterAll(services.NewArticleTaskHandler(articleService))
		if err := worker.Start(); err != nil {
			logger.Fatalf("Failed to start task worker: %v", err)
		}
		logger.Info("Task worker started")
	}

	router := api.SetupRouter(
		handler.NewArticleHandler(articleService),
		handler.NewTaskHandler(articleService),
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}

	go func() {
		logger.Infof("Server is running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}
	if worker != nil {
		worker.Stop()
	}

	logger.Info("Server exited")
}

func parseFlags() options {
	opts := options{}

	flag.StringVar(&opts.ConfigFile, "config", "config.yaml", "Path to config file")
	flag.IntVar(&opts.Port, "port", 0, "Server port, overrides server.port")
	flag.StringVar(&opts.Mode, "mode", "", "Run mode (debug/release), overrides server.mode")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug/info/warn/error), overrides log.level")
	flag.BoolVar(&opts.EnableQueue, "queue", false, "Enable task queue and worker")
	flag.DurationVar(&opts.ReadTimeout, "read-timeout", 30*time.Second, "Read timeout")
	flag.DurationVar(&opts.WriteTimeout, "write-timeout", 5*time.Minute, "Write timeout, generation requests can be slow")

	flag.Parse()
	return opts
}

// applyFlags 用命令行参数覆盖配置文件
func applyFlags(cfg *appconfig.Config, opts options) {
	if opts.Port > 0 {
		cfg.Server.Port = opts.Port
	}
	if opts.Mode != "" {
		cfg.Server.Mode = opts.Mode
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if opts.EnableQueue {
		cfg.Queue.Enable = true
	}
	if key := os.Getenv("TONGYI_API_KEY"); key != "" && cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = key
	}
}

func setupStorage(cfg *appconfig.Config) (storage.Storage, error) {
	return storage.New(storage.Config{
		Type: cfg.Storage.Type,
		Local: storage.LocalConfig{
			Path: cfg.Storage.Path,
		},
		Minio: storage.MinioConfig{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			UseSSL:    cfg.Storage.UseSSL,
			Bucket:    cfg.Storage.Bucket,
		},
	})
}

func setupLLM(cfg *appconfig.Config) (llm.Client, error) {
	if cfg.LLM.APIKey == "" {
		return nil, fmt.Errorf("LLM API key is required")
	}

	opts := []llm.Option{
		llm.WithAPIKey(cfg.LLM.APIKey),
		llm.WithModel(cfg.LLM.Model),
		llm.WithMaxTokens(cfg.LLM.MaxTokens),
		llm.WithTemperature(cfg.LLM.Temperature),
	}
	if cfg.LLM.Endpoint != "" {
		opts = append(opts, llm.WithBaseURL(cfg.LLM.Endpoint))
	}

	return llm.NewClient(cfg.LLM.Provider, opts...)
}

func setupCache(cfg *appconfig.Config) (cache.Cache, error) {
	cacheConfig := cache.DefaultConfig()
	cacheConfig.Type = cfg.Cache.Type
	cacheConfig.RedisAddr = cfg.Cache.Address
	cacheConfig.RedisPassword = cfg.Cache.Password
	cacheConfig.RedisDB = cfg.Cache.DB
	if cfg.Cache.TTL > 0 {
		cacheConfig.DefaultTTL = time.Duration(cfg.Cache.TTL) * time.Second
	}

	return cache.NewCache(cacheConfig)
}

func setupTaskQueue(cfg *appconfig.Config, logger *logrus.Logger) (*taskqueue.RedisQueue, error) {
	queueConfig := taskqueue.DefaultConfig()
	queueConfig.RedisAddr = cfg.Queue.RedisAddr
	queueConfig.RedisPassword = cfg.Queue.RedisPassword
	queueConfig.RedisDB = cfg.Queue.RedisDB
	queueConfig.Logger = logger
	if cfg.Queue.Concurrency > 0 {
		queueConfig.Concurrency = cfg.Queue.Concurrency
	}
	if cfg.Queue.RetryLimit > 0 {
		queueConfig.RetryLimit = cfg.Queue.RetryLimit
	}
	if cfg.Queue.RetryDelay > 0 {
		queueConfig.RetryDelay = time.Duration(cfg.Queue.RetryDelay) * time.Second
	}
	if cfg.Queue.TaskTimeout > 0 {
		queueConfig.TaskTimeout = time.Duration(cfg.Queue.TaskTimeout) * time.Second
	}

	return taskqueue.NewRedisQueue(queueConfig)
}
