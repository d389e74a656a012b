package taskqueue

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// RedisWorker 执行文章任务并维护任务记录
type RedisWorker struct {
	server   *asynq.Server
	queue    *RedisQueue
	handlers map[TaskType]Handler
	logger   *logrus.Logger
}

// NewRedisWorker 创建worker，cfg为nil时沿用队列的配置
func NewRedisWorker(queue *RedisQueue, cfg *Config) *RedisWorker {
	if cfg == nil {
		cfg = queue.cfg
	}

	retryDelay := cfg.RetryDelay
	server := asynq.NewServer(cfg.redisOpt(), asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      map[string]int{articleQueueName: 1},
		RetryDelayFunc: func(int, error, *asynq.Task) time.Duration {
			return retryDelay
		},
		// 永久错误不计入asynq的失败统计
		IsFailure: func(err error) bool {
			return !errors.Is(err, asynq.SkipRetry)
		},
		Logger: queue.logger,
	})

	return &RedisWorker{
		server:   server,
		queue:    queue,
		handlers: make(map[TaskType]Handler),
		logger:   queue.logger,
	}
}

// RegisterHandler 为任务类型注册处理器
func (w *RedisWorker) RegisterHandler(taskType TaskType, handler Handler) {
	w.handlers[taskType] = handler
}

// RegisterAll 按处理器声明的任务类型注册
func (w *RedisWorker) RegisterAll(handler Handler) {
	for _, taskType := range handler.GetTaskTypes() {
		w.RegisterHandler(taskType, handler)
	}
}

// Start 启动worker，不阻塞
func (w *RedisWorker) Start() error {
	mux := asynq.NewServeMux()
	for taskType, handler := range w.handlers {
		mux.HandleFunc(string(taskType), w.process(handler))
		w.logger.WithField("task_type", taskType).Info("Registered article task handler")
	}
	return w.server.Start(mux)
}

// Stop 等待正在执行的任务结束后停止
func (w *RedisWorker) Stop() {
	w.server.Shutdown()
}

// process 在处理器前后维护任务记录
func (w *RedisWorker) process(h Handler) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		taskID := string(t.Payload())
		entry := w.logger.WithField("task_id", taskID)

		if err := w.queue.UpdateTaskStatus(ctx, taskID, StatusProcessing, nil, ""); err != nil {
			if errors.Is(err, ErrTaskNotFound) {
				// 记录已被删除，例如文章已删除
				entry.Info("Task record gone, skipping")
				return nil
			}
			return err
		}

		task, err := w.queue.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		entry = entry.WithFields(logrus.Fields{"article_id": task.ArticleID, "task_type": task.Type})

		result, err := h.ProcessTask(ctx, task)
		if err != nil {
			status := StatusFailed
			if willRetry(ctx, err) {
				status = StatusPending
			}
			if updateErr := w.queue.UpdateTaskStatus(ctx, taskID, status, nil, err.Error()); updateErr != nil {
				entry.WithError(updateErr).Error("Failed to record task failure")
			}
			entry.WithError(err).WithField("status", status).Warn("Article task failed")
			return err
		}

		if err := w.queue.UpdateTaskStatus(ctx, taskID, StatusCompleted, result, ""); err != nil {
			entry.WithError(err).Error("Failed to record task result")
		}
		entry.Info("Article task completed")
		return nil
	}
}

// willRetry asynq是否还会再次执行该任务
func willRetry(ctx context.Context, err error) bool {
	if errors.Is(err, asynq.SkipRetry) {
		return false
	}
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return false
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return false
	}
	return retried < maxRetry
}
