package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	taskKeyPrefix    = "article_task:"  // 任务记录
	articleKeyPrefix = "article_tasks:" // 文章的任务ID集合
	taskRecordTTL    = 7 * 24 * time.Hour
	articleQueueName = "articles"
)

// RedisQueue 基于asynq的任务队列
// asynq的任务载荷只有任务ID，载荷和状态保存在任务记录中
type RedisQueue struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	rdb       *redis.Client
	cfg       *Config
	logger    *logrus.Logger
}

// NewRedisQueue 连接Redis并创建队列
func NewRedisQueue(cfg *Config) (*RedisQueue, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	opt := cfg.redisOpt()
	return &RedisQueue{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
		rdb:       rdb,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

func (c *Config) redisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}

// Enqueue 保存任务记录后交给asynq
func (q *RedisQueue) Enqueue(ctx context.Context, taskType TaskType, articleID string, payload interface{}) (string, error) {
	data, err := MarshalPayload(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	now := time.Now()
	task := &Task{
		ID:         uuid.New().String(),
		Type:       taskType,
		ArticleID:  articleID,
		Status:     StatusPending,
		Payload:    data,
		MaxRetries: q.cfg.RetryLimit,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := q.save(ctx, task); err != nil {
		return "", err
	}

	// asynq任务ID与记录ID一致，删除记录时可以同时移除排队中的任务
	opts := []asynq.Option{
		asynq.TaskID(task.ID),
		asynq.Queue(articleQueueName),
		asynq.MaxRetry(q.cfg.RetryLimit),
	}
	if q.cfg.TaskTimeout > 0 {
		opts = append(opts, asynq.Timeout(q.cfg.TaskTimeout))
	}

	if _, err := q.client.EnqueueContext(ctx, asynq.NewTask(string(taskType), []byte(task.ID)), opts...); err != nil {
		q.forget(ctx, task)
		return "", fmt.Errorf("failed to enqueue task: %w", err)
	}

	q.logger.WithFields(logrus.Fields{
		"task_id":    task.ID,
		"task_type":  taskType,
		"article_id": articleID,
		"queue":      articleQueueName,
	}).Debug("Task handed to asynq")

	return task.ID, nil
}

// GetTask 读取任务记录
func (q *RedisQueue) GetTask(ctx context.Context, taskID string) (*Task, error) {
	data, err := q.rdb.Get(ctx, taskKeyPrefix+taskID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	var task Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("failed to decode task %s: %w", taskID, err)
	}
	return &task, nil
}

// GetTasksByArticle 读取文章的全部任务，已过期的记录被跳过
func (q *RedisQueue) GetTasksByArticle(ctx context.Context, articleID string) ([]*Task, error) {
	ids, err := q.rdb.SMembers(ctx, articleKeyPrefix+articleID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list article tasks: %w", err)
	}

	tasks := make([]*Task, 0, len(ids))
	for _, id := range ids {
		task, err := q.GetTask(ctx, id)
		if errors.Is(err, ErrTaskNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	return tasks, nil
}

// DeleteTask 删除任务记录，未结束的任务同时从asynq中移除
func (q *RedisQueue) DeleteTask(ctx context.Context, taskID string) error {
	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		return err
	}

	if err := q.forget(ctx, task); err != nil {
		return err
	}

	// 正在执行的任务无法删除，执行完成后写回记录会失败并被忽略
	if !task.IsFinished() {
		if err := q.inspector.DeleteTask(articleQueueName, taskID); err != nil {
			q.logger.WithError(err).WithField("task_id", taskID).Debug("Task not removed from asynq queue")
		}
	}
	return nil
}

// Close 关闭所有连接
func (q *RedisQueue) Close() error {
	return errors.Join(q.client.Close(), q.inspector.Close(), q.rdb.Close())
}

// UpdateTaskStatus 更新任务状态，result和errMsg非空时一并写入
func (q *RedisQueue) UpdateTaskStatus(ctx context.Context, taskID string, status TaskStatus, result interface{}, errMsg string) error {
	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		return err
	}

	now := time.Now()
	task.Status = status
	task.UpdatedAt = now

	switch status {
	case StatusProcessing:
		task.Attempts++
		if task.StartedAt == nil {
			task.StartedAt = &now
		}
	case StatusCompleted, StatusFailed:
		task.CompletedAt = &now
	}

	if result != nil {
		data, err := MarshalPayload(result)
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		task.Result = data
	}
	if status == StatusCompleted {
		task.Error = ""
	} else if errMsg != "" {
		task.Error = errMsg
	}

	return q.save(ctx, task)
}

// save 写入任务记录并登记到文章的任务集合
func (q *RedisQueue) save(ctx context.Context, task *Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	key := articleKeyPrefix + task.ArticleID
	_, err = q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, taskKeyPrefix+task.ID, data, taskRecordTTL)
		if task.ArticleID != "" {
			pipe.SAdd(ctx, key, task.ID)
			pipe.Expire(ctx, key, taskRecordTTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}
	return nil
}

// forget 删除任务记录和文章集合中的登记
func (q *RedisQueue) forget(ctx context.Context, task *Task) error {
	_, err := q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, taskKeyPrefix+task.ID)
		if task.ArticleID != "" {
			pipe.SRem(ctx, articleKeyPrefix+task.ArticleID, task.ID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}
