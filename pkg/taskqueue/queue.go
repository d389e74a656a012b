package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// Queue 文章生成任务队列
// 任务记录与执行分离：记录保存在Redis中供查询，执行交给asynq
type Queue interface {
	// Enqueue 为文章创建任务并加入队列，返回任务ID
	Enqueue(ctx context.Context, taskType TaskType, articleID string, payload interface{}) (string, error)

	// GetTask 获取任务记录
	GetTask(ctx context.Context, taskID string) (*Task, error)

	// GetTasksByArticle 获取文章的全部任务，按创建时间升序
	GetTasksByArticle(ctx context.Context, articleID string) ([]*Task, error)

	// DeleteTask 删除任务记录，尚未执行的任务同时从队列中移除
	DeleteTask(ctx context.Context, taskID string) error

	Close() error
}

// Handler 任务处理器，返回值作为任务结果保存
type Handler interface {
	ProcessTask(ctx context.Context, task *Task) (interface{}, error)

	// GetTaskTypes 返回处理器负责的任务类型
	GetTaskTypes() []TaskType
}

// Config 队列配置
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Concurrency   int           // worker并发数
	RetryLimit    int           // asynq最大重试次数
	RetryDelay    time.Duration // 两次重试之间的间隔
	TaskTimeout   time.Duration // 单个任务的执行时限，0表示不限制
	Logger        *logrus.Logger
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		RedisAddr:   "localhost:6379",
		Concurrency: 10,
		RetryLimit:  3,
		RetryDelay:  time.Minute,
		TaskTimeout: 10 * time.Minute,
	}
}

// TaskError 任务错误
type TaskError string

func (e TaskError) Error() string {
	return string(e)
}

const (
	ErrTaskNotFound   = TaskError("task not found")
	ErrInvalidPayload = TaskError("invalid task payload")
)

// Permanent 标记不应重试的错误，例如模型没有产出可用内容
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w (%w)", err, asynq.SkipRetry)
}

// MarshalPayload 序列化任务载荷，nil序列化为空对象
func MarshalPayload(payload interface{}) (json.RawMessage, error) {
	if payload == nil {
		return json.RawMessage("{}"), nil
	}
	return json.Marshal(payload)
}

// UnmarshalPayload 反序列化任务载荷，空载荷保持v不变
func UnmarshalPayload(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}
