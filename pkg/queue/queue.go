package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ucode_backend/internal/config"
	"ucode_backend/pkg/logger"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const (
	TypeJudgeSubmission = "coding:judge"
	QueueCoding         = "coding"

	judgeTaskTimeout = 3 * time.Minute
)

// JudgeHandler 处理一次编程题提交
type JudgeHandler func(ctx context.Context, submissionID uint) error

type judgePayload struct {
	SubmissionID uint `json:"submission_id"`
}

func redisOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

func NewJudgeTask(submissionID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(judgePayload{SubmissionID: submissionID})
	if err != nil {
		return nil, err
	}
	// 判题失败不重试，结果以提交记录的 error 状态呈现
	return asynq.NewTask(TypeJudgeSubmission, payload,
		asynq.MaxRetry(0),
		asynq.Queue(QueueCoding),
		asynq.Timeout(judgeTaskTimeout),
	), nil
}

func ParseJudgeTask(t *asynq.Task) (uint, error) {
	var p judgePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return 0, fmt.Errorf("failed to parse judge payload: %w", err)
	}
	if p.SubmissionID == 0 {
		return 0, fmt.Errorf("judge payload has no submission id")
	}
	return p.SubmissionID, nil
}

// Client 基于 asynq 的判题任务投递
type Client struct {
	client *asynq.Client
}

func NewClient(cfg *config.RedisConfig) *Client {
	return &Client{client: asynq.NewClient(redisOpt(cfg))}
}

func (c *Client) EnqueueJudge(ctx context.Context, submissionID uint) error {
	task, err := NewJudgeTask(submissionID)
	if err != nil {
		return err
	}
	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		return err
	}
	logger.Log.Debug("Judge task enqueued", zap.Uint("submission_id", submissionID), zap.String("task_id", info.ID))
	return nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// NewServer 判题 worker，与 HTTP 服务同进程运行
func NewServer(cfg *config.Config) *asynq.Server {
	concurrency := cfg.Queue.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	return asynq.NewServer(redisOpt(&cfg.Redis), asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			QueueCoding: 5,
			"default":   1,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Log.Error("Task failed", zap.String("type", task.Type()), zap.Error(err))
		}),
	})
}

func NewServeMux(handler JudgeHandler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeJudgeSubmission, func(ctx context.Context, t *asynq.Task) error {
		id, err := ParseJudgeTask(t)
		if err != nil {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return handler(ctx, id)
	})
	return mux
}

// InlineDispatcher 未启用队列时在当前进程的 goroutine 中判题
type InlineDispatcher struct {
	Handler JudgeHandler
	Timeout time.Duration
}

func (d *InlineDispatcher) EnqueueJudge(_ context.Context, submissionID uint) error {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = judgeTaskTimeout
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := d.Handler(ctx, submissionID); err != nil {
			logger.Log.Error("Inline judge failed", zap.Uint("submission_id", submissionID), zap.Error(err))
		}
	}()
	return nil
}
