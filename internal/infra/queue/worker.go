package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/jinford/doc-rag/internal/core/domain"
	"github.com/jinford/doc-rag/internal/core/ingestion"
)

// Processor はインジェストタスクを処理する
type Processor struct {
	runner ingestion.Runner
	logger *slog.Logger
}

// NewProcessor は新しい Processor を作成する
func NewProcessor(runner ingestion.Runner, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{runner: runner, logger: logger}
}

// ProcessIngest はタスクを実行する
// 壊れたペイロードや不正なパラメータは再試行しない
func (p *Processor) ProcessIngest(ctx context.Context, t *asynq.Task) error {
	params, err := ParseIngestTask(t)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	stats, err := p.runner.Run(ctx, params)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidConfiguration) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	p.logger.Info("インジェストタスク完了",
		"total", stats.Total,
		"documents", stats.Documents,
		"embeddings", stats.Embeddings,
		"failedBatches", stats.FailedBatches,
	)
	return nil
}

// NewServeMux はタスク種別ごとのハンドラを登録した ServeMux を返す
func NewServeMux(p *Processor) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskIngestRun, p.ProcessIngest)
	return mux
}

// NewServer はワーカーサーバーを作成する
func NewServer(redisOpt asynq.RedisClientOpt, concurrency int, logger *slog.Logger) *asynq.Server {
	if logger == nil {
		logger = slog.Default()
	}
	return asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			QueueName: 1,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			logger.Error("タスクの処理に失敗", "type", task.Type(), "error", err)
		}),
	})
}
