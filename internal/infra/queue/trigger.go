package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/jinford/doc-rag/internal/core/ingestion"
)

// Enqueuer はタスクを投入する（*asynq.Client が満たす）
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Trigger はインジェストをキューに投入して受付だけを返す
type Trigger struct {
	enqueuer Enqueuer
	logger   *slog.Logger
}

// NewTrigger は新しい Trigger を作成する
func NewTrigger(enqueuer Enqueuer, logger *slog.Logger) *Trigger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trigger{enqueuer: enqueuer, logger: logger}
}

// Trigger はパラメータを検証してからタスクを投入する
func (t *Trigger) Trigger(ctx context.Context, params ingestion.Params) (*ingestion.TriggerResult, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	task, err := NewIngestTask(params)
	if err != nil {
		return nil, err
	}

	info, err := t.enqueuer.EnqueueContext(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue ingest task: %w", err)
	}

	t.logger.Info("インジェストタスクを投入しました", "taskID", info.ID, "queue", info.Queue)
	return &ingestion.TriggerResult{Accepted: true, Mode: "queue", TaskID: info.ID}, nil
}

var _ ingestion.Trigger = (*Trigger)(nil)
