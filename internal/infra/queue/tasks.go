// Package queue は asynq を使ったインジェストのジョブキューを提供する
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/jinford/doc-rag/internal/core/ingestion"
)

const (
	// TaskIngestRun はインジェスト実行タスクの種別
	TaskIngestRun = "ingest:run"

	// QueueName はインジェストタスクを投入するキュー
	QueueName = "ingest"

	taskMaxRetry = 2
	taskTimeout  = 6 * time.Hour
)

// IngestPayload はタスクのペイロード
type IngestPayload struct {
	Params ingestion.Params `json:"params"`
}

// NewIngestTask はインジェストタスクを作成する
// 同じ入力の再実行は冪等なので失敗時は再試行させる
func NewIngestTask(params ingestion.Params) (*asynq.Task, error) {
	payload, err := json.Marshal(IngestPayload{Params: params})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ingest payload: %w", err)
	}

	return asynq.NewTask(
		TaskIngestRun,
		payload,
		asynq.MaxRetry(taskMaxRetry),
		asynq.Timeout(taskTimeout),
		asynq.Queue(QueueName),
	), nil
}

// ParseIngestTask はタスクからパラメータを取り出す
func ParseIngestTask(t *asynq.Task) (ingestion.Params, error) {
	var payload IngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return ingestion.Params{}, fmt.Errorf("failed to unmarshal ingest payload: %w", err)
	}
	return payload.Params, nil
}
