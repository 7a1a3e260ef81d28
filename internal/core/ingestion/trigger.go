package ingestion

import (
	"context"
	"log/slog"
)

// Runner はインジェストを最後まで実行する
type Runner interface {
	Run(ctx context.Context, params Params) (*Stats, error)
}

// TriggerResult はトリガーの応答
// 同期モードでは Stats を持ち、非同期モードでは受付のみを表す
// キューモードでは TaskID を持つ
type TriggerResult struct {
	Accepted bool   `json:"accepted"`
	Mode     string `json:"mode"`
	TaskID   string `json:"taskId,omitempty"`
	Stats    *Stats `json:"stats,omitempty"`
}

// Trigger はインジェストの起動方式
type Trigger interface {
	Trigger(ctx context.Context, params Params) (*TriggerResult, error)
}

// InlineTrigger は呼び出し元で完了まで実行して集計を返す
type InlineTrigger struct {
	runner Runner
}

func NewInlineTrigger(runner Runner) *InlineTrigger {
	return &InlineTrigger{runner: runner}
}

func (t *InlineTrigger) Trigger(ctx context.Context, params Params) (*TriggerResult, error) {
	stats, err := t.runner.Run(ctx, params)
	if err != nil {
		return nil, err
	}
	return &TriggerResult{Accepted: true, Mode: "sync", Stats: stats}, nil
}

// BackgroundTrigger はゴルーチンで実行して即座に受付を返す
// 実行は呼び出し元のリクエストとは独立した baseCtx に紐づく
type BackgroundTrigger struct {
	runner  Runner
	baseCtx context.Context
	logger  *slog.Logger
	done    chan struct{} // テスト用の完了通知（nil 可）
}

func NewBackgroundTrigger(baseCtx context.Context, runner Runner, logger *slog.Logger) *BackgroundTrigger {
	if logger == nil {
		logger = slog.Default()
	}
	return &BackgroundTrigger{runner: runner, baseCtx: baseCtx, logger: logger}
}

func (t *BackgroundTrigger) Trigger(_ context.Context, params Params) (*TriggerResult, error) {
	// 検証エラーは副作用の前に呼び出し元へ返す
	if err := params.Validate(); err != nil {
		return nil, err
	}

	go func() {
		if t.done != nil {
			defer close(t.done)
		}
		stats, err := t.runner.Run(t.baseCtx, params)
		if err != nil {
			t.logger.Error("バックグラウンドインジェストに失敗", "error", err)
			return
		}
		t.logger.Info("バックグラウンドインジェスト完了",
			"total", stats.Total,
			"embeddings", stats.Embeddings,
		)
	}()

	return &TriggerResult{Accepted: true, Mode: "async"}, nil
}

var (
	_ Trigger = (*InlineTrigger)(nil)
	_ Trigger = (*BackgroundTrigger)(nil)
	_ Runner  = (*Service)(nil)
)
