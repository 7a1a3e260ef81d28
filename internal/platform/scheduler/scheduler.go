// Package scheduler は cron 式で定期インジェストを起動する
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/jinford/doc-rag/internal/core/ingestion"
)

const ingestTag = "ingest"

// Scheduler は定期実行ジョブを管理する
type Scheduler struct {
	scheduler *gocron.Scheduler
	logger    *slog.Logger
}

// New は新しい Scheduler を作成する
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()
	// 前回の実行が終わるまで次を起動しない
	s.SingletonModeAll()

	return &Scheduler{scheduler: s, logger: logger}
}

// ScheduleIngest は cron 式に従ってトリガーを呼び出すジョブを登録する
// パラメータはここで一度だけ検証する
func (s *Scheduler) ScheduleIngest(ctx context.Context, cronExpr string, trigger ingestion.Trigger, params ingestion.Params) error {
	if err := params.Validate(); err != nil {
		return err
	}

	_, err := s.scheduler.Cron(cronExpr).Tag(ingestTag).Do(func() {
		if ctx.Err() != nil {
			return
		}
		res, err := trigger.Trigger(ctx, params)
		if err != nil {
			s.logger.Error("定期インジェストに失敗", "error", err)
			return
		}
		s.logger.Info("定期インジェストを起動しました", "mode", res.Mode, "taskID", res.TaskID)
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}

	s.logger.Info("定期インジェストを登録しました", "cron", cronExpr)
	return nil
}

// Jobs は登録済みジョブ数を返す
func (s *Scheduler) Jobs() int {
	return len(s.scheduler.Jobs())
}

// Start は非同期でスケジューラーを開始する
func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// Stop はスケジューラーを停止する
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}
