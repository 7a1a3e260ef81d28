package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// WorkerAction はインジェストキューのワーカーを起動するコマンドのアクション
func WorkerAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if appCtx.Config.Redis.Addr == "" {
		return fmt.Errorf("REDIS_ADDR を設定してください")
	}
	if err := appCtx.Container.Bootstrap(ctx, false); err != nil {
		return err
	}

	server, mux := appCtx.Container.NewWorker(int(cmd.Int("concurrency")))
	if err := server.Start(mux); err != nil {
		return fmt.Errorf("ワーカーの起動に失敗: %w", err)
	}
	appCtx.Logger().Info("ワーカーを起動しました", "redis", appCtx.Config.Redis.Addr)

	<-ctx.Done()
	server.Shutdown()
	appCtx.Logger().Info("ワーカーを停止しました")
	return nil
}
