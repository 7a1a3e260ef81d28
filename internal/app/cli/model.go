package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/jinford/doc-rag/internal/platform/container"
)

// ModelListAction は登録済みモデルを一覧表示するコマンドのアクション
func ModelListAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	models, err := appCtx.Container.ListModels(ctx)
	if err != nil {
		return err
	}

	renderModels(os.Stdout, models)
	return nil
}

// ModelPullAction は Ollama にモデルを取得させるコマンドのアクション
func ModelPullAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	targets := container.PullTargets(appCtx.Config)
	failed := appCtx.Container.PullModels(ctx)

	fmt.Printf("取得対象: %d件 / 失敗: %d件\n", len(targets), len(failed))
	for _, name := range failed {
		fmt.Printf("  - %s\n", name)
	}
	return nil
}

// MigrateAction はスキーマを適用しモデルを登録するコマンドのアクション
func MigrateAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if err := appCtx.Container.Bootstrap(ctx, false); err != nil {
		return err
	}
	fmt.Println("マイグレーションが完了しました")
	return nil
}
