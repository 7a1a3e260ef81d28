package cli

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/jinford/doc-rag/internal/core/ingestion"
)

// IngestAction はインジェストを同期実行するコマンドのアクション
func IngestAction(ctx context.Context, cmd *cli.Command) error {
	params := ingestion.Params{
		DelayMs:         int(cmd.Int("delay-ms")),
		ChunkSize:       int(cmd.Int("chunk-size")),
		ChunkOverlap:    int(cmd.Int("chunk-overlap")),
		BatchSize:       int(cmd.Int("batch-size")),
		Limit:           int(cmd.Int("limit")),
		Concurrency:     int(cmd.Int("concurrency")),
		ModelNames:      cmd.StringSlice("model"),
		TranslateTitles: cmd.Bool("translate-titles"),
		Enrich:          ingestion.EnrichMode(cmd.String("enrich")),
	}
	// 接続前に検証する
	if err := params.Validate(); err != nil {
		return err
	}

	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if err := appCtx.Container.Bootstrap(ctx, false); err != nil {
		return err
	}

	stats, err := appCtx.Container.Ingestion.Run(ctx, params)
	if err != nil {
		return err
	}

	renderStats(os.Stdout, stats)
	return nil
}
