package cli

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/jinford/doc-rag/internal/core/ingestion"
	"github.com/jinford/doc-rag/internal/interface/httpapi"
	"github.com/jinford/doc-rag/internal/platform/scheduler"
)

// ServeAction は HTTP サーバーを起動するコマンドのアクション
func ServeAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	cfg := appCtx.Config
	cont := appCtx.Container
	logger := appCtx.Logger()

	if err := cont.Bootstrap(ctx, cfg.Ollama.PullOnStart); err != nil {
		return err
	}

	if cfg.Server.IngestCron != "" {
		sched := scheduler.New(logger)
		if err := sched.ScheduleIngest(ctx, cfg.Server.IngestCron, cont.Trigger, ingestion.DefaultParams()); err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	server := httpapi.NewServer(httpapi.Deps{
		Searcher:          cont.Retrieval,
		Answerer:          cont.Ask,
		Trigger:           cont.Trigger,
		AdminSecret:       cfg.Server.AdminSecret,
		CORSOrigins:       cfg.Server.CORSOrigins,
		DefaultQueryModel: cfg.Embedding.DefaultQueryModel,
		Logger:            logger,
	})

	addr := cmd.String("addr")
	if addr == "" {
		addr = cfg.Server.Addr
	}
	return server.Run(ctx, addr)
}
