package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	cliapp "github.com/jinford/doc-rag/internal/app/cli"
	"github.com/jinford/doc-rag/internal/core/ingestion"
)

func envFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "env",
		Usage: "環境変数ファイルパス",
		Value: ".env",
	}
}

func retrievalFlags() []cli.Flag {
	return []cli.Flag{
		envFlag(),
		&cli.StringFlag{
			Name:  "model",
			Usage: "クエリ Embedding に使うモデル名（省略時はデフォルトモデル）",
		},
		&cli.StringFlag{
			Name:  "metric",
			Usage: "距離指標 (cosine, l2, inner_product)",
			Value: "cosine",
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 構造化ログの設定（設定読み込み後はコンテナのロガーに置き換わる）
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	app := &cli.Command{
		Name:  "doc-rag",
		Usage: "ドキュメントサイト向け RAG 検索・質問応答システム",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "HTTP API サーバーを起動",
				Flags: []cli.Flag{
					envFlag(),
					&cli.StringFlag{
						Name:  "addr",
						Usage: "待ち受けアドレス（省略時は SERVER_ADDR）",
					},
				},
				Action: cliapp.ServeAction,
			},
			{
				Name:  "worker",
				Usage: "インジェストキューのワーカーを起動",
				Flags: []cli.Flag{
					envFlag(),
					&cli.IntFlag{
						Name:  "concurrency",
						Usage: "同時に処理するタスク数",
						Value: 1,
					},
				},
				Action: cliapp.WorkerAction,
			},
			{
				Name:  "ingest",
				Usage: "ドキュメントを取得してインデックスを再構築",
				Flags: []cli.Flag{
					envFlag(),
					&cli.IntFlag{
						Name:  "delay-ms",
						Usage: "ドキュメント間の待機時間（ミリ秒）",
						Value: ingestion.DefaultDelayMs,
					},
					&cli.IntFlag{
						Name:  "chunk-size",
						Usage: "チャンクのトークン数",
						Value: ingestion.DefaultChunkSize,
					},
					&cli.IntFlag{
						Name:  "chunk-overlap",
						Usage: "チャンク間で重複させるトークン数",
						Value: ingestion.DefaultChunkOverlap,
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Embedding API 1回あたりの入力数",
						Value: ingestion.DefaultBatchSize,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "処理するドキュメント数の上限（0 は全件）",
					},
					&cli.IntFlag{
						Name:  "concurrency",
						Usage: "同時に処理するドキュメント数",
						Value: ingestion.DefaultConcurrency,
					},
					&cli.StringSliceFlag{
						Name:  "model",
						Usage: "対象モデル（複数指定可、省略時は全モデル）",
					},
					&cli.BoolFlag{
						Name:  "translate-titles",
						Usage: "タイトルを英訳して保存する",
					},
					&cli.StringFlag{
						Name:  "enrich",
						Usage: "チャンクの加工 (translate, summarize)",
					},
				},
				Action: cliapp.IngestAction,
			},
			{
				Name:      "query",
				Usage:     "類似ドキュメントを検索",
				ArgsUsage: "<検索文>",
				Flags: append(retrievalFlags(),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "返すドキュメント数",
						Value: 5,
					},
				),
				Action: cliapp.QueryAction,
			},
			{
				Name:      "ask",
				Usage:     "ドキュメントに基づいて質問に回答",
				ArgsUsage: "<質問文>",
				Flags: append(retrievalFlags(),
					&cli.IntFlag{
						Name:  "top-chunks",
						Usage: "近傍検索で取得するチャンク数",
						Value: 10,
					},
					&cli.IntFlag{
						Name:  "top-documents",
						Usage: "リランク後にコンテキストへ入れるパッセージ数",
						Value: 2,
					},
					&cli.BoolFlag{
						Name:  "no-stream",
						Usage: "回答をまとめて表示する",
					},
					&cli.BoolFlag{
						Name:  "show-sources",
						Usage: "参照したパッセージを表示する（--no-stream 時のみ）",
					},
				),
				Action: cliapp.AskAction,
			},
			{
				Name:  "model",
				Usage: "Embedding モデル管理コマンド",
				Commands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "登録済みモデル一覧を表示",
						Flags:  []cli.Flag{envFlag()},
						Action: cliapp.ModelListAction,
					},
					{
						Name:   "pull",
						Usage:  "Ollama に必要なモデルを取得させる",
						Flags:  []cli.Flag{envFlag()},
						Action: cliapp.ModelPullAction,
					},
				},
			},
			{
				Name:   "migrate",
				Usage:  "スキーマを適用し Embedding モデルを登録",
				Flags:  []cli.Flag{envFlag()},
				Action: cliapp.MigrateAction,
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
