package container

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	goredis "github.com/redis/go-redis/v9"

	"github.com/jinford/doc-rag/internal/core/ask"
	"github.com/jinford/doc-rag/internal/core/chunk"
	"github.com/jinford/doc-rag/internal/core/domain"
	"github.com/jinford/doc-rag/internal/core/ingestion"
	"github.com/jinford/doc-rag/internal/core/retrieval"
	"github.com/jinford/doc-rag/internal/infra/htmldoc"
	"github.com/jinford/doc-rag/internal/infra/ollama"
	"github.com/jinford/doc-rag/internal/infra/openai"
	"github.com/jinford/doc-rag/internal/infra/postgres"
	"github.com/jinford/doc-rag/internal/infra/queue"
	"github.com/jinford/doc-rag/internal/infra/redis"
	"github.com/jinford/doc-rag/internal/infra/rerank"
	"github.com/jinford/doc-rag/internal/platform/config"
	"github.com/jinford/doc-rag/internal/platform/database"
	"github.com/jinford/doc-rag/internal/platform/resilience"
)

// ServiceContainer はアプリケーションの依存関係を保持する
type ServiceContainer struct {
	Config    *config.Config
	Retrieval *retrieval.Service
	Ask       *ask.AskService
	Ingestion *ingestion.Service
	Trigger   ingestion.Trigger
	Models    *postgres.ModelRepository
	Ollama    *ollama.Client

	logger      *slog.Logger
	database    *database.DB
	tx          *database.TransactionProvider
	redis       *goredis.Client
	queueClient *asynq.Client
}

type containerOptions struct {
	logger   *slog.Logger
	baseCtx  context.Context
	embedder ingestion.Embedder
	chat     ask.ChatClient
	reranker retrieval.Reranker
	source   ingestion.DocumentSource
}

// ContainerOption は ServiceContainer 構築時のオプション
type ContainerOption func(*containerOptions)

// WithContainerLogger はロガーを差し替える
func WithContainerLogger(logger *slog.Logger) ContainerOption {
	return func(opts *containerOptions) {
		opts.logger = logger
	}
}

// WithBaseContext は非同期インジェストを紐づけるコンテキストを設定する
func WithBaseContext(ctx context.Context) ContainerOption {
	return func(opts *containerOptions) {
		opts.baseCtx = ctx
	}
}

// WithContainerEmbedder はカスタム Embedder を注入する
func WithContainerEmbedder(embedder ingestion.Embedder) ContainerOption {
	return func(opts *containerOptions) {
		opts.embedder = embedder
	}
}

// WithContainerChatClient はチャットクライアントを差し替える
func WithContainerChatClient(chat ask.ChatClient) ContainerOption {
	return func(opts *containerOptions) {
		opts.chat = chat
	}
}

// WithContainerReranker はリランカーを差し替える
func WithContainerReranker(reranker retrieval.Reranker) ContainerOption {
	return func(opts *containerOptions) {
		opts.reranker = reranker
	}
}

// WithContainerSource は DocumentSource を差し替える
func WithContainerSource(source ingestion.DocumentSource) ContainerOption {
	return func(opts *containerOptions) {
		opts.source = source
	}
}

// NewContainer は設定からコンテナを生成する
func NewContainer(ctx context.Context, cfg *config.Config, opts ...ContainerOption) (*ServiceContainer, error) {
	db, err := database.New(ctx, database.ConnectionParams{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		return nil, fmt.Errorf("データベース初期化に失敗しました: %w", err)
	}

	c, err := NewContainerWithDB(ctx, cfg, db, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// NewContainerWithDB は既存の DB を受け取りコンテナを生成する
func NewContainerWithDB(ctx context.Context, cfg *config.Config, db *database.DB, opts ...ContainerOption) (*ServiceContainer, error) {
	options := containerOptions{logger: slog.Default(), baseCtx: ctx}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	logger := options.logger

	c := &ServiceContainer{
		Config:   cfg,
		logger:   logger,
		database: db,
		tx:       database.NewTransactionProvider(db.Pool),
	}

	guardCfg := resilience.Config{RPM: cfg.Guard.RPM, Burst: cfg.Guard.Burst}

	// Ollama（要約・翻訳・モデル取得、設定によってはチャットと Embedding）
	c.Ollama = ollama.NewClient(ollama.Config{
		BaseURL:          cfg.Ollama.URL,
		ChatModel:        cfg.Chat.Model,
		MainModel:        cfg.Enrich.MainModel,
		TranslationModel: cfg.Enrich.TranslationModel,
		SourceLanguage:   cfg.Enrich.SourceLanguage,
	}, ollama.WithLogger(logger))

	// Embedder
	embedder := options.embedder
	if embedder == nil {
		switch cfg.Embedding.Provider {
		case config.ProviderOllama:
			embedder = c.Ollama
		default:
			embedder = openai.NewClient(openai.Config{
				BaseURL: cfg.Embedding.URL,
				APIKey:  cfg.Embedding.APIKey,
			}, openai.WithLogger(logger))
		}
	}
	guardedEmbedder := resilience.NewEmbedder(embedder, resilience.NewGuard("embedder", guardCfg, logger))

	// クエリ側は Redis があればキャッシュを挟む
	var queryEmbedder retrieval.Embedder = guardedEmbedder
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, fmt.Errorf("Redis 初期化に失敗しました: %w", err)
		}
		c.redis = rdb
		queryEmbedder = redis.NewQueryEmbeddingCache(rdb, guardedEmbedder,
			redis.WithTTL(cfg.Redis.QueryCacheTTL),
			redis.WithLogger(logger),
		)
	}

	// Reranker
	reranker := options.reranker
	if reranker == nil {
		reranker = rerank.NewClient(cfg.Reranker.URL, cfg.Reranker.Model, rerank.WithLogger(logger))
	}
	reranker = resilience.NewReranker(reranker, resilience.NewGuard("reranker", guardCfg, logger))

	// ChatClient
	chat := options.chat
	if chat == nil {
		switch cfg.Chat.Provider {
		case config.ProviderOpenAI:
			chat = openai.NewClient(openai.Config{
				BaseURL:   cfg.Chat.URL,
				APIKey:    cfg.Chat.APIKey,
				ChatModel: cfg.Chat.Model,
			}, openai.WithLogger(logger))
		default:
			chat = c.Ollama
		}
	}
	chat = resilience.NewChatClient(chat, resilience.NewGuard("chat", guardCfg, logger))

	// Repository (PostgreSQL)
	documents := postgres.NewDocumentRepository(db.Pool)
	c.Models = postgres.NewModelRepository(db.Pool)
	embeddings := postgres.NewEmbeddingRepository(db.Pool, postgres.WithRepositoryLogger(logger))
	search := postgres.NewSearchRepository(db.Pool)

	// Chunker
	tokenizer, err := chunk.NewTiktokenTokenizer(chunk.DefaultEncoding)
	if err != nil {
		return nil, fmt.Errorf("Tokenizer 初期化に失敗しました: %w", err)
	}
	chunker := chunk.NewTokenChunker(tokenizer)

	// DocumentSource
	source := options.source
	if source == nil {
		source = htmldoc.NewSource(cfg.Docs.BaseURL, cfg.Docs.ContentsURL, htmldoc.WithLogger(logger))
	}

	c.Retrieval = retrieval.NewService(search, queryEmbedder, reranker, retrieval.WithLogger(logger))
	c.Ask = ask.NewAskService(c.Retrieval, chat, ask.WithAskLogger(logger))
	c.Ingestion = ingestion.NewService(
		source,
		documents,
		c.Models,
		embeddings,
		guardedEmbedder,
		chunker,
		ingestion.WithLogger(logger),
		ingestion.WithEnricher(resilience.NewEnricher(c.Ollama, resilience.NewGuard("enricher", guardCfg, logger))),
	)

	// Trigger
	switch cfg.Server.IngestMode {
	case config.IngestModeQueue:
		c.queueClient = asynq.NewClient(c.RedisClientOpt())
		c.Trigger = queue.NewTrigger(c.queueClient, logger)
	case config.IngestModeAsync:
		c.Trigger = ingestion.NewBackgroundTrigger(options.baseCtx, c.Ingestion, logger)
	default:
		c.Trigger = ingestion.NewInlineTrigger(c.Ingestion)
	}

	return c, nil
}

// Bootstrap はスキーマを適用し、設定済みモデルを登録する
// pullModels が真なら Ollama にモデルを取得させる（失敗はログのみ）
func (c *ServiceContainer) Bootstrap(ctx context.Context, pullModels bool) error {
	if err := database.Migrate(ctx, c.tx); err != nil {
		return err
	}

	models, err := database.RegisterModels(ctx, c.tx, c.Config.Embedding.Models)
	if err != nil {
		return err
	}
	c.logger.Info("モデルを登録しました", "count", len(models))

	if pullModels {
		c.PullModels(ctx)
	}
	return nil
}

// Migrate はスキーマを適用する
func (c *ServiceContainer) Migrate(ctx context.Context) error {
	return database.Migrate(ctx, c.tx)
}

// PullModels は Ollama で使うモデルを取得し、失敗したモデル名を返す
func (c *ServiceContainer) PullModels(ctx context.Context) []string {
	failed := c.Ollama.PullAll(ctx, PullTargets(c.Config))
	if len(failed) > 0 {
		c.logger.Warn("一部のモデル取得に失敗しました", "models", failed)
	}
	return failed
}

// PullTargets は Ollama に取得させるモデル名を重複なく返す
func PullTargets(cfg *config.Config) []string {
	var names []string
	if cfg.Embedding.Provider == config.ProviderOllama {
		names = append(names, cfg.Embedding.ModelNames()...)
	}
	names = append(names, cfg.Enrich.TranslationModel, cfg.Enrich.MainModel)
	if cfg.Chat.Provider == config.ProviderOllama {
		names = append(names, cfg.Chat.Model)
	}

	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// ListModels は登録済みモデルを返す
func (c *ServiceContainer) ListModels(ctx context.Context) ([]*domain.Model, error) {
	return c.Models.ListModels(ctx)
}

// RedisClientOpt は asynq 用の Redis 接続設定を返す
func (c *ServiceContainer) RedisClientOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     c.Config.Redis.Addr,
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
	}
}

// NewWorker はキューのワーカーサーバーと ServeMux を作成する
func (c *ServiceContainer) NewWorker(concurrency int) (*asynq.Server, *asynq.ServeMux) {
	server := queue.NewServer(c.RedisClientOpt(), concurrency, c.logger)
	mux := queue.NewServeMux(queue.NewProcessor(c.Ingestion, c.logger))
	return server, mux
}

// Close は内部リソースを解放する
func (c *ServiceContainer) Close() {
	if c == nil {
		return
	}
	if c.queueClient != nil {
		if err := c.queueClient.Close(); err != nil {
			c.logger.Warn("キュークライアントのクローズに失敗", "error", err)
		}
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			c.logger.Warn("Redis クライアントのクローズに失敗", "error", err)
		}
	}
	if c.database != nil {
		c.database.Close()
	}
}

// Logger はロガーを返す
func (c *ServiceContainer) Logger() *slog.Logger {
	if c == nil || c.logger == nil {
		return slog.Default()
	}
	return c.logger
}
