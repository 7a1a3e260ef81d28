package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/jinford/doc-rag/internal/core/domain"
)

// プロバイダ種別
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// インジェストの起動方式
const (
	IngestModeSync  = "sync"
	IngestModeAsync = "async"
	IngestModeQueue = "queue"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Ollama    OllamaConfig
	Embedding EmbeddingConfig
	Reranker  RerankerConfig
	Chat      ChatConfig
	Enrich    EnrichConfig
	Redis     RedisConfig
	Docs      DocsConfig
	Guard     GuardConfig
	Log       LogConfig
}

// DatabaseConfig はデータベース接続設定
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// ServerConfig は HTTP サーバーとインジェスト起動の設定
type ServerConfig struct {
	Addr        string
	AdminSecret string // 空の場合は管理 API を拒否する
	CORSOrigins []string
	IngestMode  string // sync | async | queue
	IngestCron  string // 空なら定期実行しない
}

// OllamaConfig は Ollama の設定
type OllamaConfig struct {
	URL         string
	PullOnStart bool
}

// EmbeddingConfig は Embedding バックエンドと登録モデルの設定
type EmbeddingConfig struct {
	Provider          string // ollama | openai
	URL               string // OpenAI 互換 API のベース URL
	APIKey            string
	Models            []domain.ModelSpec
	DefaultQueryModel string
}

// RerankerConfig はリランカーの設定
type RerankerConfig struct {
	URL   string
	Model string
}

// ChatConfig は回答生成 LLM の設定
type ChatConfig struct {
	Provider string // ollama | openai
	URL      string // openai の場合のみ使用（空なら公式エンドポイント）
	Model    string
	APIKey   string
}

// EnrichConfig は翻訳・要約に使うモデルの設定
type EnrichConfig struct {
	TranslationModel string
	MainModel        string
	SourceLanguage   string
}

// RedisConfig は Redis の設定（キューとクエリキャッシュで共用）
type RedisConfig struct {
	Addr          string // 空なら Redis を使わない
	Password      string
	DB            int
	QueryCacheTTL time.Duration
}

// DocsConfig は取り込み対象ドキュメントの設定
type DocsConfig struct {
	BaseURL     string
	ContentsURL string
}

// GuardConfig はモデルバックエンド呼び出しの保護設定
type GuardConfig struct {
	RPM   int
	Burst int
}

// LogConfig はログ設定
type LogConfig struct {
	Level  string
	Format string
}

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	models, err := ParseModelSpecs(getEnv("EMBEDDING_MODELS", "deepvk/USER-base|768|query: |passage: "))
	if err != nil {
		return nil, err
	}
	defaultQueryModel := getEnv("DEFAULT_QUERY_MODEL", "")
	if defaultQueryModel == "" && len(models) > 0 {
		defaultQueryModel = models[0].Name
	}

	ollamaURL := getEnv("OLLAMA_URL", "http://ollama:11434")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "docrag"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "docrag"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Server: ServerConfig{
			Addr:        getEnv("SERVER_ADDR", ":8080"),
			AdminSecret: getEnv("ADMIN_SECRET", ""),
			CORSOrigins: getEnvAsList("CORS_ORIGINS", []string{"*"}),
			IngestMode:  getEnv("INGEST_MODE", IngestModeSync),
			IngestCron:  getEnv("INGEST_CRON", ""),
		},
		Ollama: OllamaConfig{
			URL:         ollamaURL,
			PullOnStart: getEnvAsBool("OLLAMA_PULL_ON_START", false),
		},
		Embedding: EmbeddingConfig{
			Provider:          getEnv("EMBEDDING_PROVIDER", ProviderOpenAI),
			URL:               getEnv("EMBEDDER_URL", "http://embeddings:7997"),
			APIKey:            getEnv("EMBEDDER_API_KEY", ""),
			Models:            models,
			DefaultQueryModel: defaultQueryModel,
		},
		Reranker: RerankerConfig{
			URL:   getEnv("RERANKER_URL", "http://embeddings:7997/rerank"),
			Model: getEnv("RERANKER_MODEL", "qilowoq/bge-reranker-v2-m3-en-ru"),
		},
		Chat: ChatConfig{
			Provider: getEnv("LLM_PROVIDER", ProviderOllama),
			URL:      getEnv("LLM_URL", ""),
			Model:    getEnv("LLM_MODEL", "llama3.1:8b"),
			APIKey:   getEnv("LLM_API_KEY", ""),
		},
		Enrich: EnrichConfig{
			TranslationModel: getEnv("TRANSLATION_MODEL", "llama3.1:8b"),
			MainModel:        getEnv("MAIN_MODEL", "llama3.1:8b"),
			SourceLanguage:   getEnv("TRANSLATION_SOURCE_LANG", "Russian"),
		},
		Redis: RedisConfig{
			Addr:          getEnv("REDIS_ADDR", ""),
			Password:      getEnv("REDIS_PASSWORD", ""),
			DB:            getEnvAsInt("REDIS_DB", 0),
			QueryCacheTTL: getEnvAsDuration("QUERY_CACHE_TTL", 24*time.Hour),
		},
		Docs: DocsConfig{
			BaseURL:     getEnv("DOCS_BASE_URL", "https://pascalabc.net/downloads/pabcnethelp/"),
			ContentsURL: getEnv("DOCS_CONTENT_URL", "https://pascalabc.net/downloads/pabcnethelp/webhelpcontents.htm"),
		},
		Guard: GuardConfig{
			RPM:   getEnvAsInt("PROVIDER_RPM", 0),
			Burst: getEnvAsInt("PROVIDER_BURST", 4),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate は列挙値の設定を検証します
func (c *Config) Validate() error {
	switch c.Embedding.Provider {
	case ProviderOllama, ProviderOpenAI:
	default:
		return fmt.Errorf("%w: unknown EMBEDDING_PROVIDER %q", domain.ErrInvalidConfiguration, c.Embedding.Provider)
	}
	switch c.Chat.Provider {
	case ProviderOllama, ProviderOpenAI:
	default:
		return fmt.Errorf("%w: unknown LLM_PROVIDER %q", domain.ErrInvalidConfiguration, c.Chat.Provider)
	}
	switch c.Server.IngestMode {
	case IngestModeSync, IngestModeAsync:
	case IngestModeQueue:
		if c.Redis.Addr == "" {
			return fmt.Errorf("%w: INGEST_MODE=queue requires REDIS_ADDR", domain.ErrInvalidConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown INGEST_MODE %q", domain.ErrInvalidConfiguration, c.Server.IngestMode)
	}
	return nil
}

// ParseModelSpecs は "name|dimension|queryPrefix|documentPrefix" を ";" で区切った一覧を解析します
// プレフィックスは末尾の空白を含めてそのまま保持します
func ParseModelSpecs(value string) ([]domain.ModelSpec, error) {
	var specs []domain.ModelSpec
	for _, entry := range strings.Split(value, ";") {
		if strings.TrimSpace(entry) == "" {
			continue
		}

		fields := strings.Split(entry, "|")
		if len(fields) < 2 || len(fields) > 4 {
			return nil, fmt.Errorf("%w: invalid EMBEDDING_MODELS entry %q", domain.ErrInvalidConfiguration, entry)
		}

		name := strings.TrimSpace(fields[0])
		dim, err := strconv.Atoi(strings.TrimSpace(fields[1]))
		if name == "" || err != nil || dim <= 0 {
			return nil, fmt.Errorf("%w: invalid EMBEDDING_MODELS entry %q", domain.ErrInvalidConfiguration, entry)
		}

		spec := domain.ModelSpec{Name: name, Dimension: dim}
		if len(fields) > 2 {
			spec.QueryPrefix = fields[2]
		}
		if len(fields) > 3 {
			spec.DocumentPrefix = fields[3]
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// ModelNames は登録モデル名の一覧を返します
func (c EmbeddingConfig) ModelNames() []string {
	names := make([]string, len(c.Models))
	for i, m := range c.Models {
		names[i] = m.Name
	}
	return names
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList はカンマ区切りの環境変数を取得します
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
