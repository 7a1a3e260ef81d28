// Package openai は OpenAI 互換 API（OpenAI / Infinity など）を使ったモデルバックエンド実装を提供する
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/jinford/doc-rag/internal/core/domain"
)

const (
	// DefaultChatModel はデフォルトで使用するチャットモデル
	DefaultChatModel = "gpt-4o-mini"

	// DefaultTimeout はAPI呼び出しのデフォルトタイムアウト
	DefaultTimeout = 60 * time.Second

	// BaseBackoff はExponential Backoffの基底時間
	BaseBackoff = 2 * time.Second

	// MaxBackoff はExponential Backoffの最大待機時間
	MaxBackoff = 32 * time.Second

	providerName = "openai"
)

// Config は OpenAI 互換クライアントの設定
type Config struct {
	BaseURL     string // 空なら公式エンドポイント
	APIKey      string
	ChatModel   string
	Timeout     time.Duration
	MaxRetries  int // レート制限時の再試行回数（0 なら再試行せず呼び出し元に返す）
	BaseBackoff time.Duration
}

// Client は OpenAI 互換 API クライアント
// Embedding と チャットの両方を提供する
type Client struct {
	client  openai.Client
	cfg     Config
	logger  *slog.Logger
	backoff time.Duration
}

// ClientOption は Client のオプション設定
type ClientOption func(*clientOptions)

type clientOptions struct {
	logger     *slog.Logger
	httpClient *http.Client
}

// WithLogger はロガーを設定する
func WithLogger(logger *slog.Logger) ClientOption {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// WithHTTPClient は HTTP クライアントを差し替える
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(o *clientOptions) {
		o.httpClient = hc
	}
}

// NewClient は新しい Client を作成する
func NewClient(cfg Config, opts ...ClientOption) *Client {
	options := clientOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultChatModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	backoff := cfg.BaseBackoff
	if backoff == 0 {
		backoff = BaseBackoff
	}

	// リトライは自前で制御する
	reqOpts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.APIKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(cfg.APIKey))
	} else {
		// Infinity などキー不要のバックエンド向け
		reqOpts = append(reqOpts, option.WithAPIKey("none"))
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	if options.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(options.httpClient))
	}

	return &Client{
		client:  openai.NewClient(reqOpts...),
		cfg:     cfg,
		logger:  options.logger,
		backoff: backoff,
	}
}

// ModelName はチャットモデル名を返す
func (c *Client) ModelName() string {
	return c.cfg.ChatModel
}

// withRetry は MaxRetries が設定されている場合に限り、レート制限エラーを Exponential Backoff で再試行する
func (c *Client) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	if c.cfg.MaxRetries <= 0 {
		if err := fn(ctx); err != nil {
			return classify(op, err)
		}
		return nil
	}

	var lastErr error

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoffDuration := time.Duration(math.Pow(2, float64(attempt-1))) * c.backoff
			if backoffDuration > MaxBackoff {
				backoffDuration = MaxBackoff
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoffDuration):
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if isRateLimitError(err) {
			c.logger.Warn("rate limited, retrying", "op", op, "attempt", attempt+1)
			continue
		}
		return classify(op, err)
	}

	return classify(op, fmt.Errorf("max retries exceeded: %w", lastErr))
}

func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// classify は SDK のエラーをドメインのエラー分類に変換する
func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500 {
			return domain.NewTransientError(providerName, op, err)
		}
		return domain.NewContractError(providerName, op, "%v", err)
	}

	// ネットワークエラーやタイムアウト
	return domain.NewTransientError(providerName, op, err)
}
