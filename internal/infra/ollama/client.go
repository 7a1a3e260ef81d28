// Package ollama は Ollama HTTP API を使ったモデルバックエンド実装を提供する
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/jinford/doc-rag/internal/core/domain"
)

const (
	DefaultBaseURL          = "http://localhost:11434"
	DefaultTimeout          = 60 * time.Second
	DefaultChatModel        = "llama3.1:8b"
	DefaultMainModel        = "llama3.1:8b"
	DefaultTranslationModel = "llama3.1:8b"
	DefaultSourceLanguage   = "Russian"

	providerName = "ollama"
)

// Config は Ollama クライアントの設定
type Config struct {
	BaseURL          string
	Timeout          time.Duration // 非ストリーミング呼び出しのタイムアウト
	ChatModel        string        // 回答生成に使うモデル
	MainModel        string        // 要約に使うモデル
	TranslationModel string        // 翻訳に使うモデル
	SourceLanguage   string        // 翻訳元の言語
}

// Client は Ollama API クライアント
type Client struct {
	http   *http.Client
	cfg    Config
	logger *slog.Logger
}

// ClientOption は Client のオプション設定
type ClientOption func(*Client)

// WithLogger はロガーを設定する
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient は HTTP クライアントを差し替える
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// NewClient は新しい Client を作成する
func NewClient(cfg Config, opts ...ClientOption) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultChatModel
	}
	if cfg.MainModel == "" {
		cfg.MainModel = DefaultMainModel
	}
	if cfg.TranslationModel == "" {
		cfg.TranslationModel = DefaultTranslationModel
	}
	if cfg.SourceLanguage == "" {
		cfg.SourceLanguage = DefaultSourceLanguage
	}

	c := &Client{
		// ストリーミングを打ち切らないようにクライアント全体のタイムアウトは設定しない
		http:   &http.Client{},
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// post は JSON リクエストを送信し、200 以外をエラー分類して返す
// 呼び出し側でレスポンスボディを閉じる
func (c *Client) post(ctx context.Context, op, path string, body any) (*http.Response, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, domain.NewTransientError(providerName, op, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, statusError(op, resp)
	}
	return resp, nil
}

func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	err := fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return domain.NewTransientError(providerName, op, err)
	}
	return domain.NewContractError(providerName, op, "%v", err)
}

// decodeError はレスポンス本文の解析失敗を分類する
// キャンセルやタイムアウトで読み込みが途切れた場合は一時的エラーとする
func decodeError(ctx context.Context, op string, err error) error {
	var netErr net.Error
	if ctx.Err() != nil || (errors.As(err, &netErr) && netErr.Timeout()) {
		return domain.NewTransientError(providerName, op, fmt.Errorf("read response: %w", err))
	}
	return domain.NewContractError(providerName, op, "decode response: %v", err)
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.cfg.Timeout)
}
