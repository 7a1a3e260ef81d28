// Package rerank はクロスエンコーダ型リランカー（Infinity / Cohere 互換の /rerank）のクライアントを提供する
package rerank

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
	"github.com/jinford/doc-rag/internal/core/retrieval"
)

const (
	DefaultURL     = "http://embeddings:7997/rerank"
	DefaultModel   = "qilowoq/bge-reranker-v2-m3-en-ru"
	DefaultTimeout = 30 * time.Second

	providerName = "reranker"
)

type rerankRequest struct {
	Model           string   `json:"model"`
	Query           string   `json:"query"`
	Documents       []string `json:"documents"`
	ReturnDocuments bool     `json:"return_documents"`
	RawScores       bool     `json:"raw_scores"`
	TopN            int      `json:"top_n"`
}

type rerankResult struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

type rerankResponse struct {
	Results []rerankResult `json:"results"`
}

// Client はリランカー API クライアント
type Client struct {
	http   *http.Client
	url    string
	model  string
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

// WithTimeout はタイムアウトを設定する
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.http.Timeout = timeout
	}
}

// NewClient は新しい Client を作成する
func NewClient(url, model string, opts ...ClientOption) *Client {
	if url == "" {
		url = DefaultURL
	}
	if model == "" {
		model = DefaultModel
	}

	c := &Client{
		http:   &http.Client{Timeout: DefaultTimeout},
		url:    url,
		model:  model,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Rerank は関連度の高い順に文書の位置を返す
// 位置の妥当性検証は呼び出し側で行う
func (c *Client) Rerank(ctx context.Context, query string, documents []string, topN int) ([]int, error) {
	jsonBody, err := json.Marshal(rerankRequest{
		Model:     c.model,
		Query:     query,
		Documents: documents,
		TopN:      topN,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, domain.NewTransientError(providerName, "rerank", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, domain.NewTransientError(providerName, "rerank", fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(body)))
		}
		return nil, domain.NewContractError(providerName, "rerank", "status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var out rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		// タイムアウトで本文の読み込みが途切れた場合は一時的エラー
		var netErr net.Error
		if ctx.Err() != nil || (errors.As(err, &netErr) && netErr.Timeout()) {
			return nil, domain.NewTransientError(providerName, "rerank", fmt.Errorf("read response: %w", err))
		}
		return nil, domain.NewContractError(providerName, "rerank", "decode response: %v", err)
	}

	indices := make([]int, len(out.Results))
	for i, r := range out.Results {
		indices[i] = r.Index
	}

	c.logger.Debug("rerank completed", "documents", len(documents), "topN", topN, "results", len(indices))
	return indices, nil
}

var _ retrieval.Reranker = (*Client)(nil)
