package ingestion

import (
	"fmt"
	"time"

	"github.com/jinford/doc-rag/internal/core/chunk"
	"github.com/jinford/doc-rag/internal/core/domain"
)

// EnrichMode はチャンクを Embedding 前に加工する方式
type EnrichMode string

const (
	EnrichNone      EnrichMode = ""
	EnrichTranslate EnrichMode = "translate"
	EnrichSummarize EnrichMode = "summarize"
)

const (
	DefaultDelayMs      = 1000
	DefaultChunkSize    = 1500
	DefaultChunkOverlap = 300
	DefaultBatchSize    = 16
	DefaultConcurrency  = 1

	MaxDelayMs      = 10000
	MaxChunkSize    = 5000
	MaxChunkOverlap = 1000
	MaxBatchSize    = 64
	MaxConcurrency  = 8
)

// Params はインジェスト1回分の設定（境界で一度だけ検証し、値渡しで引き回す）
type Params struct {
	DelayMs         int        `json:"delayMs"`         // ドキュメント間の待機時間
	ChunkSize       int        `json:"chunkSize"`       // チャンクのトークン数
	ChunkOverlap    int        `json:"chunkOverlap"`    // 前チャンクと重複させるトークン数
	BatchSize       int        `json:"batchSize"`       // Embedding API 1回あたりの入力数
	Limit           int        `json:"limit"`           // 処理するドキュメント数の上限（0 は全件）
	Concurrency     int        `json:"concurrency"`     // 同時に処理するドキュメント数
	ModelNames      []string   `json:"modelNames"`      // 対象モデルの許可リスト（空は全モデル）
	TranslateTitles bool       `json:"translateTitles"` // タイトルを英訳して保存する
	Enrich          EnrichMode `json:"enrich"`          // チャンクの翻訳・要約
}

// DefaultParams はデフォルトのインジェスト設定を返す
func DefaultParams() Params {
	return Params{
		DelayMs:      DefaultDelayMs,
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
		BatchSize:    DefaultBatchSize,
		Concurrency:  DefaultConcurrency,
	}
}

// Validate は範囲外の値を ErrInvalidConfiguration で拒否する
func (p Params) Validate() error {
	switch {
	case p.DelayMs < 0 || p.DelayMs > MaxDelayMs:
		return invalidf("delayMs must be in [0,%d], got %d", MaxDelayMs, p.DelayMs)
	case p.ChunkSize <= 0 || p.ChunkSize > MaxChunkSize:
		return invalidf("chunkSize must be in (0,%d], got %d", MaxChunkSize, p.ChunkSize)
	case p.ChunkOverlap < 0 || p.ChunkOverlap >= MaxChunkOverlap:
		return invalidf("chunkOverlap must be in [0,%d), got %d", MaxChunkOverlap, p.ChunkOverlap)
	case p.ChunkOverlap >= p.ChunkSize:
		return invalidf("chunkOverlap (%d) must be less than chunkSize (%d)", p.ChunkOverlap, p.ChunkSize)
	case p.BatchSize <= 0 || p.BatchSize > MaxBatchSize:
		return invalidf("batchSize must be in (0,%d], got %d", MaxBatchSize, p.BatchSize)
	case p.Limit < 0:
		return invalidf("limit must not be negative, got %d", p.Limit)
	case p.Concurrency < 1 || p.Concurrency > MaxConcurrency:
		return invalidf("concurrency must be in [1,%d], got %d", MaxConcurrency, p.Concurrency)
	}

	switch p.Enrich {
	case EnrichNone, EnrichTranslate, EnrichSummarize:
	default:
		return invalidf("unknown enrichment mode %q", p.Enrich)
	}
	return nil
}

func (p Params) chunkParams() chunk.Params {
	return chunk.Params{Size: p.ChunkSize, Overlap: p.ChunkOverlap}
}

func (p Params) delay() time.Duration {
	return time.Duration(p.DelayMs) * time.Millisecond
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidConfiguration, fmt.Sprintf(format, args...))
}
