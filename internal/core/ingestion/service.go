package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jinford/doc-rag/internal/core/chunk"
	"github.com/jinford/doc-rag/internal/core/domain"
)

// Stats はインジェスト1回分の集計（詳細はログにのみ出力する）
type Stats struct {
	Success          bool          `json:"success"`
	Total            int           `json:"total"` // 処理対象ドキュメント数
	Documents        int           `json:"documents"`
	FailedDocuments  int           `json:"failedDocuments"`
	SkippedDocuments int           `json:"skippedDocuments"` // 本文が空で Embedding を行わなかった数
	Chunks           int           `json:"chunks"`
	Embeddings       int           `json:"embeddings"`
	FailedEmbeddings int           `json:"failedEmbeddings"`
	FailedBatches    int           `json:"failedBatches"`
	Mismatches       int           `json:"mismatches"` // ベクトル数不一致でスキップしたバッチ数
	Pruned           int64         `json:"pruned"`
	Duration         time.Duration `json:"duration"`
}

// documentResult は1ドキュメント分の処理結果
type documentResult struct {
	Link    string
	Chunks  int
	Models  []ModelResult
	Skipped bool
	Err     error
}

func (s *Stats) add(r documentResult) {
	if r.Err != nil {
		s.FailedDocuments++
		return
	}
	if r.Skipped {
		s.SkippedDocuments++
		return
	}
	s.Documents++
	s.Chunks += r.Chunks
	for _, m := range r.Models {
		s.Pruned += m.Pruned
		for _, b := range m.Batches {
			switch {
			case b.Err == nil:
				s.Embeddings += b.Saved
				s.FailedEmbeddings += b.Failed
			case errors.Is(b.Err, domain.ErrProviderContractViolation):
				s.Mismatches++
				s.FailedEmbeddings += b.Size
			default:
				s.FailedBatches++
				s.FailedEmbeddings += b.Size
			}
		}
	}
}

// Service はドキュメント列挙から Embedding 保存までのインジェストを駆動する
type Service struct {
	source   DocumentSource
	docs     DocumentStore
	models   ModelRegistry
	writer   EmbeddingWriter
	embedder Embedder
	chunker  Chunker
	enricher Enricher // オプショナル
	logger   *slog.Logger
}

type ServiceOption func(*Service)

// WithLogger は Service にロガーを設定する
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithEnricher はタイトル翻訳・チャンク加工に使う Enricher を設定する
func WithEnricher(enricher Enricher) ServiceOption {
	return func(s *Service) {
		s.enricher = enricher
	}
}

// NewService は新しい Service を作成する
func NewService(
	source DocumentSource,
	docs DocumentStore,
	models ModelRegistry,
	writer EmbeddingWriter,
	embedder Embedder,
	chunker Chunker,
	opts ...ServiceOption,
) *Service {
	svc := &Service{
		source:   source,
		docs:     docs,
		models:   models,
		writer:   writer,
		embedder: embedder,
		chunker:  chunker,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc
}

// Run はインジェストを最後まで実行して集計を返す
// ドキュメント単位・バッチ単位のエラーはログに残して処理を続行する
func (s *Service) Run(ctx context.Context, params Params) (*Stats, error) {
	startTime := time.Now()

	if err := params.Validate(); err != nil {
		return nil, err
	}
	if params.Enrich != EnrichNone && s.enricher == nil {
		return nil, invalidf("enrichment mode %q requires an enricher", params.Enrich)
	}

	models, err := s.selectModels(ctx, params.ModelNames)
	if err != nil {
		return nil, err
	}

	listed, err := s.source.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	s.logger.Info("インジェスト開始",
		"documents", len(listed),
		"models", len(models),
		"chunkSize", params.ChunkSize,
		"chunkOverlap", params.ChunkOverlap,
		"batchSize", params.BatchSize,
		"concurrency", params.Concurrency,
	)

	stats := &Stats{}

	documents := make([]*domain.Document, 0, len(listed))
	for _, src := range listed {
		doc, err := s.docs.UpsertDocument(ctx, src.Title, src.Link)
		if err != nil {
			s.logger.Warn("ドキュメントの登録に失敗", "link", src.Link, "error", err)
			stats.FailedDocuments++
			continue
		}
		documents = append(documents, doc)
	}

	if params.Limit > 0 && len(documents) > params.Limit {
		documents = documents[:params.Limit]
	}
	stats.Total = len(documents)

	// 各ゴルーチンは自分のスロットにのみ書き込む
	results := make([]documentResult, len(documents))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(params.Concurrency)
	for i, doc := range documents {
		g.Go(func() error {
			results[i] = s.processDocument(gctx, doc, models, params)
			return sleepContext(gctx, params.delay())
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Warn("インジェストが中断されました", "error", err)
	}

	for _, r := range results {
		stats.add(r)
	}
	stats.Success = ctx.Err() == nil
	stats.Duration = time.Since(startTime)

	if stats.FailedDocuments > 0 || stats.FailedEmbeddings > 0 {
		s.logger.Warn("インジェスト完了（一部失敗あり）",
			"total", stats.Total,
			"documents", stats.Documents,
			"failedDocuments", stats.FailedDocuments,
			"skippedDocuments", stats.SkippedDocuments,
			"embeddings", stats.Embeddings,
			"failedEmbeddings", stats.FailedEmbeddings,
			"failedBatches", stats.FailedBatches,
			"mismatches", stats.Mismatches,
			"duration", stats.Duration,
		)
	} else {
		s.logger.Info("インジェスト完了",
			"total", stats.Total,
			"chunks", stats.Chunks,
			"embeddings", stats.Embeddings,
			"pruned", stats.Pruned,
			"duration", stats.Duration,
		)
	}

	return stats, nil
}

// selectModels は登録済みモデルを許可リストで絞り込む
func (s *Service) selectModels(ctx context.Context, allow []string) ([]*domain.Model, error) {
	registered, err := s.models.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	if len(allow) == 0 {
		return registered, nil
	}

	selected := make([]*domain.Model, 0, len(allow))
	for _, m := range registered {
		if slices.Contains(allow, m.NameInBackend) {
			selected = append(selected, m)
		}
	}
	for _, name := range allow {
		if !slices.ContainsFunc(selected, func(m *domain.Model) bool { return m.NameInBackend == name }) {
			s.logger.Warn("許可リストのモデルが未登録です", "model", name)
		}
	}
	return selected, nil
}

func (s *Service) processDocument(ctx context.Context, doc *domain.Document, models []*domain.Model, params Params) documentResult {
	result := documentResult{Link: doc.SourceLink}

	if params.TranslateTitles && s.enricher != nil && doc.TranslatedTitle == nil {
		s.translateTitle(ctx, doc)
	}

	text, err := s.source.FetchText(ctx, doc.SourceLink)
	if err != nil {
		s.logger.Warn("ドキュメント本文の取得に失敗", "link", doc.SourceLink, "error", err)
		result.Err = err
		return result
	}
	// 本文が空のときは保存済みの Embedding に触れない
	if strings.TrimSpace(text) == "" {
		s.logger.Warn("ドキュメント本文が空のためスキップ", "link", doc.SourceLink)
		result.Skipped = true
		return result
	}

	chunks, err := s.chunker.Chunk(text, doc.ID, params.chunkParams())
	if err != nil {
		s.logger.Warn("チャンク化に失敗", "link", doc.SourceLink, "error", err)
		result.Err = err
		return result
	}
	if len(chunks) == 0 {
		s.logger.Warn("チャンクが生成されなかったためスキップ", "link", doc.SourceLink)
		result.Skipped = true
		return result
	}
	result.Chunks = len(chunks)

	inputs := s.embeddingInputs(ctx, chunks, params.Enrich)

	for _, model := range models {
		result.Models = append(result.Models,
			embedBatches(ctx, s.embedder, s.writer, s.logger, doc, model, chunks, inputs, params.BatchSize))
	}

	s.logger.Debug("ドキュメント処理完了",
		"documentID", doc.ID,
		"link", doc.SourceLink,
		"chunks", len(chunks),
	)
	return result
}

func (s *Service) translateTitle(ctx context.Context, doc *domain.Document) {
	translated, err := s.enricher.Translate(ctx, doc.Title)
	if err != nil || translated == "" {
		s.logger.Warn("タイトルの翻訳に失敗", "documentID", doc.ID, "error", err)
		return
	}
	if _, err := s.docs.AddTranslatedTitle(ctx, doc.ID, translated); err != nil {
		s.logger.Warn("翻訳タイトルの保存に失敗", "documentID", doc.ID, "error", err)
	}
}

// embeddingInputs は Embedding に渡すテキストを返す
// 加工に失敗したチャンクは元のテキストを使う。保存する本文は常に元のテキスト
func (s *Service) embeddingInputs(ctx context.Context, chunks []chunk.Chunk, mode EnrichMode) []string {
	inputs := make([]string, len(chunks))
	for i, ch := range chunks {
		inputs[i] = ch.FullText
		if mode == EnrichNone {
			continue
		}

		var enriched string
		var err error
		switch mode {
		case EnrichTranslate:
			enriched, err = s.enricher.Translate(ctx, ch.FullText)
		case EnrichSummarize:
			enriched, err = s.enricher.Summarize(ctx, ch.FullText)
		}
		if err != nil || enriched == "" {
			s.logger.Warn("チャンクの加工に失敗、元のテキストを使用",
				"documentID", ch.DocumentID,
				"chunkIndex", ch.Index,
				"mode", string(mode),
				"error", err,
			)
			continue
		}
		inputs[i] = enriched
	}
	return inputs
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
