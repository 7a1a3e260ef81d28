package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jinford/doc-rag/internal/core/domain"
)

// Service は類似検索とパッセージ取得のビジネスロジックを提供する
type Service struct {
	repo     Repository
	embedder Embedder
	reranker Reranker
	logger   *slog.Logger
}

type ServiceOption func(*Service)

// WithLogger は Service にロガーを設定する
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService は新しい Service を作成する
func NewService(repo Repository, embedder Embedder, reranker Reranker, opts ...ServiceOption) *Service {
	svc := &Service{
		repo:     repo,
		embedder: embedder,
		reranker: reranker,
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

// FindSimilar はクエリに近いドキュメントを距離の昇順で返す
func (s *Service) FindSimilar(ctx context.Context, params QueryParams) ([]SimilarDocument, error) {
	metric, err := params.Validate()
	if err != nil {
		return nil, err
	}

	model, vector, err := s.embedQuery(ctx, params.ModelName, params.Input)
	if err != nil {
		return nil, err
	}

	docs, err := s.repo.FindSimilarDocuments(ctx, vector, model.ID, metric, params.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find similar documents: %w", err)
	}

	s.logger.Debug("similar documents found",
		"model", model.NameInBackend,
		"metric", metric.String(),
		"count", len(docs),
	)
	return docs, nil
}

// RetrievePassages は近傍チャンクを取得して隣接区間を結合し、
// リランカーが返した順序で上位 TopDocuments 件のパッセージを返す
func (s *Service) RetrievePassages(ctx context.Context, params PassageParams) ([]MergedPassage, error) {
	metric, err := params.Validate()
	if err != nil {
		return nil, err
	}

	model, vector, err := s.embedQuery(ctx, params.ModelName, params.Input)
	if err != nil {
		return nil, err
	}

	chunks, err := s.repo.FindSimilarChunks(ctx, vector, model.ID, metric, params.TopChunks)
	if err != nil {
		return nil, fmt.Errorf("failed to find similar chunks: %w", err)
	}

	passages, err := Merge(chunks)
	if err != nil {
		return nil, err
	}
	if len(passages) == 0 {
		return passages, nil
	}

	topN := min(params.TopDocuments, len(passages))
	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}

	indices, err := s.reranker.Rerank(ctx, params.Input, texts, topN)
	if err != nil {
		return nil, fmt.Errorf("failed to rerank passages: %w", err)
	}

	selected, err := SelectRanked(passages, indices, topN)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("passages retrieved",
		"model", model.NameInBackend,
		"metric", metric.String(),
		"chunks", len(chunks),
		"merged", len(passages),
		"selected", len(selected),
	)
	return selected, nil
}

// SelectRanked はリランク結果のインデックス順にパッセージを選択する
// 範囲外・重複・topN 超過のインデックスはプロバイダの契約違反として扱う
func SelectRanked(passages []MergedPassage, indices []int, topN int) ([]MergedPassage, error) {
	if len(indices) > topN {
		return nil, domain.NewContractError("reranker", "rerank", "returned %d indices, requested at most %d", len(indices), topN)
	}

	seen := make(map[int]struct{}, len(indices))
	selected := make([]MergedPassage, 0, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= len(passages) {
			return nil, domain.NewContractError("reranker", "rerank", "index %d out of range [0,%d)", idx, len(passages))
		}
		if _, dup := seen[idx]; dup {
			return nil, domain.NewContractError("reranker", "rerank", "duplicate index %d", idx)
		}
		seen[idx] = struct{}{}
		selected = append(selected, passages[idx])
	}
	return selected, nil
}

func (s *Service) embedQuery(ctx context.Context, modelName, input string) (*domain.Model, []float32, error) {
	found, err := s.repo.GetModelByName(ctx, modelName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get model: %w", err)
	}
	model, ok := found.Get()
	if !ok {
		return nil, nil, fmt.Errorf("%w: model %q is not registered", domain.ErrNotFound, modelName)
	}

	vectors, err := s.embedder.Embed(ctx, []string{model.QueryPrefix + input}, model.NameInBackend)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, nil, domain.NewContractError("embedder", "embed", "returned %d vectors for 1 input", len(vectors))
	}
	if model.VectorDimension > 0 && len(vectors[0]) != model.VectorDimension {
		return nil, nil, domain.NewContractError("embedder", "embed", "vector dimension %d, expected %d", len(vectors[0]), model.VectorDimension)
	}
	return model, vectors[0], nil
}
