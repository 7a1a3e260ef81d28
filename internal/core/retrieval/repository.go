package retrieval

import (
	"context"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/jinford/doc-rag/internal/core/domain"
)

// Repository は検索に必要なデータアクセス
// テスト時のモック用に消費者側で定義
type Repository interface {
	GetModelByName(ctx context.Context, name string) (mo.Option[*domain.Model], error)
	FindSimilarChunks(ctx context.Context, queryVector []float32, modelID uuid.UUID, metric domain.Metric, limit int) ([]RetrievedChunk, error)
	FindSimilarDocuments(ctx context.Context, queryVector []float32, modelID uuid.UUID, metric domain.Metric, limit int) ([]SimilarDocument, error)
}

// Embedder はクエリの Embedding を生成する
// 戻り値の件数は texts と一致しなければならない
type Embedder interface {
	Embed(ctx context.Context, texts []string, modelName string) ([][]float32, error)
}

// Reranker はクエリに対する関連度順にドキュメントの元インデックスを返す
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]int, error)
}
