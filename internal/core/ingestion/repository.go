package ingestion

import (
	"context"

	"github.com/google/uuid"

	"github.com/jinford/doc-rag/internal/core/chunk"
	"github.com/jinford/doc-rag/internal/core/domain"
)

// DocumentStore はドキュメントメタデータの永続化
type DocumentStore interface {
	UpsertDocument(ctx context.Context, title, link string) (*domain.Document, error)
	AddTranslatedTitle(ctx context.Context, id uuid.UUID, text string) (*domain.Document, error)
}

// ModelRegistry は登録済み Embedding モデルの参照
type ModelRegistry interface {
	ListModels(ctx context.Context) ([]*domain.Model, error)
}

// EmbeddingWriter はチャンクベクトルの永続化
type EmbeddingWriter interface {
	// SaveEmbedding は (DocumentID, ModelID, ChunkIndex) をキーに upsert する
	SaveEmbedding(ctx context.Context, e *domain.Embedding) (*domain.Embedding, error)
	// DeleteEmbeddingsFrom は fromIndex 以上の ChunkIndex を持つ行を削除する
	DeleteEmbeddingsFrom(ctx context.Context, documentID, modelID uuid.UUID, fromIndex int) (int64, error)
}

// Embedder はテキストの Embedding 生成
// 戻り値の件数が texts と一致することは呼び出し側で検証する
type Embedder interface {
	Embed(ctx context.Context, texts []string, modelName string) ([][]float32, error)
}

// Enricher はタイトル翻訳とチャンクの翻訳・要約を行う
type Enricher interface {
	Translate(ctx context.Context, text string) (string, error)
	Summarize(ctx context.Context, text string) (string, error)
}

// Chunker はテキストをトークン単位のチャンクに分割する
type Chunker interface {
	Chunk(text string, documentID uuid.UUID, params chunk.Params) ([]chunk.Chunk, error)
}
