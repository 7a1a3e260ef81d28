package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/jinford/doc-rag/internal/core/domain"
	"github.com/jinford/doc-rag/internal/core/ingestion"
)

const (
	// MaxSaveAttempts は合成IDの衝突時に SaveEmbedding を試行する最大回数
	MaxSaveAttempts = 3

	embeddingsPkey = "embeddings_pkey"
)

// EmbeddingRepository はチャンクベクトルの保存と近傍検索を行う PostgreSQL リポジトリです
type EmbeddingRepository struct {
	db     DBTX
	newID  func() uuid.UUID
	logger *slog.Logger
}

// EmbeddingRepositoryOption は EmbeddingRepository のオプション設定
type EmbeddingRepositoryOption func(*EmbeddingRepository)

// WithIDGenerator は合成IDの生成関数を差し替える
func WithIDGenerator(fn func() uuid.UUID) EmbeddingRepositoryOption {
	return func(r *EmbeddingRepository) {
		r.newID = fn
	}
}

// WithRepositoryLogger はロガーを設定する
func WithRepositoryLogger(logger *slog.Logger) EmbeddingRepositoryOption {
	return func(r *EmbeddingRepository) {
		r.logger = logger
	}
}

// NewEmbeddingRepository は新しい EmbeddingRepository を作成します
func NewEmbeddingRepository(db DBTX, opts ...EmbeddingRepositoryOption) *EmbeddingRepository {
	r := &EmbeddingRepository{db: db, newID: uuid.New, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

var _ ingestion.EmbeddingWriter = (*EmbeddingRepository)(nil)

// SaveEmbedding は (document_id, model_id, chunk_index) をキーに upsert する
// 合成IDの主キー衝突はデータエラーではないため、IDを振り直して再試行する
func (r *EmbeddingRepository) SaveEmbedding(ctx context.Context, e *domain.Embedding) (*domain.Embedding, error) {
	var lastErr error
	for attempt := 1; attempt <= MaxSaveAttempts; attempt++ {
		saved, err := r.upsertEmbedding(ctx, r.newID(), e)
		if err == nil {
			return saved, nil
		}
		if !isConstraintViolation(err, embeddingsPkey) {
			return nil, fmt.Errorf("failed to save embedding: %w", err)
		}
		lastErr = err
		r.logger.Warn("Embedding IDが衝突したため再試行",
			"documentID", e.DocumentID,
			"chunkIndex", e.ChunkIndex,
			"attempt", attempt,
		)
	}
	return nil, fmt.Errorf("failed to save embedding after %d attempts: %w", MaxSaveAttempts, lastErr)
}

func (r *EmbeddingRepository) upsertEmbedding(ctx context.Context, id uuid.UUID, e *domain.Embedding) (*domain.Embedding, error) {
	var (
		savedID   pgtype.UUID
		updatedAt pgtype.Timestamptz
	)
	err := r.db.QueryRow(ctx, `
		INSERT INTO embeddings (id, document_id, model_id, chunk_index, vector, chunk_text, display_text)
		VALUES ($1, $2, $3, $4, $5::vector, $6, $7)
		ON CONFLICT (document_id, model_id, chunk_index) DO UPDATE
		SET vector = EXCLUDED.vector,
		    chunk_text = EXCLUDED.chunk_text,
		    display_text = EXCLUDED.display_text,
		    updated_at = now()
		RETURNING id, updated_at`,
		pgUUID(id),
		pgUUID(e.DocumentID),
		pgUUID(e.ModelID),
		int32(e.ChunkIndex),
		toVector(e.Vector),
		e.ChunkText,
		e.DisplayText,
	).Scan(&savedID, &updatedAt)
	if err != nil {
		return nil, err
	}

	saved := *e
	saved.ID = fromPgUUID(savedID)
	saved.UpdatedAt = fromTimestamptz(updatedAt)
	return &saved, nil
}

// DeleteEmbeddingsFrom は fromIndex 以上の chunk_index を持つ行を削除する
func (r *EmbeddingRepository) DeleteEmbeddingsFrom(ctx context.Context, documentID, modelID uuid.UUID, fromIndex int) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM embeddings
		WHERE document_id = $1 AND model_id = $2 AND chunk_index >= $3`,
		pgUUID(documentID), pgUUID(modelID), int32(fromIndex),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale embeddings: %w", err)
	}
	return tag.RowsAffected(), nil
}
