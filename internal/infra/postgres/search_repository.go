package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/samber/mo"

	"github.com/jinford/doc-rag/internal/core/domain"
	"github.com/jinford/doc-rag/internal/core/retrieval"
)

// SearchRepository は core/retrieval.Repository を実装する PostgreSQL リポジトリ。
type SearchRepository struct {
	db     DBTX
	models *ModelRepository
}

// NewSearchRepository は新しい SearchRepository を返す。
func NewSearchRepository(db DBTX) *SearchRepository {
	return &SearchRepository{db: db, models: NewModelRepository(db)}
}

var _ retrieval.Repository = (*SearchRepository)(nil)

// GetModelByName は ModelRepository に委譲する
func (r *SearchRepository) GetModelByName(ctx context.Context, name string) (mo.Option[*domain.Model], error) {
	return r.models.GetModelByName(ctx, name)
}

// FindSimilarChunks は距離の昇順でチャンクを返す
// 演算子は許可リストから選び、クエリベクトルはバインドパラメータで渡す
func (r *SearchRepository) FindSimilarChunks(ctx context.Context, queryVector []float32, modelID uuid.UUID, metric domain.Metric, limit int) ([]retrieval.RetrievedChunk, error) {
	op, err := DistanceOperator(metric)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT chunk_index, chunk_text, display_text, document_id, (vector %s $1::vector) AS distance
		FROM embeddings
		WHERE model_id = $2
		ORDER BY distance ASC
		LIMIT $3`, op)

	rows, err := r.db.Query(ctx, query, toVector(queryVector), pgUUID(modelID), int32(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to find similar chunks: %w", err)
	}
	defer rows.Close()

	results := make([]retrieval.RetrievedChunk, 0, limit)
	for rows.Next() {
		var (
			idx      int32
			chunk    string
			display  string
			docID    pgtype.UUID
			distance float64
		)
		if err := rows.Scan(&idx, &chunk, &display, &docID, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		results = append(results, retrieval.RetrievedChunk{
			ChunkIndex:  int(idx),
			ChunkText:   chunk,
			DisplayText: display,
			DocumentID:  fromPgUUID(docID),
			Distance:    distance,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to find similar chunks: %w", err)
	}
	return results, nil
}

// FindSimilarDocuments はドキュメントごとに MIN(distance) で集約して返す
// 同じドキュメントのチャンクが結果を占有しないようにする
func (r *SearchRepository) FindSimilarDocuments(ctx context.Context, queryVector []float32, modelID uuid.UUID, metric domain.Metric, limit int) ([]retrieval.SimilarDocument, error) {
	op, err := DistanceOperator(metric)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT d.title, d.link, MIN(e.vector %s $1::vector) AS distance
		FROM embeddings e
		JOIN documents d ON d.id = e.document_id
		WHERE e.model_id = $2
		GROUP BY d.id, d.title, d.link
		ORDER BY distance ASC
		LIMIT $3`, op)

	rows, err := r.db.Query(ctx, query, toVector(queryVector), pgUUID(modelID), int32(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to find similar documents: %w", err)
	}
	defer rows.Close()

	results := make([]retrieval.SimilarDocument, 0, limit)
	for rows.Next() {
		var doc retrieval.SimilarDocument
		if err := rows.Scan(&doc.Title, &doc.Link, &doc.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		results = append(results, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to find similar documents: %w", err)
	}
	return results, nil
}
