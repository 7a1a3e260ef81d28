package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/samber/mo"

	"github.com/jinford/doc-rag/internal/core/domain"
	"github.com/jinford/doc-rag/internal/core/ingestion"
)

// ModelRepository は Embedding モデル登録の PostgreSQL リポジトリです
type ModelRepository struct {
	db DBTX
}

// NewModelRepository は新しい ModelRepository を作成します
func NewModelRepository(db DBTX) *ModelRepository {
	return &ModelRepository{db: db}
}

var _ ingestion.ModelRegistry = (*ModelRepository)(nil)

const modelColumns = `id, name_in_backend, query_prefix, document_prefix, vector_dimension`

func scanModel(row pgx.Row) (*domain.Model, error) {
	var (
		id        pgtype.UUID
		name      string
		queryPfx  string
		docPfx    string
		dimension pgtype.Int4
	)
	if err := row.Scan(&id, &name, &queryPfx, &docPfx, &dimension); err != nil {
		return nil, err
	}
	return &domain.Model{
		ID:              fromPgUUID(id),
		NameInBackend:   name,
		QueryPrefix:     queryPfx,
		DocumentPrefix:  docPfx,
		VectorDimension: fromInt4(dimension),
	}, nil
}

// UpsertModel はモデルを1文で登録または更新する
// 同時に複数のインジェストが始まっても重複行は作られない
func (r *ModelRepository) UpsertModel(ctx context.Context, spec domain.ModelSpec) (*domain.Model, error) {
	if spec.Name == "" || spec.Dimension <= 0 {
		return nil, fmt.Errorf("%w: model name and positive dimension are required", domain.ErrInvalidConfiguration)
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO models (id, name_in_backend, query_prefix, document_prefix, vector_dimension)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name_in_backend) DO UPDATE
		SET query_prefix = EXCLUDED.query_prefix,
		    document_prefix = EXCLUDED.document_prefix,
		    vector_dimension = EXCLUDED.vector_dimension
		RETURNING `+modelColumns,
		pgUUID(uuid.New()), spec.Name, spec.QueryPrefix, spec.DocumentPrefix, int32(spec.Dimension),
	)
	model, err := scanModel(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert model: %w", err)
	}
	return model, nil
}

// RegisterModels は設定されたモデルをすべて登録する
func (r *ModelRepository) RegisterModels(ctx context.Context, specs []domain.ModelSpec) ([]*domain.Model, error) {
	models := make([]*domain.Model, 0, len(specs))
	for _, spec := range specs {
		m, err := r.UpsertModel(ctx, spec)
		if err != nil {
			return nil, fmt.Errorf("register %s: %w", spec.Name, err)
		}
		models = append(models, m)
	}
	return models, nil
}

// GetModelByName はバックエンド上のモデル名で取得する
func (r *ModelRepository) GetModelByName(ctx context.Context, name string) (mo.Option[*domain.Model], error) {
	row := r.db.QueryRow(ctx, `SELECT `+modelColumns+` FROM models WHERE name_in_backend = $1`, name)
	model, err := scanModel(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return mo.None[*domain.Model](), nil
		}
		return mo.None[*domain.Model](), fmt.Errorf("failed to get model: %w", err)
	}
	return mo.Some(model), nil
}

// ListModels は登録済みモデルを名前順で返す
func (r *ModelRepository) ListModels(ctx context.Context) ([]*domain.Model, error) {
	rows, err := r.db.Query(ctx, `SELECT `+modelColumns+` FROM models ORDER BY name_in_backend`)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	defer rows.Close()

	models := make([]*domain.Model, 0)
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan model: %w", err)
		}
		models = append(models, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	return models, nil
}
