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

// DocumentRepository はドキュメントメタデータの PostgreSQL リポジトリです
type DocumentRepository struct {
	db DBTX
}

// NewDocumentRepository は新しい DocumentRepository を作成します
func NewDocumentRepository(db DBTX) *DocumentRepository {
	return &DocumentRepository{db: db}
}

var _ ingestion.DocumentStore = (*DocumentRepository)(nil)

const documentColumns = `id, title, translated_title, link, created_at, updated_at`

func scanDocument(row pgx.Row) (*domain.Document, error) {
	var (
		id         pgtype.UUID
		title      string
		translated pgtype.Text
		link       string
		createdAt  pgtype.Timestamptz
		updatedAt  pgtype.Timestamptz
	)
	if err := row.Scan(&id, &title, &translated, &link, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	return &domain.Document{
		ID:              fromPgUUID(id),
		Title:           title,
		TranslatedTitle: optionalText(translated),
		SourceLink:      link,
		CreatedAt:       fromTimestamptz(createdAt),
		UpdatedAt:       fromTimestamptz(updatedAt),
	}, nil
}

// UpsertDocument はリンクをキーにドキュメントを登録する
// 既存の場合は ID を保ったまま Title を更新する
func (r *DocumentRepository) UpsertDocument(ctx context.Context, title, link string) (*domain.Document, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO documents (id, title, link)
		VALUES ($1, $2, $3)
		ON CONFLICT (link) DO UPDATE
		SET title = EXCLUDED.title, updated_at = now()
		RETURNING `+documentColumns,
		pgUUID(uuid.New()), title, link,
	)
	doc, err := scanDocument(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert document: %w", err)
	}
	return doc, nil
}

// FindByLink はリンクでドキュメントを取得する
func (r *DocumentRepository) FindByLink(ctx context.Context, link string) (mo.Option[*domain.Document], error) {
	row := r.db.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE link = $1`, link)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return mo.None[*domain.Document](), nil
		}
		return mo.None[*domain.Document](), fmt.Errorf("failed to find document: %w", err)
	}
	return mo.Some(doc), nil
}

// AddTranslatedTitle は翻訳済みタイトルを保存する
func (r *DocumentRepository) AddTranslatedTitle(ctx context.Context, id uuid.UUID, text string) (*domain.Document, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE documents
		SET translated_title = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+documentColumns,
		pgUUID(id), text,
	)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: document %s", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to add translated title: %w", err)
	}
	return doc, nil
}
