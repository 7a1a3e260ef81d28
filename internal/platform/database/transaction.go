package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jinford/doc-rag/internal/infra/postgres"
)

// TransactionProvider は pgx のトランザクションをコールバックの内側に閉じ込める
type TransactionProvider struct {
	pool *pgxpool.Pool
}

// NewTransactionProvider は新しいTransactionProviderを作成します
func NewTransactionProvider(pool *pgxpool.Pool) *TransactionProvider {
	return &TransactionProvider{pool: pool}
}

// Adapter は1トランザクション内で動くリポジトリ群
type Adapter struct {
	Documents  *postgres.DocumentRepository
	Models     *postgres.ModelRepository
	Embeddings *postgres.EmbeddingRepository
	Locks      *Manager

	tx pgx.Tx
}

func newAdapter(tx pgx.Tx) *Adapter {
	return &Adapter{
		Documents:  postgres.NewDocumentRepository(tx),
		Models:     postgres.NewModelRepository(tx),
		Embeddings: postgres.NewEmbeddingRepository(tx),
		Locks:      NewManager(tx),
		tx:         tx,
	}
}

// Transact はトランザクションを開始し、fn がエラーを返せばロールバックする
func Transact[T any](ctx context.Context, p *TransactionProvider, fn func(*Adapter) (T, error)) (T, error) {
	var zero T
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return zero, fmt.Errorf("failed to begin transaction: %w", err)
	}

	adapters := newAdapter(tx)

	result, err := fn(adapters)
	if err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return zero, fmt.Errorf("tx rollback failed: %v (original err: %w)", rbErr, err)
		}
		return zero, err
	}

	if err := tx.Commit(ctx); err != nil {
		return zero, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return result, nil
}
