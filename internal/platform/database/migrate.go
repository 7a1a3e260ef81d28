package database

import (
	"context"
	"fmt"

	"github.com/jinford/doc-rag/internal/core/domain"
	"github.com/jinford/doc-rag/internal/infra/postgres"
)

var migrationLockID = GenerateLockID("doc-rag", "migrate")

// Migrate はスキーマを適用します
// 複数プロセスが同時に起動してもアドバイザリロックで直列化されます
func Migrate(ctx context.Context, p *TransactionProvider) error {
	_, err := Transact(ctx, p, func(a *Adapter) (struct{}, error) {
		if err := a.Locks.Acquire(ctx, migrationLockID); err != nil {
			return struct{}{}, err
		}
		// 引数なしの Exec は simple protocol で複数文をまとめて実行できる
		if _, err := a.tx.Exec(ctx, postgres.Schema); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, nil
	})
	if err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

// RegisterModels は設定されたモデルを1トランザクションで登録します
func RegisterModels(ctx context.Context, p *TransactionProvider, specs []domain.ModelSpec) ([]*domain.Model, error) {
	return Transact(ctx, p, func(a *Adapter) ([]*domain.Model, error) {
		return a.Models.RegisterModels(ctx, specs)
	})
}
