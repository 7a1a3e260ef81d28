package database

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Manager はトランザクションスコープのアドバイザリロック取得を仲介します
type Manager struct {
	tx pgx.Tx
}

// NewManager はトランザクションからロックマネージャーを生成します
func NewManager(tx pgx.Tx) *Manager {
	return &Manager{tx: tx}
}

// GenerateLockID は文字列からロックIDを生成します
func GenerateLockID(parts ...string) int64 {
	h := sha256.New()
	for _, part := range parts {
		h.Write([]byte(part))
	}
	hash := h.Sum(nil)

	var id int64
	for i := range 8 {
		id = (id << 8) | int64(hash[i])
	}
	return id
}

// Acquire は pg_advisory_xact_lock を取得します
// ロックはトランザクション終了時に自動的に解放されます
func (m *Manager) Acquire(ctx context.Context, lockID int64) error {
	if _, err := m.tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", lockID); err != nil {
		return fmt.Errorf("failed to acquire advisory lock: %w", err)
	}
	return nil
}
