package ingestion

import (
	"context"
)

// SourceDocument はドキュメントソースが列挙したドキュメント
type SourceDocument struct {
	Title string
	Link  string // 絶対URL（ドキュメントの同一性キー）
}

// DocumentSource はドキュメントの列挙と本文抽出を提供するインターフェース
// HTML ドキュメントサイト以外のソースにも対応するための拡張ポイント
type DocumentSource interface {
	// ListDocuments は取り込み対象のドキュメント一覧を返す
	ListDocuments(ctx context.Context) ([]SourceDocument, error)

	// FetchText はドキュメント本文をプレーンテキストで返す
	FetchText(ctx context.Context, link string) (string, error)
}
