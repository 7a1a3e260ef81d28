package ask

import (
	"github.com/jinford/doc-rag/internal/core/retrieval"
)

// Role はチャットメッセージの話者
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message はチャットバックエンドへ送る1メッセージ
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// AskParams は質問応答のパラメータを表す
type AskParams struct {
	Input        string // ユーザーの質問文
	ModelName    string // クエリ Embedding に使うモデル
	Metric       string
	TopChunks    int // 近傍検索で取得するチャンク数（デフォルト: 10）
	TopDocuments int // リランク後にコンテキストへ入れるパッセージ数（デフォルト: 2）
}

// AskResult は非ストリーミング応答の結果を表す
type AskResult struct {
	Answer   string                    `json:"answer"`
	Passages []retrieval.MergedPassage `json:"passages,omitempty"`
}

func (p AskParams) passageParams() retrieval.PassageParams {
	return retrieval.PassageParams{
		Input:        p.Input,
		ModelName:    p.ModelName,
		Metric:       p.Metric,
		TopChunks:    p.TopChunks,
		TopDocuments: p.TopDocuments,
	}
}
