package chunk

import "github.com/google/uuid"

// Chunk はトークン窓で切り出したドキュメントの断片
// FullText は前チャンクとの重複トークンを含み（Embedding 用）、
// DisplayText は重複部分を除いたもの（表示・結合用）。Index 0 では両者は等しい
type Chunk struct {
	Index       int
	FullText    string
	DisplayText string
	DocumentID  uuid.UUID
	TokenCount  int
}

// Params はチャンク分割のパラメータ
type Params struct {
	Size    int // 1チャンクの最大トークン数
	Overlap int // 前チャンクと重複させるトークン数
}

// Step は次のチャンク開始位置までのトークン数を返す
func (p Params) Step() int {
	return p.Size - p.Overlap
}
