package chunk

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/jinford/doc-rag/internal/core/domain"
)

// TokenChunker はトークン数を基準に重複付きチャンクへ分割する
// 同じトークナイザ系列のモデル間でチャンク境界が一致する
type TokenChunker struct {
	tokenizer Tokenizer
}

// NewTokenChunker は新しい TokenChunker を作成する
func NewTokenChunker(tokenizer Tokenizer) *TokenChunker {
	return &TokenChunker{tokenizer: tokenizer}
}

// Validate は Size と Overlap の関係を検証する
func (p Params) Validate() error {
	if p.Size <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidConfiguration, p.Size)
	}
	if p.Overlap < 0 {
		return fmt.Errorf("%w: chunk overlap must not be negative, got %d", domain.ErrInvalidConfiguration, p.Overlap)
	}
	if p.Step() < 1 {
		return fmt.Errorf("%w: chunk overlap (%d) must be smaller than chunk size (%d)", domain.ErrInvalidConfiguration, p.Overlap, p.Size)
	}
	return nil
}

// Chunk はテキストをチャンク列に分割する。入力のみに依存する純粋関数
// 最終チャンクは Size 未満になりうる（パディングしない）
func (c *TokenChunker) Chunk(text string, documentID uuid.UUID, params Params) ([]Chunk, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if text == "" {
		return []Chunk{}, nil
	}

	tokens := c.tokenizer.Encode(text)
	step := params.Step()
	chunks := make([]Chunk, 0, len(tokens)/step+1)

	for pos, idx := 0, 0; pos < len(tokens); pos, idx = pos+step, idx+1 {
		end := min(pos+params.Size, len(tokens))
		window := tokens[pos:end]

		displayStart := 0
		if idx > 0 {
			displayStart = min(params.Overlap, len(window))
		}

		fullText := c.tokenizer.Decode(window)
		displayText := fullText
		if displayStart > 0 {
			displayText = c.tokenizer.Decode(window[displayStart:])
		}

		chunks = append(chunks, Chunk{
			Index:       idx,
			FullText:    fullText,
			DisplayText: displayText,
			DocumentID:  documentID,
			TokenCount:  len(window),
		})
	}

	return chunks, nil
}
