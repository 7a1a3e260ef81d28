package chunk

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding はデフォルトで使用する tiktoken エンコーディング
const DefaultEncoding = "cl100k_base"

// Tokenizer はテキストとトークン列の相互変換インターフェース
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

// TiktokenTokenizer は tiktoken を利用した Tokenizer 実装
type TiktokenTokenizer struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktokenTokenizer は指定エンコーディングの Tokenizer を作成する
func NewTiktokenTokenizer(encoding string) (*TiktokenTokenizer, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding: %w", err)
	}
	return &TiktokenTokenizer{encoding: enc}, nil
}

func (t *TiktokenTokenizer) Encode(text string) []int {
	return t.encoding.Encode(text, nil, nil)
}

func (t *TiktokenTokenizer) Decode(tokens []int) string {
	return t.encoding.Decode(tokens)
}

var _ Tokenizer = (*TiktokenTokenizer)(nil)
