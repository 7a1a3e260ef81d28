package chunk

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/doc-rag/internal/core/domain"
)

// wordTokenizer は空白区切りの単語を1トークンとして扱うテスト用 Tokenizer
// 各トークンは末尾の空白を含むため Decode の連結で元テキストが復元できる
type wordTokenizer struct {
	vocab []string
	ids   map[string]int
}

func newWordTokenizer() *wordTokenizer {
	return &wordTokenizer{ids: map[string]int{}}
}

func (w *wordTokenizer) Encode(text string) []int {
	var tokens []int
	for _, piece := range strings.SplitAfter(text, " ") {
		if piece == "" {
			continue
		}
		id, ok := w.ids[piece]
		if !ok {
			id = len(w.vocab)
			w.vocab = append(w.vocab, piece)
			w.ids[piece] = id
		}
		tokens = append(tokens, id)
	}
	return tokens
}

func (w *wordTokenizer) Decode(tokens []int) string {
	var sb strings.Builder
	for _, id := range tokens {
		sb.WriteString(w.vocab[id])
	}
	return sb.String()
}

func twelveTokens() string {
	return "t0 t1 t2 t3 t4 t5 t6 t7 t8 t9 t10 t11"
}

func TestTokenChunker_TwelveTokensSizeFiveOverlapTwo(t *testing.T) {
	c := NewTokenChunker(newWordTokenizer())
	docID := uuid.New()

	chunks, err := c.Chunk(twelveTokens(), docID, Params{Size: 5, Overlap: 2})
	require.NoError(t, err)
	require.Len(t, chunks, 4)

	assert.Equal(t, "t0 t1 t2 t3 t4 ", chunks[0].FullText)
	assert.Equal(t, "t3 t4 t5 t6 t7 ", chunks[1].FullText)
	assert.Equal(t, "t6 t7 t8 t9 t10 ", chunks[2].FullText)
	assert.Equal(t, "t9 t10 t11", chunks[3].FullText)

	// chunk 0 は重複を持たない
	assert.Equal(t, chunks[0].FullText, chunks[0].DisplayText)
	// chunk 1 は先頭2トークン（chunk 0 との重複）を表示テキストから除く
	assert.Equal(t, "t5 t6 t7 ", chunks[1].DisplayText)
	assert.Equal(t, "t11", chunks[3].DisplayText)

	for i, ch := range chunks {
		assert.Equal(t, i, ch.Index)
		assert.Equal(t, docID, ch.DocumentID)
	}
	assert.Equal(t, 3, chunks[3].TokenCount)
}

func TestTokenChunker_DisplayTextRoundTrip(t *testing.T) {
	text := strings.TrimSpace(strings.Repeat("alpha beta gamma delta epsilon ", 23))

	for _, p := range []Params{
		{Size: 1, Overlap: 0},
		{Size: 3, Overlap: 1},
		{Size: 5, Overlap: 4},
		{Size: 7, Overlap: 0},
		{Size: 50, Overlap: 10},
		{Size: 500, Overlap: 100},
	} {
		c := NewTokenChunker(newWordTokenizer())
		chunks, err := c.Chunk(text, uuid.New(), p)
		require.NoError(t, err)

		var sb strings.Builder
		for i, ch := range chunks {
			assert.Equal(t, i, ch.Index, "indices must be dense and zero-based")
			sb.WriteString(ch.DisplayText)
		}
		assert.Equal(t, text, sb.String(), "size=%d overlap=%d", p.Size, p.Overlap)
	}
}

func TestTokenChunker_EmptyInput(t *testing.T) {
	c := NewTokenChunker(newWordTokenizer())
	chunks, err := c.Chunk("", uuid.New(), Params{Size: 5, Overlap: 2})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestTokenChunker_InvalidParams(t *testing.T) {
	c := NewTokenChunker(newWordTokenizer())

	tests := []struct {
		name   string
		params Params
	}{
		{name: "overlap equals size", params: Params{Size: 5, Overlap: 5}},
		{name: "overlap larger than size", params: Params{Size: 5, Overlap: 8}},
		{name: "zero size", params: Params{Size: 0, Overlap: 0}},
		{name: "negative overlap", params: Params{Size: 5, Overlap: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, err := c.Chunk(twelveTokens(), uuid.New(), tt.params)
			assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
			assert.Nil(t, chunks)
		})
	}
}

func TestTokenChunker_Deterministic(t *testing.T) {
	c := NewTokenChunker(newWordTokenizer())
	docID := uuid.New()
	first, err := c.Chunk(twelveTokens(), docID, Params{Size: 4, Overlap: 1})
	require.NoError(t, err)
	second, err := c.Chunk(twelveTokens(), docID, Params{Size: 4, Overlap: 1})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestTokenChunker_Tiktoken(t *testing.T) {
	tok, err := NewTiktokenTokenizer(DefaultEncoding)
	if err != nil {
		t.Skipf("tiktoken エンコーディングを読み込めないためスキップします: %v", err)
	}

	text := strings.Repeat("PascalABC.NET supports procedures and functions. ", 40)
	chunks, err := NewTokenChunker(tok).Chunk(text, uuid.New(), Params{Size: 50, Overlap: 10})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	var sb strings.Builder
	for _, ch := range chunks {
		assert.LessOrEqual(t, ch.TokenCount, 50)
		sb.WriteString(ch.DisplayText)
	}
	assert.Equal(t, text, sb.String())
}
