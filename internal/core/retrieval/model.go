package retrieval

import (
	"github.com/google/uuid"

	"github.com/jinford/doc-rag/internal/core/domain"
)

// RetrievedChunk は近傍検索で得られたチャンク
type RetrievedChunk struct {
	ChunkIndex  int       `json:"chunkIndex"`
	ChunkText   string    `json:"chunkText"`
	DisplayText string    `json:"displayText"`
	DocumentID  uuid.UUID `json:"documentID"`
	Distance    float64   `json:"distance"`
}

// MergedPassage は同一ドキュメント内で隣接するチャンクを連結した文章
type MergedPassage struct {
	Text               string    `json:"text"`
	DocumentID         uuid.UUID `json:"documentID"`
	SourceChunkIndices []int     `json:"sourceChunkIndices"`
	MinDistance        float64   `json:"minDistance"`
}

// SimilarDocument はドキュメント単位の検索結果（MIN(distance) で集約）
type SimilarDocument struct {
	Title    string  `json:"title"`
	Link     string  `json:"link"`
	Distance float64 `json:"distance"`
}

// QueryParams は類似ドキュメント検索のパラメータ
type QueryParams struct {
	Input     string
	ModelName string
	Metric    string
	Limit     int
}

// PassageParams はパッセージ取得（検索→結合→リランク）のパラメータ
type PassageParams struct {
	Input        string
	ModelName    string
	Metric       string
	TopChunks    int // 近傍検索で取得するチャンク数
	TopDocuments int // リランク後に残すパッセージ数
}

const (
	DefaultLimit        = 5
	DefaultTopChunks    = 10
	DefaultTopDocuments = 2
	MaxLimit            = 50
)

// Validate は検索パラメータを境界で検証し、正規化済みの Metric を返す
func (p QueryParams) Validate() (domain.Metric, error) {
	if p.Input == "" {
		return "", invalidf("input must not be empty")
	}
	if p.Limit < 1 || p.Limit > MaxLimit {
		return "", invalidf("limit must be between 1 and %d, got %d", MaxLimit, p.Limit)
	}
	return domain.ParseMetric(p.Metric)
}

// Validate はパッセージ取得パラメータを境界で検証し、正規化済みの Metric を返す
func (p PassageParams) Validate() (domain.Metric, error) {
	if p.Input == "" {
		return "", invalidf("input must not be empty")
	}
	if p.TopChunks < 1 || p.TopChunks > MaxLimit {
		return "", invalidf("topChunks must be between 1 and %d, got %d", MaxLimit, p.TopChunks)
	}
	if p.TopDocuments < 1 || p.TopDocuments > MaxLimit {
		return "", invalidf("topDocuments must be between 1 and %d, got %d", MaxLimit, p.TopDocuments)
	}
	return domain.ParseMetric(p.Metric)
}
