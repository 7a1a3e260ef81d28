package domain

import (
	"time"

	"github.com/google/uuid"
)

// Document は取り込み対象のドキュメントメタデータを表す
// SourceLink が同一性のキーで、再取り込み時は ID を保ったまま Title を更新する
type Document struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	TranslatedTitle *string   `json:"translatedTitle,omitempty"`
	SourceLink      string    `json:"sourceLink"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Model は登録済みの Embedding モデルを表す
type Model struct {
	ID              uuid.UUID `json:"id"`
	NameInBackend   string    `json:"nameInBackend"`
	QueryPrefix     string    `json:"queryPrefix"`
	DocumentPrefix  string    `json:"documentPrefix"`
	VectorDimension int       `json:"vectorDimension"`
}

// ModelSpec はモデル登録時の入力
type ModelSpec struct {
	Name           string
	Dimension      int
	QueryPrefix    string
	DocumentPrefix string
}

// Embedding は (DocumentID, ModelID, ChunkIndex) ごとに高々1行保存されるベクトル
type Embedding struct {
	ID          uuid.UUID `json:"id"`
	DocumentID  uuid.UUID `json:"documentID"`
	ModelID     uuid.UUID `json:"modelID"`
	ChunkIndex  int       `json:"chunkIndex"`
	Vector      []float32 `json:"-"`
	ChunkText   string    `json:"chunkText"`
	DisplayText string    `json:"displayText"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
