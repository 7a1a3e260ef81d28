package httpapi

import (
	"github.com/jinford/doc-rag/internal/core/ask"
	"github.com/jinford/doc-rag/internal/core/ingestion"
	"github.com/jinford/doc-rag/internal/core/retrieval"
)

// findSimilarRequest は POST /rag/findSimilar の入力
type findSimilarRequest struct {
	Input     string `json:"input"`
	ModelName string `json:"model_name"`
	Metric    string `json:"metric"`
	Length    *int   `json:"length"`
}

func (r findSimilarRequest) params(defaultModel string) retrieval.QueryParams {
	p := retrieval.QueryParams{
		Input:     r.Input,
		ModelName: r.ModelName,
		Metric:    r.Metric,
		Limit:     retrieval.DefaultLimit,
	}
	if p.ModelName == "" {
		p.ModelName = defaultModel
	}
	if p.Metric == "" {
		p.Metric = "cosine"
	}
	if r.Length != nil {
		p.Limit = *r.Length
	}
	return p
}

// giveAnswerRequest は POST /rag/giveAnswer の入力
type giveAnswerRequest struct {
	Input        string `json:"input"`
	ModelName    string `json:"model_name"`
	Metric       string `json:"metric"`
	TopChunks    *int   `json:"topChunks"`
	TopDocuments *int   `json:"topDocuments"`
	Stream       *bool  `json:"stream"`
}

func (r giveAnswerRequest) params(defaultModel string) ask.AskParams {
	p := ask.AskParams{
		Input:        r.Input,
		ModelName:    r.ModelName,
		Metric:       r.Metric,
		TopChunks:    retrieval.DefaultTopChunks,
		TopDocuments: retrieval.DefaultTopDocuments,
	}
	if p.ModelName == "" {
		p.ModelName = defaultModel
	}
	if p.Metric == "" {
		p.Metric = "cosine"
	}
	if r.TopChunks != nil {
		p.TopChunks = *r.TopChunks
	}
	if r.TopDocuments != nil {
		p.TopDocuments = *r.TopDocuments
	}
	return p
}

func (r giveAnswerRequest) streaming() bool {
	return r.Stream == nil || *r.Stream
}

// parseDocsRequest は POST /admin/parse-docs の入力
type parseDocsRequest struct {
	DelayMs         *int     `json:"delayMs"`
	ChunkSize       *int     `json:"chunkSize"`
	ChunkOverlap    *int     `json:"chunkOverlap"`
	BatchSize       *int     `json:"batchSize"`
	Limit           *int     `json:"limit"`
	Concurrency     *int     `json:"concurrency"`
	ModelNames      []string `json:"modelNames"`
	TranslateTitles bool     `json:"translateTitles"`
	Enrich          string   `json:"enrich"`
}

func (r parseDocsRequest) params() ingestion.Params {
	p := ingestion.DefaultParams()
	setInt(&p.DelayMs, r.DelayMs)
	setInt(&p.ChunkSize, r.ChunkSize)
	setInt(&p.ChunkOverlap, r.ChunkOverlap)
	setInt(&p.BatchSize, r.BatchSize)
	setInt(&p.Limit, r.Limit)
	setInt(&p.Concurrency, r.Concurrency)
	p.ModelNames = r.ModelNames
	p.TranslateTitles = r.TranslateTitles
	p.Enrich = ingestion.EnrichMode(r.Enrich)
	return p
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

type parseDocsResponse struct {
	Message string                   `json:"message"`
	Result  *ingestion.TriggerResult `json:"result,omitempty"`
}
