package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jinford/doc-rag/internal/core/ingestion"
)

const answerFormat = `Give answer in JSON format {"answer": "[answer]"}`

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate は /api/generate を非ストリーミングで呼び出す
func (c *Client) Generate(ctx context.Context, model, prompt string) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.post(ctx, "generate", "/api/generate", generateRequest{Model: model, Prompt: prompt})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", decodeError(ctx, "generate", err)
	}
	return strings.TrimSpace(out.Response), nil
}

// Translate はテキストを英語に翻訳する
func (c *Client) Translate(ctx context.Context, text string) (string, error) {
	prompt := fmt.Sprintf("Translate from %s to English: %s\n%s", c.cfg.SourceLanguage, text, answerFormat)
	raw, err := c.Generate(ctx, c.cfg.TranslationModel, prompt)
	if err != nil {
		return "", err
	}
	return ExtractAnswer(raw), nil
}

// Summarize はチャンクを英語で3〜5文に要約する
func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	prompt := fmt.Sprintf("Summarize the following text chunk in English, keeping the main ideas concise (3-5 sentences): %s\n%s", text, answerFormat)
	raw, err := c.Generate(ctx, c.cfg.MainModel, prompt)
	if err != nil {
		return "", err
	}
	return ExtractAnswer(raw), nil
}

// ExtractAnswer は最初の '{' から最後の '}' までを JSON として解析し "answer" を返す
// 取り出せない場合は入力をそのまま返す
func ExtractAnswer(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || start >= end {
		return text
	}

	var parsed struct {
		Answer *string `json:"answer"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &parsed); err != nil || parsed.Answer == nil {
		return text
	}
	return *parsed.Answer
}

var _ ingestion.Enricher = (*Client)(nil)
