// Package htmldoc は HTML ヘルプ（目次ページ + トピックページ）から文書を収集する
package htmldoc

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jinford/doc-rag/internal/core/ingestion"
)

const (
	DefaultBaseURL     = "https://pascalabc.net/downloads/pabcnethelp/"
	DefaultContentsURL = "https://pascalabc.net/downloads/pabcnethelp/webhelpcontents.htm"
	DefaultTimeout     = 30 * time.Second

	topicPrefix = "topics/"
	topicSuffix = ".html"

	// textSelector は本文として取り出す要素
	textSelector = "h1, h2, p, table, code, li, span"
)

// Source は目次ページから文書を列挙し、各ページの本文テキストを取得する
type Source struct {
	http        *http.Client
	baseURL     string
	contentsURL string
	logger      *slog.Logger
}

// SourceOption は Source のオプション設定
type SourceOption func(*Source)

// WithLogger はロガーを設定する
func WithLogger(logger *slog.Logger) SourceOption {
	return func(s *Source) {
		s.logger = logger
	}
}

// WithHTTPClient は HTTP クライアントを差し替える
func WithHTTPClient(hc *http.Client) SourceOption {
	return func(s *Source) {
		s.http = hc
	}
}

// NewSource は新しい Source を作成する
func NewSource(baseURL, contentsURL string, opts ...SourceOption) *Source {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if contentsURL == "" {
		contentsURL = DefaultContentsURL
	}

	s := &Source{
		http:        &http.Client{Timeout: DefaultTimeout},
		baseURL:     baseURL,
		contentsURL: contentsURL,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListDocuments は目次ページの葉ノードを文書として返す
// 葉ノードは子要素が NOBR ひとつだけの div で、topics/*.html へのリンクとタイトルを持つ
func (s *Source) ListDocuments(ctx context.Context) ([]ingestion.SourceDocument, error) {
	doc, err := s.fetch(ctx, s.contentsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to load contents page: %w", err)
	}

	var docs []ingestion.SourceDocument
	doc.Find("div").Each(func(_ int, div *goquery.Selection) {
		children := div.Children()
		if children.Length() != 1 || goquery.NodeName(children) != "nobr" {
			return
		}

		href, ok := div.Find("a[href]").First().Attr("href")
		if !ok || href == "#" || !strings.HasPrefix(href, topicPrefix) || !strings.HasSuffix(href, topicSuffix) {
			return
		}

		title := strings.TrimSpace(div.Find(`span[id^="l"]`).First().Text())
		if title == "" {
			return
		}

		docs = append(docs, ingestion.SourceDocument{
			Title: title,
			Link:  s.baseURL + href,
		})
	})

	s.logger.Info("目次を解析しました", "url", s.contentsURL, "documents", len(docs))
	return docs, nil
}

// FetchText はページから script を除いた本文テキストを改行区切りで返す
func (s *Source) FetchText(ctx context.Context, link string) (string, error) {
	doc, err := s.fetch(ctx, link)
	if err != nil {
		return "", fmt.Errorf("failed to load document %s: %w", link, err)
	}

	doc.Find("script").Remove()

	var b strings.Builder
	doc.Find(textSelector).Each(func(_ int, sel *goquery.Selection) {
		b.WriteString(strings.TrimSpace(sel.Text()))
		b.WriteString("\n")
	})
	return strings.TrimSpace(b.String()), nil
}

func (s *Source) fetch(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

var _ ingestion.DocumentSource = (*Source)(nil)
