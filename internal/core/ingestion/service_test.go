package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/doc-rag/internal/core/chunk"
	"github.com/jinford/doc-rag/internal/core/domain"
)

// spaceTokenizer は空白区切りの単語を1トークンとして扱う
type spaceTokenizer struct {
	mu    sync.Mutex
	vocab []string
	ids   map[string]int
}

func (t *spaceTokenizer) Encode(text string) []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ids == nil {
		t.ids = map[string]int{}
	}
	var out []int
	for _, piece := range strings.SplitAfter(text, " ") {
		if piece == "" {
			continue
		}
		id, ok := t.ids[piece]
		if !ok {
			id = len(t.vocab)
			t.vocab = append(t.vocab, piece)
			t.ids[piece] = id
		}
		out = append(out, id)
	}
	return out
}

func (t *spaceTokenizer) Decode(tokens []int) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var sb strings.Builder
	for _, id := range tokens {
		sb.WriteString(t.vocab[id])
	}
	return sb.String()
}

type stubSource struct {
	docs    []SourceDocument
	texts   map[string]string
	listErr error
}

func (s *stubSource) ListDocuments(context.Context) ([]SourceDocument, error) {
	return s.docs, s.listErr
}

func (s *stubSource) FetchText(_ context.Context, link string) (string, error) {
	text, ok := s.texts[link]
	if !ok {
		return "", fmt.Errorf("fetch %s: 404", link)
	}
	return text, nil
}

type memoryStore struct {
	mu         sync.Mutex
	docs       map[string]*domain.Document
	translated map[uuid.UUID]string
	models     []*domain.Model
	rows       map[string]*domain.Embedding
	saveErr    func(e *domain.Embedding) error
	pruneCalls int
}

func newMemoryStore(models ...*domain.Model) *memoryStore {
	return &memoryStore{
		docs:       map[string]*domain.Document{},
		translated: map[uuid.UUID]string{},
		models:     models,
		rows:       map[string]*domain.Embedding{},
	}
}

func rowKey(doc, model uuid.UUID, idx int) string {
	return fmt.Sprintf("%s/%s/%d", doc, model, idx)
}

func (m *memoryStore) UpsertDocument(_ context.Context, title, link string) (*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.docs[link]; ok {
		d.Title = title
		return d, nil
	}
	d := &domain.Document{ID: uuid.New(), Title: title, SourceLink: link}
	m.docs[link] = d
	return d, nil
}

func (m *memoryStore) AddTranslatedTitle(_ context.Context, id uuid.UUID, text string) (*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.translated[id] = text
	return &domain.Document{ID: id, TranslatedTitle: &text}, nil
}

func (m *memoryStore) ListModels(context.Context) ([]*domain.Model, error) {
	return m.models, nil
}

func (m *memoryStore) SaveEmbedding(_ context.Context, e *domain.Embedding) (*domain.Embedding, error) {
	if m.saveErr != nil {
		if err := m.saveErr(e); err != nil {
			return nil, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.rows[rowKey(e.DocumentID, e.ModelID, e.ChunkIndex)] = &cp
	return &cp, nil
}

func (m *memoryStore) DeleteEmbeddingsFrom(_ context.Context, documentID, modelID uuid.UUID, fromIndex int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneCalls++
	var n int64
	for k, e := range m.rows {
		if e.DocumentID == documentID && e.ModelID == modelID && e.ChunkIndex >= fromIndex {
			delete(m.rows, k)
			n++
		}
	}
	return n, nil
}

func (m *memoryStore) rowsFor(doc uuid.UUID) []*domain.Embedding {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Embedding
	for _, e := range m.rows {
		if e.DocumentID == doc {
			out = append(out, e)
		}
	}
	return out
}

type funcEmbedder struct {
	mu    sync.Mutex
	calls int
	texts [][]string
	fn    func(call int, texts []string) ([][]float32, error)
}

func (e *funcEmbedder) Embed(_ context.Context, texts []string, _ string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	call := e.calls
	e.texts = append(e.texts, texts)
	e.mu.Unlock()
	if e.fn != nil {
		return e.fn(call, texts)
	}
	return vectorsFor(len(texts)), nil
}

func vectorsFor(n int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		out[i] = []float32{float32(i), 1}
	}
	return out
}

type stubEnricher struct {
	translateErr error
}

func (e *stubEnricher) Translate(_ context.Context, text string) (string, error) {
	if e.translateErr != nil {
		return "", e.translateErr
	}
	return "EN:" + text, nil
}

func (e *stubEnricher) Summarize(_ context.Context, text string) (string, error) {
	return "SUM:" + text, nil
}

func testModel(name string) *domain.Model {
	return &domain.Model{ID: uuid.New(), NameInBackend: name, DocumentPrefix: "search_document: ", VectorDimension: 2}
}

func twelveTokenText() string {
	return "t0 t1 t2 t3 t4 t5 t6 t7 t8 t9 t10 t11"
}

func newTestService(src DocumentSource, store *memoryStore, emb Embedder, opts ...ServiceOption) *Service {
	return NewService(src, store, store, store, emb, chunk.NewTokenChunker(&spaceTokenizer{}), opts...)
}

func testParams() Params {
	p := DefaultParams()
	p.DelayMs = 0
	p.ChunkSize = 5
	p.ChunkOverlap = 2
	p.BatchSize = 2
	return p
}

func TestService_Run_EndToEnd(t *testing.T) {
	model := testModel("nomic-embed-text")
	store := newMemoryStore(model)
	src := &stubSource{
		docs:  []SourceDocument{{Title: "Intro", Link: "https://docs/intro.html"}},
		texts: map[string]string{"https://docs/intro.html": twelveTokenText()},
	}
	emb := &funcEmbedder{}

	stats, err := newTestService(src, store, emb).Run(context.Background(), testParams())
	require.NoError(t, err)

	assert.True(t, stats.Success)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Documents)
	assert.Equal(t, 4, stats.Chunks)
	assert.Equal(t, 4, stats.Embeddings)
	assert.Equal(t, 2, emb.calls)

	doc := store.docs["https://docs/intro.html"]
	rows := store.rowsFor(doc.ID)
	require.Len(t, rows, 4)

	row1 := store.rows[rowKey(doc.ID, model.ID, 1)]
	require.NotNil(t, row1)
	assert.Equal(t, "t3 t4 t5 t6 t7 ", row1.ChunkText)
	assert.Equal(t, "t5 t6 t7 ", row1.DisplayText)

	// Embedding 入力にはモデルの DocumentPrefix が付く
	assert.Equal(t, "search_document: t0 t1 t2 t3 t4 ", emb.texts[0][0])
}

func TestService_Run_MismatchedBatchIsSkipped(t *testing.T) {
	model := testModel("m")
	store := newMemoryStore(model)
	src := &stubSource{
		docs:  []SourceDocument{{Title: "Intro", Link: "l"}},
		texts: map[string]string{"l": twelveTokenText()},
	}
	emb := &funcEmbedder{fn: func(call int, texts []string) ([][]float32, error) {
		if call == 1 {
			return vectorsFor(len(texts) - 1), nil
		}
		return vectorsFor(len(texts)), nil
	}}

	stats, err := newTestService(src, store, emb).Run(context.Background(), testParams())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Mismatches)
	assert.Equal(t, 2, stats.Embeddings)
	assert.Equal(t, 2, stats.FailedEmbeddings)

	doc := store.docs["l"]
	assert.Nil(t, store.rows[rowKey(doc.ID, model.ID, 0)])
	assert.Nil(t, store.rows[rowKey(doc.ID, model.ID, 1)])
	assert.NotNil(t, store.rows[rowKey(doc.ID, model.ID, 2)])
	assert.NotNil(t, store.rows[rowKey(doc.ID, model.ID, 3)])
}

func TestService_Run_EmbedderErrorContinues(t *testing.T) {
	model := testModel("m")
	store := newMemoryStore(model)
	src := &stubSource{
		docs:  []SourceDocument{{Title: "A", Link: "a"}, {Title: "B", Link: "b"}},
		texts: map[string]string{"a": "x y z", "b": "p q r"},
	}
	emb := &funcEmbedder{fn: func(call int, texts []string) ([][]float32, error) {
		if strings.Contains(texts[0], "x") {
			return nil, domain.NewTransientError("ollama", "embed", errors.New("timeout"))
		}
		return vectorsFor(len(texts)), nil
	}}

	stats, err := newTestService(src, store, emb).Run(context.Background(), testParams())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Documents)
	assert.Equal(t, 1, stats.FailedBatches)
	assert.Len(t, store.rowsFor(store.docs["b"].ID), 1)
	assert.Empty(t, store.rowsFor(store.docs["a"].ID))
}

func TestService_Run_SaveFailureIsPerChunk(t *testing.T) {
	model := testModel("m")
	store := newMemoryStore(model)
	store.saveErr = func(e *domain.Embedding) error {
		if e.ChunkIndex == 2 {
			return errors.New("write failed")
		}
		return nil
	}
	src := &stubSource{
		docs:  []SourceDocument{{Title: "Intro", Link: "l"}},
		texts: map[string]string{"l": twelveTokenText()},
	}

	stats, err := newTestService(src, store, &funcEmbedder{}).Run(context.Background(), testParams())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Embeddings)
	assert.Equal(t, 1, stats.FailedEmbeddings)
}

func TestService_Run_FetchFailureDoesNotHaltRun(t *testing.T) {
	store := newMemoryStore(testModel("m"))
	src := &stubSource{
		docs:  []SourceDocument{{Title: "Missing", Link: "missing"}, {Title: "Ok", Link: "ok"}},
		texts: map[string]string{"ok": "a b c"},
	}

	stats, err := newTestService(src, store, &funcEmbedder{}).Run(context.Background(), testParams())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.FailedDocuments)
	assert.Equal(t, 1, stats.Documents)
}

func TestService_Run_ModelAllowList(t *testing.T) {
	m1, m2 := testModel("a"), testModel("b")
	store := newMemoryStore(m1, m2)
	src := &stubSource{
		docs:  []SourceDocument{{Title: "Intro", Link: "l"}},
		texts: map[string]string{"l": "one two"},
	}
	params := testParams()
	params.ModelNames = []string{"b", "unknown"}

	_, err := newTestService(src, store, &funcEmbedder{}).Run(context.Background(), params)
	require.NoError(t, err)

	for _, e := range store.rowsFor(store.docs["l"].ID) {
		assert.Equal(t, m2.ID, e.ModelID)
	}
	assert.Len(t, store.rowsFor(store.docs["l"].ID), 1)
}

func TestService_Run_LimitAndConcurrency(t *testing.T) {
	store := newMemoryStore(testModel("m"))
	src := &stubSource{texts: map[string]string{}}
	for i := range 6 {
		link := fmt.Sprintf("doc-%d", i)
		src.docs = append(src.docs, SourceDocument{Title: link, Link: link})
		src.texts[link] = "alpha beta gamma"
	}
	params := testParams()
	params.Limit = 4
	params.Concurrency = 3

	stats, err := newTestService(src, store, &funcEmbedder{}).Run(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 4, stats.Documents)
	// すべてのドキュメントは登録される
	assert.Len(t, store.docs, 6)
}

func TestService_Run_PrunesStaleIndices(t *testing.T) {
	model := testModel("m")
	store := newMemoryStore(model)
	src := &stubSource{
		docs:  []SourceDocument{{Title: "Intro", Link: "l"}},
		texts: map[string]string{"l": twelveTokenText()},
	}
	svc := newTestService(src, store, &funcEmbedder{})

	_, err := svc.Run(context.Background(), testParams())
	require.NoError(t, err)
	doc := store.docs["l"]
	require.Len(t, store.rowsFor(doc.ID), 4)

	// 大きなチャンクで再取り込みすると1チャンクになる
	params := testParams()
	params.ChunkSize = 50
	stats, err := svc.Run(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Pruned)
	assert.Len(t, store.rowsFor(doc.ID), 1)
}

func TestService_Run_EmptyTextKeepsStoredEmbeddings(t *testing.T) {
	model := testModel("m")
	store := newMemoryStore(model)
	src := &stubSource{
		docs:  []SourceDocument{{Title: "Intro", Link: "l"}},
		texts: map[string]string{"l": twelveTokenText()},
	}
	svc := newTestService(src, store, &funcEmbedder{})

	_, err := svc.Run(context.Background(), testParams())
	require.NoError(t, err)
	doc := store.docs["l"]
	require.Len(t, store.rowsFor(doc.ID), 4)

	for _, text := range []string{"", "  \n\t "} {
		src.texts["l"] = text
		pruneCalls := store.pruneCalls

		stats, err := svc.Run(context.Background(), testParams())
		require.NoError(t, err)
		assert.Equal(t, 1, stats.SkippedDocuments)
		assert.Equal(t, 0, stats.Documents)
		assert.Equal(t, 0, stats.FailedDocuments)
		assert.Equal(t, int64(0), stats.Pruned)
		assert.Equal(t, pruneCalls, store.pruneCalls)
		assert.Len(t, store.rowsFor(doc.ID), 4)
	}
}

func TestEmbedBatches_NoChunksSkipsPrune(t *testing.T) {
	model := testModel("m")
	store := newMemoryStore(model)
	doc := &domain.Document{ID: uuid.New(), SourceLink: "l"}

	result := embedBatches(context.Background(), &funcEmbedder{}, store, slog.New(slog.NewTextHandler(io.Discard, nil)), doc, model, nil, nil, 4)
	assert.Empty(t, result.Batches)
	assert.Equal(t, 0, store.pruneCalls)
}

func TestService_Run_Enrichment(t *testing.T) {
	model := testModel("m")
	store := newMemoryStore(model)
	src := &stubSource{
		docs:  []SourceDocument{{Title: "Einführung", Link: "l"}},
		texts: map[string]string{"l": "eins zwei"},
	}
	emb := &funcEmbedder{}
	params := testParams()
	params.TranslateTitles = true
	params.Enrich = EnrichSummarize

	_, err := newTestService(src, store, emb, WithEnricher(&stubEnricher{})).Run(context.Background(), params)
	require.NoError(t, err)

	doc := store.docs["l"]
	assert.Equal(t, "EN:Einführung", store.translated[doc.ID])
	assert.Equal(t, "search_document: SUM:eins zwei", emb.texts[0][0])

	row := store.rows[rowKey(doc.ID, model.ID, 0)]
	require.NotNil(t, row)
	assert.Equal(t, "eins zwei", row.ChunkText)
}

func TestService_Run_EnrichmentFailureFallsBack(t *testing.T) {
	store := newMemoryStore(testModel("m"))
	src := &stubSource{
		docs:  []SourceDocument{{Title: "T", Link: "l"}},
		texts: map[string]string{"l": "eins zwei"},
	}
	emb := &funcEmbedder{}
	params := testParams()
	params.Enrich = EnrichTranslate

	enricher := &stubEnricher{translateErr: errors.New("model unavailable")}
	_, err := newTestService(src, store, emb, WithEnricher(enricher)).Run(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, "search_document: eins zwei", emb.texts[0][0])
}

func TestService_Run_InvalidParamsHaveNoSideEffects(t *testing.T) {
	store := newMemoryStore(testModel("m"))
	src := &stubSource{docs: []SourceDocument{{Title: "T", Link: "l"}}}
	params := testParams()
	params.ChunkOverlap = params.ChunkSize

	_, err := newTestService(src, store, &funcEmbedder{}).Run(context.Background(), params)
	require.ErrorIs(t, err, domain.ErrInvalidConfiguration)
	assert.Empty(t, store.docs)
}

func TestService_Run_EnrichWithoutEnricher(t *testing.T) {
	params := testParams()
	params.Enrich = EnrichTranslate
	_, err := newTestService(&stubSource{}, newMemoryStore(), &funcEmbedder{}).Run(context.Background(), params)
	require.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestService_Run_ListFailure(t *testing.T) {
	src := &stubSource{listErr: errors.New("toc unavailable")}
	_, err := newTestService(src, newMemoryStore(), &funcEmbedder{}).Run(context.Background(), testParams())
	require.Error(t, err)
}

func TestParams_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
		ok     bool
	}{
		{"defaults", func(*Params) {}, true},
		{"delay too large", func(p *Params) { p.DelayMs = 10001 }, false},
		{"negative delay", func(p *Params) { p.DelayMs = -1 }, false},
		{"zero chunk size", func(p *Params) { p.ChunkSize = 0 }, false},
		{"chunk size too large", func(p *Params) { p.ChunkSize = 5001 }, false},
		{"overlap equals size", func(p *Params) { p.ChunkSize = 10; p.ChunkOverlap = 10 }, false},
		{"overlap at bound", func(p *Params) { p.ChunkSize = 5000; p.ChunkOverlap = 1000 }, false},
		{"overlap below bound", func(p *Params) { p.ChunkSize = 5000; p.ChunkOverlap = 999 }, true},
		{"batch zero", func(p *Params) { p.BatchSize = 0 }, false},
		{"batch too large", func(p *Params) { p.BatchSize = 65 }, false},
		{"batch at max", func(p *Params) { p.BatchSize = 64 }, true},
		{"negative limit", func(p *Params) { p.Limit = -1 }, false},
		{"concurrency zero", func(p *Params) { p.Concurrency = 0 }, false},
		{"concurrency too large", func(p *Params) { p.Concurrency = 9 }, false},
		{"unknown enrich", func(p *Params) { p.Enrich = "rewrite" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			err := p.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
			}
		})
	}
}
