package cli

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/doc-rag/internal/core/ask"
	"github.com/jinford/doc-rag/internal/core/domain"
	"github.com/jinford/doc-rag/internal/core/ingestion"
	"github.com/jinford/doc-rag/internal/core/retrieval"
)

func TestTextWriter_StreamsTokens(t *testing.T) {
	var buf bytes.Buffer
	stream := ask.NewStream(newTextWriter(&buf))

	require.NoError(t, stream.Token("Hel"))
	require.NoError(t, stream.Token("lo"))
	require.NoError(t, stream.Finish())

	assert.Equal(t, "Hello\n", buf.String())
	assert.Equal(t, ask.StateDone, stream.State())
}

func TestTextWriter_Error(t *testing.T) {
	var buf bytes.Buffer
	stream := ask.NewStream(newTextWriter(&buf))

	require.NoError(t, stream.Token("par"))
	stream.Fail(domain.NewTransientError("ollama", "chat", errors.New("eof")))

	assert.Contains(t, buf.String(), "par\n[error] transient_provider_error")
	assert.Equal(t, ask.StateErrored, stream.State())
}

func TestRenderSimilarDocuments(t *testing.T) {
	var buf bytes.Buffer
	renderSimilarDocuments(&buf, []retrieval.SimilarDocument{
		{Title: "Циклы", Link: "https://x/topics/loops.html", Distance: 0.1234567},
	})
	out := buf.String()
	assert.Contains(t, out, "Циклы")
	assert.Contains(t, out, "https://x/topics/loops.html")
	assert.Contains(t, out, "0.1235")

	buf.Reset()
	renderSimilarDocuments(&buf, nil)
	assert.Contains(t, buf.String(), "該当するドキュメントはありません")
}

func TestRenderStats(t *testing.T) {
	var buf bytes.Buffer
	renderStats(&buf, &ingestion.Stats{Success: true, Total: 4, Embeddings: 12, Duration: 1500 * time.Millisecond})
	out := buf.String()
	assert.Contains(t, out, "1.5s")
	assert.Contains(t, out, "12")
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "Прив...", truncateString("Привет, мир", 7))
}
