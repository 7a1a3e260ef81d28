package htmldoc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/doc-rag/internal/core/ingestion"
)

const contentsPage = `<html><body>
<div><nobr><a href="topics/intro.html"><span id="l1">Введение</span></a></nobr></div>
<div><nobr><a href="topics/loops.html"><span id="l2"> Циклы </span></a></nobr></div>
<div><nobr><a href="#"><span id="l3">Раздел</span></a></nobr></div>
<div><nobr><a href="other/page.html"><span id="l4">Другое</span></a></nobr></div>
<div><nobr><a href="topics/notitle.html"><span id="x5">Без id</span></a></nobr></div>
<div><nobr><a href="topics/two.html"><span id="l6">Two</span></a></nobr><p>extra</p></div>
<div><nobr><a href="topics/img.htm"><span id="l7">Wrong suffix</span></a></nobr></div>
</body></html>`

const topicPage = `<html><head><script>var x = 1;</script></head><body>
<h1> Циклы </h1>
<p>Цикл for повторяет тело.</p>
<script>alert("no")</script>
<code>for i := 1 to 10 do</code>
<ul><li>while</li><li>repeat</li></ul>
<div>ignored div text</div>
</body></html>`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/help/contents.htm", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(contentsPage))
	})
	mux.HandleFunc("/help/topics/loops.html", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(topicPage))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestSource_ListDocuments(t *testing.T) {
	srv := newTestServer(t)
	source := NewSource(srv.URL+"/help/", srv.URL+"/help/contents.htm")

	docs, err := source.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []ingestion.SourceDocument{
		{Title: "Введение", Link: srv.URL + "/help/topics/intro.html"},
		{Title: "Циклы", Link: srv.URL + "/help/topics/loops.html"},
	}, docs)
}

func TestSource_FetchText(t *testing.T) {
	srv := newTestServer(t)
	source := NewSource(srv.URL+"/help/", srv.URL+"/help/contents.htm")

	text, err := source.FetchText(context.Background(), srv.URL+"/help/topics/loops.html")
	require.NoError(t, err)
	assert.Equal(t, "Циклы\nЦикл for повторяет тело.\nfor i := 1 to 10 do\nwhile\nrepeat", text)
	assert.NotContains(t, text, "alert")
	assert.NotContains(t, text, "ignored div")
}

func TestSource_FetchText_NotFound(t *testing.T) {
	srv := newTestServer(t)
	source := NewSource(srv.URL+"/help/", srv.URL+"/help/contents.htm")

	_, err := source.FetchText(context.Background(), srv.URL+"/help/topics/missing.html")
	assert.Error(t, err)
}

func TestSource_ListDocuments_ContentsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewSource(srv.URL+"/", srv.URL+"/contents.htm").ListDocuments(context.Background())
	assert.Error(t, err)
}
