package search

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/game_store/internal/models"
)

type call struct {
	Method string
	Path   string
	Body   string
}

func newFakeES(t *testing.T, respond func(w http.ResponseWriter, r *http.Request)) (*Index, func() []call) {
	t.Helper()
	var (
		mu    sync.Mutex
		calls []call
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		calls = append(calls, call{Method: r.Method, Path: r.URL.Path, Body: string(body)})
		mu.Unlock()
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		respond(w, r)
	}))
	t.Cleanup(srv.Close)

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)

	return NewIndex(es, "products"), func() []call {
		mu.Lock()
		defer mu.Unlock()
		return append([]call(nil), calls...)
	}
}

func TestSearchBody(t *testing.T) {
	b := searchBody("zelda", 20, 10)
	assert.Equal(t, 20, b["from"])
	assert.Equal(t, 10, b["size"])

	mm := b["query"].(map[string]any)["multi_match"].(map[string]any)
	assert.Equal(t, "zelda", mm["query"])
	assert.Contains(t, mm["fields"], "titulo^2")
}

func TestIndex_Search(t *testing.T) {
	idx, calls := newFakeES(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"hits":{"total":{"value":3},"hits":[{"_id":"7"},{"_id":"bad"},{"_id":"2"}]}}`)
	})

	total, ids, err := idx.Search(t.Context(), "zelda", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, []uint{7, 2}, ids)

	got := calls()
	require.Len(t, got, 1)
	assert.Equal(t, "/products/_search", got[0].Path)

	var sent map[string]any
	require.NoError(t, json.Unmarshal([]byte(got[0].Body), &sent))
	assert.Contains(t, sent, "query")
}

func TestIndex_Search_ErrorStatus(t *testing.T) {
	idx, _ := newFakeES(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":"boom"}`)
	})

	_, _, err := idx.Search(t.Context(), "zelda", 0, 10)
	assert.Error(t, err)
}

func TestIndex_IndexProduct(t *testing.T) {
	idx, calls := newFakeES(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"result":"created"}`)
	})

	p := &models.Product{ID: 5, Title: "Halo", Price: decimal.RequireFromString("9.5"), Platform: "Xbox", Genre: "FPS"}
	require.NoError(t, idx.IndexProduct(t.Context(), p))

	got := calls()
	require.Len(t, got, 1)
	assert.Equal(t, http.MethodPut, got[0].Method)
	assert.True(t, strings.HasSuffix(got[0].Path, "/products/_doc/5"))
	assert.Contains(t, got[0].Body, `"precio":"9.50"`)
}

func TestIndex_DeleteProduct_MissingIsOK(t *testing.T) {
	idx, _ := newFakeES(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"result":"not_found"}`)
	})

	assert.NoError(t, idx.DeleteProduct(t.Context(), 5))
}

func TestIndex_EnsureIndex_CreatesWhenMissing(t *testing.T) {
	idx, calls := newFakeES(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, `{"acknowledged":true}`)
	})

	require.NoError(t, idx.EnsureIndex(t.Context()))

	got := calls()
	require.Len(t, got, 2)
	assert.Equal(t, http.MethodPut, got[1].Method)
	assert.Contains(t, got[1].Body, `"mappings"`)
}
