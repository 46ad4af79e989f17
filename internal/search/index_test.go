package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/marketplace/internal/models"
)

type fakeES struct {
	mu       sync.Mutex
	docs     map[string]string
	requests []string
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)

	switch {
	case r.URL.Path == "/":
		_, _ = io.WriteString(w, `{"version":{"number":"9.0.0","build_flavor":"default"},"tagline":"You Know, for Search"}`)
	case strings.HasPrefix(r.URL.Path, "/products/_doc/") && r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.docs[strings.TrimPrefix(r.URL.Path, "/products/_doc/")] = string(body)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"result":"created"}`)
	case strings.HasPrefix(r.URL.Path, "/products/_doc/") && r.Method == http.MethodDelete:
		id := strings.TrimPrefix(r.URL.Path, "/products/_doc/")
		if _, ok := f.docs[id]; !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"result":"not_found"}`)
			return
		}
		delete(f.docs, id)
		_, _ = io.WriteString(w, `{"result":"deleted"}`)
	case r.URL.Path == "/products/_search":
		hits := make([]map[string]any, 0, len(f.docs))
		for _, raw := range f.docs {
			var src map[string]any
			_ = json.Unmarshal([]byte(raw), &src)
			hits = append(hits, map[string]any{"_source": src})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"hits": map[string]any{"total": map[string]any{"value": len(hits)}, "hits": hits},
		})
	default:
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{}`)
	}
}

func newIndex(t *testing.T) (*Index, *fakeES) {
	t.Helper()
	fake := &fakeES{docs: map[string]string{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	idx, err := New(context.Background(), Config{URL: srv.URL})
	require.NoError(t, err)
	return idx, fake
}

func TestIndex_Lifecycle(t *testing.T) {
	idx, fake := newIndex(t)
	ctx := context.Background()

	p := &models.Product{ID: 12, Name: "Trail shoe", Category: "Shoes", Description: "light", PriceRange: "50-100", UserID: 3}
	require.NoError(t, idx.IndexProduct(ctx, p))
	assert.Contains(t, fake.docs["12"], `"name":"Trail shoe"`)

	total, ids, err := idx.Search(ctx, "trail", 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, []uint{12}, ids)

	require.NoError(t, idx.DeleteProduct(ctx, 12))
	assert.Empty(t, fake.docs)

	assert.NoError(t, idx.DeleteProduct(ctx, 12))
}

func TestNew_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	_, err := New(context.Background(), Config{URL: srv.URL})
	assert.Error(t, err)
}
