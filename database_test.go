package bookmind

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/bookmind/ai"
	"github.com/poiesic/bookmind/ai/mock"
	"github.com/poiesic/bookmind/config"
	"github.com/poiesic/bookmind/ingestion"
	"github.com/poiesic/bookmind/search"
	"github.com/poiesic/bookmind/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDatabase(t *testing.T) {
	t.Run("create new database", func(t *testing.T) {
		db, err := NewDatabase(filepath.Join(t.TempDir(), "test_db"))
		require.NoError(t, err)
		defer db.Close()

		assert.NotNil(t, db.PageRepository())
		assert.NotNil(t, db.SliceRepository())
		assert.NotNil(t, db.QueueRepository())
		assert.NotNil(t, db.Embedder())
	})

	t.Run("error with invalid path", func(t *testing.T) {
		tmpFile := filepath.Join(t.TempDir(), "not_a_dir")
		require.NoError(t, os.WriteFile(tmpFile, []byte("test"), 0o644))

		db, err := NewDatabase(tmpFile)
		assert.Error(t, err)
		assert.Nil(t, db)
	})

	t.Run("invalid ai config", func(t *testing.T) {
		db, err := NewDatabase(t.TempDir(), WithAIConfig(&ai.Config{EmbeddingHost: "http://localhost"}))
		assert.Error(t, err)
		assert.Nil(t, db)
	})
}

func TestOpenDatabase_UsesConfiguredEmbedding(t *testing.T) {
	var gotModel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotModel = req.Model
		data := make([]map[string]any, len(req.Input))
		for i := range req.Input {
			data[i] = map[string]any{"object": "embedding", "embedding": []float32{1, 0}, "index": i}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data, "model": req.Model})
	}))
	defer server.Close()

	t.Setenv("HOME", t.TempDir())
	cfg, err := config.Load("")
	require.NoError(t, err)
	config.Overrides{
		DatabasePath:   filepath.Join(t.TempDir(), "db"),
		EmbeddingHost:  server.URL,
		EmbeddingModel: "configured-model",
	}.Apply(cfg)

	db, err := OpenDatabase(cfg)
	require.NoError(t, err)
	defer db.Close()

	vector, err := db.Embedder().EmbedText(t.Context(), "react hooks")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, vector)
	assert.Equal(t, "configured-model", gotModel)

	_, err = OpenDatabase(nil)
	assert.Error(t, err)
}

func TestDatabase_Close(t *testing.T) {
	provider := mock.NewMockProviderWithEmbedder(mock.NewMockEmbedder())
	db, err := NewDatabase("", InMemory(), WithProvider(provider))
	require.NoError(t, err)

	require.NoError(t, db.Close())
	assert.True(t, provider.(*mock.MockProvider).Closed())
}

func TestDatabase_FactoryMethods(t *testing.T) {
	db, err := NewDatabase("", InMemory(), WithProvider(mock.NewMockProvider()))
	require.NoError(t, err)
	defer db.Close()

	pipeline, err := db.NewPipeline()
	require.NoError(t, err)
	defer pipeline.Release()

	searcher, err := db.NewSearcher()
	require.NoError(t, err)
	assert.NotNil(t, searcher)

	enumerator, err := db.NewEnumerator()
	require.NoError(t, err)
	assert.NotNil(t, enumerator)

	reembedder, err := db.NewReembedder(nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, reembedder)
}

// TestDatabase_IndexAndSearch runs bookmarks through enumeration, ingestion
// and retrieval against one database.
func TestDatabase_IndexAndSearch(t *testing.T) {
	body := func(title, topic string) string {
		return fmt.Sprintf("<html><head><title>%s</title></head><body><h1>%s</h1><p>%s</p></body></html>",
			title, title, strings.Repeat(topic+" ", 40))
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/react":
			fmt.Fprint(w, body("React Hooks Guide", "react hooks state effect"))
		case "/vue":
			fmt.Fprint(w, body("Vue Intro", "templates directives components"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	db, err := NewDatabase("", InMemory(), WithProvider(mock.NewMockProvider()))
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	bookmarks, err := source.ParseURLList(strings.NewReader(fmt.Sprintf(
		"%[1]s/react React Hooks Guide\n%[1]s/vue Vue Intro\n%[1]s/missing Missing\n", server.URL)))
	require.NoError(t, err)

	// the test server listens on a loopback address
	enumerator, err := db.NewEnumerator(source.WithExcludeFunc(func(string) bool { return false }))
	require.NoError(t, err)
	seeds, err := enumerator.Seeds(ctx, bookmarks)
	require.NoError(t, err)
	require.Len(t, seeds, 3)

	pipeline, err := db.NewPipeline()
	require.NoError(t, err)
	defer pipeline.Release()
	require.NoError(t, pipeline.Run(ctx, seeds, ingestion.RunConfig{}))

	status := pipeline.GetStatus()
	assert.Equal(t, 2, status.Metrics.ItemsIndexed)
	assert.Equal(t, 1, status.Metrics.ItemsFailed)

	records, err := db.QueueRepository().ListQueueRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 3)

	searcher, err := db.NewSearcher()
	require.NoError(t, err)
	results, err := searcher.Keyword(ctx, search.KeywordQuery{Text: "react hooks"})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, server.URL+"/react", results[0].Slice.URL)

	// processed pages are not offered again; the failed one is cooling down
	seeds, err = enumerator.Seeds(ctx, bookmarks)
	require.NoError(t, err)
	assert.Empty(t, seeds)

	page, err := db.PageRepository().GetPage(ctx, server.URL+"/missing")
	require.NoError(t, err)
	assert.True(t, page.Failed())
	assert.Contains(t, page.Error, "404")

}
