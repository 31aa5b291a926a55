package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/bookmind/ai"
	"github.com/poiesic/bookmind/core"
	"github.com/poiesic/bookmind/ingestion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "bookmind.db", cfg.Database.Path)
	assert.Equal(t, ai.DefaultEmbeddingModel, cfg.Embedding.Model)
	assert.Equal(t, ingestion.DefaultFetchConcurrency, cfg.Pipeline.FetchConcurrency)
	assert.Equal(t, ingestion.DefaultChunkConcurrency, cfg.Pipeline.ChunkConcurrency)
	assert.Equal(t, ingestion.DefaultChunkSize, cfg.Pipeline.ChunkSize)
	assert.Equal(t, ingestion.DefaultFetchTimeout, cfg.Pipeline.FetchTimeout)
	assert.Equal(t, int64(ingestion.DefaultMaxBodyBytes), cfg.Pipeline.MaxBodyBytes)
	assert.Equal(t, 5*time.Second, cfg.Pipeline.StatusInterval)
	assert.Equal(t, "url", cfg.Search.Dedup)
	assert.Equal(t, 3, cfg.Reembed.MaxRetries)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := writeConfig(t, "bookmind.yaml", `
database:
  path: /var/lib/bookmind
embedding:
  host: http://gpu-box:8080
  model: nomic-embed-text
  batch_size: 16
pipeline:
  fetch_concurrency: 4
  fetch_timeout: 30s
  rate_limit: 2.5
search:
  dedup: title
reembed:
  retry_delay: 250ms
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/bookmind", cfg.Database.Path)
	assert.Equal(t, "http://gpu-box:8080", cfg.Embedding.Host)
	assert.Equal(t, "nomic-embed-text", cfg.Embedding.Model)
	assert.Equal(t, 16, cfg.Embedding.BatchSize)
	assert.Equal(t, 4, cfg.Pipeline.FetchConcurrency)
	assert.Equal(t, ingestion.DefaultChunkConcurrency, cfg.Pipeline.ChunkConcurrency, "unset keys keep defaults")
	assert.Equal(t, 30*time.Second, cfg.Pipeline.FetchTimeout)
	assert.Equal(t, 2.5, cfg.Pipeline.RateLimit)
	assert.Equal(t, 250*time.Millisecond, cfg.Reembed.RetryDelay)

	aiCfg := cfg.AI()
	require.NoError(t, aiCfg.Validate())
	assert.Equal(t, "http://gpu-box:8080/v1", aiCfg.EmbeddingHost)

	assert.Len(t, cfg.PipelineOptions(), 7, "rate limit adds an option")
	assert.Equal(t, 250*time.Millisecond, cfg.ReembedSettings().RetryDelay)
}

func TestLoad_TOMLFile(t *testing.T) {
	path := writeConfig(t, "bookmind.toml", `
[pipeline]
chunk_size = 800
chunk_overlap = 100
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 800, cfg.Pipeline.ChunkSize)
	assert.Equal(t, 100, cfg.Pipeline.ChunkOverlap)
	assert.Len(t, cfg.PipelineOptions(), 6)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "bookmind.yaml", "database:\n  path: from-file.db\n")
	t.Setenv("BOOKMIND_DATABASE_PATH", "from-env.db")
	t.Setenv("BOOKMIND_PIPELINE_FETCH_TIMEOUT", "45s")
	t.Setenv("BOOKMIND_EMBEDDING_MODEL", "mxbai-embed-large")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env.db", cfg.Database.Path)
	assert.Equal(t, 45*time.Second, cfg.Pipeline.FetchTimeout)
	assert.Equal(t, "mxbai-embed-large", cfg.Embedding.Model)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"overlap not smaller than size", "pipeline:\n  chunk_size: 100\n  chunk_overlap: 100\n"},
		{"zero concurrency", "pipeline:\n  fetch_concurrency: 0\n"},
		{"negative rate", "pipeline:\n  rate_limit: -1\n"},
		{"unknown dedup", "search:\n  dedup: domain\n"},
		{"empty database path", "database:\n  path: \"\"\n"},
		{"malformed yaml", "pipeline: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "bookmind.yaml", tt.content))
			assert.Error(t, err)
		})
	}

	t.Run("missing explicit file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})
}

func TestSearchConfig_KeyFunc(t *testing.T) {
	s := slice("https://example.com/a", "Title A")

	tests := []struct {
		dedup string
		want  string
	}{
		{"", "https://example.com/a"},
		{"URL", "https://example.com/a"},
		{"title", "Title A"},
		{"none", "https://example.com/a#0"},
	}
	for _, tt := range tests {
		t.Run(tt.dedup, func(t *testing.T) {
			key, err := SearchConfig{Dedup: tt.dedup}.KeyFunc()
			require.NoError(t, err)
			assert.Equal(t, tt.want, key(s))
		})
	}
}


func slice(url, title string) *core.Slice {
	return core.NewSlice(url, title, core.Chunk{Text: "text", Position: 0})
}

func TestOverrides_Apply(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("BOOKMIND_EMBEDDING_MODEL", "env-model")

	cfg, err := Load("")
	require.NoError(t, err)

	Overrides{DatabasePath: "flag.db"}.Apply(cfg)
	assert.Equal(t, "flag.db", cfg.Database.Path)
	assert.Equal(t, "env-model", cfg.Embedding.Model, "empty override keeps the environment value")

	Overrides{EmbeddingHost: "http://embed:8080", EmbeddingModel: "flag-model"}.Apply(cfg)
	assert.Equal(t, "http://embed:8080", cfg.Embedding.Host)
	assert.Equal(t, "flag-model", cfg.Embedding.Model)
	assert.Equal(t, "flag-model", cfg.AI().EmbeddingModel)
}
