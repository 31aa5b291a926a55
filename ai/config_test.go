package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	assert.Equal(t, "embeddinggemma", cfg.EmbeddingModel)
	assert.Equal(t, 32, cfg.BatchSize)
	assert.Zero(t, cfg.Dimensions)
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()

		assert.NotNil(t, cfg)
		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
		assert.Equal(t, DefaultBatchSize, cfg.BatchSize)
	})

	t.Run("with custom host", func(t *testing.T) {
		cfg := NewConfig(WithEmbeddingHost("http://custom:8080/v1"))

		assert.Equal(t, "http://custom:8080/v1", cfg.EmbeddingHost)
	})

	t.Run("with custom model and token", func(t *testing.T) {
		cfg := NewConfig(
			WithEmbeddingModel("text-embedding-3-small"),
			WithAPIToken("sk-test"),
		)

		assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
		assert.Equal(t, "sk-test", cfg.APIToken)
	})

	t.Run("with multiple options", func(t *testing.T) {
		cfg := NewConfig(
			WithEmbeddingHost("http://custom:8080/v1"),
			WithEmbeddingModel("custom-embed"),
			WithBatchSize(8),
			WithDimensions(256),
		)

		assert.Equal(t, "http://custom:8080/v1", cfg.EmbeddingHost)
		assert.Equal(t, "custom-embed", cfg.EmbeddingModel)
		assert.Equal(t, 8, cfg.BatchSize)
		assert.Equal(t, 256, cfg.Dimensions)
	})
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		expected string
	}{
		{
			name:     "already has /v1",
			host:     "http://localhost:11434/v1",
			expected: "http://localhost:11434/v1",
		},
		{
			name:     "missing /v1",
			host:     "http://localhost:11434",
			expected: "http://localhost:11434/v1",
		},
		{
			name:     "has trailing slash",
			host:     "http://localhost:11434/",
			expected: "http://localhost:11434/v1",
		},
		{
			name:     "empty host",
			host:     "",
			expected: "",
		},
		{
			name:     "https with path",
			host:     "https://api.example.com/openai",
			expected: "https://api.example.com/openai/v1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{EmbeddingHost: tt.host}
			cfg.Normalize()
			assert.Equal(t, tt.expected, cfg.EmbeddingHost)
		})
	}

	t.Run("fills token and batch size", func(t *testing.T) {
		cfg := &Config{EmbeddingHost: "http://localhost:11434"}
		cfg.Normalize()
		assert.Equal(t, "none", cfg.APIToken)
		assert.Equal(t, DefaultBatchSize, cfg.BatchSize)
	})

	t.Run("keeps explicit token", func(t *testing.T) {
		cfg := &Config{APIToken: "secret"}
		cfg.Normalize()
		assert.Equal(t, "secret", cfg.APIToken)
	})
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr string
	}{
		{
			name:   "valid default config",
			config: DefaultConfig(),
		},
		{
			name: "valid config without /v1 suffix",
			config: &Config{
				EmbeddingHost:  "http://localhost:11434",
				EmbeddingModel: "embeddinggemma",
			},
		},
		{
			name: "missing host",
			config: &Config{
				EmbeddingModel: "embeddinggemma",
			},
			wantErr: "EmbeddingHost is required",
		},
		{
			name: "missing model",
			config: &Config{
				EmbeddingHost: "http://localhost:11434/v1",
			},
			wantErr: "EmbeddingModel is required",
		},
		{
			name: "negative batch size",
			config: &Config{
				EmbeddingHost:  "http://localhost:11434/v1",
				EmbeddingModel: "embeddinggemma",
				BatchSize:      -1,
			},
			wantErr: "BatchSize must be at least 1",
		},
		{
			name: "negative dimensions",
			config: &Config{
				EmbeddingHost:  "http://localhost:11434/v1",
				EmbeddingModel: "embeddinggemma",
				Dimensions:     -5,
			},
			wantErr: "Dimensions cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigValidate_Normalizes(t *testing.T) {
	cfg := NewConfig(WithEmbeddingHost("http://gpu-box:8000/"))
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "http://gpu-box:8000/v1", cfg.EmbeddingHost)
}
