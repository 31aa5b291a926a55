// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/poiesic/bookmind/ai"
	"github.com/poiesic/bookmind/ingestion"
	"github.com/poiesic/bookmind/reembed"
	"github.com/poiesic/bookmind/search"
)

// EnvPrefix is prepended to environment variable names, so database.path is
// read from BOOKMIND_DATABASE_PATH.
const EnvPrefix = "BOOKMIND"

// Config is the application configuration.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Search    SearchConfig    `mapstructure:"search"`
	Reembed   ReembedConfig   `mapstructure:"reembed"`
}

// DatabaseConfig locates the Badger database.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// EmbeddingConfig selects the embedding service.
type EmbeddingConfig struct {
	Host       string `mapstructure:"host"`
	Model      string `mapstructure:"model"`
	Token      string `mapstructure:"token"`
	BatchSize  int    `mapstructure:"batch_size"`
	Dimensions int    `mapstructure:"dimensions"`
}

// PipelineConfig tunes ingestion.
type PipelineConfig struct {
	FetchConcurrency int           `mapstructure:"fetch_concurrency"`
	ChunkConcurrency int           `mapstructure:"chunk_concurrency"`
	ChunkSize        int           `mapstructure:"chunk_size"`
	ChunkOverlap     int           `mapstructure:"chunk_overlap"`
	FetchTimeout     time.Duration `mapstructure:"fetch_timeout"`
	MaxBodyBytes     int64         `mapstructure:"max_body_bytes"`
	UserAgent        string        `mapstructure:"user_agent"`
	RateLimit        float64       `mapstructure:"rate_limit"`
	StatusInterval   time.Duration `mapstructure:"status_interval"`
}

// SearchConfig sets search defaults.
type SearchConfig struct {
	TopK  int    `mapstructure:"top_k"`
	Dedup string `mapstructure:"dedup"`
}

// ReembedConfig tunes re-embedding.
type ReembedConfig struct {
	BatchSize  int           `mapstructure:"batch_size"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "bookmind.db")

	v.SetDefault("embedding.host", ai.DefaultEmbeddingHost)
	v.SetDefault("embedding.model", ai.DefaultEmbeddingModel)
	v.SetDefault("embedding.token", "")
	v.SetDefault("embedding.batch_size", ai.DefaultBatchSize)
	v.SetDefault("embedding.dimensions", 0)

	v.SetDefault("pipeline.fetch_concurrency", ingestion.DefaultFetchConcurrency)
	v.SetDefault("pipeline.chunk_concurrency", ingestion.DefaultChunkConcurrency)
	v.SetDefault("pipeline.chunk_size", ingestion.DefaultChunkSize)
	v.SetDefault("pipeline.chunk_overlap", ingestion.DefaultChunkOverlap)
	v.SetDefault("pipeline.fetch_timeout", ingestion.DefaultFetchTimeout)
	v.SetDefault("pipeline.max_body_bytes", ingestion.DefaultMaxBodyBytes)
	v.SetDefault("pipeline.user_agent", ingestion.DefaultUserAgent)
	v.SetDefault("pipeline.rate_limit", 0.0)
	v.SetDefault("pipeline.status_interval", 5*time.Second)

	v.SetDefault("search.top_k", search.DefaultVectorTopK)
	v.SetDefault("search.dedup", "url")

	v.SetDefault("reembed.batch_size", reembed.DefaultBatchSize)
	v.SetDefault("reembed.max_retries", 3)
	v.SetDefault("reembed.retry_delay", time.Second)
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// Load reads configuration from path, or from bookmind.{yaml,toml,json} in
// the working directory or ~/.bookmind when path is empty. A missing default
// file is not an error. Environment variables override file values.
func Load(path string) (*Config, error) {
	v := New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("bookmind")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.bookmind")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return LoadWithViper(v)
}

// LoadWithViper decodes and validates the configuration held by v.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ranges that the libraries would otherwise reject later.
func (c *Config) Validate() error {
	switch {
	case c.Database.Path == "":
		return errors.New("config: database.path is required")
	case c.Pipeline.FetchConcurrency < 1 || c.Pipeline.ChunkConcurrency < 1:
		return errors.New("config: pipeline concurrency must be at least 1")
	case c.Pipeline.ChunkOverlap >= c.Pipeline.ChunkSize:
		return errors.New("config: pipeline.chunk_overlap must be smaller than pipeline.chunk_size")
	case c.Pipeline.RateLimit < 0:
		return errors.New("config: pipeline.rate_limit cannot be negative")
	}
	if _, err := c.Search.KeyFunc(); err != nil {
		return err
	}
	return nil
}

// Overrides holds command-line values that take precedence over the file and
// the environment. Empty fields leave the loaded value alone.
type Overrides struct {
	DatabasePath   string
	EmbeddingHost  string
	EmbeddingModel string
}

// Apply copies the non-empty overrides into c.
func (o Overrides) Apply(c *Config) {
	if o.DatabasePath != "" {
		c.Database.Path = o.DatabasePath
	}
	if o.EmbeddingHost != "" {
		c.Embedding.Host = o.EmbeddingHost
	}
	if o.EmbeddingModel != "" {
		c.Embedding.Model = o.EmbeddingModel
	}
}

// AI returns the embedding service configuration.
func (c *Config) AI() *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(c.Embedding.Host),
		ai.WithEmbeddingModel(c.Embedding.Model),
		ai.WithAPIToken(c.Embedding.Token),
		ai.WithBatchSize(c.Embedding.BatchSize),
		ai.WithDimensions(c.Embedding.Dimensions),
	)
}

// PipelineOptions translates the pipeline section into ingestion options.
func (c *Config) PipelineOptions() []ingestion.Option {
	p := c.Pipeline
	opts := []ingestion.Option{
		ingestion.WithFetchConcurrency(p.FetchConcurrency),
		ingestion.WithChunkConcurrency(p.ChunkConcurrency),
		ingestion.WithChunking(p.ChunkSize, p.ChunkOverlap),
		ingestion.WithFetchTimeout(p.FetchTimeout),
		ingestion.WithMaxBodyBytes(p.MaxBodyBytes),
		ingestion.WithUserAgent(p.UserAgent),
	}
	if p.RateLimit > 0 {
		opts = append(opts, ingestion.WithRateLimit(p.RateLimit))
	}
	return opts
}

// ReembedSettings returns the re-embed settings.
func (c *Config) ReembedSettings() *reembed.Config {
	cfg := reembed.DefaultConfig()
	cfg.BatchSize = c.Reembed.BatchSize
	cfg.MaxRetries = c.Reembed.MaxRetries
	cfg.RetryDelay = c.Reembed.RetryDelay
	return cfg
}

// KeyFunc returns the hybrid search deduplication key.
func (s SearchConfig) KeyFunc() (search.KeyFunc, error) {
	switch strings.ToLower(s.Dedup) {
	case "", "url":
		return search.ByURL, nil
	case "title":
		return search.ByTitle, nil
	case "none", "slice":
		return search.BySlice, nil
	default:
		return nil, fmt.Errorf("config: unknown search.dedup %q", s.Dedup)
	}
}
