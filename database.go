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


package bookmind

import (
	"errors"
	"io"
	"log/slog"

	"github.com/poiesic/bookmind/ai"
	"github.com/poiesic/bookmind/ai/openai"
	"github.com/poiesic/bookmind/config"
	"github.com/poiesic/bookmind/ingestion"
	"github.com/poiesic/bookmind/reembed"
	"github.com/poiesic/bookmind/search"
	"github.com/poiesic/bookmind/source"
	"github.com/poiesic/bookmind/storage"
	"github.com/poiesic/bookmind/storage/badger"
)

// Database ties storage, the embedding provider, the pipeline and the
// searcher together.
type Database struct {
	backend  *badger.Backend
	pages    *badger.PageRepository
	slices   *badger.SliceRepository
	queue    *badger.QueueRepository
	provider ai.AIProvider
	logger   *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	aiConfig *ai.Config
	provider ai.AIProvider
	inMemory bool
}

// WithAIConfig sets the embedding service configuration.
func WithAIConfig(config *ai.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.aiConfig = config
	}
}

// WithProvider uses provider instead of building an OpenAI-compatible one.
// The database closes it.
func WithProvider(provider ai.AIProvider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

// InMemory keeps all data in memory; the path is ignored.
func InMemory() DatabaseOption {
	return func(o *databaseOptions) {
		o.inMemory = true
	}
}

// NewDatabase opens or creates the database at filePath.
func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{
		aiConfig: ai.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			backend.Close()
			return nil, err
		}
	}

	return &Database{
		backend:  backend,
		pages:    badger.NewPageRepository(backend),
		slices:   badger.NewSliceRepository(backend),
		queue:    badger.NewQueueRepository(backend),
		provider: provider,
		logger:   slog.Default().With("component", "database"),
	}, nil
}

// OpenDatabase opens the database described by cfg with its embedding
// settings. Later options override those taken from cfg.
func OpenDatabase(cfg *config.Config, opts ...DatabaseOption) (*Database, error) {
	if cfg == nil {
		return nil, errors.New("configuration required")
	}
	opts = append([]DatabaseOption{WithAIConfig(cfg.AI())}, opts...)
	return NewDatabase(cfg.Database.Path, opts...)
}

// Close releases the provider and closes the storage backend.
func (db *Database) Close() error {
	var errs []error
	if err := db.provider.Close(); err != nil {
		db.logger.Error("error closing AI provider", "err", err)
		errs = append(errs, err)
	}
	if err := db.backend.Close(); err != nil {
		db.logger.Error("error closing backend storage", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (db *Database) PageRepository() storage.PageRepository {
	return db.pages
}

func (db *Database) SliceRepository() storage.SliceRepository {
	return db.slices
}

func (db *Database) QueueRepository() storage.QueueRepository {
	return db.queue
}

func (db *Database) Embedder() ai.Embedder {
	return db.provider.Embedder()
}

// NewPipeline creates an ingestion pipeline that persists its queue state in
// this database.
func (db *Database) NewPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	opts = append([]ingestion.Option{ingestion.WithQueueRepository(db.queue)}, opts...)
	return ingestion.NewPipeline(db.pages, db.slices, db.provider.Embedder(), opts...)
}

func (db *Database) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	return search.NewSearcher(db.slices, db.provider.Embedder(), opts...)
}

func (db *Database) NewEnumerator(opts ...source.Option) (*source.Enumerator, error) {
	return source.NewEnumerator(db.pages, opts...)
}

// NewReembedder creates a reembedder over all stored slices. Progress lines
// are written to progress.
func (db *Database) NewReembedder(config *reembed.Config, progress io.Writer) (*reembed.Reembedder, error) {
	return reembed.NewReembedder(db.slices, db.provider.Embedder(), config, progress)
}
