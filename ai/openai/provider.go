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


package openai

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/poiesic/bookmind/ai"
)

// DefaultRequestTimeout bounds a single embedding request.
const DefaultRequestTimeout = 2 * time.Minute

// Provider implements ai.AIProvider over an OpenAI-compatible embedding API.
// All services share one HTTP client.
type Provider struct {
	config   *ai.Config
	client   *http.Client
	embedder *Embedder
	logger   *slog.Logger
}

// NewProvider validates config, using ai.DefaultConfig when nil, and creates
// the provider. No request is made until the embedder is used.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	if config == nil {
		config = ai.DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: DefaultRequestTimeout}
	embedder, err := newEmbedder(config, client)
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("component", "openai-provider")
	logger.Debug("embedding provider ready", "host", config.EmbeddingHost, "model", config.EmbeddingModel)

	return &Provider{
		config:   config,
		client:   client,
		embedder: embedder,
		logger:   logger,
	}, nil
}

func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Close drops idle connections to the embedding service.
func (p *Provider) Close() error {
	p.logger.Debug("closing provider")
	p.client.CloseIdleConnections()
	return nil
}
