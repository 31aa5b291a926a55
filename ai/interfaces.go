package ai

import "context"

// Embedder turns text into vectors for similarity search.
//
// Implementations are safe for concurrent use and do not throttle
// themselves: the pipeline's stage runner bounds how many calls are in flight.
type Embedder interface {
	// EmbedText returns the embedding of a single text, typically a query.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts returns one embedding per text, in input order. A failure
	// for any text fails the whole call.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// AIProvider owns the model services and their connections.
type AIProvider interface {
	Embedder() Embedder

	// Close releases connections. Services obtained from the provider must
	// not be used afterwards.
	Close() error
}
