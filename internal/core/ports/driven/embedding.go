package driven

import "context"

// EmbeddingService turns text into vectors. Storage and search of those
// vectors belong to VectorStore.
type EmbeddingService interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per input, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions is the length of every vector the model returns.
	Dimensions() int
	ModelName() string

	// Ping makes the cheapest request the provider offers.
	Ping(ctx context.Context) error
	Close() error
}
