package models

import "context"

// Interface is the generative model surface the pipeline consumes: one prompt
// in, the model's full text response out, verbatim.
type Interface interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Embedder turns text into a dense vector using the configured embeddings
// model. Index backends that embed client-side depend on it.
type Embedder interface {
	EmbedText(ctx context.Context, input string) ([]float32, error)
}
