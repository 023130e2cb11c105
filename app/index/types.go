package index

import (
	"context"
	"errors"
)

// Passage is a single indexed unit of source text. Immutable once ingested.
type Passage struct {
	ID          string
	Text        string
	SourceTitle string
}

// ScoredPassage pairs a retrieved passage with its relevance score.
type ScoredPassage struct {
	Passage Passage
	Score   float64
}

// IngestStats reports the outcome of a bulk load.
type IngestStats struct {
	Indexed int
	Failed  int
}

// ErrSchemaMismatch means an index already exists with a schema incompatible
// with the configured embedding dimension. Fatal: results against a stale
// schema would be meaningless.
var ErrSchemaMismatch = errors.New("index schema mismatch")

// ErrNothingIndexed means the bulk load rejected every passage.
var ErrNothingIndexed = errors.New("no passages were indexed")

// Service is the narrow surface of the external Document Index Service. All
// setup operations are idempotent: rerunning them against an already-configured
// index is a no-op.
type Service interface {
	AwaitReady(ctx context.Context) error
	RegisterEmbeddingModel(ctx context.Context) (string, error)
	CreateIndex(ctx context.Context) error
	CreateIngestTransform(ctx context.Context, modelID string) error
	BulkIngest(ctx context.Context, passages []Passage) (IngestStats, error)
	Search(ctx context.Context, query string, k int) ([]ScoredPassage, error)
	Close() error
}

// Searcher is the retrieval-only view of the service used by the evaluation
// pipeline once the index is populated.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]ScoredPassage, error)
}

// Config describes one vector index regardless of backend.
type Config struct {
	Name         string
	Pipeline     string
	ModelName    string
	ModelVersion string
	Dimension    int
}
