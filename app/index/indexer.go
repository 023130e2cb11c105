package index

import (
	"context"
	"fmt"
	"log"
)

// Setup drives the one-time corpus indexing: wait for the service, register
// the embedding model, declare schema and ingest transform, bulk-load the
// corpus. Any failure here is fatal for the run; partial bulk rejections are
// reported as warnings as long as at least one passage made it in.
func Setup(ctx context.Context, svc Service, passages []Passage) error {
	if err := svc.AwaitReady(ctx); err != nil {
		return fmt.Errorf("index service not ready: %w", err)
	}

	modelID, err := svc.RegisterEmbeddingModel(ctx)
	if err != nil {
		return fmt.Errorf("register embedding model: %w", err)
	}
	log.Printf("✅ Embedding model ready: %s", modelID)

	if err = svc.CreateIndex(ctx); err != nil {
		return fmt.Errorf("create index: %w", err)
	}

	if err = svc.CreateIngestTransform(ctx, modelID); err != nil {
		return fmt.Errorf("create ingest transform: %w", err)
	}

	stats, err := svc.BulkIngest(ctx, passages)
	if err != nil {
		return fmt.Errorf("bulk ingest: %w", err)
	}
	if stats.Indexed == 0 {
		return fmt.Errorf("bulk ingest: %w", ErrNothingIndexed)
	}
	if stats.Failed > 0 {
		log.Printf("⚠️ Bulk ingest rejected %d of %d passages", stats.Failed, stats.Indexed+stats.Failed)
	}
	log.Printf("✅ Indexed %d passages", stats.Indexed)

	return nil
}
