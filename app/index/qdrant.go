package index

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"RAGBench/app/models"
)

// qdrantNamespace makes point IDs deterministic per passage ID, so re-running
// ingestion upserts instead of duplicating.
var qdrantNamespace = uuid.MustParse("9a3e7c52-4b1d-4f6e-8a0f-2d5c6e7b8a91")

// QdrantService backs the Document Index Service with a Qdrant collection.
// Qdrant has no server-side embedding pipeline, so the ingest transform is
// applied client-side through the configured embedder.
type QdrantService struct {
	client   *qdrant.Client
	embedder models.Embedder
	cfg      Config
}

var _ Service = &QdrantService{}

func NewQdrantService(host string, port int, embedder models.Embedder, cfg Config) (*QdrantService, error) {
	if host == "" {
		host = "localhost"
	}
	if port == 0 {
		port = 6334
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, err
	}
	return &QdrantService{
		client:   client,
		embedder: embedder,
		cfg:      cfg,
	}, nil
}

func (s *QdrantService) Close() error { return s.client.Close() }

func pointFromPassage(p Passage, vec []float32) *qdrant.PointStruct {
	return &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(uuid.NewSHA1(qdrantNamespace, []byte(p.ID)).String()),
		Vectors: qdrant.NewVectors(vec...),
		Payload: qdrant.NewValueMap(map[string]any{
			"id":           p.ID,
			"passage":      p.Text,
			"source_title": p.SourceTitle,
		}),
	}
}

func (s *QdrantService) AwaitReady(ctx context.Context) error {
	for {
		if _, err := s.client.HealthCheck(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("qdrant never became ready: %w", ctx.Err())
		case <-time.After(readyPollInterval):
		}
	}
}

// RegisterEmbeddingModel probes the embedder once and checks that its output
// dimensionality matches the collection configuration.
func (s *QdrantService) RegisterEmbeddingModel(ctx context.Context) (string, error) {
	if s.embedder == nil {
		return "", errors.New("qdrant backend requires an embedder")
	}
	vec, err := s.embedder.EmbedText(ctx, "embedding dimension probe")
	if err != nil {
		return "", fmt.Errorf("probe embedding model: %w", err)
	}
	if len(vec) != s.cfg.Dimension {
		return "", fmt.Errorf("%w: embedding model produces dimension %d, config wants %d",
			ErrSchemaMismatch, len(vec), s.cfg.Dimension)
	}
	return s.cfg.ModelName, nil
}

// CreateIndex declares the collection. If it already exists its vector size
// must match the configured dimension; anything else is a configuration error,
// not something to silently recreate.
func (s *QdrantService) CreateIndex(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Name)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if exists {
		info, err := s.client.GetCollectionInfo(ctx, s.cfg.Name)
		if err != nil {
			return fmt.Errorf("fetch collection info: %w", err)
		}
		if err = verifyCollectionSchema(info, s.cfg.Dimension); err != nil {
			return err
		}
		log.Printf("✅ Collection %q already exists with matching schema", s.cfg.Name)
		return nil
	}
	if err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Name,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(s.cfg.Dimension),
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	}); err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	log.Printf("✅ Created collection %q (dimension %d)", s.cfg.Name, s.cfg.Dimension)
	return nil
}

func verifyCollectionSchema(info *qdrant.CollectionInfo, dimension int) error {
	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params == nil {
		return fmt.Errorf("%w: collection has no dense vector configuration", ErrSchemaMismatch)
	}
	if int(params.Size) != dimension {
		return fmt.Errorf("%w: collection has dimension %d, config wants %d",
			ErrSchemaMismatch, params.Size, dimension)
	}
	return nil
}

// CreateIngestTransform is a no-op for Qdrant: vectors are computed in
// BulkIngest by the embedder registered above.
func (s *QdrantService) CreateIngestTransform(_ context.Context, _ string) error {
	return nil
}

func (s *QdrantService) BulkIngest(ctx context.Context, passages []Passage) (IngestStats, error) {
	var stats IngestStats

	for start := 0; start < len(passages); start += bulkBatchSize {
		end := start + bulkBatchSize
		if end > len(passages) {
			end = len(passages)
		}

		pts := make([]*qdrant.PointStruct, 0, end-start)
		for _, p := range passages[start:end] {
			vec, err := s.embedder.EmbedText(ctx, p.Text)
			if err != nil {
				if ctx.Err() != nil {
					return stats, ctx.Err()
				}
				stats.Failed++
				log.Printf("⚠️ Embedding failed for passage %s: %v", p.ID, err)
				continue
			}
			pts = append(pts, pointFromPassage(p, vec))
		}
		if len(pts) == 0 {
			continue
		}

		if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.cfg.Name,
			Points:         pts,
		}); err != nil {
			return stats, fmt.Errorf("upsert batch: %w", err)
		}
		stats.Indexed += len(pts)

		if (start/bulkBatchSize+1)%10 == 0 {
			log.Printf("📦 Ingested %d passages...", stats.Indexed)
		}
	}

	return stats, nil
}

func (s *QdrantService) Search(ctx context.Context, query string, k int) ([]ScoredPassage, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("query text is empty")
	}
	if k < 1 {
		return nil, fmt.Errorf("k must be >= 1, got %d", k)
	}

	vec, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	limit := uint64(k)
	var (
		resp    []*qdrant.ScoredPoint
		lastErr error
	)
	for i := 0; i < searchMaxRetries; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if i > 0 {
			backoffSleep(i)
		}
		resp, err = s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: s.cfg.Name,
			Limit:          &limit,
			Query:          qdrant.NewQuery(vec...),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			lastErr = err
			log.Printf("⚠️ Search attempt %d failed: %v", i+1, err)
			continue
		}
		lastErr = nil
		break
	}
	if lastErr != nil {
		return nil, fmt.Errorf("semantic query failed after %d retries: %w", searchMaxRetries, lastErr)
	}

	results := make([]ScoredPassage, 0, len(resp))
	for _, r := range resp {
		p := Passage{}
		if v, ok := r.Payload["id"]; ok {
			p.ID = v.GetStringValue()
		}
		if v, ok := r.Payload["passage"]; ok {
			p.Text = v.GetStringValue()
		}
		if v, ok := r.Payload["source_title"]; ok {
			p.SourceTitle = v.GetStringValue()
		}
		results = append(results, ScoredPassage{Passage: p, Score: float64(r.Score)})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results, nil
}
