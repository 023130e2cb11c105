package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"RAGBench/app/restclient"
)

const (
	bulkBatchSize     = 100
	taskPollInterval  = 5 * time.Second
	readyPollInterval = 2 * time.Second
	searchMaxRetries  = 3
)

// retryableStatus marks transient service failures: 5xx and throttling.
func retryableStatus(status int) bool {
	return status >= http.StatusInternalServerError || status == http.StatusTooManyRequests
}

func backoffSleep(attempt int) {
	sleep := time.Duration(100*(1<<uint(attempt))) * time.Millisecond
	sleep += time.Duration(time.Now().UnixNano() % int64(100*time.Millisecond))
	time.Sleep(sleep)
}

// OpenSearchService talks to an OpenSearch cluster with the ML plugin: the
// embedding model lives server-side and an ingest pipeline vectorizes passages
// on write, so callers never compute vectors themselves.
type OpenSearchService struct {
	rest    restclient.Interface
	cfg     Config
	modelID string
}

var _ Service = &OpenSearchService{}

func NewOpenSearchService(baseURL string, cfg Config) *OpenSearchService {
	return &OpenSearchService{
		rest: restclient.NewRestClient(baseURL, nil),
		cfg:  cfg,
	}
}

func (s *OpenSearchService) Close() error { return nil }

// AwaitReady polls cluster health until the service accepts traffic.
func (s *OpenSearchService) AwaitReady(ctx context.Context) error {
	for {
		body, status, err := s.rest.Get(ctx, "/_cluster/health", nil)
		if err == nil && status == http.StatusOK {
			var health struct {
				ClusterName string `json:"cluster_name"`
				Status      string `json:"status"`
			}
			if jsonErr := json.Unmarshal(body, &health); jsonErr == nil && health.Status != "red" {
				log.Printf("✅ Connected to cluster %s (status %s)", health.ClusterName, health.Status)
				return nil
			}
		}

		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("cluster never became ready: %w", err)
			}
			return fmt.Errorf("cluster never became ready: %w", ctx.Err())
		case <-time.After(readyPollInterval):
		}
	}
}

// RegisterEmbeddingModel ensures the configured embedding model is registered
// and deployed. A model already deployed under the same name is reused.
func (s *OpenSearchService) RegisterEmbeddingModel(ctx context.Context) (string, error) {
	if err := s.ensureClusterSettings(ctx); err != nil {
		return "", err
	}

	if id, err := s.findDeployedModel(ctx); err == nil && id != "" {
		s.modelID = id
		return id, nil
	}

	taskID, err := s.startModelRegistration(ctx)
	if err != nil {
		return "", err
	}
	modelID, err := s.awaitTask(ctx, taskID, true)
	if err != nil {
		return "", fmt.Errorf("model registration: %w", err)
	}

	body, status, err := s.rest.Post(ctx, "/_plugins/_ml/models/"+modelID+"/_deploy", nil, nil)
	if err != nil {
		return "", fmt.Errorf("deploy model: %w", err)
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("deploy model: status %d: %s", status, string(body))
	}
	var deploy struct {
		TaskID string `json:"task_id"`
	}
	if err = json.Unmarshal(body, &deploy); err != nil {
		return "", fmt.Errorf("parse deploy response: %w", err)
	}
	if _, err = s.awaitTask(ctx, deploy.TaskID, false); err != nil {
		return "", fmt.Errorf("model deployment: %w", err)
	}

	if err = s.awaitModelDeployed(ctx, modelID); err != nil {
		return "", err
	}

	s.modelID = modelID
	return modelID, nil
}

func (s *OpenSearchService) ensureClusterSettings(ctx context.Context) error {
	settings := map[string]any{
		"persistent": map[string]any{
			"plugins.ml_commons.only_run_on_ml_node":     "false",
			"plugins.ml_commons.native_memory_threshold": "99",
		},
	}
	body, status, err := s.rest.Put(ctx, "/_cluster/settings", settings, nil)
	if err != nil {
		return fmt.Errorf("configure ml settings: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("configure ml settings: status %d: %s", status, string(body))
	}
	return nil
}

func (s *OpenSearchService) findDeployedModel(ctx context.Context) (string, error) {
	query := map[string]any{
		"size": 1,
		"query": map[string]any{
			"bool": map[string]any{
				"must": []any{
					map[string]any{"term": map[string]any{"name.keyword": s.cfg.ModelName}},
					map[string]any{"term": map[string]any{"model_state": "DEPLOYED"}},
				},
			},
		},
	}
	body, status, err := s.rest.Post(ctx, "/_plugins/_ml/models/_search", query, nil)
	if err != nil || status != http.StatusOK {
		return "", err
	}
	var resp struct {
		Hits struct {
			Hits []struct {
				ID string `json:"_id"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err = json.Unmarshal(body, &resp); err != nil || len(resp.Hits.Hits) == 0 {
		return "", err
	}
	return resp.Hits.Hits[0].ID, nil
}

func (s *OpenSearchService) startModelRegistration(ctx context.Context) (string, error) {
	payload := map[string]any{
		"name":         s.cfg.ModelName,
		"version":      s.cfg.ModelVersion,
		"model_format": "TORCH_SCRIPT",
	}
	body, status, err := s.rest.Post(ctx, "/_plugins/_ml/models/_register", payload, nil)
	if err != nil {
		return "", fmt.Errorf("register model: %w", err)
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("register model: status %d: %s", status, string(body))
	}
	var resp struct {
		TaskID string `json:"task_id"`
	}
	if err = json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("parse register response: %w", err)
	}
	return resp.TaskID, nil
}

// awaitTask polls an ML task until it completes. Registration tasks resolve to
// a model ID.
func (s *OpenSearchService) awaitTask(ctx context.Context, taskID string, wantModelID bool) (string, error) {
	for {
		body, status, err := s.rest.Get(ctx, "/_plugins/_ml/tasks/"+taskID, nil)
		if err == nil && status == http.StatusOK {
			var task struct {
				State   string `json:"state"`
				ModelID string `json:"model_id"`
				Error   string `json:"error"`
			}
			if err = json.Unmarshal(body, &task); err != nil {
				return "", fmt.Errorf("parse task status: %w", err)
			}
			switch task.State {
			case "COMPLETED":
				if wantModelID && task.ModelID == "" {
					return "", errors.New("task completed without a model id")
				}
				return task.ModelID, nil
			case "FAILED":
				return "", fmt.Errorf("task %s failed: %s", taskID, task.Error)
			}
			log.Printf("⏳ Task %s in progress (state: %s)", taskID, task.State)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(taskPollInterval):
		}
	}
}

func (s *OpenSearchService) awaitModelDeployed(ctx context.Context, modelID string) error {
	for {
		body, status, err := s.rest.Get(ctx, "/_plugins/_ml/models/"+modelID, nil)
		if err == nil && status == http.StatusOK {
			var model struct {
				ModelState string `json:"model_state"`
			}
			if err = json.Unmarshal(body, &model); err == nil && model.ModelState == "DEPLOYED" {
				return nil
			}
			log.Printf("⏳ Model %s state: %s", modelID, model.ModelState)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("model never deployed: %w", ctx.Err())
		case <-time.After(taskPollInterval):
		}
	}
}

// CreateIndex declares the k-NN index. If the index already exists its vector
// dimension must match the configured one; anything else is a configuration
// error, not something to silently recreate.
func (s *OpenSearchService) CreateIndex(ctx context.Context) error {
	_, status, err := s.rest.Head(ctx, "/"+s.cfg.Name, nil)
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	if status == http.StatusOK {
		return s.verifyIndexSchema(ctx)
	}
	if status != http.StatusNotFound {
		return fmt.Errorf("check index: status %d", status)
	}

	indexBody := map[string]any{
		"settings": map[string]any{
			"index.knn":        true,
			"default_pipeline": s.cfg.Pipeline,
		},
		"mappings": map[string]any{
			"properties": map[string]any{
				"passage_embedding": map[string]any{
					"type":      "knn_vector",
					"dimension": s.cfg.Dimension,
					"method": map[string]any{
						"name":       "hnsw",
						"space_type": "l2",
						"engine":     "nmslib",
					},
				},
				"passage":      map[string]any{"type": "text"},
				"source_title": map[string]any{"type": "keyword"},
			},
		},
	}
	body, status, err := s.rest.Put(ctx, "/"+s.cfg.Name, indexBody, nil)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("create index: status %d: %s", status, string(body))
	}
	log.Printf("✅ Created index %q (dimension %d)", s.cfg.Name, s.cfg.Dimension)
	return nil
}

func (s *OpenSearchService) verifyIndexSchema(ctx context.Context) error {
	body, status, err := s.rest.Get(ctx, "/"+s.cfg.Name+"/_mapping", nil)
	if err != nil {
		return fmt.Errorf("fetch mapping: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("fetch mapping: status %d", status)
	}

	var mapping map[string]struct {
		Mappings struct {
			Properties map[string]struct {
				Type      string `json:"type"`
				Dimension int    `json:"dimension"`
			} `json:"properties"`
		} `json:"mappings"`
	}
	if err = json.Unmarshal(body, &mapping); err != nil {
		return fmt.Errorf("parse mapping: %w", err)
	}

	entry, ok := mapping[s.cfg.Name]
	if !ok {
		return fmt.Errorf("%w: mapping for %q missing", ErrSchemaMismatch, s.cfg.Name)
	}
	field, ok := entry.Mappings.Properties["passage_embedding"]
	if !ok || field.Type != "knn_vector" {
		return fmt.Errorf("%w: passage_embedding is not a knn_vector", ErrSchemaMismatch)
	}
	if field.Dimension != s.cfg.Dimension {
		return fmt.Errorf("%w: index has dimension %d, config wants %d",
			ErrSchemaMismatch, field.Dimension, s.cfg.Dimension)
	}
	log.Printf("✅ Index %q already exists with matching schema", s.cfg.Name)
	return nil
}

// CreateIngestTransform declares the pipeline that embeds raw passage text on
// ingestion. Redeclaring with the same model is a no-op.
func (s *OpenSearchService) CreateIngestTransform(ctx context.Context, modelID string) error {
	body, status, err := s.rest.Get(ctx, "/_ingest/pipeline/"+s.cfg.Pipeline, nil)
	if err == nil && status == http.StatusOK && pipelineUsesModel(body, s.cfg.Pipeline, modelID) {
		return nil
	}

	pipeline := map[string]any{
		"description": "Embeds passage text at ingestion time",
		"processors": []any{
			map[string]any{
				"text_embedding": map[string]any{
					"model_id": modelID,
					"field_map": map[string]any{
						"passage": "passage_embedding",
					},
				},
			},
		},
	}
	body, status, err = s.rest.Put(ctx, "/_ingest/pipeline/"+s.cfg.Pipeline, pipeline, nil)
	if err != nil {
		return fmt.Errorf("create ingest pipeline: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("create ingest pipeline: status %d: %s", status, string(body))
	}
	log.Printf("✅ Ingest pipeline %q ready", s.cfg.Pipeline)
	return nil
}

func pipelineUsesModel(body []byte, name, modelID string) bool {
	var resp map[string]struct {
		Processors []map[string]struct {
			ModelID string `json:"model_id"`
		} `json:"processors"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return false
	}
	entry, ok := resp[name]
	if !ok {
		return false
	}
	for _, proc := range entry.Processors {
		if embed, ok := proc["text_embedding"]; ok && embed.ModelID == modelID {
			return true
		}
	}
	return false
}

// BulkIngest loads passages in NDJSON batches through the default pipeline.
func (s *OpenSearchService) BulkIngest(ctx context.Context, passages []Passage) (IngestStats, error) {
	var stats IngestStats

	for start := 0; start < len(passages); start += bulkBatchSize {
		end := start + bulkBatchSize
		if end > len(passages) {
			end = len(passages)
		}
		batch := passages[start:end]

		var sb strings.Builder
		for _, p := range batch {
			action, _ := json.Marshal(map[string]any{
				"index": map[string]any{"_index": s.cfg.Name, "_id": p.ID},
			})
			doc, _ := json.Marshal(map[string]any{
				"passage":      p.Text,
				"source_title": p.SourceTitle,
			})
			sb.Write(action)
			sb.WriteByte('\n')
			sb.Write(doc)
			sb.WriteByte('\n')
		}

		body, status, err := s.rest.PostRaw(ctx, "/_bulk", []byte(sb.String()), "application/x-ndjson")
		if err != nil {
			return stats, fmt.Errorf("bulk request: %w", err)
		}
		if status != http.StatusOK {
			return stats, fmt.Errorf("bulk request: status %d: %s", status, string(body))
		}

		indexed, failed, err := parseBulkResponse(body)
		if err != nil {
			return stats, err
		}
		stats.Indexed += indexed
		stats.Failed += failed

		if (start/bulkBatchSize+1)%10 == 0 {
			log.Printf("📦 Ingested %d passages...", stats.Indexed)
		}
	}

	return stats, nil
}

func parseBulkResponse(body []byte) (indexed, failed int, err error) {
	var resp struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Status int `json:"status"`
			Error  *struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err = json.Unmarshal(body, &resp); err != nil {
		return 0, 0, fmt.Errorf("parse bulk response: %w", err)
	}
	for _, item := range resp.Items {
		op, ok := item["index"]
		if !ok {
			continue
		}
		if op.Error != nil || op.Status >= http.StatusBadRequest {
			failed++
			continue
		}
		indexed++
	}
	return indexed, failed, nil
}

// doSearch posts the query with a bounded retry on transient failures, so a
// single timeout or throttled response does not cost the whole question.
func (s *OpenSearchService) doSearch(ctx context.Context, searchBody map[string]any) ([]byte, error) {
	var lastErr error

	for i := 0; i < searchMaxRetries; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if i > 0 {
			backoffSleep(i)
		}

		body, status, err := s.rest.Post(ctx, "/"+s.cfg.Name+"/_search", searchBody, nil)
		if err != nil {
			lastErr = err
			log.Printf("⚠️ Search attempt %d failed: %v", i+1, err)
			continue
		}
		if retryableStatus(status) {
			lastErr = fmt.Errorf("status %d: %s", status, string(body))
			log.Printf("⚠️ Search attempt %d failed: http=%d", i+1, status)
			continue
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("semantic query: status %d: %s", status, string(body))
		}
		return body, nil
	}
	return nil, fmt.Errorf("semantic query failed after %d retries: %w", searchMaxRetries, lastErr)
}

// Search issues a neural query and returns passages ranked by descending
// relevance. An empty result set is valid, not an error.
func (s *OpenSearchService) Search(ctx context.Context, query string, k int) ([]ScoredPassage, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("query text is empty")
	}
	if k < 1 {
		return nil, fmt.Errorf("k must be >= 1, got %d", k)
	}
	if s.modelID == "" {
		return nil, errors.New("embedding model not registered; run setup first")
	}

	searchBody := map[string]any{
		"_source": map[string]any{
			"excludes": []string{"passage_embedding"},
		},
		"size": k,
		"query": map[string]any{
			"neural": map[string]any{
				"passage_embedding": map[string]any{
					"query_text": query,
					"model_id":   s.modelID,
					"k":          k,
				},
			},
		},
	}

	body, err := s.doSearch(ctx, searchBody)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Hits struct {
			Hits []struct {
				ID     string  `json:"_id"`
				Score  float64 `json:"_score"`
				Source struct {
					Passage     string `json:"passage"`
					SourceTitle string `json:"source_title"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err = json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse search response: %w", err)
	}

	results := make([]ScoredPassage, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		results = append(results, ScoredPassage{
			Passage: Passage{
				ID:          hit.ID,
				Text:        hit.Source.Passage,
				SourceTitle: hit.Source.SourceTitle,
			},
			Score: hit.Score,
		})
	}
	// Backends return ranked hits already; the stable sort pins the contract
	// of descending scores with ties kept in arrival order.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results, nil
}
