package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"RAGBench/app/restclient"
	"RAGBench/app/utils"
)

const (
	endpoint          = "/v1/chat/completions"
	embeddingEndpoint = "/v1/embeddings"

	defaultMaxRetries = 3
)

var _ Interface = &LLMClient{}
var _ Embedder = &LLMClient{}

type LLMClient struct {
	restClient      restclient.Interface
	cache           sync.Map
	model           string
	embeddingsModel string
	temperature     float64
	maxRetries      int
	audit           *utils.AuditLogger
}

func NewLLMClient(baseURL, model, embModel string) *LLMClient {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &LLMClient{
		restClient:      restclient.NewRestClient(baseURL, nil),
		model:           model,
		embeddingsModel: embModel,
		temperature:     0.2,
		maxRetries:      defaultMaxRetries,
	}
}

// WithAudit makes the client append every completion exchange to the given
// transcript log.
func (mc *LLMClient) WithAudit(audit *utils.AuditLogger) *LLMClient {
	mc.audit = audit
	return mc
}

// Complete sends exactly one prompt as a single user message and returns the
// model's response text verbatim.
func (mc *LLMClient) Complete(ctx context.Context, prompt string) (string, error) {
	payload := requestPayload{
		Model:       mc.model,
		Messages:    []Message{{Role: "user", Content: prompt}},
		Temperature: mc.temperature,
		MaxTokens:   -1,
	}

	response, err := mc.sendRequestAndParse(ctx, payload, mc.maxRetries)
	if err != nil {
		return "", err
	}
	if len(response.Choices) == 0 {
		return "", errors.New("empty LLM response")
	}
	content := response.Choices[0].Message.Content
	mc.audit.LogExchange("completion", prompt, content)
	return content, nil
}

func (mc *LLMClient) sendRequestAndParse(ctx context.Context, payload requestPayload, maxRetries int) (*ResponseLLM, error) {
	var (
		lastErr error
		out     ResponseLLM
	)

	for i := 0; i < maxRetries; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if i > 0 {
			backoffSleep(i)
		}

		body, status, err := mc.restClient.Post(ctx, endpoint, payload, nil)
		if err != nil {
			lastErr = err
			log.Printf("⚠️ completion attempt %d failed: http=%d err=%v", i+1, status, err)
			continue
		}
		if retryableStatus(status) {
			lastErr = fmt.Errorf("llm returned status %d", status)
			log.Printf("⚠️ completion attempt %d failed: http=%d", i+1, status)
			continue
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("llm returned status %d: %s", status, string(body))
		}
		if err = json.Unmarshal(body, &out); err != nil {
			lastErr = fmt.Errorf("parse completion json: %w", err)
			log.Printf("⚠️ %v", lastErr)
			continue
		}

		return &out, nil
	}
	return nil, fmt.Errorf("completion request failed after %d retries: %w", maxRetries, lastErr)
}

// retryableStatus marks transient service failures: 5xx and throttling.
func retryableStatus(status int) bool {
	return status >= http.StatusInternalServerError || status == http.StatusTooManyRequests
}

func backoffSleep(attempt int) {
	sleep := time.Duration(100*(1<<uint(attempt))) * time.Millisecond
	sleep += time.Duration(time.Now().UnixNano() % int64(100*time.Millisecond))
	time.Sleep(sleep)
}
