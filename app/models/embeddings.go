package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
)

func (mc *LLMClient) EmbedText(ctx context.Context, input string) ([]float32, error) {
	if v, ok := mc.cache.Load(input); ok {
		if emb, ok2 := v.([]float32); ok2 {
			return emb, nil
		}
	}

	if mc.embeddingsModel == "" {
		return nil, errors.New("embeddings model is empty; configure llm.embeddings_model")
	}

	req := embeddingRequestPayload{
		Model: mc.embeddingsModel,
		Input: input,
	}
	resp, err := mc.sendEmbeddings(ctx, req, mc.maxRetries)
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding data returned")
	}
	emb := resp.Data[0].Embedding
	mc.cache.Store(input, emb)
	return emb, nil
}

func (mc *LLMClient) sendEmbeddings(ctx context.Context, payload embeddingRequestPayload, maxRetries int) (*embeddingResponse, error) {
	var (
		lastErr error
		out     embeddingResponse
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

		body, status, err := mc.restClient.Post(ctx, embeddingEndpoint, payload, nil)
		if err != nil {
			lastErr = err
			log.Printf("⚠️ embed attempt %d failed: http=%d err=%v", i+1, status, err)
			continue
		}
		if retryableStatus(status) {
			lastErr = fmt.Errorf("embeddings returned status %d", status)
			log.Printf("⚠️ embed attempt %d failed: http=%d", i+1, status)
			continue
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("embeddings returned status %d: %s", status, string(body))
		}
		if err := json.Unmarshal(body, &out); err != nil {
			lastErr = fmt.Errorf("parse embeddings json: %w", err)
			log.Printf("⚠️ %v", lastErr)
			continue
		}

		return &out, nil
	}
	return nil, fmt.Errorf("embeddings request failed after %d retries: %w", maxRetries, lastErr)
}
