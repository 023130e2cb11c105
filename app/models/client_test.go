package models

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"RAGBench/app/restclient"
)

func completionBody(t *testing.T, content string) string {
	t.Helper()
	resp := ResponseLLM{}
	resp.Choices = append(resp.Choices, struct {
		Index        int     `json:"index"`
		Logprobs     *string `json:"logprobs,omitempty"`
		FinishReason string  `json:"finish_reason"`
		Message      Message `json:"message"`
	}{Message: Message{Role: "assistant", Content: content}})
	b, err := json.Marshal(resp)
	require.NoError(t, err)
	return string(b)
}

func TestCompleteReturnsVerbatimText(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, endpoint, r.URL.Path)
		var payload requestPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Len(t, payload.Messages, 1)
		require.Equal(t, "user", payload.Messages[0].Role)
		w.Write([]byte(completionBody(t, "  Paris, capital of France.\n")))
	}))
	defer ts.Close()

	mc := NewLLMClient(ts.URL, "gemma3", "")
	got, err := mc.Complete(context.Background(), "What is the capital of France?")
	require.NoError(t, err)
	require.Equal(t, "  Paris, capital of France.\n", got)
}

func TestCompleteRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(completionBody(t, "ok")))
	}))
	defer ts.Close()

	mc := NewLLMClient(ts.URL, "gemma3", "")
	got, err := mc.Complete(context.Background(), "q")
	require.NoError(t, err)
	require.Equal(t, "ok", got)
	require.EqualValues(t, 3, calls.Load())
}

func TestCompleteExhaustsRetries(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	mc := NewLLMClient(ts.URL, "gemma3", "")
	_, err := mc.Complete(context.Background(), "q")
	require.Error(t, err)
}

func TestCompleteDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	mc := NewLLMClient(ts.URL, "gemma3", "")
	_, err := mc.Complete(context.Background(), "q")
	require.Error(t, err)
	require.EqualValues(t, 1, calls.Load())
}

func TestEmbedTextCachesVectors(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, embeddingEndpoint, r.URL.Path)
		calls.Add(1)
		json.NewEncoder(w).Encode(embeddingResponse{
			Data: []embeddingItem{{Embedding: []float32{0.1, 0.2, 0.3}}},
		})
	}))
	defer ts.Close()

	mc := NewLLMClient(ts.URL, "gemma3", "all-minilm")
	v1, err := mc.EmbedText(context.Background(), "hello")
	require.NoError(t, err)
	v2, err := mc.EmbedText(context.Background(), "hello")
	require.NoError(t, err)
	require.Equal(t, v1, v2)
	require.EqualValues(t, 1, calls.Load())
}

func TestEmbedTextRequiresModel(t *testing.T) {
	mc := &LLMClient{restClient: &restclient.MockRestClient{}}
	_, err := mc.EmbedText(context.Background(), "hello")
	require.Error(t, err)
}
