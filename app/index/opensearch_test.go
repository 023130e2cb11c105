package index

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"RAGBench/app/restclient"
)

func osService(rest restclient.Interface) *OpenSearchService {
	return &OpenSearchService{
		rest: rest,
		cfg: Config{
			Name:      "wiki-passages",
			Pipeline:  "passage-embedding-pipeline",
			ModelName: "huggingface/sentence-transformers/all-MiniLM-L6-v2",
			Dimension: 384,
		},
	}
}

func TestCreateIndexIsIdempotent(t *testing.T) {
	rest := &restclient.MockRestClient{}
	rest.On("Head", "/wiki-passages", mock.Anything).Return([]byte{}, http.StatusOK, nil)
	rest.On("Get", "/wiki-passages/_mapping", mock.Anything).Return([]byte(`{
		"wiki-passages": {"mappings": {"properties": {
			"passage_embedding": {"type": "knn_vector", "dimension": 384},
			"passage": {"type": "text"}
		}}}
	}`), http.StatusOK, nil)

	svc := osService(rest)
	require.NoError(t, svc.CreateIndex(context.Background()))
	rest.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateIndexSchemaMismatchIsFatal(t *testing.T) {
	rest := &restclient.MockRestClient{}
	rest.On("Head", "/wiki-passages", mock.Anything).Return([]byte{}, http.StatusOK, nil)
	rest.On("Get", "/wiki-passages/_mapping", mock.Anything).Return([]byte(`{
		"wiki-passages": {"mappings": {"properties": {
			"passage_embedding": {"type": "knn_vector", "dimension": 768}
		}}}
	}`), http.StatusOK, nil)

	svc := osService(rest)
	err := svc.CreateIndex(context.Background())
	require.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestCreateIndexWhenAbsent(t *testing.T) {
	rest := &restclient.MockRestClient{}
	rest.On("Head", "/wiki-passages", mock.Anything).Return([]byte{}, http.StatusNotFound, nil)
	rest.On("Put", "/wiki-passages", mock.Anything, mock.Anything).Return([]byte(`{"acknowledged":true}`), http.StatusOK, nil)

	svc := osService(rest)
	require.NoError(t, svc.CreateIndex(context.Background()))
	rest.AssertCalled(t, "Put", "/wiki-passages", mock.Anything, mock.Anything)
}

func TestCreateIngestTransformReusesExistingPipeline(t *testing.T) {
	rest := &restclient.MockRestClient{}
	rest.On("Get", "/_ingest/pipeline/passage-embedding-pipeline", mock.Anything).Return([]byte(`{
		"passage-embedding-pipeline": {"processors": [
			{"text_embedding": {"model_id": "model-1"}}
		]}
	}`), http.StatusOK, nil)

	svc := osService(rest)
	require.NoError(t, svc.CreateIngestTransform(context.Background(), "model-1"))
	rest.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything)
}

func TestBulkIngestCountsPartialFailures(t *testing.T) {
	rest := &restclient.MockRestClient{}
	rest.On("PostRaw", "/_bulk", mock.Anything, "application/x-ndjson").Return([]byte(`{
		"errors": true,
		"items": [
			{"index": {"status": 201}},
			{"index": {"status": 400, "error": {"type": "mapper_parsing_exception", "reason": "bad doc"}}},
			{"index": {"status": 201}}
		]
	}`), http.StatusOK, nil)

	svc := osService(rest)
	stats, err := svc.BulkIngest(context.Background(), []Passage{
		{ID: "0", Text: "a"}, {ID: "1", Text: "b"}, {ID: "2", Text: "c"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, stats.Indexed)
	require.Equal(t, 1, stats.Failed)
}

func TestSearchValidatesInput(t *testing.T) {
	svc := osService(&restclient.MockRestClient{})
	svc.modelID = "model-1"

	_, err := svc.Search(context.Background(), "  ", 5)
	require.Error(t, err)

	_, err = svc.Search(context.Background(), "capital of France", 0)
	require.Error(t, err)
}

func TestSearchRanksByDescendingScore(t *testing.T) {
	rest := &restclient.MockRestClient{}
	rest.On("Post", "/wiki-passages/_search", mock.Anything, mock.Anything).Return([]byte(`{
		"hits": {"hits": [
			{"_id": "2", "_score": 0.91, "_source": {"passage": "Paris is the capital of France.", "source_title": "Paris"}},
			{"_id": "7", "_score": 0.44, "_source": {"passage": "Photosynthesis converts light.", "source_title": "Photosynthesis"}}
		]}
	}`), http.StatusOK, nil)

	svc := osService(rest)
	svc.modelID = "model-1"
	got, err := svc.Search(context.Background(), "What is the capital of France?", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "Paris", got[0].Passage.SourceTitle)
	require.GreaterOrEqual(t, got[0].Score, got[1].Score)
}

func TestSearchRetriesTransientFailures(t *testing.T) {
	rest := &restclient.MockRestClient{}
	rest.On("Post", "/wiki-passages/_search", mock.Anything, mock.Anything).
		Return([]byte(`service busy`), http.StatusServiceUnavailable, nil).Once()
	rest.On("Post", "/wiki-passages/_search", mock.Anything, mock.Anything).
		Return([]byte(`{"hits": {"hits": [
			{"_id": "2", "_score": 0.91, "_source": {"passage": "Paris is the capital of France.", "source_title": "Paris"}}
		]}}`), http.StatusOK, nil).Once()

	svc := osService(rest)
	svc.modelID = "model-1"
	got, err := svc.Search(context.Background(), "What is the capital of France?", 2)
	require.NoError(t, err)
	require.Len(t, got, 1)
	rest.AssertNumberOfCalls(t, "Post", 2)
}

func TestSearchExhaustsRetriesOnPersistentFailure(t *testing.T) {
	rest := &restclient.MockRestClient{}
	rest.On("Post", "/wiki-passages/_search", mock.Anything, mock.Anything).
		Return([]byte(`{}`), http.StatusServiceUnavailable, nil)

	svc := osService(rest)
	svc.modelID = "model-1"
	_, err := svc.Search(context.Background(), "capital of France", 2)
	require.Error(t, err)
	rest.AssertNumberOfCalls(t, "Post", 3)
}

func TestSearchDoesNotRetryClientErrors(t *testing.T) {
	rest := &restclient.MockRestClient{}
	rest.On("Post", "/wiki-passages/_search", mock.Anything, mock.Anything).
		Return([]byte(`bad query`), http.StatusBadRequest, nil)

	svc := osService(rest)
	svc.modelID = "model-1"
	_, err := svc.Search(context.Background(), "capital of France", 2)
	require.Error(t, err)
	rest.AssertNumberOfCalls(t, "Post", 1)
}

func TestSearchEmptyResultIsValid(t *testing.T) {
	rest := &restclient.MockRestClient{}
	rest.On("Post", "/wiki-passages/_search", mock.Anything, mock.Anything).Return([]byte(`{"hits": {"hits": []}}`), http.StatusOK, nil)

	svc := osService(rest)
	svc.modelID = "model-1"
	got, err := svc.Search(context.Background(), "unanswerable", 10)
	require.NoError(t, err)
	require.Empty(t, got)
}
