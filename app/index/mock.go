package index

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockService struct {
	mock.Mock
}

var _ Service = &MockService{}

func (m *MockService) AwaitReady(_ context.Context) error {
	return m.Called().Error(0)
}

func (m *MockService) RegisterEmbeddingModel(_ context.Context) (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

func (m *MockService) CreateIndex(_ context.Context) error {
	return m.Called().Error(0)
}

func (m *MockService) CreateIngestTransform(_ context.Context, modelID string) error {
	return m.Called(modelID).Error(0)
}

func (m *MockService) BulkIngest(_ context.Context, passages []Passage) (IngestStats, error) {
	args := m.Called(passages)
	return args.Get(0).(IngestStats), args.Error(1)
}

func (m *MockService) Search(_ context.Context, query string, k int) ([]ScoredPassage, error) {
	args := m.Called(query, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ScoredPassage), args.Error(1)
}

func (m *MockService) Close() error {
	return m.Called().Error(0)
}
