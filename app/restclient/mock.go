package restclient

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockRestClient struct {
	mock.Mock
}

func (m *MockRestClient) Get(_ context.Context, endpoint string, headers map[string]string) ([]byte, int, error) {
	args := m.Called(endpoint, headers)
	return args.Get(0).([]byte), args.Get(1).(int), args.Error(2)
}

func (m *MockRestClient) Head(_ context.Context, endpoint string, headers map[string]string) ([]byte, int, error) {
	args := m.Called(endpoint, headers)
	return args.Get(0).([]byte), args.Get(1).(int), args.Error(2)
}

func (m *MockRestClient) Post(_ context.Context, endpoint string, body any, headers map[string]string) ([]byte, int, error) {
	args := m.Called(endpoint, body, headers)
	return args.Get(0).([]byte), args.Get(1).(int), args.Error(2)
}

func (m *MockRestClient) PostRaw(_ context.Context, endpoint string, body []byte, contentType string) ([]byte, int, error) {
	args := m.Called(endpoint, body, contentType)
	return args.Get(0).([]byte), args.Get(1).(int), args.Error(2)
}

func (m *MockRestClient) Put(_ context.Context, endpoint string, body any, headers map[string]string) ([]byte, int, error) {
	args := m.Called(endpoint, body, headers)
	return args.Get(0).([]byte), args.Get(1).(int), args.Error(2)
}

func (m *MockRestClient) Delete(_ context.Context, endpoint string, headers map[string]string) ([]byte, int, error) {
	args := m.Called(endpoint, headers)
	return args.Get(0).([]byte), args.Get(1).(int), args.Error(2)
}
