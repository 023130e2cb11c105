package models

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockModel struct {
	mock.Mock
}

func (m *MockModel) Complete(_ context.Context, prompt string) (string, error) {
	args := m.Called(prompt)
	return args.String(0), args.Error(1)
}

func (m *MockModel) EmbedText(_ context.Context, input string) ([]float32, error) {
	args := m.Called(input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}
