package mocks

import (
	"context"

	"github.com/Bitfy-AI/docs-jana-sub007/pkg/models"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/remote"
	"github.com/stretchr/testify/mock"
)

// MockService is a mock implementation of remote.Service interface.
type MockService struct {
	mock.Mock
}

var _ remote.Service = (*MockService)(nil)

func (m *MockService) List(ctx context.Context, filter models.Filter) ([]models.Item, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]models.Item), args.Error(1)
}

func (m *MockService) Get(ctx context.Context, id string) (models.Item, error) {
	args := m.Called(ctx, id)

	return args.Get(0).(models.Item), args.Error(1)
}

func (m *MockService) Mutate(ctx context.Context, id string, payload models.Item) (models.Item, error) {
	args := m.Called(ctx, id, payload)

	return args.Get(0).(models.Item), args.Error(1)
}
