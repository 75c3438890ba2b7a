package mocks

import (
	"context"

	"github.com/kaizen-works/kaizen/pkg/models"
	"github.com/stretchr/testify/mock"
)

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock
}

func (m *MockPersistence) LoadVersions(ctx context.Context) ([]*models.WorkflowVersion, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.WorkflowVersion), args.Error(1)
}

func (m *MockPersistence) SaveVersions(ctx context.Context, versions []*models.WorkflowVersion) error {
	args := m.Called(ctx, versions)

	return args.Error(0)
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
