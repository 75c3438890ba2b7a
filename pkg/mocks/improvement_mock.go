package mocks

import (
	"context"

	"github.com/kaizen-works/kaizen/pkg/improvement"
	"github.com/kaizen-works/kaizen/pkg/models"
	"github.com/stretchr/testify/mock"
)

// MockGenerativeTextService is a mock implementation of improvement.GenerativeTextService interface.
type MockGenerativeTextService struct {
	mock.Mock
}

func (m *MockGenerativeTextService) Complete(ctx context.Context, prompt string, pc improvement.PromptContext) (string, error) {
	args := m.Called(ctx, prompt, pc)

	return args.String(0), args.Error(1)
}

// MockActorRosterProvider is a mock implementation of improvement.ActorRosterProvider interface.
type MockActorRosterProvider struct {
	mock.Mock
}

func (m *MockActorRosterProvider) List(ctx context.Context) ([]models.Actor, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]models.Actor), args.Error(1)
}
