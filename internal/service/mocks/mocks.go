package mocks

import (
	"context"

	"github.com/smesochoritis-afk/streetkiosk-loyalty/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockProgressStore struct {
	mock.Mock
}

func (m *MockProgressStore) GetOrCreateProgress(ctx context.Context, userID string) (*model.Progress, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Progress), args.Error(1)
}

func (m *MockProgressStore) GetUser(ctx context.Context, userID string) (*model.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockProgressStore) MutateProgress(ctx context.Context, userID string, mutate func(p *model.Progress) (bool, error)) (*model.Progress, error) {
	args := m.Called(ctx, userID, mutate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Progress), args.Error(1)
}
