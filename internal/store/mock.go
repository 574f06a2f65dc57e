package store

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockMessageStore struct {
	mock.Mock
}

func (m *MockMessageStore) SaveMessage(ctx context.Context, msg Message) (Message, error) {
	args := m.Called(ctx, msg)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockMessageStore) ProjectMessages(ctx context.Context, projectId string, limit int64) ([]Message, error) {
	args := m.Called(ctx, projectId, limit)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockMessageStore) Conversation(ctx context.Context, userA, userB string, limit int64) ([]Message, error) {
	args := m.Called(ctx, userA, userB, limit)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockMessageStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockProfileDirectory struct {
	mock.Mock
}

func (m *MockProfileDirectory) Profile(ctx context.Context, userId string) (Profile, error) {
	args := m.Called(ctx, userId)
	return args.Get(0).(Profile), args.Error(1)
}
