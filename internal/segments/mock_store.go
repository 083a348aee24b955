package segments

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) LoadSegments(ctx context.Context, lessonID string) ([]Segment, error) {
	args := m.Called(ctx, lessonID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Segment), args.Error(1)
}

func (m *MockStore) SaveSegments(ctx context.Context, lessonID string, list []Segment) error {
	args := m.Called(ctx, lessonID, list)
	return args.Error(0)
}
