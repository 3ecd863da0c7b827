package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"filevault/internal/model"
	"filevault/internal/repository"
)

type MockActivityRepository struct {
	mock.Mock
}

var _ repository.ActivityRepository = (*MockActivityRepository)(nil)

func (m *MockActivityRepository) Append(ctx context.Context, entry *model.ActivityLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockActivityRepository) List(ctx context.Context, filter repository.ActivityFilter, pq repository.PageQuery) (*repository.PageResult[model.ActivityLog], error) {
	args := m.Called(ctx, filter, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.ActivityLog]), args.Error(1)
}
