package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"filevault/internal/model"
	"filevault/internal/repository"
)

type MockFileRepository struct {
	mock.Mock
}

var _ repository.FileRepository = (*MockFileRepository)(nil)

func (m *MockFileRepository) Create(ctx context.Context, f *model.File) error {
	args := m.Called(ctx, f)
	return args.Error(0)
}

func (m *MockFileRepository) FindByID(ctx context.Context, id string) (*model.File, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.File), args.Error(1)
}

func (m *MockFileRepository) FindByIDForUpdate(ctx context.Context, id string) (*model.File, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.File), args.Error(1)
}

func (m *MockFileRepository) ListByFolder(ctx context.Context, folderID string, includeDeleted bool) ([]model.File, error) {
	args := m.Called(ctx, folderID, includeDeleted)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.File), args.Error(1)
}

func (m *MockFileRepository) Rename(ctx context.Context, id, name string, at time.Time) error {
	args := m.Called(ctx, id, name, at)
	return args.Error(0)
}

func (m *MockFileRepository) SetFolder(ctx context.Context, id, folderID string, at time.Time) error {
	args := m.Called(ctx, id, folderID, at)
	return args.Error(0)
}

func (m *MockFileRepository) UpdateContent(ctx context.Context, f *model.File) error {
	args := m.Called(ctx, f)
	return args.Error(0)
}

func (m *MockFileRepository) MarkDeleted(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockFileRepository) MarkRestored(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockFileRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockFileRepository) ListExpired(ctx context.Context, before time.Time) ([]model.File, error) {
	args := m.Called(ctx, before)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.File), args.Error(1)
}

func (m *MockFileRepository) ListDeleted(ctx context.Context, createdBy string, pq repository.PageQuery) (*repository.PageResult[model.File], error) {
	args := m.Called(ctx, createdBy, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.File]), args.Error(1)
}
