package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"filevault/internal/model"
	"filevault/internal/service"
)

type MockFolderService struct {
	mock.Mock
}

var _ service.FolderService = (*MockFolderService)(nil)

func (m *MockFolderService) Create(ctx context.Context, who model.Identity, name string, parentID *string) (*model.Folder, error) {
	args := m.Called(ctx, who, name, parentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Folder), args.Error(1)
}

func (m *MockFolderService) Get(ctx context.Context, who model.Identity, id string) (*model.Folder, error) {
	args := m.Called(ctx, who, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Folder), args.Error(1)
}

func (m *MockFolderService) ListContents(ctx context.Context, who model.Identity, id string) (*service.FolderContents, error) {
	args := m.Called(ctx, who, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.FolderContents), args.Error(1)
}

func (m *MockFolderService) ListRoots(ctx context.Context, who model.Identity) ([]model.Folder, error) {
	args := m.Called(ctx, who)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Folder), args.Error(1)
}

func (m *MockFolderService) Rename(ctx context.Context, who model.Identity, id, name string) (*model.Folder, error) {
	args := m.Called(ctx, who, id, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Folder), args.Error(1)
}

func (m *MockFolderService) Move(ctx context.Context, who model.Identity, id, newParentID string) (*model.Folder, error) {
	args := m.Called(ctx, who, id, newParentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Folder), args.Error(1)
}
