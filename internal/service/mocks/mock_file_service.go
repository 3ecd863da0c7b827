package mocks

import (
	"context"
	"io"
	"time"

	"github.com/stretchr/testify/mock"

	"filevault/internal/model"
	"filevault/internal/service"
)

type MockFileService struct {
	mock.Mock
}

var _ service.FileService = (*MockFileService)(nil)

func (m *MockFileService) Upload(ctx context.Context, who model.Identity, folderID string, in service.UploadInput) (*model.File, error) {
	args := m.Called(ctx, who, folderID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.File), args.Error(1)
}

func (m *MockFileService) UploadVersion(ctx context.Context, who model.Identity, fileID string, in service.UploadInput) (*model.File, error) {
	args := m.Called(ctx, who, fileID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.File), args.Error(1)
}

func (m *MockFileService) Get(ctx context.Context, who model.Identity, id string) (*model.File, error) {
	args := m.Called(ctx, who, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.File), args.Error(1)
}

func (m *MockFileService) Download(ctx context.Context, who model.Identity, id string) (io.ReadCloser, *model.File, error) {
	args := m.Called(ctx, who, id)
	var rc io.ReadCloser
	if v := args.Get(0); v != nil {
		rc = v.(io.ReadCloser)
	}
	var f *model.File
	if v := args.Get(1); v != nil {
		f = v.(*model.File)
	}
	return rc, f, args.Error(2)
}

func (m *MockFileService) PresignDownload(ctx context.Context, who model.Identity, id string, expiry time.Duration) (string, error) {
	args := m.Called(ctx, who, id, expiry)
	return args.String(0), args.Error(1)
}

func (m *MockFileService) Rename(ctx context.Context, who model.Identity, id, name string) (*model.File, error) {
	args := m.Called(ctx, who, id, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.File), args.Error(1)
}

func (m *MockFileService) Move(ctx context.Context, who model.Identity, id, newFolderID string) (*model.File, error) {
	args := m.Called(ctx, who, id, newFolderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.File), args.Error(1)
}

func (m *MockFileService) ListVersions(ctx context.Context, who model.Identity, id string) ([]model.FileVersion, error) {
	args := m.Called(ctx, who, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.FileVersion), args.Error(1)
}
