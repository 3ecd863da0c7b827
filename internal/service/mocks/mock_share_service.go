package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"filevault/internal/model"
	"filevault/internal/service"
)

type MockShareService struct {
	mock.Mock
}

var _ service.ShareService = (*MockShareService)(nil)

func (m *MockShareService) Create(ctx context.Context, who model.Identity, in service.ShareInput) (*model.ShareLink, error) {
	args := m.Called(ctx, who, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ShareLink), args.Error(1)
}

func (m *MockShareService) Resolve(ctx context.Context, token string, password *string) (*service.SharedResource, error) {
	args := m.Called(ctx, token, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SharedResource), args.Error(1)
}

func (m *MockShareService) RecordDownload(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockShareService) DownloadShared(ctx context.Context, token string, password *string) (io.ReadCloser, *model.File, error) {
	args := m.Called(ctx, token, password)
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

func (m *MockShareService) List(ctx context.Context, who model.Identity, rt model.ResourceType, resourceID string) ([]model.ShareLink, error) {
	args := m.Called(ctx, who, rt, resourceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ShareLink), args.Error(1)
}

func (m *MockShareService) Deactivate(ctx context.Context, who model.Identity, id string) error {
	args := m.Called(ctx, who, id)
	return args.Error(0)
}
