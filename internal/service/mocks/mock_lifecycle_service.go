package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"filevault/internal/model"
	"filevault/internal/service"
)

type MockLifecycleService struct {
	mock.Mock
}

var _ service.LifecycleService = (*MockLifecycleService)(nil)

func (m *MockLifecycleService) SoftDeleteFolder(ctx context.Context, who model.Identity, id string) error {
	args := m.Called(ctx, who, id)
	return args.Error(0)
}

func (m *MockLifecycleService) SoftDeleteFile(ctx context.Context, who model.Identity, id string) error {
	args := m.Called(ctx, who, id)
	return args.Error(0)
}

func (m *MockLifecycleService) RestoreFolder(ctx context.Context, who model.Identity, id string) (*model.Folder, error) {
	args := m.Called(ctx, who, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Folder), args.Error(1)
}

func (m *MockLifecycleService) RestoreFile(ctx context.Context, who model.Identity, id string) (*model.File, error) {
	args := m.Called(ctx, who, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.File), args.Error(1)
}

func (m *MockLifecycleService) PermanentlyDelete(ctx context.Context, who model.Identity, rt model.ResourceType, id string, force bool) error {
	args := m.Called(ctx, who, rt, id, force)
	return args.Error(0)
}

func (m *MockLifecycleService) PurgeExpired(ctx context.Context, retention time.Duration) (*service.PurgeReport, error) {
	args := m.Called(ctx, retention)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.PurgeReport), args.Error(1)
}

func (m *MockLifecycleService) RunPurgeScheduler(ctx context.Context, interval, retention time.Duration) {
	m.Called(ctx, interval, retention)
}

func (m *MockLifecycleService) ListTrash(ctx context.Context, who model.Identity, page, perPage int) (*service.Page[model.TrashItem], error) {
	args := m.Called(ctx, who, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Page[model.TrashItem]), args.Error(1)
}
