package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"filevault/internal/metrics"
	"filevault/internal/model"
	"filevault/internal/repository"
	repoMocks "filevault/internal/repository/mocks"
)

func TestActivityRecorder_FailureDoesNotFailOperation(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	obsCore, logs := observer.New(zap.WarnLevel)

	mRepo := new(repoMocks.MockActivityRepository)
	mRepo.On("Append", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	fx := newFixture(t, func(d *Deps) {
		d.Repos.Activity = mRepo
		d.Logger = zap.New(obsCore)
		d.Metrics = m
	})

	f, err := fx.folders.Create(ctx, alice, "Docs", nil)
	require.NoError(t, err)
	_, err = fx.folders.Rename(ctx, alice, f.ID, "Documents")
	require.NoError(t, err)

	expected := `
# HELP filevault_audit_failures_total Activity log entries that could not be written.
# TYPE filevault_audit_failures_total counter
filevault_audit_failures_total 2
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "filevault_audit_failures_total"))
	require.Equal(t, 2, logs.FilterMessage("activity log append failed").Len())
	mRepo.AssertNumberOfCalls(t, "Append", 2)
}

func TestActivityRecorder_RecordsCallerAndIP(t *testing.T) {
	fx := newFixture(t)
	ctx := WithClientIP(context.Background(), "10.1.2.3")

	fx.activity.Record(ctx, ActivityEntry{
		UserID:       "alice",
		Action:       model.ActionFileDownload,
		ResourceType: model.ResourceFile,
		ResourceID:   "f1",
		ResourceName: "a.txt",
		Details:      map[string]any{"via": "test"},
	})
	fx.activity.Record(context.Background(), ActivityEntry{
		Action:       model.ActionTrashExpire,
		ResourceType: model.ResourceFolder,
		ResourceID:   "d1",
	})

	page, err := fx.activity.List(context.Background(), admin, ActivityQuery{})
	require.NoError(t, err)
	require.Equal(t, 2, page.Total)

	byAction := map[string]model.ActivityLog{}
	for _, l := range page.Items {
		byAction[l.Action] = l
	}
	dl := byAction[model.ActionFileDownload]
	require.NotNil(t, dl.UserID)
	assert.Equal(t, "alice", *dl.UserID)
	assert.Equal(t, "10.1.2.3", dl.IPAddress)
	assert.Equal(t, "test", dl.Details["via"])
	assert.Nil(t, byAction[model.ActionTrashExpire].UserID)
}

func TestActivityRecorder_List(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	for i := range 25 {
		fx.activity.Record(ctx, ActivityEntry{
			UserID:       "alice",
			Action:       model.ActionFileUpload,
			ResourceType: model.ResourceFile,
			ResourceID:   fmt.Sprintf("f%02d", i),
		})
	}
	for i := range 5 {
		fx.activity.Record(ctx, ActivityEntry{
			UserID:       "bob",
			Action:       model.ActionFolderCreate,
			ResourceType: model.ResourceFolder,
			ResourceID:   fmt.Sprintf("d%02d", i),
		})
	}

	t.Run("non admin sees only own entries", func(t *testing.T) {
		page, err := fx.activity.List(ctx, bob, ActivityQuery{UserID: "alice"})
		require.NoError(t, err)
		assert.Equal(t, 5, page.Total)
		for _, l := range page.Items {
			assert.Equal(t, "bob", *l.UserID)
		}
	})

	t.Run("admin filters", func(t *testing.T) {
		page, err := fx.activity.List(ctx, admin, ActivityQuery{UserID: "alice"})
		require.NoError(t, err)
		assert.Equal(t, 25, page.Total)

		page, err = fx.activity.List(ctx, admin, ActivityQuery{ResourceType: model.ResourceFolder})
		require.NoError(t, err)
		assert.Equal(t, 5, page.Total)

		page, err = fx.activity.List(ctx, admin, ActivityQuery{Action: model.ActionFileUpload, UserID: "bob"})
		require.NoError(t, err)
		assert.Zero(t, page.Total)
	})

	t.Run("paging defaults and clamps", func(t *testing.T) {
		page, err := fx.activity.List(ctx, admin, ActivityQuery{})
		require.NoError(t, err)
		assert.Equal(t, 1, page.Page)
		assert.Equal(t, DefaultPerPage, page.PerPage)
		assert.Len(t, page.Items, DefaultPerPage)
		assert.Equal(t, 30, page.Total)

		page, err = fx.activity.List(ctx, admin, ActivityQuery{Page: 2, PerPage: 20})
		require.NoError(t, err)
		assert.Len(t, page.Items, 10)

		page, err = fx.activity.List(ctx, admin, ActivityQuery{Page: -1, PerPage: 1000})
		require.NoError(t, err)
		assert.Equal(t, 1, page.Page)
		assert.Equal(t, MaxPerPage, page.PerPage)
		assert.Len(t, page.Items, 30)
	})

	t.Run("newest first", func(t *testing.T) {
		page, err := fx.activity.List(ctx, alice, ActivityQuery{PerPage: 1})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "f24", page.Items[0].ResourceID)
	})
}

func TestActivityRecorder_ListError(t *testing.T) {
	mRepo := new(repoMocks.MockActivityRepository)
	mRepo.On("List", mock.Anything, repository.ActivityFilter{UserID: "bob"}, repository.PageQuery{Limit: 20, Offset: 0}).
		Return(nil, errors.New("timeout"))

	rec := NewActivityRecorder(mRepo, DefaultAdminPolicy(), nil, nil)
	_, err := rec.List(context.Background(), bob, ActivityQuery{})
	assert.EqualError(t, err, "list activity: timeout")
	mRepo.AssertExpectations(t)
}
