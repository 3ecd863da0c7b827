package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filevault/internal/errdefs"
	"filevault/internal/model"
)

func ptrTo[T any](v T) *T { return &v }

func TestShareService_Create(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	folder := fx.folder(t, alice, "Docs", nil)
	file := fx.upload(t, alice, folder, "a.txt", "content")
	fx.grant(t, alice, folder, model.TargetUser, "bob", "edit")

	link, err := fx.shares.Create(ctx, alice, ShareInput{
		ResourceType: model.ResourceFile,
		ResourceID:   file.ID,
		Password:     ptrTo("s3cret"),
		ExpiresAt:    ptrTo(fx.clock.Now().Add(time.Hour)),
		MaxDownloads: ptrTo(3),
	})
	require.NoError(t, err)
	assert.Len(t, link.Token, 64)
	assert.True(t, link.IsActive)
	assert.True(t, link.HasPassword())
	assert.NotEqual(t, "s3cret", *link.PasswordHash)

	other, err := fx.shares.Create(ctx, alice, ShareInput{ResourceType: model.ResourceFile, ResourceID: file.ID})
	require.NoError(t, err)
	assert.NotEqual(t, link.Token, other.Token)
	assert.False(t, other.HasPassword())

	tests := []struct {
		name string
		who  model.Identity
		in   ShareInput
		kind errdefs.Kind
	}{
		{"zero downloads", alice, ShareInput{ResourceType: model.ResourceFile, ResourceID: file.ID, MaxDownloads: ptrTo(0)}, errdefs.KindInvalidInput},
		{"expiry in the past", alice, ShareInput{ResourceType: model.ResourceFile, ResourceID: file.ID, ExpiresAt: ptrTo(fx.clock.Now().Add(-time.Second))}, errdefs.KindInvalidInput},
		{"unknown resource type", alice, ShareInput{ResourceType: "album", ResourceID: file.ID}, errdefs.KindInvalidInput},
		{"unknown file", alice, ShareInput{ResourceType: model.ResourceFile, ResourceID: "missing"}, errdefs.KindNotFound},
		{"folder needs manage", bob, ShareInput{ResourceType: model.ResourceFolder, ResourceID: folder.ID}, errdefs.KindUnauthorized},
		{"file needs edit", carol, ShareInput{ResourceType: model.ResourceFile, ResourceID: file.ID}, errdefs.KindUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fx.shares.Create(ctx, tt.who, tt.in)
			assertKind(t, err, tt.kind)
		})
	}

	_, err = fx.shares.Create(ctx, bob, ShareInput{ResourceType: model.ResourceFile, ResourceID: file.ID})
	assert.NoError(t, err)

	require.NoError(t, fx.lifecycle.SoftDeleteFile(ctx, alice, file.ID))
	_, err = fx.shares.Create(ctx, alice, ShareInput{ResourceType: model.ResourceFile, ResourceID: file.ID})
	assertKind(t, err, errdefs.KindNotFound)
}

func TestShareService_ResolveOrder(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	folder := fx.folder(t, alice, "Docs", nil)
	file := fx.upload(t, alice, folder, "a.txt", "content")

	newLink := func(in ShareInput) *model.ShareLink {
		in.ResourceType, in.ResourceID = model.ResourceFile, file.ID
		l, err := fx.shares.Create(ctx, alice, in)
		require.NoError(t, err)
		return l
	}

	open := newLink(ShareInput{})
	res, err := fx.shares.Resolve(ctx, open.Token, nil)
	require.NoError(t, err)
	require.NotNil(t, res.File)
	assert.Equal(t, file.ID, res.File.ID)
	assert.Nil(t, res.Folder)

	_, err = fx.shares.Resolve(ctx, "unknown", nil)
	assertKind(t, err, errdefs.KindNotFound)

	// Every failing condition at once: inactive wins.
	all := newLink(ShareInput{Password: ptrTo("pw"), ExpiresAt: ptrTo(fx.clock.Now().Add(time.Minute)), MaxDownloads: ptrTo(1)})
	require.NoError(t, fx.shares.RecordDownload(ctx, all.Token))
	fx.clock.Advance(2 * time.Minute)
	require.NoError(t, fx.shares.Deactivate(ctx, alice, all.ID))
	_, err = fx.shares.Resolve(ctx, all.Token, ptrTo("wrong"))
	assert.ErrorIs(t, err, errdefs.ErrInactive)

	expired := newLink(ShareInput{Password: ptrTo("pw"), ExpiresAt: ptrTo(fx.clock.Now().Add(time.Minute)), MaxDownloads: ptrTo(1)})
	require.NoError(t, fx.shares.RecordDownload(ctx, expired.Token))
	fx.clock.Advance(2 * time.Minute)
	_, err = fx.shares.Resolve(ctx, expired.Token, ptrTo("wrong"))
	assert.ErrorIs(t, err, errdefs.ErrExpired)

	capped := newLink(ShareInput{Password: ptrTo("pw"), MaxDownloads: ptrTo(1)})
	require.NoError(t, fx.shares.RecordDownload(ctx, capped.Token))
	_, err = fx.shares.Resolve(ctx, capped.Token, ptrTo("wrong"))
	assert.ErrorIs(t, err, errdefs.ErrDownloadLimitReached)

	locked := newLink(ShareInput{Password: ptrTo("pw")})
	_, err = fx.shares.Resolve(ctx, locked.Token, nil)
	assert.ErrorIs(t, err, errdefs.ErrPasswordRequired)
	_, err = fx.shares.Resolve(ctx, locked.Token, ptrTo(""))
	assert.ErrorIs(t, err, errdefs.ErrPasswordRequired)
	_, err = fx.shares.Resolve(ctx, locked.Token, ptrTo("wrong"))
	assert.ErrorIs(t, err, errdefs.ErrInvalidPassword)
	_, err = fx.shares.Resolve(ctx, locked.Token, ptrTo("pw"))
	assert.NoError(t, err)

	require.NoError(t, fx.lifecycle.SoftDeleteFile(ctx, alice, file.ID))
	_, err = fx.shares.Resolve(ctx, open.Token, nil)
	assertKind(t, err, errdefs.KindNotFound)
}

func TestShareService_DownloadShared(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	folder := fx.folder(t, alice, "Docs", nil)
	file := fx.upload(t, alice, folder, "a.txt", "shared content")

	link, err := fx.shares.Create(ctx, alice, ShareInput{ResourceType: model.ResourceFile, ResourceID: file.ID, MaxDownloads: ptrTo(2)})
	require.NoError(t, err)

	for range 2 {
		rc, got, err := fx.shares.DownloadShared(ctx, link.Token, nil)
		require.NoError(t, err)
		assert.Equal(t, file.ID, got.ID)
		assert.Equal(t, "shared content", readAll(t, rc))
	}
	_, _, err = fx.shares.DownloadShared(ctx, link.Token, nil)
	assert.ErrorIs(t, err, errdefs.ErrDownloadLimitReached)

	stored, err := fx.store.ShareLinks().FindByID(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.DownloadCount)

	folderLink, err := fx.shares.Create(ctx, alice, ShareInput{ResourceType: model.ResourceFolder, ResourceID: folder.ID})
	require.NoError(t, err)
	res, err := fx.shares.Resolve(ctx, folderLink.Token, nil)
	require.NoError(t, err)
	assert.Equal(t, folder.ID, res.Folder.ID)

	_, _, err = fx.shares.DownloadShared(ctx, folderLink.Token, nil)
	assertKind(t, err, errdefs.KindInvalidInput)

	logs, err := fx.activity.List(ctx, admin, ActivityQuery{Action: model.ActionShareDownload})
	require.NoError(t, err)
	assert.Equal(t, 2, logs.Total)
}

// Concurrent downloads never exceed the cap.
func TestShareService_DownloadCapUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	folder := fx.folder(t, alice, "Docs", nil)
	file := fx.upload(t, alice, folder, "a.txt", "once")

	link, err := fx.shares.Create(ctx, alice, ShareInput{ResourceType: model.ResourceFile, ResourceID: file.ID, MaxDownloads: ptrTo(1)})
	require.NoError(t, err)

	const workers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
		limited int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rc, _, err := fx.shares.DownloadShared(ctx, link.Token, nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
				rc.Close()
			case errdefs.KindOf(err) == errdefs.KindDownloadLimitReached:
				limited++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	assert.Equal(t, workers-1, limited)

	stored, err := fx.store.ShareLinks().FindByID(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.DownloadCount)
}

func TestShareService_ListAndDeactivate(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	folder := fx.folder(t, alice, "Docs", nil)
	file := fx.upload(t, alice, folder, "a.txt", "content")
	fx.grant(t, alice, folder, model.TargetUser, "bob", "edit")

	mine, err := fx.shares.Create(ctx, alice, ShareInput{ResourceType: model.ResourceFile, ResourceID: file.ID})
	require.NoError(t, err)
	_, err = fx.shares.Create(ctx, bob, ShareInput{ResourceType: model.ResourceFile, ResourceID: file.ID})
	require.NoError(t, err)

	links, err := fx.shares.List(ctx, bob, model.ResourceFile, file.ID)
	require.NoError(t, err)
	assert.Len(t, links, 2)

	_, err = fx.shares.List(ctx, carol, model.ResourceFile, file.ID)
	assertKind(t, err, errdefs.KindUnauthorized)

	err = fx.shares.Deactivate(ctx, bob, mine.ID)
	assertKind(t, err, errdefs.KindUnauthorized)

	require.NoError(t, fx.shares.Deactivate(ctx, admin, mine.ID))
	_, err = fx.shares.Resolve(ctx, mine.Token, nil)
	assert.ErrorIs(t, err, errdefs.ErrInactive)

	err = fx.shares.Deactivate(ctx, alice, "missing")
	assertKind(t, err, errdefs.KindNotFound)
}
