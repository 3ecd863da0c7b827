package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"filevault/internal/http/middleware"
	"filevault/internal/model"
	"filevault/internal/repository/memory"
	"filevault/internal/service"
	"filevault/internal/storage"
)

// newMemoryApp wires every route to services backed by the in-memory store.
func newMemoryApp(t *testing.T) *fiber.App {
	t.Helper()

	st := memory.NewStore()
	d := service.Deps{
		Repos: service.Repositories{
			Tx:          st,
			Folders:     st.Folders(),
			Files:       st.Files(),
			Versions:    st.Versions(),
			Permissions: st.Permissions(),
			ShareLinks:  st.ShareLinks(),
			Activity:    st.Activity(),
		},
		Blobs:   storage.NewMemory(),
		Policy:  service.DefaultAdminPolicy(),
		Options: service.Options{BcryptCost: bcrypt.MinCost},
	}
	d.Activity = service.NewActivityRecorder(d.Repos.Activity, d.Policy, nil, nil)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	app.Use(middleware.RequestID())
	app.Use(middleware.ClientIP())
	RegisterRoutes(app, nil, Services{
		Folders:     service.NewFolderService(d),
		Files:       service.NewFileService(d),
		Lifecycle:   service.NewLifecycleService(d),
		Permissions: service.NewPermissionService(d),
		Shares:      service.NewShareService(d),
		Activity:    d.Activity,
	}, middleware.Identity("", Unauthenticated()))
	return app
}

func do(t *testing.T, app *fiber.App, req *http.Request, wantStatus int, out any) {
	t.Helper()
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if !assert.Equal(t, wantStatus, resp.StatusCode) {
		body, _ := io.ReadAll(resp.Body)
		t.Logf("body: %s", body)
		return
	}
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
}

func TestFileVaultFlow(t *testing.T) {
	app := newMemoryApp(t)

	var folder model.Folder
	do(t, app, as("alice", jsonRequest(http.MethodPost, "/api/v1/folders", fiber.Map{"name": "Reports"})), http.StatusCreated, &folder)
	assert.Equal(t, "alice", folder.CreatedBy)

	var file model.File
	do(t, app, as("alice", multipartRequest("/api/v1/folders/"+folder.ID+"/files", "q1.txt", "quarterly numbers")), http.StatusCreated, &file)
	assert.Equal(t, folder.ID, file.FolderID)
	assert.EqualValues(t, len("quarterly numbers"), file.Size)

	t.Run("owner downloads", func(t *testing.T) {
		resp, err := app.Test(as("alice", httptest.NewRequest(http.MethodGet, "/api/v1/files/"+file.ID+"/download", nil)))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "quarterly numbers", string(body))
	})

	t.Run("grant opens the folder to another user", func(t *testing.T) {
		var res errorPayload
		do(t, app, as("bob", httptest.NewRequest(http.MethodGet, "/api/v1/folders/"+folder.ID, nil)), http.StatusForbidden, &res)
		assert.Equal(t, "UNAUTHORIZED", res.Error.Code)

		var perm model.Permission
		do(t, app, as("alice", jsonRequest(http.MethodPost, "/api/v1/folders/"+folder.ID+"/permissions",
			fiber.Map{"target_type": "user", "target_id": "bob", "level": "view"})), http.StatusOK, &perm)
		assert.Equal(t, model.AccessView, perm.Level)

		do(t, app, as("bob", httptest.NewRequest(http.MethodGet, "/api/v1/folders/"+folder.ID, nil)), http.StatusOK, nil)

		var access accessResponse
		do(t, app, as("bob", httptest.NewRequest(http.MethodGet, "/api/v1/folders/"+folder.ID+"/access", nil)), http.StatusOK, &access)
		assert.Equal(t, model.AccessView, access.Level)

		do(t, app, as("bob", multipartRequest("/api/v1/folders/"+folder.ID+"/files", "x.txt", "x")), http.StatusForbidden, nil)
	})

	t.Run("share link with password and cap", func(t *testing.T) {
		var link model.ShareLink
		do(t, app, as("alice", jsonRequest(http.MethodPost, "/api/v1/shares", fiber.Map{
			"resource_type": "file", "resource_id": file.ID, "password": "s3cret", "max_downloads": 1,
		})), http.StatusCreated, &link)
		require.NotEmpty(t, link.Token)

		var res errorPayload
		do(t, app, httptest.NewRequest(http.MethodGet, "/s/"+link.Token+"/download", nil), http.StatusUnauthorized, &res)
		assert.Equal(t, "PASSWORD_REQUIRED", res.Error.Code)

		req := httptest.NewRequest(http.MethodGet, "/s/"+link.Token+"/download", nil)
		req.Header.Set(HeaderSharePassword, "s3cret")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "quarterly numbers", string(body))

		do(t, app, httptest.NewRequest(http.MethodGet, "/s/"+link.Token+"/download?password=s3cret", nil), http.StatusGone, &res)
		assert.Equal(t, "DOWNLOAD_LIMIT_REACHED", res.Error.Code)
	})

	t.Run("trash and restore", func(t *testing.T) {
		do(t, app, as("alice", httptest.NewRequest(http.MethodDelete, "/api/v1/folders/"+folder.ID, nil)), http.StatusNoContent, nil)
		do(t, app, as("alice", httptest.NewRequest(http.MethodGet, "/api/v1/files/"+file.ID, nil)), http.StatusNotFound, nil)

		var trash service.Page[model.TrashItem]
		do(t, app, as("alice", httptest.NewRequest(http.MethodGet, "/api/v1/trash", nil)), http.StatusOK, &trash)
		assert.Equal(t, 2, trash.Total)

		var restored model.Folder
		do(t, app, as("alice", httptest.NewRequest(http.MethodPost, "/api/v1/folders/"+folder.ID+"/restore", nil)), http.StatusOK, &restored)
		assert.False(t, restored.IsDeleted)
		do(t, app, as("alice", httptest.NewRequest(http.MethodGet, "/api/v1/files/"+file.ID, nil)), http.StatusOK, nil)
	})

	t.Run("activity is scoped to the caller", func(t *testing.T) {
		var entries service.Page[model.ActivityLog]
		do(t, app, as("alice", httptest.NewRequest(http.MethodGet, "/api/v1/activity?action=folder.create", nil)), http.StatusOK, &entries)
		require.Equal(t, 1, entries.Total)
		assert.Equal(t, folder.ID, entries.Items[0].ResourceID)
		assert.Equal(t, "0.0.0.0", entries.Items[0].IPAddress)

		do(t, app, as("bob", httptest.NewRequest(http.MethodGet, "/api/v1/activity?action=folder.create", nil)), http.StatusOK, &entries)
		assert.Equal(t, 0, entries.Total)
	})
}
