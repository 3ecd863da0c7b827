package handler

import (
	"database/sql"

	"github.com/gofiber/fiber/v2"

	"filevault/internal/model"
	"filevault/internal/service"
)

// Services are the collaborators the HTTP layer dispatches to.
type Services struct {
	Folders     service.FolderService
	Files       service.FileService
	Lifecycle   service.LifecycleService
	Permissions service.PermissionService
	Shares      service.ShareService
	Activity    service.ActivityRecorder
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app. Routes under /api/v1
// run behind identity, usually middleware.Identity; share-link routes under /s are public.
// A nil db reports healthy.
func RegisterRoutes(app *fiber.App, db *sql.DB, svc Services, identity fiber.Handler) {
	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	public := app.Group("/s")
	public.Get("/:token", ResolveShareLink(svc.Shares))
	public.Get("/:token/download", DownloadShared(svc.Shares))

	api := app.Group("/api/v1")
	if identity != nil {
		api.Use(identity)
	}

	folders := api.Group("/folders")
	folders.Get("/", ListRootFolders(svc.Folders))
	folders.Post("/", CreateFolder(svc.Folders))
	folders.Get("/:id", GetFolder(svc.Folders))
	folders.Patch("/:id", RenameFolder(svc.Folders))
	folders.Delete("/:id", SoftDelete(svc.Lifecycle, model.ResourceFolder))
	folders.Get("/:id/contents", ListFolderContents(svc.Folders))
	folders.Post("/:id/move", MoveFolder(svc.Folders))
	folders.Post("/:id/restore", Restore(svc.Lifecycle, model.ResourceFolder))
	folders.Delete("/:id/permanent", PermanentlyDelete(svc.Lifecycle, model.ResourceFolder))
	folders.Post("/:id/files", UploadFile(svc.Files))
	folders.Get("/:id/access", ResolveAccess(svc.Permissions))
	folders.Get("/:id/permissions", ListPermissions(svc.Permissions))
	folders.Post("/:id/permissions", GrantPermission(svc.Permissions))
	folders.Delete("/:id/permissions/:targetType/:targetId", RevokePermission(svc.Permissions))

	files := api.Group("/files")
	files.Get("/:id", GetFile(svc.Files))
	files.Patch("/:id", RenameFile(svc.Files))
	files.Delete("/:id", SoftDelete(svc.Lifecycle, model.ResourceFile))
	files.Get("/:id/download", DownloadFile(svc.Files))
	files.Get("/:id/link", PresignFile(svc.Files))
	files.Post("/:id/move", MoveFile(svc.Files))
	files.Post("/:id/restore", Restore(svc.Lifecycle, model.ResourceFile))
	files.Delete("/:id/permanent", PermanentlyDelete(svc.Lifecycle, model.ResourceFile))
	files.Get("/:id/versions", ListFileVersions(svc.Files))
	files.Post("/:id/versions", UploadFileVersion(svc.Files))

	shares := api.Group("/shares")
	shares.Get("/", ListShareLinks(svc.Shares))
	shares.Post("/", CreateShareLink(svc.Shares))
	shares.Delete("/:id", DeactivateShareLink(svc.Shares))

	api.Get("/trash", ListTrash(svc.Lifecycle))
	api.Get("/activity", ListActivity(svc.Activity))
}
