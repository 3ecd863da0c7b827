package handler

import (
	"io"
	"mime/multipart"
	"time"

	"github.com/gofiber/fiber/v2"

	"filevault/internal/model"
	"filevault/internal/service"
)

type moveFileRequest struct {
	FolderID string `json:"folder_id"`
}

// uploadInput opens the multipart field "file". The caller closes the returned file.
func uploadInput(c *fiber.Ctx) (service.UploadInput, multipart.File, *requestError) {
	fh, err := c.FormFile("file")
	if err != nil {
		return service.UploadInput{}, nil, &requestError{code: "FILE_REQUIRED", message: "file is required"}
	}

	f, err := fh.Open()
	if err != nil {
		return service.UploadInput{}, nil, &requestError{code: "FILE_OPEN_ERROR", message: "cannot open uploaded file"}
	}

	ct := fh.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/octet-stream"
	}
	return service.UploadInput{Reader: f, Name: fh.Filename, ContentType: ct, Size: fh.Size}, f, nil
}

// sendContent streams a file body as an attachment. The stream is closed once written.
func sendContent(c *fiber.Ctx, f *model.File, body io.Reader) error {
	c.Attachment(f.Name)
	c.Set(fiber.HeaderContentType, f.MimeType)
	return c.SendStream(body, int(f.Size))
}

// UploadFile godoc
// @Summary Upload a file into a folder
// @Tags files
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "folder id"
// @Param file formData file true "content"
// @Success 201 {object} model.File
// @Failure 400 {object} errorPayload
// @Failure 403 {object} errorPayload
// @Router /api/v1/folders/{id}/files [post]
func UploadFile(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		who, ok := caller(c)
		if !ok {
			return unauthenticated(c)
		}
		folderID, ok := pathID(c, "id")
		if !ok {
			return invalidID(c)
		}

		in, f, reqErr := uploadInput(c)
		if reqErr != nil {
			return reqErr.write(c)
		}
		defer f.Close()

		file, err := svc.Upload(c.UserContext(), who, folderID, in)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(file)
	}
}

// UploadFileVersion godoc
// @Summary Replace the content of a file, keeping the previous content as a version
// @Tags files
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "file id"
// @Param file formData file true "content"
// @Success 201 {object} model.File
// @Router /api/v1/files/{id}/versions [post]
func UploadFileVersion(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		who, ok := caller(c)
		if !ok {
			return unauthenticated(c)
		}
		id, ok := pathID(c, "id")
		if !ok {
			return invalidID(c)
		}

		in, f, reqErr := uploadInput(c)
		if reqErr != nil {
			return reqErr.write(c)
		}
		defer f.Close()

		file, err := svc.UploadVersion(c.UserContext(), who, id, in)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(file)
	}
}

// GetFile godoc
// @Summary Get file metadata
// @Tags files
// @Produce json
// @Param id path string true "file id"
// @Success 200 {object} model.File
// @Failure 404 {object} errorPayload
// @Router /api/v1/files/{id} [get]
func GetFile(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		who, ok := caller(c)
		if !ok {
			return unauthenticated(c)
		}
		id, ok := pathID(c, "id")
		if !ok {
			return invalidID(c)
		}
		file, err := svc.Get(c.UserContext(), who, id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(file)
	}
}

// DownloadFile godoc
// @Summary Download file content
// @Tags files
// @Produce octet-stream
// @Param id path string true "file id"
// @Success 200 {file} binary
// @Router /api/v1/files/{id}/download [get]
func DownloadFile(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		who, ok := caller(c)
		if !ok {
			return unauthenticated(c)
		}
		id, ok := pathID(c, "id")
		if !ok {
			return invalidID(c)
		}
		rc, file, err := svc.Download(c.UserContext(), who, id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return sendContent(c, file, rc)
	}
}

type presignResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PresignFile godoc
// @Summary Time-limited direct download URL for file content
// @Tags files
// @Produce json
// @Param id path string true "file id"
// @Param expires query string false "validity as a Go duration, default 15m"
// @Success 200 {object} presignResponse
// @Router /api/v1/files/{id}/link [get]
func PresignFile(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		who, ok := caller(c)
		if !ok {
			return unauthenticated(c)
		}
		id, ok := pathID(c, "id")
		if !ok {
			return invalidID(c)
		}
		var expiry time.Duration
		if v := c.Query("expires"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return writeError(c, fiber.StatusBadRequest, "INVALID_EXPIRES", "invalid expires")
			}
			expiry = d
		}

		u, err := svc.PresignDownload(c.UserContext(), who, id, expiry)
		if err != nil {
			return writeServiceError(c, err)
		}
		if expiry == 0 {
			expiry = service.DefaultPresignExpiry
		}
		return c.JSON(presignResponse{URL: u, ExpiresAt: time.Now().UTC().Add(expiry)})
	}
}

// RenameFile godoc
// @Summary Rename a file
// @Tags files
// @Accept json
// @Produce json
// @Param id path string true "file id"
// @Param body body nameRequest true "new name"
// @Success 200 {object} model.File
// @Router /api/v1/files/{id} [patch]
func RenameFile(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		who, ok := caller(c)
		if !ok {
			return unauthenticated(c)
		}
		id, ok := pathID(c, "id")
		if !ok {
			return invalidID(c)
		}
		var req nameRequest
		if err := c.BodyParser(&req); err != nil {
			return invalidBody(c)
		}
		file, err := svc.Rename(c.UserContext(), who, id, req.Name)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(file)
	}
}

// MoveFile godoc
// @Summary Move a file to another folder
// @Tags files
// @Accept json
// @Produce json
// @Param id path string true "file id"
// @Param body body moveFileRequest true "destination"
// @Success 200 {object} model.File
// @Router /api/v1/files/{id}/move [post]
func MoveFile(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		who, ok := caller(c)
		if !ok {
			return unauthenticated(c)
		}
		id, ok := pathID(c, "id")
		if !ok {
			return invalidID(c)
		}
		var req moveFileRequest
		if err := c.BodyParser(&req); err != nil {
			return invalidBody(c)
		}
		file, err := svc.Move(c.UserContext(), who, id, req.FolderID)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(file)
	}
}

// ListFileVersions godoc
// @Summary List the previous versions of a file
// @Tags files
// @Produce json
// @Param id path string true "file id"
// @Success 200 {array} model.FileVersion
// @Router /api/v1/files/{id}/versions [get]
func ListFileVersions(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		who, ok := caller(c)
		if !ok {
			return unauthenticated(c)
		}
		id, ok := pathID(c, "id")
		if !ok {
			return invalidID(c)
		}
		versions, err := svc.ListVersions(c.UserContext(), who, id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(versions)
	}
}
