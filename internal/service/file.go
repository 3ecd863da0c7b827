package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"filevault/internal/errdefs"
	"filevault/internal/model"
	"filevault/internal/storage"
)

// ErrReaderNil is returned when an upload has no content reader.
var ErrReaderNil = errors.New("reader is nil")

// UploadInput describes content streamed into the blob store.
type UploadInput struct {
	Reader      io.Reader
	Name        string
	ContentType string
	// Size is the exact byte count, or -1 when unknown.
	Size int64
}

// FileService defines the use cases for files.
type FileService interface {
	// Upload streams content to object storage and saves the file row. If the row cannot
	// be saved the object is deleted again.
	Upload(ctx context.Context, who model.Identity, folderID string, in UploadInput) (*model.File, error)

	// UploadVersion replaces the content of a file, keeping the previous content as a version.
	UploadVersion(ctx context.Context, who model.Identity, fileID string, in UploadInput) (*model.File, error)

	Get(ctx context.Context, who model.Identity, id string) (*model.File, error)

	// Download opens the content of a live file. The caller closes the reader.
	Download(ctx context.Context, who model.Identity, id string) (io.ReadCloser, *model.File, error)

	// PresignDownload returns a time-limited URL that reads the content straight from
	// object storage.
	PresignDownload(ctx context.Context, who model.Identity, id string, expiry time.Duration) (string, error)

	Rename(ctx context.Context, who model.Identity, id, name string) (*model.File, error)
	Move(ctx context.Context, who model.Identity, id, newFolderID string) (*model.File, error)
	ListVersions(ctx context.Context, who model.Identity, id string) ([]model.FileVersion, error)
}

type fileService struct {
	core
}

// NewFileService constructs a FileService.
func NewFileService(d Deps) FileService {
	return &fileService{core: newCore(d)}
}

func (s *core) liveFile(ctx context.Context, id string) (*model.File, error) {
	f, err := s.repos.Files.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "file %s not found", id)
	}
	if f.IsDeleted {
		return nil, errdefs.NotFound("file %s not found", id)
	}
	return f, nil
}

// requireFile checks the caller's level on the folder containing f.
func (s *core) requireFile(ctx context.Context, who model.Identity, f *model.File, min model.AccessLevel) error {
	_, err := s.access.Require(ctx, who, f.FolderID, min)
	return err
}

// putBlob stores content under a fresh files/<uuid><ext> key.
func (s *core) putBlob(ctx context.Context, in UploadInput) (storage.ObjectInfo, error) {
	if in.Reader == nil {
		return storage.ObjectInfo{}, ErrReaderNil
	}
	key := filepath.ToSlash(filepath.Join("files", newID()+filepath.Ext(in.Name)))
	info, err := s.blobs.Put(ctx, key, in.Reader, storage.PutObjectOptions{
		Size:        in.Size,
		ContentType: in.ContentType,
		Metadata: map[string]string{
			"original-filename": in.Name,
		},
	})
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("upload to storage: %w", err)
	}
	if info.ContentType == "" {
		info.ContentType = in.ContentType
	}
	return info, nil
}

// dropBlob removes an object written by a request whose database work failed.
func (s *core) dropBlob(ctx context.Context, key string, cause error) error {
	if delErr := s.blobs.Delete(context.WithoutCancel(ctx), key); delErr != nil {
		s.log.Error("orphaned blob", zap.String("key", key), zap.Error(delErr))
		return fmt.Errorf("db save failed: %v; rollback delete failed: %v", cause, delErr)
	}
	if errdefs.KindOf(cause) != "" {
		return cause
	}
	return fmt.Errorf("db save failed: %w", cause)
}

func (s *fileService) Upload(ctx context.Context, who model.Identity, folderID string, in UploadInput) (*model.File, error) {
	ctx, span := startSpan(ctx, "FileService.Upload")
	file, err := s.upload(ctx, who, folderID, in)
	finishSpan(span, err)
	return file, err
}

func (s *fileService) upload(ctx context.Context, who model.Identity, folderID string, in UploadInput) (*model.File, error) {
	name, err := cleanName(in.Name)
	if err != nil {
		return nil, err
	}
	folder, err := s.liveFolder(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if err := s.access.RequireFolder(ctx, who, folder, model.AccessEdit); err != nil {
		return nil, err
	}

	info, err := s.putBlob(ctx, in)
	if err != nil {
		return nil, err
	}

	now := s.now()
	file := &model.File{
		ID:          newID(),
		Name:        name,
		FolderID:    folder.ID,
		Size:        info.Size,
		MimeType:    info.ContentType,
		Category:    model.CategoryFor(info.ContentType),
		StoragePath: info.Key,
		CreatedBy:   who.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = s.repos.Tx.ExecTx(ctx, func(ctx context.Context) error {
		// The folder may have been trashed while the content was streaming.
		if err := s.lockTree(ctx, false); err != nil {
			return err
		}
		if _, err := s.lockLiveFolder(ctx, folder.ID); err != nil {
			return err
		}
		return s.repos.Files.Create(ctx, file)
	})
	if err != nil {
		return nil, s.dropBlob(ctx, info.Key, err)
	}

	s.log.Info("file uploaded",
		zap.String("file_id", file.ID),
		zap.String("folder_id", file.FolderID),
		zap.Int64("size", file.Size),
		zap.String("user_id", who.UserID),
	)
	s.audit.Record(ctx, ActivityEntry{
		UserID:       who.UserID,
		Action:       model.ActionFileUpload,
		ResourceType: model.ResourceFile,
		ResourceID:   file.ID,
		ResourceName: file.Name,
		Details:      map[string]any{"folder_id": file.FolderID, "size": file.Size},
	})
	return file, nil
}

func (s *fileService) UploadVersion(ctx context.Context, who model.Identity, fileID string, in UploadInput) (*model.File, error) {
	ctx, span := startSpan(ctx, "FileService.UploadVersion")
	file, err := s.uploadVersion(ctx, who, fileID, in)
	finishSpan(span, err)
	return file, err
}

func (s *fileService) uploadVersion(ctx context.Context, who model.Identity, fileID string, in UploadInput) (*model.File, error) {
	current, err := s.liveFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if err := s.requireFile(ctx, who, current, model.AccessEdit); err != nil {
		return nil, err
	}

	info, err := s.putBlob(ctx, in)
	if err != nil {
		return nil, err
	}

	var (
		file    *model.File
		version int
	)
	err = s.repos.Tx.ExecTx(ctx, func(ctx context.Context) error {
		f, err := s.repos.Files.FindByIDForUpdate(ctx, fileID)
		if err != nil {
			return lookupErr(err, "file %s not found", fileID)
		}
		if f.IsDeleted {
			return errdefs.NotFound("file %s not found", fileID)
		}
		latest, err := s.repos.Versions.LatestNumber(ctx, f.ID)
		if err != nil {
			return wrapf(err, "latest version")
		}
		now := s.now()
		version = latest + 1
		err = s.repos.Versions.Create(ctx, &model.FileVersion{
			ID:            newID(),
			FileID:        f.ID,
			VersionNumber: version,
			StoragePath:   f.StoragePath,
			Size:          f.Size,
			MimeType:      f.MimeType,
			CreatedBy:     who.UserID,
			CreatedAt:     now,
		})
		if err != nil {
			return wrapf(err, "save version")
		}

		f.StoragePath = info.Key
		f.Size = info.Size
		f.MimeType = info.ContentType
		f.Category = model.CategoryFor(info.ContentType)
		f.UpdatedAt = now
		if err := s.repos.Files.UpdateContent(ctx, f); err != nil {
			return wrapf(err, "update file content")
		}
		file = f
		return nil
	})
	if err != nil {
		return nil, s.dropBlob(ctx, info.Key, err)
	}

	s.audit.Record(ctx, ActivityEntry{
		UserID:       who.UserID,
		Action:       model.ActionFileVersion,
		ResourceType: model.ResourceFile,
		ResourceID:   file.ID,
		ResourceName: file.Name,
		Details:      map[string]any{"version": version, "size": file.Size},
	})
	return file, nil
}

func (s *fileService) Get(ctx context.Context, who model.Identity, id string) (*model.File, error) {
	f, err := s.liveFile(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireFile(ctx, who, f, model.AccessView); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *fileService) Download(ctx context.Context, who model.Identity, id string) (io.ReadCloser, *model.File, error) {
	f, err := s.Get(ctx, who, id)
	if err != nil {
		return nil, nil, err
	}
	rc, _, err := s.blobs.Get(ctx, f.StoragePath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, nil, errdefs.Wrap(errdefs.KindIntegrity, err, "file content is missing")
		}
		return nil, nil, fmt.Errorf("open content: %w", err)
	}

	s.audit.Record(ctx, ActivityEntry{
		UserID:       who.UserID,
		Action:       model.ActionFileDownload,
		ResourceType: model.ResourceFile,
		ResourceID:   f.ID,
		ResourceName: f.Name,
	})
	return rc, f, nil
}

const (
	DefaultPresignExpiry = 15 * time.Minute
	MaxPresignExpiry     = 7 * 24 * time.Hour
)

func (s *fileService) PresignDownload(ctx context.Context, who model.Identity, id string, expiry time.Duration) (string, error) {
	if expiry == 0 {
		expiry = DefaultPresignExpiry
	}
	if expiry < time.Second || expiry > MaxPresignExpiry {
		return "", errdefs.InvalidInput("expiry must be between 1s and %s", MaxPresignExpiry)
	}
	f, err := s.Get(ctx, who, id)
	if err != nil {
		return "", err
	}
	u, err := s.blobs.PresignGet(ctx, f.StoragePath, expiry)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return "", errdefs.Wrap(errdefs.KindIntegrity, err, "file content is missing")
		}
		return "", fmt.Errorf("presign content: %w", err)
	}

	s.audit.Record(ctx, ActivityEntry{
		UserID:       who.UserID,
		Action:       model.ActionFileDownload,
		ResourceType: model.ResourceFile,
		ResourceID:   f.ID,
		ResourceName: f.Name,
		Details:      map[string]any{"presigned": true, "expiry_seconds": int(expiry.Seconds())},
	})
	return u, nil
}

func (s *fileService) Rename(ctx context.Context, who model.Identity, id, name string) (*model.File, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}

	var (
		file    *model.File
		oldName string
	)
	err = s.repos.Tx.ExecTx(ctx, func(ctx context.Context) error {
		f, err := s.repos.Files.FindByIDForUpdate(ctx, id)
		if err != nil {
			return lookupErr(err, "file %s not found", id)
		}
		if f.IsDeleted {
			return errdefs.NotFound("file %s not found", id)
		}
		if err := s.requireFile(ctx, who, f, model.AccessEdit); err != nil {
			return err
		}
		now := s.now()
		if err := s.repos.Files.Rename(ctx, f.ID, name, now); err != nil {
			return wrapf(err, "rename file")
		}
		oldName = f.Name
		f.Name, f.UpdatedAt = name, now
		file = f
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, ActivityEntry{
		UserID:       who.UserID,
		Action:       model.ActionFileRename,
		ResourceType: model.ResourceFile,
		ResourceID:   file.ID,
		ResourceName: file.Name,
		Details:      map[string]any{"old_name": oldName},
	})
	return file, nil
}

func (s *fileService) Move(ctx context.Context, who model.Identity, id, newFolderID string) (*model.File, error) {
	if newFolderID == "" {
		return nil, errdefs.InvalidInput("destination folder is required")
	}

	var (
		file      *model.File
		oldFolder string
	)
	err := s.repos.Tx.ExecTx(ctx, func(ctx context.Context) error {
		if err := s.lockTree(ctx, false); err != nil {
			return err
		}
		f, err := s.repos.Files.FindByIDForUpdate(ctx, id)
		if err != nil {
			return lookupErr(err, "file %s not found", id)
		}
		if f.IsDeleted {
			return errdefs.NotFound("file %s not found", id)
		}
		if err := s.requireFile(ctx, who, f, model.AccessEdit); err != nil {
			return err
		}
		if f.FolderID == newFolderID {
			return errdefs.Conflict("file is already in the destination")
		}
		dest, err := s.lockLiveFolder(ctx, newFolderID)
		if err != nil {
			return err
		}
		if err := s.access.RequireFolder(ctx, who, dest, model.AccessEdit); err != nil {
			return err
		}
		now := s.now()
		if err := s.repos.Files.SetFolder(ctx, f.ID, dest.ID, now); err != nil {
			return wrapf(err, "move file")
		}
		oldFolder = f.FolderID
		f.FolderID, f.UpdatedAt = dest.ID, now
		file = f
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, ActivityEntry{
		UserID:       who.UserID,
		Action:       model.ActionFileMove,
		ResourceType: model.ResourceFile,
		ResourceID:   file.ID,
		ResourceName: file.Name,
		Details:      map[string]any{"from_folder_id": oldFolder, "to_folder_id": file.FolderID},
	})
	return file, nil
}

func (s *fileService) ListVersions(ctx context.Context, who model.Identity, id string) ([]model.FileVersion, error) {
	f, err := s.Get(ctx, who, id)
	if err != nil {
		return nil, err
	}
	versions, err := s.repos.Versions.ListByFile(ctx, f.ID)
	if err != nil {
		return nil, wrapf(err, "list versions")
	}
	return versions, nil
}
