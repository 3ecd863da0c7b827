package repository

import (
	"context"
	"time"

	"filevault/internal/model"
)

// FolderRepository persists folders.
type FolderRepository interface {
	// Create inserts a new folder row.
	Create(ctx context.Context, f *model.Folder) error

	// FindByID returns a folder, deleted or not.
	FindByID(ctx context.Context, id string) (*model.Folder, error)

	// FindByIDForUpdate is FindByID holding a row lock until the surrounding transaction ends.
	FindByIDForUpdate(ctx context.Context, id string) (*model.Folder, error)

	// LockTree takes the folder-tree lock until the surrounding transaction ends.
	// Moves and cascades take it exclusively; inserts under an existing folder share it.
	LockTree(ctx context.Context, exclusive bool) error

	// ListChildren returns the direct child folders of parentID (nil for roots).
	ListChildren(ctx context.Context, parentID *string, includeDeleted bool) ([]model.Folder, error)

	// NameTaken reports whether a live folder other than excludeID is called name.
	// With global=false only siblings under parentID are considered.
	NameTaken(ctx context.Context, parentID *string, name string, global bool, excludeID string) (bool, error)

	// Rename sets the name of a folder.
	Rename(ctx context.Context, id, name string, at time.Time) error

	// SetParent re-parents a folder.
	SetParent(ctx context.Context, id string, parentID *string, at time.Time) error

	// MarkDeleted flags a folder as trashed at the given instant.
	MarkDeleted(ctx context.Context, id string, at time.Time) error

	// MarkRestored clears the trash flag.
	MarkRestored(ctx context.Context, id string, at time.Time) error

	// Delete removes the folder row.
	Delete(ctx context.Context, id string) error

	// ListExpired returns trashed folders deleted before the cutoff, oldest first.
	ListExpired(ctx context.Context, before time.Time) ([]model.Folder, error)

	// ListDeleted returns trashed folders, optionally restricted to a creator.
	ListDeleted(ctx context.Context, createdBy string, pq PageQuery) (*PageResult[model.Folder], error)
}

// FileRepository persists files.
type FileRepository interface {
	Create(ctx context.Context, f *model.File) error
	FindByID(ctx context.Context, id string) (*model.File, error)
	FindByIDForUpdate(ctx context.Context, id string) (*model.File, error)

	// ListByFolder returns the files placed directly in folderID.
	ListByFolder(ctx context.Context, folderID string, includeDeleted bool) ([]model.File, error)

	Rename(ctx context.Context, id, name string, at time.Time) error
	SetFolder(ctx context.Context, id, folderID string, at time.Time) error

	// UpdateContent stores new content metadata (storage path, size, mime type, category).
	UpdateContent(ctx context.Context, f *model.File) error

	MarkDeleted(ctx context.Context, id string, at time.Time) error
	MarkRestored(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
	ListExpired(ctx context.Context, before time.Time) ([]model.File, error)
	ListDeleted(ctx context.Context, createdBy string, pq PageQuery) (*PageResult[model.File], error)
}

// VersionRepository persists the content history of files.
type VersionRepository interface {
	Create(ctx context.Context, v *model.FileVersion) error

	// ListByFile returns versions newest first.
	ListByFile(ctx context.Context, fileID string) ([]model.FileVersion, error)

	// LatestNumber returns the highest version number of a file, 0 when it has none.
	LatestNumber(ctx context.Context, fileID string) (int, error)

	DeleteByFile(ctx context.Context, fileID string) error
}
