package repository

import (
	"context"
	"time"

	"filevault/internal/model"
)

// PermissionRepository persists folder grants.
type PermissionRepository interface {
	// Upsert inserts a grant or, when (folder, target type, target id) already exists,
	// replaces its level. It returns the stored row.
	Upsert(ctx context.Context, p *model.Permission) (*model.Permission, error)

	// Delete removes one grant. It returns ErrNotFound when there was none.
	Delete(ctx context.Context, folderID string, targetType model.TargetType, targetID string) error

	ListByFolder(ctx context.Context, folderID string) ([]model.Permission, error)

	// ListForTargets returns the grants on folderID addressed to any of the targets.
	ListForTargets(ctx context.Context, folderID string, targets []model.GrantTarget) ([]model.Permission, error)

	DeleteByFolder(ctx context.Context, folderID string) error
}

// ShareLinkRepository persists share links.
type ShareLinkRepository interface {
	Create(ctx context.Context, l *model.ShareLink) error
	FindByID(ctx context.Context, id string) (*model.ShareLink, error)
	FindByToken(ctx context.Context, token string) (*model.ShareLink, error)
	ListByResource(ctx context.Context, rt model.ResourceType, resourceID string) ([]model.ShareLink, error)
	Deactivate(ctx context.Context, id string) error

	// IncrementDownload atomically bumps the download count of a usable link.
	// It returns false when the link is inactive, expired or at its cap.
	IncrementDownload(ctx context.Context, token string, now time.Time) (bool, error)

	// CountUsable counts links on the resource that still grant access at now.
	CountUsable(ctx context.Context, rt model.ResourceType, resourceID string, now time.Time) (int, error)

	DeleteByResource(ctx context.Context, rt model.ResourceType, resourceID string) error
}

// ActivityFilter narrows an activity listing. Empty fields match everything.
type ActivityFilter struct {
	UserID       string
	Action       string
	ResourceType model.ResourceType
}

// ActivityRepository is the append-only audit log.
type ActivityRepository interface {
	Append(ctx context.Context, entry *model.ActivityLog) error
	List(ctx context.Context, filter ActivityFilter, pq PageQuery) (*PageResult[model.ActivityLog], error)
}
