package model

import "time"

// Audited actions.
const (
	ActionFolderCreate     = "folder.create"
	ActionFolderRename     = "folder.rename"
	ActionFolderMove       = "folder.move"
	ActionFolderDelete     = "folder.delete"
	ActionFolderRestore    = "folder.restore"
	ActionFolderPurge      = "folder.purge"
	ActionFileUpload       = "file.upload"
	ActionFileVersion      = "file.version"
	ActionFileDownload     = "file.download"
	ActionFileRename       = "file.rename"
	ActionFileMove         = "file.move"
	ActionFileDelete       = "file.delete"
	ActionFileRestore      = "file.restore"
	ActionFilePurge        = "file.purge"
	ActionPermissionGrant  = "permission.grant"
	ActionPermissionRevoke = "permission.revoke"
	ActionShareCreate      = "share.create"
	ActionShareDeactivate  = "share.deactivate"
	ActionShareDownload    = "share.download"
	ActionTrashExpire      = "trash.expire"
)

// ActivityLog is one append-only audit entry. UserID is nil for system actions.
type ActivityLog struct {
	ID           string         `json:"id"`
	UserID       *string        `json:"user_id"`
	Action       string         `json:"action"`
	ResourceType ResourceType   `json:"resource_type"`
	ResourceID   string         `json:"resource_id"`
	ResourceName string         `json:"resource_name"`
	Details      map[string]any `json:"details,omitempty"`
	IPAddress    string         `json:"ip_address,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// TrashItem summarises a soft-deleted folder or file.
type TrashItem struct {
	ResourceType ResourceType `json:"resource_type"`
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	ParentID     *string      `json:"parent_id"`
	CreatedBy    string       `json:"created_by"`
	DeletedAt    time.Time    `json:"deleted_at"`
	Size         int64        `json:"size,omitempty"`
}
