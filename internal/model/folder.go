package model

import "time"

// ResourceType names the kind of tree item an operation targets.
type ResourceType string

const (
	ResourceFolder ResourceType = "folder"
	ResourceFile   ResourceType = "file"
)

// Valid reports whether r is a known resource type.
func (r ResourceType) Valid() bool {
	return r == ResourceFolder || r == ResourceFile
}

// Folder is a node of the folder forest. A nil ParentID marks a root folder.
// This is a pure domain model with no database-specific dependencies or tags.
type Folder struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	ParentID  *string    `json:"parent_id"`
	CreatedBy string     `json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	IsDeleted bool       `json:"is_deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// IsRoot reports whether the folder has no parent.
func (f *Folder) IsRoot() bool { return f.ParentID == nil }

// HasParent reports whether the folder's parent is id.
func (f *Folder) HasParent(id string) bool {
	return f.ParentID != nil && *f.ParentID == id
}
