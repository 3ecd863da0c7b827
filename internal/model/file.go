package model

import (
	"strings"
	"time"
)

// File is a stored blob placed in exactly one folder.
// StoragePath is the key of the content in the blob store; it is only freed on purge.
type File struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	FolderID    string     `json:"folder_id"`
	Size        int64      `json:"size"`
	MimeType    string     `json:"mime_type"`
	Category    string     `json:"category"`
	StoragePath string     `json:"storage_path"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	IsDeleted   bool       `json:"is_deleted"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// FileVersion keeps the previous content of a file after a new upload.
type FileVersion struct {
	ID            string    `json:"id"`
	FileID        string    `json:"file_id"`
	VersionNumber int       `json:"version_number"`
	StoragePath   string    `json:"storage_path"`
	Size          int64     `json:"size"`
	MimeType      string    `json:"mime_type"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
}

// File categories derived from the mime type.
const (
	CategoryImage    = "image"
	CategoryVideo    = "video"
	CategoryAudio    = "audio"
	CategoryDocument = "document"
	CategoryArchive  = "archive"
	CategoryOther    = "other"
)

var documentTypes = []string{
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument",
	"application/vnd.ms-excel",
	"application/vnd.ms-powerpoint",
	"application/vnd.oasis.opendocument",
	"application/rtf",
	"application/json",
	"text/",
}

var archiveTypes = []string{
	"application/zip",
	"application/x-tar",
	"application/gzip",
	"application/x-7z-compressed",
	"application/x-rar-compressed",
	"application/vnd.rar",
}

// CategoryFor maps a mime type onto one of the file categories.
func CategoryFor(mimeType string) string {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case strings.HasPrefix(mt, "image/"):
		return CategoryImage
	case strings.HasPrefix(mt, "video/"):
		return CategoryVideo
	case strings.HasPrefix(mt, "audio/"):
		return CategoryAudio
	}
	for _, p := range archiveTypes {
		if strings.HasPrefix(mt, p) {
			return CategoryArchive
		}
	}
	for _, p := range documentTypes {
		if strings.HasPrefix(mt, p) {
			return CategoryDocument
		}
	}
	return CategoryOther
}
