package model

import "time"

// ShareLink is an anonymous capability on a single file or folder.
type ShareLink struct {
	ID            string       `json:"id"`
	Token         string       `json:"token"`
	ResourceType  ResourceType `json:"resource_type"`
	ResourceID    string       `json:"resource_id"`
	CreatedBy     string       `json:"created_by"`
	PasswordHash  *string      `json:"-"`
	ExpiresAt     *time.Time   `json:"expires_at,omitempty"`
	MaxDownloads  *int         `json:"max_downloads,omitempty"`
	DownloadCount int          `json:"download_count"`
	IsActive      bool         `json:"is_active"`
	CreatedAt     time.Time    `json:"created_at"`
}

// HasPassword reports whether the link is password protected.
func (l *ShareLink) HasPassword() bool { return l.PasswordHash != nil && *l.PasswordHash != "" }

// Expired reports whether the link expired at or before now.
func (l *ShareLink) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && !now.Before(*l.ExpiresAt)
}

// LimitReached reports whether the download cap is exhausted.
func (l *ShareLink) LimitReached() bool {
	return l.MaxDownloads != nil && l.DownloadCount >= *l.MaxDownloads
}

// Usable reports whether the link still grants access at now.
func (l *ShareLink) Usable(now time.Time) bool {
	return l.IsActive && !l.Expired(now) && !l.LimitReached()
}
