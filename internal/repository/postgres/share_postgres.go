package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"filevault/internal/model"
	"filevault/internal/repository"
)

const shareColumns = `id, token, resource_type, resource_id, created_by, password_hash, expires_at, max_downloads, download_count, is_active, created_at`

// ShareLinkPostgres is a PostgreSQL implementation of repository.ShareLinkRepository.
type ShareLinkPostgres struct {
	db *sql.DB
}

// NewShareLinkPostgres creates a new ShareLinkPostgres repository.
func NewShareLinkPostgres(db *sql.DB) *ShareLinkPostgres {
	return &ShareLinkPostgres{db: db}
}

var _ repository.ShareLinkRepository = (*ShareLinkPostgres)(nil)

func scanShareLink(s scanner) (*model.ShareLink, error) {
	var (
		l   model.ShareLink
		max sql.NullInt64
	)
	if err := s.Scan(
		&l.ID,
		&l.Token,
		&l.ResourceType,
		&l.ResourceID,
		&l.CreatedBy,
		&l.PasswordHash,
		&l.ExpiresAt,
		&max,
		&l.DownloadCount,
		&l.IsActive,
		&l.CreatedAt,
	); err != nil {
		return nil, err
	}
	if max.Valid {
		n := int(max.Int64)
		l.MaxDownloads = &n
	}
	return &l, nil
}

// Create inserts a share link.
func (r *ShareLinkPostgres) Create(ctx context.Context, l *model.ShareLink) error {
	const q = `
		INSERT INTO share_links (id, token, resource_type, resource_id, created_by, password_hash, expires_at, max_downloads, download_count, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	var max sql.NullInt64
	if l.MaxDownloads != nil {
		max = sql.NullInt64{Int64: int64(*l.MaxDownloads), Valid: true}
	}
	_, err := executor(ctx, r.db).ExecContext(ctx, q,
		l.ID,
		l.Token,
		l.ResourceType,
		l.ResourceID,
		l.CreatedBy,
		l.PasswordHash,
		l.ExpiresAt,
		max,
		l.DownloadCount,
		l.IsActive,
		l.CreatedAt,
	)
	return mapErr(err, "create share link")
}

// FindByID fetches a share link by its ID.
func (r *ShareLinkPostgres) FindByID(ctx context.Context, id string) (*model.ShareLink, error) {
	q := `SELECT ` + shareColumns + ` FROM share_links WHERE id = $1`
	l, err := scanShareLink(executor(ctx, r.db).QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, mapErr(err, "find share link")
	}
	return l, nil
}

// FindByToken fetches a share link by its token.
func (r *ShareLinkPostgres) FindByToken(ctx context.Context, token string) (*model.ShareLink, error) {
	q := `SELECT ` + shareColumns + ` FROM share_links WHERE token = $1`
	l, err := scanShareLink(executor(ctx, r.db).QueryRowContext(ctx, q, token))
	if err != nil {
		return nil, mapErr(err, "find share link")
	}
	return l, nil
}

// ListByResource returns the links on a resource, newest first.
func (r *ShareLinkPostgres) ListByResource(ctx context.Context, rt model.ResourceType, resourceID string) ([]model.ShareLink, error) {
	q := `SELECT ` + shareColumns + ` FROM share_links
		WHERE resource_type = $1 AND resource_id = $2
		ORDER BY created_at DESC, id`
	rows, err := executor(ctx, r.db).QueryContext(ctx, q, rt, resourceID)
	if err != nil {
		return nil, fmt.Errorf("list share links: %w", err)
	}
	defer rows.Close()

	items := make([]model.ShareLink, 0)
	for rows.Next() {
		l, err := scanShareLink(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Deactivate switches a link off.
func (r *ShareLinkPostgres) Deactivate(ctx context.Context, id string) error {
	const q = `UPDATE share_links SET is_active = false WHERE id = $1`
	res, err := executor(ctx, r.db).ExecContext(ctx, q, id)
	if err != nil {
		return mapErr(err, "deactivate share link")
	}
	return expectOne(res, "deactivate share link")
}

// IncrementDownload bumps the counter in a single conditional statement, so concurrent
// downloads can never push the count past max_downloads.
func (r *ShareLinkPostgres) IncrementDownload(ctx context.Context, token string, now time.Time) (bool, error) {
	const q = `
		UPDATE share_links
		SET download_count = download_count + 1
		WHERE token = $1
		  AND is_active = true
		  AND (max_downloads IS NULL OR download_count < max_downloads)
		  AND (expires_at IS NULL OR expires_at > $2)
	`
	res, err := executor(ctx, r.db).ExecContext(ctx, q, token, now)
	if err != nil {
		return false, fmt.Errorf("record share download: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record share download: %w", err)
	}
	return n == 1, nil
}

// CountUsable counts the links on a resource that still grant access at now.
func (r *ShareLinkPostgres) CountUsable(ctx context.Context, rt model.ResourceType, resourceID string, now time.Time) (int, error) {
	const q = `
		SELECT COUNT(*) FROM share_links
		WHERE resource_type = $1 AND resource_id = $2
		  AND is_active = true
		  AND (max_downloads IS NULL OR download_count < max_downloads)
		  AND (expires_at IS NULL OR expires_at > $3)
	`
	var n int
	if err := executor(ctx, r.db).QueryRowContext(ctx, q, rt, resourceID, now).Scan(&n); err != nil {
		return 0, fmt.Errorf("count share links: %w", err)
	}
	return n, nil
}

// DeleteByResource removes every link on a resource.
func (r *ShareLinkPostgres) DeleteByResource(ctx context.Context, rt model.ResourceType, resourceID string) error {
	const q = `DELETE FROM share_links WHERE resource_type = $1 AND resource_id = $2`
	_, err := executor(ctx, r.db).ExecContext(ctx, q, rt, resourceID)
	return mapErr(err, "delete share links")
}
