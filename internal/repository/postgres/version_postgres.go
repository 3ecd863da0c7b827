package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"filevault/internal/model"
	"filevault/internal/repository"
)

// VersionPostgres is a PostgreSQL implementation of repository.VersionRepository.
type VersionPostgres struct {
	db *sql.DB
}

// NewVersionPostgres creates a new VersionPostgres repository.
func NewVersionPostgres(db *sql.DB) *VersionPostgres {
	return &VersionPostgres{db: db}
}

var _ repository.VersionRepository = (*VersionPostgres)(nil)

// Create inserts a version row.
func (r *VersionPostgres) Create(ctx context.Context, v *model.FileVersion) error {
	const q = `
		INSERT INTO file_versions (id, file_id, version_number, storage_path, size, mime_type, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := executor(ctx, r.db).ExecContext(ctx, q,
		v.ID,
		v.FileID,
		v.VersionNumber,
		v.StoragePath,
		v.Size,
		v.MimeType,
		v.CreatedBy,
		v.CreatedAt,
	)
	return mapErr(err, "create file version")
}

// ListByFile returns the versions of a file, newest first.
func (r *VersionPostgres) ListByFile(ctx context.Context, fileID string) ([]model.FileVersion, error) {
	const q = `
		SELECT id, file_id, version_number, storage_path, size, mime_type, created_by, created_at
		FROM file_versions
		WHERE file_id = $1
		ORDER BY version_number DESC
	`
	rows, err := executor(ctx, r.db).QueryContext(ctx, q, fileID)
	if err != nil {
		return nil, fmt.Errorf("list file versions: %w", err)
	}
	defer rows.Close()

	items := make([]model.FileVersion, 0)
	for rows.Next() {
		var v model.FileVersion
		if err := rows.Scan(
			&v.ID,
			&v.FileID,
			&v.VersionNumber,
			&v.StoragePath,
			&v.Size,
			&v.MimeType,
			&v.CreatedBy,
			&v.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// LatestNumber returns the highest version number of a file.
func (r *VersionPostgres) LatestNumber(ctx context.Context, fileID string) (int, error) {
	const q = `SELECT COALESCE(MAX(version_number), 0) FROM file_versions WHERE file_id = $1`
	var n int
	if err := executor(ctx, r.db).QueryRowContext(ctx, q, fileID).Scan(&n); err != nil {
		return 0, fmt.Errorf("latest file version: %w", err)
	}
	return n, nil
}

// DeleteByFile removes every version of a file.
func (r *VersionPostgres) DeleteByFile(ctx context.Context, fileID string) error {
	const q = `DELETE FROM file_versions WHERE file_id = $1`
	_, err := executor(ctx, r.db).ExecContext(ctx, q, fileID)
	return mapErr(err, "delete file versions")
}
