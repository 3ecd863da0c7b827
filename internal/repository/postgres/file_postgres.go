package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"filevault/internal/model"
	"filevault/internal/repository"
)

const fileColumns = `id, name, folder_id, size, mime_type, category, storage_path, created_by, created_at, updated_at, is_deleted, deleted_at`

// FilePostgres is a PostgreSQL implementation of repository.FileRepository.
type FilePostgres struct {
	db *sql.DB
}

// NewFilePostgres creates a new FilePostgres repository.
func NewFilePostgres(db *sql.DB) *FilePostgres {
	return &FilePostgres{db: db}
}

var _ repository.FileRepository = (*FilePostgres)(nil)

func scanFile(s scanner) (*model.File, error) {
	var f model.File
	if err := s.Scan(
		&f.ID,
		&f.Name,
		&f.FolderID,
		&f.Size,
		&f.MimeType,
		&f.Category,
		&f.StoragePath,
		&f.CreatedBy,
		&f.CreatedAt,
		&f.UpdatedAt,
		&f.IsDeleted,
		&f.DeletedAt,
	); err != nil {
		return nil, err
	}
	return &f, nil
}

func collectFiles(rows *sql.Rows) ([]model.File, error) {
	defer rows.Close()
	items := make([]model.File, 0)
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Create inserts a new file row.
func (r *FilePostgres) Create(ctx context.Context, f *model.File) error {
	const q = `
		INSERT INTO files (id, name, folder_id, size, mime_type, category, storage_path, created_by, created_at, updated_at, is_deleted, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := executor(ctx, r.db).ExecContext(ctx, q,
		f.ID,
		f.Name,
		f.FolderID,
		f.Size,
		f.MimeType,
		f.Category,
		f.StoragePath,
		f.CreatedBy,
		f.CreatedAt,
		f.UpdatedAt,
		f.IsDeleted,
		f.DeletedAt,
	)
	return mapErr(err, "create file")
}

// FindByID fetches a single file by its ID.
func (r *FilePostgres) FindByID(ctx context.Context, id string) (*model.File, error) {
	q := `SELECT ` + fileColumns + ` FROM files WHERE id = $1`
	f, err := scanFile(executor(ctx, r.db).QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, mapErr(err, "find file")
	}
	return f, nil
}

// FindByIDForUpdate fetches a file and locks its row for the rest of the transaction.
func (r *FilePostgres) FindByIDForUpdate(ctx context.Context, id string) (*model.File, error) {
	q := `SELECT ` + fileColumns + ` FROM files WHERE id = $1 FOR UPDATE`
	f, err := scanFile(executor(ctx, r.db).QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, mapErr(err, "lock file")
	}
	return f, nil
}

// ListByFolder returns the files placed directly in a folder, ordered by name.
func (r *FilePostgres) ListByFolder(ctx context.Context, folderID string, includeDeleted bool) ([]model.File, error) {
	q := `SELECT ` + fileColumns + ` FROM files
		WHERE folder_id = $1 AND ($2 OR is_deleted = false)
		ORDER BY name, id`
	rows, err := executor(ctx, r.db).QueryContext(ctx, q, folderID, includeDeleted)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return collectFiles(rows)
}

// Rename sets a file's name.
func (r *FilePostgres) Rename(ctx context.Context, id, name string, at time.Time) error {
	const q = `UPDATE files SET name = $1, updated_at = $2 WHERE id = $3`
	res, err := executor(ctx, r.db).ExecContext(ctx, q, name, at, id)
	if err != nil {
		return mapErr(err, "rename file")
	}
	return expectOne(res, "rename file")
}

// SetFolder moves a file into another folder.
func (r *FilePostgres) SetFolder(ctx context.Context, id, folderID string, at time.Time) error {
	const q = `UPDATE files SET folder_id = $1, updated_at = $2 WHERE id = $3`
	res, err := executor(ctx, r.db).ExecContext(ctx, q, folderID, at, id)
	if err != nil {
		return mapErr(err, "move file")
	}
	return expectOne(res, "move file")
}

// UpdateContent replaces the content metadata of a file.
func (r *FilePostgres) UpdateContent(ctx context.Context, f *model.File) error {
	const q = `
		UPDATE files
		SET storage_path = $1, size = $2, mime_type = $3, category = $4, updated_at = $5
		WHERE id = $6
	`
	res, err := executor(ctx, r.db).ExecContext(ctx, q,
		f.StoragePath,
		f.Size,
		f.MimeType,
		f.Category,
		f.UpdatedAt,
		f.ID,
	)
	if err != nil {
		return mapErr(err, "update file content")
	}
	return expectOne(res, "update file content")
}

// MarkDeleted flags a file as trashed.
func (r *FilePostgres) MarkDeleted(ctx context.Context, id string, at time.Time) error {
	const q = `UPDATE files SET is_deleted = true, deleted_at = $1, updated_at = $1 WHERE id = $2`
	res, err := executor(ctx, r.db).ExecContext(ctx, q, at, id)
	if err != nil {
		return mapErr(err, "trash file")
	}
	return expectOne(res, "trash file")
}

// MarkRestored clears the trash flag of a file.
func (r *FilePostgres) MarkRestored(ctx context.Context, id string, at time.Time) error {
	const q = `UPDATE files SET is_deleted = false, deleted_at = NULL, updated_at = $1 WHERE id = $2`
	res, err := executor(ctx, r.db).ExecContext(ctx, q, at, id)
	if err != nil {
		return mapErr(err, "restore file")
	}
	return expectOne(res, "restore file")
}

// Delete removes a file row.
func (r *FilePostgres) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM files WHERE id = $1`
	_, err := executor(ctx, r.db).ExecContext(ctx, q, id)
	return mapErr(err, "delete file")
}

// ListExpired returns files trashed before the cutoff, oldest first.
func (r *FilePostgres) ListExpired(ctx context.Context, before time.Time) ([]model.File, error) {
	q := `SELECT ` + fileColumns + ` FROM files
		WHERE is_deleted = true AND deleted_at < $1
		ORDER BY deleted_at ASC, id`
	rows, err := executor(ctx, r.db).QueryContext(ctx, q, before)
	if err != nil {
		return nil, fmt.Errorf("list expired files: %w", err)
	}
	return collectFiles(rows)
}

// ListDeleted returns trashed files using LIMIT/OFFSET pagination and a total count.
func (r *FilePostgres) ListDeleted(ctx context.Context, createdBy string, pq repository.PageQuery) (*repository.PageResult[model.File], error) {
	const qCount = `SELECT COUNT(*) FROM files WHERE is_deleted = true AND ($1 = '' OR created_by = $1)`
	var total int
	if err := executor(ctx, r.db).QueryRowContext(ctx, qCount, createdBy).Scan(&total); err != nil {
		return nil, fmt.Errorf("count trashed files: %w", err)
	}

	q := `SELECT ` + fileColumns + ` FROM files
		WHERE is_deleted = true AND ($1 = '' OR created_by = $1)
		ORDER BY deleted_at DESC, id DESC
		LIMIT $2 OFFSET $3`
	rows, err := executor(ctx, r.db).QueryContext(ctx, q, createdBy, pq.Limit, pq.Offset)
	if err != nil {
		return nil, fmt.Errorf("list trashed files: %w", err)
	}
	items, err := collectFiles(rows)
	if err != nil {
		return nil, err
	}
	return &repository.PageResult[model.File]{Items: items, Total: total}, nil
}
