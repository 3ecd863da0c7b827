package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"filevault/internal/model"
	"filevault/internal/repository"
)

const folderColumns = `id, name, parent_id, created_by, created_at, updated_at, is_deleted, deleted_at`

// FolderPostgres is a PostgreSQL implementation of repository.FolderRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type FolderPostgres struct {
	db *sql.DB
}

// NewFolderPostgres creates a new FolderPostgres repository.
func NewFolderPostgres(db *sql.DB) *FolderPostgres {
	return &FolderPostgres{db: db}
}

var _ repository.FolderRepository = (*FolderPostgres)(nil)

func scanFolder(s scanner) (*model.Folder, error) {
	var f model.Folder
	if err := s.Scan(
		&f.ID,
		&f.Name,
		&f.ParentID,
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

func collectFolders(rows *sql.Rows) ([]model.Folder, error) {
	defer rows.Close()
	items := make([]model.Folder, 0)
	for rows.Next() {
		f, err := scanFolder(rows)
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

// Create inserts a new folder row.
func (r *FolderPostgres) Create(ctx context.Context, f *model.Folder) error {
	const q = `
		INSERT INTO folders (id, name, parent_id, created_by, created_at, updated_at, is_deleted, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := executor(ctx, r.db).ExecContext(ctx, q,
		f.ID,
		f.Name,
		f.ParentID,
		f.CreatedBy,
		f.CreatedAt,
		f.UpdatedAt,
		f.IsDeleted,
		f.DeletedAt,
	)
	return mapErr(err, "create folder")
}

// FindByID fetches a single folder by its ID.
func (r *FolderPostgres) FindByID(ctx context.Context, id string) (*model.Folder, error) {
	q := `SELECT ` + folderColumns + ` FROM folders WHERE id = $1`
	f, err := scanFolder(executor(ctx, r.db).QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, mapErr(err, "find folder")
	}
	return f, nil
}

// FindByIDForUpdate fetches a folder and locks its row for the rest of the transaction.
func (r *FolderPostgres) FindByIDForUpdate(ctx context.Context, id string) (*model.Folder, error) {
	q := `SELECT ` + folderColumns + ` FROM folders WHERE id = $1 FOR UPDATE`
	f, err := scanFolder(executor(ctx, r.db).QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, mapErr(err, "lock folder")
	}
	return f, nil
}

// folderTreeLockKey is the advisory lock key guarding parent_id changes.
const folderTreeLockKey int64 = 0x66766c7472656531

// LockTree takes the transaction-scoped advisory lock on the folder tree.
func (r *FolderPostgres) LockTree(ctx context.Context, exclusive bool) error {
	q := `SELECT pg_advisory_xact_lock_shared($1)`
	if exclusive {
		q = `SELECT pg_advisory_xact_lock($1)`
	}
	if _, err := executor(ctx, r.db).ExecContext(ctx, q, folderTreeLockKey); err != nil {
		return fmt.Errorf("lock folder tree: %w", err)
	}
	return nil
}

// ListChildren returns direct child folders ordered by name.
func (r *FolderPostgres) ListChildren(ctx context.Context, parentID *string, includeDeleted bool) ([]model.Folder, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if parentID == nil {
		q := `SELECT ` + folderColumns + ` FROM folders
			WHERE parent_id IS NULL AND ($1 OR is_deleted = false)
			ORDER BY name, id`
		rows, err = executor(ctx, r.db).QueryContext(ctx, q, includeDeleted)
	} else {
		q := `SELECT ` + folderColumns + ` FROM folders
			WHERE parent_id = $1 AND ($2 OR is_deleted = false)
			ORDER BY name, id`
		rows, err = executor(ctx, r.db).QueryContext(ctx, q, *parentID, includeDeleted)
	}
	if err != nil {
		return nil, fmt.Errorf("list child folders: %w", err)
	}
	return collectFolders(rows)
}

// NameTaken reports whether a live folder already uses name.
func (r *FolderPostgres) NameTaken(ctx context.Context, parentID *string, name string, global bool, excludeID string) (bool, error) {
	var (
		exists bool
		err    error
	)
	if global {
		const q = `SELECT EXISTS (
			SELECT 1 FROM folders WHERE name = $1 AND is_deleted = false AND id <> $2
		)`
		err = executor(ctx, r.db).QueryRowContext(ctx, q, name, excludeID).Scan(&exists)
	} else {
		const q = `SELECT EXISTS (
			SELECT 1 FROM folders
			WHERE name = $1 AND is_deleted = false AND id <> $2 AND parent_id IS NOT DISTINCT FROM $3
		)`
		err = executor(ctx, r.db).QueryRowContext(ctx, q, name, excludeID, parentID).Scan(&exists)
	}
	if err != nil {
		return false, fmt.Errorf("check folder name: %w", err)
	}
	return exists, nil
}

// Rename sets a folder's name.
func (r *FolderPostgres) Rename(ctx context.Context, id, name string, at time.Time) error {
	const q = `UPDATE folders SET name = $1, updated_at = $2 WHERE id = $3`
	res, err := executor(ctx, r.db).ExecContext(ctx, q, name, at, id)
	if err != nil {
		return mapErr(err, "rename folder")
	}
	return expectOne(res, "rename folder")
}

// SetParent moves a folder under a new parent (nil for root).
func (r *FolderPostgres) SetParent(ctx context.Context, id string, parentID *string, at time.Time) error {
	const q = `UPDATE folders SET parent_id = $1, updated_at = $2 WHERE id = $3`
	res, err := executor(ctx, r.db).ExecContext(ctx, q, parentID, at, id)
	if err != nil {
		return mapErr(err, "move folder")
	}
	return expectOne(res, "move folder")
}

// MarkDeleted flags a folder as trashed.
func (r *FolderPostgres) MarkDeleted(ctx context.Context, id string, at time.Time) error {
	const q = `UPDATE folders SET is_deleted = true, deleted_at = $1, updated_at = $1 WHERE id = $2`
	res, err := executor(ctx, r.db).ExecContext(ctx, q, at, id)
	if err != nil {
		return mapErr(err, "trash folder")
	}
	return expectOne(res, "trash folder")
}

// MarkRestored clears the trash flag of a folder.
func (r *FolderPostgres) MarkRestored(ctx context.Context, id string, at time.Time) error {
	const q = `UPDATE folders SET is_deleted = false, deleted_at = NULL, updated_at = $1 WHERE id = $2`
	res, err := executor(ctx, r.db).ExecContext(ctx, q, at, id)
	if err != nil {
		return mapErr(err, "restore folder")
	}
	return expectOne(res, "restore folder")
}

// Delete removes a folder row.
func (r *FolderPostgres) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM folders WHERE id = $1`
	_, err := executor(ctx, r.db).ExecContext(ctx, q, id)
	return mapErr(err, "delete folder")
}

// ListExpired returns folders trashed before the cutoff, oldest first.
func (r *FolderPostgres) ListExpired(ctx context.Context, before time.Time) ([]model.Folder, error) {
	q := `SELECT ` + folderColumns + ` FROM folders
		WHERE is_deleted = true AND deleted_at < $1
		ORDER BY deleted_at ASC, id`
	rows, err := executor(ctx, r.db).QueryContext(ctx, q, before)
	if err != nil {
		return nil, fmt.Errorf("list expired folders: %w", err)
	}
	return collectFolders(rows)
}

// ListDeleted returns trashed folders using LIMIT/OFFSET pagination and a total count.
func (r *FolderPostgres) ListDeleted(ctx context.Context, createdBy string, pq repository.PageQuery) (*repository.PageResult[model.Folder], error) {
	const qCount = `SELECT COUNT(*) FROM folders WHERE is_deleted = true AND ($1 = '' OR created_by = $1)`
	var total int
	if err := executor(ctx, r.db).QueryRowContext(ctx, qCount, createdBy).Scan(&total); err != nil {
		return nil, fmt.Errorf("count trashed folders: %w", err)
	}

	q := `SELECT ` + folderColumns + ` FROM folders
		WHERE is_deleted = true AND ($1 = '' OR created_by = $1)
		ORDER BY deleted_at DESC, id DESC
		LIMIT $2 OFFSET $3`
	rows, err := executor(ctx, r.db).QueryContext(ctx, q, createdBy, pq.Limit, pq.Offset)
	if err != nil {
		return nil, fmt.Errorf("list trashed folders: %w", err)
	}
	items, err := collectFolders(rows)
	if err != nil {
		return nil, err
	}
	return &repository.PageResult[model.Folder]{Items: items, Total: total}, nil
}
