package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"filevault/internal/model"
	"filevault/internal/repository"
)

const permissionColumns = `id, folder_id, target_type, target_id, level, granted_by, created_at, updated_at`

// PermissionPostgres is a PostgreSQL implementation of repository.PermissionRepository.
type PermissionPostgres struct {
	db *sql.DB
}

// NewPermissionPostgres creates a new PermissionPostgres repository.
func NewPermissionPostgres(db *sql.DB) *PermissionPostgres {
	return &PermissionPostgres{db: db}
}

var _ repository.PermissionRepository = (*PermissionPostgres)(nil)

func scanPermission(s scanner) (*model.Permission, error) {
	var (
		p     model.Permission
		level string
	)
	if err := s.Scan(
		&p.ID,
		&p.FolderID,
		&p.TargetType,
		&p.TargetID,
		&level,
		&p.GrantedBy,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	lv, err := model.ParseAccessLevel(level)
	if err != nil {
		return nil, err
	}
	p.Level = lv
	return &p, nil
}

func collectPermissions(rows *sql.Rows) ([]model.Permission, error) {
	defer rows.Close()
	items := make([]model.Permission, 0)
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Upsert inserts a grant or replaces the level of the existing one for the same target.
func (r *PermissionPostgres) Upsert(ctx context.Context, p *model.Permission) (*model.Permission, error) {
	q := `
		INSERT INTO folder_permissions (id, folder_id, target_type, target_id, level, granted_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (folder_id, target_type, target_id)
		DO UPDATE SET level = EXCLUDED.level, granted_by = EXCLUDED.granted_by, updated_at = EXCLUDED.updated_at
		RETURNING ` + permissionColumns
	out, err := scanPermission(executor(ctx, r.db).QueryRowContext(ctx, q,
		p.ID,
		p.FolderID,
		p.TargetType,
		p.TargetID,
		p.Level.String(),
		p.GrantedBy,
		p.CreatedAt,
		p.UpdatedAt,
	))
	if err != nil {
		return nil, mapErr(err, "upsert permission")
	}
	return out, nil
}

// Delete removes the grant of one target on a folder.
func (r *PermissionPostgres) Delete(ctx context.Context, folderID string, targetType model.TargetType, targetID string) error {
	const q = `DELETE FROM folder_permissions WHERE folder_id = $1 AND target_type = $2 AND target_id = $3`
	res, err := executor(ctx, r.db).ExecContext(ctx, q, folderID, targetType, targetID)
	if err != nil {
		return mapErr(err, "revoke permission")
	}
	return expectOne(res, "revoke permission")
}

// ListByFolder returns every grant on a folder.
func (r *PermissionPostgres) ListByFolder(ctx context.Context, folderID string) ([]model.Permission, error) {
	q := `SELECT ` + permissionColumns + ` FROM folder_permissions
		WHERE folder_id = $1
		ORDER BY target_type, target_id`
	rows, err := executor(ctx, r.db).QueryContext(ctx, q, folderID)
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	return collectPermissions(rows)
}

// ListForTargets returns the grants on a folder addressed to any of the targets.
func (r *PermissionPostgres) ListForTargets(ctx context.Context, folderID string, targets []model.GrantTarget) ([]model.Permission, error) {
	if len(targets) == 0 {
		return []model.Permission{}, nil
	}

	args := []any{folderID}
	conds := make([]string, 0, len(targets))
	for _, t := range targets {
		args = append(args, t.Type, t.ID)
		conds = append(conds, fmt.Sprintf("(target_type = $%d AND target_id = $%d)", len(args)-1, len(args)))
	}

	q := `SELECT ` + permissionColumns + ` FROM folder_permissions
		WHERE folder_id = $1 AND (` + strings.Join(conds, " OR ") + `)`
	rows, err := executor(ctx, r.db).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list permissions for targets: %w", err)
	}
	return collectPermissions(rows)
}

// DeleteByFolder removes every grant on a folder.
func (r *PermissionPostgres) DeleteByFolder(ctx context.Context, folderID string) error {
	const q = `DELETE FROM folder_permissions WHERE folder_id = $1`
	_, err := executor(ctx, r.db).ExecContext(ctx, q, folderID)
	return mapErr(err, "delete folder permissions")
}
