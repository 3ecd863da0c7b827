// Package migration creates the filevault schema on first start.
package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type migrationStep struct {
	Name string
	SQL  string
}

// sentinelTable is checked before migrating; when it exists the schema is assumed current.
const sentinelTable = "public.folders"

var steps = []migrationStep{
	{
		Name: "create_table_folders",
		SQL: `CREATE TABLE IF NOT EXISTS folders (
  id          TEXT        PRIMARY KEY,
  name        TEXT        NOT NULL CHECK (length(name) BETWEEN 1 AND 255),
  parent_id   TEXT        NULL REFERENCES folders (id),
  created_by  TEXT        NOT NULL,
  created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
  is_deleted  BOOLEAN     NOT NULL DEFAULT false,
  deleted_at  TIMESTAMPTZ NULL,
  CHECK (parent_id IS NULL OR parent_id <> id)
);`,
	},
	{
		Name: "create_index_folders_parent",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_folders_parent ON folders (parent_id, name);`,
	},
	{
		Name: "create_index_folders_trash",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_folders_trash ON folders (deleted_at) WHERE is_deleted;`,
	},
	{
		Name: "create_table_files",
		SQL: `CREATE TABLE IF NOT EXISTS files (
  id           TEXT        PRIMARY KEY,
  name         TEXT        NOT NULL CHECK (length(name) BETWEEN 1 AND 255),
  folder_id    TEXT        NOT NULL REFERENCES folders (id),
  size         BIGINT      NOT NULL CHECK (size >= 0),
  mime_type    TEXT        NOT NULL,
  category     TEXT        NOT NULL,
  storage_path TEXT        NOT NULL UNIQUE,
  created_by   TEXT        NOT NULL,
  created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
  is_deleted   BOOLEAN     NOT NULL DEFAULT false,
  deleted_at   TIMESTAMPTZ NULL
);`,
	},
	{
		Name: "create_index_files_folder",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_files_folder ON files (folder_id, name);`,
	},
	{
		Name: "create_index_files_trash",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_files_trash ON files (deleted_at) WHERE is_deleted;`,
	},
	{
		Name: "create_table_file_versions",
		SQL: `CREATE TABLE IF NOT EXISTS file_versions (
  id             TEXT        PRIMARY KEY,
  file_id        TEXT        NOT NULL REFERENCES files (id),
  version_number INTEGER     NOT NULL CHECK (version_number >= 1),
  storage_path   TEXT        NOT NULL UNIQUE,
  size           BIGINT      NOT NULL CHECK (size >= 0),
  mime_type      TEXT        NOT NULL,
  created_by     TEXT        NOT NULL,
  created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
  UNIQUE (file_id, version_number)
);`,
	},
	{
		Name: "create_table_folder_permissions",
		SQL: `CREATE TABLE IF NOT EXISTS folder_permissions (
  id          TEXT        PRIMARY KEY,
  folder_id   TEXT        NOT NULL REFERENCES folders (id),
  target_type TEXT        NOT NULL CHECK (target_type IN ('user', 'branch', 'department')),
  target_id   TEXT        NOT NULL,
  level       TEXT        NOT NULL CHECK (level IN ('view', 'edit', 'manage')),
  granted_by  TEXT        NOT NULL,
  created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
  UNIQUE (folder_id, target_type, target_id)
);`,
	},
	{
		Name: "create_table_share_links",
		SQL: `CREATE TABLE IF NOT EXISTS share_links (
  id             TEXT        PRIMARY KEY,
  token          TEXT        NOT NULL UNIQUE,
  resource_type  TEXT        NOT NULL CHECK (resource_type IN ('file', 'folder')),
  resource_id    TEXT        NOT NULL,
  created_by     TEXT        NOT NULL,
  password_hash  TEXT        NULL,
  expires_at     TIMESTAMPTZ NULL,
  max_downloads  INTEGER     NULL CHECK (max_downloads IS NULL OR max_downloads >= 1),
  download_count INTEGER     NOT NULL DEFAULT 0,
  is_active      BOOLEAN     NOT NULL DEFAULT true,
  created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
  CHECK (max_downloads IS NULL OR download_count <= max_downloads)
);`,
	},
	{
		Name: "create_index_share_links_resource",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_share_links_resource ON share_links (resource_type, resource_id);`,
	},
	{
		Name: "create_table_activity_logs",
		SQL: `CREATE TABLE IF NOT EXISTS activity_logs (
  id            TEXT        PRIMARY KEY,
  user_id       TEXT        NULL,
  action        TEXT        NOT NULL,
  resource_type TEXT        NOT NULL,
  resource_id   TEXT        NOT NULL,
  resource_name TEXT        NOT NULL DEFAULT '',
  details       JSONB       NULL,
  ip_address    TEXT        NOT NULL DEFAULT '',
  created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_activity_logs_user",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_activity_logs_user ON activity_logs (user_id, created_at DESC);`,
	},
	{
		Name: "create_index_activity_logs_created_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_activity_logs_created_at ON activity_logs (created_at DESC);`,
	},
}

// EnsureMigrated creates the schema unless the sentinel table already exists.
// All steps run in one transaction so a failed migration leaves no partial schema.
func EnsureMigrated(ctx context.Context, db *sql.DB, lg *zap.Logger) error {
	start := time.Now()
	lg = lg.With(zap.String("component", "database"))

	lg.Info("db_migration_check")

	var exists bool
	if err := db.QueryRowContext(ctx, "SELECT to_regclass($1) IS NOT NULL", sentinelTable).Scan(&exists); err != nil {
		lg.Error("db_migration_failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		lg.Info("db_migration_skip", zap.String("reason", "schema already exists"), zap.Duration("duration", time.Since(start)))
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := tx.ExecContext(ctx, step.SQL); err != nil {
			lg.Error("db_migration_failed",
				zap.String("migration_step", step.Name),
				zap.Error(err),
				zap.Duration("duration", time.Since(start)),
			)
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}
		lg.Debug("db_migration_step",
			zap.String("migration_step", step.Name),
			zap.Duration("step_duration", time.Since(stepStart)),
		)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}

	lg.Info("db_migration_success", zap.Int("steps", len(steps)), zap.Duration("duration", time.Since(start)))
	return nil
}
