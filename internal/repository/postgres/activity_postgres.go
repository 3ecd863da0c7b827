package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"filevault/internal/model"
	"filevault/internal/repository"
)

// ActivityPostgres is a PostgreSQL implementation of repository.ActivityRepository.
type ActivityPostgres struct {
	db *sql.DB
}

// NewActivityPostgres creates a new ActivityPostgres repository.
func NewActivityPostgres(db *sql.DB) *ActivityPostgres {
	return &ActivityPostgres{db: db}
}

var _ repository.ActivityRepository = (*ActivityPostgres)(nil)

// Append inserts an audit entry. Details are stored as JSONB.
func (r *ActivityPostgres) Append(ctx context.Context, e *model.ActivityLog) error {
	const q = `
		INSERT INTO activity_logs (id, user_id, action, resource_type, resource_id, resource_name, details, ip_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	var details sql.NullString
	if len(e.Details) > 0 {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("encode activity details: %w", err)
		}
		details = sql.NullString{String: string(b), Valid: true}
	}

	_, err := executor(ctx, r.db).ExecContext(ctx, q,
		e.ID,
		e.UserID,
		e.Action,
		e.ResourceType,
		e.ResourceID,
		e.ResourceName,
		details,
		e.IPAddress,
		e.CreatedAt,
	)
	return mapErr(err, "append activity")
}

// List returns audit entries newest first. Empty filter fields are ignored.
func (r *ActivityPostgres) List(ctx context.Context, f repository.ActivityFilter, pq repository.PageQuery) (*repository.PageResult[model.ActivityLog], error) {
	var (
		conds []string
		args  []any
	)
	if f.UserID != "" {
		args = append(args, f.UserID)
		conds = append(conds, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if f.Action != "" {
		args = append(args, f.Action)
		conds = append(conds, fmt.Sprintf("action = $%d", len(args)))
	}
	if f.ResourceType != "" {
		args = append(args, f.ResourceType)
		conds = append(conds, fmt.Sprintf("resource_type = $%d", len(args)))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := executor(ctx, r.db).QueryRowContext(ctx, `SELECT COUNT(*) FROM activity_logs`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count activity: %w", err)
	}

	q := fmt.Sprintf(`SELECT id, user_id, action, resource_type, resource_id, resource_name, details, ip_address, created_at
		FROM activity_logs%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)
	rows, err := executor(ctx, r.db).QueryContext(ctx, q, append(args, pq.Limit, pq.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	items := make([]model.ActivityLog, 0)
	for rows.Next() {
		var (
			e       model.ActivityLog
			details []byte
		)
		if err := rows.Scan(
			&e.ID,
			&e.UserID,
			&e.Action,
			&e.ResourceType,
			&e.ResourceID,
			&e.ResourceName,
			&details,
			&e.IPAddress,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("decode activity details: %w", err)
			}
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &repository.PageResult[model.ActivityLog]{Items: items, Total: total}, nil
}
