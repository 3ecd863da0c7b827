package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filevault/internal/model"
	"filevault/internal/repository"
)

var permissionRowColumns = []string{"id", "folder_id", "target_type", "target_id", "level", "granted_by", "created_at", "updated_at"}

func TestPermissionPostgres_Upsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewPermissionPostgres(db)
	now := time.Now().UTC()
	p := &model.Permission{
		ID:         "new-id",
		FolderID:   "d1",
		TargetType: model.TargetUser,
		TargetID:   "u2",
		Level:      model.AccessManage,
		GrantedBy:  "u1",
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	// An existing grant keeps its id and creation time.
	created := now.Add(-time.Hour)
	mock.ExpectQuery("INSERT INTO folder_permissions (.+) ON CONFLICT").
		WithArgs("new-id", "d1", "user", "u2", "manage", "u1", now, now).
		WillReturnRows(sqlmock.NewRows(permissionRowColumns).
			AddRow("old-id", "d1", "user", "u2", "manage", "u1", created, now))

	out, err := repo.Upsert(context.Background(), p)

	require.NoError(t, err)
	assert.Equal(t, "old-id", out.ID)
	assert.Equal(t, model.AccessManage, out.Level)
	assert.Equal(t, created, out.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPermissionPostgres_ListForTargets(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewPermissionPostgres(db)
	now := time.Now()
	targets := []model.GrantTarget{
		{Type: model.TargetUser, ID: "u2"},
		{Type: model.TargetBranch, ID: "b1"},
	}

	mock.ExpectQuery("SELECT (.+) FROM folder_permissions WHERE folder_id = (.+) OR").
		WithArgs("d1", "user", "u2", "branch", "b1").
		WillReturnRows(sqlmock.NewRows(permissionRowColumns).
			AddRow("p1", "d1", "user", "u2", "view", "u1", now, now).
			AddRow("p2", "d1", "branch", "b1", "edit", "u1", now, now))

	items, err := repo.ListForTargets(context.Background(), "d1", targets)

	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, model.AccessView, items[0].Level)
	assert.Equal(t, model.AccessEdit, items[1].Level)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPermissionPostgres_DeleteMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewPermissionPostgres(db)

	mock.ExpectExec("DELETE FROM folder_permissions").
		WithArgs("d1", "user", "nobody").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.Delete(context.Background(), "d1", model.TargetUser, "nobody")

	assert.True(t, errors.Is(err, repository.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}
