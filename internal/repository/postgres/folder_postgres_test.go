package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filevault/internal/model"
	"filevault/internal/repository"
)

var folderRowColumns = []string{"id", "name", "parent_id", "created_by", "created_at", "updated_at", "is_deleted", "deleted_at"}

func TestFolderPostgres_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewFolderPostgres(db)
	ctx := context.Background()

	now := time.Now().UTC()
	parent := "root-1"
	f := &model.Folder{
		ID:        "folder-1",
		Name:      "Reports",
		ParentID:  &parent,
		CreatedBy: "u1",
		CreatedAt: now,
		UpdatedAt: now,
	}

	mock.ExpectExec("INSERT INTO folders").
		WithArgs(f.ID, f.Name, parent, f.CreatedBy, now, now, false, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.Create(ctx, f))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFolderPostgres_FindByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewFolderPostgres(db)
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		now := time.Now()
		rows := sqlmock.NewRows(folderRowColumns).
			AddRow("folder-1", "Reports", nil, "u1", now, now, false, nil)

		mock.ExpectQuery("SELECT (.+) FROM folders WHERE id = ?").
			WithArgs("folder-1").
			WillReturnRows(rows)

		f, err := repo.FindByID(ctx, "folder-1")

		require.NoError(t, err)
		assert.Equal(t, "folder-1", f.ID)
		assert.True(t, f.IsRoot())
		assert.Nil(t, f.DeletedAt)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM folders WHERE id = ?").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		f, err := repo.FindByID(ctx, "missing")

		assert.Nil(t, f)
		assert.True(t, errors.Is(err, repository.ErrNotFound))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFolderPostgres_ListChildren(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewFolderPostgres(db)
	ctx := context.Background()
	now := time.Now()

	t.Run("roots", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM folders WHERE parent_id IS NULL").
			WithArgs(false).
			WillReturnRows(sqlmock.NewRows(folderRowColumns).
				AddRow("a", "A", nil, "u1", now, now, false, nil).
				AddRow("b", "B", nil, "u1", now, now, false, nil))

		items, err := repo.ListChildren(ctx, nil, false)

		require.NoError(t, err)
		assert.Len(t, items, 2)
	})

	t.Run("children including trashed", func(t *testing.T) {
		parent := "a"
		mock.ExpectQuery("SELECT (.+) FROM folders WHERE parent_id = ?").
			WithArgs("a", true).
			WillReturnRows(sqlmock.NewRows(folderRowColumns).
				AddRow("c", "C", "a", "u1", now, now, true, now))

		items, err := repo.ListChildren(ctx, &parent, true)

		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.True(t, items[0].HasParent("a"))
		assert.True(t, items[0].IsDeleted)
		assert.NotNil(t, items[0].DeletedAt)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFolderPostgres_NameTaken(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewFolderPostgres(db)
	ctx := context.Background()
	parent := "p1"

	mock.ExpectQuery("SELECT EXISTS (.+) parent_id IS NOT DISTINCT FROM").
		WithArgs("Docs", "", parent).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	taken, err := repo.NameTaken(ctx, &parent, "Docs", false, "")
	require.NoError(t, err)
	assert.True(t, taken)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("Docs", "f1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	taken, err = repo.NameTaken(ctx, nil, "Docs", true, "f1")
	require.NoError(t, err)
	assert.False(t, taken)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFolderPostgres_MarkDeleted(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewFolderPostgres(db)
	ctx := context.Background()
	at := time.Now().UTC()

	mock.ExpectExec("UPDATE folders SET is_deleted = true").
		WithArgs(at, "folder-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.MarkDeleted(ctx, "folder-1", at))

	mock.ExpectExec("UPDATE folders SET is_deleted = true").
		WithArgs(at, "gone").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err = repo.MarkDeleted(ctx, "gone", at)
	assert.True(t, errors.Is(err, repository.ErrNotFound))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFolderPostgres_ListDeleted(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewFolderPostgres(db)
	ctx := context.Background()
	now := time.Now()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM folders").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT (.+) FROM folders (.+) LIMIT").
		WithArgs("u1", 10, 0).
		WillReturnRows(sqlmock.NewRows(folderRowColumns).
			AddRow("a", "A", nil, "u1", now, now, true, now))

	res, err := repo.ListDeleted(ctx, "u1", repository.PageQuery{Limit: 10, Offset: 0})

	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	assert.Len(t, res.Items, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFolderPostgres_LockTree(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewFolderPostgres(db)
	tx := NewTxManager(db)
	ctx := context.Background()

	t.Run("exclusive inside the transaction", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(`SELECT pg_advisory_xact_lock\(\$1\)`).
			WithArgs(folderTreeLockKey).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := tx.ExecTx(ctx, func(ctx context.Context) error {
			return repo.LockTree(ctx, true)
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("shared", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(`SELECT pg_advisory_xact_lock_shared\(\$1\)`).
			WithArgs(folderTreeLockKey).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := tx.ExecTx(ctx, func(ctx context.Context) error {
			return repo.LockTree(ctx, false)
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("error rolls back", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(`SELECT pg_advisory_xact_lock\(\$1\)`).
			WithArgs(folderTreeLockKey).
			WillReturnError(errors.New("deadlock detected"))
		mock.ExpectRollback()

		err := tx.ExecTx(ctx, func(ctx context.Context) error {
			return repo.LockTree(ctx, true)
		})
		assert.ErrorContains(t, err, "lock folder tree")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
