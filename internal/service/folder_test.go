package service

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filevault/internal/errdefs"
	"filevault/internal/model"
	"filevault/internal/repository"
)

func TestFolderService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("root folder grants manage to creator", func(t *testing.T) {
		fx := newFixture(t)
		f, err := fx.folders.Create(ctx, alice, "  Finance  ", nil)
		require.NoError(t, err)
		assert.Equal(t, "Finance", f.Name)
		assert.True(t, f.IsRoot())
		assert.Equal(t, "alice", f.CreatedBy)

		grants, err := fx.perms.List(ctx, alice, f.ID)
		require.NoError(t, err)
		require.Len(t, grants, 1)
		assert.Equal(t, model.TargetUser, grants[0].TargetType)
		assert.Equal(t, "alice", grants[0].TargetID)
		assert.Equal(t, model.AccessManage, grants[0].Level)

		logs, err := fx.activity.List(ctx, alice, ActivityQuery{})
		require.NoError(t, err)
		require.Equal(t, 1, logs.Total)
		assert.Equal(t, model.ActionFolderCreate, logs.Items[0].Action)
	})

	t.Run("child requires edit on parent", func(t *testing.T) {
		fx := newFixture(t)
		parent := fx.folder(t, alice, "Finance", nil)

		_, err := fx.folders.Create(ctx, bob, "Q1", &parent.ID)
		assertKind(t, err, errdefs.KindUnauthorized)

		fx.grant(t, alice, parent, model.TargetUser, "bob", "view")
		_, err = fx.folders.Create(ctx, bob, "Q1", &parent.ID)
		assertKind(t, err, errdefs.KindUnauthorized)

		fx.grant(t, alice, parent, model.TargetUser, "bob", "edit")
		child, err := fx.folders.Create(ctx, bob, "Q1", &parent.ID)
		require.NoError(t, err)
		assert.True(t, child.HasParent(parent.ID))
	})

	t.Run("parent must be live", func(t *testing.T) {
		fx := newFixture(t)
		parent := fx.folder(t, alice, "Finance", nil)
		require.NoError(t, fx.lifecycle.SoftDeleteFolder(ctx, alice, parent.ID))

		_, err := fx.folders.Create(ctx, alice, "Q1", &parent.ID)
		assertKind(t, err, errdefs.KindNotFound)

		missing := "nope"
		_, err = fx.folders.Create(ctx, alice, "Q1", &missing)
		assertKind(t, err, errdefs.KindNotFound)
	})

	t.Run("invalid names", func(t *testing.T) {
		fx := newFixture(t)
		for _, name := range []string{"", "   ", "a/b", `a\b`, "a:b", "a*b", "a?b", `a"b`, "a<b", "a>b", "a|b", strings.Repeat("x", 256)} {
			_, err := fx.folders.Create(ctx, alice, name, nil)
			assertKind(t, err, errdefs.KindInvalidInput)
		}
		_, err := fx.folders.Create(ctx, alice, strings.Repeat("é", 255), nil)
		assert.NoError(t, err)
	})

	t.Run("sibling scoped names", func(t *testing.T) {
		fx := newFixture(t)
		a := fx.folder(t, alice, "A", nil)
		b := fx.folder(t, alice, "B", nil)
		fx.folder(t, alice, "Reports", a)

		_, err := fx.folders.Create(ctx, alice, "Reports", &a.ID)
		assertKind(t, err, errdefs.KindConflict)

		_, err = fx.folders.Create(ctx, alice, "Reports", &b.ID)
		assert.NoError(t, err)

		_, err = fx.folders.Create(ctx, bob, "A", nil)
		assertKind(t, err, errdefs.KindConflict)
	})

	t.Run("global scoped names", func(t *testing.T) {
		fx := newFixture(t, func(d *Deps) { d.Options.NameScope = NameScopeGlobal })
		a := fx.folder(t, alice, "A", nil)
		b := fx.folder(t, alice, "B", nil)
		fx.folder(t, alice, "Reports", a)

		_, err := fx.folders.Create(ctx, alice, "Reports", &b.ID)
		assertKind(t, err, errdefs.KindConflict)
	})

	t.Run("trashed names are free", func(t *testing.T) {
		fx := newFixture(t)
		a := fx.folder(t, alice, "A", nil)
		require.NoError(t, fx.lifecycle.SoftDeleteFolder(ctx, alice, a.ID))
		_, err := fx.folders.Create(ctx, alice, "A", nil)
		assert.NoError(t, err)
	})
}

func TestFolderService_GetAndList(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	a := fx.folder(t, alice, "A", nil)
	b := fx.folder(t, alice, "B", a)
	gone := fx.folder(t, alice, "Gone", a)
	fx.upload(t, alice, a, "notes.txt", "hello")
	require.NoError(t, fx.lifecycle.SoftDeleteFolder(ctx, alice, gone.ID))
	fx.folder(t, bob, "Bobs", nil)

	contents, err := fx.folders.ListContents(ctx, alice, a.ID)
	require.NoError(t, err)
	require.Len(t, contents.Folders, 1)
	assert.Equal(t, b.ID, contents.Folders[0].ID)
	require.Len(t, contents.Files, 1)
	assert.Equal(t, "notes.txt", contents.Files[0].Name)

	_, err = fx.folders.Get(ctx, bob, a.ID)
	assertKind(t, err, errdefs.KindUnauthorized)

	_, err = fx.folders.Get(ctx, alice, gone.ID)
	assertKind(t, err, errdefs.KindNotFound)

	roots, err := fx.folders.ListRoots(ctx, alice)
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, a.ID, roots[0].ID)

	fx.grant(t, alice, a, model.TargetBranch, "bandung", "view")
	roots, err = fx.folders.ListRoots(ctx, bob)
	require.NoError(t, err)
	assert.Len(t, roots, 2)

	roots, err = fx.folders.ListRoots(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, roots, 2)
}

func TestFolderService_Rename(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	a := fx.folder(t, alice, "A", nil)
	fx.folder(t, alice, "B", nil)

	got, err := fx.folders.Rename(ctx, alice, a.ID, "Archive")
	require.NoError(t, err)
	assert.Equal(t, "Archive", got.Name)
	assert.Equal(t, "Archive", fx.getFolder(t, a.ID).Name)

	_, err = fx.folders.Rename(ctx, alice, a.ID, "B")
	assertKind(t, err, errdefs.KindConflict)

	_, err = fx.folders.Rename(ctx, alice, a.ID, "Archive")
	assert.NoError(t, err, "renaming to its own name is not a conflict")

	fx.grant(t, alice, a, model.TargetUser, "bob", "view")
	_, err = fx.folders.Rename(ctx, bob, a.ID, "Mine")
	assertKind(t, err, errdefs.KindUnauthorized)

	fx.grant(t, alice, a, model.TargetUser, "bob", "edit")
	got, err = fx.folders.Rename(ctx, bob, a.ID, "Mine")
	require.NoError(t, err)
	assert.Equal(t, "Mine", got.Name)
}

func TestFolderService_Move(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*fixture, *model.Folder, *model.Folder, *model.Folder, *model.Folder) {
		fx := newFixture(t)
		a := fx.folder(t, alice, "A", nil)
		b := fx.folder(t, alice, "B", a)
		c := fx.folder(t, alice, "C", b)
		d := fx.folder(t, alice, "D", nil)
		return fx, a, b, c, d
	}

	t.Run("rejected moves", func(t *testing.T) {
		fx, a, b, c, _ := setup(t)
		tests := []struct {
			name   string
			id     string
			parent string
			kind   errdefs.Kind
		}{
			{"into itself", a.ID, a.ID, errdefs.KindConflict},
			{"into child", a.ID, b.ID, errdefs.KindConflict},
			{"into grandchild", a.ID, c.ID, errdefs.KindConflict},
			{"into current parent", c.ID, b.ID, errdefs.KindConflict},
			{"root to root", a.ID, "", errdefs.KindConflict},
			{"unknown destination", b.ID, "missing", errdefs.KindNotFound},
			{"unknown folder", "missing", a.ID, errdefs.KindNotFound},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := fx.folders.Move(ctx, alice, tt.id, tt.parent)
				assertKind(t, err, tt.kind)
			})
		}
		assert.True(t, fx.getFolder(t, b.ID).HasParent(a.ID))
		assert.True(t, fx.getFolder(t, c.ID).HasParent(b.ID))
	})

	t.Run("move under another root and back to root", func(t *testing.T) {
		fx, a, b, _, d := setup(t)
		moved, err := fx.folders.Move(ctx, alice, b.ID, d.ID)
		require.NoError(t, err)
		assert.True(t, moved.HasParent(d.ID))

		moved, err = fx.folders.Move(ctx, alice, b.ID, "")
		require.NoError(t, err)
		assert.True(t, moved.IsRoot())
		assert.True(t, fx.getFolder(t, b.ID).IsRoot())

		_, err = fx.folders.Move(ctx, alice, b.ID, a.ID)
		assert.NoError(t, err)
	})

	t.Run("requires manage on folder and edit on destination", func(t *testing.T) {
		fx, a, b, _, d := setup(t)
		fx.grant(t, alice, a, model.TargetUser, "bob", "manage")
		fx.grant(t, alice, b, model.TargetUser, "bob", "manage")

		_, err := fx.folders.Move(ctx, bob, b.ID, d.ID)
		assertKind(t, err, errdefs.KindUnauthorized)

		fx.grant(t, alice, d, model.TargetUser, "bob", "view")
		_, err = fx.folders.Move(ctx, bob, b.ID, d.ID)
		assertKind(t, err, errdefs.KindUnauthorized)

		fx.grant(t, alice, d, model.TargetUser, "bob", "edit")
		_, err = fx.folders.Move(ctx, bob, b.ID, d.ID)
		assert.NoError(t, err)

		_, err = fx.folders.Move(ctx, bob, b.ID, "")
		assertKind(t, err, errdefs.KindUnauthorized)
	})

	t.Run("sibling name conflict at destination", func(t *testing.T) {
		fx, _, b, _, d := setup(t)
		fx.folder(t, alice, "B", d)
		_, err := fx.folders.Move(ctx, alice, b.ID, d.ID)
		assertKind(t, err, errdefs.KindConflict)
	})

	t.Run("trashed destination", func(t *testing.T) {
		fx, _, b, _, d := setup(t)
		require.NoError(t, fx.lifecycle.SoftDeleteFolder(ctx, alice, d.ID))
		_, err := fx.folders.Move(ctx, alice, b.ID, d.ID)
		assertKind(t, err, errdefs.KindNotFound)
	})

	t.Run("ancestry deeper than bound", func(t *testing.T) {
		fx := newFixture(t, func(d *Deps) { d.Options.MaxTreeDepth = 3 })
		top := fx.folder(t, alice, "L0", nil)
		cur := top
		for _, name := range []string{"L1", "L2", "L3", "L4"} {
			cur = fx.folder(t, alice, name, cur)
		}
		other := fx.folder(t, alice, "Other", nil)

		_, err := fx.folders.Move(ctx, alice, other.ID, cur.ID)
		assertKind(t, err, errdefs.KindIntegrity)
	})
}

// No sequence of moves can make a folder its own ancestor.
func TestFolderService_MovesKeepTreeAcyclic(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	var all []*model.Folder
	root := fx.folder(t, alice, "root", nil)
	all = append(all, root)
	for i, name := range []string{"a", "b", "c", "d", "e", "f"} {
		all = append(all, fx.folder(t, alice, name, all[i/2]))
	}

	for round := 0; round < 3; round++ {
		for _, src := range all {
			for _, dst := range all {
				_, _ = fx.folders.Move(ctx, alice, src.ID, dst.ID)
			}
		}
	}

	for _, f := range all {
		seen := map[string]bool{}
		cur := fx.getFolder(t, f.ID)
		for cur.ParentID != nil {
			require.False(t, seen[cur.ID], "cycle through %s", cur.ID)
			seen[cur.ID] = true
			cur = fx.getFolder(t, *cur.ParentID)
		}
	}
}

// folderLockSpy records which folder rows are read plain or locked.
type folderLockSpy struct {
	repository.FolderRepository

	mu    sync.Mutex
	calls []string
}

func (s *folderLockSpy) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

func (s *folderLockSpy) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

func (s *folderLockSpy) log() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *folderLockSpy) FindByID(ctx context.Context, id string) (*model.Folder, error) {
	s.record("read " + id)
	return s.FolderRepository.FindByID(ctx, id)
}

func (s *folderLockSpy) FindByIDForUpdate(ctx context.Context, id string) (*model.Folder, error) {
	s.record("lock " + id)
	return s.FolderRepository.FindByIDForUpdate(ctx, id)
}

func (s *folderLockSpy) LockTree(ctx context.Context, exclusive bool) error {
	if exclusive {
		s.record("tree exclusive")
	} else {
		s.record("tree shared")
	}
	return s.FolderRepository.LockTree(ctx, exclusive)
}

func TestFolderService_LocksTreeAndAncestors(t *testing.T) {
	ctx := context.Background()
	spy := &folderLockSpy{}
	fx := newFixture(t, func(d *Deps) {
		spy.FolderRepository = d.Repos.Folders
		d.Repos.Folders = spy
	})

	a := fx.folder(t, alice, "A", nil)
	b := fx.folder(t, alice, "B", nil)
	b1 := fx.folder(t, alice, "B1", b)

	t.Run("move locks the tree and every ancestor of the destination", func(t *testing.T) {
		spy.reset()
		_, err := fx.folders.Move(ctx, alice, a.ID, b1.ID)
		require.NoError(t, err)

		calls := spy.log()
		require.NotEmpty(t, calls)
		assert.Equal(t, "tree exclusive", calls[0])
		assert.Subset(t, calls, []string{"lock " + a.ID, "lock " + b1.ID, "lock " + b.ID})
		assert.NotContains(t, calls, "read "+b.ID)
		assert.NotContains(t, calls, "read "+b1.ID)
	})

	t.Run("create locks its parent under the shared tree lock", func(t *testing.T) {
		spy.reset()
		fx.folder(t, alice, "C", b1)

		calls := spy.log()
		require.NotEmpty(t, calls)
		assert.Equal(t, "tree shared", calls[0])
		assert.Contains(t, calls, "lock "+b1.ID)
		assert.NotContains(t, calls, "read "+b1.ID)
	})

	t.Run("root create takes no tree lock", func(t *testing.T) {
		spy.reset()
		fx.folder(t, alice, "D", nil)
		assert.NotContains(t, spy.log(), "tree shared")
	})

	t.Run("cascades take the tree lock exclusively", func(t *testing.T) {
		spy.reset()
		require.NoError(t, fx.lifecycle.SoftDeleteFolder(ctx, alice, b.ID))
		calls := spy.log()
		require.NotEmpty(t, calls)
		assert.Equal(t, "tree exclusive", calls[0])

		spy.reset()
		_, err := fx.lifecycle.RestoreFolder(ctx, alice, b.ID)
		require.NoError(t, err)
		calls = spy.log()
		require.NotEmpty(t, calls)
		assert.Equal(t, "tree exclusive", calls[0])
	})

	t.Run("uploads share the tree lock and lock the folder", func(t *testing.T) {
		spy.reset()
		fx.upload(t, alice, b1, "notes.txt", "hello")
		assert.Contains(t, spy.log(), "tree shared")
		assert.Contains(t, spy.log(), "lock "+b1.ID)
	})
}
