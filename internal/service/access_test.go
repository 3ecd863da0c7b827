package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filevault/internal/errdefs"
	"filevault/internal/model"
)

func TestAdminPolicy(t *testing.T) {
	p := DefaultAdminPolicy()
	assert.True(t, p.IsAdminRole(model.RoleSuperAdmin))
	assert.True(t, p.IsAdminRole(model.RoleBranchAdmin))
	assert.True(t, p.IsAdminRole(model.RoleDepartmentAdmin))
	assert.False(t, p.IsAdminRole(model.RoleUser))

	custom := NewAdminPolicy([]string{"super_admin"})
	assert.True(t, custom.IsAdminRole(model.RoleSuperAdmin))
	assert.False(t, custom.IsAdminRole(model.RoleBranchAdmin))
}

func TestAccessResolver_Resolve(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	resolver := NewAccessResolver(fx.deps.Repos.Folders, fx.deps.Repos.Permissions, fx.deps.Policy)

	reports := fx.folder(t, alice, "Reports", nil)
	fx.grant(t, alice, reports, model.TargetBranch, "jakarta", "view")
	fx.grant(t, alice, reports, model.TargetDepartment, "legal", "edit")
	fx.grant(t, alice, reports, model.TargetUser, "bob", "view")

	tests := []struct {
		name string
		who  model.Identity
		want model.AccessLevel
	}{
		{"creator", alice, model.AccessManage},
		{"admin bypass", admin, model.AccessManage},
		{"direct user grant", bob, model.AccessView},
		{"max of branch and department", carol, model.AccessEdit},
		{"no grant", model.Identity{UserID: "dave", Role: model.RoleUser, BranchID: "surabaya"}, model.AccessNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolver.Resolve(ctx, tt.who, reports.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("unknown folder", func(t *testing.T) {
		_, err := resolver.Resolve(ctx, alice, "missing")
		assertKind(t, err, errdefs.KindNotFound)
	})

	t.Run("trashed folder still resolves", func(t *testing.T) {
		require.NoError(t, fx.lifecycle.SoftDeleteFolder(ctx, alice, reports.ID))
		got, err := resolver.Resolve(ctx, carol, reports.ID)
		require.NoError(t, err)
		assert.Equal(t, model.AccessEdit, got)
	})
}

func TestAccessResolver_Require(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	resolver := NewAccessResolver(fx.deps.Repos.Folders, fx.deps.Repos.Permissions, fx.deps.Policy)

	f := fx.folder(t, alice, "Contracts", nil)
	fx.grant(t, alice, f, model.TargetUser, "bob", "view")

	got, err := resolver.Require(ctx, bob, f.ID, model.AccessView)
	require.NoError(t, err)
	assert.Equal(t, f.ID, got.ID)

	_, err = resolver.Require(ctx, bob, f.ID, model.AccessEdit)
	assertKind(t, err, errdefs.KindUnauthorized)
	assert.NotContains(t, err.Error(), "Contracts")

	assert.True(t, resolver.CanAdminister(alice, f.CreatedBy))
	assert.True(t, resolver.CanAdminister(admin, f.CreatedBy))
	assert.False(t, resolver.CanAdminister(bob, f.CreatedBy))
	assert.False(t, resolver.CanAdminister(model.Identity{}, ""))
}

// Adding a grant to any target never lowers the level of any caller.
func TestAccessResolver_GrantsAreMonotonic(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	f := fx.folder(t, alice, "Shared", nil)

	callers := []model.Identity{alice, bob, carol, admin}
	levels := func() map[string]model.AccessLevel {
		out := map[string]model.AccessLevel{}
		for _, c := range callers {
			l, err := fx.perms.Resolve(ctx, c, f.ID)
			require.NoError(t, err)
			out[c.UserID] = l
		}
		return out
	}

	steps := []GrantInput{
		{TargetType: model.TargetBranch, TargetID: "jakarta", Level: "edit"},
		{TargetType: model.TargetUser, TargetID: "carol", Level: "view"},
		{TargetType: model.TargetDepartment, TargetID: "sales", Level: "view"},
		{TargetType: model.TargetUser, TargetID: "bob", Level: "manage"},
		{TargetType: model.TargetUser, TargetID: "alice", Level: "view"},
	}
	before := levels()
	for _, step := range steps {
		_, err := fx.perms.Grant(ctx, alice, f.ID, step)
		require.NoError(t, err)
		after := levels()
		for id, l := range before {
			assert.GreaterOrEqual(t, after[id], l, "level of %s dropped after granting %+v", id, step)
		}
		before = after
	}
	assert.Equal(t, model.AccessEdit, before["carol"])
	assert.Equal(t, model.AccessManage, before["bob"])
	assert.Equal(t, model.AccessManage, before["alice"])
}
