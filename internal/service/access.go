package service

import (
	"context"
	"slices"

	"filevault/internal/errdefs"
	"filevault/internal/model"
	"filevault/internal/repository"
)

// AdminPolicy decides which roles bypass folder grants.
// It is the only place role strings are compared.
type AdminPolicy struct {
	roles []model.Role
}

// NewAdminPolicy builds a policy from the configured admin role names.
func NewAdminPolicy(roles []string) AdminPolicy {
	p := AdminPolicy{}
	for _, r := range roles {
		p.roles = append(p.roles, model.Role(r))
	}
	return p
}

// DefaultAdminPolicy treats every admin tier as administrator.
func DefaultAdminPolicy() AdminPolicy {
	return NewAdminPolicy([]string{
		string(model.RoleSuperAdmin),
		string(model.RoleBranchAdmin),
		string(model.RoleDepartmentAdmin),
	})
}

// IsAdminRole reports whether role is an administrator role.
func (p AdminPolicy) IsAdminRole(role model.Role) bool {
	return slices.Contains(p.roles, role)
}

// AccessResolver computes the effective access level of a caller on a folder.
// Levels are read from the store on every call.
type AccessResolver struct {
	folders repository.FolderRepository
	perms   repository.PermissionRepository
	policy  AdminPolicy
}

// NewAccessResolver creates a resolver.
func NewAccessResolver(folders repository.FolderRepository, perms repository.PermissionRepository, policy AdminPolicy) *AccessResolver {
	return &AccessResolver{folders: folders, perms: perms, policy: policy}
}

// Resolve returns the caller's level on folderID. Trashed folders resolve too.
func (r *AccessResolver) Resolve(ctx context.Context, who model.Identity, folderID string) (model.AccessLevel, error) {
	f, err := r.folders.FindByID(ctx, folderID)
	if err != nil {
		return model.AccessNone, lookupErr(err, "folder %s not found", folderID)
	}
	return r.ResolveFolder(ctx, who, f)
}

// ResolveFolder is Resolve for an already loaded folder.
func (r *AccessResolver) ResolveFolder(ctx context.Context, who model.Identity, f *model.Folder) (model.AccessLevel, error) {
	if r.policy.IsAdminRole(who.Role) {
		return model.AccessManage, nil
	}

	levels := []model.AccessLevel{model.AccessNone}
	if who.UserID != "" && f.CreatedBy == who.UserID {
		levels = append(levels, model.AccessManage)
	}

	grants, err := r.perms.ListForTargets(ctx, f.ID, who.Targets())
	if err != nil {
		return model.AccessNone, err
	}
	for _, g := range grants {
		levels = append(levels, g.Level)
	}
	return model.MaxAccess(levels...), nil
}

// Require loads folderID and fails with Unauthorized when the caller holds less than min.
func (r *AccessResolver) Require(ctx context.Context, who model.Identity, folderID string, min model.AccessLevel) (*model.Folder, error) {
	f, err := r.folders.FindByID(ctx, folderID)
	if err != nil {
		return nil, lookupErr(err, "folder %s not found", folderID)
	}
	if err := r.RequireFolder(ctx, who, f, min); err != nil {
		return nil, err
	}
	return f, nil
}

// RequireFolder is Require for an already loaded folder.
func (r *AccessResolver) RequireFolder(ctx context.Context, who model.Identity, f *model.Folder, min model.AccessLevel) error {
	level, err := r.ResolveFolder(ctx, who, f)
	if err != nil {
		return err
	}
	if !level.Allows(min) {
		return errdefs.Unauthorized("%s access on folder %s required, caller has %s", min, f.ID, level)
	}
	return nil
}

// CanAdminister reports whether the caller owns the item or is an administrator.
func (r *AccessResolver) CanAdminister(who model.Identity, createdBy string) bool {
	return r.policy.IsAdminRole(who.Role) || (who.UserID != "" && who.UserID == createdBy)
}

// IsAdmin reports whether the caller's role bypasses grants.
func (r *AccessResolver) IsAdmin(who model.Identity) bool {
	return r.policy.IsAdminRole(who.Role)
}
