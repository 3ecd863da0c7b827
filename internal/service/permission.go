package service

import (
	"context"
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap"

	"filevault/internal/errdefs"
	"filevault/internal/model"
	"filevault/internal/repository"
)

// GrantInput addresses a grant on a folder.
type GrantInput struct {
	TargetType model.TargetType
	TargetID   string
	Level      string
}

func (in GrantInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.TargetType, validation.Required, validation.By(validTargetType)),
		validation.Field(&in.TargetID, validation.Required, validation.RuneLength(1, 255)),
		validation.Field(&in.Level, validation.Required, validation.In("view", "edit", "manage").Error("must be view, edit or manage")),
	)
}

func validTargetType(v any) error {
	if t, _ := v.(model.TargetType); !t.Valid() {
		return errors.New("must be user, branch or department")
	}
	return nil
}

// PermissionService manages folder grants.
type PermissionService interface {
	// Grant creates or replaces the grant of a target on a folder. Requires manage.
	Grant(ctx context.Context, who model.Identity, folderID string, in GrantInput) (*model.Permission, error)

	// Revoke removes a grant. Requires manage.
	Revoke(ctx context.Context, who model.Identity, folderID string, targetType model.TargetType, targetID string) error

	List(ctx context.Context, who model.Identity, folderID string) ([]model.Permission, error)

	// Resolve returns the caller's effective level on a folder.
	Resolve(ctx context.Context, who model.Identity, folderID string) (model.AccessLevel, error)
}

type permissionService struct {
	core
}

// NewPermissionService constructs a PermissionService.
func NewPermissionService(d Deps) PermissionService {
	return &permissionService{core: newCore(d)}
}

func (s *permissionService) Grant(ctx context.Context, who model.Identity, folderID string, in GrantInput) (*model.Permission, error) {
	if err := in.Validate(); err != nil {
		return nil, errdefs.InvalidInput("%s", err.Error())
	}
	level, err := model.ParseAccessLevel(in.Level)
	if err != nil {
		return nil, errdefs.InvalidInput("%s", err.Error())
	}

	f, err := s.liveFolder(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if err := s.access.RequireFolder(ctx, who, f, model.AccessManage); err != nil {
		return nil, err
	}

	now := s.now()
	stored, err := s.repos.Permissions.Upsert(ctx, &model.Permission{
		ID:         newID(),
		FolderID:   f.ID,
		TargetType: in.TargetType,
		TargetID:   in.TargetID,
		Level:      level,
		GrantedBy:  who.UserID,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return nil, wrapf(err, "save grant")
	}

	s.log.Info("permission granted",
		zap.String("folder_id", f.ID),
		zap.String("target_type", string(in.TargetType)),
		zap.String("target_id", in.TargetID),
		zap.Stringer("level", level),
		zap.String("user_id", who.UserID),
	)
	s.audit.Record(ctx, ActivityEntry{
		UserID:       who.UserID,
		Action:       model.ActionPermissionGrant,
		ResourceType: model.ResourceFolder,
		ResourceID:   f.ID,
		ResourceName: f.Name,
		Details: map[string]any{
			"target_type": in.TargetType,
			"target_id":   in.TargetID,
			"level":       level.String(),
		},
	})
	return stored, nil
}

func (s *permissionService) Revoke(ctx context.Context, who model.Identity, folderID string, targetType model.TargetType, targetID string) error {
	if !targetType.Valid() {
		return errdefs.InvalidInput("target_type: must be user, branch or department")
	}
	f, err := s.liveFolder(ctx, folderID)
	if err != nil {
		return err
	}
	if err := s.access.RequireFolder(ctx, who, f, model.AccessManage); err != nil {
		return err
	}

	err = s.repos.Permissions.Delete(ctx, f.ID, targetType, targetID)
	if errors.Is(err, repository.ErrNotFound) {
		return errdefs.NotFound("no %s grant for %s on folder %s", targetType, targetID, f.ID)
	}
	if err != nil {
		return wrapf(err, "delete grant")
	}

	s.audit.Record(ctx, ActivityEntry{
		UserID:       who.UserID,
		Action:       model.ActionPermissionRevoke,
		ResourceType: model.ResourceFolder,
		ResourceID:   f.ID,
		ResourceName: f.Name,
		Details:      map[string]any{"target_type": targetType, "target_id": targetID},
	})
	return nil
}

func (s *permissionService) List(ctx context.Context, who model.Identity, folderID string) ([]model.Permission, error) {
	f, err := s.liveFolder(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if err := s.access.RequireFolder(ctx, who, f, model.AccessView); err != nil {
		return nil, err
	}
	grants, err := s.repos.Permissions.ListByFolder(ctx, f.ID)
	if err != nil {
		return nil, wrapf(err, "list grants")
	}
	return grants, nil
}

func (s *permissionService) Resolve(ctx context.Context, who model.Identity, folderID string) (model.AccessLevel, error) {
	return s.access.Resolve(ctx, who, folderID)
}
