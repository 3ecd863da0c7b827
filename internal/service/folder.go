package service

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"filevault/internal/errdefs"
	"filevault/internal/model"
)

// FolderContents is a live folder with its live children.
type FolderContents struct {
	Folder  *model.Folder  `json:"folder"`
	Folders []model.Folder `json:"folders"`
	Files   []model.File   `json:"files"`
}

// FolderService manages the folder tree.
type FolderService interface {
	// Create makes a folder under parentID, or a root folder when parentID is nil,
	// and grants manage to the creator.
	Create(ctx context.Context, who model.Identity, name string, parentID *string) (*model.Folder, error)

	Get(ctx context.Context, who model.Identity, id string) (*model.Folder, error)
	ListContents(ctx context.Context, who model.Identity, id string) (*FolderContents, error)

	// ListRoots returns the live root folders the caller can view.
	ListRoots(ctx context.Context, who model.Identity) ([]model.Folder, error)

	Rename(ctx context.Context, who model.Identity, id, name string) (*model.Folder, error)

	// Move re-parents a folder. An empty newParentID moves it to the root.
	Move(ctx context.Context, who model.Identity, id, newParentID string) (*model.Folder, error)
}

type folderService struct {
	core
}

// NewFolderService constructs a FolderService.
func NewFolderService(d Deps) FolderService {
	return &folderService{core: newCore(d)}
}

// liveFolder loads a folder and treats a trashed one as missing.
func (s *core) liveFolder(ctx context.Context, id string) (*model.Folder, error) {
	f, err := s.repos.Folders.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "folder %s not found", id)
	}
	if f.IsDeleted {
		return nil, errdefs.NotFound("folder %s not found", id)
	}
	return f, nil
}

func (s *core) lockLiveFolder(ctx context.Context, id string) (*model.Folder, error) {
	f, err := s.repos.Folders.FindByIDForUpdate(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "folder %s not found", id)
	}
	if f.IsDeleted {
		return nil, errdefs.NotFound("folder %s not found", id)
	}
	return f, nil
}

// lockTree takes the folder-tree lock for the surrounding transaction.
func (s *core) lockTree(ctx context.Context, exclusive bool) error {
	return wrapf(s.repos.Folders.LockTree(ctx, exclusive), "lock folder tree")
}

// ensureNameFree fails with Conflict when another live folder in scope already uses name.
func (s *core) ensureNameFree(ctx context.Context, parentID *string, name, excludeID string) error {
	taken, err := s.repos.Folders.NameTaken(ctx, parentID, name, s.opts.NameScope == NameScopeGlobal, excludeID)
	if err != nil {
		return wrapf(err, "check folder name")
	}
	if taken {
		return errdefs.Conflict("a folder named %q already exists", name)
	}
	return nil
}

func (s *folderService) Create(ctx context.Context, who model.Identity, name string, parentID *string) (*model.Folder, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	if parentID != nil && *parentID == "" {
		parentID = nil
	}

	now := s.now()
	folder := &model.Folder{
		ID:        newID(),
		Name:      name,
		ParentID:  parentID,
		CreatedBy: who.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.repos.Tx.ExecTx(ctx, func(ctx context.Context) error {
		if parentID != nil {
			if err := s.lockTree(ctx, false); err != nil {
				return err
			}
			parent, err := s.lockLiveFolder(ctx, *parentID)
			if err != nil {
				return err
			}
			if err := s.access.RequireFolder(ctx, who, parent, model.AccessEdit); err != nil {
				return err
			}
		}
		if err := s.ensureNameFree(ctx, parentID, name, ""); err != nil {
			return err
		}
		if err := s.repos.Folders.Create(ctx, folder); err != nil {
			return wrapf(err, "create folder")
		}
		_, err := s.repos.Permissions.Upsert(ctx, &model.Permission{
			ID:         newID(),
			FolderID:   folder.ID,
			TargetType: model.TargetUser,
			TargetID:   who.UserID,
			Level:      model.AccessManage,
			GrantedBy:  who.UserID,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
		return wrapf(err, "grant creator access")
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("folder created",
		zap.String("folder_id", folder.ID),
		zap.String("name", folder.Name),
		zap.Stringp("parent_id", parentID),
		zap.String("user_id", who.UserID),
	)
	s.audit.Record(ctx, ActivityEntry{
		UserID:       who.UserID,
		Action:       model.ActionFolderCreate,
		ResourceType: model.ResourceFolder,
		ResourceID:   folder.ID,
		ResourceName: folder.Name,
		Details:      map[string]any{"parent_id": parentID},
	})
	return folder, nil
}

func (s *folderService) Get(ctx context.Context, who model.Identity, id string) (*model.Folder, error) {
	f, err := s.liveFolder(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.access.RequireFolder(ctx, who, f, model.AccessView); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *folderService) ListContents(ctx context.Context, who model.Identity, id string) (*FolderContents, error) {
	f, err := s.Get(ctx, who, id)
	if err != nil {
		return nil, err
	}
	folders, err := s.repos.Folders.ListChildren(ctx, &f.ID, false)
	if err != nil {
		return nil, wrapf(err, "list child folders")
	}
	files, err := s.repos.Files.ListByFolder(ctx, f.ID, false)
	if err != nil {
		return nil, wrapf(err, "list files")
	}
	return &FolderContents{Folder: f, Folders: folders, Files: files}, nil
}

func (s *folderService) ListRoots(ctx context.Context, who model.Identity) ([]model.Folder, error) {
	roots, err := s.repos.Folders.ListChildren(ctx, nil, false)
	if err != nil {
		return nil, wrapf(err, "list root folders")
	}
	if s.access.IsAdmin(who) {
		return roots, nil
	}

	visible := make([]model.Folder, 0, len(roots))
	for i := range roots {
		level, err := s.access.ResolveFolder(ctx, who, &roots[i])
		if err != nil {
			return nil, err
		}
		if level.Allows(model.AccessView) {
			visible = append(visible, roots[i])
		}
	}
	return visible, nil
}

func (s *folderService) Rename(ctx context.Context, who model.Identity, id, name string) (*model.Folder, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}

	var (
		folder  *model.Folder
		oldName string
	)
	err = s.repos.Tx.ExecTx(ctx, func(ctx context.Context) error {
		f, err := s.lockLiveFolder(ctx, id)
		if err != nil {
			return err
		}
		if err := s.access.RequireFolder(ctx, who, f, model.AccessEdit); err != nil {
			return err
		}
		if err := s.ensureNameFree(ctx, f.ParentID, name, f.ID); err != nil {
			return err
		}
		now := s.now()
		if err := s.repos.Folders.Rename(ctx, f.ID, name, now); err != nil {
			return wrapf(err, "rename folder")
		}
		oldName = f.Name
		f.Name, f.UpdatedAt = name, now
		folder = f
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, ActivityEntry{
		UserID:       who.UserID,
		Action:       model.ActionFolderRename,
		ResourceType: model.ResourceFolder,
		ResourceID:   folder.ID,
		ResourceName: folder.Name,
		Details:      map[string]any{"old_name": oldName},
	})
	return folder, nil
}

func (s *folderService) Move(ctx context.Context, who model.Identity, id, newParentID string) (*model.Folder, error) {
	if id == newParentID {
		return nil, errdefs.Conflict("cannot move a folder into itself")
	}

	var (
		folder    *model.Folder
		oldParent *string
	)
	err := s.repos.Tx.ExecTx(ctx, func(ctx context.Context) error {
		if err := s.lockTree(ctx, true); err != nil {
			return err
		}
		// Lock both rows in id order so concurrent moves cannot deadlock.
		ids := []string{id}
		if newParentID != "" {
			ids = append(ids, newParentID)
		}
		slices.Sort(ids)
		locked := make(map[string]*model.Folder, len(ids))
		for _, fid := range ids {
			f, err := s.lockLiveFolder(ctx, fid)
			if err != nil {
				return err
			}
			locked[fid] = f
		}

		f := locked[id]
		if err := s.access.RequireFolder(ctx, who, f, model.AccessManage); err != nil {
			return err
		}

		var target *string
		if newParentID == "" {
			if f.IsRoot() {
				return errdefs.Conflict("folder is already at the root")
			}
			if !s.access.CanAdminister(who, f.CreatedBy) {
				return errdefs.Unauthorized("only the owner or an administrator can move a folder to the root")
			}
		} else {
			dest := locked[newParentID]
			if err := s.access.RequireFolder(ctx, who, dest, model.AccessEdit); err != nil {
				return err
			}
			if f.HasParent(dest.ID) {
				return errdefs.Conflict("folder is already in the destination")
			}
			if err := s.ensureNotDescendant(ctx, dest, f.ID); err != nil {
				return err
			}
			target = &dest.ID
		}

		if err := s.ensureNameFree(ctx, target, f.Name, f.ID); err != nil {
			return err
		}

		now := s.now()
		if err := s.repos.Folders.SetParent(ctx, f.ID, target, now); err != nil {
			return wrapf(err, "move folder")
		}
		oldParent = f.ParentID
		f.ParentID, f.UpdatedAt = target, now
		folder = f
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, ActivityEntry{
		UserID:       who.UserID,
		Action:       model.ActionFolderMove,
		ResourceType: model.ResourceFolder,
		ResourceID:   folder.ID,
		ResourceName: folder.Name,
		Details:      map[string]any{"from_parent_id": oldParent, "to_parent_id": folder.ParentID},
	})
	return folder, nil
}

// ensureNotDescendant walks the ancestors of dest, locking each row, and fails with
// Conflict when id is one of them. The walk is bounded by MaxTreeDepth; exceeding it
// or meeting a folder twice is an integrity failure.
func (s *core) ensureNotDescendant(ctx context.Context, dest *model.Folder, id string) error {
	seen := map[string]bool{}
	cur := dest
	for depth := 0; ; depth++ {
		if cur.ID == id {
			return errdefs.Conflict("cannot move a folder into its own descendant")
		}
		if seen[cur.ID] {
			return errdefs.Integrity("cycle detected at folder %s", cur.ID)
		}
		seen[cur.ID] = true
		if cur.ParentID == nil {
			return nil
		}
		if depth >= s.opts.MaxTreeDepth {
			return errdefs.Integrity("folder ancestry deeper than %d levels", s.opts.MaxTreeDepth)
		}
		parent, err := s.repos.Folders.FindByIDForUpdate(ctx, *cur.ParentID)
		if err != nil {
			return wrapf(lookupErr(err, "folder %s has a missing parent", cur.ID), "walk ancestors")
		}
		cur = parent
	}
}
