package service

import (
	"context"
	"errors"
	"slices"
	"time"

	"go.uber.org/zap"

	"filevault/internal/errdefs"
	"filevault/internal/model"
	"filevault/internal/repository"
)

// PurgeReport summarises one PurgeExpired sweep.
type PurgeReport struct {
	Folders      int `json:"folders"`
	Files        int `json:"files"`
	Blobs        int `json:"blobs"`
	BlobFailures int `json:"blob_failures"`
}

// LifecycleService moves items between live, trash and purged.
type LifecycleService interface {
	// SoftDeleteFolder trashes a folder and every descendant with one deletion time.
	SoftDeleteFolder(ctx context.Context, who model.Identity, id string) error
	SoftDeleteFile(ctx context.Context, who model.Identity, id string) error

	// RestoreFolder brings a trashed folder and its subtree back. The parent must be live.
	RestoreFolder(ctx context.Context, who model.Identity, id string) (*model.Folder, error)
	RestoreFile(ctx context.Context, who model.Identity, id string) (*model.File, error)

	// PermanentlyDelete purges a trashed item and its subtree. Without force it refuses
	// while a usable share link still targets anything being removed.
	PermanentlyDelete(ctx context.Context, who model.Identity, rt model.ResourceType, id string, force bool) error

	// PurgeExpired permanently removes items trashed longer than retention. An expired
	// folder takes its whole subtree with it, expired or not.
	PurgeExpired(ctx context.Context, retention time.Duration) (*PurgeReport, error)

	// RunPurgeScheduler calls PurgeExpired every interval until ctx is done.
	RunPurgeScheduler(ctx context.Context, interval, retention time.Duration)

	// ListTrash lists trashed items newest first. Administrators see every item,
	// other callers the items they created.
	ListTrash(ctx context.Context, who model.Identity, page, perPage int) (*Page[model.TrashItem], error)
}

type lifecycleService struct {
	core
}

// NewLifecycleService constructs a LifecycleService.
func NewLifecycleService(d Deps) LifecycleService {
	return &lifecycleService{core: newCore(d)}
}

// subtree is a folder with all its descendants, parents before children.
type subtree struct {
	folders []model.Folder
	files   []model.File
}

// collectSubtree walks the tree below root breadth first, trashed items included.
func (s *core) collectSubtree(ctx context.Context, root *model.Folder) (*subtree, error) {
	type node struct {
		folder model.Folder
		depth  int
	}

	tree := &subtree{}
	seen := map[string]bool{}
	queue := []node{{folder: *root}}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n := queue[0]
		queue = queue[1:]

		if seen[n.folder.ID] {
			return nil, errdefs.Integrity("cycle detected at folder %s", n.folder.ID)
		}
		if n.depth > s.opts.MaxTreeDepth {
			return nil, errdefs.Integrity("folder tree deeper than %d levels below %s", s.opts.MaxTreeDepth, root.ID)
		}
		seen[n.folder.ID] = true
		tree.folders = append(tree.folders, n.folder)

		files, err := s.repos.Files.ListByFolder(ctx, n.folder.ID, true)
		if err != nil {
			return nil, wrapf(err, "list files of %s", n.folder.ID)
		}
		tree.files = append(tree.files, files...)

		children, err := s.repos.Folders.ListChildren(ctx, &n.folder.ID, true)
		if err != nil {
			return nil, wrapf(err, "list children of %s", n.folder.ID)
		}
		for _, c := range children {
			queue = append(queue, node{folder: c, depth: n.depth + 1})
		}
	}
	return tree, nil
}

func (s *lifecycleService) SoftDeleteFolder(ctx context.Context, who model.Identity, id string) (err error) {
	ctx, span := startSpan(ctx, "LifecycleService.SoftDeleteFolder")
	defer func() { finishSpan(span, err) }()

	var (
		root  *model.Folder
		count int
	)
	err = s.repos.Tx.ExecTx(ctx, func(ctx context.Context) error {
		if err := s.lockTree(ctx, true); err != nil {
			return err
		}
		f, err := s.lockLiveFolder(ctx, id)
		if err != nil {
			return err
		}
		if err := s.access.RequireFolder(ctx, who, f, model.AccessManage); err != nil {
			return err
		}
		tree, err := s.collectSubtree(ctx, f)
		if err != nil {
			return err
		}

		at := s.now()
		for _, d := range tree.folders {
			if err := s.repos.Folders.MarkDeleted(ctx, d.ID, at); err != nil {
				return wrapf(err, "trash folder %s", d.ID)
			}
		}
		for _, d := range tree.files {
			if err := s.repos.Files.MarkDeleted(ctx, d.ID, at); err != nil {
				return wrapf(err, "trash file %s", d.ID)
			}
		}
		root, count = f, len(tree.folders)+len(tree.files)
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("folder trashed",
		zap.String("folder_id", root.ID),
		zap.Int("items", count),
		zap.String("user_id", who.UserID),
	)
	s.audit.Record(ctx, ActivityEntry{
		UserID:       who.UserID,
		Action:       model.ActionFolderDelete,
		ResourceType: model.ResourceFolder,
		ResourceID:   root.ID,
		ResourceName: root.Name,
		Details:      map[string]any{"items": count},
	})
	return nil
}

func (s *lifecycleService) SoftDeleteFile(ctx context.Context, who model.Identity, id string) error {
	var file *model.File
	err := s.repos.Tx.ExecTx(ctx, func(ctx context.Context) error {
		f, err := s.repos.Files.FindByIDForUpdate(ctx, id)
		if err != nil {
			return lookupErr(err, "file %s not found", id)
		}
		if f.IsDeleted {
			return errdefs.NotFound("file %s not found", id)
		}
		if err := s.requireFile(ctx, who, f, model.AccessEdit); err != nil {
			return err
		}
		if err := s.repos.Files.MarkDeleted(ctx, f.ID, s.now()); err != nil {
			return wrapf(err, "trash file")
		}
		file = f
		return nil
	})
	if err != nil {
		return err
	}

	s.audit.Record(ctx, ActivityEntry{
		UserID:       who.UserID,
		Action:       model.ActionFileDelete,
		ResourceType: model.ResourceFile,
		ResourceID:   file.ID,
		ResourceName: file.Name,
	})
	return nil
}

// trashedFolder loads a folder the caller may restore.
func (s *core) trashedFolder(ctx context.Context, who model.Identity, id string) (*model.Folder, error) {
	f, err := s.repos.Folders.FindByIDForUpdate(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "folder %s not found", id)
	}
	if !f.IsDeleted {
		return nil, errdefs.NotFound("folder %s is not in the trash", id)
	}
	if !s.access.CanAdminister(who, f.CreatedBy) {
		return nil, errdefs.Unauthorized("only the owner or an administrator can restore folder %s", id)
	}
	return f, nil
}

func (s *core) trashedFile(ctx context.Context, who model.Identity, id string) (*model.File, error) {
	f, err := s.repos.Files.FindByIDForUpdate(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "file %s not found", id)
	}
	if !f.IsDeleted {
		return nil, errdefs.NotFound("file %s is not in the trash", id)
	}
	if !s.access.CanAdminister(who, f.CreatedBy) {
		return nil, errdefs.Unauthorized("only the owner or an administrator can restore file %s", id)
	}
	return f, nil
}

func (s *lifecycleService) RestoreFolder(ctx context.Context, who model.Identity, id string) (folder *model.Folder, err error) {
	ctx, span := startSpan(ctx, "LifecycleService.RestoreFolder")
	defer func() { finishSpan(span, err) }()

	var count int
	err = s.repos.Tx.ExecTx(ctx, func(ctx context.Context) error {
		if err := s.lockTree(ctx, true); err != nil {
			return err
		}
		f, err := s.trashedFolder(ctx, who, id)
		if err != nil {
			return err
		}
		if f.ParentID != nil {
			parent, err := s.repos.Folders.FindByID(ctx, *f.ParentID)
			if err != nil {
				return wrapf(lookupErr(err, "parent folder %s not found", *f.ParentID), "restore folder")
			}
			if parent.IsDeleted {
				return errdefs.PreconditionFailed("parent folder %s is in the trash, restore it first", parent.ID)
			}
		}
		if err := s.ensureNameFree(ctx, f.ParentID, f.Name, f.ID); err != nil {
			return err
		}

		tree, err := s.collectSubtree(ctx, f)
		if err != nil {
			return err
		}
		at := s.now()
		for _, d := range tree.folders {
			if !d.IsDeleted {
				continue
			}
			if err := s.repos.Folders.MarkRestored(ctx, d.ID, at); err != nil {
				return wrapf(err, "restore folder %s", d.ID)
			}
			count++
		}
		for _, d := range tree.files {
			if !d.IsDeleted {
				continue
			}
			if err := s.repos.Files.MarkRestored(ctx, d.ID, at); err != nil {
				return wrapf(err, "restore file %s", d.ID)
			}
			count++
		}
		f.IsDeleted, f.DeletedAt, f.UpdatedAt = false, nil, at
		folder = f
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, ActivityEntry{
		UserID:       who.UserID,
		Action:       model.ActionFolderRestore,
		ResourceType: model.ResourceFolder,
		ResourceID:   folder.ID,
		ResourceName: folder.Name,
		Details:      map[string]any{"items": count},
	})
	return folder, nil
}

func (s *lifecycleService) RestoreFile(ctx context.Context, who model.Identity, id string) (*model.File, error) {
	var file *model.File
	err := s.repos.Tx.ExecTx(ctx, func(ctx context.Context) error {
		if err := s.lockTree(ctx, false); err != nil {
			return err
		}
		f, err := s.trashedFile(ctx, who, id)
		if err != nil {
			return err
		}
		folder, err := s.repos.Folders.FindByIDForUpdate(ctx, f.FolderID)
		if err != nil {
			return wrapf(lookupErr(err, "folder %s not found", f.FolderID), "restore file")
		}
		if folder.IsDeleted {
			return errdefs.PreconditionFailed("folder %s is in the trash, restore it first", folder.ID)
		}
		at := s.now()
		if err := s.repos.Files.MarkRestored(ctx, f.ID, at); err != nil {
			return wrapf(err, "restore file")
		}
		f.IsDeleted, f.DeletedAt, f.UpdatedAt = false, nil, at
		file = f
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, ActivityEntry{
		UserID:       who.UserID,
		Action:       model.ActionFileRestore,
		ResourceType: model.ResourceFile,
		ResourceID:   file.ID,
		ResourceName: file.Name,
	})
	return file, nil
}

// purged is what one purge removed; blob keys are deleted after commit.
type purged struct {
	folders int
	files   int
	keys    []string
}

// purgeFile removes a file row with its versions and share links.
func (s *core) purgeFile(ctx context.Context, f *model.File, out *purged) error {
	versions, err := s.repos.Versions.ListByFile(ctx, f.ID)
	if err != nil {
		return wrapf(err, "list versions of %s", f.ID)
	}
	if err := s.repos.Versions.DeleteByFile(ctx, f.ID); err != nil {
		return wrapf(err, "delete versions of %s", f.ID)
	}
	if err := s.repos.ShareLinks.DeleteByResource(ctx, model.ResourceFile, f.ID); err != nil {
		return wrapf(err, "delete share links of %s", f.ID)
	}
	if err := s.repos.Files.Delete(ctx, f.ID); err != nil {
		return wrapf(err, "delete file %s", f.ID)
	}
	out.files++
	out.keys = append(out.keys, f.StoragePath)
	for _, v := range versions {
		out.keys = append(out.keys, v.StoragePath)
	}
	return nil
}

// purgeTree removes every file of the tree, then its folders leaves first.
func (s *core) purgeTree(ctx context.Context, tree *subtree, out *purged) error {
	for i := range tree.files {
		if err := s.purgeFile(ctx, &tree.files[i], out); err != nil {
			return err
		}
	}
	for _, f := range slices.Backward(tree.folders) {
		if err := s.repos.Permissions.DeleteByFolder(ctx, f.ID); err != nil {
			return wrapf(err, "delete grants of %s", f.ID)
		}
		if err := s.repos.ShareLinks.DeleteByResource(ctx, model.ResourceFolder, f.ID); err != nil {
			return wrapf(err, "delete share links of %s", f.ID)
		}
		if err := s.repos.Folders.Delete(ctx, f.ID); err != nil {
			return wrapf(err, "delete folder %s", f.ID)
		}
		out.folders++
	}
	return nil
}

// ensureNoUsableLinks fails when a usable share link targets anything in the tree.
func (s *core) ensureNoUsableLinks(ctx context.Context, tree *subtree) error {
	now := s.now()
	check := func(rt model.ResourceType, id string) error {
		n, err := s.repos.ShareLinks.CountUsable(ctx, rt, id, now)
		if err != nil {
			return wrapf(err, "count share links")
		}
		if n > 0 {
			return errdefs.PreconditionFailed("%s %s still has %d active share link(s); use force to delete anyway", rt, id, n)
		}
		return nil
	}
	for _, f := range tree.folders {
		if err := check(model.ResourceFolder, f.ID); err != nil {
			return err
		}
	}
	for _, f := range tree.files {
		if err := check(model.ResourceFile, f.ID); err != nil {
			return err
		}
	}
	return nil
}

// deleteBlobs frees content after the rows are gone. Failures leave orphaned objects
// and are only logged.
func (s *core) deleteBlobs(ctx context.Context, keys []string) (deleted, failed int) {
	ctx = context.WithoutCancel(ctx)
	for _, key := range keys {
		if err := s.blobs.Delete(ctx, key); err != nil {
			failed++
			s.log.Warn("blob delete failed", zap.String("key", key), zap.Error(err))
			continue
		}
		deleted++
	}
	return deleted, failed
}

func (s *lifecycleService) PermanentlyDelete(ctx context.Context, who model.Identity, rt model.ResourceType, id string, force bool) (err error) {
	ctx, span := startSpan(ctx, "LifecycleService.PermanentlyDelete")
	defer func() { finishSpan(span, err) }()

	var (
		out  purged
		name string
	)
	switch rt {
	case model.ResourceFolder:
		err = s.repos.Tx.ExecTx(ctx, func(ctx context.Context) error {
			if err := s.lockTree(ctx, true); err != nil {
				return err
			}
			f, err := s.trashedFolderForPurge(ctx, who, id)
			if err != nil {
				return err
			}
			tree, err := s.collectSubtree(ctx, f)
			if err != nil {
				return err
			}
			if !force {
				if err := s.ensureNoUsableLinks(ctx, tree); err != nil {
					return err
				}
			}
			name = f.Name
			return s.purgeTree(ctx, tree, &out)
		})
	case model.ResourceFile:
		err = s.repos.Tx.ExecTx(ctx, func(ctx context.Context) error {
			f, err := s.trashedFileForPurge(ctx, who, id)
			if err != nil {
				return err
			}
			if !force {
				tree := &subtree{files: []model.File{*f}}
				if err := s.ensureNoUsableLinks(ctx, tree); err != nil {
					return err
				}
			}
			name = f.Name
			return s.purgeFile(ctx, f, &out)
		})
	default:
		return errdefs.InvalidInput("unknown resource type %q", rt)
	}
	if err != nil {
		return err
	}

	deleted, failed := s.deleteBlobs(ctx, out.keys)
	s.metrics.ObservePurge(string(model.ResourceFolder), "manual", out.folders)
	s.metrics.ObservePurge(string(model.ResourceFile), "manual", out.files)
	s.log.Info("permanently deleted",
		zap.String("resource_type", string(rt)),
		zap.String("resource_id", id),
		zap.Int("folders", out.folders),
		zap.Int("files", out.files),
		zap.Int("blobs_deleted", deleted),
		zap.Int("blobs_failed", failed),
		zap.Bool("force", force),
	)

	action := model.ActionFilePurge
	if rt == model.ResourceFolder {
		action = model.ActionFolderPurge
	}
	s.audit.Record(ctx, ActivityEntry{
		UserID:       who.UserID,
		Action:       action,
		ResourceType: rt,
		ResourceID:   id,
		ResourceName: name,
		Details:      map[string]any{"folders": out.folders, "files": out.files, "force": force},
	})
	return nil
}

// trashedFolderForPurge loads a folder for permanent deletion. A live folder fails
// with PreconditionFailed.
func (s *core) trashedFolderForPurge(ctx context.Context, who model.Identity, id string) (*model.Folder, error) {
	f, err := s.repos.Folders.FindByIDForUpdate(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "folder %s not found", id)
	}
	if !f.IsDeleted {
		return nil, errdefs.PreconditionFailed("folder %s must be in the trash before it can be deleted permanently", id)
	}
	if !s.access.CanAdminister(who, f.CreatedBy) {
		return nil, errdefs.Unauthorized("only the owner or an administrator can delete folder %s permanently", id)
	}
	return f, nil
}

func (s *core) trashedFileForPurge(ctx context.Context, who model.Identity, id string) (*model.File, error) {
	f, err := s.repos.Files.FindByIDForUpdate(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "file %s not found", id)
	}
	if !f.IsDeleted {
		return nil, errdefs.PreconditionFailed("file %s must be in the trash before it can be deleted permanently", id)
	}
	if !s.access.CanAdminister(who, f.CreatedBy) {
		return nil, errdefs.Unauthorized("only the owner or an administrator can delete file %s permanently", id)
	}
	return f, nil
}

func (s *lifecycleService) PurgeExpired(ctx context.Context, retention time.Duration) (report *PurgeReport, err error) {
	ctx, span := startSpan(ctx, "LifecycleService.PurgeExpired")
	defer func() { finishSpan(span, err) }()

	cutoff := s.now().Add(-retention)
	report = &PurgeReport{}

	folders, err := s.repos.Folders.ListExpired(ctx, cutoff)
	if err != nil {
		return nil, wrapf(err, "list expired folders")
	}
	files, err := s.repos.Files.ListExpired(ctx, cutoff)
	if err != nil {
		return nil, wrapf(err, "list expired files")
	}

	var errs []error
	for _, f := range folders {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		var out purged
		err := s.repos.Tx.ExecTx(ctx, func(ctx context.Context) error {
			if err := s.lockTree(ctx, true); err != nil {
				return err
			}
			cur, err := s.repos.Folders.FindByIDForUpdate(ctx, f.ID)
			if errors.Is(err, repository.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			if !cur.IsDeleted || cur.DeletedAt == nil || !cur.DeletedAt.Before(cutoff) {
				return nil
			}
			tree, err := s.collectSubtree(ctx, cur)
			if err != nil {
				return err
			}
			return s.purgeTree(ctx, tree, &out)
		})
		if err != nil {
			s.log.Error("purge folder failed", zap.String("folder_id", f.ID), zap.Error(err))
			errs = append(errs, wrapf(err, "purge folder %s", f.ID))
			continue
		}
		if out.folders > 0 {
			s.expired(ctx, model.ResourceFolder, f.ID, f.Name, out, report)
		}
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		var out purged
		err := s.repos.Tx.ExecTx(ctx, func(ctx context.Context) error {
			cur, err := s.repos.Files.FindByIDForUpdate(ctx, f.ID)
			if errors.Is(err, repository.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			if !cur.IsDeleted || cur.DeletedAt == nil || !cur.DeletedAt.Before(cutoff) {
				return nil
			}
			return s.purgeFile(ctx, cur, &out)
		})
		if err != nil {
			s.log.Error("purge file failed", zap.String("file_id", f.ID), zap.Error(err))
			errs = append(errs, wrapf(err, "purge file %s", f.ID))
			continue
		}
		if out.files > 0 {
			s.expired(ctx, model.ResourceFile, f.ID, f.Name, out, report)
		}
	}

	err = errors.Join(errs...)
	s.log.Info("trash purge finished",
		zap.Duration("retention", retention),
		zap.Int("folders", report.Folders),
		zap.Int("files", report.Files),
		zap.Int("blobs_deleted", report.Blobs),
		zap.Int("blobs_failed", report.BlobFailures),
		zap.Error(err),
	)
	return report, err
}

// expired accounts for one committed expiry purge.
func (s *lifecycleService) expired(ctx context.Context, rt model.ResourceType, id, name string, out purged, report *PurgeReport) {
	deleted, failed := s.deleteBlobs(ctx, out.keys)
	report.Folders += out.folders
	report.Files += out.files
	report.Blobs += deleted
	report.BlobFailures += failed
	s.metrics.ObservePurge(string(model.ResourceFolder), "expired", out.folders)
	s.metrics.ObservePurge(string(model.ResourceFile), "expired", out.files)
	s.audit.Record(ctx, ActivityEntry{
		Action:       model.ActionTrashExpire,
		ResourceType: rt,
		ResourceID:   id,
		ResourceName: name,
		Details:      map[string]any{"folders": out.folders, "files": out.files},
	})
}

func (s *lifecycleService) RunPurgeScheduler(ctx context.Context, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("purge scheduler started", zap.Duration("interval", interval), zap.Duration("retention", retention))
	for {
		select {
		case <-ticker.C:
			_, err := s.PurgeExpired(ctx, retention)
			s.metrics.ObservePurgeRun(err)
		case <-ctx.Done():
			s.log.Info("purge scheduler stopped")
			return
		}
	}
}

func (s *lifecycleService) ListTrash(ctx context.Context, who model.Identity, page, perPage int) (*Page[model.TrashItem], error) {
	page, perPage = normalizePage(page, perPage)

	owner := who.UserID
	if s.access.IsAdmin(who) {
		owner = ""
	}
	// Both listings are read from the top so the merged window is exact.
	window := repository.PageQuery{Limit: page * perPage}
	folders, err := s.repos.Folders.ListDeleted(ctx, owner, window)
	if err != nil {
		return nil, wrapf(err, "list trashed folders")
	}
	files, err := s.repos.Files.ListDeleted(ctx, owner, window)
	if err != nil {
		return nil, wrapf(err, "list trashed files")
	}

	items := make([]model.TrashItem, 0, len(folders.Items)+len(files.Items))
	for _, f := range folders.Items {
		items = append(items, model.TrashItem{
			ResourceType: model.ResourceFolder,
			ID:           f.ID,
			Name:         f.Name,
			ParentID:     f.ParentID,
			CreatedBy:    f.CreatedBy,
			DeletedAt:    derefTime(f.DeletedAt),
		})
	}
	for _, f := range files.Items {
		folderID := f.FolderID
		items = append(items, model.TrashItem{
			ResourceType: model.ResourceFile,
			ID:           f.ID,
			Name:         f.Name,
			ParentID:     &folderID,
			CreatedBy:    f.CreatedBy,
			DeletedAt:    derefTime(f.DeletedAt),
			Size:         f.Size,
		})
	}
	slices.SortStableFunc(items, func(a, b model.TrashItem) int {
		return b.DeletedAt.Compare(a.DeletedAt)
	})

	start := min((page-1)*perPage, len(items))
	end := min(start+perPage, len(items))
	return &Page[model.TrashItem]{
		Items:   items[start:end],
		Total:   folders.Total + files.Total,
		Page:    page,
		PerPage: perPage,
	}, nil
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
