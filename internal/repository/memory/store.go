// Package memory is an in-process implementation of the repository interfaces.
// It backs STORE_DRIVER=memory and the service tests. Every operation runs under a
// single store lock, and a transaction holds that lock from start to commit, so
// transactions are serializable and a failed one leaves nothing behind.
package memory

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"filevault/internal/model"
	"filevault/internal/repository"
)

type txKey struct{}

// Store holds every table of the in-memory backend.
type Store struct {
	mu sync.Mutex

	folders     map[string]model.Folder
	files       map[string]model.File
	versions    map[string]model.FileVersion
	permissions map[string]model.Permission
	shares      map[string]model.ShareLink
	activity    []model.ActivityLog
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		folders:     make(map[string]model.Folder),
		files:       make(map[string]model.File),
		versions:    make(map[string]model.FileVersion),
		permissions: make(map[string]model.Permission),
		shares:      make(map[string]model.ShareLink),
	}
}

type snapshot struct {
	folders     map[string]model.Folder
	files       map[string]model.File
	versions    map[string]model.FileVersion
	permissions map[string]model.Permission
	shares      map[string]model.ShareLink
	activity    []model.ActivityLog
}

func (s *Store) snapshot() snapshot {
	return snapshot{
		folders:     maps.Clone(s.folders),
		files:       maps.Clone(s.files),
		versions:    maps.Clone(s.versions),
		permissions: maps.Clone(s.permissions),
		shares:      maps.Clone(s.shares),
		activity:    slices.Clone(s.activity),
	}
}

func (s *Store) restore(snap snapshot) {
	s.folders = snap.folders
	s.files = snap.files
	s.versions = snap.versions
	s.permissions = snap.permissions
	s.shares = snap.shares
	s.activity = snap.activity
}

// lock acquires the store lock unless ctx belongs to a transaction that already holds it.
func (s *Store) lock(ctx context.Context) func() {
	if owner, _ := ctx.Value(txKey{}).(*Store); owner == s {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// ExecTx implements repository.TxManager.
func (s *Store) ExecTx(ctx context.Context, fn repository.TxFn) (err error) {
	if owner, _ := ctx.Value(txKey{}).(*Store); owner == s {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	defer func() {
		if p := recover(); p != nil {
			s.restore(snap)
			panic(p)
		}
		if err != nil {
			s.restore(snap)
		}
	}()

	return fn(context.WithValue(ctx, txKey{}, s))
}

var _ repository.TxManager = (*Store)(nil)

// Folders returns the folder table.
func (s *Store) Folders() *FolderRepo { return &FolderRepo{s: s} }

// Files returns the file table.
func (s *Store) Files() *FileRepo { return &FileRepo{s: s} }

// Versions returns the file version table.
func (s *Store) Versions() *VersionRepo { return &VersionRepo{s: s} }

// Permissions returns the folder grant table.
func (s *Store) Permissions() *PermissionRepo { return &PermissionRepo{s: s} }

// ShareLinks returns the share link table.
func (s *Store) ShareLinks() *ShareLinkRepo { return &ShareLinkRepo{s: s} }

// Activity returns the activity log.
func (s *Store) Activity() *ActivityRepo { return &ActivityRepo{s: s} }

func page[T any](items []T, pq repository.PageQuery) *repository.PageResult[T] {
	total := len(items)
	start := min(max(pq.Offset, 0), total)
	end := total
	if pq.Limit > 0 {
		end = min(start+pq.Limit, total)
	}
	return &repository.PageResult[T]{Items: slices.Clone(items[start:end]), Total: total}
}

func byDeletedAt(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Compare(*b)
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func ptr[T any](v T) *T { return &v }

// FolderRepo implements repository.FolderRepository.
type FolderRepo struct{ s *Store }

var _ repository.FolderRepository = (*FolderRepo)(nil)

func (r *FolderRepo) Create(ctx context.Context, f *model.Folder) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.folders[f.ID]; ok {
		return repository.ErrDuplicate
	}
	r.s.folders[f.ID] = *f
	return nil
}

func (r *FolderRepo) FindByID(ctx context.Context, id string) (*model.Folder, error) {
	defer r.s.lock(ctx)()
	f, ok := r.s.folders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &f, nil
}

// FindByIDForUpdate is FindByID; the store lock already serializes transactions.
func (r *FolderRepo) FindByIDForUpdate(ctx context.Context, id string) (*model.Folder, error) {
	return r.FindByID(ctx, id)
}

// LockTree is a no-op; the store lock already serializes transactions.
func (r *FolderRepo) LockTree(ctx context.Context, exclusive bool) error {
	return ctx.Err()
}

func (r *FolderRepo) ListChildren(ctx context.Context, parentID *string, includeDeleted bool) ([]model.Folder, error) {
	defer r.s.lock(ctx)()
	items := make([]model.Folder, 0)
	for _, f := range r.s.folders {
		if sameParent(f.ParentID, parentID) && (includeDeleted || !f.IsDeleted) {
			items = append(items, f)
		}
	}
	slices.SortFunc(items, func(a, b model.Folder) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return items, nil
}

func (r *FolderRepo) NameTaken(ctx context.Context, parentID *string, name string, global bool, excludeID string) (bool, error) {
	defer r.s.lock(ctx)()
	for _, f := range r.s.folders {
		if f.IsDeleted || f.ID == excludeID || f.Name != name {
			continue
		}
		if global || sameParent(f.ParentID, parentID) {
			return true, nil
		}
	}
	return false, nil
}

func (r *FolderRepo) update(ctx context.Context, id string, fn func(f *model.Folder)) error {
	defer r.s.lock(ctx)()
	f, ok := r.s.folders[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(&f)
	r.s.folders[id] = f
	return nil
}

func (r *FolderRepo) Rename(ctx context.Context, id, name string, at time.Time) error {
	return r.update(ctx, id, func(f *model.Folder) {
		f.Name = name
		f.UpdatedAt = at
	})
}

func (r *FolderRepo) SetParent(ctx context.Context, id string, parentID *string, at time.Time) error {
	return r.update(ctx, id, func(f *model.Folder) {
		if parentID != nil {
			f.ParentID = ptr(*parentID)
		} else {
			f.ParentID = nil
		}
		f.UpdatedAt = at
	})
}

func (r *FolderRepo) MarkDeleted(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, id, func(f *model.Folder) {
		f.IsDeleted = true
		f.DeletedAt = ptr(at)
		f.UpdatedAt = at
	})
}

func (r *FolderRepo) MarkRestored(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, id, func(f *model.Folder) {
		f.IsDeleted = false
		f.DeletedAt = nil
		f.UpdatedAt = at
	})
}

func (r *FolderRepo) Delete(ctx context.Context, id string) error {
	defer r.s.lock(ctx)()
	delete(r.s.folders, id)
	return nil
}

func (r *FolderRepo) ListExpired(ctx context.Context, before time.Time) ([]model.Folder, error) {
	defer r.s.lock(ctx)()
	items := make([]model.Folder, 0)
	for _, f := range r.s.folders {
		if f.IsDeleted && f.DeletedAt != nil && f.DeletedAt.Before(before) {
			items = append(items, f)
		}
	}
	slices.SortFunc(items, func(a, b model.Folder) int {
		return cmp.Or(byDeletedAt(a.DeletedAt, b.DeletedAt), cmp.Compare(a.ID, b.ID))
	})
	return items, nil
}

func (r *FolderRepo) ListDeleted(ctx context.Context, createdBy string, pq repository.PageQuery) (*repository.PageResult[model.Folder], error) {
	defer r.s.lock(ctx)()
	items := make([]model.Folder, 0)
	for _, f := range r.s.folders {
		if f.IsDeleted && (createdBy == "" || f.CreatedBy == createdBy) {
			items = append(items, f)
		}
	}
	slices.SortFunc(items, func(a, b model.Folder) int {
		return cmp.Or(byDeletedAt(b.DeletedAt, a.DeletedAt), cmp.Compare(b.ID, a.ID))
	})
	return page(items, pq), nil
}

// FileRepo implements repository.FileRepository.
type FileRepo struct{ s *Store }

var _ repository.FileRepository = (*FileRepo)(nil)

func (r *FileRepo) Create(ctx context.Context, f *model.File) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.files[f.ID]; ok {
		return repository.ErrDuplicate
	}
	for _, other := range r.s.files {
		if other.StoragePath == f.StoragePath {
			return repository.ErrDuplicate
		}
	}
	r.s.files[f.ID] = *f
	return nil
}

func (r *FileRepo) FindByID(ctx context.Context, id string) (*model.File, error) {
	defer r.s.lock(ctx)()
	f, ok := r.s.files[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &f, nil
}

func (r *FileRepo) FindByIDForUpdate(ctx context.Context, id string) (*model.File, error) {
	return r.FindByID(ctx, id)
}

func (r *FileRepo) ListByFolder(ctx context.Context, folderID string, includeDeleted bool) ([]model.File, error) {
	defer r.s.lock(ctx)()
	items := make([]model.File, 0)
	for _, f := range r.s.files {
		if f.FolderID == folderID && (includeDeleted || !f.IsDeleted) {
			items = append(items, f)
		}
	}
	slices.SortFunc(items, func(a, b model.File) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return items, nil
}

func (r *FileRepo) update(ctx context.Context, id string, fn func(f *model.File)) error {
	defer r.s.lock(ctx)()
	f, ok := r.s.files[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(&f)
	r.s.files[id] = f
	return nil
}

func (r *FileRepo) Rename(ctx context.Context, id, name string, at time.Time) error {
	return r.update(ctx, id, func(f *model.File) {
		f.Name = name
		f.UpdatedAt = at
	})
}

func (r *FileRepo) SetFolder(ctx context.Context, id, folderID string, at time.Time) error {
	return r.update(ctx, id, func(f *model.File) {
		f.FolderID = folderID
		f.UpdatedAt = at
	})
}

func (r *FileRepo) UpdateContent(ctx context.Context, in *model.File) error {
	return r.update(ctx, in.ID, func(f *model.File) {
		f.StoragePath = in.StoragePath
		f.Size = in.Size
		f.MimeType = in.MimeType
		f.Category = in.Category
		f.UpdatedAt = in.UpdatedAt
	})
}

func (r *FileRepo) MarkDeleted(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, id, func(f *model.File) {
		f.IsDeleted = true
		f.DeletedAt = ptr(at)
		f.UpdatedAt = at
	})
}

func (r *FileRepo) MarkRestored(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, id, func(f *model.File) {
		f.IsDeleted = false
		f.DeletedAt = nil
		f.UpdatedAt = at
	})
}

func (r *FileRepo) Delete(ctx context.Context, id string) error {
	defer r.s.lock(ctx)()
	delete(r.s.files, id)
	return nil
}

func (r *FileRepo) ListExpired(ctx context.Context, before time.Time) ([]model.File, error) {
	defer r.s.lock(ctx)()
	items := make([]model.File, 0)
	for _, f := range r.s.files {
		if f.IsDeleted && f.DeletedAt != nil && f.DeletedAt.Before(before) {
			items = append(items, f)
		}
	}
	slices.SortFunc(items, func(a, b model.File) int {
		return cmp.Or(byDeletedAt(a.DeletedAt, b.DeletedAt), cmp.Compare(a.ID, b.ID))
	})
	return items, nil
}

func (r *FileRepo) ListDeleted(ctx context.Context, createdBy string, pq repository.PageQuery) (*repository.PageResult[model.File], error) {
	defer r.s.lock(ctx)()
	items := make([]model.File, 0)
	for _, f := range r.s.files {
		if f.IsDeleted && (createdBy == "" || f.CreatedBy == createdBy) {
			items = append(items, f)
		}
	}
	slices.SortFunc(items, func(a, b model.File) int {
		return cmp.Or(byDeletedAt(b.DeletedAt, a.DeletedAt), cmp.Compare(b.ID, a.ID))
	})
	return page(items, pq), nil
}

// VersionRepo implements repository.VersionRepository.
type VersionRepo struct{ s *Store }

var _ repository.VersionRepository = (*VersionRepo)(nil)

func (r *VersionRepo) Create(ctx context.Context, v *model.FileVersion) error {
	defer r.s.lock(ctx)()
	for _, other := range r.s.versions {
		if other.ID == v.ID || (other.FileID == v.FileID && other.VersionNumber == v.VersionNumber) {
			return repository.ErrDuplicate
		}
	}
	r.s.versions[v.ID] = *v
	return nil
}

func (r *VersionRepo) ListByFile(ctx context.Context, fileID string) ([]model.FileVersion, error) {
	defer r.s.lock(ctx)()
	items := make([]model.FileVersion, 0)
	for _, v := range r.s.versions {
		if v.FileID == fileID {
			items = append(items, v)
		}
	}
	slices.SortFunc(items, func(a, b model.FileVersion) int {
		return cmp.Compare(b.VersionNumber, a.VersionNumber)
	})
	return items, nil
}

func (r *VersionRepo) LatestNumber(ctx context.Context, fileID string) (int, error) {
	defer r.s.lock(ctx)()
	n := 0
	for _, v := range r.s.versions {
		if v.FileID == fileID && v.VersionNumber > n {
			n = v.VersionNumber
		}
	}
	return n, nil
}

func (r *VersionRepo) DeleteByFile(ctx context.Context, fileID string) error {
	defer r.s.lock(ctx)()
	maps.DeleteFunc(r.s.versions, func(_ string, v model.FileVersion) bool {
		return v.FileID == fileID
	})
	return nil
}

// PermissionRepo implements repository.PermissionRepository.
type PermissionRepo struct{ s *Store }

var _ repository.PermissionRepository = (*PermissionRepo)(nil)

func (r *PermissionRepo) find(folderID string, tt model.TargetType, targetID string) (model.Permission, bool) {
	for _, p := range r.s.permissions {
		if p.FolderID == folderID && p.TargetType == tt && p.TargetID == targetID {
			return p, true
		}
	}
	return model.Permission{}, false
}

func (r *PermissionRepo) Upsert(ctx context.Context, p *model.Permission) (*model.Permission, error) {
	defer r.s.lock(ctx)()
	if existing, ok := r.find(p.FolderID, p.TargetType, p.TargetID); ok {
		existing.Level = p.Level
		existing.GrantedBy = p.GrantedBy
		existing.UpdatedAt = p.UpdatedAt
		r.s.permissions[existing.ID] = existing
		return &existing, nil
	}
	stored := *p
	r.s.permissions[stored.ID] = stored
	return &stored, nil
}

func (r *PermissionRepo) Delete(ctx context.Context, folderID string, tt model.TargetType, targetID string) error {
	defer r.s.lock(ctx)()
	p, ok := r.find(folderID, tt, targetID)
	if !ok {
		return repository.ErrNotFound
	}
	delete(r.s.permissions, p.ID)
	return nil
}

func (r *PermissionRepo) ListByFolder(ctx context.Context, folderID string) ([]model.Permission, error) {
	defer r.s.lock(ctx)()
	items := make([]model.Permission, 0)
	for _, p := range r.s.permissions {
		if p.FolderID == folderID {
			items = append(items, p)
		}
	}
	slices.SortFunc(items, func(a, b model.Permission) int {
		return cmp.Or(cmp.Compare(a.TargetType, b.TargetType), cmp.Compare(a.TargetID, b.TargetID))
	})
	return items, nil
}

func (r *PermissionRepo) ListForTargets(ctx context.Context, folderID string, targets []model.GrantTarget) ([]model.Permission, error) {
	defer r.s.lock(ctx)()
	items := make([]model.Permission, 0)
	for _, t := range targets {
		if p, ok := r.find(folderID, t.Type, t.ID); ok {
			items = append(items, p)
		}
	}
	return items, nil
}

func (r *PermissionRepo) DeleteByFolder(ctx context.Context, folderID string) error {
	defer r.s.lock(ctx)()
	maps.DeleteFunc(r.s.permissions, func(_ string, p model.Permission) bool {
		return p.FolderID == folderID
	})
	return nil
}

// ShareLinkRepo implements repository.ShareLinkRepository.
type ShareLinkRepo struct{ s *Store }

var _ repository.ShareLinkRepository = (*ShareLinkRepo)(nil)

func (r *ShareLinkRepo) Create(ctx context.Context, l *model.ShareLink) error {
	defer r.s.lock(ctx)()
	for _, other := range r.s.shares {
		if other.ID == l.ID || other.Token == l.Token {
			return repository.ErrDuplicate
		}
	}
	r.s.shares[l.ID] = *l
	return nil
}

func (r *ShareLinkRepo) FindByID(ctx context.Context, id string) (*model.ShareLink, error) {
	defer r.s.lock(ctx)()
	l, ok := r.s.shares[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &l, nil
}

func (r *ShareLinkRepo) byToken(token string) (model.ShareLink, bool) {
	for _, l := range r.s.shares {
		if l.Token == token {
			return l, true
		}
	}
	return model.ShareLink{}, false
}

func (r *ShareLinkRepo) FindByToken(ctx context.Context, token string) (*model.ShareLink, error) {
	defer r.s.lock(ctx)()
	l, ok := r.byToken(token)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &l, nil
}

func (r *ShareLinkRepo) ListByResource(ctx context.Context, rt model.ResourceType, resourceID string) ([]model.ShareLink, error) {
	defer r.s.lock(ctx)()
	items := make([]model.ShareLink, 0)
	for _, l := range r.s.shares {
		if l.ResourceType == rt && l.ResourceID == resourceID {
			items = append(items, l)
		}
	}
	slices.SortFunc(items, func(a, b model.ShareLink) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return items, nil
}

func (r *ShareLinkRepo) Deactivate(ctx context.Context, id string) error {
	defer r.s.lock(ctx)()
	l, ok := r.s.shares[id]
	if !ok {
		return repository.ErrNotFound
	}
	l.IsActive = false
	r.s.shares[id] = l
	return nil
}

func (r *ShareLinkRepo) IncrementDownload(ctx context.Context, token string, now time.Time) (bool, error) {
	defer r.s.lock(ctx)()
	l, ok := r.byToken(token)
	if !ok || !l.Usable(now) {
		return false, nil
	}
	l.DownloadCount++
	r.s.shares[l.ID] = l
	return true, nil
}

func (r *ShareLinkRepo) CountUsable(ctx context.Context, rt model.ResourceType, resourceID string, now time.Time) (int, error) {
	defer r.s.lock(ctx)()
	n := 0
	for _, l := range r.s.shares {
		if l.ResourceType == rt && l.ResourceID == resourceID && l.Usable(now) {
			n++
		}
	}
	return n, nil
}

func (r *ShareLinkRepo) DeleteByResource(ctx context.Context, rt model.ResourceType, resourceID string) error {
	defer r.s.lock(ctx)()
	maps.DeleteFunc(r.s.shares, func(_ string, l model.ShareLink) bool {
		return l.ResourceType == rt && l.ResourceID == resourceID
	})
	return nil
}

// ActivityRepo implements repository.ActivityRepository.
type ActivityRepo struct{ s *Store }

var _ repository.ActivityRepository = (*ActivityRepo)(nil)

func (r *ActivityRepo) Append(ctx context.Context, e *model.ActivityLog) error {
	defer r.s.lock(ctx)()
	r.s.activity = append(r.s.activity, *e)
	return nil
}

func (r *ActivityRepo) List(ctx context.Context, f repository.ActivityFilter, pq repository.PageQuery) (*repository.PageResult[model.ActivityLog], error) {
	defer r.s.lock(ctx)()
	items := make([]model.ActivityLog, 0)
	for _, e := range slices.Backward(r.s.activity) {
		if f.UserID != "" && (e.UserID == nil || *e.UserID != f.UserID) {
			continue
		}
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		if f.ResourceType != "" && e.ResourceType != f.ResourceType {
			continue
		}
		items = append(items, e)
	}
	slices.SortStableFunc(items, func(a, b model.ActivityLog) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return page(items, pq), nil
}
