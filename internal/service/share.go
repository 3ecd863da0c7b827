package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"filevault/internal/errdefs"
	"filevault/internal/model"
	"filevault/internal/repository"
	"filevault/internal/storage"
)

const (
	tokenBytes       = 32
	tokenAttempts    = 3
	shareResultOK    = "ok"
	shareResultError = "error"
)

// ShareInput configures a new share link. Nil fields leave the link unrestricted.
type ShareInput struct {
	ResourceType model.ResourceType
	ResourceID   string
	Password     *string
	ExpiresAt    *time.Time
	MaxDownloads *int
}

// SharedResource is what a resolved share link points at. Exactly one of File and
// Folder is set.
type SharedResource struct {
	Link   *model.ShareLink `json:"link"`
	File   *model.File      `json:"file,omitempty"`
	Folder *model.Folder    `json:"folder,omitempty"`
}

// ShareService manages anonymous share links.
type ShareService interface {
	// Create issues a link. Files need edit, folders need manage.
	Create(ctx context.Context, who model.Identity, in ShareInput) (*model.ShareLink, error)

	// Resolve checks a token and returns the live resource behind it.
	Resolve(ctx context.Context, token string, password *string) (*SharedResource, error)

	// RecordDownload consumes one download of the link.
	RecordDownload(ctx context.Context, token string) error

	// DownloadShared resolves a file link, consumes one download and opens the content.
	DownloadShared(ctx context.Context, token string, password *string) (io.ReadCloser, *model.File, error)

	List(ctx context.Context, who model.Identity, rt model.ResourceType, resourceID string) ([]model.ShareLink, error)

	// Deactivate turns a link off. Only its creator or an administrator may do so.
	Deactivate(ctx context.Context, who model.Identity, id string) error
}

type shareService struct {
	core
}

// NewShareService constructs a ShareService.
func NewShareService(d Deps) ShareService {
	return &shareService{core: newCore(d)}
}

func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// requireShareable checks that the resource is live and the caller may share it.
func (s *core) requireShareable(ctx context.Context, who model.Identity, rt model.ResourceType, id string) (string, error) {
	switch rt {
	case model.ResourceFile:
		f, err := s.liveFile(ctx, id)
		if err != nil {
			return "", err
		}
		return f.Name, s.requireFile(ctx, who, f, model.AccessEdit)
	case model.ResourceFolder:
		f, err := s.liveFolder(ctx, id)
		if err != nil {
			return "", err
		}
		return f.Name, s.access.RequireFolder(ctx, who, f, model.AccessManage)
	}
	return "", errdefs.InvalidInput("unknown resource type %q", rt)
}

func (s *shareService) Create(ctx context.Context, who model.Identity, in ShareInput) (*model.ShareLink, error) {
	now := s.now()
	if in.MaxDownloads != nil && *in.MaxDownloads < 1 {
		return nil, errdefs.InvalidInput("max_downloads must be at least 1")
	}
	if in.ExpiresAt != nil && !in.ExpiresAt.After(now) {
		return nil, errdefs.InvalidInput("expires_at must be in the future")
	}

	name, err := s.requireShareable(ctx, who, in.ResourceType, in.ResourceID)
	if err != nil {
		return nil, err
	}

	link := &model.ShareLink{
		ResourceType: in.ResourceType,
		ResourceID:   in.ResourceID,
		CreatedBy:    who.UserID,
		MaxDownloads: in.MaxDownloads,
		IsActive:     true,
		CreatedAt:    now,
	}
	if in.ExpiresAt != nil {
		at := in.ExpiresAt.UTC().Truncate(time.Microsecond)
		link.ExpiresAt = &at
	}
	if in.Password != nil && *in.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), s.opts.BcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		h := string(hash)
		link.PasswordHash = &h
	}

	for attempt := 1; ; attempt++ {
		link.ID = newID()
		if link.Token, err = newToken(); err != nil {
			return nil, err
		}
		err = s.repos.ShareLinks.Create(ctx, link)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrDuplicate) || attempt == tokenAttempts {
			return nil, wrapf(err, "save share link")
		}
	}

	s.audit.Record(ctx, ActivityEntry{
		UserID:       who.UserID,
		Action:       model.ActionShareCreate,
		ResourceType: link.ResourceType,
		ResourceID:   link.ResourceID,
		ResourceName: name,
		Details: map[string]any{
			"share_link_id": link.ID,
			"has_password":  link.HasPassword(),
			"expires_at":    link.ExpiresAt,
			"max_downloads": link.MaxDownloads,
		},
	})
	return link, nil
}

func (s *shareService) Resolve(ctx context.Context, token string, password *string) (*SharedResource, error) {
	link, err := s.repos.ShareLinks.FindByToken(ctx, token)
	if err != nil {
		return nil, lookupErr(err, "share link not found")
	}

	now := s.now()
	switch {
	case !link.IsActive:
		return nil, errdefs.ErrInactive
	case link.Expired(now):
		return nil, errdefs.ErrExpired
	case link.LimitReached():
		return nil, errdefs.ErrDownloadLimitReached
	}
	if link.HasPassword() {
		if password == nil || *password == "" {
			return nil, errdefs.ErrPasswordRequired
		}
		if bcrypt.CompareHashAndPassword([]byte(*link.PasswordHash), []byte(*password)) != nil {
			return nil, errdefs.ErrInvalidPassword
		}
	}

	res := &SharedResource{Link: link}
	switch link.ResourceType {
	case model.ResourceFile:
		f, err := s.liveFile(ctx, link.ResourceID)
		if err != nil {
			return nil, deadLink(err)
		}
		res.File = f
	case model.ResourceFolder:
		f, err := s.liveFolder(ctx, link.ResourceID)
		if err != nil {
			return nil, deadLink(err)
		}
		res.Folder = f
	default:
		return nil, errdefs.Integrity("share link %s has unknown resource type %q", link.ID, link.ResourceType)
	}
	return res, nil
}

// deadLink reports a link whose resource is gone or trashed as an unknown link.
func deadLink(err error) error {
	if errors.Is(err, errdefs.ErrNotFound) {
		return errdefs.NotFound("share link not found")
	}
	return err
}

func (s *shareService) RecordDownload(ctx context.Context, token string) error {
	ok, err := s.repos.ShareLinks.IncrementDownload(ctx, token, s.now())
	if err != nil {
		return wrapf(err, "record download")
	}
	if !ok {
		return errdefs.ErrDownloadLimitReached
	}
	return nil
}

func (s *shareService) DownloadShared(ctx context.Context, token string, password *string) (rc io.ReadCloser, file *model.File, err error) {
	ctx, span := startSpan(ctx, "ShareService.DownloadShared")
	defer func() {
		finishSpan(span, err)
		result := shareResultOK
		if err != nil {
			result = string(errdefs.KindOf(err))
			if result == "" {
				result = shareResultError
			}
		}
		s.metrics.ObserveShareDownload(result)
	}()

	res, err := s.Resolve(ctx, token, password)
	if err != nil {
		return nil, nil, err
	}
	if res.File == nil {
		return nil, nil, errdefs.InvalidInput("folder downloads are not supported")
	}
	if err := s.RecordDownload(ctx, token); err != nil {
		return nil, nil, err
	}

	rc, _, err = s.blobs.Get(ctx, res.File.StoragePath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, nil, errdefs.Wrap(errdefs.KindIntegrity, err, "file content is missing")
		}
		return nil, nil, fmt.Errorf("open content: %w", err)
	}

	s.log.Debug("shared download",
		zap.String("share_link_id", res.Link.ID),
		zap.String("file_id", res.File.ID),
	)
	s.audit.Record(ctx, ActivityEntry{
		Action:       model.ActionShareDownload,
		ResourceType: model.ResourceFile,
		ResourceID:   res.File.ID,
		ResourceName: res.File.Name,
		Details:      map[string]any{"share_link_id": res.Link.ID},
	})
	return rc, res.File, nil
}

func (s *shareService) List(ctx context.Context, who model.Identity, rt model.ResourceType, resourceID string) ([]model.ShareLink, error) {
	if _, err := s.requireShareable(ctx, who, rt, resourceID); err != nil {
		return nil, err
	}
	links, err := s.repos.ShareLinks.ListByResource(ctx, rt, resourceID)
	if err != nil {
		return nil, wrapf(err, "list share links")
	}
	return links, nil
}

func (s *shareService) Deactivate(ctx context.Context, who model.Identity, id string) error {
	link, err := s.repos.ShareLinks.FindByID(ctx, id)
	if err != nil {
		return lookupErr(err, "share link %s not found", id)
	}
	if !s.access.CanAdminister(who, link.CreatedBy) {
		return errdefs.Unauthorized("only the creator or an administrator can deactivate share link %s", id)
	}
	if err := s.repos.ShareLinks.Deactivate(ctx, id); err != nil {
		return wrapf(lookupErr(err, "share link %s not found", id), "deactivate share link")
	}

	s.audit.Record(ctx, ActivityEntry{
		UserID:       who.UserID,
		Action:       model.ActionShareDeactivate,
		ResourceType: link.ResourceType,
		ResourceID:   link.ResourceID,
		Details:      map[string]any{"share_link_id": link.ID},
	})
	return nil
}
