// Package service implements the filevault core: access resolution, the folder tree,
// the trash lifecycle, share links and the activity log. Handlers call these services
// with an already verified model.Identity.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"filevault/internal/errdefs"
	"filevault/internal/metrics"
	"filevault/internal/repository"
	"filevault/internal/storage"
)

var tracer = otel.Tracer("filevault/internal/service")

// NameScope controls where folder names must be unique.
type NameScope string

const (
	// NameScopeSibling rejects a name already used by a live sibling.
	NameScopeSibling NameScope = "sibling"
	// NameScopeGlobal rejects a name already used by any live folder.
	NameScopeGlobal NameScope = "global"
)

const (
	DefaultMaxTreeDepth = 50
	DefaultBcryptCost   = 10
)

// Options tunes the core.
type Options struct {
	MaxTreeDepth int
	NameScope    NameScope
	BcryptCost   int
	// Now is the clock; time.Now when nil.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.MaxTreeDepth <= 0 {
		o.MaxTreeDepth = DefaultMaxTreeDepth
	}
	if o.NameScope == "" {
		o.NameScope = NameScopeSibling
	}
	if o.BcryptCost == 0 {
		o.BcryptCost = DefaultBcryptCost
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Repositories bundles the persistence ports used by the services.
type Repositories struct {
	Tx          repository.TxManager
	Folders     repository.FolderRepository
	Files       repository.FileRepository
	Versions    repository.VersionRepository
	Permissions repository.PermissionRepository
	ShareLinks  repository.ShareLinkRepository
	Activity    repository.ActivityRepository
}

// Deps is everything a service constructor needs.
type Deps struct {
	Repos    Repositories
	Blobs    storage.Storage
	Policy   AdminPolicy
	Activity ActivityRecorder
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Options  Options
}

// core carries the shared collaborators of every service.
type core struct {
	repos   Repositories
	blobs   storage.Storage
	access  *AccessResolver
	audit   ActivityRecorder
	log     *zap.Logger
	metrics *metrics.Metrics
	opts    Options
}

func newCore(d Deps) core {
	lg := d.Logger
	if lg == nil {
		lg = zap.NewNop()
	}
	audit := d.Activity
	if audit == nil {
		audit = NewActivityRecorder(d.Repos.Activity, d.Policy, lg, d.Metrics)
	}
	return core{
		repos:   d.Repos,
		blobs:   d.Blobs,
		access:  NewAccessResolver(d.Repos.Folders, d.Repos.Permissions, d.Policy),
		audit:   audit,
		log:     lg,
		metrics: d.Metrics,
		opts:    d.Options.withDefaults(),
	}
}

// now returns the current instant at the precision Postgres stores.
func (c *core) now() time.Time {
	return c.opts.Now().UTC().Truncate(time.Microsecond)
}

func newID() string { return uuid.NewString() }

// lookupErr turns a missing row into a NotFound failure; other errors pass through.
func lookupErr(err error, format string, args ...any) error {
	if errors.Is(err, repository.ErrNotFound) {
		return errdefs.NotFound(format, args...)
	}
	return err
}

// startSpan opens a service span; end it with finishSpan.
func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

type clientIPKey struct{}

// WithClientIP stores the caller address used for activity entries.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientIPFrom returns the caller address stored by WithClientIP.
func ClientIPFrom(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

// Page is one page of a listing.
type Page[T any] struct {
	Items   []T `json:"data"`
	Total   int `json:"total"`
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
	MaxPage        = 1000
)

// normalizePage clamps page to [1, MaxPage] and perPage to [1, MaxPerPage], defaulting
// to DefaultPerPage.
func normalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return page, perPage
}

func pageQuery(page, perPage int) repository.PageQuery {
	return repository.PageQuery{Limit: perPage, Offset: (page - 1) * perPage}
}

func wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	if errdefs.KindOf(err) != "" {
		return err
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
