package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"filevault/internal/metrics"
	"filevault/internal/model"
	"filevault/internal/repository"
)

// ActivityEntry is one audited action. An empty UserID marks a system action.
type ActivityEntry struct {
	UserID       string
	Action       string
	ResourceType model.ResourceType
	ResourceID   string
	ResourceName string
	Details      map[string]any
}

// ActivityQuery filters an activity listing.
type ActivityQuery struct {
	UserID       string
	Action       string
	ResourceType model.ResourceType
	Page         int
	PerPage      int
}

// ActivityRecorder is the append-only audit log.
type ActivityRecorder interface {
	// Record appends an entry. Failures are logged and counted, never returned.
	Record(ctx context.Context, e ActivityEntry)

	// List returns entries newest first. Callers that are not administrators only
	// see their own entries.
	List(ctx context.Context, who model.Identity, q ActivityQuery) (*Page[model.ActivityLog], error)
}

type activityRecorder struct {
	repo    repository.ActivityRepository
	policy  AdminPolicy
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewActivityRecorder constructs an ActivityRecorder.
func NewActivityRecorder(repo repository.ActivityRepository, policy AdminPolicy, lg *zap.Logger, m *metrics.Metrics) ActivityRecorder {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &activityRecorder{repo: repo, policy: policy, log: lg, metrics: m, now: time.Now}
}

func (a *activityRecorder) Record(ctx context.Context, e ActivityEntry) {
	entry := &model.ActivityLog{
		ID:           newID(),
		Action:       e.Action,
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		ResourceName: e.ResourceName,
		Details:      e.Details,
		IPAddress:    ClientIPFrom(ctx),
		CreatedAt:    a.now().UTC().Truncate(time.Microsecond),
	}
	if e.UserID != "" {
		uid := e.UserID
		entry.UserID = &uid
	}

	// The entry is written even when the request context is already cancelled.
	if err := a.repo.Append(context.WithoutCancel(ctx), entry); err != nil {
		a.metrics.ObserveAuditFailure()
		a.log.Warn("activity log append failed",
			zap.String("action", e.Action),
			zap.String("resource_type", string(e.ResourceType)),
			zap.String("resource_id", e.ResourceID),
			zap.Error(err),
		)
	}
}

func (a *activityRecorder) List(ctx context.Context, who model.Identity, q ActivityQuery) (*Page[model.ActivityLog], error) {
	page, perPage := normalizePage(q.Page, q.PerPage)

	filter := repository.ActivityFilter{
		UserID:       q.UserID,
		Action:       q.Action,
		ResourceType: q.ResourceType,
	}
	if !a.policy.IsAdminRole(who.Role) {
		filter.UserID = who.UserID
	}

	res, err := a.repo.List(ctx, filter, pageQuery(page, perPage))
	if err != nil {
		return nil, wrapf(err, "list activity")
	}
	return &Page[model.ActivityLog]{Items: res.Items, Total: res.Total, Page: page, PerPage: perPage}, nil
}
