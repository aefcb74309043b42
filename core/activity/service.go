package activity

import (
	"context"
	"time"

	"github.com/kat-co/vala"

	"github.com/trezcool/darasa/core"
)

var nowFunc = time.Now // mockable

type (
	Repository interface {
		CreateLog(ctx context.Context, l Log) (Log, error)
		// QueryLogs lists logs newest first.
		QueryLogs(ctx context.Context, tenantID int64, filter *QueryFilter, opts core.ListOptions) ([]Log, error)
	}

	Service interface {
		// Record is best-effort: failures are logged, never returned.
		Record(ctx context.Context, tenantID, userID int64, rt ResourceType, resourceID int64, at Type)
		// Create records an activity and returns any write failure.
		Create(ctx context.Context, tenantID, userID int64, nl NewLog) (Log, error)
		Query(ctx context.Context, tenantID int64, filter *QueryFilter, opts core.ListOptions) ([]Log, error)
	}

	service struct {
		repo      Repository
		publisher core.EventPublisher
		logger    core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, publisher core.EventPublisher, logger core.Logger) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(publisher, "publisher"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &service{repo: repo, publisher: publisher, logger: logger}
}

func (svc *service) create(ctx context.Context, l Log) (Log, error) {
	l.CreatedAt = nowFunc().UTC()
	l, err := svc.repo.CreateLog(ctx, l)
	if err != nil {
		return Log{}, err
	}
	if err = svc.publisher.Publish(ctx, l.RoutingKey(), l); err != nil {
		svc.logger.Warn("publishing activity", err, map[string]interface{}{"activity_id": l.ID})
	}
	return l, nil
}

func (svc *service) Record(ctx context.Context, tenantID, userID int64, rt ResourceType, resourceID int64, at Type) {
	_, err := svc.create(ctx, Log{
		TenantID:     tenantID,
		UserID:       userID,
		ResourceType: rt,
		ResourceID:   resourceID,
		ActivityType: at,
	})
	if err != nil {
		svc.logger.Warn("recording activity", err, map[string]interface{}{
			"user_id":       userID,
			"resource_type": rt,
			"resource_id":   resourceID,
			"activity_type": at,
		})
	}
}

func (svc *service) Create(ctx context.Context, tenantID, userID int64, nl NewLog) (Log, error) {
	return svc.create(ctx, Log{
		TenantID:     tenantID,
		UserID:       userID,
		ResourceType: nl.ResourceType,
		ResourceID:   nl.ResourceID,
		ActivityType: nl.ActivityType,
	})
}

func (svc *service) Query(ctx context.Context, tenantID int64, filter *QueryFilter, opts core.ListOptions) ([]Log, error) {
	return svc.repo.QueryLogs(ctx, tenantID, filter, opts)
}
