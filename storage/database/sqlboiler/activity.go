package boiledrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/sqlboiler/v4/queries"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/activity"
)

var activitySortable = []string{"id", "created_at"}

type activityRow struct {
	ID           int64     `boil:"id"`
	TenantID     int64     `boil:"tenant_id"`
	UserID       int64     `boil:"user_id"`
	ResourceType string    `boil:"resource_type"`
	ResourceID   int64     `boil:"resource_id"`
	ActivityType string    `boil:"activity_type"`
	CreatedAt    time.Time `boil:"created_at"`
}

func (r activityRow) unboil() activity.Log {
	return activity.Log{
		ID:           r.ID,
		TenantID:     r.TenantID,
		UserID:       r.UserID,
		ResourceType: activity.ResourceType(r.ResourceType),
		ResourceID:   r.ResourceID,
		ActivityType: activity.Type(r.ActivityType),
		CreatedAt:    r.CreatedAt.UTC(),
	}
}

type activityRepository struct {
	exec core.DBExecutor
}

var _ activity.Repository = (*activityRepository)(nil) // interface compliance check

func NewActivityRepository(exec core.DBExecutor) activity.Repository {
	return &activityRepository{exec: exec}
}

func (repo *activityRepository) CreateLog(ctx context.Context, l activity.Log) (activity.Log, error) {
	err := queries.Raw(
		`INSERT INTO activity_logs (tenant_id, user_id, resource_type, resource_id, activity_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		l.TenantID, l.UserID, string(l.ResourceType), l.ResourceID, string(l.ActivityType), l.CreatedAt.UTC(),
	).QueryRowContext(ctx, repo.exec).Scan(&l.ID)
	if err != nil {
		return activity.Log{}, errors.Wrap(err, "inserting activity log")
	}
	return l, nil
}

func activityQueryMods(tenantID int64, filter *activity.QueryFilter, opts core.ListOptions) []qm.QueryMod {
	mods := []qm.QueryMod{qm.Where("tenant_id = ?", tenantID)}
	if filter != nil {
		if filter.UserID != 0 {
			mods = append(mods, qm.Where("user_id = ?", filter.UserID))
		}
		if filter.ResourceType != "" {
			mods = append(mods, qm.Where("resource_type = ?", string(filter.ResourceType)))
		}
		if filter.ResourceID != 0 {
			mods = append(mods, qm.Where("resource_id = ?", filter.ResourceID))
		}
		if filter.ActivityType != "" {
			mods = append(mods, qm.Where("activity_type = ?", string(filter.ActivityType)))
		}
		if !filter.Since.IsZero() {
			mods = append(mods, qm.Where("created_at >= ?", filter.Since.UTC()))
		}
	}
	return append(mods, listMods(opts, activitySortable, core.DBOrdering{Field: "created_at"}, core.DBOrdering{Field: "id"})...)
}

func (repo *activityRepository) QueryLogs(ctx context.Context, tenantID int64, filter *activity.QueryFilter, opts core.ListOptions) ([]activity.Log, error) {
	var rows []activityRow
	if err := newQuery("activity_logs", activityQueryMods(tenantID, filter, opts)...).Bind(ctx, repo.exec, &rows); err != nil {
		return nil, errors.Wrap(err, "querying activity logs")
	}
	logs := make([]activity.Log, 0, len(rows))
	for _, r := range rows {
		logs = append(logs, r.unboil())
	}
	return logs, nil
}
