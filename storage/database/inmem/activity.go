package inmemdb

import (
	"context"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/activity"
)

var activityFields = fieldGetters[activity.Log]{
	"id":         func(l activity.Log) interface{} { return l.ID },
	"created_at": func(l activity.Log) interface{} { return l.CreatedAt },
}

type activityRepository struct {
	db *DB
}

func NewActivityRepository(db *DB) activity.Repository {
	return &activityRepository{db: db}
}

func (repo *activityRepository) CreateLog(_ context.Context, l activity.Log) (activity.Log, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	l.ID = repo.db.activityLogs.nextID()
	repo.db.activityLogs.rows[l.ID] = l
	return l, nil
}

func (repo *activityRepository) QueryLogs(_ context.Context, tenantID int64, filter *activity.QueryFilter, opts core.ListOptions) ([]activity.Log, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if filter == nil {
		filter = new(activity.QueryFilter)
	}
	rows := repo.db.activityLogs.list(func(l activity.Log) bool {
		if l.TenantID != tenantID {
			return false
		}
		if filter.UserID != 0 && l.UserID != filter.UserID {
			return false
		}
		if filter.ResourceType != "" && l.ResourceType != filter.ResourceType {
			return false
		}
		if filter.ResourceID != 0 && l.ResourceID != filter.ResourceID {
			return false
		}
		if filter.ActivityType != "" && l.ActivityType != filter.ActivityType {
			return false
		}
		return filter.Since.IsZero() || !l.CreatedAt.Before(filter.Since)
	})
	// newest first, whatever the requested ordering
	opts.Ordering = nil
	return orderAndPage(rows, opts, activityFields, desc("created_at"), desc("id")), nil
}
