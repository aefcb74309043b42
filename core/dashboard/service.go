package dashboard

import (
	"context"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/activity"
	"github.com/trezcool/darasa/core/user"
)

const recentActivityLimit = 10

type (
	// Repository computes aggregates; implementations should not load whole tables.
	Repository interface {
		AdminStats(ctx context.Context, tenantID int64) (AdminStats, error)
		StudentCourses(ctx context.Context, tenantID, userID int64) ([]CourseProgress, error)
		StudentAttempts(ctx context.Context, tenantID, userID int64) (AttemptCounts, error)
	}

	Service interface {
		Admin(ctx context.Context, usr user.User) (AdminDashboard, error)
		Student(ctx context.Context, usr user.User) (StudentDashboard, error)
		// For returns the dashboard of the portal of usr.
		For(ctx context.Context, usr user.User) (Dashboard, error)
	}

	service struct {
		repo       Repository
		activities activity.Service
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, activities activity.Service) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(activities, "activities"),
	).CheckAndPanic()

	return &service{repo: repo, activities: activities}
}

func (svc *service) recentActivity(ctx context.Context, tenantID int64, filter *activity.QueryFilter) ([]activity.Log, error) {
	logs, err := svc.activities.Query(ctx, tenantID, filter, core.ListOptions{Page: core.Pagination{Limit: recentActivityLimit}})
	if err != nil {
		return nil, errors.Wrap(err, "querying recent activity")
	}
	if logs == nil {
		logs = []activity.Log{}
	}
	return logs, nil
}

func (svc *service) Admin(ctx context.Context, usr user.User) (AdminDashboard, error) {
	stats, err := svc.repo.AdminStats(ctx, usr.TenantID)
	if err != nil {
		return AdminDashboard{}, errors.Wrap(err, "computing admin stats")
	}
	recent, err := svc.recentActivity(ctx, usr.TenantID, &activity.QueryFilter{})
	if err != nil {
		return AdminDashboard{}, err
	}
	return AdminDashboard{Stats: stats, RecentActivity: recent}, nil
}

func (svc *service) Student(ctx context.Context, usr user.User) (StudentDashboard, error) {
	courses, err := svc.repo.StudentCourses(ctx, usr.TenantID, usr.ID)
	if err != nil {
		return StudentDashboard{}, errors.Wrap(err, "listing student courses")
	}
	if courses == nil {
		courses = []CourseProgress{}
	}
	attempts, err := svc.repo.StudentAttempts(ctx, usr.TenantID, usr.ID)
	if err != nil {
		return StudentDashboard{}, errors.Wrap(err, "counting student attempts")
	}
	recent, err := svc.recentActivity(ctx, usr.TenantID, &activity.QueryFilter{UserID: usr.ID})
	if err != nil {
		return StudentDashboard{}, err
	}

	d := StudentDashboard{Courses: courses, Attempts: attempts, RecentActivity: recent}
	var total int
	for _, c := range courses {
		total += c.Progress
		if c.Completed() {
			d.CompletedCourses++
		}
	}
	if len(courses) > 0 {
		d.AverageProgress = float64(total) / float64(len(courses))
	}
	return d, nil
}

func (svc *service) For(ctx context.Context, usr user.User) (Dashboard, error) {
	p := usr.Portal()
	switch p {
	case user.PortalAdmin:
		d, err := svc.Admin(ctx, usr)
		if err != nil {
			return Dashboard{}, err
		}
		return Dashboard{Portal: p, Admin: &d}, nil
	case user.PortalStudent:
		d, err := svc.Student(ctx, usr)
		if err != nil {
			return Dashboard{}, err
		}
		return Dashboard{Portal: p, Student: &d}, nil
	default:
		return Dashboard{}, errors.Errorf("unknown portal %d", p)
	}
}
