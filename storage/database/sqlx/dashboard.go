// Package sqlxrepos implements the read-only reporting repositories with sqlx.
package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/dashboard"
)

const (
	adminStatsQuery = `
SELECT
	(SELECT count(*) FROM users WHERE tenant_id = $1 AND role = 'student') AS students,
	(SELECT count(*) FROM users WHERE tenant_id = $1 AND role = 'student' AND is_active) AS active_students,
	(SELECT count(*) FROM courses WHERE tenant_id = $1) AS courses,
	(SELECT count(*) FROM enrollments WHERE tenant_id = $1) AS enrollments,
	(SELECT count(*) FROM enrollments WHERE tenant_id = $1 AND completed_at IS NOT NULL) AS completed_enrollments,
	(SELECT count(*) FROM exams WHERE tenant_id = $1) AS exams,
	(SELECT count(*) FROM exam_attempts WHERE tenant_id = $1 AND reviewed_at IS NULL) AS pending_attempts,
	(SELECT count(*) FROM batches WHERE tenant_id = $1) AS batches,
	(SELECT COALESCE(avg(progress), 0)::float8 FROM enrollments WHERE tenant_id = $1) AS average_progress`

	studentCoursesQuery = `
SELECT e.id AS enrollment_id, e.course_id, c.title AS course_title, e.progress, e.enrolled_at, e.completed_at
FROM enrollments e
JOIN courses c ON c.id = e.course_id
WHERE e.tenant_id = $1 AND e.user_id = $2
ORDER BY e.enrolled_at DESC, e.id DESC`

	studentAttemptsQuery = `
SELECT
	count(*) FILTER (WHERE reviewed_at IS NULL) AS pending,
	count(*) FILTER (WHERE reviewed_at IS NOT NULL) AS reviewed
FROM exam_attempts
WHERE tenant_id = $1 AND user_id = $2`
)

type dashboardRepository struct {
	db *sqlx.DB
}

var _ dashboard.Repository = (*dashboardRepository)(nil) // interface compliance check

func NewDashboardRepository(db *sql.DB) dashboard.Repository {
	return &dashboardRepository{db: sqlx.NewDb(db, "postgres")}
}

func (repo *dashboardRepository) AdminStats(ctx context.Context, tenantID int64) (dashboard.AdminStats, error) {
	var stats dashboard.AdminStats
	if err := repo.db.GetContext(ctx, &stats, adminStatsQuery, tenantID); err != nil {
		return dashboard.AdminStats{}, errors.Wrap(err, "computing admin stats")
	}
	return stats, nil
}

func (repo *dashboardRepository) StudentCourses(ctx context.Context, tenantID, userID int64) ([]dashboard.CourseProgress, error) {
	courses := make([]dashboard.CourseProgress, 0)
	if err := repo.db.SelectContext(ctx, &courses, studentCoursesQuery, tenantID, userID); err != nil {
		return nil, errors.Wrap(err, "querying student courses")
	}
	for i := range courses {
		courses[i].EnrolledAt = courses[i].EnrolledAt.UTC()
		if c := courses[i].CompletedAt; c != nil {
			utc := c.UTC()
			courses[i].CompletedAt = &utc
		}
	}
	return courses, nil
}

func (repo *dashboardRepository) StudentAttempts(ctx context.Context, tenantID, userID int64) (dashboard.AttemptCounts, error) {
	var counts dashboard.AttemptCounts
	if err := repo.db.GetContext(ctx, &counts, studentAttemptsQuery, tenantID, userID); err != nil {
		return dashboard.AttemptCounts{}, errors.Wrap(err, "counting student attempts")
	}
	return counts, nil
}
