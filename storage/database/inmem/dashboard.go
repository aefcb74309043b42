package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/darasa/core/dashboard"
	"github.com/trezcool/darasa/core/user"
)

type dashboardRepository struct {
	db *DB
}

func NewDashboardRepository(db *DB) dashboard.Repository {
	return &dashboardRepository{db: db}
}

func (repo *dashboardRepository) AdminStats(_ context.Context, tenantID int64) (dashboard.AdminStats, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var stats dashboard.AdminStats
	for _, u := range repo.db.users.rows {
		if u.TenantID == tenantID && u.Role == user.RoleStudent {
			stats.Students++
			if u.IsActive {
				stats.ActiveStudents++
			}
		}
	}
	for _, c := range repo.db.courses.rows {
		if c.TenantID == tenantID {
			stats.Courses++
		}
	}
	var progress int
	for _, e := range repo.db.enrollments.rows {
		if e.TenantID == tenantID {
			stats.Enrollments++
			progress += e.Progress
			if e.IsCompleted() {
				stats.CompletedEnrollments++
			}
		}
	}
	if stats.Enrollments > 0 {
		stats.AverageProgress = float64(progress) / float64(stats.Enrollments)
	}
	for _, e := range repo.db.exams.rows {
		if e.TenantID == tenantID {
			stats.Exams++
		}
	}
	for _, a := range repo.db.attempts.rows {
		if a.TenantID == tenantID && !a.IsReviewed() {
			stats.PendingAttempts++
		}
	}
	for _, b := range repo.db.batches.rows {
		if b.TenantID == tenantID {
			stats.Batches++
		}
	}
	return stats, nil
}

func (repo *dashboardRepository) StudentCourses(_ context.Context, tenantID, userID int64) ([]dashboard.CourseProgress, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var courses []dashboard.CourseProgress
	for _, e := range repo.db.enrollments.rows {
		if e.TenantID != tenantID || e.UserID != userID {
			continue
		}
		courses = append(courses, dashboard.CourseProgress{
			EnrollmentID: e.ID,
			CourseID:     e.CourseID,
			CourseTitle:  repo.db.courses.rows[e.CourseID].Title,
			Progress:     e.Progress,
			EnrolledAt:   e.EnrolledAt,
			CompletedAt:  e.CompletedAt,
		})
	}
	sort.Slice(courses, func(i, j int) bool {
		if !courses[i].EnrolledAt.Equal(courses[j].EnrolledAt) {
			return courses[i].EnrolledAt.After(courses[j].EnrolledAt)
		}
		return courses[i].EnrollmentID > courses[j].EnrollmentID
	})
	return courses, nil
}

func (repo *dashboardRepository) StudentAttempts(_ context.Context, tenantID, userID int64) (dashboard.AttemptCounts, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var counts dashboard.AttemptCounts
	for _, a := range repo.db.attempts.rows {
		if a.TenantID != tenantID || a.UserID != userID {
			continue
		}
		if a.IsReviewed() {
			counts.Reviewed++
		} else {
			counts.Pending++
		}
	}
	return counts, nil
}
