package dashboard

import (
	"time"

	"github.com/trezcool/darasa/core/activity"
	"github.com/trezcool/darasa/core/user"
)

// AdminStats are the tenant-wide counters shown to administrators.
type AdminStats struct {
	Students             int     `json:"students" db:"students"`
	ActiveStudents       int     `json:"active_students" db:"active_students"`
	Courses              int     `json:"courses" db:"courses"`
	Enrollments          int     `json:"enrollments" db:"enrollments"`
	CompletedEnrollments int     `json:"completed_enrollments" db:"completed_enrollments"`
	Exams                int     `json:"exams" db:"exams"`
	PendingAttempts      int     `json:"pending_attempts" db:"pending_attempts"`
	Batches              int     `json:"batches" db:"batches"`
	AverageProgress      float64 `json:"average_progress" db:"average_progress"`
}

// CourseProgress is one of a student's enrollments.
type CourseProgress struct {
	EnrollmentID int64      `json:"enrollment_id" db:"enrollment_id"`
	CourseID     int64      `json:"course_id" db:"course_id"`
	CourseTitle  string     `json:"course_title" db:"course_title"`
	Progress     int        `json:"progress" db:"progress"`
	EnrolledAt   time.Time  `json:"enrolled_at" db:"enrolled_at"`
	CompletedAt  *time.Time `json:"completed_at" db:"completed_at"`
}

func (cp CourseProgress) Completed() bool { return cp.CompletedAt != nil }

// AttemptCounts splits a student's exam attempts by review state.
type AttemptCounts struct {
	Pending  int `json:"pending" db:"pending"`
	Reviewed int `json:"reviewed" db:"reviewed"`
}

type AdminDashboard struct {
	Stats          AdminStats     `json:"stats"`
	RecentActivity []activity.Log `json:"recent_activity"`
}

type StudentDashboard struct {
	Courses          []CourseProgress `json:"courses"`
	CompletedCourses int              `json:"completed_courses"`
	AverageProgress  float64          `json:"average_progress"`
	Attempts         AttemptCounts    `json:"attempts"`
	RecentActivity   []activity.Log   `json:"recent_activity"`
}

// Dashboard holds the dashboard of the user's portal; the other one is nil.
type Dashboard struct {
	Portal  user.Portal       `json:"portal"`
	Admin   *AdminDashboard   `json:"admin,omitempty"`
	Student *StudentDashboard `json:"student,omitempty"`
}
