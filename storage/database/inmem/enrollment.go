package inmemdb

import (
	"context"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/enrollment"
)

var enrollmentFields = fieldGetters[enrollment.Enrollment]{
	"id":          func(e enrollment.Enrollment) interface{} { return e.ID },
	"progress":    func(e enrollment.Enrollment) interface{} { return e.Progress },
	"enrolled_at": func(e enrollment.Enrollment) interface{} { return e.EnrolledAt },
}

type enrollmentRepository struct {
	db *DB
}

func NewEnrollmentRepository(db *DB) enrollment.Repository {
	return &enrollmentRepository{db: db}
}

func (repo *enrollmentRepository) CreateEnrollment(_ context.Context, e enrollment.Enrollment) (enrollment.Enrollment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, other := range repo.db.enrollments.rows {
		if other.UserID == e.UserID && other.CourseID == e.CourseID {
			return enrollment.Enrollment{}, enrollment.ErrAlreadyEnrolled
		}
	}
	e.ID = repo.db.enrollments.nextID()
	repo.db.enrollments.rows[e.ID] = e
	return e, nil
}

func (repo *enrollmentRepository) GetEnrollment(_ context.Context, tenantID, id int64) (enrollment.Enrollment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if e, ok := repo.db.enrollments.rows[id]; ok && e.TenantID == tenantID {
		return e, nil
	}
	return enrollment.Enrollment{}, enrollment.ErrNotFound
}

func (repo *enrollmentRepository) FindEnrollment(_ context.Context, tenantID, userID, courseID int64) (enrollment.Enrollment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, e := range repo.db.enrollments.rows {
		if e.TenantID == tenantID && e.UserID == userID && e.CourseID == courseID {
			return e, nil
		}
	}
	return enrollment.Enrollment{}, enrollment.ErrNotFound
}

func (repo *enrollmentRepository) QueryEnrollments(_ context.Context, tenantID int64, filter *enrollment.QueryFilter, opts core.ListOptions) ([]enrollment.Enrollment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if filter == nil {
		filter = new(enrollment.QueryFilter)
	}
	rows := repo.db.enrollments.list(func(e enrollment.Enrollment) bool {
		if e.TenantID != tenantID {
			return false
		}
		if filter.UserID != 0 && e.UserID != filter.UserID {
			return false
		}
		if filter.CourseID != 0 && e.CourseID != filter.CourseID {
			return false
		}
		return filter.Completed == nil || e.IsCompleted() == *filter.Completed
	})
	return orderAndPage(rows, opts, enrollmentFields, desc("enrolled_at")), nil
}

func (repo *enrollmentRepository) UpdateEnrollment(_ context.Context, e enrollment.Enrollment) (enrollment.Enrollment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if orig, ok := repo.db.enrollments.rows[e.ID]; !ok || orig.TenantID != e.TenantID {
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}
	repo.db.enrollments.rows[e.ID] = e
	return e, nil
}

func (repo *enrollmentRepository) DeleteEnrollment(_ context.Context, tenantID, id int64) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if e, ok := repo.db.enrollments.rows[id]; !ok || e.TenantID != tenantID {
		return enrollment.ErrNotFound
	}
	delete(repo.db.enrollments.rows, id)
	return nil
}
