package boiledrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/enrollment"
)

var enrollmentSortable = []string{"id", "progress", "enrolled_at", "completed_at"}

type enrollmentRow struct {
	ID          int64     `boil:"id"`
	TenantID    int64     `boil:"tenant_id"`
	UserID      int64     `boil:"user_id"`
	CourseID    int64     `boil:"course_id"`
	Progress    int       `boil:"progress"`
	EnrolledAt  time.Time `boil:"enrolled_at"`
	CompletedAt null.Time `boil:"completed_at"`
}

func (r enrollmentRow) unboil() enrollment.Enrollment {
	e := enrollment.Enrollment{
		ID:         r.ID,
		TenantID:   r.TenantID,
		UserID:     r.UserID,
		CourseID:   r.CourseID,
		Progress:   r.Progress,
		EnrolledAt: r.EnrolledAt.UTC(),
	}
	if r.CompletedAt.Valid {
		t := r.CompletedAt.Time.UTC()
		e.CompletedAt = &t
	}
	return e
}

type enrollmentRepository struct {
	exec core.DBExecutor
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(exec core.DBExecutor) enrollment.Repository {
	return &enrollmentRepository{exec: exec}
}

func (repo *enrollmentRepository) CreateEnrollment(ctx context.Context, e enrollment.Enrollment) (enrollment.Enrollment, error) {
	err := queries.Raw(
		`INSERT INTO enrollments (tenant_id, user_id, course_id, progress, enrolled_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		e.TenantID, e.UserID, e.CourseID, e.Progress, e.EnrolledAt.UTC(), null.TimeFromPtr(e.CompletedAt),
	).QueryRowContext(ctx, repo.exec).Scan(&e.ID)
	if err != nil {
		if _, ok := uniqueConstraint(err); ok {
			return enrollment.Enrollment{}, enrollment.ErrAlreadyEnrolled
		}
		return enrollment.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	return e, nil
}

func (repo *enrollmentRepository) getEnrollment(ctx context.Context, mods ...qm.QueryMod) (enrollment.Enrollment, error) {
	var row enrollmentRow
	if err := newQuery("enrollments", mods...).Bind(ctx, repo.exec, &row); err != nil {
		return enrollment.Enrollment{}, trapNoRowsErr(err, enrollment.ErrNotFound, "finding enrollment")
	}
	return row.unboil(), nil
}

func (repo *enrollmentRepository) GetEnrollment(ctx context.Context, tenantID, id int64) (enrollment.Enrollment, error) {
	return repo.getEnrollment(ctx, qm.Where("tenant_id = ?", tenantID), qm.Where("id = ?", id))
}

func (repo *enrollmentRepository) FindEnrollment(ctx context.Context, tenantID, userID, courseID int64) (enrollment.Enrollment, error) {
	return repo.getEnrollment(ctx,
		qm.Where("tenant_id = ?", tenantID),
		qm.Where("user_id = ?", userID),
		qm.Where("course_id = ?", courseID),
	)
}

func enrollmentQueryMods(tenantID int64, filter *enrollment.QueryFilter, opts core.ListOptions) []qm.QueryMod {
	mods := []qm.QueryMod{qm.Where("tenant_id = ?", tenantID)}
	if filter != nil {
		if filter.UserID != 0 {
			mods = append(mods, qm.Where("user_id = ?", filter.UserID))
		}
		if filter.CourseID != 0 {
			mods = append(mods, qm.Where("course_id = ?", filter.CourseID))
		}
		if filter.Completed != nil {
			if *filter.Completed {
				mods = append(mods, qm.Where("completed_at IS NOT NULL"))
			} else {
				mods = append(mods, qm.Where("completed_at IS NULL"))
			}
		}
	}
	return append(mods, listMods(opts, enrollmentSortable, core.DBOrdering{Field: "enrolled_at"})...)
}

func (repo *enrollmentRepository) QueryEnrollments(ctx context.Context, tenantID int64, filter *enrollment.QueryFilter, opts core.ListOptions) ([]enrollment.Enrollment, error) {
	var rows []enrollmentRow
	if err := newQuery("enrollments", enrollmentQueryMods(tenantID, filter, opts)...).Bind(ctx, repo.exec, &rows); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	enrollments := make([]enrollment.Enrollment, 0, len(rows))
	for _, r := range rows {
		enrollments = append(enrollments, r.unboil())
	}
	return enrollments, nil
}

func (repo *enrollmentRepository) UpdateEnrollment(ctx context.Context, e enrollment.Enrollment) (enrollment.Enrollment, error) {
	res, err := queries.Raw(
		`UPDATE enrollments SET progress = $3, completed_at = $4 WHERE tenant_id = $1 AND id = $2`,
		e.TenantID, e.ID, e.Progress, null.TimeFromPtr(e.CompletedAt),
	).ExecContext(ctx, repo.exec)
	if err = checkAffected(res, err, enrollment.ErrNotFound, "updating enrollment"); err != nil {
		return enrollment.Enrollment{}, err
	}
	return e, nil
}

func (repo *enrollmentRepository) DeleteEnrollment(ctx context.Context, tenantID, id int64) error {
	res, err := queries.Raw(`DELETE FROM enrollments WHERE tenant_id = $1 AND id = $2`, tenantID, id).ExecContext(ctx, repo.exec)
	return checkAffected(res, err, enrollment.ErrNotFound, "deleting enrollment")
}
