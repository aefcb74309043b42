package boiledrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/batch"
)

var (
	batchSortable       = []string{"id", "name", "starts_on", "created_at"}
	batchMemberSortable = []string{"id", "status", "created_at"}
)

type (
	batchRow struct {
		ID        int64     `boil:"id"`
		TenantID  int64     `boil:"tenant_id"`
		CourseID  int64     `boil:"course_id"`
		TrainerID int64     `boil:"trainer_id"`
		Name      string    `boil:"name"`
		Schedule  string    `boil:"schedule"`
		StartsOn  null.Time `boil:"starts_on"`
		EndsOn    null.Time `boil:"ends_on"`
		CreatedAt time.Time `boil:"created_at"`
		UpdatedAt time.Time `boil:"updated_at"`
	}

	batchMemberRow struct {
		ID        int64     `boil:"id"`
		TenantID  int64     `boil:"tenant_id"`
		BatchID   int64     `boil:"batch_id"`
		UserID    int64     `boil:"user_id"`
		Status    string    `boil:"status"`
		CreatedAt time.Time `boil:"created_at"`
		UpdatedAt time.Time `boil:"updated_at"`
	}
)

func datePtr(t null.Time) *time.Time {
	if !t.Valid {
		return nil
	}
	d := t.Time.UTC()
	return &d
}

func (r batchRow) unboil() batch.Batch {
	return batch.Batch{
		ID:        r.ID,
		TenantID:  r.TenantID,
		CourseID:  r.CourseID,
		TrainerID: r.TrainerID,
		Name:      r.Name,
		Schedule:  r.Schedule,
		StartsOn:  datePtr(r.StartsOn),
		EndsOn:    datePtr(r.EndsOn),
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func (r batchMemberRow) unboil() batch.Enrollment {
	return batch.Enrollment{
		ID:        r.ID,
		TenantID:  r.TenantID,
		BatchID:   r.BatchID,
		UserID:    r.UserID,
		Status:    batch.Status(r.Status),
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type batchRepository struct {
	exec core.DBExecutor
}

var _ batch.Repository = (*batchRepository)(nil) // interface compliance check

func NewBatchRepository(exec core.DBExecutor) batch.Repository {
	return &batchRepository{exec: exec}
}

func (repo *batchRepository) CreateBatch(ctx context.Context, b batch.Batch) (batch.Batch, error) {
	err := queries.Raw(
		`INSERT INTO batches (tenant_id, course_id, trainer_id, name, schedule, starts_on, ends_on, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		b.TenantID, b.CourseID, b.TrainerID, b.Name, b.Schedule, null.TimeFromPtr(b.StartsOn), null.TimeFromPtr(b.EndsOn),
		b.CreatedAt.UTC(), b.UpdatedAt.UTC(),
	).QueryRowContext(ctx, repo.exec).Scan(&b.ID)
	if err != nil {
		return batch.Batch{}, errors.Wrap(err, "inserting batch")
	}
	return b, nil
}

func (repo *batchRepository) GetBatch(ctx context.Context, tenantID, id int64) (batch.Batch, error) {
	var row batchRow
	err := newQuery("batches", qm.Where("tenant_id = ?", tenantID), qm.Where("id = ?", id)).Bind(ctx, repo.exec, &row)
	if err != nil {
		return batch.Batch{}, trapNoRowsErr(err, batch.ErrNotFound, "finding batch")
	}
	return row.unboil(), nil
}

func batchQueryMods(tenantID int64, filter *batch.QueryFilter, opts core.ListOptions) []qm.QueryMod {
	mods := []qm.QueryMod{qm.Where("tenant_id = ?", tenantID)}
	if filter != nil {
		if filter.Search != "" {
			mods = append(mods, qm.Where("name ILIKE ?", likeArg(filter.Search)))
		}
		if filter.CourseID != 0 {
			mods = append(mods, qm.Where("course_id = ?", filter.CourseID))
		}
		if filter.TrainerID != 0 {
			mods = append(mods, qm.Where("trainer_id = ?", filter.TrainerID))
		}
	}
	return append(mods, listMods(opts, batchSortable, core.DBOrdering{Field: "created_at"})...)
}

func (repo *batchRepository) QueryBatches(ctx context.Context, tenantID int64, filter *batch.QueryFilter, opts core.ListOptions) ([]batch.Batch, error) {
	var rows []batchRow
	if err := newQuery("batches", batchQueryMods(tenantID, filter, opts)...).Bind(ctx, repo.exec, &rows); err != nil {
		return nil, errors.Wrap(err, "querying batches")
	}
	batches := make([]batch.Batch, 0, len(rows))
	for _, r := range rows {
		batches = append(batches, r.unboil())
	}
	return batches, nil
}

func (repo *batchRepository) UpdateBatch(ctx context.Context, b batch.Batch) (batch.Batch, error) {
	res, err := queries.Raw(
		`UPDATE batches SET trainer_id = $3, name = $4, schedule = $5, starts_on = $6, ends_on = $7, updated_at = $8
		WHERE tenant_id = $1 AND id = $2`,
		b.TenantID, b.ID, b.TrainerID, b.Name, b.Schedule, null.TimeFromPtr(b.StartsOn), null.TimeFromPtr(b.EndsOn),
		b.UpdatedAt.UTC(),
	).ExecContext(ctx, repo.exec)
	if err = checkAffected(res, err, batch.ErrNotFound, "updating batch"); err != nil {
		return batch.Batch{}, err
	}
	return b, nil
}

func (repo *batchRepository) DeleteBatch(ctx context.Context, tenantID, id int64) error {
	res, err := queries.Raw(`DELETE FROM batches WHERE tenant_id = $1 AND id = $2`, tenantID, id).ExecContext(ctx, repo.exec)
	return checkAffected(res, err, batch.ErrNotFound, "deleting batch")
}

func (repo *batchRepository) CreateEnrollment(ctx context.Context, e batch.Enrollment) (batch.Enrollment, error) {
	err := queries.Raw(
		`INSERT INTO batch_enrollments (tenant_id, batch_id, user_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		e.TenantID, e.BatchID, e.UserID, string(e.Status), e.CreatedAt.UTC(), e.UpdatedAt.UTC(),
	).QueryRowContext(ctx, repo.exec).Scan(&e.ID)
	if err != nil {
		if _, ok := uniqueConstraint(err); ok {
			return batch.Enrollment{}, batch.ErrAlreadyInBatch
		}
		return batch.Enrollment{}, errors.Wrap(err, "inserting batch enrollment")
	}
	return e, nil
}

func (repo *batchRepository) getEnrollment(ctx context.Context, mods ...qm.QueryMod) (batch.Enrollment, error) {
	var row batchMemberRow
	if err := newQuery("batch_enrollments", mods...).Bind(ctx, repo.exec, &row); err != nil {
		return batch.Enrollment{}, trapNoRowsErr(err, batch.ErrEnrollmentNotFound, "finding batch enrollment")
	}
	return row.unboil(), nil
}

func (repo *batchRepository) GetEnrollment(ctx context.Context, tenantID, id int64) (batch.Enrollment, error) {
	return repo.getEnrollment(ctx, qm.Where("tenant_id = ?", tenantID), qm.Where("id = ?", id))
}

func (repo *batchRepository) FindEnrollment(ctx context.Context, tenantID, batchID, userID int64) (batch.Enrollment, error) {
	return repo.getEnrollment(ctx,
		qm.Where("tenant_id = ?", tenantID),
		qm.Where("batch_id = ?", batchID),
		qm.Where("user_id = ?", userID),
	)
}

func batchMemberQueryMods(tenantID int64, filter *batch.EnrollmentFilter, opts core.ListOptions) []qm.QueryMod {
	mods := []qm.QueryMod{qm.Where("tenant_id = ?", tenantID)}
	if filter != nil {
		if filter.BatchID != 0 {
			mods = append(mods, qm.Where("batch_id = ?", filter.BatchID))
		}
		if filter.UserID != 0 {
			mods = append(mods, qm.Where("user_id = ?", filter.UserID))
		}
		if filter.Status != "" {
			mods = append(mods, qm.Where("status = ?", string(filter.Status)))
		}
	}
	return append(mods, listMods(opts, batchMemberSortable, core.DBOrdering{Field: "id", Ascending: true})...)
}

func (repo *batchRepository) QueryEnrollments(ctx context.Context, tenantID int64, filter *batch.EnrollmentFilter, opts core.ListOptions) ([]batch.Enrollment, error) {
	var rows []batchMemberRow
	if err := newQuery("batch_enrollments", batchMemberQueryMods(tenantID, filter, opts)...).Bind(ctx, repo.exec, &rows); err != nil {
		return nil, errors.Wrap(err, "querying batch enrollments")
	}
	members := make([]batch.Enrollment, 0, len(rows))
	for _, r := range rows {
		members = append(members, r.unboil())
	}
	return members, nil
}

func (repo *batchRepository) UpdateEnrollment(ctx context.Context, e batch.Enrollment) (batch.Enrollment, error) {
	res, err := queries.Raw(
		`UPDATE batch_enrollments SET status = $3, updated_at = $4 WHERE tenant_id = $1 AND id = $2`,
		e.TenantID, e.ID, string(e.Status), e.UpdatedAt.UTC(),
	).ExecContext(ctx, repo.exec)
	if err = checkAffected(res, err, batch.ErrEnrollmentNotFound, "updating batch enrollment"); err != nil {
		return batch.Enrollment{}, err
	}
	return e, nil
}

func (repo *batchRepository) DeleteEnrollment(ctx context.Context, tenantID, id int64) error {
	res, err := queries.Raw(`DELETE FROM batch_enrollments WHERE tenant_id = $1 AND id = $2`, tenantID, id).ExecContext(ctx, repo.exec)
	return checkAffected(res, err, batch.ErrEnrollmentNotFound, "deleting batch enrollment")
}
