package inmemdb

import (
	"context"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/batch"
)

var (
	batchFields = fieldGetters[batch.Batch]{
		"id":         func(b batch.Batch) interface{} { return b.ID },
		"name":       func(b batch.Batch) interface{} { return b.Name },
		"created_at": func(b batch.Batch) interface{} { return b.CreatedAt },
	}
	batchMemberFields = fieldGetters[batch.Enrollment]{
		"id":         func(e batch.Enrollment) interface{} { return e.ID },
		"status":     func(e batch.Enrollment) interface{} { return string(e.Status) },
		"created_at": func(e batch.Enrollment) interface{} { return e.CreatedAt },
	}
)

type batchRepository struct {
	db *DB
}

func NewBatchRepository(db *DB) batch.Repository {
	return &batchRepository{db: db}
}

func (repo *batchRepository) CreateBatch(_ context.Context, b batch.Batch) (batch.Batch, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	b.ID = repo.db.batches.nextID()
	repo.db.batches.rows[b.ID] = b
	return b, nil
}

func (repo *batchRepository) GetBatch(_ context.Context, tenantID, id int64) (batch.Batch, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if b, ok := repo.db.batches.rows[id]; ok && b.TenantID == tenantID {
		return b, nil
	}
	return batch.Batch{}, batch.ErrNotFound
}

func (repo *batchRepository) QueryBatches(_ context.Context, tenantID int64, filter *batch.QueryFilter, opts core.ListOptions) ([]batch.Batch, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if filter == nil {
		filter = new(batch.QueryFilter)
	}
	rows := repo.db.batches.list(func(b batch.Batch) bool {
		if b.TenantID != tenantID {
			return false
		}
		if filter.Search != "" && !containsFold(b.Name, filter.Search) {
			return false
		}
		if filter.CourseID != 0 && b.CourseID != filter.CourseID {
			return false
		}
		return filter.TrainerID == 0 || b.TrainerID == filter.TrainerID
	})
	return orderAndPage(rows, opts, batchFields, desc("created_at")), nil
}

func (repo *batchRepository) UpdateBatch(_ context.Context, b batch.Batch) (batch.Batch, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if orig, ok := repo.db.batches.rows[b.ID]; !ok || orig.TenantID != b.TenantID {
		return batch.Batch{}, batch.ErrNotFound
	}
	repo.db.batches.rows[b.ID] = b
	return b, nil
}

func (repo *batchRepository) DeleteBatch(_ context.Context, tenantID, id int64) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if b, ok := repo.db.batches.rows[id]; !ok || b.TenantID != tenantID {
		return batch.ErrNotFound
	}
	delete(repo.db.batches.rows, id)
	repo.db.batchMembers.deleteWhere(func(e batch.Enrollment) bool { return e.BatchID == id })
	return nil
}

func (repo *batchRepository) CreateEnrollment(_ context.Context, e batch.Enrollment) (batch.Enrollment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, other := range repo.db.batchMembers.rows {
		if other.BatchID == e.BatchID && other.UserID == e.UserID {
			return batch.Enrollment{}, batch.ErrAlreadyInBatch
		}
	}
	e.ID = repo.db.batchMembers.nextID()
	repo.db.batchMembers.rows[e.ID] = e
	return e, nil
}

func (repo *batchRepository) GetEnrollment(_ context.Context, tenantID, id int64) (batch.Enrollment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if e, ok := repo.db.batchMembers.rows[id]; ok && e.TenantID == tenantID {
		return e, nil
	}
	return batch.Enrollment{}, batch.ErrEnrollmentNotFound
}

func (repo *batchRepository) FindEnrollment(_ context.Context, tenantID, batchID, userID int64) (batch.Enrollment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, e := range repo.db.batchMembers.rows {
		if e.TenantID == tenantID && e.BatchID == batchID && e.UserID == userID {
			return e, nil
		}
	}
	return batch.Enrollment{}, batch.ErrEnrollmentNotFound
}

func (repo *batchRepository) QueryEnrollments(_ context.Context, tenantID int64, filter *batch.EnrollmentFilter, opts core.ListOptions) ([]batch.Enrollment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if filter == nil {
		filter = new(batch.EnrollmentFilter)
	}
	rows := repo.db.batchMembers.list(func(e batch.Enrollment) bool {
		if e.TenantID != tenantID {
			return false
		}
		if filter.BatchID != 0 && e.BatchID != filter.BatchID {
			return false
		}
		if filter.UserID != 0 && e.UserID != filter.UserID {
			return false
		}
		return filter.Status == "" || e.Status == filter.Status
	})
	return orderAndPage(rows, opts, batchMemberFields, asc("id")), nil
}

func (repo *batchRepository) UpdateEnrollment(_ context.Context, e batch.Enrollment) (batch.Enrollment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if orig, ok := repo.db.batchMembers.rows[e.ID]; !ok || orig.TenantID != e.TenantID {
		return batch.Enrollment{}, batch.ErrEnrollmentNotFound
	}
	repo.db.batchMembers.rows[e.ID] = e
	return e, nil
}

func (repo *batchRepository) DeleteEnrollment(_ context.Context, tenantID, id int64) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if e, ok := repo.db.batchMembers.rows[id]; !ok || e.TenantID != tenantID {
		return batch.ErrEnrollmentNotFound
	}
	delete(repo.db.batchMembers.rows, id)
	return nil
}
